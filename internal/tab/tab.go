// Package tab resolves the site the user is currently looking at, used to
// prefill the site field. Lookups are best effort: any failure means "no
// domain", never an error the user sees.
package tab

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"

	"github.com/atotto/clipboard"
)

// ErrNoURL is returned by a Source that has nothing to offer.
var ErrNoURL = errors.New("no active url")

// Source reports the URL of the active tab.
type Source interface {
	ActiveURL(ctx context.Context) (string, error)
}

// Static always reports the same URL, e.g. from --url.
type Static string

func (s Static) ActiveURL(context.Context) (string, error) {
	if s == "" {
		return "", ErrNoURL
	}
	return string(s), nil
}

// Clipboard reports the clipboard contents when they look like a web URL.
type Clipboard struct {
	// Read defaults to the system clipboard.
	Read func() (string, error)
}

func (c Clipboard) ActiveURL(context.Context) (string, error) {
	read := c.Read
	if read == nil {
		read = clipboard.ReadAll
	}

	text, err := read()
	if err != nil {
		return "", err
	}

	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "http://") && !strings.HasPrefix(text, "https://") {
		return "", ErrNoURL
	}
	return text, nil
}

// Chain tries each source in order and returns the first URL found.
type Chain []Source

func (c Chain) ActiveURL(ctx context.Context) (string, error) {
	var errs []error
	for _, s := range c {
		u, err := s.ActiveURL(ctx)
		if err == nil {
			return u, nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return "", ErrNoURL
	}
	return "", errors.Join(errs...)
}

// Domain returns the hostname of rawURL with one leading "www." removed.
func Domain(rawURL string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", false
	}

	host := strings.TrimPrefix(u.Hostname(), "www.")
	if host == "" {
		return "", false
	}
	return host, true
}

// CurrentDomain looks up the active URL through src and returns its domain.
func CurrentDomain(ctx context.Context, src Source) (string, bool) {
	if src == nil {
		return "", false
	}

	raw, err := src.ActiveURL(ctx)
	if err != nil {
		slog.Debug("tab lookup", "err", err)
		return "", false
	}

	d, ok := Domain(raw)
	if !ok {
		slog.Debug("tab lookup: unparsable url", "url", raw)
	}
	return d, ok
}
