package tab

import (
	"context"
	"errors"
	"testing"
)

func TestDomain(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		want   string
		wantOK bool
	}{
		{"plain", "https://github.com/zarlcorp", "github.com", true},
		{"www stripped", "https://www.example.org/login?next=/", "example.org", true},
		{"only first www", "https://www.www.example.org", "www.example.org", true},
		{"subdomain kept", "https://mail.google.com/mail/u/0", "mail.google.com", true},
		{"port dropped", "http://localhost:8080/", "localhost", true},
		{"whitespace", "  https://www.a.io  ", "a.io", true},
		{"no scheme", "github.com", "", false},
		{"chrome page", "chrome://newtab", "newtab", true},
		{"empty", "", "", false},
		{"bare www", "https://www./", "", false},
		{"garbage", "://bad url", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Domain(tt.raw)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("Domain(%q) = %q, %v; want %q, %v", tt.raw, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestStatic(t *testing.T) {
	u, err := Static("https://a.com").ActiveURL(context.Background())
	if err != nil || u != "https://a.com" {
		t.Fatalf("got %q, %v", u, err)
	}

	_, err = Static("").ActiveURL(context.Background())
	if !errors.Is(err, ErrNoURL) {
		t.Fatalf("err = %v, want ErrNoURL", err)
	}
}

func TestClipboardSource(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		readErr error
		want    string
		wantErr bool
	}{
		{"url", "https://www.example.com/x\n", nil, "https://www.example.com/x", false},
		{"not a url", "hunter2", nil, "", true},
		{"read error", "", errors.New("no xclip"), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := Clipboard{Read: func() (string, error) { return tt.text, tt.readErr }}
			got, err := src.ActiveURL(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestChain(t *testing.T) {
	c := Chain{Static(""), Static("https://second.com")}
	u, err := c.ActiveURL(context.Background())
	if err != nil || u != "https://second.com" {
		t.Fatalf("got %q, %v", u, err)
	}

	_, err = Chain{Static("")}.ActiveURL(context.Background())
	if !errors.Is(err, ErrNoURL) {
		t.Fatalf("err = %v, want ErrNoURL", err)
	}

	_, err = Chain{}.ActiveURL(context.Background())
	if !errors.Is(err, ErrNoURL) {
		t.Fatalf("empty chain: err = %v, want ErrNoURL", err)
	}
}

func TestCurrentDomain(t *testing.T) {
	ctx := context.Background()

	if d, ok := CurrentDomain(ctx, Static("https://www.github.com")); !ok || d != "github.com" {
		t.Errorf("got %q, %v", d, ok)
	}
	if _, ok := CurrentDomain(ctx, Static("")); ok {
		t.Error("missing url should be absent")
	}
	if _, ok := CurrentDomain(ctx, Static("not a url")); ok {
		t.Error("unparsable url should be absent")
	}
	if _, ok := CurrentDomain(ctx, nil); ok {
		t.Error("nil source should be absent")
	}
}
