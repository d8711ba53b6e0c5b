// Package config resolves zpass settings from defaults and the environment.
// Command-line flags are applied on top by the cli package.
package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	appName = "zpass"
	logFile = "zpass.log"
)

// Config holds runtime settings.
type Config struct {
	DataDir   string
	Encrypted bool   // keep credentials in the sealed zstore backend
	Secure    bool   // draw passwords from a CSPRNG-seeded stream
	URL       string // active tab url used to prefill the site field
	Debug     bool
}

// Load reads settings from the environment.
func Load() Config {
	c := Config{
		DataDir:   DataDir(),
		Encrypted: envBool("ZPASS_ENCRYPTED"),
		Secure:    envBool("ZPASS_SECURE"),
		URL:       os.Getenv("ZPASS_URL"),
		Debug:     envBool("ZPASS_DEBUG"),
	}
	if d := os.Getenv("ZPASS_DATA_DIR"); d != "" {
		c.DataDir = d
	}
	return c
}

// DataDir returns the default data directory for zpass.
func DataDir() string {
	if d := os.Getenv("XDG_DATA_HOME"); d != "" {
		return filepath.Join(d, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "." + appName
	}
	return filepath.Join(home, ".local", "share", appName)
}

// IsFirstRun reports whether the sealed store has not been created yet.
func (c Config) IsFirstRun() bool {
	_, err := os.Stat(filepath.Join(c.DataDir, "salt"))
	return err != nil
}

// SetupLogging installs the default slog logger. The popup owns the
// terminal, so debug logs go to a file in the data directory and are
// discarded otherwise. The returned closer releases the file.
func (c Config) SetupLogging() (io.Closer, error) {
	if !c.Debug {
		slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
		return io.NopCloser(nil), nil
	}

	if err := os.MkdirAll(c.DataDir, 0o700); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(filepath.Join(c.DataDir, logFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, err
	}

	h := slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug})
	slog.SetDefault(slog.New(h).With("app", appName))
	return f, nil
}

func envBool(name string) bool {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		// any other non-empty value such as "yes" turns the switch on
		return true
	}
	return b
}
