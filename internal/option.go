package internal

import (
	"io"
	"time"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config   *Config
	out      io.Writer
	root     string
	interval time.Duration
	version  string
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithOutput sets where command reports are printed.
func WithOutput(w io.Writer) Option {
	return func(a *application) {
		a.out = w
	}
}

// WithRoot overrides the configured root directory.
func WithRoot(root string) Option {
	return func(a *application) {
		a.root = root
	}
}

// WithInterval sets the refresh interval of the monitor. Zero selects the
// one-shot collision report.
func WithInterval(d time.Duration) Option {
	return func(a *application) {
		a.interval = d
	}
}

// WithVersion sets the version reported by the MCP server.
func WithVersion(v string) Option {
	return func(a *application) {
		a.version = v
	}
}
