// Package rewrite maps request URLs before the stack connects.
//
// Rules are prefix based. A URL that starts with a Block entry is rejected.
// Otherwise the longest Replace prefix matching the URL is swapped for its
// target, and URLs matching nothing pass through unchanged.
package rewrite

import (
	"io"
	"log/slog"
	"sort"
	"strings"
)

// Rules is the serializable form of a Rewriter.
type Rules struct {
	Block   []string          `json:"block,omitempty" yaml:"block,omitempty" toml:"block,omitempty"`
	Replace map[string]string `json:"replace,omitempty" yaml:"replace,omitempty" toml:"replace,omitempty"`
}

// Empty reports whether r has no rules at all.
func (r Rules) Empty() bool {
	return len(r.Block) == 0 && len(r.Replace) == 0
}

type replacement struct {
	prefix string
	target string
}

// Rewriter applies a fixed set of Rules. It is safe for concurrent use.
type Rewriter struct {
	block   []string
	replace []replacement
	logger  *slog.Logger
}

// Option is a functional option for Rewriter
type Option func(*Rewriter)

// WithLogger sets the logger used to report blocked and rewritten URLs
func WithLogger(logger *slog.Logger) Option {
	return func(rw *Rewriter) {
		if logger != nil {
			rw.logger = logger
		}
	}
}

func New(rules Rules, opts ...Option) *Rewriter {
	rw := &Rewriter{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, b := range rules.Block {
		if b != "" {
			rw.block = append(rw.block, b)
		}
	}
	for prefix, target := range rules.Replace {
		if prefix == "" {
			continue
		}
		rw.replace = append(rw.replace, replacement{prefix: prefix, target: target})
	}
	// longest prefix first, ties broken lexically so map order never matters
	sort.Slice(rw.replace, func(i, j int) bool {
		a, b := rw.replace[i].prefix, rw.replace[j].prefix
		if len(a) != len(b) {
			return len(a) > len(b)
		}
		return a < b
	})
	for _, opt := range opts {
		opt(rw)
	}
	return rw
}

// Rewrite returns the URL to use instead of rawURL, or false when rawURL is
// blocked.
func (rw *Rewriter) Rewrite(rawURL string) (string, bool) {
	for _, b := range rw.block {
		if strings.HasPrefix(rawURL, b) {
			rw.logger.Debug("url blocked", "url", rawURL, "rule", b)
			return "", false
		}
	}
	for _, r := range rw.replace {
		if strings.HasPrefix(rawURL, r.prefix) {
			out := r.target + rawURL[len(r.prefix):]
			rw.logger.Debug("url rewritten", "from", rawURL, "to", out)
			return out, true
		}
	}
	return rawURL, true
}
