// Package suggest ranks suggestion-list entries against what a user has
// typed so far. Lookups are best effort: a failing remote completer
// degrades to a local substring filter.
package suggest

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"
)

// Completer returns the candidates that match partial, best first.
type Completer interface {
	Complete(ctx context.Context, partial string, candidates []string) ([]string, error)
}

// SubstringFilter keeps candidates containing partial, ignoring case, in
// their original order.
type SubstringFilter struct{}

func (SubstringFilter) Complete(_ context.Context, partial string, candidates []string) ([]string, error) {
	needle := strings.ToLower(strings.TrimSpace(partial))
	out := []string{}
	if needle == "" {
		return out, nil
	}
	for _, c := range candidates {
		if strings.Contains(strings.ToLower(c), needle) {
			out = append(out, c)
		}
	}
	return out, nil
}

// Fallback tries a primary completer and falls back to SubstringFilter when
// it is missing or fails.
type Fallback struct {
	primary Completer
	local   SubstringFilter
	logger  logrus.FieldLogger
}

// WithFallback wraps primary, which may be nil.
func WithFallback(primary Completer, logger logrus.FieldLogger) *Fallback {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Fallback{primary: primary, logger: logger}
}

func (f *Fallback) Complete(ctx context.Context, partial string, candidates []string) ([]string, error) {
	partial = strings.TrimSpace(partial)
	if partial == "" || len(candidates) == 0 {
		return []string{}, nil
	}

	if f.primary != nil {
		out, err := f.primary.Complete(ctx, partial, candidates)
		if err == nil {
			return out, nil
		}
		f.logger.WithError(err).WithField("partial", partial).Warn("completer failed, using local filter")
	}
	return f.local.Complete(ctx, partial, candidates)
}

// keepKnown drops suggestions that are not candidates and repeats.
func keepKnown(suggestions, candidates []string) []string {
	known := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		known[c] = true
	}
	out := []string{}
	seen := map[string]bool{}
	for _, s := range suggestions {
		if known[s] && !seen[s] {
			out = append(out, s)
			seen[s] = true
		}
	}
	return out
}
