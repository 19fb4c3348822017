// Package completion wraps the remote language-model call every agent depends
// on. The rest of the system only sees the Client interface: a prompt goes in,
// text comes out, or the call fails.
package completion

import (
	"context"
	"errors"
	"strings"
)

// ErrEmptyResponse is returned when the provider answers without any choices.
var ErrEmptyResponse = errors.New("completion: empty response")

// Client turns a prompt into a completion. Implementations must be safe for
// concurrent use; a failure is fatal for the operation that issued the call.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// ClientFunc adapts an ordinary function to the Client interface.
type ClientFunc func(ctx context.Context, prompt string) (string, error)

// Complete calls f(ctx, prompt).
func (f ClientFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// StripFences removes a surrounding markdown code fence (```json ... ``` or
// ``` ... ```) from a model response so the payload can be decoded as JSON.
// Text without a leading fence is returned trimmed but otherwise untouched.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// Drop the info string ("json", "JSON", ...) up to the first newline.
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		if info := strings.TrimSpace(s[:nl]); !strings.ContainsAny(info, "{[") {
			s = s[nl+1:]
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
