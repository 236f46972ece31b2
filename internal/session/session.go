// Package session supplies the bearer token of the signed-in user.
// Token acquisition and refresh happen elsewhere; components only read.
package session

import (
	"os"
	"strings"
	"sync"
)

type Session interface {
	// Token returns the current bearer token and whether one is available.
	Token() (string, bool)
	SignedIn() bool
}

// Static holds a fixed token. The zero value is signed out.
type Static struct {
	token string
}

func NewStatic(token string) Static {
	return Static{token: strings.TrimSpace(token)}
}

func (s Static) Token() (string, bool) {
	return s.token, s.token != ""
}

func (s Static) SignedIn() bool {
	return s.token != ""
}

// Func adapts a token lookup function.
type Func func() (string, bool)

func (f Func) Token() (string, bool) {
	return f()
}

func (f Func) SignedIn() bool {
	_, ok := f()
	return ok
}

// Env reads the token from an environment variable on every call, so an
// external refresher can rotate it without restarting the process.
func Env(key string) Session {
	return Func(func() (string, bool) {
		token := strings.TrimSpace(os.Getenv(key))
		return token, token != ""
	})
}

// Holder is a session whose token is replaced by the external auth collaborator.
// Until the first Set it defers to its fallback; Clear signs out regardless.
type Holder struct {
	mu       sync.RWMutex
	token    string
	explicit bool
	fallback Session
}

func NewHolder(fallback Session) *Holder {
	return &Holder{fallback: fallback}
}

func (h *Holder) Set(token string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.token = strings.TrimSpace(token)
	h.explicit = true
}

func (h *Holder) Clear() {
	h.Set("")
}

func (h *Holder) Token() (string, bool) {
	h.mu.RLock()
	token, explicit, fallback := h.token, h.explicit, h.fallback
	h.mu.RUnlock()

	if !explicit && fallback != nil {
		return fallback.Token()
	}
	return token, token != ""
}

func (h *Holder) SignedIn() bool {
	_, ok := h.Token()
	return ok
}
