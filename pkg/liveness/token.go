// Package liveness provides the revocable gate that async continuations check
// before touching a render target.
package liveness

import (
	"sync"
	"sync/atomic"
)

// Token starts alive and can be revoked exactly once. It is shared by every
// continuation spawned for one render invocation.
type Token struct {
	revoked atomic.Bool

	mu       sync.Mutex
	children []*Token
}

// New returns an alive token.
func New() *Token {
	return &Token{}
}

// IsAlive reports whether the owning view still exists. A nil token is always alive,
// which lets callers render without a lifetime.
func (t *Token) IsAlive() bool {
	if t == nil {
		return true
	}
	return !t.revoked.Load()
}

// Revoke marks the token as revoked. Calling it more than once is a no-op.
func (t *Token) Revoke() {
	if t == nil || !t.revoked.CompareAndSwap(false, true) {
		return
	}

	t.mu.Lock()
	children := t.children
	t.children = nil
	t.mu.Unlock()

	for _, c := range children {
		c.Revoke()
	}
}

// Child returns a token that is revoked together with t. Revoking the child does not
// affect the parent.
func (t *Token) Child() *Token {
	child := New()
	if t == nil {
		return child
	}

	t.mu.Lock()
	if t.revoked.Load() {
		t.mu.Unlock()
		child.revoked.Store(true)
		return child
	}
	t.children = append(t.children, child)
	t.mu.Unlock()
	return child
}

// Func adapts the token to the plain `func() bool` middleware shape.
func (t *Token) Func() func() bool {
	return t.IsAlive
}
