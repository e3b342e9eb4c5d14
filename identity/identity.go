// Package identity supplies the two identity concerns the commission core
// depends on: an opaque caller identity that must exist before any write, and
// the operator gate that admits the artist into their workspace.
package identity

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrNoIdentity signals that no caller identity could be established. Writes
// must not be attempted without one.
var ErrNoIdentity = errors.New("identity: no caller identity established")

// Identity is an opaque caller identity. The core never interprets its
// contents; it only requires that one exists before a write.
type Identity struct {
	UID       string
	Anonymous bool
}

// Ensurer establishes a caller identity if one is missing and returns it.
type Ensurer interface {
	Ensure(ctx context.Context) (Identity, error)
}

// AnonymousEnsurer mints an anonymous identity on first use and reuses it for
// the rest of the session, mirroring anonymous sign-in against a managed
// auth backend.
type AnonymousEnsurer struct {
	mu sync.Mutex
	id *Identity
}

func NewAnonymousEnsurer() *AnonymousEnsurer {
	return &AnonymousEnsurer{}
}

// Ensure returns the session identity, creating it on first call.
func (a *AnonymousEnsurer) Ensure(ctx context.Context) (Identity, error) {
	if err := ctx.Err(); err != nil {
		return Identity{}, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.id == nil {
		a.id = &Identity{UID: uuid.NewString(), Anonymous: true}
	}
	return *a.id, nil
}

// StaticEnsurer always returns a fixed identity. Useful for token-based
// sessions and for tests.
type StaticEnsurer struct {
	Identity Identity
}

func (s StaticEnsurer) Ensure(ctx context.Context) (Identity, error) {
	if s.Identity.UID == "" {
		return Identity{}, ErrNoIdentity
	}
	return s.Identity, nil
}
