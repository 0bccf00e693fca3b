// Package identity supplies the "current identity or none" signal that gates
// the remote-facing half of the sync core.
//
// The core only reacts to present/absent transitions; who the identity is and
// how it was established stays outside the engine.
package identity

import (
	"sync"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kimhsiao/memostream/internal/errors"
	"github.com/kimhsiao/memostream/internal/logging"
)

// Identity is an opaque authenticated principal.
type Identity struct {
	ID string
}

// Provider is the external authentication collaborator.
type Provider interface {
	// Current returns the identity and whether one is present.
	Current() (Identity, bool)

	// OnChange registers a callback invoked on every present/absent
	// transition. The returned function unregisters it.
	OnChange(fn func(Identity, bool)) (unsubscribe func())

	// SignOut drops the current identity.
	SignOut()
}

// TokenProvider derives identity presence from JWT bearer tokens.
type TokenProvider struct {
	secret []byte

	mu        sync.Mutex
	current   Identity
	present   bool
	nextID    int
	callbacks map[int]func(Identity, bool)
}

// NewTokenProvider creates a provider validating HMAC-signed tokens.
func NewTokenProvider(secret []byte) *TokenProvider {
	return &TokenProvider{
		secret:    secret,
		callbacks: make(map[int]func(Identity, bool)),
	}
}

// SetToken installs a bearer token. A valid token flips the signal to
// present; an invalid or expired token returns an error and leaves the
// current state untouched.
func (p *TokenProvider) SetToken(raw string) error {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New(errors.ErrTokenInvalid, "unexpected signing method")
		}
		return p.secret, nil
	})
	if err != nil {
		return errors.Wrap(errors.ErrTokenInvalid, "token rejected", err)
	}

	subject, err := token.Claims.GetSubject()
	if err != nil || subject == "" {
		return errors.New(errors.ErrTokenInvalid, "token has no subject")
	}

	p.mu.Lock()
	p.current = Identity{ID: subject}
	p.present = true
	callbacks := p.snapshotCallbacksLocked()
	id := p.current
	p.mu.Unlock()

	logging.Info("identity present", map[string]interface{}{"subject": subject})
	for _, fn := range callbacks {
		fn(id, true)
	}
	return nil
}

// Current returns the identity and whether one is present.
func (p *TokenProvider) Current() (Identity, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current, p.present
}

// OnChange registers a transition callback.
func (p *TokenProvider) OnChange(fn func(Identity, bool)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := p.nextID
	p.nextID++
	p.callbacks[id] = fn

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.callbacks, id)
	}
}

// SignOut drops the current identity and notifies observers.
func (p *TokenProvider) SignOut() {
	p.mu.Lock()
	wasPresent := p.present
	p.present = false
	p.current = Identity{}
	callbacks := p.snapshotCallbacksLocked()
	p.mu.Unlock()

	if !wasPresent {
		return
	}

	logging.Info("identity absent")
	for _, fn := range callbacks {
		fn(Identity{}, false)
	}
}

func (p *TokenProvider) snapshotCallbacksLocked() []func(Identity, bool) {
	out := make([]func(Identity, bool), 0, len(p.callbacks))
	for _, fn := range p.callbacks {
		out = append(out, fn)
	}
	return out
}
