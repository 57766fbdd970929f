package invitesdk

import (
	"sync"
	"sync/atomic"
)

// Identity is the signed-in user as reported by the identity provider.
type Identity struct {
	ID          string
	Email       string
	AccessToken string
}

// AuthBus fans "authenticated" events out to its subscribers. Every
// subscriber sees an event in the same loop turn, in subscription order.
type AuthBus struct {
	loop *Loop

	mu   sync.Mutex
	subs []func(Identity)
}

func NewAuthBus(loop *Loop) *AuthBus {
	return &AuthBus{loop: loop}
}

func (b *AuthBus) Subscribe(fn func(Identity)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, fn)
}

// Publish delivers id to all subscribers on the next loop turn.
func (b *AuthBus) Publish(id Identity) {
	b.mu.Lock()
	subs := append([]func(Identity){}, b.subs...)
	b.mu.Unlock()

	b.loop.Post(func() {
		for _, fn := range subs {
			fn(id)
		}
	})
}

// Suppression is the flag the guard raises to keep the default bootstrap
// from writing a role while an invite is being resolved.
type Suppression struct {
	v atomic.Bool
}

func (s *Suppression) Suppress()        { s.v.Store(true) }
func (s *Suppression) Release()         { s.v.Store(false) }
func (s *Suppression) Suppressed() bool { return s.v.Load() }
