package mem

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// InviteTokenStore holds single-use member invitation tokens. Tokens live in
// process memory only; an unconsumed invite simply expires and the admin
// re-sends it.
type InviteTokenStore interface {
	Set(token string, memberID uuid.UUID, ttl time.Duration)

	// Consume returns the member id for token if not expired, and removes
	// the token (single-use). Returns uuid.Nil if missing/expired.
	Consume(token string) uuid.UUID
}

type inviteEntry struct {
	memberID  uuid.UUID
	expiresAt time.Time
}

type InviteTokens struct {
	mu   sync.RWMutex
	data map[string]inviteEntry
}

func NewInviteTokens() *InviteTokens {
	return &InviteTokens{
		data: make(map[string]inviteEntry),
	}
}

func (s *InviteTokens) Set(token string, memberID uuid.UUID, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[token] = inviteEntry{
		memberID:  memberID,
		expiresAt: time.Now().Add(ttl),
	}
}

func (s *InviteTokens) Consume(token string) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.data[token]
	if !ok {
		return uuid.Nil
	}
	if time.Now().After(e.expiresAt) {
		delete(s.data, token)
		return uuid.Nil
	}
	delete(s.data, token)
	return e.memberID
}
