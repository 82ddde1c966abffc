// Package notify holds the short-lived status message each profile sees
// after a booking action. A newer message replaces the previous one and
// every message disappears on its own after the configured TTL.
package notify

import (
	"context"
	"sync"
	"time"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeveritySuccess Severity = "success"
)

type Message struct {
	Severity  Severity  `json:"severity"`
	Text      string    `json:"text"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type Board interface {
	Post(ctx context.Context, profileID string, severity Severity, text string) error
	Current(ctx context.Context, profileID string) (Message, bool, error)
}

// MemoryBoard expires messages against an injected clock.
type MemoryBoard struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	messages map[string]Message
}

func NewMemoryBoard(ttl time.Duration, now func() time.Time) *MemoryBoard {
	if now == nil {
		now = time.Now
	}
	return &MemoryBoard{
		ttl:      ttl,
		now:      now,
		messages: make(map[string]Message),
	}
}

func (b *MemoryBoard) Post(ctx context.Context, profileID string, severity Severity, text string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.messages[profileID] = Message{
		Severity:  severity,
		Text:      text,
		ExpiresAt: b.now().Add(b.ttl),
	}
	return nil
}

func (b *MemoryBoard) Current(ctx context.Context, profileID string) (Message, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	msg, ok := b.messages[profileID]
	if !ok {
		return Message{}, false, nil
	}
	if !b.now().Before(msg.ExpiresAt) {
		delete(b.messages, profileID)
		return Message{}, false, nil
	}
	return msg, true, nil
}
