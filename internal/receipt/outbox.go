package receipt

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// Outbox keeps the most recent receipt of every profile until the page
// downloads it.
type Outbox struct {
	renderer *Renderer

	mu     sync.RWMutex
	latest map[string]Document
}

func NewOutbox(renderer *Renderer) *Outbox {
	return &Outbox{
		renderer: renderer,
		latest:   make(map[string]Document),
	}
}

func (o *Outbox) Issue(ctx context.Context, profileID string, rc Receipt) error {
	doc, err := o.renderer.Receipt(rc)
	if err != nil {
		return err
	}

	o.mu.Lock()
	o.latest[profileID] = doc
	o.mu.Unlock()

	log.Ctx(ctx).Debug().
		Str("profile", profileID).
		Str("file", doc.Filename).
		Msg("receipt ready")
	return nil
}

func (o *Outbox) Latest(profileID string) (Document, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	doc, ok := o.latest[profileID]
	return doc, ok
}
