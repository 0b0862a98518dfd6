package transport

import (
	"context"
	"sync"

	"github.com/kwek20/streams/internal/model"
	"github.com/kwek20/streams/internal/protocol/link"
)

type (
	// Bucket is an in-memory transport keyed by address. It is the
	// default for tests and single-process setups.
	Bucket struct {
		mu        sync.RWMutex
		frames    map[string][]*model.Message
		byChannel map[string][]*model.Message
	}
)

func NewBucket() *Bucket {
	return &Bucket{
		frames:    make(map[string][]*model.Message),
		byChannel: make(map[string][]*model.Message),
	}
}

func (b *Bucket) Send(ctx context.Context, msg *model.Message) error {
	l, err := link.Parse(msg.Link)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.frames[msg.Link] = append(b.frames[msg.Link], msg)
	b.byChannel[l.Base.String()] = append(b.byChannel[l.Base.String()], msg)
	return nil
}

func (b *Bucket) Recv(ctx context.Context, l link.Link) ([]*model.Message, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	stored := b.frames[l.String()]
	out := make([]*model.Message, len(stored))
	copy(out, stored)
	return out, nil
}

// History returns every frame published to the channel, in publish
// order.
func (b *Bucket) History(ctx context.Context, base link.Base) ([]*model.Message, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	stored := b.byChannel[base.String()]
	out := make([]*model.Message, len(stored))
	copy(out, stored)
	return out, nil
}
