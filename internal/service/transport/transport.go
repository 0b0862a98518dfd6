// Package transport moves wrapped frames between channel participants.
// A transport is append-only per address: frames published at a link
// accumulate and Recv returns all of them in publish order.
package transport

import (
	"context"

	"github.com/kwek20/streams/internal/model"
	"github.com/kwek20/streams/internal/protocol/link"
)

type (
	Transport interface {
		Send(ctx context.Context, msg *model.Message) error
		Recv(ctx context.Context, l link.Link) ([]*model.Message, error)
	}
)
