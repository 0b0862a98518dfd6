package chat

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kwek20/streams/internal/cryptographic/psk"
	"github.com/kwek20/streams/internal/model"
	"github.com/kwek20/streams/internal/protocol/channel"
	"github.com/kwek20/streams/internal/protocol/link"
	"github.com/kwek20/streams/internal/protocol/message"
	stateRepo "github.com/kwek20/streams/internal/repository/state"
	"github.com/kwek20/streams/internal/service/transport"
	"github.com/kwek20/streams/internal/utils/log"
)

// resumeOrJoin restores the saved role for this name, or joins the
// channel fresh when no snapshot exists. Catch-up happens through the
// gateway's history replay once the webhook attaches.
func (c *App) resumeOrJoin(ctx context.Context) (Participant, error) {
	sealed, err := c.stateRepo.GetByName(ctx, c.cfg.Name)
	if err != nil {
		return nil, err
	}

	if sealed != nil {
		return c.resume(sealed)
	}
	return c.join(ctx)
}

func (c *App) resume(sealed *model.SealedSnapshot) (Participant, error) {
	snap, err := stateRepo.Open(sealed, c.cfg.Passphrase)
	if err != nil {
		return nil, err
	}

	tr := transport.NewHTTP(c.cfg.Host)
	switch snap.Role {
	case channel.RoleAuthor:
		return channel.ResumeAuthor(snap, tr)
	case channel.RoleSubscriber:
		return channel.ResumeSubscriber(snap, tr)
	}
	return nil, fmt.Errorf("snapshot role %q unknown", snap.Role)
}

func (c *App) join(ctx context.Context) (Participant, error) {
	tr := transport.NewHTTP(c.cfg.Host)

	switch c.cfg.Role {
	case channel.RoleAuthor:
		a, err := channel.NewAuthor([]byte(c.cfg.Seed), c.cfg.ChannelIdx, c.cfg.MultiBranch, tr)
		if err != nil {
			return nil, err
		}
		l, err := a.Announce(ctx)
		if err != nil {
			return nil, err
		}
		log.Info("channel announced", zap.String("link", l.String()))
		if c.cfg.Psk != "" {
			a.StorePsk(psk.FromSeed([]byte(c.cfg.Psk)))
			if _, err := a.Keyload(ctx); err != nil {
				return nil, err
			}
		}
		return a, nil

	case channel.RoleSubscriber:
		s, err := channel.NewSubscriber([]byte(c.cfg.Seed), tr)
		if err != nil {
			return nil, err
		}
		ann, err := link.Parse(c.cfg.Channel)
		if err != nil {
			return nil, fmt.Errorf("channel address: %w", err)
		}
		if err := s.Attach(ctx, ann); err != nil {
			return nil, err
		}
		if c.cfg.Psk != "" {
			// Pre-shared key holders read without subscribing.
			s.StorePsk(psk.FromSeed([]byte(c.cfg.Psk)))
			return s, nil
		}
		if _, err := s.Subscribe(ctx); err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("role %q unknown", c.cfg.Role)
}

// onReceived reacts to accepted channel events. The author answers a
// new subscription with a keyload covering the grown membership.
func (c *App) onReceived(r *channel.Received) {
	a, ok := c.role.(*channel.Author)
	if !ok || r == nil || r.Type != message.ContentSubscribe {
		return
	}
	c.roleMu.Lock()
	_, err := a.Keyload(context.TODO())
	c.roleMu.Unlock()
	if err != nil {
		log.Error("keyload for new member failed", zap.Error(err))
	}
}

func (c *App) saveState(ctx context.Context) error {
	c.roleMu.Lock()
	snap := c.role.Export()
	c.roleMu.Unlock()

	sealed, err := stateRepo.Seal(snap, c.cfg.Name, c.cfg.Passphrase)
	if err != nil {
		return err
	}
	return c.stateRepo.Save(ctx, sealed)
}
