// Package chat is the terminal client: one channel, one role, packets
// rendered as a conversation.
package chat

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/gorilla/websocket"
	"github.com/rivo/tview"
	"go.uber.org/zap"

	"github.com/kwek20/streams/internal/model"
	"github.com/kwek20/streams/internal/protocol/channel"
	"github.com/kwek20/streams/internal/protocol/link"
	"github.com/kwek20/streams/internal/protocol/message"
	stateRepo "github.com/kwek20/streams/internal/repository/state"
	"github.com/kwek20/streams/internal/utils/log"
)

type (
	// Config carries everything the app needs to join a channel.
	Config struct {
		Host        string
		Name        string
		Passphrase  string
		Role        string
		Seed        string
		Channel     string
		ChannelIdx  uint64
		MultiBranch bool
		Psk         string
	}

	// Participant is the channel role the app drives.
	Participant interface {
		Channel() link.Link
		PublicKey() ed25519.PublicKey
		HasAccess() bool
		SignedPacket(ctx context.Context, public, masked []byte) (link.Link, error)
		Process(ctx context.Context, msg *model.Message) (*channel.Received, error)
		Sync(ctx context.Context) ([]*channel.Received, error)
		Export() *model.Snapshot
	}

	App struct {
		app     *tview.Application
		chatbox *tview.TextView
		input   *tview.InputField

		stateRepo *stateRepo.StateRepo
		cfg       Config

		// roleMu serializes role calls: the input handler and the push
		// listener both drive the same channel instance.
		roleMu sync.Mutex
		role   Participant
		conn   *websocket.Conn
	}
)

func NewApp(stateRepo *stateRepo.StateRepo, cfg Config) *App {
	return &App{
		app:       tview.NewApplication(),
		stateRepo: stateRepo,
		cfg:       cfg,
	}
}

func (c *App) Run(ctx context.Context) {
	role, err := c.resumeOrJoin(ctx)
	if err != nil {
		log.Fatal("join channel failed", zap.Error(err))
	}
	c.role = role

	c.conn, err = c.attachWebhook(role.Channel().Base)
	if err != nil {
		log.Fatal("attach to gateway failed", zap.Error(err))
	}

	go c.listenOnWebhook()
	c.renderUI()
}

func (c *App) Stop() {
	if c.role == nil {
		return
	}
	if err := c.saveState(context.TODO()); err != nil {
		log.Error("save state failed", zap.Error(err))
	}
}

// blocking function
func (c *App) renderUI() {
	c.chatbox = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	c.chatbox.SetBorder(true).SetTitle(fmt.Sprintf(" Channel %.16s ", c.role.Channel().Base.String()))

	c.input = tview.NewInputField().
		SetLabel("Message: ").
		SetFieldWidth(0)
	c.input.SetBorder(true).SetTitle(" New Message ")

	c.input.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEscape {
			c.app.Stop()
			return
		}
		if key == tcell.KeyEnter {
			text := c.input.GetText()
			if text == "" {
				return
			}

			go func(msg string) {
				err := c.SendMessage(msg)
				if err != nil {
					c.app.Suspend(func() {
						log.Error("Send message failed", zap.Error(err))
					})
				}
			}(text)
		}
	})

	fmt.Fprintf(c.chatbox, "[grey]channel %s[-]\n", c.role.Channel())

	layout := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(c.chatbox, 0, 1, false).
		AddItem(c.input, 3, 0, true)

	if err := c.app.SetRoot(layout, true).SetFocus(c.input).Run(); err != nil {
		log.Fatal("cannot init app", zap.Error(err))
	}
}

func (c *App) listenOnWebhook() {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			log.Debug("worker web socket closed", zap.Error(err))
			c.conn.Close()
			break
		}

		var msg model.Message
		err = json.Unmarshal(data, &msg)
		if err != nil {
			log.Error("Unmarshal message failed", zap.Error(err))
			continue
		}

		c.handleFrame(&msg)
	}
}

// handleFrame feeds one pushed frame through the channel state machine.
// Replays are our own frames echoing back; sequence skew means the push
// socket raced ahead of the chain, so the missing frames are pulled in
// through a sync.
func (c *App) handleFrame(msg *model.Message) {
	r, err := c.process(context.TODO(), msg)
	if err != nil {
		var skew *channel.SequenceSkewError
		switch {
		case errors.Is(err, channel.ErrReplay):
			return
		case errors.Is(err, message.ErrNoKeyloadAccess):
			c.displayLine("[grey]a frame for other members passed by[-]\n")
			return
		case errors.As(err, &skew):
			recs, err := c.sync(context.TODO())
			if err != nil && !errors.Is(err, message.ErrNoKeyloadAccess) {
				log.Error("catch-up sync failed", zap.Error(err))
				return
			}
			for _, r := range recs {
				c.display(r)
			}
			return
		default:
			log.Error("process frame failed", zap.Error(err))
			return
		}
	}
	c.display(r)
	c.onReceived(r)
}

func (c *App) SendMessage(msg string) error {
	c.roleMu.Lock()
	if !c.role.HasAccess() {
		c.roleMu.Unlock()
		return fmt.Errorf("no session key yet, wait for a keyload")
	}
	_, err := c.role.SignedPacket(context.TODO(), nil, []byte(msg))
	c.roleMu.Unlock()
	if err != nil {
		return err
	}

	c.app.QueueUpdateDraw(func() {
		fmt.Fprintf(c.chatbox, "[yellow]You:[-] %s\n", msg)
		c.input.SetText("")
		c.chatbox.ScrollToEnd()
	})
	return nil
}

func (c *App) display(r *channel.Received) {
	if r == nil {
		return
	}

	var line string
	switch r.Type {
	case message.ContentSubscribe:
		line = fmt.Sprintf("[grey]%.8x joined the channel[-]\n", r.Sender)
	case message.ContentUnsubscribe:
		line = fmt.Sprintf("[grey]%.8x left the channel[-]\n", r.Sender)
	case message.ContentKeyload:
		line = "[grey]session key updated[-]\n"
	case message.ContentSignedPacket, message.ContentTaggedPacket:
		if r.Sender.Equal(c.role.PublicKey()) {
			return
		}
		body := r.Masked
		if len(body) == 0 {
			body = r.Public
		}
		line = fmt.Sprintf("[green]%.8x:[-] %s\n", r.Sender, string(body))
	default:
		return
	}
	c.displayLine(line)
}

func (c *App) displayLine(line string) {
	c.app.QueueUpdateDraw(func() {
		fmt.Fprint(c.chatbox, line)
		c.chatbox.ScrollToEnd()
	})
}

func (c *App) process(ctx context.Context, msg *model.Message) (*channel.Received, error) {
	c.roleMu.Lock()
	defer c.roleMu.Unlock()
	return c.role.Process(ctx, msg)
}

func (c *App) sync(ctx context.Context) ([]*channel.Received, error) {
	c.roleMu.Lock()
	defer c.roleMu.Unlock()
	return c.role.Sync(ctx)
}
