package chat

import (
	"net/url"

	"github.com/gorilla/websocket"

	"github.com/kwek20/streams/internal/protocol/link"
)

func (c *App) attachWebhook(base link.Base) (*websocket.Conn, error) {
	params := url.Values{
		"channel": []string{base.String()},
	}

	u := url.URL{
		Scheme:   "ws",
		Host:     c.cfg.Host,
		Path:     "/attach",
		RawQuery: params.Encode(),
	}

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, err
	}

	return conn, nil
}
