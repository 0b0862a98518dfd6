package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/kwek20/streams/internal/model"
	"github.com/kwek20/streams/internal/protocol/link"
)

type (
	// HTTP is a transport that publishes and fetches through a gateway
	// instead of holding a store of its own.
	HTTP struct {
		host string
	}
)

func NewHTTP(host string) *HTTP {
	return &HTTP{
		host: host,
	}
}

func (h *HTTP) Send(ctx context.Context, msg *model.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	u := url.URL{
		Scheme: "http",
		Host:   h.host,
		Path:   "/messages",
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}

	defer resp.Body.Close()
	defer io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gateway: publish returned %s", resp.Status)
	}
	return nil
}

func (h *HTTP) Recv(ctx context.Context, l link.Link) ([]*model.Message, error) {
	u := url.URL{
		Scheme: "http",
		Host:   h.host,
		Path:   fmt.Sprintf("/messages/%s", l),
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}

	defer resp.Body.Close()
	defer io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gateway: fetch returned %s", resp.Status)
	}

	var res []*model.Message
	err = json.NewDecoder(resp.Body).Decode(&res)
	if err != nil {
		return nil, err
	}

	return res, nil
}
