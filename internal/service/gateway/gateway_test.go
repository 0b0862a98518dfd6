package gateway

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kwek20/streams/internal/model"
	"github.com/kwek20/streams/internal/protocol/channel"
	"github.com/kwek20/streams/internal/protocol/link"
	"github.com/kwek20/streams/internal/service/transport"
)

func startGateway(t *testing.T) (*httptest.Server, string) {
	t.Helper()
	srv := httptest.NewServer(NewHttpServer("", transport.NewBucket()).Router())
	t.Cleanup(srv.Close)
	return srv, strings.TrimPrefix(srv.URL, "http://")
}

func TestGatewayRoundTrip(t *testing.T) {
	ctx := context.Background()
	srv, host := startGateway(t)

	tr := transport.NewHTTP(host)
	a, err := channel.NewAuthor([]byte("gateway author seed"), 7, false, tr)
	if err != nil {
		t.Fatal(err)
	}
	ann, err := a.Announce(ctx)
	if err != nil {
		t.Fatalf("announce through gateway: %v", err)
	}

	s, err := channel.NewSubscriber([]byte("gateway sub seed"), tr)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Attach(ctx, ann); err != nil {
		t.Fatalf("attach through gateway: %v", err)
	}
	if s.Channel() != ann {
		t.Fatalf("attached to %v, want %v", s.Channel(), ann)
	}

	t.Run("rejects non-json body", func(t *testing.T) {
		resp, err := http.Post(srv.URL+"/messages", "application/json", strings.NewReader("not json"))
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
		}
	})

	t.Run("rejects malformed address", func(t *testing.T) {
		resp, err := http.Post(srv.URL+"/messages", "application/json",
			strings.NewReader(`{"link":"zzz","body":"AAAA"}`))
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
		}
	})

	t.Run("rejects truncated frame", func(t *testing.T) {
		msgs, err := tr.Recv(ctx, ann)
		if err != nil || len(msgs) == 0 {
			t.Fatalf("fetch announce: %v", err)
		}
		short := &model.Message{Link: msgs[0].Link, Body: msgs[0].Body[:8]}
		if err := tr.Send(ctx, short); err == nil {
			t.Fatal("gateway accepted a truncated frame")
		}
	})

	t.Run("rejects malformed fetch address", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/messages/zzz")
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
		}
	})
}

func TestGatewayAttachPush(t *testing.T) {
	ctx := context.Background()
	_, host := startGateway(t)

	tr := transport.NewHTTP(host)
	a, err := channel.NewAuthor([]byte("push author seed"), 1, false, tr)
	if err != nil {
		t.Fatal(err)
	}

	ann, err := a.Announce(ctx)
	if err != nil {
		t.Fatal(err)
	}

	conn, _, err := websocket.DefaultDialer.Dial(
		"ws://"+host+"/attach?channel="+ann.Base.String(), nil)
	if err != nil {
		t.Fatalf("attach dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var got model.Message
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read replayed history: %v", err)
	}
	if got.Link != ann.String() {
		t.Fatalf("history replay starts at %s, want %s", got.Link, ann)
	}

	pkt, err := a.SignedPacket(ctx, []byte("pushed"), nil)
	if err != nil {
		t.Fatal(err)
	}

	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read pushed frame: %v", err)
	}
	if got.Link != pkt.String() {
		t.Fatalf("pushed frame at %s, want %s", got.Link, pkt)
	}

	msgs, err := tr.Recv(ctx, pkt)
	if err != nil || len(msgs) != 1 {
		t.Fatalf("stored frames = %d (%v), want 1", len(msgs), err)
	}
	if !bytes.Equal(msgs[0].Body, got.Body) {
		t.Fatal("pushed body differs from stored body")
	}

	t.Run("rejects empty channel", func(t *testing.T) {
		_, resp, err := websocket.DefaultDialer.Dial("ws://"+host+"/attach", nil)
		if err == nil {
			t.Fatal("dial with no channel succeeded")
		}
		if resp == nil || resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("resp = %v, want %d", resp, http.StatusBadRequest)
		}
	})

	t.Run("rejects malformed channel", func(t *testing.T) {
		_, resp, err := websocket.DefaultDialer.Dial("ws://"+host+"/attach?channel=abc", nil)
		if err == nil {
			t.Fatal("dial with short channel succeeded")
		}
		if resp == nil || resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("resp = %v, want %d", resp, http.StatusBadRequest)
		}
	})
}

func TestSlowListenerDoesNotStallOthers(t *testing.T) {
	s := NewHttpServer("", transport.NewBucket())
	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)
	host := strings.TrimPrefix(srv.URL, "http://")

	baseSlow := strings.Repeat("aa", link.BaseSize)
	baseLive := strings.Repeat("bb", link.BaseSize)

	slow, _, err := websocket.DefaultDialer.Dial("ws://"+host+"/attach?channel="+baseSlow, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { slow.Close() })

	live, _, err := websocket.DefaultDialer.Dial("ws://"+host+"/attach?channel="+baseLive, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { live.Close() })

	// Flood the slow listener, which never reads, until the server's
	// writer wedges against full socket buffers.
	flood := &model.Message{Link: baseSlow, Body: make([]byte, 64<<10)}
	go func() {
		for i := 0; i < 512; i++ {
			s.push(baseSlow, flood)
		}
	}()
	time.Sleep(200 * time.Millisecond)

	pushed := make(chan struct{})
	go func() {
		s.push(baseLive, &model.Message{Link: baseLive, Body: []byte("through")})
		close(pushed)
	}()
	select {
	case <-pushed:
	case <-time.After(3 * time.Second):
		t.Fatal("push stalled behind an unrelated slow listener")
	}

	live.SetReadDeadline(time.Now().Add(3 * time.Second))
	var got model.Message
	if err := live.ReadJSON(&got); err != nil {
		t.Fatalf("live listener starved: %v", err)
	}
	if string(got.Body) != "through" {
		t.Fatalf("live listener got %q", got.Body)
	}
}
