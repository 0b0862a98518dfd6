// Package gateway is the store-and-forward node between channel
// participants. It never holds keys: frames are stored and fanned out
// as opaque envelopes, and the only inspection is the plaintext header.
package gateway

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/kwek20/streams/internal/model"
	"github.com/kwek20/streams/internal/protocol/link"
	"github.com/kwek20/streams/internal/protocol/message"
	"github.com/kwek20/streams/internal/service/transport"
	"github.com/kwek20/streams/internal/utils/log"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type (
	// Store is what the gateway needs from its backing transport:
	// per-address frame storage plus the per-channel history replayed to
	// attaching listeners.
	Store interface {
		transport.Transport
		History(ctx context.Context, base link.Base) ([]*model.Message, error)
	}

	// listener is one attached socket. Its own lock serializes writes,
	// so a stalled connection slows nobody but itself.
	listener struct {
		mu   sync.Mutex
		conn *websocket.Conn
	}

	HttpServer struct {
		addr  string
		store Store

		mu       sync.Mutex
		attached map[string][]*listener
	}
)

func (l *listener) send(msg *model.Message) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conn.WriteJSON(msg)
}

func NewHttpServer(addr string, store Store) *HttpServer {
	return &HttpServer{
		addr:     addr,
		store:    store,
		attached: make(map[string][]*listener),
	}
}

func (s *HttpServer) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/messages", s.HandlePublish()).Methods(http.MethodPost)
	r.HandleFunc("/messages/{link}", s.HandleFetch()).Methods(http.MethodGet)
	r.HandleFunc("/attach", s.HandleAttach()).Methods(http.MethodGet)
	return r
}

func (s *HttpServer) Run() error {
	return http.ListenAndServe(s.addr, s.Router())
}

// HandlePublish stores a frame envelope and pushes it to every
// connection attached to the frame's channel. The header must parse,
// everything after it is opaque here.
func (s *HttpServer) HandlePublish() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var msg model.Message
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			http.Error(w, "malformed envelope", http.StatusBadRequest)
			return
		}

		l, err := link.Parse(msg.Link)
		if err != nil {
			http.Error(w, "malformed address", http.StatusBadRequest)
			return
		}

		hdf, _, err := message.UnwrapHDF(msg.Body, l)
		if err != nil {
			log.Info("rejected frame", zap.String("link", msg.Link), zap.Error(err))
			http.Error(w, "malformed frame", http.StatusBadRequest)
			return
		}

		if err := s.store.Send(ctx, &msg); err != nil {
			log.Error("store frame failed", zap.Error(err))
			http.Error(w, "store frame failed", http.StatusInternalServerError)
			return
		}

		log.Info("frame stored",
			zap.String("link", msg.Link),
			zap.Uint8("content_type", hdf.ContentType()),
			zap.Uint64("seq", hdf.SeqNum()))

		s.push(l.Base.String(), &msg)
		w.WriteHeader(http.StatusOK)
	}
}

// HandleFetch returns every envelope stored at one address.
func (s *HttpServer) HandleFetch() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		vars := mux.Vars(r)
		l, err := link.Parse(vars["link"])
		if err != nil {
			http.Error(w, "malformed address", http.StatusBadRequest)
			return
		}

		msgs, err := s.store.Recv(ctx, l)
		if err != nil {
			log.Error("fetch frames failed", zap.Error(err))
			http.Error(w, "fetch frames failed", http.StatusInternalServerError)
			return
		}

		data, err := json.Marshal(msgs)
		if err != nil {
			log.Error("fetch frames failed", zap.Error(err))
			http.Error(w, "fetch frames failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(data)
	}
}

// HandleAttach upgrades to a websocket that first replays the
// channel's history, then receives every frame published from then on.
func (s *HttpServer) HandleAttach() http.HandlerFunc {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true // Allow all origins
		},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		channel := r.URL.Query().Get("channel")
		if channel == "" {
			http.Error(w, "channel cannot be empty", http.StatusBadRequest)
			return
		}

		raw, err := hex.DecodeString(channel)
		if err != nil || len(raw) != link.BaseSize {
			http.Error(w, "malformed channel", http.StatusBadRequest)
			return
		}
		var base link.Base
		copy(base[:], raw)

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			http.Error(w, "Failed to upgrade", http.StatusInternalServerError)
			return
		}

		lst := &listener{conn: conn}
		s.mu.Lock()
		s.attached[channel] = append(s.attached[channel], lst)
		s.mu.Unlock()

		log.Info("listener attached", zap.String("channel", channel))
		go s.readLoop(channel, lst)
		if err := s.forwardHistory(r.Context(), base, lst); err != nil {
			log.Error("forward history failed", zap.Error(err))
		}
	}
}

// forwardHistory replays the stored channel frames to a freshly
// attached connection. The listener's write lock is held across the
// whole replay so live pushes queue behind it instead of interleaving.
func (s *HttpServer) forwardHistory(ctx context.Context, base link.Base, lst *listener) error {
	hist, err := s.store.History(ctx, base)
	if err != nil {
		return err
	}

	lst.mu.Lock()
	defer lst.mu.Unlock()
	for _, msg := range hist {
		if err := lst.conn.WriteJSON(msg); err != nil {
			return err
		}
	}
	return nil
}

// readLoop drains the client side of an attached socket until it
// closes, then detaches it.
func (s *HttpServer) readLoop(channel string, lst *listener) {
	for {
		if _, _, err := lst.conn.ReadMessage(); err != nil {
			log.Debug("attach web socket closed", zap.Error(err))
			s.detach(channel, lst)
			lst.conn.Close()
			break
		}
	}
}

// push fans a frame out to the channel's listeners. The registry lock
// only covers the snapshot of the list; the writes run outside it.
func (s *HttpServer) push(channel string, msg *model.Message) {
	s.mu.Lock()
	conns := append([]*listener(nil), s.attached[channel]...)
	s.mu.Unlock()

	for _, lst := range conns {
		if err := lst.send(msg); err != nil {
			log.Debug("push web socket closed", zap.Error(err))
			s.detach(channel, lst)
			lst.conn.Close()
		}
	}
}

func (s *HttpServer) detach(channel string, lst *listener) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conns := s.attached[channel]
	for i, l := range conns {
		if l == lst {
			s.attached[channel] = append(conns[:i], conns[i+1:]...)
			break
		}
	}
}
