package websocket

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/orrery/models"
	"golang.org/x/net/websocket"
)

const (
	sendChanSize = 64

	DefaultIdleTimeout = time.Minute
)

// Observer streams world snapshots to a WebSocket connection.
type Observer struct {
	World *models.World

	// The number of ticks between two snapshots. Defaults to 1.
	SnapshotInterval int

	// The time a client stays silent before being disconnected.
	IdleTimeout time.Duration
}

// NewServer returns a server that streams the world to every connection
// until ctx is done.
func NewServer(ctx context.Context, o Observer) websocket.Server {
	return websocket.Server{
		Handshake: func(c *websocket.Config, r *http.Request) error {
			return nil
		},
		Handler: func(conn *websocket.Conn) {
			defer conn.Close()
			Handle(ctx, conn, o)
		},
	}
}

// Handle streams the world to conn until the connection is closed, the client
// idles or ctx is done.
func Handle(ctx context.Context, conn *websocket.Conn, o Observer) {
	if o.SnapshotInterval <= 0 {
		o.SnapshotInterval = 1
	}
	if o.IdleTimeout <= 0 {
		o.IdleTimeout = DefaultIdleTimeout
	}

	h := handler{
		Conn:     conn,
		Observer: o,
	}
	h.Handle(ctx)
}

type handler struct {
	Observer

	// The WebSocket connection.
	Conn *websocket.Conn

	sendChan       chan Msg
	receiveChan    chan Msg
	disconnectChan chan error

	kindsMutex sync.Mutex
	kinds      []models.EntityKind

	// Only touched by frame handlers.
	frames int
}

func (h *handler) Handle(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	instrumentConnect()
	defer instrumentDisconnect()

	logs.WithTag("world_id", h.World.ID).
		WithTag("remote_addr", h.remoteAddr()).
		Info("new observer is connected")

	h.disconnectChan = make(chan error, 8)
	h.sendChan = make(chan Msg, sendChanSize)
	h.receiveChan = make(chan Msg, sendChanSize)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		h.startSending(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		h.startReceiving(ctx)
	}()

	cancelFrame := h.World.HandleFrame(h.handleFrame)
	defer cancelFrame()

	idleTimer := time.NewTimer(h.IdleTimeout)
	defer idleTimer.Stop()

	for ctx.Err() == nil {
		select {
		case <-ctx.Done():
			h.handleDisconnect(ctx.Err())

		case <-idleTimer.C:
			h.disconnect(errors.New("idle connection").WithTag("duration", h.IdleTimeout))

		case msg := <-h.receiveChan:
			idleTimer.Stop()
			idleTimer.Reset(h.IdleTimeout)

			if err := h.handleMessage(ctx, msg); err != nil {
				h.disconnect(errors.New("handling message failed").Wrap(err))
			}

		case err := <-h.disconnectChan:
			h.handleDisconnect(err)
			// cancel context so go routines can cleanly exit
			cancel()
		}
	}

	wg.Wait()
}

func (h *handler) handleFrame() {
	h.frames++
	if h.frames%h.SnapshotInterval != 0 {
		return
	}

	msg := NewSnapshot(h.World.Tick()+1, h.World.Entities(h.subscribedKinds()...))
	select {
	case h.sendChan <- msg:
	default:
		instrumentDroppedSnapshot()
	}
}

func (h *handler) handleMessage(ctx context.Context, msg Msg) error {
	switch msg.Type {
	case MsgTypePing:
		h.send(ctx, Msg{
			Type:      MsgTypePong,
			RequestID: msg.RequestID,
		})

	case MsgTypeSubscribe:
		kinds, err := ParseKinds(msg.Kinds)
		if err != nil {
			return err
		}
		h.subscribe(kinds)

		h.send(ctx, Msg{
			Type:      MsgTypeSubscribe,
			RequestID: msg.RequestID,
			Kinds:     msg.Kinds,
		})
	}
	return nil
}

func (h *handler) subscribe(kinds []models.EntityKind) {
	h.kindsMutex.Lock()
	defer h.kindsMutex.Unlock()

	h.kinds = kinds
}

func (h *handler) subscribedKinds() []models.EntityKind {
	h.kindsMutex.Lock()
	defer h.kindsMutex.Unlock()

	return h.kinds
}

func (h *handler) send(ctx context.Context, msg Msg) {
	select {
	case h.sendChan <- msg:
	case <-ctx.Done():
	}
}

func (h *handler) startSending(ctx context.Context) {
	defer func() {
		for len(h.sendChan) != 0 {
			<-h.sendChan
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case msg := <-h.sendChan:
			if err := Codec.Send(h.Conn, msg); err != nil {
				h.disconnect(errors.New("sending message failed").Wrap(err))
				return
			}
			instrumentSentMsg(msg.Type)
		}
	}
}

func (h *handler) startReceiving(ctx context.Context) {
	for {
		var msg Msg
		if err := Codec.Receive(h.Conn, &msg); err != nil {
			h.disconnect(errors.New("receiving message failed").Wrap(err))
			return
		}
		instrumentReceivedMsg(msgTypeLabelValue(msg.Type))

		select {
		case h.receiveChan <- msg:
		case <-ctx.Done():
			return
		}
	}
}

func (h *handler) disconnect(err error) {
	select {
	case h.disconnectChan <- err:
	default:
	}
}

func (h *handler) handleDisconnect(err error) {
	h.Conn.Close()

	logs.WithTag("world_id", h.World.ID).
		WithTag("remote_addr", h.remoteAddr()).
		WithTag("reason", err.Error()).
		Info("observer is disconnected")
}

func (h *handler) remoteAddr() string {
	if req := h.Conn.Request(); req != nil {
		return req.RemoteAddr
	}
	return ""
}

func msgTypeLabelValue(msgType string) string {
	switch msgType {
	case MsgTypePing, MsgTypeSubscribe:
		return msgType
	default:
		return "unknown"
	}
}
