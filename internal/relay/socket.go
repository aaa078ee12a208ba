package relay

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/copywrite-ai/nano-web-git/internal/gitmsg"
	"github.com/copywrite-ai/nano-web-git/internal/wire"
)

const (
	socketChannelSize  = 64
	socketPingPeriod   = 15 * time.Second
	socketPingTimeout  = 5 * time.Second
	socketWriteTimeout = 5 * time.Second
	socketMaxFrameSize = 64 * 1024 * 1024 // git pack responses can be large
)

// Socket is a message-oriented connection to the fetch relay daemon.
type Socket struct {
	conn      *websocket.Conn
	encoding  wire.Encoding
	msgRx     chan *gitmsg.Message
	msgTx     chan *gitmsg.Message
	closed    chan struct{}
	closing   chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// DialSocket connects to the daemon's /relay endpoint.
func DialSocket(ctx context.Context, url string) (*Socket, error) {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	conn.SetReadLimit(socketMaxFrameSize)

	s := &Socket{
		conn:     conn,
		encoding: wire.EncodingMsgPack,
		msgRx:    make(chan *gitmsg.Message, socketChannelSize),
		msgTx:    make(chan *gitmsg.Message, socketChannelSize),
		closed:   make(chan struct{}),
		closing:  make(chan struct{}),
	}
	s.start(ctx)
	return s, nil
}

// NewSocket wraps an already-accepted connection (the daemon side).
func NewSocket(ctx context.Context, conn *websocket.Conn, enc wire.Encoding) *Socket {
	conn.SetReadLimit(socketMaxFrameSize)
	s := &Socket{
		conn:     conn,
		encoding: enc,
		msgRx:    make(chan *gitmsg.Message, socketChannelSize),
		msgTx:    make(chan *gitmsg.Message, socketChannelSize),
		closed:   make(chan struct{}),
		closing:  make(chan struct{}),
	}
	s.start(ctx)
	return s
}

func (s *Socket) start(ctx context.Context) {
	s.wg.Add(2)
	go s.readLoop(ctx)
	go s.writeLoop(ctx)
}

// Recv returns the channel of inbound messages. It is closed when the
// connection goes down.
func (s *Socket) Recv() <-chan *gitmsg.Message {
	return s.msgRx
}

// Send queues a message for transmission.
func (s *Socket) Send(msg *gitmsg.Message) error {
	select {
	case <-s.closed:
		return ErrRelayClosed
	case <-s.closing:
		return ErrRelayClosed
	case s.msgTx <- msg:
		return nil
	}
}

// Done is closed once both loops have shut down.
func (s *Socket) Done() <-chan struct{} {
	return s.closed
}

func (s *Socket) Close() {
	s.closeConnection(websocket.StatusNormalClosure, "shutdown")
}

func (s *Socket) closeConnection(status websocket.StatusCode, reason string) {
	s.closeOnce.Do(func() {
		close(s.closing)
		s.conn.Close(status, reason)
		s.wg.Wait()
		close(s.closed)
		close(s.msgRx)
	})
}

func (s *Socket) readLoop(ctx context.Context) {
	defer func() {
		slog.Debug("relay socket reader shutdown")
		s.wg.Done()
		s.closeConnection(websocket.StatusNormalClosure, "shutdown")
	}()

	for {
		typ, raw, err := s.conn.Read(ctx)
		if err != nil {
			if !isExpectedCloseError(err) {
				slog.Warn("relay socket recv", "error", err)
			}
			return
		}

		msg, _, err := wire.Unmarshal(typ, raw)
		if err != nil {
			slog.Warn("relay socket recv decode", "error", err)
			continue
		}

		// blocking send: a slow consumer backpressures the websocket
		// instead of losing messages
		select {
		case <-s.closing:
			return
		case s.msgRx <- msg:
		}
	}
}

func (s *Socket) writeLoop(ctx context.Context) {
	pingTicker := time.NewTicker(socketPingPeriod)
	defer func() {
		slog.Debug("relay socket writer shutdown")
		pingTicker.Stop()
		s.wg.Done()
		s.closeConnection(websocket.StatusNormalClosure, "shutdown")
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case <-s.closing:
			return

		case msg := <-s.msgTx:
			slog.Debug("relay socket send", "id", msg.Id, "type", msg.Type)

			ctxWrite, cancel := context.WithTimeout(ctx, socketWriteTimeout)
			typ, payload, err := wire.Marshal(msg, s.encoding)
			if err == nil {
				err = s.conn.Write(ctxWrite, typ, payload)
			}
			cancel()

			if err != nil {
				slog.Error("relay socket send", "error", err)
				return
			}

		case <-pingTicker.C:
			ctxPing, cancel := context.WithTimeout(ctx, socketPingTimeout)
			err := s.conn.Ping(ctxPing)
			cancel()

			if err != nil {
				slog.Error("relay socket ping", "error", err)
				return
			}
		}
	}
}

func isExpectedCloseError(err error) bool {
	if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
		return true
	}
	return errors.Is(err, io.EOF) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, net.ErrClosed)
}
