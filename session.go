package nwa

import (
	"context"
	"io"
	"net"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// session is one established connection. The reader goroutine reads a chunk,
// posts it to the client loop and waits to be re-armed before reading again,
// so at most one read is outstanding and the loop decides whether the stream
// is still worth reading.
type session struct {
	id   string
	conn net.Conn
	log  *zap.Logger

	rearm chan struct{}

	ctx    context.Context
	cancel context.CancelFunc

	closeOnce sync.Once
}

func newSession(parent context.Context, conn net.Conn, log *zap.Logger) *session {
	ctx, cancel := context.WithCancel(parent)
	id := uuid.NewString()
	return &session{
		id:     id,
		conn:   conn,
		log:    log.With(zap.String("session", id)),
		rearm:  make(chan struct{}, 1),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (s *session) readLoop(bufSize int, post func(event)) {
	buf := make([]byte, bufSize)
	for {
		n, err := s.conn.Read(buf)
		if n == 0 && err == nil {
			err = io.EOF
		}
		if s.ctx.Err() != nil {
			return
		}

		post(event{kind: evRead, sess: s, data: buf[:n], err: err})
		if err != nil {
			return
		}

		select {
		case <-s.rearm:
		case <-s.ctx.Done():
			return
		}
	}
}

// rearmRead lets the reader issue the next read.
func (s *session) rearmRead() {
	select {
	case s.rearm <- struct{}{}:
	default:
	}
}

func (s *session) close() {
	s.closeOnce.Do(func() {
		s.cancel()
		_ = s.conn.Close()
	})
}
