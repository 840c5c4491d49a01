// Package session implements the per-connection server state machine
// of spec §4.6: a reader task that dispatches Actions through
// internal/ops, a subscriber task that drains the store's change feed,
// and a writer task that serializes both onto one outbound frame
// stream. Modeled on the teacher's Client struct
// (ws/internal/shared/connection.go) and its readPump/writePump split
// (ws/internal/shared/pump_read.go, pump_write.go), generalized from a
// WebSocket connection to a framed net.Conn and from per-channel
// subscription filtering to the single whole-tree change feed the spec
// defines.
package session

import (
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/adred-codev/kanband/internal/change"
	"github.com/adred-codev/kanband/internal/codec"
	"github.com/adred-codev/kanband/internal/metrics"
	"github.com/adred-codev/kanband/internal/node"
	"github.com/adred-codev/kanband/internal/ops"
	"github.com/adred-codev/kanband/internal/store"
	"github.com/adred-codev/kanband/internal/wire"
)

// outboundBuffer is the bounded per-session channel capacity. A
// session that cannot keep up is dropped rather than allowed to block
// the store's change-feed publisher (mirrors the teacher's slow-client
// handling in ws/internal/shared/connection.go).
const outboundBuffer = 256

// maxSlowWrites is the number of consecutive timed-out writes at which
// a session is torn down as too slow (the first maxSlowWrites-1 only
// drop their response).
const maxSlowWrites = 3

// slowWriteTimeout is how long enqueue waits for outbound buffer space
// before counting a strike against the session (mirrors the teacher's
// 100ms slow-client detection window).
const slowWriteTimeout = 100 * time.Millisecond

// Session owns one accepted connection's OPEN -> CLOSING -> CLOSED
// lifecycle.
type Session struct {
	conn   net.Conn
	store  *store.Store
	logger zerolog.Logger

	out       chan codec.Response
	closeOnce sync.Once
	done      chan struct{}

	slowStrikes atomic.Int32
}

// New wraps an accepted connection. Call Run to drive it to
// completion; Run blocks until the session closes.
func New(conn net.Conn, s *store.Store, logger zerolog.Logger) *Session {
	return &Session{
		conn:   conn,
		store:  s,
		logger: logger.With().Str("remote", conn.RemoteAddr().String()).Logger(),
		out:    make(chan codec.Response, outboundBuffer),
		done:   make(chan struct{}),
	}
}

// Run drives the session: reader, subscriber, and writer tasks, torn
// down together on end-of-stream or any socket error.
func (s *Session) Run() {
	metrics.SessionsTotal.Inc()
	metrics.SessionsActive.Inc()
	defer metrics.SessionsActive.Dec()

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		s.readLoop()
	}()
	go func() {
		defer wg.Done()
		s.subscribeLoop()
	}()

	s.writeLoop() // runs on the calling goroutine until close
	wg.Wait()
}

// close is safe to call from any of the three tasks; only the first
// caller's reason takes effect.
func (s *Session) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.conn.Close()
	})
}

func (s *Session) readLoop() {
	defer s.close()
	for {
		payload, err := wire.ReadFrame(s.conn)
		if errors.Is(err, wire.ErrEndOfStream) {
			s.logger.Debug().Msg("client sent end-of-stream")
			return
		}
		if err != nil {
			s.logger.Debug().Err(err).Msg("read error, closing session")
			return
		}

		action, err := codec.DecodeAction(payload)
		if err != nil {
			// Non-domain (codec) fault: log and drop the request, do
			// not reply. Spec §4.4/§7.
			s.logger.Warn().Err(err).Msg("dropping malformed action")
			continue
		}

		resp, err := ops.Dispatch(s.store, action)
		if err != nil {
			s.logger.Error().Err(err).Msg("dropping request after non-domain store fault")
			continue
		}

		if !s.enqueue(resp) {
			return
		}
	}
}

func (s *Session) subscribeLoop() {
	ch, token := s.store.Subscribe(outboundBuffer)
	defer s.store.Unsubscribe(token)

	for {
		select {
		case <-s.done:
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			resp, ok := responseFromEvent(ev)
			if !ok {
				continue
			}
			metrics.SubscriptionFanoutLatency.Observe(time.Since(ev.Published).Seconds())
			if !s.enqueue(resp) {
				return
			}
		}
	}
}

// responseFromEvent converts a content-tree change into the unsolicited
// response a session pushes to its client, per spec §4.6: Insert maps
// to Update(node) (covers both new posts and edits — and the parent
// top-row bump, which is itself an Insert), Remove maps to a
// minimal Delete(node) carrying only the id (design note §9(b)).
func responseFromEvent(ev change.Event) (codec.Response, bool) {
	switch ev.Kind {
	case change.Insert:
		n, err := codec.UnmarshalNode(ev.Value)
		if err != nil {
			return codec.Response{}, false
		}
		return codec.Response{Kind: codec.ResponseUpdate, Node: n}, true
	case change.Remove:
		return codec.Response{Kind: codec.ResponseDelete, Node: node.Node{ID: ev.Key}}, true
	default:
		return codec.Response{}, false
	}
}

// enqueue attempts to hand resp to the writer, tracking consecutive
// slow-write strikes and tearing the session down once it's clearly
// too slow to keep up (mirrors the teacher's sendAttempts /
// slowClientWarned fields in ws/internal/shared/connection.go).
func (s *Session) enqueue(resp codec.Response) bool {
	select {
	case s.out <- resp:
		s.slowStrikes.Store(0)
		return true
	case <-s.done:
		return false
	default:
	}

	timer := time.NewTimer(slowWriteTimeout)
	defer timer.Stop()
	select {
	case s.out <- resp:
		s.slowStrikes.Store(0)
		return true
	case <-s.done:
		return false
	case <-timer.C:
		if s.slowStrikes.Add(1) >= maxSlowWrites {
			metrics.SessionsSlowDisconnected.Inc()
			s.logger.Warn().Msg("session too slow, closing")
			s.close()
			return false
		}
		return true // drop this one response, give the session another chance
	}
}

func (s *Session) writeLoop() {
	defer s.close()
	for {
		select {
		case <-s.done:
			return
		case resp := <-s.out:
			if err := wire.WriteFrame(s.conn, codec.EncodeResponse(resp)); err != nil {
				s.logger.Debug().Err(err).Msg("write error, closing session")
				return
			}
		}
	}
}
