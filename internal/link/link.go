// Package link implements the client side of one server connection:
// the Disconnected -> Connecting -> Connected -> (Shutdown | Relink)
// state machine of spec §4.7. It owns the request queue fed by the UI
// and the response channel the UI reads from.
//
// The dial/reader/writer shape is grounded in the teacher's load
// generator, loadtest/main.go's Connection.Connect/readPump/writePump
// (dial, spawn reader+writer goroutines, idempotent close via
// sync.Once), adapted from a WebSocket dial to the framed-TCP dial of
// internal/wire, and from a fixed endpoint to one that can be swapped
// on Relink.
package link

import (
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/adred-codev/kanband/internal/codec"
	"github.com/adred-codev/kanband/internal/kerr"
	"github.com/adred-codev/kanband/internal/wire"
)

// State is the link's current lifecycle phase.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Stopped // terminal: Shutdown was processed
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// ctrl distinguishes ordinary requests from the two control requests
// that drive the lifecycle (spec §4.7).
type ctrlKind int

const (
	ctrlNone ctrlKind = iota
	ctrlShutdown
	ctrlRelink
)

// Request is one entry on the client's outbound queue: either a
// domain Action or one of the two control requests.
type Request struct {
	Action  codec.Action
	ctrl    ctrlKind
	endpoint string // new endpoint for a Relink request; "" keeps the current one
}

// Shutdown builds the control request that terminates the link.
func Shutdown() Request { return Request{ctrl: ctrlShutdown} }

// Relink builds the control request that drops the current connection
// and re-dials, optionally switching endpoints ("" keeps the current one).
func Relink(endpoint string) Request { return Request{ctrl: ctrlRelink, endpoint: endpoint} }

// Post builds an ordinary domain request.
func Post(a codec.Action) Request { return Request{Action: a} }

const dialTimeout = 5 * time.Second

// teardownWait bounds how long Shutdown/Relink waits for the reader to
// notice the socket closing before giving up (spec §5, ~3s bounded
// teardown wait).
const teardownWait = 3 * time.Second

// Link drives one logical connection to the server, reconnecting on
// Relink and never on its own initiative.
type Link struct {
	logger zerolog.Logger

	reqs *unboundedQueue
	ui   chan codec.Response

	mu       sync.RWMutex
	state    State
	endpoint string
}

// New creates a link targeting endpoint. Call Run in its own
// goroutine to start the state machine; it returns once Shutdown is
// processed.
func New(endpoint string, logger zerolog.Logger) *Link {
	return &Link{
		logger:   logger,
		reqs:     newUnboundedQueue(),
		ui:       make(chan codec.Response, 64),
		state:    Disconnected,
		endpoint: endpoint,
	}
}

// Send enqueues r for the writer task. Safe for concurrent use from
// any number of UI producers.
func (l *Link) Send(r Request) { l.reqs.push(r) }

// Responses is the channel the UI reads Responses (including
// Err(NetworkError)) from.
func (l *Link) Responses() <-chan codec.Response { return l.ui }

// State reports the link's current lifecycle phase.
func (l *Link) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

func (l *Link) setState(s State) {
	l.mu.Lock()
	l.state = s
	l.mu.Unlock()
}

// Run drives the state machine to completion (i.e. until a Shutdown
// request is processed). It should be run on its own goroutine; the
// caller observes progress via Responses and State.
func (l *Link) Run() {
	for {
		l.setState(Connecting)
		conn, err := net.DialTimeout("tcp", l.currentEndpoint(), dialTimeout)
		if err != nil {
			l.logger.Warn().Err(err).Str("endpoint", l.currentEndpoint()).Msg("dial failed")
			l.ui <- codec.Response{Kind: codec.ResponseErr, Err: kerr.NetworkError}
			if !l.awaitRelinkOrShutdown() {
				return
			}
			continue
		}

		l.setState(Connected)
		if !l.runConnection(conn) {
			return
		}
	}
}

// runConnection drives one TCP connection's reader/writer pair until
// it fails or a control request ends it. It returns false once the
// link should stop entirely (Shutdown processed).
func (l *Link) runConnection(conn net.Conn) bool {
	done := make(chan struct{})
	closeOnce := sync.Once{}
	closeConn := func() {
		closeOnce.Do(func() {
			close(done)
			conn.Close()
		})
	}

	readErrs := make(chan error, 1)
	go l.readLoop(conn, done, readErrs)

	for {
		select {
		case req := <-l.reqs.out():
			switch req.ctrl {
			case ctrlShutdown:
				_ = wire.WriteEndOfStream(conn)
				l.waitForReaderExit(closeConn, readErrs)
				l.setState(Stopped)
				return false
			case ctrlRelink:
				if req.endpoint != "" {
					l.mu.Lock()
					l.endpoint = req.endpoint
					l.mu.Unlock()
				}
				_ = wire.WriteEndOfStream(conn)
				l.waitForReaderExit(closeConn, readErrs)
				return true
			default:
				if err := wire.WriteFrame(conn, codec.EncodeAction(req.Action)); err != nil {
					closeConn()
					l.ui <- codec.Response{Kind: codec.ResponseErr, Err: kerr.NetworkError}
					l.drainDeadConnection(readErrs)
					return l.awaitRelinkOrShutdown()
				}
			}
		case err := <-readErrs:
			closeConn()
			l.logger.Debug().Err(err).Msg("connection lost")
			l.ui <- codec.Response{Kind: codec.ResponseErr, Err: kerr.NetworkError}
			return l.awaitRelinkOrShutdown()
		}
	}
}

func (l *Link) readLoop(conn net.Conn, done chan struct{}, errs chan<- error) {
	for {
		payload, err := wire.ReadFrame(conn)
		if err != nil {
			// errs has room for this one send, so it never blocks; it is
			// also how waitForReaderExit learns the reader has left after
			// we closed the connection ourselves.
			errs <- err
			return
		}
		resp, err := codec.DecodeResponse(payload)
		if err != nil {
			l.logger.Warn().Err(err).Msg("dropping malformed response")
			continue
		}
		select {
		case l.ui <- resp:
		case <-done:
			errs <- nil
			return
		}
	}
}

func (l *Link) waitForReaderExit(closeConn func(), readErrs <-chan error) {
	closeConn()
	select {
	case <-readErrs:
	case <-time.After(teardownWait):
		l.logger.Warn().Msg("reader teardown timed out")
	}
}

// drainDeadConnection waits, at most teardownWait, for the reader to
// exit and discards its error after the link has already reported the
// failure via a write error.
func (l *Link) drainDeadConnection(readErrs <-chan error) {
	select {
	case <-readErrs:
	case <-time.After(teardownWait):
	}
}

// awaitRelinkOrShutdown is the post-failure wait-for-Relink state of
// spec §4.7: every non-Relink, non-Shutdown request is silently
// drained and discarded until one of those two arrives.
func (l *Link) awaitRelinkOrShutdown() bool {
	l.setState(Disconnected)
	for {
		req := <-l.reqs.out()
		switch req.ctrl {
		case ctrlShutdown:
			l.setState(Stopped)
			return false
		case ctrlRelink:
			if req.endpoint != "" {
				l.mu.Lock()
				l.endpoint = req.endpoint
				l.mu.Unlock()
			}
			return true
		default:
			// drained and discarded
		}
	}
}

func (l *Link) currentEndpoint() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.endpoint
}
