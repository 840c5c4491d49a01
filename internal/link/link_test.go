package link

import (
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/adred-codev/kanband/internal/codec"
	"github.com/adred-codev/kanband/internal/identity"
	"github.com/adred-codev/kanband/internal/idspace"
	"github.com/adred-codev/kanband/internal/node"
	"github.com/adred-codev/kanband/internal/wire"
)

// echoServer accepts connections on a random port and replies to every
// Action with a Post response carrying the same node, until the
// end-of-stream sentinel arrives.
func echoServer(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				for {
					payload, err := wire.ReadFrame(c)
					if err != nil {
						return
					}
					action, err := codec.DecodeAction(payload)
					if err != nil {
						return
					}
					resp := codec.Response{Kind: codec.ResponsePost, Node: action.Node}
					if err := wire.WriteFrame(c, codec.EncodeResponse(resp)); err != nil {
						return
					}
				}
			}(conn)
		}
	}()
	return ln.Addr().String()
}

func TestLinkConnectsAndRoundTrips(t *testing.T) {
	addr := echoServer(t)
	l := New(addr, zerolog.Nop())
	go l.Run()
	defer l.Send(Shutdown())

	id, err := idspace.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	n := node.Node{ID: id, Title: "t", Author: identity.New("alice", "pw")}
	l.Send(Post(codec.Action{Kind: codec.ActionPost, Node: n}))

	select {
	case resp := <-l.Responses():
		if resp.Kind != codec.ResponsePost || string(resp.Node.ID) != string(id) {
			t.Fatalf("unexpected response %+v", resp)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for response")
	}
}

func TestLinkReportsNetworkErrorOnDialFailure(t *testing.T) {
	// Nothing listens on this port.
	l := New("127.0.0.1:1", zerolog.Nop())
	go l.Run()
	defer l.Send(Shutdown())

	select {
	case resp := <-l.Responses():
		if resp.Kind != codec.ResponseErr {
			t.Fatalf("expected Err, got %+v", resp)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for NetworkError")
	}
}

func TestLinkShutdownStopsRun(t *testing.T) {
	addr := echoServer(t)
	l := New(addr, zerolog.Nop())
	runDone := make(chan struct{})
	go func() {
		l.Run()
		close(runDone)
	}()

	// Give it a moment to reach Connected before tearing down.
	time.Sleep(50 * time.Millisecond)
	l.Send(Shutdown())

	select {
	case <-runDone:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Shutdown")
	}
	if got := l.State(); got != Stopped {
		t.Fatalf("expected Stopped, got %v", got)
	}
}

// Scenario 6 (client reconnect): a live session survives a Relink to
// the same endpoint and can keep sending requests afterward.
func TestLinkRelinkReconnects(t *testing.T) {
	addr := echoServer(t)
	l := New(addr, zerolog.Nop())
	go l.Run()
	defer l.Send(Shutdown())

	id1, _ := idspace.New(nil)
	l.Send(Post(codec.Action{Kind: codec.ActionPost, Node: node.Node{ID: id1, Author: identity.New("a", "p")}}))
	<-l.Responses()

	l.Send(Relink(""))

	id2, _ := idspace.New(nil)
	// Give the relink time to complete before sending the next request;
	// the queue holds it until the new connection's loop picks it up
	// regardless, so this is a liveness check, not a correctness
	// requirement.
	time.Sleep(50 * time.Millisecond)
	l.Send(Post(codec.Action{Kind: codec.ActionPost, Node: node.Node{ID: id2, Author: identity.New("a", "p")}}))

	select {
	case resp := <-l.Responses():
		if resp.Kind != codec.ResponsePost || string(resp.Node.ID) != string(id2) {
			t.Fatalf("unexpected response after relink: %+v", resp)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for post-relink response")
	}
}
