package codec

import (
	"reflect"
	"testing"
	"time"

	"github.com/adred-codev/kanband/internal/identity"
	"github.com/adred-codev/kanband/internal/idspace"
	"github.com/adred-codev/kanband/internal/kerr"
	"github.com/adred-codev/kanband/internal/node"
)

func sampleNode(t *testing.T) node.Node {
	t.Helper()
	id, err := idspace.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	now := time.Now().UTC().Round(0)
	return node.Node{
		ID:          id,
		Title:       "hello",
		Author:      identity.New("alice", "pw").Mask(),
		Content:     "line one\nline two",
		PublishTime: now,
		LastReply:   now,
		Edited:      false,
	}
}

// P2: codec round-trip.
func TestP2NodeRoundTrip(t *testing.T) {
	n := sampleNode(t)
	got, err := UnmarshalNode(MarshalNode(n))
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual([]byte(n.ID), []byte(got.ID)) {
		t.Fatalf("id mismatch: %v vs %v", n.ID, got.ID)
	}
	if n.Title != got.Title || n.Content != got.Content || n.Edited != got.Edited {
		t.Fatalf("field mismatch: %+v vs %+v", n, got)
	}
	if n.Author != got.Author {
		t.Fatalf("author mismatch: %+v vs %+v", n.Author, got.Author)
	}
	if !n.PublishTime.Equal(got.PublishTime) || !n.LastReply.Equal(got.LastReply) {
		t.Fatalf("time mismatch: %+v vs %+v", n, got)
	}
}

func TestActionRoundTrip(t *testing.T) {
	n := sampleNode(t)
	cases := []Action{
		{Kind: ActionPost, Node: n},
		{Kind: ActionUpdate, Node: n},
		{Kind: ActionDelete, Node: n},
		{Kind: ActionList, ListTarget: ListTarget{Kind: ListTargetRoot}},
		{Kind: ActionList, ListTarget: ListTarget{Kind: ListTargetNode, ID: n.ID}},
	}
	for _, a := range cases {
		got, err := DecodeAction(EncodeAction(a))
		if err != nil {
			t.Fatal(err)
		}
		if got.Kind != a.Kind {
			t.Fatalf("kind mismatch: %v vs %v", got.Kind, a.Kind)
		}
	}
}

func TestResponseRoundTrip(t *testing.T) {
	n := sampleNode(t)
	cases := []Response{
		{Kind: ResponsePost, Node: n},
		{Kind: ResponseList, List: []node.Node{n, n}},
		{Kind: ResponseErr, Err: kerr.PassNotMatch},
	}
	for _, resp := range cases {
		got, err := DecodeResponse(EncodeResponse(resp))
		if err != nil {
			t.Fatal(err)
		}
		if got.Kind != resp.Kind {
			t.Fatalf("kind mismatch: %v vs %v", got.Kind, resp.Kind)
		}
		if resp.Kind == ResponseErr && got.Err != resp.Err {
			t.Fatalf("err mismatch: %v vs %v", got.Err, resp.Err)
		}
		if resp.Kind == ResponseList && len(got.List) != len(resp.List) {
			t.Fatalf("list length mismatch: %d vs %d", len(got.List), len(resp.List))
		}
	}
}

// Frozen discriminants must never drift.
func TestFrozenDiscriminants(t *testing.T) {
	if ActionDelete != 0 || ActionList != 1 || ActionUpdate != 2 || ActionPost != 3 {
		t.Fatal("Action discriminants changed")
	}
	if ListTargetRoot != 0 || ListTargetNode != 1 {
		t.Fatal("ListTarget discriminants changed")
	}
	if ResponsePost != 0 || ResponseUpdate != 1 || ResponseDelete != 2 || ResponseList != 3 || ResponseErr != 4 {
		t.Fatal("Response discriminants changed")
	}
	if kerr.NeedUnMaskPass != 0 || kerr.NodeExist != 1 || kerr.NodeNotExist != 2 ||
		kerr.IdInvalid != 3 || kerr.PassNotMatch != 4 || kerr.DeleteLimitOverdue != 5 || kerr.NetworkError != 6 {
		t.Fatal("ErrorKind discriminants changed")
	}
}
