package idspace

import (
	"testing"
	"time"

	"github.com/adred-codev/kanband/internal/kerr"
)

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		id   ID
		ok   bool
	}{
		{"empty", ID{}, false},
		{"one layer", make(ID, 16), true},
		{"two layers", make(ID, 32), true},
		{"not multiple of 16", make(ID, 20), false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := c.id.Validate()
			if c.ok && err != nil {
				t.Fatalf("expected valid, got %v", err)
			}
			if !c.ok && err != kerr.IdInvalid {
				t.Fatalf("expected IdInvalid, got %v", err)
			}
		})
	}
}

func TestTopAndParentPrefix(t *testing.T) {
	top, err := New(nil)
	if err != nil {
		t.Fatal(err)
	}
	if !top.IsTopLevel() {
		t.Fatal("expected top-level")
	}
	child, err := New(top)
	if err != nil {
		t.Fatal(err)
	}
	if child.IsTopLevel() {
		t.Fatal("expected non-top-level child")
	}
	if string(child.ParentPrefix()) != string(top) {
		t.Fatalf("parent prefix mismatch")
	}
	if string(child.TopPrefix()) != string(top) {
		t.Fatalf("top prefix mismatch")
	}
}

// P3: parent_prefix(new(parent,...).id) == parent, and the embedded
// timestamp is within a couple seconds of now.
func TestP3IdComposition(t *testing.T) {
	parent, err := New(nil)
	if err != nil {
		t.Fatal(err)
	}
	child, err := New(parent)
	if err != nil {
		t.Fatal(err)
	}
	if string(child.ParentPrefix()) != string(parent) {
		t.Fatalf("parent_prefix mismatch")
	}
	high, _, err := child.LastLayerU128()
	if err != nil {
		t.Fatal(err)
	}
	now := uint64(time.Now().Unix())
	diff := int64(now) - int64(high)
	if diff < -2 || diff > 2 {
		t.Fatalf("embedded timestamp %d too far from now %d", high, now)
	}
}

func TestInvalidLastLayer(t *testing.T) {
	bad := ID(make([]byte, 5))
	if _, _, err := bad.LastLayerU128(); err != kerr.IdInvalid {
		t.Fatalf("expected IdInvalid, got %v", err)
	}
}
