// Package node defines the Node value shared by the store, codec,
// operations, and wire layers.
package node

import (
	"time"

	"github.com/adred-codev/kanband/internal/identity"
	"github.com/adred-codev/kanband/internal/idspace"
)

// Node is one post or reply in the tree.
type Node struct {
	ID           idspace.ID
	Title        string
	Author       identity.Author
	Content      string
	PublishTime  time.Time
	LastReply    time.Time
	Edited       bool
}

// Clone returns a deep-enough copy of n (ID is copied, other fields are
// value types or immutable strings).
func (n Node) Clone() Node {
	n.ID = n.ID.Clone()
	return n
}

// WithMaskedAuthor returns a copy of n with its author pass masked.
func (n Node) WithMaskedAuthor() Node {
	n.Author = n.Author.Mask()
	return n
}
