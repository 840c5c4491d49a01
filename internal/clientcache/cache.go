// Package clientcache is the client's local, read-side memoizing cache
// described in spec §5/§6: a second instance of the same ordered
// engine as the server's Store, used purely to remember nodes the
// client has already received for display. It is never a source of
// truth and is wiped wholesale on Relink.
package clientcache

import (
	"sync"

	iradix "github.com/hashicorp/go-immutable-radix"

	"github.com/adred-codev/kanband/internal/node"
)

// Cache is safe for concurrent use.
type Cache struct {
	mu   sync.RWMutex
	tree *iradix.Tree
}

func New() *Cache {
	return &Cache{tree: iradix.New()}
}

// Put memoizes n under its id.
func (c *Cache) Put(n node.Node) {
	c.mu.Lock()
	defer c.mu.Unlock()
	txn := c.tree.Txn()
	txn.Insert(n.ID, n)
	c.tree = txn.Commit()
}

// Remove forgets the node at id, if memoized.
func (c *Cache) Remove(id []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	txn := c.tree.Txn()
	txn.Delete(id)
	c.tree = txn.Commit()
}

// Get returns the memoized node at id, if any.
func (c *Cache) Get(id []byte) (node.Node, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.tree.Get(id)
	if !ok {
		return node.Node{}, false
	}
	return v.(node.Node), true
}

// List returns every memoized node under prefix, in byte-lex order.
func (c *Cache) List(prefix []byte) []node.Node {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []node.Node
	c.tree.Root().WalkPrefix(prefix, func(k []byte, v interface{}) bool {
		out = append(out, v.(node.Node))
		return false
	})
	return out
}

// Clear discards the entire cache in O(1): an immutable-radix tree
// needs no per-entry teardown, so Relink can simply swap in a fresh
// empty tree (spec §5, scenario 6).
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tree = iradix.New()
}
