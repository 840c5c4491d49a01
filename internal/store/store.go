// Package store implements the embedded, ordered, prefix-scannable
// key-value engine described in spec §4.3: two logical trees —
// content (keyed by full node id) and root_list (keyed by top-level
// id, mirroring content) — with atomic batched writes, authenticated
// mutation, and a change-feed fan-out to every connected session.
//
// The ordered container is github.com/hashicorp/go-immutable-radix: a
// persistent (copy-on-write) radix tree keyed on raw bytes, which
// gives byte-lexicographic iteration order for free and makes a
// content Post's batch (content row + parent top-row update) a single
// atomic Txn commit with no possibility of a torn write being observed
// by a concurrent reader.
package store

import (
	"path/filepath"
	"sort"
	"sync"
	"time"

	iradix "github.com/hashicorp/go-immutable-radix"

	"github.com/adred-codev/kanband/internal/change"
	"github.com/adred-codev/kanband/internal/codec"
	"github.com/adred-codev/kanband/internal/idspace"
	"github.com/adred-codev/kanband/internal/kerr"
	"github.com/adred-codev/kanband/internal/metrics"
	"github.com/adred-codev/kanband/internal/node"
)

const deleteWindow = 5 * time.Hour

// Store is the process-wide storage engine. All exported methods are
// safe for concurrent use.
type Store struct {
	mu       sync.RWMutex // guards content and rootList together
	content  *iradix.Tree
	rootList *iradix.Tree

	wal *wal
	bus *change.Bus

	now func() time.Time // overridable for tests (virtual clock, spec scenario 4)
}

// Open opens (or creates) the database directory dir and rebuilds both
// trees from the write-ahead log.
func Open(dir string) (*Store, error) {
	if dir != "" {
		if err := ensureDir(dir); err != nil {
			return nil, err
		}
	}
	w, err := openWAL(filepath.Join(dir, "content.wal"))
	if err != nil {
		return nil, err
	}
	records, err := replayWAL(filepath.Join(dir, "content.wal"))
	if err != nil {
		return nil, err
	}

	content := iradix.New()
	txn := content.Txn()
	for _, rec := range records {
		switch rec.op {
		case walOpPut:
			txn.Insert(rec.key, rec.val)
		case walOpDel:
			txn.Delete(rec.key)
		}
	}
	content = txn.Commit()

	s := &Store{
		content: content,
		wal:     w,
		bus:     change.NewBus(),
		now:     time.Now,
	}
	s.rootList = s.rebuildRootList(content)
	s.reportSizes()
	return s, nil
}

// reportSizes refreshes the store-size gauges. Called after every
// commit so /metrics always reflects the tree sizes as of the last
// completed operation.
func (s *Store) reportSizes() {
	metrics.StoreNodesTotal.Set(float64(s.content.Len()))
	metrics.StoreRootNodesTotal.Set(float64(s.rootList.Len()))
}

// rebuildRootList recomputes root_list from content (spec §5's
// cold-start reconciler), restoring I4 regardless of what the previous
// process managed to persist about root_list itself.
func (s *Store) rebuildRootList(content *iradix.Tree) *iradix.Tree {
	rl := iradix.New()
	txn := rl.Txn()
	root := content.Root()
	root.WalkPrefix(nil, func(k []byte, v interface{}) bool {
		if len(k) == 16 {
			txn.Insert(k, v)
		}
		return false
	})
	return txn.Commit()
}

// Close releases the underlying WAL file handle.
func (s *Store) Close() error { return s.wal.close() }

// Subscribe registers a new subscription-stream consumer.
func (s *Store) Subscribe(buffer int) (<-chan change.Event, uint64) {
	return s.bus.Subscribe(buffer)
}

// Unsubscribe removes a subscription-stream consumer.
func (s *Store) Unsubscribe(token uint64) { s.bus.Unsubscribe(token) }

func errResponse(k kerr.Kind) codec.Response {
	return codec.Response{Kind: codec.ResponseErr, Err: k}
}

// Post implements spec §4.3's post(node) pipeline.
func (s *Store) Post(n node.Node) (codec.Response, error) {
	if err := n.ID.Validate(); err != nil {
		return errResponse(kerr.IdInvalid), nil
	}
	n.Author = n.Author.Mask()
	n.PublishTime = s.now().UTC()
	n.LastReply = n.PublishTime

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, found := s.content.Get(n.ID); found {
		return errResponse(kerr.NodeExist), nil
	}

	var topUpdated *node.Node
	if !n.ID.IsTopLevel() {
		topRaw, found := s.content.Get(n.ID.TopPrefix())
		if !found {
			return errResponse(kerr.IdInvalid), nil
		}
		top, err := codec.UnmarshalNode(topRaw.([]byte))
		if err != nil {
			return codec.Response{}, err
		}
		top.LastReply = n.PublishTime
		topUpdated = &top
	}

	nodeBody := codec.MarshalNode(n)
	if err := s.wal.appendPut(n.ID, nodeBody); err != nil {
		return codec.Response{}, err
	}
	txn := s.content.Txn()
	txn.Insert(n.ID, nodeBody)
	if topUpdated != nil {
		topBody := codec.MarshalNode(*topUpdated)
		if err := s.wal.appendPut(topUpdated.ID, topBody); err != nil {
			return codec.Response{}, err
		}
		txn.Insert(topUpdated.ID, topBody)
	}
	s.content = txn.Commit()
	s.bus.Publish(change.Event{Kind: change.Insert, Key: n.ID, Value: nodeBody})

	rlTxn := s.rootList.Txn()
	if n.ID.IsTopLevel() {
		rlTxn.Insert(n.ID, nodeBody)
	} else {
		topBody := codec.MarshalNode(*topUpdated)
		rlTxn.Insert(topUpdated.ID, topBody)
		s.bus.Publish(change.Event{Kind: change.Insert, Key: topUpdated.ID, Value: topBody})
	}
	s.rootList = rlTxn.Commit()
	s.reportSizes()

	return codec.Response{Kind: codec.ResponsePost, Node: n}, nil
}

// ListRoot implements spec §4.3's list_root().
func (s *Store) ListRoot() (codec.Response, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var nodes []node.Node
	var walkErr error
	s.rootList.Root().WalkPrefix(nil, func(k []byte, v interface{}) bool {
		n, err := codec.UnmarshalNode(v.([]byte))
		if err != nil {
			walkErr = err
			return true
		}
		nodes = append(nodes, n)
		return false
	})
	if walkErr != nil {
		return codec.Response{}, walkErr
	}
	sort.SliceStable(nodes, func(i, j int) bool {
		return nodes[i].LastReply.After(nodes[j].LastReply)
	})
	return codec.Response{Kind: codec.ResponseList, List: nodes}, nil
}

// List implements spec §4.3's list(root): a prefix scan of content
// under root, sorted by each id's per-layer u128 tuple.
func (s *Store) List(root idspace.ID) (codec.Response, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var nodes []node.Node
	var walkErr error
	s.content.Root().WalkPrefix(root, func(k []byte, v interface{}) bool {
		n, err := codec.UnmarshalNode(v.([]byte))
		if err != nil {
			walkErr = err
			return true
		}
		nodes = append(nodes, n)
		return false
	})
	if walkErr != nil {
		return codec.Response{}, walkErr
	}
	sort.SliceStable(nodes, func(i, j int) bool {
		return lessByLayers(nodes[i].ID, nodes[j].ID)
	})
	return codec.Response{Kind: codec.ResponseList, List: nodes}, nil
}

// lessByLayers orders two ids by the u128 value of each shared layer
// in turn, matching byte-lex order on the underlying encoding (see
// internal/idspace).
func lessByLayers(a, b idspace.ID) bool {
	n := a.Layers()
	if b.Layers() < n {
		n = b.Layers()
	}
	for i := 0; i < n; i++ {
		av := a[i*16 : i*16+16]
		bv := b[i*16 : i*16+16]
		for j := 0; j < 16; j++ {
			if av[j] != bv[j] {
				return av[j] < bv[j]
			}
		}
	}
	return len(a) < len(b)
}

// authPipeline implements the shared prefix of spec §4.3's
// delete/update handling: reject masked authors, look up the stored
// row, and check the pass match.
func (s *Store) authPipeline(n node.Node) (stored node.Node, body []byte, resp codec.Response, done bool) {
	if n.Author.IsMasked() {
		return node.Node{}, nil, errResponse(kerr.NeedUnMaskPass), true
	}
	raw, found := s.content.Get(n.ID)
	if !found {
		return node.Node{}, nil, errResponse(kerr.NodeNotExist), true
	}
	storedBody := raw.([]byte)
	storedNode, err := codec.UnmarshalNode(storedBody)
	if err != nil {
		return node.Node{}, nil, codec.Response{}, true
	}
	if !storedNode.Author.MatchPass(n.Author.Name, n.Author.Pass.Text) {
		return node.Node{}, nil, errResponse(kerr.PassNotMatch), true
	}
	return storedNode, storedBody, codec.Response{}, false
}

// Delete implements spec §4.3's delete(node).
func (s *Store) Delete(n node.Node) (codec.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, _, resp, done := s.authPipeline(n)
	if done {
		return resp, nil
	}
	if s.now().Sub(stored.PublishTime) > deleteWindow {
		return errResponse(kerr.DeleteLimitOverdue), nil
	}

	if err := s.wal.appendDel(stored.ID); err != nil {
		return codec.Response{}, err
	}
	txn := s.content.Txn()
	txn.Delete(stored.ID)
	s.content = txn.Commit()
	s.bus.Publish(change.Event{Kind: change.Remove, Key: stored.ID})

	if stored.ID.IsTopLevel() {
		rlTxn := s.rootList.Txn()
		rlTxn.Delete(stored.ID)
		s.rootList = rlTxn.Commit()
	}
	s.reportSizes()

	return codec.Response{Kind: codec.ResponseDelete, Node: stored.WithMaskedAuthor()}, nil
}

// Update implements spec §4.3's update(node): edited=true, id,
// publish_time and last_reply are preserved from the stored row.
func (s *Store) Update(n node.Node) (codec.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, _, resp, done := s.authPipeline(n)
	if done {
		return resp, nil
	}

	updated := stored
	updated.Title = n.Title
	updated.Content = n.Content
	updated.Edited = true

	body := codec.MarshalNode(updated)
	if err := s.wal.appendPut(updated.ID, body); err != nil {
		return codec.Response{}, err
	}
	txn := s.content.Txn()
	txn.Insert(updated.ID, body)
	s.content = txn.Commit()
	s.bus.Publish(change.Event{Kind: change.Insert, Key: updated.ID, Value: body})

	if updated.ID.IsTopLevel() {
		rlTxn := s.rootList.Txn()
		rlTxn.Insert(updated.ID, body)
		s.rootList = rlTxn.Commit()
	}
	s.reportSizes()

	return codec.Response{Kind: codec.ResponseUpdate, Node: updated.WithMaskedAuthor()}, nil
}
