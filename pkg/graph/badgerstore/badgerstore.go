// Package badgerstore is an embedded, durable graph.GraphStore backed by
// BadgerDB — no external database process required, for single-node
// deployments. Keys follow a flat prefix convention per context:
//
//	ctx/<id>/meta
//	ctx/<id>/node/<node_id>
//	ctx/<id>/edge/<edge_id>
//
// Each value is the JSON encoding of the corresponding graph type. An
// edge's Contributions map travels inside its own JSON blob rather than as
// separate keys — unlike the postgres backend, there is no need to query
// contributions independently of their edge, so the extra key layer buys
// nothing here.
package badgerstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/nrgforge/plexus/pkg/graph"
)

var _ graph.GraphStore = (*Store)(nil)

// Store is a BadgerDB-backed graph.GraphStore.
type Store struct {
	db *badger.DB
}

// Open opens (creating if absent) a Badger database at dir.
func Open(dir string) (*Store, error) {
	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("badgerstore: open: %w", err)
	}
	return &Store{db: db}, nil
}

type contextMeta struct {
	Name     string                `json:"name"`
	Metadata graph.ContextMetadata `json:"metadata"`
}

func metaKey(id graph.ContextId) []byte       { return []byte("ctx/" + string(id) + "/meta") }
func nodePrefix(id graph.ContextId) []byte    { return []byte("ctx/" + string(id) + "/node/") }
func edgePrefix(id graph.ContextId) []byte    { return []byte("ctx/" + string(id) + "/edge/") }
func contextPrefix(id graph.ContextId) []byte { return []byte("ctx/" + string(id) + "/") }

func nodeKey(id graph.ContextId, nodeID graph.NodeId) []byte {
	return append(nodePrefix(id), []byte(nodeID)...)
}

func edgeKey(id graph.ContextId, edgeID graph.EdgeId) []byte {
	return append(edgePrefix(id), []byte(edgeID)...)
}

// PersistContext overwrites ctxID's entire key range with c's current
// state: the meta key, one key per node, and one key per edge. Stale
// node/edge keys from a previous persist are dropped first, so deletions
// within an emission are reflected.
func (s *Store) PersistContext(_ context.Context, c graph.Context) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if err := deletePrefix(txn, nodePrefix(c.ID)); err != nil {
			return err
		}
		if err := deletePrefix(txn, edgePrefix(c.ID)); err != nil {
			return err
		}

		meta := contextMeta{Name: c.Name, Metadata: c.Metadata}
		metaBytes, err := json.Marshal(meta)
		if err != nil {
			return fmt.Errorf("badgerstore: marshal meta: %w", err)
		}
		if err := txn.Set(metaKey(c.ID), metaBytes); err != nil {
			return err
		}

		for _, n := range c.Nodes {
			b, err := json.Marshal(n)
			if err != nil {
				return fmt.Errorf("badgerstore: marshal node: %w", err)
			}
			if err := txn.Set(nodeKey(c.ID, n.ID), b); err != nil {
				return err
			}
		}
		for _, e := range c.Edges {
			b, err := json.Marshal(e)
			if err != nil {
				return fmt.Errorf("badgerstore: marshal edge: %w", err)
			}
			if err := txn.Set(edgeKey(c.ID, e.ID), b); err != nil {
				return err
			}
		}
		return nil
	})
}

// RetractContributions implements graph.GraphStore.
func (s *Store) RetractContributions(_ context.Context, ctxID graph.ContextId, contributorID graph.ContributorId) (graph.RetractionSummary, error) {
	var summary graph.RetractionSummary

	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(metaKey(ctxID)); err != nil {
			if err == badger.ErrKeyNotFound {
				return graph.ErrContextNotFound
			}
			return err
		}

		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := edgePrefix(ctxID)
		var toDelete [][]byte
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			var e graph.Edge
			if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &e) }); err != nil {
				return err
			}
			if _, has := e.Contributions[contributorID]; !has {
				continue
			}
			delete(e.Contributions, contributorID)
			summary.SlotsRemoved++

			if e.HasEmptyContributions() {
				summary.EdgesPruned++
				key := append([]byte(nil), item.KeyCopy(nil)...)
				toDelete = append(toDelete, key)
				continue
			}

			e.RecomputeWeight()
			b, err := json.Marshal(e)
			if err != nil {
				return fmt.Errorf("badgerstore: marshal edge: %w", err)
			}
			if err := txn.Set(item.KeyCopy(nil), b); err != nil {
				return err
			}
		}

		for _, key := range toDelete {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return graph.RetractionSummary{}, err
	}
	return summary, nil
}

// LoadContext implements graph.GraphStore.
func (s *Store) LoadContext(_ context.Context, ctxID graph.ContextId) (graph.Context, bool, error) {
	var c graph.Context
	found := false

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(metaKey(ctxID))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return nil
			}
			return err
		}
		var meta contextMeta
		if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &meta) }); err != nil {
			return err
		}
		found = true
		c = graph.Context{ID: ctxID, Name: meta.Name, Metadata: meta.Metadata, Nodes: make(map[graph.NodeId]graph.Node)}

		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		nPrefix := nodePrefix(ctxID)
		for it.Seek(nPrefix); it.ValidForPrefix(nPrefix); it.Next() {
			var n graph.Node
			if err := it.Item().Value(func(val []byte) error { return json.Unmarshal(val, &n) }); err != nil {
				return err
			}
			c.Nodes[n.ID] = n
		}

		ePrefix := edgePrefix(ctxID)
		for it.Seek(ePrefix); it.ValidForPrefix(ePrefix); it.Next() {
			var e graph.Edge
			if err := it.Item().Value(func(val []byte) error { return json.Unmarshal(val, &e) }); err != nil {
				return err
			}
			c.Edges = append(c.Edges, e)
		}
		return nil
	})
	if err != nil {
		return graph.Context{}, false, fmt.Errorf("badgerstore: load context: %w", err)
	}
	if !found {
		return graph.Context{}, false, nil
	}
	c.RecomputeWeights()
	return c, true, nil
}

// LoadAll implements graph.GraphStore.
func (s *Store) LoadAll(ctx context.Context) ([]graph.Context, error) {
	var ids []graph.ContextId
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek([]byte("ctx/")); it.ValidForPrefix([]byte("ctx/")); it.Next() {
			key := string(it.Item().Key())
			if !strings.HasSuffix(key, "/meta") {
				continue
			}
			id := strings.TrimSuffix(strings.TrimPrefix(key, "ctx/"), "/meta")
			ids = append(ids, graph.ContextId(id))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badgerstore: load all: %w", err)
	}

	out := make([]graph.Context, 0, len(ids))
	for _, id := range ids {
		c, found, err := s.LoadContext(ctx, id)
		if err != nil {
			return nil, err
		}
		if found {
			out = append(out, c)
		}
	}
	return out, nil
}

// DeleteContext implements graph.GraphStore.
func (s *Store) DeleteContext(_ context.Context, ctxID graph.ContextId) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return deletePrefix(txn, contextPrefix(ctxID))
	})
}

// Close implements graph.GraphStore.
func (s *Store) Close() error {
	return s.db.Close()
}

func deletePrefix(txn *badger.Txn, prefix []byte) error {
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()

	var keys [][]byte
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		keys = append(keys, append([]byte(nil), it.Item().KeyCopy(nil)...))
	}
	for _, k := range keys {
		if err := txn.Delete(k); err != nil {
			return err
		}
	}
	return nil
}
