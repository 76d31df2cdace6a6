package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nrgforge/plexus/pkg/graph"
)

var _ graph.GraphStore = (*Store)(nil)

// Store is a PostgreSQL-backed graph.GraphStore. All operations are safe
// for concurrent use; the pool itself serializes nothing beyond what
// PostgreSQL guarantees per statement, so PersistContext wraps its writes
// in a single transaction per context.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to dsn, runs Migrate, and returns a ready Store.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres graph store: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres graph store: ping: %w", err)
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// PersistContext replaces the entirety of c's rows within one transaction:
// delete-then-reinsert is simpler and safe here since an emit's working
// copy already represents the full post-merge state (§4.5 step 6).
func (s *Store) PersistContext(ctx context.Context, c graph.Context) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres graph store: persist: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	sourcesJSON, err := json.Marshal(c.Metadata.Sources)
	if err != nil {
		return fmt.Errorf("postgres graph store: persist: marshal sources: %w", err)
	}
	tagsJSON, err := json.Marshal(c.Metadata.Tags)
	if err != nil {
		return fmt.Errorf("postgres graph store: persist: marshal tags: %w", err)
	}

	const upsertContext = `
		INSERT INTO plexus_contexts (id, name, owner, tags, sources, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
		    name = EXCLUDED.name, owner = EXCLUDED.owner, tags = EXCLUDED.tags,
		    sources = EXCLUDED.sources, updated_at = EXCLUDED.updated_at`
	if _, err := tx.Exec(ctx, upsertContext, c.ID, c.Name, c.Metadata.Owner, tagsJSON, sourcesJSON, c.Metadata.CreatedAt, c.Metadata.UpdatedAt); err != nil {
		return fmt.Errorf("postgres graph store: persist: upsert context: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM plexus_nodes WHERE context_id = $1`, c.ID); err != nil {
		return fmt.Errorf("postgres graph store: persist: clear nodes: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM plexus_edges WHERE context_id = $1`, c.ID); err != nil {
		return fmt.Errorf("postgres graph store: persist: clear edges: %w", err)
	}

	const insertNode = `
		INSERT INTO plexus_nodes (id, context_id, node_type, content_type, dimension, properties, source, created_at, modified_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	for _, n := range c.Nodes {
		propsJSON, err := json.Marshal(n.Properties)
		if err != nil {
			return fmt.Errorf("postgres graph store: persist: marshal node properties: %w", err)
		}
		if _, err := tx.Exec(ctx, insertNode, n.ID, c.ID, n.NodeType, n.ContentType, string(n.Dimension), propsJSON, n.Metadata.Source, n.Metadata.CreatedAt, n.Metadata.ModifiedAt); err != nil {
			return fmt.Errorf("postgres graph store: persist: insert node: %w", err)
		}
	}

	const insertEdge = `
		INSERT INTO plexus_edges (id, context_id, source_id, target_id, relationship, source_dimension, target_dimension, properties, raw_weight)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	const insertContribution = `
		INSERT INTO plexus_contributions (edge_id, context_id, contributor_id, value)
		VALUES ($1, $2, $3, $4)`
	for _, e := range c.Edges {
		propsJSON, err := json.Marshal(e.Properties)
		if err != nil {
			return fmt.Errorf("postgres graph store: persist: marshal edge properties: %w", err)
		}
		if _, err := tx.Exec(ctx, insertEdge, e.ID, c.ID, e.Source, e.Target, e.Relationship, string(e.SourceDimension), string(e.TargetDimension), propsJSON, e.RawWeight); err != nil {
			return fmt.Errorf("postgres graph store: persist: insert edge: %w", err)
		}
		for contributorID, value := range e.Contributions {
			if _, err := tx.Exec(ctx, insertContribution, e.ID, c.ID, string(contributorID), value); err != nil {
				return fmt.Errorf("postgres graph store: persist: insert contribution: %w", err)
			}
		}
	}

	return tx.Commit(ctx)
}

// RetractContributions implements graph.GraphStore.
func (s *Store) RetractContributions(ctx context.Context, ctxID graph.ContextId, contributorID graph.ContributorId) (graph.RetractionSummary, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return graph.RetractionSummary{}, fmt.Errorf("postgres graph store: retract: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM plexus_contexts WHERE id = $1)`, ctxID).Scan(&exists); err != nil {
		return graph.RetractionSummary{}, fmt.Errorf("postgres graph store: retract: check context: %w", err)
	}
	if !exists {
		return graph.RetractionSummary{}, graph.ErrContextNotFound
	}

	tag, err := tx.Exec(ctx, `
		DELETE FROM plexus_contributions WHERE context_id = $1 AND contributor_id = $2`, ctxID, string(contributorID))
	if err != nil {
		return graph.RetractionSummary{}, fmt.Errorf("postgres graph store: retract: delete contributions: %w", err)
	}
	summary := graph.RetractionSummary{SlotsRemoved: int(tag.RowsAffected())}

	prunedTag, err := tx.Exec(ctx, `
		DELETE FROM plexus_edges e
		WHERE e.context_id = $1
		  AND NOT EXISTS (
		      SELECT 1 FROM plexus_contributions c
		      WHERE c.context_id = e.context_id AND c.edge_id = e.id
		  )`, ctxID)
	if err != nil {
		return graph.RetractionSummary{}, fmt.Errorf("postgres graph store: retract: prune empty edges: %w", err)
	}
	summary.EdgesPruned = int(prunedTag.RowsAffected())

	if _, err := tx.Exec(ctx, `UPDATE plexus_contexts SET updated_at = now() WHERE id = $1`, ctxID); err != nil {
		return graph.RetractionSummary{}, fmt.Errorf("postgres graph store: retract: touch context: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return graph.RetractionSummary{}, fmt.Errorf("postgres graph store: retract: commit: %w", err)
	}
	return summary, nil
}

// LoadContext implements graph.GraphStore.
func (s *Store) LoadContext(ctx context.Context, ctxID graph.ContextId) (graph.Context, bool, error) {
	var c graph.Context
	var sourcesJSON, tagsJSON []byte
	row := s.pool.QueryRow(ctx, `SELECT id, name, owner, tags, sources, created_at, updated_at FROM plexus_contexts WHERE id = $1`, ctxID)
	if err := row.Scan(&c.ID, &c.Name, &c.Metadata.Owner, &tagsJSON, &sourcesJSON, &c.Metadata.CreatedAt, &c.Metadata.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return graph.Context{}, false, nil
		}
		return graph.Context{}, false, fmt.Errorf("postgres graph store: load: context: %w", err)
	}
	_ = json.Unmarshal(sourcesJSON, &c.Metadata.Sources)
	_ = json.Unmarshal(tagsJSON, &c.Metadata.Tags)

	nodes, err := s.loadNodes(ctx, ctxID)
	if err != nil {
		return graph.Context{}, false, err
	}
	c.Nodes = nodes

	edges, err := s.loadEdges(ctx, ctxID)
	if err != nil {
		return graph.Context{}, false, err
	}
	c.Edges = edges
	c.RecomputeWeights()

	return c, true, nil
}

// LoadAll implements graph.GraphStore.
func (s *Store) LoadAll(ctx context.Context) ([]graph.Context, error) {
	rows, err := s.pool.Query(ctx, `SELECT id FROM plexus_contexts`)
	if err != nil {
		return nil, fmt.Errorf("postgres graph store: load all: list ids: %w", err)
	}
	var ids []graph.ContextId
	for rows.Next() {
		var id graph.ContextId
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("postgres graph store: load all: scan id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()

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

// DeleteContext implements graph.GraphStore. Nodes, edges, and
// contributions cascade via foreign keys.
func (s *Store) DeleteContext(ctx context.Context, ctxID graph.ContextId) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM plexus_contexts WHERE id = $1`, ctxID); err != nil {
		return fmt.Errorf("postgres graph store: delete context: %w", err)
	}
	return nil
}

// Close implements graph.GraphStore.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) loadNodes(ctx context.Context, ctxID graph.ContextId) (map[graph.NodeId]graph.Node, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, node_type, content_type, dimension, properties, source, created_at, modified_at
		FROM plexus_nodes WHERE context_id = $1`, ctxID)
	if err != nil {
		return nil, fmt.Errorf("postgres graph store: load nodes: %w", err)
	}
	defer rows.Close()

	nodes := make(map[graph.NodeId]graph.Node)
	for rows.Next() {
		var n graph.Node
		var dimension string
		var propsJSON []byte
		if err := rows.Scan(&n.ID, &n.NodeType, &n.ContentType, &dimension, &propsJSON, &n.Metadata.Source, &n.Metadata.CreatedAt, &n.Metadata.ModifiedAt); err != nil {
			return nil, fmt.Errorf("postgres graph store: load nodes: scan: %w", err)
		}
		n.Dimension = graph.Dimension(dimension)
		_ = json.Unmarshal(propsJSON, &n.Properties)
		nodes[n.ID] = n
	}
	return nodes, rows.Err()
}

func (s *Store) loadEdges(ctx context.Context, ctxID graph.ContextId) ([]graph.Edge, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, source_id, target_id, relationship, source_dimension, target_dimension, properties
		FROM plexus_edges WHERE context_id = $1`, ctxID)
	if err != nil {
		return nil, fmt.Errorf("postgres graph store: load edges: %w", err)
	}

	var edges []graph.Edge
	for rows.Next() {
		var e graph.Edge
		var srcDim, tgtDim string
		var propsJSON []byte
		if err := rows.Scan(&e.ID, &e.Source, &e.Target, &e.Relationship, &srcDim, &tgtDim, &propsJSON); err != nil {
			rows.Close()
			return nil, fmt.Errorf("postgres graph store: load edges: scan: %w", err)
		}
		e.SourceDimension = graph.Dimension(srcDim)
		e.TargetDimension = graph.Dimension(tgtDim)
		_ = json.Unmarshal(propsJSON, &e.Properties)
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i, e := range edges {
		contribs, err := s.loadContributions(ctx, ctxID, e.ID)
		if err != nil {
			return nil, err
		}
		edges[i].Contributions = contribs
	}
	return edges, nil
}

func (s *Store) loadContributions(ctx context.Context, ctxID graph.ContextId, edgeID graph.EdgeId) (map[graph.ContributorId]float32, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT contributor_id, value FROM plexus_contributions WHERE context_id = $1 AND edge_id = $2`, ctxID, edgeID)
	if err != nil {
		return nil, fmt.Errorf("postgres graph store: load contributions: %w", err)
	}
	defer rows.Close()

	out := make(map[graph.ContributorId]float32)
	for rows.Next() {
		var contributorID string
		var value float32
		if err := rows.Scan(&contributorID, &value); err != nil {
			return nil, fmt.Errorf("postgres graph store: load contributions: scan: %w", err)
		}
		out[graph.ContributorId(contributorID)] = value
	}
	return out, rows.Err()
}
