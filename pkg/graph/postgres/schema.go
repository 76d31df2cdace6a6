// Package postgres provides a PostgreSQL-backed graph.GraphStore, for
// deployments that want a shared, queryable durable backend instead of the
// embedded badgerstore. A single pgxpool.Pool backs contexts, nodes, edges,
// and edge contributions as four normalized tables.
//
// Grounded on the teacher's pkg/memory/postgres package: pgxpool
// connection management, an idempotent CREATE TABLE IF NOT EXISTS Migrate
// step, and JSONB columns for free-form attribute maps.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlContexts = `
CREATE TABLE IF NOT EXISTS plexus_contexts (
    id          TEXT         PRIMARY KEY,
    name        TEXT         NOT NULL,
    owner       TEXT         NOT NULL DEFAULT '',
    tags        JSONB        NOT NULL DEFAULT '[]',
    sources     JSONB        NOT NULL DEFAULT '[]',
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now(),
    updated_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);
`

const ddlNodes = `
CREATE TABLE IF NOT EXISTS plexus_nodes (
    id           TEXT         NOT NULL,
    context_id   TEXT         NOT NULL REFERENCES plexus_contexts (id) ON DELETE CASCADE,
    node_type    TEXT         NOT NULL,
    content_type TEXT         NOT NULL DEFAULT '',
    dimension    TEXT         NOT NULL,
    properties   JSONB        NOT NULL DEFAULT '{}',
    source       TEXT         NOT NULL DEFAULT '',
    created_at   TIMESTAMPTZ  NOT NULL DEFAULT now(),
    modified_at  TIMESTAMPTZ  NOT NULL DEFAULT now(),
    PRIMARY KEY (context_id, id)
);

CREATE INDEX IF NOT EXISTS idx_plexus_nodes_context ON plexus_nodes (context_id);
`

const ddlEdges = `
CREATE TABLE IF NOT EXISTS plexus_edges (
    id               TEXT         NOT NULL,
    context_id       TEXT         NOT NULL REFERENCES plexus_contexts (id) ON DELETE CASCADE,
    source_id        TEXT         NOT NULL,
    target_id        TEXT         NOT NULL,
    relationship     TEXT         NOT NULL,
    source_dimension TEXT         NOT NULL,
    target_dimension TEXT         NOT NULL,
    properties       JSONB        NOT NULL DEFAULT '{}',
    raw_weight       REAL         NOT NULL DEFAULT 0,
    PRIMARY KEY (context_id, id),
    UNIQUE (context_id, source_id, target_id, relationship)
);

CREATE INDEX IF NOT EXISTS idx_plexus_edges_context ON plexus_edges (context_id);
CREATE INDEX IF NOT EXISTS idx_plexus_edges_source ON plexus_edges (context_id, source_id);
CREATE INDEX IF NOT EXISTS idx_plexus_edges_target ON plexus_edges (context_id, target_id);
`

const ddlContributions = `
CREATE TABLE IF NOT EXISTS plexus_contributions (
    edge_id        TEXT   NOT NULL,
    context_id     TEXT   NOT NULL,
    contributor_id TEXT   NOT NULL,
    value          REAL   NOT NULL,
    PRIMARY KEY (context_id, edge_id, contributor_id),
    FOREIGN KEY (context_id, edge_id) REFERENCES plexus_edges (context_id, id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_plexus_contributions_contributor
    ON plexus_contributions (context_id, contributor_id);
`

// Migrate creates every table this package needs, idempotently. Safe to
// call on every application start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	statements := []string{ddlContexts, ddlNodes, ddlEdges, ddlContributions}
	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres graph store: migrate: %w", err)
		}
	}
	return nil
}
