package sqlite

// Schema DDL. JSON-valued columns hold the serialized Go value.
const (
	createNodes = `CREATE TABLE nodes (
    node_id TEXT PRIMARY KEY,
    node_type TEXT NOT NULL,
    position_x REAL NOT NULL,
    position_y REAL NOT NULL,
    width REAL NOT NULL,
    height REAL NOT NULL,
    ports TEXT,
    visual TEXT,
    data TEXT,
    ordinal INTEGER NOT NULL
);`

	createEdges = `CREATE TABLE edges (
    edge_id TEXT PRIMARY KEY,
    edge_type TEXT NOT NULL,
    source_cell TEXT NOT NULL,
    source_port TEXT,
    target_cell TEXT,
    target_port TEXT,
    target_x REAL,
    target_y REAL,
    data TEXT,
    label TEXT,
    style TEXT,
    ordinal INTEGER NOT NULL
);`

	createSnapshots = `CREATE TABLE snapshots (
    snapshot_id TEXT PRIMARY KEY,
    node_count INTEGER NOT NULL,
    edge_count INTEGER NOT NULL,
    saved_at TEXT NOT NULL
);`
)

// Indexes for the lookups the store runs.
const (
	indexNodesType   = `CREATE INDEX idx_nodes_type ON nodes (node_type);`
	indexEdgesSource = `CREATE INDEX idx_edges_source ON edges (source_cell);`
	indexEdgesTarget = `CREATE INDEX idx_edges_target ON edges (target_cell);`
)

// schemaStatements lists the DDL in execution order.
var schemaStatements = []string{
	createNodes,
	createEdges,
	createSnapshots,
	indexNodesType,
	indexEdgesSource,
	indexEdgesTarget,
}
