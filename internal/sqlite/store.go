// Package sqlite persists journey canvases. JSONL files in the data
// directory are the source of truth; a SQLite database rebuilt on every
// Attach serves queries over them.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/journey/internal/schedule"
	"github.com/mesh-intelligence/journey/pkg/types"
)

const dbFileName = "journey.db"

// Snapshot describes one SaveCanvas call.
type Snapshot struct {
	ID        string
	NodeCount int
	EdgeCount int
	SavedAt   string
}

// Store saves and loads the persistent part of a canvas. Preview edges and
// drag-hint nodes are never written.
type Store struct {
	mu       sync.RWMutex
	attached bool
	dataDir  string
	db       *sql.DB
	clock    schedule.Clock
	log      zerolog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used to stamp snapshots.
func WithClock(c schedule.Clock) Option {
	return func(s *Store) { s.clock = c }
}

// WithLogger sets the store's logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) { s.log = l.With().Str("component", "store").Logger() }
}

// NewStore returns a detached Store. Call Attach before use.
func NewStore(opts ...Option) *Store {
	s := &Store{clock: schedule.Real(), log: zerolog.Nop()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Attach creates dataDir if needed, rebuilds the SQLite database, and loads
// the JSONL files into it. Returns ErrAlreadyAttached if already attached.
func (s *Store) Attach(dataDir string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.attached {
		return types.ErrAlreadyAttached
	}
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return err
	}

	dbPath := filepath.Join(dataDir, dbFileName)
	_ = os.Remove(dbPath)

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return err
	}
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return fmt.Errorf("creating schema: %w", err)
		}
	}
	if err := initJSONLFiles(dataDir); err != nil {
		db.Close()
		return err
	}
	if err := loadAllJSONL(db, dataDir); err != nil {
		db.Close()
		return fmt.Errorf("load JSONL: %w", err)
	}

	s.db = db
	s.dataDir = dataDir
	s.attached = true
	s.log.Debug().Str("data_dir", dataDir).Msg("store attached")
	return nil
}

// Detach closes the database. Detach is idempotent.
func (s *Store) Detach() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.attached {
		return nil
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			return err
		}
		s.db = nil
	}
	s.attached = false
	return nil
}

// SaveCanvas replaces the stored graph with the persistent nodes and edges
// of c, then appends a snapshot record.
func (s *Store) SaveCanvas(c types.Canvas) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.attached {
		return Snapshot{}, types.ErrStoreDetached
	}

	var nodes []nodeJSON
	for _, n := range c.GetNodes() {
		if n.IsHint() {
			continue
		}
		nodes = append(nodes, nodeRecord(n, len(nodes)))
	}
	var edges []edgeJSON
	for _, e := range c.GetEdges() {
		if e.IsPreview() {
			continue
		}
		edges = append(edges, edgeRecord(e, len(edges)))
	}
	snap := Snapshot{
		ID:        uuid.Must(uuid.NewV7()).String(),
		NodeCount: len(nodes),
		EdgeCount: len(edges),
		SavedAt:   formatTime(s.clock.Now()),
	}

	nodeRecs, err := marshalRecords(nodes)
	if err != nil {
		return Snapshot{}, fmt.Errorf("encoding nodes: %w", err)
	}
	edgeRecs, err := marshalRecords(edges)
	if err != nil {
		return Snapshot{}, fmt.Errorf("encoding edges: %w", err)
	}
	snapRec, err := json.Marshal(snapshotJSON{
		SnapshotID: snap.ID,
		NodeCount:  snap.NodeCount,
		EdgeCount:  snap.EdgeCount,
		SavedAt:    snap.SavedAt,
	})
	if err != nil {
		return Snapshot{}, fmt.Errorf("encoding snapshot: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return Snapshot{}, fmt.Errorf("beginning save transaction: %w", err)
	}
	defer tx.Rollback()
	for _, table := range []string{"nodes", "edges"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return Snapshot{}, fmt.Errorf("clearing %s: %w", table, err)
		}
	}
	if err := insertRecords(tx, nodesMapping.table, nodesMapping.columns, nodeRecs); err != nil {
		return Snapshot{}, err
	}
	if err := insertRecords(tx, edgesMapping.table, edgesMapping.columns, edgeRecs); err != nil {
		return Snapshot{}, err
	}
	if err := insertRecords(tx, snapshotsMapping.table, snapshotsMapping.columns, []json.RawMessage{snapRec}); err != nil {
		return Snapshot{}, err
	}
	if err := tx.Commit(); err != nil {
		return Snapshot{}, fmt.Errorf("committing save transaction: %w", err)
	}

	if err := writeJSONL(filepath.Join(s.dataDir, nodesJSONL), nodeRecs); err != nil {
		return Snapshot{}, fmt.Errorf("persisting nodes: %w", err)
	}
	if err := writeJSONL(filepath.Join(s.dataDir, edgesJSONL), edgeRecs); err != nil {
		return Snapshot{}, fmt.Errorf("persisting edges: %w", err)
	}
	snapshots, err := readJSONL(filepath.Join(s.dataDir, snapshotsJSONL))
	if err != nil {
		return Snapshot{}, err
	}
	if err := writeJSONL(filepath.Join(s.dataDir, snapshotsJSONL), append(snapshots, snapRec)); err != nil {
		return Snapshot{}, fmt.Errorf("persisting snapshot: %w", err)
	}

	s.log.Info().Str("snapshot_id", snap.ID).Int("nodes", snap.NodeCount).Int("edges", snap.EdgeCount).Msg("canvas saved")
	return snap, nil
}

// LoadCanvas adds the stored nodes, then the stored edges, to c in the order
// they were saved. It returns the number of nodes and edges added.
func (s *Store) LoadCanvas(c types.Canvas) (int, int, error) {
	nodes, err := s.Nodes()
	if err != nil {
		return 0, 0, err
	}
	edges, err := s.Edges()
	if err != nil {
		return 0, 0, err
	}
	for _, n := range nodes {
		if err := c.AddNode(n); err != nil {
			return 0, 0, fmt.Errorf("adding node %s: %w", n.ID, err)
		}
	}
	for _, e := range edges {
		if err := c.AddEdge(e); err != nil {
			return len(nodes), 0, fmt.Errorf("adding edge %s: %w", e.ID, err)
		}
	}
	return len(nodes), len(edges), nil
}

// Nodes returns the stored nodes in save order.
func (s *Store) Nodes() ([]*types.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.attached {
		return nil, types.ErrStoreDetached
	}
	rows, err := s.db.Query(`SELECT node_id, node_type, position_x, position_y, width, height,
		ports, visual, data, ordinal FROM nodes ORDER BY ordinal`)
	if err != nil {
		return nil, fmt.Errorf("querying nodes: %w", err)
	}
	defer rows.Close()

	var out []*types.Node
	for rows.Next() {
		var (
			r                   nodeJSON
			ports, visual, data sql.NullString
		)
		if err := rows.Scan(&r.NodeID, &r.NodeType, &r.PositionX, &r.PositionY, &r.Width, &r.Height,
			&ports, &visual, &data, &r.Ordinal); err != nil {
			return nil, fmt.Errorf("scanning node: %w", err)
		}
		if err := decodeColumn(ports, &r.Ports); err != nil {
			return nil, fmt.Errorf("node %s ports: %w", r.NodeID, err)
		}
		if err := decodeColumn(visual, &r.Visual); err != nil {
			return nil, fmt.Errorf("node %s visual: %w", r.NodeID, err)
		}
		if err := decodeColumn(data, &r.Data); err != nil {
			return nil, fmt.Errorf("node %s data: %w", r.NodeID, err)
		}
		out = append(out, r.node())
	}
	return out, rows.Err()
}

// Edges returns the stored edges in save order.
func (s *Store) Edges() ([]*types.Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.attached {
		return nil, types.ErrStoreDetached
	}
	rows, err := s.db.Query(`SELECT edge_id, edge_type, source_cell, source_port, target_cell, target_port,
		target_x, target_y, data, label, style, ordinal FROM edges ORDER BY ordinal`)
	if err != nil {
		return nil, fmt.Errorf("querying edges: %w", err)
	}
	defer rows.Close()

	var out []*types.Edge
	for rows.Next() {
		var (
			r                               edgeJSON
			srcPort, tgtCell, tgtPort, data sql.NullString
			label, style                    sql.NullString
			tgtX, tgtY                      sql.NullFloat64
		)
		if err := rows.Scan(&r.EdgeID, &r.EdgeType, &r.SourceCell, &srcPort, &tgtCell, &tgtPort,
			&tgtX, &tgtY, &data, &label, &style, &r.Ordinal); err != nil {
			return nil, fmt.Errorf("scanning edge: %w", err)
		}
		r.SourcePort, r.TargetCell, r.TargetPort, r.Label = srcPort.String, tgtCell.String, tgtPort.String, label.String
		if tgtX.Valid && tgtY.Valid {
			r.TargetX, r.TargetY = &tgtX.Float64, &tgtY.Float64
		}
		if err := decodeColumn(data, &r.Data); err != nil {
			return nil, fmt.Errorf("edge %s data: %w", r.EdgeID, err)
		}
		if err := decodeColumn(style, &r.Style); err != nil {
			return nil, fmt.Errorf("edge %s style: %w", r.EdgeID, err)
		}
		out = append(out, r.edge())
	}
	return out, rows.Err()
}

// Snapshots returns every recorded save, oldest first.
func (s *Store) Snapshots() ([]Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.attached {
		return nil, types.ErrStoreDetached
	}
	rows, err := s.db.Query(`SELECT snapshot_id, node_count, edge_count, saved_at FROM snapshots ORDER BY saved_at, snapshot_id`)
	if err != nil {
		return nil, fmt.Errorf("querying snapshots: %w", err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var snap Snapshot
		if err := rows.Scan(&snap.ID, &snap.NodeCount, &snap.EdgeCount, &snap.SavedAt); err != nil {
			return nil, fmt.Errorf("scanning snapshot: %w", err)
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

// decodeColumn unmarshals a JSON text column into v. NULL leaves v unchanged.
func decodeColumn(col sql.NullString, v any) error {
	if !col.Valid || col.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(col.String), v)
}
