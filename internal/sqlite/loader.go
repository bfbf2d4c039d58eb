package sqlite

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"
)

// tableMapping ties a JSONL file to its SQLite table and column list.
type tableMapping struct {
	file    string
	table   string
	columns []string
}

var (
	nodesMapping = tableMapping{nodesJSONL, "nodes", []string{
		"node_id", "node_type", "position_x", "position_y", "width", "height",
		"ports", "visual", "data", "ordinal",
	}}
	edgesMapping = tableMapping{edgesJSONL, "edges", []string{
		"edge_id", "edge_type", "source_cell", "source_port", "target_cell", "target_port",
		"target_x", "target_y", "data", "label", "style", "ordinal",
	}}
	snapshotsMapping = tableMapping{snapshotsJSONL, "snapshots", []string{
		"snapshot_id", "node_count", "edge_count", "saved_at",
	}}
)

// jsonlTableMapping lists the mappings in load order.
var jsonlTableMapping = []tableMapping{nodesMapping, edgesMapping, snapshotsMapping}

// loadAllJSONL reads each JSONL file from dataDir into its table inside one
// transaction. Malformed lines and unknown fields are ignored.
func loadAllJSONL(db *sql.DB, dataDir string) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("beginning load transaction: %w", err)
	}
	defer tx.Rollback()

	for _, mapping := range jsonlTableMapping {
		records, err := readJSONL(filepath.Join(dataDir, mapping.file))
		if err != nil {
			return fmt.Errorf("reading %s: %w", mapping.file, err)
		}
		if len(records) == 0 {
			continue
		}
		if err := insertRecords(tx, mapping.table, mapping.columns, records); err != nil {
			return fmt.Errorf("loading %s into %s: %w", mapping.file, mapping.table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing load transaction: %w", err)
	}
	return nil
}

// insertRecords inserts JSONL records into table. Only the listed columns
// are extracted. Nested objects and arrays are stored as JSON text. Records
// that fail to parse or violate a constraint are skipped.
func insertRecords(tx *sql.Tx, table string, columns []string, records []json.RawMessage) error {
	placeholders := make([]string, len(columns))
	for i := range placeholders {
		placeholders[i] = "?"
	}
	insertSQL := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		table,
		joinColumns(columns),
		joinColumns(placeholders),
	)

	stmt, err := tx.Prepare(insertSQL)
	if err != nil {
		return fmt.Errorf("preparing insert for %s: %w", table, err)
	}
	defer stmt.Close()

	for _, rec := range records {
		var obj map[string]any
		if err := json.Unmarshal(rec, &obj); err != nil {
			continue
		}

		args := make([]any, len(columns))
		for i, col := range columns {
			switch v := obj[col].(type) {
			case map[string]any, []any:
				b, err := json.Marshal(v)
				if err != nil {
					continue
				}
				args[i] = string(b)
			default:
				args[i] = v
			}
		}

		if _, err := stmt.Exec(args...); err != nil {
			continue
		}
	}
	return nil
}

func joinColumns(cols []string) string {
	return strings.Join(cols, ", ")
}
