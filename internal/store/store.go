// Package store implements schema management, pragma configuration,
// and batched, placeholder-clamped inserts for scans, nodes, files and
// warnings.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/zerox80/speicherwald/internal/model"
	_ "modernc.org/sqlite"
)

// Store wraps a *sql.DB configured for the scan engine's write and read
// patterns.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the SQLite database at path and
// applies the write-oriented pragmas.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite serializes writers; avoid SQLITE_BUSY storms

	s := &Store{db: db}
	if err := s.applyPragmas(); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// DB exposes the underlying handle for read-only query endpoints
// outside the write path.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) applyPragmas() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -64000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA mmap_size = 268435456",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("apply pragma %q: %w", p, err)
		}
	}
	return nil
}

func (s *Store) initSchema() error {
	ddls := []string{scansTableDDL, nodesTableDDL, filesTableDDL, warningsTableDDL}
	for _, ddl := range ddls {
		if _, err := s.db.Exec(ddl); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	for _, idx := range indexDDLs {
		if _, err := s.db.Exec(idx); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}

// CreateScan inserts the initial running-status row for a new scan.
func (s *Store) CreateScan(scan model.Scan) error {
	roots, err := json.Marshal(scan.RootPaths)
	if err != nil {
		return fmt.Errorf("marshal root paths: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO scans (id, status, root_paths, options, started_at) VALUES (?, ?, ?, ?, ?)`,
		scan.ID, string(scan.Status), string(roots), string(scan.Options), scan.StartedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("create scan: %w", err)
	}
	return nil
}

// FinalizeScan atomically sets the terminal status, totals and finish
// timestamp.
func (s *Store) FinalizeScan(id string, status model.ScanStatus, totals model.Totals, finishedAt time.Time) error {
	_, err := s.db.Exec(
		`UPDATE scans SET status = ?, finished_at = ?, total_logical_size = ?, total_allocated_size = ?, dir_count = ?, file_count = ?, warning_count = ? WHERE id = ?`,
		string(status), finishedAt.UTC().Format(time.RFC3339Nano),
		totals.LogicalSize, totals.AllocatedSize, totals.DirCount, totals.FileCount, totals.WarningCount,
		id,
	)
	if err != nil {
		return fmt.Errorf("finalize scan %s: %w", id, err)
	}
	return nil
}

// GetScan loads one scan row.
func (s *Store) GetScan(id string) (*model.Scan, error) {
	var sc model.Scan
	var roots, opts, startedAt string
	var finishedAt sql.NullString
	var totalLogical, totalAllocated, dirCount, fileCount, warningCount sql.NullInt64
	var status string

	err := s.db.QueryRow(`
		SELECT id, status, root_paths, options, started_at, finished_at,
		       total_logical_size, total_allocated_size, dir_count, file_count, warning_count
		FROM scans WHERE id = ?`, id).Scan(
		&sc.ID, &status, &roots, &opts, &startedAt, &finishedAt,
		&totalLogical, &totalAllocated, &dirCount, &fileCount, &warningCount,
	)
	if err != nil {
		return nil, err
	}

	sc.Status = model.ScanStatus(status)
	sc.Options = []byte(opts)
	if err := json.Unmarshal([]byte(roots), &sc.RootPaths); err != nil {
		return nil, fmt.Errorf("unmarshal root paths: %w", err)
	}
	sc.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt)
	if err != nil {
		return nil, fmt.Errorf("parse started_at: %w", err)
	}
	if finishedAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, finishedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse finished_at: %w", err)
		}
		sc.FinishedAt = &t
	}
	if totalLogical.Valid {
		sc.TotalLogicalSize = &totalLogical.Int64
	}
	if totalAllocated.Valid {
		sc.TotalAllocatedSize = &totalAllocated.Int64
	}
	if dirCount.Valid {
		sc.DirCount = &dirCount.Int64
	}
	if fileCount.Valid {
		sc.FileCount = &fileCount.Int64
	}
	if warningCount.Valid {
		sc.WarningCount = &warningCount.Int64
	}
	return &sc, nil
}

// ListScans returns all scans, most recently started first.
func (s *Store) ListScans() ([]model.Scan, error) {
	rows, err := s.db.Query(`SELECT id FROM scans ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list scans: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	scans := make([]model.Scan, 0, len(ids))
	for _, id := range ids {
		sc, err := s.GetScan(id)
		if err != nil {
			return nil, err
		}
		scans = append(scans, *sc)
	}
	return scans, nil
}

// PurgeScan deletes a scan row; cascading foreign keys remove its nodes,
// files and warnings.
func (s *Store) PurgeScan(id string) error {
	_, err := s.db.Exec(`DELETE FROM scans WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("purge scan %s: %w", id, err)
	}
	return nil
}

// nodeColumns and friends record the column count of each insert below.
// The job package's flusher passes the same counts to
// scanopts.RowsPerChunk, so every batch of rows is split so that no
// single parameterized statement exceeds the configured placeholder
// ceiling.
const (
	nodeColumns    = 9
	fileColumns    = 5
	warningColumns = 5
)

// InsertNodes writes a batch of nodes inside chunks of at most
// rowsPerChunk rows each, all within a single transaction.
func (s *Store) InsertNodes(scanID string, nodes []model.Node, rowsPerChunk int) error {
	if len(nodes) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin node insert: %w", err)
	}
	defer tx.Rollback()

	for start := 0; start < len(nodes); start += rowsPerChunk {
		end := min(start+rowsPerChunk, len(nodes))
		chunk := nodes[start:end]

		query, args := buildInsert(
			"nodes",
			[]string{"scan_id", "path", "parent_path", "depth", "is_dir", "logical_size", "allocated_size", "file_count", "dir_count"},
			len(chunk),
		)
		for _, n := range chunk {
			isDir := 0
			if n.IsDir {
				isDir = 1
			}
			args = append(args, scanID, n.Path, nullableString(n.ParentPath), n.Depth, isDir, n.LogicalSize, n.AllocatedSize, n.FileCount, n.DirCount)
		}
		if _, err := tx.Exec(query, args...); err != nil {
			return fmt.Errorf("insert nodes chunk: %w", err)
		}
	}
	return tx.Commit()
}

// InsertFiles writes a batch of files, chunked the same way as nodes.
func (s *Store) InsertFiles(scanID string, files []model.File, rowsPerChunk int) error {
	if len(files) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin file insert: %w", err)
	}
	defer tx.Rollback()

	for start := 0; start < len(files); start += rowsPerChunk {
		end := min(start+rowsPerChunk, len(files))
		chunk := files[start:end]

		query, args := buildInsert(
			"files",
			[]string{"scan_id", "path", "parent_path", "logical_size", "allocated_size"},
			len(chunk),
		)
		for _, f := range chunk {
			args = append(args, scanID, f.Path, nullableString(f.ParentPath), f.LogicalSize, f.AllocatedSize)
		}
		if _, err := tx.Exec(query, args...); err != nil {
			return fmt.Errorf("insert files chunk: %w", err)
		}
	}
	return tx.Commit()
}

// InsertWarnings writes a batch of warnings, chunked the same way.
func (s *Store) InsertWarnings(scanID string, warnings []model.Warning, rowsPerChunk int) error {
	if len(warnings) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin warning insert: %w", err)
	}
	defer tx.Rollback()

	for start := 0; start < len(warnings); start += rowsPerChunk {
		end := min(start+rowsPerChunk, len(warnings))
		chunk := warnings[start:end]

		query, args := buildInsert(
			"warnings",
			[]string{"scan_id", "path", "code", "message", "created_at"},
			len(chunk),
		)
		for _, w := range chunk {
			args = append(args, scanID, w.Path, w.Code, w.Message, w.CreatedAt.UTC().Format(time.RFC3339Nano))
		}
		if _, err := tx.Exec(query, args...); err != nil {
			return fmt.Errorf("insert warnings chunk: %w", err)
		}
	}
	return tx.Commit()
}

func buildInsert(table string, columns []string, rows int) (string, []any) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s (%s) VALUES ", table, strings.Join(columns, ", "))

	rowPlaceholder := "(" + strings.TrimSuffix(strings.Repeat("?,", len(columns)), ",") + ")"
	for i := 0; i < rows; i++ {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(rowPlaceholder)
	}
	return sb.String(), make([]any, 0, rows*len(columns))
}

func nullableString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
