// Package model holds the persistent and in-flight record types shared
// across the scan engine: the Scan lifecycle row, the aggregated Node and
// File rows written to the store, Warnings, and the record types the
// Directory Walker emits to the Aggregator.
package model

import "time"

// ScanStatus is the lifecycle state of a Scan.
type ScanStatus string

const (
	StatusRunning  ScanStatus = "running"
	StatusFinished ScanStatus = "finished"
	StatusCanceled ScanStatus = "canceled"
	StatusFailed   ScanStatus = "failed"
)

// Warning codes, per entry failure taxonomy.
const (
	CodeAccessDenied   = "access_denied"
	CodeNotFound       = "not_found"
	CodeIOError        = "io_error"
	CodeSizeProbeFail  = "size_probe_failed"
	CodeReparseSkipped = "reparse_skipped"
	CodeDepthLimit     = "depth_limit"
)

// Scan is the lifecycle record for one scan run.
type Scan struct {
	ID        string
	Status    ScanStatus
	RootPaths []string
	Options   []byte // resolved options, stored as JSON
	StartedAt time.Time

	FinishedAt         *time.Time
	TotalLogicalSize   *int64
	TotalAllocatedSize *int64
	DirCount           *int64
	FileCount          *int64
	WarningCount       *int64
}

// Node is an aggregated per-directory rollup.
type Node struct {
	ID            int64
	ScanID        string
	Path          string
	ParentPath    *string
	Depth         int
	IsDir         bool
	LogicalSize   int64
	AllocatedSize int64
	FileCount     int64
	DirCount      int64
}

// File is an individual file record.
type File struct {
	ID            int64
	ScanID        string
	Path          string
	ParentPath    *string
	LogicalSize   int64
	AllocatedSize int64
}

// Warning is a non-fatal per-entry failure.
type Warning struct {
	ID        int64
	ScanID    string
	Path      string
	Code      string
	Message   string
	CreatedAt time.Time
}

// Totals summarizes the counters carried by a finished or in-progress scan.
type Totals struct {
	LogicalSize   int64
	AllocatedSize int64
	DirCount      int64
	FileCount     int64
	WarningCount  int64
}

// FileRecord is emitted by the Directory Walker for every discovered file
// (and for non-directory, non-reparse entries classified as "other").
type FileRecord struct {
	Path          string
	ParentPath    string
	LogicalSize   int64
	AllocatedSize int64
}

// DirCloseRecord signals that a directory has no remaining pending
// children and its rollup is ready to be finalized by the Aggregator.
type DirCloseRecord struct {
	Path       string
	ParentPath string
	Depth      int
	IsRoot     bool
}

// WalkRecordKind tags the payload carried by a WalkRecord.
type WalkRecordKind int

const (
	WalkRecordFile WalkRecordKind = iota
	WalkRecordDirClose
)

// WalkRecord is the single ordered stream the Directory Walker emits to
// the Aggregator: a file discovery or a directory close, tagged by
// Kind. Both payload kinds travel on one channel so the Aggregator's
// single consumer sees them in the order the Walker produced them; a
// directory's close is only sent after the goroutine listing it has
// finished sending all of its files, and a child's close is always
// enqueued before the parent's, so a single FIFO channel preserves the
// walker's post-order guarantee. Splitting the two kinds across
// separate channels would let Go's select pick either one first and
// let a DirClose be handled before a sibling FileRecord still sitting
// in the other channel.
type WalkRecord struct {
	Kind     WalkRecordKind
	File     FileRecord
	DirClose DirCloseRecord
}

// WarningRecord is emitted by the Directory Walker when an entry cannot
// be enumerated or measured.
type WarningRecord struct {
	Path    string
	Code    string
	Message string
}
