package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/zerox80/speicherwald/internal/config"
	"github.com/zerox80/speicherwald/internal/events"
	"github.com/zerox80/speicherwald/internal/job"
	"github.com/zerox80/speicherwald/internal/pathutil"
	"github.com/zerox80/speicherwald/internal/scanopts"
	"github.com/zerox80/speicherwald/internal/store"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

var scanDBPath string
var scanFlags *config.ScanFlags

var scanCmd = &cobra.Command{
	Use:   "scan [roots...]",
	Short: "Run a single scan to completion and print a summary",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runScan,
}

func init() {
	scanCmd.Flags().StringVar(&scanDBPath, "db", "./speicherwald.db", "path to the SQLite database")
	scanFlags = config.RegisterScanFlags(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync()

	roots := make([]string, 0, len(args))
	for _, a := range args {
		abs, err := filepath.Abs(a)
		if err != nil {
			return fmt.Errorf("resolve root %q: %w", a, err)
		}
		roots = append(roots, pathutil.Normalize(abs))
	}

	st, err := store.Open(scanDBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	bus := events.New()
	manager := job.New(st, bus, scanopts.DefaultTunables(), logger.Named("job"))

	ch, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nCanceling...")
		cancel()
	}()

	opts := scanFlags.Resolve(roots)
	id, err := manager.Start(ctx, opts)
	if err != nil {
		return fmt.Errorf("start scan: %w", err)
	}
	fmt.Printf("Scanning %v (scan id %s)...\n", roots, id)
	go func() {
		<-ctx.Done()
		manager.Cancel(id)
	}()

	startTime := time.Now()
	var spinnerIdx int
	var finished events.FinishedPayload
	var canceled bool

loop:
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				break loop
			}
			if ev.ScanID != id {
				continue
			}
			switch p := ev.Payload.(type) {
			case events.ProgressPayload:
				spinner := spinnerFrames[spinnerIdx%len(spinnerFrames)]
				spinnerIdx++
				fmt.Fprintf(os.Stderr, "\r\033[K%s %d dirs | %d files | %s | %s",
					spinner, p.Dirs, p.Files, humanize.Bytes(uint64(p.BytesAlloc)), time.Since(startTime).Round(time.Millisecond))
			case events.FinishedPayload:
				finished = p
				break loop
			case events.CanceledPayload:
				canceled = true
				break loop
			}
		}
	}

	fmt.Fprintf(os.Stderr, "\r\033[K")
	if canceled {
		fmt.Println("Scan canceled.")
		return nil
	}

	fmt.Printf("Scan finished in %s\n", time.Since(startTime).Round(time.Millisecond))
	fmt.Printf("  Status: %s\n", finished.Status)
	fmt.Printf("  Directories: %d\n", finished.Totals.DirCount)
	fmt.Printf("  Files: %d\n", finished.Totals.FileCount)
	fmt.Printf("  Apparent size: %s\n", humanize.Bytes(uint64(finished.Totals.LogicalSize)))
	fmt.Printf("  Disk usage: %s\n", humanize.Bytes(uint64(finished.Totals.AllocatedSize)))
	if finished.Totals.WarningCount > 0 {
		fmt.Printf("  Warnings: %d\n", finished.Totals.WarningCount)
	}
	return nil
}
