package internal

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Tailer watches directories of JSONL session logs and feeds newly
// appended lines to the import driver. It is the incremental ingestion
// mode: no end-of-run reconciliation, orphans may resolve arbitrarily
// later.
//
// The tailer is the only goroutine that touches the driver (and through
// it the store), which satisfies the single-writer requirement.
type Tailer struct {
	driver  *Driver
	dirs    []string
	watcher *fsnotify.Watcher
}

// NewTailer creates a tailer over the given directories.
func NewTailer(driver *Driver, dirs []string) (*Tailer, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	return &Tailer{driver: driver, dirs: dirs, watcher: watcher}, nil
}

// ScanExisting establishes baseline offsets: files present at startup
// are only tailed from their current end, unless a persisted offset from
// a previous run says otherwise.
func (t *Tailer) ScanExisting() error {
	for _, dir := range t.dirs {
		paths, err := filepath.Glob(filepath.Join(dir, "*.jsonl"))
		if err != nil {
			return err
		}
		for _, path := range paths {
			st := t.driver.Stream(filepath.Base(path))
			if st.Offset > 0 {
				// Resume: catch up on whatever was appended while down.
				if err := t.catchUp(path); err != nil {
					LogError("failed to catch up on %s: %v", path, err)
				}
				continue
			}
			info, err := os.Stat(path)
			if err != nil {
				continue
			}
			st.Offset = info.Size()
			LogDebug("tracking %s from offset %d", filepath.Base(path), st.Offset)
		}
	}
	return nil
}

// Run blocks consuming file events until the context is cancelled. The
// in-flight line always finishes before shutdown, and driver state is
// persisted on the way out.
func (t *Tailer) Run(ctx context.Context) error {
	for _, dir := range t.dirs {
		if err := t.watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		LogInfo("watching %s", dir)
	}
	defer t.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			if err := t.driver.SaveState(); err != nil {
				return err
			}
			LogInfo("tailer stopped, state saved")
			return nil

		case event, ok := <-t.watcher.Events:
			if !ok {
				return t.driver.SaveState()
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if !strings.HasSuffix(event.Name, ".jsonl") {
				continue
			}
			if err := t.catchUp(event.Name); err != nil {
				LogError("failed to process %s: %v", event.Name, err)
			}

		case err, ok := <-t.watcher.Errors:
			if !ok {
				return t.driver.SaveState()
			}
			LogError("watch error: %v", err)
		}
	}
}

// catchUp applies every complete line appended to path since the stream's
// last offset. A trailing partial line is left for the next event; no
// partial-line processing is defined.
func (t *Tailer) catchUp(path string) error {
	source := filepath.Base(path)
	st := t.driver.Stream(source)

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	if info.Size() < st.Offset {
		// Truncated or rotated; start over from the top.
		LogWarn("%s shrank, re-reading from start", source)
		st.Offset = 0
	}
	if _, err := f.Seek(st.Offset, io.SeekStart); err != nil {
		return err
	}

	reader := bufio.NewReaderSize(f, scannerInitial)
	applied := 0
	for {
		line, err := reader.ReadBytes('\n')
		if err == io.EOF {
			// Incomplete line; re-read it once the writer finishes.
			break
		}
		if err != nil {
			return err
		}
		if applyErr := t.driver.ApplyLine(source, line); applyErr != nil {
			return applyErr
		}
		st.Offset += int64(len(line))
		applied++
	}

	if applied > 0 {
		LogInfo("applied %d new line(s) from %s", applied, source)
		return t.driver.SaveState()
	}
	return nil
}
