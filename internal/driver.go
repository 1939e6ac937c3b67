package internal

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Scanner sizing for JSONL lines; tool outputs can reach megabytes.
const (
	scannerInitial = 256 * 1024
	scannerMax     = 10 * 1024 * 1024
)

// RunStats aggregates what an import run did, for the report layer.
type RunStats struct {
	LinesRead    int `json:"lines_read"`
	DecodeErrors int `json:"decode_errors"`
	Unrecognized int `json:"unrecognized"`

	MessagesCreated    int `json:"messages_created"`
	MessagesExisting   int `json:"messages_existing"`
	ApparentDuplicates int `json:"apparent_duplicates"`

	ActionsCreated  int `json:"actions_created"`
	ActionsExisting int `json:"actions_existing"`

	HeapsFresh          int `json:"heaps_fresh"`
	HeapsPostCompacting int `json:"heaps_post_compacting"`
	HeapsSplit          int `json:"heaps_split"`
	HeapsNoParent       int `json:"heaps_no_parent"`
	HeapsClosed         int `json:"heaps_closed"`
	Splits              int `json:"splits"`

	Conflicts         int `json:"conflicts"`
	OrphansRegistered int `json:"orphans_registered"`
	OrphansResolved   int `json:"orphans_resolved"`
	OrphansRemaining  int `json:"orphans_remaining"`
}

// StreamState is the per-source import state: current heap, pending
// closure, and tail position. It is serialized with the rest of the
// driver state so interrupted runs resume where they stopped.
type StreamState struct {
	CurrentHeapID   string `json:"current_heap_id,omitempty"`
	ClosePending    bool   `json:"close_pending,omitempty"`
	PendingActionID string `json:"pending_action_id,omitempty"`
	LastMessageID   string `json:"last_message_id,omitempty"`
	Offset          int64  `json:"offset,omitempty"`
}

// ImportState is the whole serializable state of an import run. Bulk and
// incremental modes share it, which is what makes their final structure
// converge.
type ImportState struct {
	EraID   string                  `json:"era_id"`
	Streams map[string]*StreamState `json:"streams"`
	Stats   RunStats                `json:"stats"`
}

// Driver sequences decode, materialize, heap assignment, and boundary
// resolution per source stream. It is the single writer of the store.
type Driver struct {
	store        Store
	era          *Era
	state        *ImportState
	materializer *Materializer
	assigner     *HeapAssigner
	resolver     *BoundaryResolver
}

// NewDriver creates a driver with fresh run state for the given era.
func NewDriver(store Store, era *Era) *Driver {
	state := &ImportState{
		EraID:   era.ID,
		Streams: make(map[string]*StreamState),
	}
	return newDriver(store, era, state)
}

// ResumeDriver creates a driver, restoring any persisted state for the
// era so tail positions and pending closures survive restarts.
func ResumeDriver(store Store, era *Era) (*Driver, error) {
	raw, err := store.LoadDriverState(stateKey(era.ID))
	if err != nil {
		return nil, err
	}
	state := &ImportState{EraID: era.ID, Streams: make(map[string]*StreamState)}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, state); err != nil {
			return nil, fmt.Errorf("corrupt driver state for era %s: %w", era.ID, err)
		}
		if state.Streams == nil {
			state.Streams = make(map[string]*StreamState)
		}
	}
	return newDriver(store, era, state), nil
}

func newDriver(store Store, era *Era, state *ImportState) *Driver {
	d := &Driver{store: store, era: era, state: state}
	d.materializer = NewMaterializer(store, &state.Stats)
	d.assigner = NewHeapAssigner(store, &state.Stats)
	d.resolver = NewBoundaryResolver(store, &state.Stats)
	return d
}

func stateKey(eraID string) string {
	return "era:" + eraID
}

// Stats returns a copy of the run statistics so far.
func (d *Driver) Stats() RunStats {
	return d.state.Stats
}

// Era returns the era this run imports into.
func (d *Driver) Era() *Era {
	return d.era
}

// Stream returns (creating if needed) the state for one source stream.
func (d *Driver) Stream(source string) *StreamState {
	st, ok := d.state.Streams[source]
	if !ok {
		st = &StreamState{}
		d.state.Streams[source] = st
	}
	return st
}

// SaveState persists the serializable run state.
func (d *Driver) SaveState() error {
	raw, err := json.Marshal(d.state)
	if err != nil {
		return err
	}
	return d.store.SaveDriverState(stateKey(d.era.ID), raw)
}

// ApplyLine applies one raw line from the named source stream. Decode
// and content errors are reported and absorbed; only storage failures
// propagate.
func (d *Driver) ApplyLine(source string, line []byte) error {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil
	}
	d.state.Stats.LinesRead++
	st := d.Stream(source)

	ev, err := DecodeLine(line)
	if err != nil {
		d.state.Stats.DecodeErrors++
		LogWarn("%v", &DecodeError{Source: source, Err: err})
		return d.saveUnparseable(source, line)
	}

	switch ev.Kind {
	case EventUnrecognized:
		d.state.Stats.Unrecognized++
		LogDebug("unrecognized line shape in %s, kept for later analysis", source)
		return d.saveUnparseable(source, line)

	case EventCompactionSummary, EventBoundaryMarker:
		action, created, err := d.materializer.MaterializeCompaction(ev, source)
		if err != nil {
			return err
		}
		if !created {
			d.state.Stats.ActionsExisting++
			return nil
		}
		d.state.Stats.ActionsCreated++
		// A boundary marker arrives in-stream, so the last message this
		// stream applied is the true ending message; a summary from a
		// later session file has no such context.
		if ev.Kind == EventBoundaryMarker && st.LastMessageID != "" {
			action.EndingMessageID = st.LastMessageID
			if err := d.store.PutAction(action); err != nil {
				return err
			}
		}
		return d.resolver.OnAction(st, action)

	default:
		applied, err := d.materializer.MaterializeTurn(ev, source)
		if err != nil {
			return err
		}
		for _, app := range applied {
			if app.Created {
				d.state.Stats.MessagesCreated++
			} else {
				d.state.Stats.MessagesExisting++
			}
			if err := d.assigner.Assign(st, d.era.ID, app); err != nil {
				return err
			}
			if err := d.resolver.OnMessage(st, app.Message); err != nil {
				return err
			}
			st.LastMessageID = app.Message.ID
		}
		return nil
	}
}

// saveUnparseable keeps a line we could not handle as an unanchored raw
// attachment for later analysis.
func (d *Driver) saveUnparseable(source string, line []byte) error {
	att := &Attachment{
		ID:         ContentHashID("unparseable", source, string(line)),
		Kind:       AttachmentRaw,
		Body:       string(line),
		SourceFile: source,
		CreatedAt:  time.Now().UTC(),
	}
	return d.store.PutAttachment(att)
}

// ImportFile replays one finite JSONL file in file order and records it
// in the source-file registry.
func (d *Driver) ImportFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	source := filepath.Base(path)
	hash := sha256.New()
	createdBefore := d.state.Stats.MessagesCreated

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, scannerInitial), scannerMax)
	lines := 0
	for scanner.Scan() {
		hash.Write(scanner.Bytes())
		hash.Write([]byte{'\n'})
		lines++
		if err := d.ApplyLine(source, scanner.Bytes()); err != nil {
			return fmt.Errorf("failed to apply %s:%d: %w", source, lines, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	sf := &SourceFile{
		ID:           ContentHashID("source_file", path),
		Filename:     source,
		Path:         path,
		Checksum:     hex.EncodeToString(hash.Sum(nil)),
		LineCount:    lines,
		MessageCount: d.state.Stats.MessagesCreated - createdBefore,
		ImportedAt:   time.Now().UTC(),
	}
	if err := d.store.PutSourceFile(sf); err != nil {
		return err
	}

	LogInfo("imported %s: %d line(s)", source, lines)
	return nil
}

// ImportDir bulk-replays every *.jsonl file under dir in name order, then
// performs end-of-run reconciliation and persists the driver state.
func (d *Driver) ImportDir(dir string) error {
	paths, err := filepath.Glob(filepath.Join(dir, "*.jsonl"))
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no .jsonl files found in %s", dir)
	}
	sort.Strings(paths)

	LogInfo("importing %d file(s) from %s into era %q", len(paths), dir, d.era.Name)
	for _, path := range paths {
		if err := d.ImportFile(path); err != nil {
			return err
		}
	}

	if err := d.Reconcile(); err != nil {
		return err
	}
	return d.SaveState()
}

// Reconcile re-scans the watchlist once all sources are consumed; only
// bulk runs call this, tailing runs may resolve orphans arbitrarily later.
func (d *Driver) Reconcile() error {
	return d.resolver.Reconcile(nil)
}

// ManualSplit cuts a heap at the given message for operator-driven splits
// (export boundaries, model changes). Messages after the cut move to a
// new split_point heap whose first-message reference points at the
// divergence point in the parent heap.
func (d *Driver) ManualSplit(messageID string) (*ContextHeap, error) {
	msg, err := d.store.GetMessage(messageID)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, fmt.Errorf("message %s not found", messageID)
	}
	if msg.HeapID == "" {
		return nil, fmt.Errorf("message %s is not placed in a heap", messageID)
	}

	later, err := d.store.MessagesAfter(msg.HeapID, msg.MessageNumber)
	if err != nil {
		return nil, err
	}
	if len(later) == 0 {
		return nil, fmt.Errorf("message %s is already the end of heap %s", messageID, msg.HeapID)
	}

	parentHeap, err := d.store.GetHeap(msg.HeapID)
	if err != nil {
		return nil, err
	}

	newHeap := &ContextHeap{
		ID:             NewID(),
		EraID:          parentHeap.EraID,
		FirstMessageID: msg.ID,
		Type:           HeapSplitPoint,
		CreatedAt:      time.Now().UTC(),
	}
	for i, moved := range later {
		moved.HeapID = newHeap.ID
		moved.MessageNumber = i
	}
	if err := d.store.SplitHeap(newHeap, later, nil); err != nil {
		return nil, err
	}
	d.state.Stats.HeapsSplit++
	return newHeap, nil
}

// GetOrCreateEra looks an era up by name, creating it on first use.
func GetOrCreateEra(store Store, name string) (*Era, error) {
	era, err := store.GetEraByName(name)
	if err != nil {
		return nil, err
	}
	if era != nil {
		return era, nil
	}
	era = &Era{ID: NewID(), Name: name, CreatedAt: time.Now().UTC()}
	if err := store.PutEra(era); err != nil {
		return nil, err
	}
	LogInfo("created era %q", name)
	return era, nil
}
