package internal

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS eras (
	id TEXT PRIMARY KEY,
	name TEXT UNIQUE NOT NULL,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS context_heaps (
	id TEXT PRIMARY KEY,
	era_id TEXT NOT NULL,
	first_message_id TEXT,
	type TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_heaps_era ON context_heaps(era_id);

CREATE TABLE IF NOT EXISTS messages (
	id TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	message_number INTEGER,
	content TEXT,
	heap_id TEXT,
	parent_id TEXT,
	sender TEXT,
	recipient TEXT,
	session_id TEXT,
	timestamp INTEGER,
	source_file TEXT,
	label TEXT,
	model TEXT,
	stop_reason TEXT,
	input_tokens INTEGER,
	output_tokens INTEGER,
	cache_creation_tokens INTEGER,
	cache_read_tokens INTEGER,
	signature TEXT,
	tool_name TEXT,
	tool_id TEXT,
	tool_use_id TEXT,
	is_error INTEGER NOT NULL DEFAULT 0,
	is_retry INTEGER NOT NULL DEFAULT 0,
	is_synthetic_error INTEGER NOT NULL DEFAULT 0,
	is_continuation INTEGER NOT NULL DEFAULT 0,
	is_apparent_duplicate INTEGER NOT NULL DEFAULT 0,
	is_sidechain INTEGER NOT NULL DEFAULT 0,
	cwd TEXT,
	git_branch TEXT,
	client_version TEXT
);
CREATE INDEX IF NOT EXISTS idx_messages_heap ON messages(heap_id, message_number);
CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, timestamp);

CREATE TABLE IF NOT EXISTS compacting_actions (
	id TEXT PRIMARY KEY,
	heap_id TEXT,
	ending_message_id TEXT,
	boundary_message_id TEXT,
	continuation_message_id TEXT,
	summary TEXT,
	"trigger" TEXT,
	pre_compact_tokens INTEGER,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_actions_heap ON compacting_actions(heap_id);

CREATE TABLE IF NOT EXISTS watchlist (
	boundary_message_id TEXT PRIMARY KEY,
	action_id TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS source_files (
	id TEXT PRIMARY KEY,
	filename TEXT NOT NULL,
	path TEXT UNIQUE NOT NULL,
	checksum TEXT,
	line_count INTEGER,
	message_count INTEGER,
	imported_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS attachments (
	id TEXT PRIMARY KEY,
	entity_kind TEXT,
	entity_id TEXT,
	kind TEXT NOT NULL,
	body TEXT,
	source_file TEXT,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_attachments_entity ON attachments(entity_kind, entity_id);

CREATE TABLE IF NOT EXISTS driver_state (
	key TEXT PRIMARY KEY,
	value BLOB
);
`

// SQLiteStore is the archive-backed Store.
type SQLiteStore struct {
	db *sql.DB
}

// OpenArchive opens (creating if needed) the SQLite archive at path and
// ensures the schema exists.
func OpenArchive(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &StorageError{Op: "open", Err: err}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &StorageError{Op: "open", Err: err}
	}

	// The driver is the single writer; one connection avoids SQLITE_BUSY
	// between the importer and same-process readers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, &StorageError{Op: "exec", Err: fmt.Errorf("schema init: %w", err)}
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) PutEra(era *Era) error {
	_, err := s.db.Exec(
		`INSERT INTO eras (id, name, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name`,
		era.ID, era.Name, era.CreatedAt.Unix())
	if err != nil {
		return &StorageError{Op: "exec", Err: err}
	}
	return nil
}

func (s *SQLiteStore) GetEra(id string) (*Era, error) {
	return s.scanEra(s.db.QueryRow(`SELECT id, name, created_at FROM eras WHERE id = ?`, id))
}

func (s *SQLiteStore) GetEraByName(name string) (*Era, error) {
	return s.scanEra(s.db.QueryRow(`SELECT id, name, created_at FROM eras WHERE name = ?`, name))
}

func (s *SQLiteStore) scanEra(row *sql.Row) (*Era, error) {
	var era Era
	var created int64
	if err := row.Scan(&era.ID, &era.Name, &created); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, &StorageError{Op: "query", Err: err}
	}
	era.CreatedAt = time.Unix(created, 0).UTC()
	return &era, nil
}

func (s *SQLiteStore) RenameEra(id, newName string) error {
	res, err := s.db.Exec(`UPDATE eras SET name = ? WHERE id = ?`, newName, id)
	if err != nil {
		return &StorageError{Op: "exec", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return &StorageError{Op: "exec", Err: err}
	}
	if n == 0 {
		return fmt.Errorf("era %s not found", id)
	}
	return nil
}

func (s *SQLiteStore) Eras() ([]*Era, error) {
	rows, err := s.db.Query(`SELECT id, name, created_at FROM eras ORDER BY created_at`)
	if err != nil {
		return nil, &StorageError{Op: "query", Err: err}
	}
	defer rows.Close()

	var eras []*Era
	for rows.Next() {
		var era Era
		var created int64
		if err := rows.Scan(&era.ID, &era.Name, &created); err != nil {
			return nil, &StorageError{Op: "query", Err: err}
		}
		era.CreatedAt = time.Unix(created, 0).UTC()
		eras = append(eras, &era)
	}
	return eras, rows.Err()
}

func (s *SQLiteStore) PutHeap(heap *ContextHeap) error {
	_, err := s.db.Exec(
		`INSERT INTO context_heaps (id, era_id, first_message_id, type, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			first_message_id = excluded.first_message_id,
			type = excluded.type`,
		heap.ID, heap.EraID, nullable(heap.FirstMessageID), string(heap.Type), heap.CreatedAt.Unix())
	if err != nil {
		return &StorageError{Op: "exec", Err: err}
	}
	return nil
}

func (s *SQLiteStore) GetHeap(id string) (*ContextHeap, error) {
	row := s.db.QueryRow(
		`SELECT id, era_id, first_message_id, type, created_at FROM context_heaps WHERE id = ?`, id)
	heap, err := scanHeap(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return heap, err
}

func (s *SQLiteStore) HeapsByEra(eraID string) ([]*ContextHeap, error) {
	rows, err := s.db.Query(
		`SELECT id, era_id, first_message_id, type, created_at
		 FROM context_heaps WHERE era_id = ? ORDER BY created_at, id`, eraID)
	if err != nil {
		return nil, &StorageError{Op: "query", Err: err}
	}
	defer rows.Close()

	var heaps []*ContextHeap
	for rows.Next() {
		heap, err := scanHeap(rows.Scan)
		if err != nil {
			return nil, err
		}
		heaps = append(heaps, heap)
	}
	return heaps, rows.Err()
}

func scanHeap(scan func(dest ...any) error) (*ContextHeap, error) {
	var heap ContextHeap
	var first sql.NullString
	var typ string
	var created int64
	if err := scan(&heap.ID, &heap.EraID, &first, &typ, &created); err != nil {
		return nil, err
	}
	heap.FirstMessageID = first.String
	heap.Type = HeapType(typ)
	heap.CreatedAt = time.Unix(created, 0).UTC()
	return &heap, nil
}

const messageColumns = `id, kind, message_number, content, heap_id, parent_id, sender, recipient,
	session_id, timestamp, source_file, label, model, stop_reason,
	input_tokens, output_tokens, cache_creation_tokens, cache_read_tokens,
	signature, tool_name, tool_id, tool_use_id,
	is_error, is_retry, is_synthetic_error, is_continuation, is_apparent_duplicate, is_sidechain,
	cwd, git_branch, client_version`

func (s *SQLiteStore) PutMessage(msg *Message) error {
	return s.putMessage(s.db.Exec, msg)
}

type execFn func(query string, args ...any) (sql.Result, error)

func (s *SQLiteStore) putMessage(exec execFn, msg *Message) error {
	_, err := exec(
		`INSERT INTO messages (`+messageColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			message_number = excluded.message_number,
			heap_id = excluded.heap_id,
			is_continuation = excluded.is_continuation,
			is_apparent_duplicate = excluded.is_apparent_duplicate`,
		msg.ID, string(msg.Kind), msg.MessageNumber, msg.Content,
		nullable(msg.HeapID), nullable(msg.ParentID), msg.Sender, msg.Recipient,
		nullable(msg.SessionID), msg.Timestamp, msg.SourceFile, msg.Label,
		msg.Model, msg.StopReason,
		msg.InputTokens, msg.OutputTokens, msg.CacheCreationTokens, msg.CacheReadTokens,
		msg.Signature, msg.ToolName, msg.ToolID, msg.ToolUseID,
		boolInt(msg.IsError), boolInt(msg.IsRetry), boolInt(msg.IsSyntheticError),
		boolInt(msg.IsContinuation), boolInt(msg.IsApparentDuplicate), boolInt(msg.IsSidechain),
		msg.CWD, msg.GitBranch, msg.ClientVersion)
	if err != nil {
		return &StorageError{Op: "exec", Err: err}
	}
	return nil
}

func (s *SQLiteStore) GetMessage(id string) (*Message, error) {
	row := s.db.QueryRow(`SELECT `+messageColumns+` FROM messages WHERE id = ?`, id)
	msg, err := scanMessage(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return msg, err
}

func (s *SQLiteStore) HeapMessages(heapID string) ([]*Message, error) {
	return s.MessagesAfter(heapID, -1)
}

func (s *SQLiteStore) HeapSize(heapID string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM messages WHERE heap_id = ?`, heapID).Scan(&n)
	if err != nil {
		return 0, &StorageError{Op: "query", Err: err}
	}
	return n, nil
}

func (s *SQLiteStore) MessagesAfter(heapID string, afterNumber int) ([]*Message, error) {
	rows, err := s.db.Query(
		`SELECT `+messageColumns+` FROM messages
		 WHERE heap_id = ? AND message_number > ?
		 ORDER BY message_number`, heapID, afterNumber)
	if err != nil {
		return nil, &StorageError{Op: "query", Err: err}
	}
	defer rows.Close()

	var msgs []*Message
	for rows.Next() {
		msg, err := scanMessage(rows.Scan)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

func scanMessage(scan func(dest ...any) error) (*Message, error) {
	var msg Message
	var kind string
	var heapID, parentID, sessionID sql.NullString
	var isError, isRetry, isSynthetic, isContinuation, isDuplicate, isSidechain int
	if err := scan(
		&msg.ID, &kind, &msg.MessageNumber, &msg.Content,
		&heapID, &parentID, &msg.Sender, &msg.Recipient,
		&sessionID, &msg.Timestamp, &msg.SourceFile, &msg.Label,
		&msg.Model, &msg.StopReason,
		&msg.InputTokens, &msg.OutputTokens, &msg.CacheCreationTokens, &msg.CacheReadTokens,
		&msg.Signature, &msg.ToolName, &msg.ToolID, &msg.ToolUseID,
		&isError, &isRetry, &isSynthetic, &isContinuation, &isDuplicate, &isSidechain,
		&msg.CWD, &msg.GitBranch, &msg.ClientVersion,
	); err != nil {
		return nil, err
	}
	msg.Kind = MessageKind(kind)
	msg.HeapID = heapID.String
	msg.ParentID = parentID.String
	msg.SessionID = sessionID.String
	msg.IsError = isError != 0
	msg.IsRetry = isRetry != 0
	msg.IsSyntheticError = isSynthetic != 0
	msg.IsContinuation = isContinuation != 0
	msg.IsApparentDuplicate = isDuplicate != 0
	msg.IsSidechain = isSidechain != 0
	return &msg, nil
}

func (s *SQLiteStore) PutAction(action *CompactingAction) error {
	return s.putAction(s.db.Exec, action)
}

func (s *SQLiteStore) putAction(exec execFn, action *CompactingAction) error {
	_, err := exec(
		`INSERT INTO compacting_actions
			(id, heap_id, ending_message_id, boundary_message_id, continuation_message_id,
			 summary, "trigger", pre_compact_tokens, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			heap_id = excluded.heap_id,
			ending_message_id = excluded.ending_message_id,
			continuation_message_id = excluded.continuation_message_id`,
		action.ID, nullable(action.HeapID), nullable(action.EndingMessageID),
		nullable(action.BoundaryMessageID), nullable(action.ContinuationMessageID),
		action.Summary, action.Trigger, action.PreCompactTokens, action.CreatedAt.Unix())
	if err != nil {
		return &StorageError{Op: "exec", Err: err}
	}
	return nil
}

const actionColumns = `id, heap_id, ending_message_id, boundary_message_id,
	continuation_message_id, summary, "trigger", pre_compact_tokens, created_at`

func (s *SQLiteStore) GetAction(id string) (*CompactingAction, error) {
	row := s.db.QueryRow(`SELECT `+actionColumns+` FROM compacting_actions WHERE id = ?`, id)
	action, err := scanAction(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return action, err
}

func (s *SQLiteStore) ActionForHeap(heapID string) (*CompactingAction, error) {
	row := s.db.QueryRow(`SELECT `+actionColumns+` FROM compacting_actions WHERE heap_id = ?`, heapID)
	action, err := scanAction(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return action, err
}

func (s *SQLiteStore) OrphanedActions() ([]*CompactingAction, error) {
	rows, err := s.db.Query(
		`SELECT ` + actionColumns + ` FROM compacting_actions WHERE heap_id IS NULL ORDER BY id`)
	if err != nil {
		return nil, &StorageError{Op: "query", Err: err}
	}
	defer rows.Close()

	var actions []*CompactingAction
	for rows.Next() {
		action, err := scanAction(rows.Scan)
		if err != nil {
			return nil, err
		}
		actions = append(actions, action)
	}
	return actions, rows.Err()
}

func scanAction(scan func(dest ...any) error) (*CompactingAction, error) {
	var action CompactingAction
	var heapID, ending, boundary, continuation sql.NullString
	var created int64
	if err := scan(
		&action.ID, &heapID, &ending, &boundary, &continuation,
		&action.Summary, &action.Trigger, &action.PreCompactTokens, &created,
	); err != nil {
		return nil, err
	}
	action.HeapID = heapID.String
	action.EndingMessageID = ending.String
	action.BoundaryMessageID = boundary.String
	action.ContinuationMessageID = continuation.String
	action.CreatedAt = time.Unix(created, 0).UTC()
	return &action, nil
}

func (s *SQLiteStore) PutWatch(boundaryID, actionID string) error {
	_, err := s.db.Exec(
		`INSERT INTO watchlist (boundary_message_id, action_id) VALUES (?, ?)
		 ON CONFLICT(boundary_message_id) DO UPDATE SET action_id = excluded.action_id`,
		boundaryID, actionID)
	if err != nil {
		return &StorageError{Op: "exec", Err: err}
	}
	return nil
}

func (s *SQLiteStore) GetWatch(boundaryID string) (string, error) {
	var actionID string
	err := s.db.QueryRow(
		`SELECT action_id FROM watchlist WHERE boundary_message_id = ?`, boundaryID).Scan(&actionID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", &StorageError{Op: "query", Err: err}
	}
	return actionID, nil
}

func (s *SQLiteStore) DeleteWatch(boundaryID string) error {
	if _, err := s.db.Exec(`DELETE FROM watchlist WHERE boundary_message_id = ?`, boundaryID); err != nil {
		return &StorageError{Op: "exec", Err: err}
	}
	return nil
}

func (s *SQLiteStore) Watchlist() (map[string]string, error) {
	rows, err := s.db.Query(`SELECT boundary_message_id, action_id FROM watchlist`)
	if err != nil {
		return nil, &StorageError{Op: "query", Err: err}
	}
	defer rows.Close()

	watches := make(map[string]string)
	for rows.Next() {
		var boundaryID, actionID string
		if err := rows.Scan(&boundaryID, &actionID); err != nil {
			return nil, &StorageError{Op: "query", Err: err}
		}
		watches[boundaryID] = actionID
	}
	return watches, rows.Err()
}

// SplitHeap applies a retroactive split in one transaction so readers
// never see a partially moved heap.
func (s *SQLiteStore) SplitHeap(newHeap *ContextHeap, moved []*Message, action *CompactingAction) error {
	tx, err := s.db.Begin()
	if err != nil {
		return &StorageError{Op: "exec", Err: err}
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO context_heaps (id, era_id, first_message_id, type, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		newHeap.ID, newHeap.EraID, nullable(newHeap.FirstMessageID),
		string(newHeap.Type), newHeap.CreatedAt.Unix())
	if err != nil {
		return &StorageError{Op: "exec", Err: err}
	}

	for _, msg := range moved {
		if err := s.putMessage(tx.Exec, msg); err != nil {
			return err
		}
	}

	if action != nil {
		if err := s.putAction(tx.Exec, action); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return &StorageError{Op: "exec", Err: err}
	}
	return nil
}

func (s *SQLiteStore) PutSourceFile(sf *SourceFile) error {
	_, err := s.db.Exec(
		`INSERT INTO source_files (id, filename, path, checksum, line_count, message_count, imported_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET
			checksum = excluded.checksum,
			line_count = excluded.line_count,
			message_count = excluded.message_count,
			imported_at = excluded.imported_at`,
		sf.ID, sf.Filename, sf.Path, sf.Checksum, sf.LineCount, sf.MessageCount, sf.ImportedAt.Unix())
	if err != nil {
		return &StorageError{Op: "exec", Err: err}
	}
	return nil
}

func (s *SQLiteStore) GetSourceFileByPath(path string) (*SourceFile, error) {
	var sf SourceFile
	var imported int64
	err := s.db.QueryRow(
		`SELECT id, filename, path, checksum, line_count, message_count, imported_at
		 FROM source_files WHERE path = ?`, path).
		Scan(&sf.ID, &sf.Filename, &sf.Path, &sf.Checksum, &sf.LineCount, &sf.MessageCount, &imported)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &StorageError{Op: "query", Err: err}
	}
	sf.ImportedAt = time.Unix(imported, 0).UTC()
	return &sf, nil
}

func (s *SQLiteStore) PutAttachment(att *Attachment) error {
	_, err := s.db.Exec(
		`INSERT INTO attachments (id, entity_kind, entity_id, kind, body, source_file, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		att.ID, att.EntityKind, att.EntityID, att.Kind, att.Body, att.SourceFile, att.CreatedAt.Unix())
	if err != nil {
		return &StorageError{Op: "exec", Err: err}
	}
	return nil
}

func (s *SQLiteStore) AttachmentsFor(entityKind, entityID string) ([]*Attachment, error) {
	rows, err := s.db.Query(
		`SELECT id, entity_kind, entity_id, kind, body, source_file, created_at
		 FROM attachments WHERE entity_kind = ? AND entity_id = ? ORDER BY created_at`,
		entityKind, entityID)
	if err != nil {
		return nil, &StorageError{Op: "query", Err: err}
	}
	defer rows.Close()

	var atts []*Attachment
	for rows.Next() {
		var att Attachment
		var created int64
		if err := rows.Scan(&att.ID, &att.EntityKind, &att.EntityID, &att.Kind,
			&att.Body, &att.SourceFile, &created); err != nil {
			return nil, &StorageError{Op: "query", Err: err}
		}
		att.CreatedAt = time.Unix(created, 0).UTC()
		atts = append(atts, &att)
	}
	return atts, rows.Err()
}

func (s *SQLiteStore) SaveDriverState(key string, state []byte) error {
	_, err := s.db.Exec(
		`INSERT INTO driver_state (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, state)
	if err != nil {
		return &StorageError{Op: "exec", Err: err}
	}
	return nil
}

func (s *SQLiteStore) LoadDriverState(key string) ([]byte, error) {
	var state []byte
	err := s.db.QueryRow(`SELECT value FROM driver_state WHERE key = ?`, key).Scan(&state)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &StorageError{Op: "query", Err: err}
	}
	return state, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
