package internal

import (
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	_ "modernc.org/sqlite"
)

// ProjectApplicationID is stored in the SQLite header's application_id
// field and identifies a file as a canvas-session project log.
const ProjectApplicationID = 0x43565353

// ProjectUserVersion is the current schema version, stored in the SQLite
// header's user_version field.
const ProjectUserVersion = 1

// Open flags for OpenProject.
const (
	// OpenExisting makes opening fail when the file does not exist.
	OpenExisting = 1 << iota
	// OpenTruncate resets the file to an empty store before use.
	OpenTruncate
)

// SourceType describes where a recorded session originated.
type SourceType int

const (
	SourceBlank SourceType = iota
	SourceFileOpen
	SourceSessionJoin
)

func (s SourceType) String() string {
	switch s {
	case SourceBlank:
		return "blank"
	case SourceFileOpen:
		return "file-open"
	case SourceSessionJoin:
		return "session-join"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// SessionCloseStatus is the outcome of SessionClose when no error occurred.
type SessionCloseStatus int

const (
	SessionClosed SessionCloseStatus = iota
	SessionNothingToClose
)

// Project is a durable, append-only log of protocol messages partitioned
// into sessions. It is not safe for concurrent use; confine each handle to
// one goroutine or serialize access externally.
type Project struct {
	db         *sql.DB
	path       string
	sessionID  int64
	sequenceID int64

	insertMessageStmt *sql.Stmt
	sessionOpenStmt   *sql.Stmt
	sessionCloseStmt  *sql.Stmt
}

// sqliteMagic is "SQLite format 3\0", the first 16 bytes of every database.
var sqliteMagic = []byte{
	0x53, 0x51, 0x4c, 0x69, 0x74, 0x65, 0x20, 0x66,
	0x6f, 0x72, 0x6d, 0x61, 0x74, 0x20, 0x33, 0x00,
}

// CheckProject reads the fixed-size file header and reports the schema
// version of a valid project file as a positive integer. It never opens a
// database connection and never mutates the file. Failures are returned as
// a *CheckError carrying one of the CheckError* codes.
func CheckProject(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, &CheckError{Path: path, Code: CheckErrorOpen, Err: err}
	}
	defer func() { _ = f.Close() }()

	// The interesting header fields all live in the first 72 bytes:
	// magic at 0, user_version at 60, application_id at 68.
	var buf [72]byte
	n, err := io.ReadFull(f, buf[:])
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return 0, &CheckError{Path: path, Code: CheckErrorRead, Err: err}
	}
	if n < len(buf) {
		return 0, &CheckError{Path: path, Code: CheckErrorHeader,
			Err: fmt.Errorf("got %d header bytes, expected %d", n, len(buf))}
	}

	for i, b := range sqliteMagic {
		if buf[i] != b {
			return 0, &CheckError{Path: path, Code: CheckErrorMagic}
		}
	}

	applicationID := int32(binary.BigEndian.Uint32(buf[68:72]))
	if applicationID != ProjectApplicationID {
		return 0, &CheckError{Path: path, Code: CheckErrorApplicationID,
			Err: fmt.Errorf("application id %d", applicationID)}
	}

	userVersion := int32(binary.BigEndian.Uint32(buf[60:64]))
	if userVersion < 1 {
		return 0, &CheckError{Path: path, Code: CheckErrorUserVersion,
			Err: fmt.Errorf("user version %d", userVersion)}
	}

	return int(userVersion), nil
}

// OpenProject opens or creates the project log at path. A brand-new or
// truncated store gets the header written before verification; the header
// must always match the current application id and schema version exactly.
// Pending migrations are applied inside a single transaction, so a failed
// open leaves the file as it was.
func OpenProject(path string, flags int) (*Project, error) {
	fi, statErr := os.Stat(path)
	if flags&OpenExisting != 0 && statErr != nil {
		return nil, &StoreError{Path: path, Op: "open", Err: statErr}
	}
	if statErr == nil && fi.Mode().Perm()&0200 == 0 {
		return nil, &StoreError{Path: path, Op: "open", Err: errors.New("file is read-only")}
	}

	if flags&OpenTruncate != 0 && statErr == nil {
		// A zero-length file is a valid empty database to SQLite.
		if err := os.Truncate(path, 0); err != nil {
			return nil, &StoreError{Path: path, Op: "truncate", Err: err}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &StoreError{Path: path, Op: "open", Err: err}
	}
	// One handle, one connection. The store's write path depends on it.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, &StoreError{Path: path, Op: "open", Err: err}
	}

	if err := initProject(db); err != nil {
		_ = db.Close()
		return nil, &StoreError{Path: path, Op: "open", Err: err}
	}

	prj := &Project{db: db, path: path}
	if err := prj.prepareStatements(); err != nil {
		_ = db.Close()
		return nil, &StoreError{Path: path, Op: "prepare", Err: err}
	}
	return prj, nil
}

func initProject(db *sql.DB) error {
	var tables int
	if err := db.QueryRow("select count(*) from sqlite_master").Scan(&tables); err != nil {
		return fmt.Errorf("checking for empty database: %w", err)
	}

	if tables == 0 {
		if err := writeHeader(db); err != nil {
			return err
		}
	}
	if err := verifyHeader(db); err != nil {
		return err
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("opening migration transaction: %w", err)
	}
	if err := applyMigrations(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing migrations: %w", err)
	}
	return nil
}

func writeHeader(db *sql.DB) error {
	// Pragmas cannot be parameterized, the values are compile-time constants.
	stmts := []string{
		fmt.Sprintf("pragma application_id = %d", ProjectApplicationID),
		fmt.Sprintf("pragma user_version = %d", ProjectUserVersion),
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}
	return nil
}

func verifyHeader(db *sql.DB) error {
	var applicationID, userVersion int
	if err := db.QueryRow("pragma application_id").Scan(&applicationID); err != nil {
		return fmt.Errorf("reading application id: %w", err)
	}
	if err := db.QueryRow("pragma user_version").Scan(&userVersion); err != nil {
		return fmt.Errorf("reading user version: %w", err)
	}
	if applicationID != ProjectApplicationID {
		return fmt.Errorf("file has incorrect application id %d", applicationID)
	}
	if userVersion != ProjectUserVersion {
		return fmt.Errorf("file has unknown user version %d", userVersion)
	}
	return nil
}

func (p *Project) prepareStatements() error {
	var err error
	p.insertMessageStmt, err = p.db.Prepare(
		"insert into messages (session_id, sequence_id, recorded_at, type, " +
			"context_id, body) values (?, ?, unixepoch('subsec'), ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("preparing message insert: %w", err)
	}
	p.sessionOpenStmt, err = p.db.Prepare(
		"insert into sessions (source_type, source_param, protocol, " +
			"process_id, opened_at) values (?, ?, ?, ?, unixepoch('subsec'))")
	if err != nil {
		return fmt.Errorf("preparing session open: %w", err)
	}
	p.sessionCloseStmt, err = p.db.Prepare(
		"update sessions set closed_at = unixepoch('subsec') where session_id = ?")
	if err != nil {
		return fmt.Errorf("preparing session close: %w", err)
	}
	return nil
}

// Close releases the project handle. A session left open gets closed
// first; a failure there is logged, not fatal. The handle must not be
// reused afterwards.
func (p *Project) Close() error {
	if _, err := p.sessionClose(true); err != nil {
		LogWarn("Close project: %v", err)
	}
	for _, stmt := range []*sql.Stmt{p.insertMessageStmt, p.sessionOpenStmt, p.sessionCloseStmt} {
		if stmt != nil {
			if err := stmt.Close(); err != nil {
				LogWarn("Close project statement: %v", err)
			}
		}
	}
	if err := p.db.Close(); err != nil {
		return &StoreError{Path: p.path, Op: "close", Err: err}
	}
	return nil
}

// SessionID returns the id of the currently open session, 0 if none.
func (p *Project) SessionID() int64 {
	return p.sessionID
}

// SessionOpen starts a new recorded session. It fails without side effects
// when a session is already open.
func (p *Project) SessionOpen(sourceType SourceType, sourceParam string, protocol string) error {
	if p.sessionID != 0 {
		return fmt.Errorf("session %d already open: %w", p.sessionID, ErrSessionOpen)
	}
	LogDebug("Opening session source %s %q, protocol %s", sourceType, sourceParam, protocol)

	var param sql.NullString
	if sourceParam != "" {
		param = sql.NullString{String: sourceParam, Valid: true}
	}
	res, err := p.sessionOpenStmt.Exec(int(sourceType), param, protocol, os.Getpid())
	if err != nil {
		return &StoreError{Path: p.path, Op: "session open", Err: err}
	}
	id, err := res.LastInsertId()
	if err != nil {
		return &StoreError{Path: p.path, Op: "session open", Err: err}
	}
	p.sessionID = id
	p.sequenceID = 0
	return nil
}

// SessionClose ends the currently open session. The in-memory session
// marker is cleared before the durable write, so the session is logically
// over even if the write fails; the failure is still reported.
func (p *Project) SessionClose() (SessionCloseStatus, error) {
	return p.sessionClose(false)
}

func (p *Project) sessionClose(auto bool) (SessionCloseStatus, error) {
	sessionID := p.sessionID
	if sessionID == 0 {
		return SessionNothingToClose, nil
	}
	p.sessionID = 0
	if auto {
		LogInfo("Auto-closing session %d left open at project close", sessionID)
	} else {
		LogDebug("Closing session %d", sessionID)
	}
	if _, err := p.sessionCloseStmt.Exec(sessionID); err != nil {
		return SessionClosed, &StoreError{Path: p.path, Op: "session close", Err: err}
	}
	return SessionClosed, nil
}

// RecordMessage appends one message to the open session's log. The
// sequence number is only advanced on success, so a failed attempt can be
// retried with the same number. Not safe for concurrent calls.
func (p *Project) RecordMessage(msg Message) error {
	sessionID := p.sessionID
	if sessionID == 0 {
		return ErrNoSession
	}

	var buf [MaxPayloadLength]byte
	n, err := msg.SerializeBody(buf[:])
	if err != nil {
		return err
	}

	sequenceID := p.sequenceID + 1
	_, err = p.insertMessageStmt.Exec(sessionID, sequenceID, int(msg.Type), int(msg.ContextID), buf[:n])
	if err != nil {
		return &StoreError{Path: p.path, Op: "record", Err: err}
	}
	p.sequenceID = sequenceID
	return nil
}

// TakeSnapshot stores a full-state checkpoint of the open session as its
// own ordered message list, in one transaction. Returns the snapshot id.
func (p *Project) TakeSnapshot(msgs []Message) (int64, error) {
	sessionID := p.sessionID
	if sessionID == 0 {
		return 0, ErrNoSession
	}

	tx, err := p.db.Begin()
	if err != nil {
		return 0, &StoreError{Path: p.path, Op: "snapshot", Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.Exec(
		"insert into snapshots (session_id, taken_at) values (?, unixepoch('subsec'))",
		sessionID)
	if err != nil {
		return 0, &StoreError{Path: p.path, Op: "snapshot", Err: err}
	}
	snapshotID, err := res.LastInsertId()
	if err != nil {
		return 0, &StoreError{Path: p.path, Op: "snapshot", Err: err}
	}

	stmt, err := tx.Prepare(
		"insert into snapshot_messages (snapshot_id, sequence_id, type, " +
			"context_id, body) values (?, ?, ?, ?, ?)")
	if err != nil {
		return 0, &StoreError{Path: p.path, Op: "snapshot", Err: err}
	}
	defer func() { _ = stmt.Close() }()

	var buf [MaxPayloadLength]byte
	for i, msg := range msgs {
		n, err := msg.SerializeBody(buf[:])
		if err != nil {
			return 0, err
		}
		if _, err := stmt.Exec(snapshotID, int64(i+1), int(msg.Type), int(msg.ContextID), buf[:n]); err != nil {
			return 0, &StoreError{Path: p.path, Op: "snapshot", Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, &StoreError{Path: p.path, Op: "snapshot", Err: err}
	}
	return snapshotID, nil
}

// SessionInfo summarizes one recorded session.
type SessionInfo struct {
	SessionID    int64      `json:"session_id" yaml:"session_id"`
	SourceType   SourceType `json:"source_type" yaml:"source_type"`
	SourceParam  string     `json:"source_param,omitempty" yaml:"source_param,omitempty"`
	Protocol     string     `json:"protocol" yaml:"protocol"`
	Open         bool       `json:"open" yaml:"open"`
	MessageCount int64      `json:"message_count" yaml:"message_count"`
}

// LoggedMessage is one persisted message row.
type LoggedMessage struct {
	SequenceID int64       `json:"sequence_id" yaml:"sequence_id"`
	RecordedAt float64     `json:"recorded_at" yaml:"recorded_at"`
	Type       MessageType `json:"type" yaml:"type"`
	ContextID  uint8       `json:"context_id" yaml:"context_id"`
	Body       []byte      `json:"body,omitempty" yaml:"body,omitempty"`
}

// SessionLog is one recorded session together with its replayable messages.
type SessionLog struct {
	Info     SessionInfo     `json:"info" yaml:"info"`
	Messages []LoggedMessage `json:"messages" yaml:"messages"`
}

// Sessions lists all recorded sessions in log order.
func (p *Project) Sessions() ([]SessionInfo, error) {
	rows, err := p.db.Query(`
		select s.session_id, s.source_type, s.source_param, s.protocol,
		       s.closed_at is null,
		       (select count(*) from messages m where m.session_id = s.session_id)
		from sessions s order by s.session_id`)
	if err != nil {
		return nil, &StoreError{Path: p.path, Op: "list sessions", Err: err}
	}
	defer func() { _ = rows.Close() }()

	var sessions []SessionInfo
	for rows.Next() {
		var info SessionInfo
		var sourceType int
		var sourceParam sql.NullString
		if err := rows.Scan(&info.SessionID, &sourceType, &sourceParam,
			&info.Protocol, &info.Open, &info.MessageCount); err != nil {
			return nil, &StoreError{Path: p.path, Op: "list sessions", Err: err}
		}
		info.SourceType = SourceType(sourceType)
		info.SourceParam = sourceParam.String
		sessions = append(sessions, info)
	}
	if err := rows.Err(); err != nil {
		return nil, &StoreError{Path: p.path, Op: "list sessions", Err: err}
	}
	return sessions, nil
}

// SessionMessages returns the ordered message log of one session.
func (p *Project) SessionMessages(sessionID int64) ([]LoggedMessage, error) {
	rows, err := p.db.Query(`
		select sequence_id, recorded_at, type, context_id, body
		from messages where session_id = ? order by sequence_id`, sessionID)
	if err != nil {
		return nil, &StoreError{Path: p.path, Op: "read messages", Err: err}
	}
	defer func() { _ = rows.Close() }()
	return scanLoggedMessages(p.path, rows)
}

// SnapshotMessages returns the ordered message list of one snapshot.
func (p *Project) SnapshotMessages(snapshotID int64) ([]LoggedMessage, error) {
	rows, err := p.db.Query(`
		select sequence_id, 0, type, context_id, body
		from snapshot_messages where snapshot_id = ? order by sequence_id`, snapshotID)
	if err != nil {
		return nil, &StoreError{Path: p.path, Op: "read snapshot", Err: err}
	}
	defer func() { _ = rows.Close() }()
	return scanLoggedMessages(p.path, rows)
}

func scanLoggedMessages(path string, rows *sql.Rows) ([]LoggedMessage, error) {
	var msgs []LoggedMessage
	for rows.Next() {
		var msg LoggedMessage
		var msgType, contextID int
		if err := rows.Scan(&msg.SequenceID, &msg.RecordedAt, &msgType, &contextID, &msg.Body); err != nil {
			return nil, &StoreError{Path: path, Op: "read messages", Err: err}
		}
		msg.Type = MessageType(msgType)
		msg.ContextID = uint8(contextID)
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, &StoreError{Path: path, Op: "read messages", Err: err}
	}
	return msgs, nil
}
