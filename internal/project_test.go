package internal

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/iksnae/canvas-session/testutil"
)

func projectPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(testutil.CreateTempDir(t), "test.cvs")
}

func openTestProject(t *testing.T, path string, flags int) *Project {
	t.Helper()
	prj, err := OpenProject(path, flags)
	if err != nil {
		t.Fatalf("OpenProject(%s) failed: %v", path, err)
	}
	return prj
}

func closeTestProject(t *testing.T, prj *Project) {
	t.Helper()
	if err := prj.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
}

func TestCheckProject_Errors(t *testing.T) {
	dir := testutil.CreateTempDir(t)

	badMagic := make([]byte, 72)
	for i := range badMagic {
		badMagic[i] = 0xAB
	}

	tests := []struct {
		name  string
		setup func(t *testing.T) string
		code  CheckCode
	}{
		{
			name: "nonexistent file",
			setup: func(t *testing.T) string {
				return filepath.Join(dir, "does-not-exist.cvs")
			},
			code: CheckErrorOpen,
		},
		{
			name: "empty file",
			setup: func(t *testing.T) string {
				path := filepath.Join(dir, "empty.cvs")
				testutil.WriteRawFile(t, path, nil)
				return path
			},
			code: CheckErrorHeader,
		},
		{
			name: "truncated header",
			setup: func(t *testing.T) string {
				path := filepath.Join(dir, "short.cvs")
				testutil.WriteRawFile(t, path, []byte("SQLite format 3\x00 and then some"))
				return path
			},
			code: CheckErrorHeader,
		},
		{
			name: "wrong magic",
			setup: func(t *testing.T) string {
				path := filepath.Join(dir, "badmagic.cvs")
				testutil.WriteRawFile(t, path, badMagic)
				return path
			},
			code: CheckErrorMagic,
		},
		{
			name: "wrong application id",
			setup: func(t *testing.T) string {
				path := filepath.Join(dir, "otherapp.cvs")
				testutil.CreateSQLiteFixture(t, path, 0x12345678, ProjectUserVersion)
				return path
			},
			code: CheckErrorApplicationID,
		},
		{
			name: "zero user version",
			setup: func(t *testing.T) string {
				path := filepath.Join(dir, "noversion.cvs")
				testutil.CreateSQLiteFixture(t, path, ProjectApplicationID, 0)
				return path
			},
			code: CheckErrorUserVersion,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := tt.setup(t)
			_, err := CheckProject(path)
			if err == nil {
				t.Fatalf("CheckProject(%s) succeeded, want %s error", path, tt.code)
			}
			var checkErr *CheckError
			if !errors.As(err, &checkErr) {
				t.Fatalf("CheckProject(%s) returned %T, want *CheckError", path, err)
			}
			if checkErr.Code != tt.code {
				t.Errorf("CheckProject(%s) code = %s, want %s", path, checkErr.Code, tt.code)
			}
			if checkErr.Path != path {
				t.Errorf("CheckProject(%s) path = %s, want %s", path, checkErr.Path, path)
			}
		})
	}
}

func TestCheckProject_ValidStore(t *testing.T) {
	path := projectPath(t)
	prj := openTestProject(t, path, 0)
	closeTestProject(t, prj)

	version, err := CheckProject(path)
	if err != nil {
		t.Fatalf("CheckProject(%s) failed: %v", path, err)
	}
	if version != ProjectUserVersion {
		t.Errorf("CheckProject(%s) version = %d, want %d", path, version, ProjectUserVersion)
	}
}

func TestOpenProject_WritesHeader(t *testing.T) {
	path := projectPath(t)
	prj := openTestProject(t, path, 0)
	closeTestProject(t, prj)

	if got := testutil.SQLiteHeaderField(t, path, 68); got != ProjectApplicationID {
		t.Errorf("application_id = %#x, want %#x", got, ProjectApplicationID)
	}
	if got := testutil.SQLiteHeaderField(t, path, 60); got != ProjectUserVersion {
		t.Errorf("user_version = %d, want %d", got, ProjectUserVersion)
	}
}

func TestOpenProject_ExistingMissing(t *testing.T) {
	path := filepath.Join(testutil.CreateTempDir(t), "missing.cvs")
	if _, err := OpenProject(path, OpenExisting); err == nil {
		t.Fatal("OpenProject with OpenExisting succeeded on a missing file")
	}

	// Without the flag the same path is created.
	prj := openTestProject(t, path, 0)
	closeTestProject(t, prj)

	prj = openTestProject(t, path, OpenExisting)
	closeTestProject(t, prj)
}

func TestOpenProject_ReadOnlyFile(t *testing.T) {
	path := projectPath(t)
	prj := openTestProject(t, path, 0)
	closeTestProject(t, prj)

	if err := os.Chmod(path, 0444); err != nil {
		t.Fatalf("Chmod failed: %v", err)
	}
	defer func() { _ = os.Chmod(path, 0644) }()

	if _, err := OpenProject(path, OpenExisting); err == nil {
		t.Fatal("OpenProject succeeded on a read-only file")
	}
}

func TestOpenProject_ForeignFile(t *testing.T) {
	path := projectPath(t)
	testutil.CreateSQLiteFixture(t, path, 0x12345678, ProjectUserVersion)

	if _, err := OpenProject(path, OpenExisting); err == nil {
		t.Fatal("OpenProject succeeded on a database with a foreign application id")
	}
}

func TestOpenProject_Truncate(t *testing.T) {
	path := projectPath(t)
	prj := openTestProject(t, path, 0)
	if err := prj.SessionOpen(SourceBlank, "", "dp:4.24.0"); err != nil {
		t.Fatalf("SessionOpen failed: %v", err)
	}
	if err := prj.RecordMessage(NewMessage(MessageTypeChat, 1, []byte("hello"))); err != nil {
		t.Fatalf("RecordMessage failed: %v", err)
	}
	closeTestProject(t, prj)

	prj = openTestProject(t, path, OpenTruncate)
	defer closeTestProject(t, prj)

	sessions, err := prj.Sessions()
	if err != nil {
		t.Fatalf("Sessions failed: %v", err)
	}
	if len(sessions) != 0 {
		t.Errorf("truncated store has %d sessions, want 0", len(sessions))
	}
}

func TestProject_SessionLifecycle(t *testing.T) {
	path := projectPath(t)
	prj := openTestProject(t, path, 0)
	defer closeTestProject(t, prj)

	if id := prj.SessionID(); id != 0 {
		t.Errorf("SessionID() = %d before open, want 0", id)
	}

	if err := prj.SessionOpen(SourceSessionJoin, "canvas://example.com/session", "dp:4.24.0"); err != nil {
		t.Fatalf("SessionOpen failed: %v", err)
	}
	firstID := prj.SessionID()
	if firstID == 0 {
		t.Fatal("SessionID() = 0 after open")
	}

	// A second open must fail without disturbing the first session.
	err := prj.SessionOpen(SourceBlank, "", "dp:4.24.0")
	if !errors.Is(err, ErrSessionOpen) {
		t.Errorf("second SessionOpen error = %v, want ErrSessionOpen", err)
	}
	if id := prj.SessionID(); id != firstID {
		t.Errorf("SessionID() = %d after failed open, want %d", id, firstID)
	}

	status, err := prj.SessionClose()
	if err != nil {
		t.Fatalf("SessionClose failed: %v", err)
	}
	if status != SessionClosed {
		t.Errorf("SessionClose status = %d, want SessionClosed", status)
	}

	status, err = prj.SessionClose()
	if err != nil {
		t.Fatalf("second SessionClose failed: %v", err)
	}
	if status != SessionNothingToClose {
		t.Errorf("second SessionClose status = %d, want SessionNothingToClose", status)
	}
}

func TestProject_RecordMessage(t *testing.T) {
	path := projectPath(t)
	prj := openTestProject(t, path, 0)

	if err := prj.RecordMessage(NewMessage(MessageTypeChat, 1, []byte("too early"))); !errors.Is(err, ErrNoSession) {
		t.Errorf("RecordMessage without session error = %v, want ErrNoSession", err)
	}

	if err := prj.SessionOpen(SourceBlank, "", "dp:4.24.0"); err != nil {
		t.Fatalf("SessionOpen failed: %v", err)
	}
	sessionID := prj.SessionID()

	msgs := []Message{
		NewMessage(MessageTypeCanvasResize, 0, []byte{0, 0, 8, 0, 0, 0, 6, 0}),
		NewMessage(MessageTypeDrawDabsClassic, 1, []byte("dab payload")),
		NewMessage(MessageTypeChat, 2, []byte("hello")),
	}
	for _, msg := range msgs {
		if err := prj.RecordMessage(msg); err != nil {
			t.Fatalf("RecordMessage(%s) failed: %v", msg.Type, err)
		}
	}

	if _, err := prj.SessionClose(); err != nil {
		t.Fatalf("SessionClose failed: %v", err)
	}
	closeTestProject(t, prj)

	// Reopen and replay, checking order and content survived.
	prj = openTestProject(t, path, OpenExisting)
	defer closeTestProject(t, prj)

	logged, err := prj.SessionMessages(sessionID)
	if err != nil {
		t.Fatalf("SessionMessages failed: %v", err)
	}
	if len(logged) != len(msgs) {
		t.Fatalf("SessionMessages returned %d messages, want %d", len(logged), len(msgs))
	}
	for i, msg := range logged {
		if msg.SequenceID != int64(i+1) {
			t.Errorf("message %d sequence id = %d, want %d", i, msg.SequenceID, i+1)
		}
		if msg.Type != msgs[i].Type {
			t.Errorf("message %d type = %s, want %s", i, msg.Type, msgs[i].Type)
		}
		if msg.ContextID != msgs[i].ContextID {
			t.Errorf("message %d context id = %d, want %d", i, msg.ContextID, msgs[i].ContextID)
		}
		if !bytes.Equal(msg.Body, msgs[i].Body) {
			t.Errorf("message %d body = %q, want %q", i, msg.Body, msgs[i].Body)
		}
		if msg.RecordedAt <= 0 {
			t.Errorf("message %d has no recorded_at timestamp", i)
		}
	}
}

func TestProject_RecordMessage_OversizedBody(t *testing.T) {
	path := projectPath(t)
	prj := openTestProject(t, path, 0)
	defer closeTestProject(t, prj)

	if err := prj.SessionOpen(SourceBlank, "", "dp:4.24.0"); err != nil {
		t.Fatalf("SessionOpen failed: %v", err)
	}

	huge := NewMessage(MessageTypePutImage, 1, make([]byte, MaxPayloadLength+1))
	if err := prj.RecordMessage(huge); err == nil {
		t.Fatal("RecordMessage accepted an oversized body")
	}

	// The failed record must not have consumed a sequence number.
	if err := prj.RecordMessage(NewMessage(MessageTypeChat, 1, []byte("ok"))); err != nil {
		t.Fatalf("RecordMessage after failure failed: %v", err)
	}
	logged, err := prj.SessionMessages(prj.SessionID())
	if err != nil {
		t.Fatalf("SessionMessages failed: %v", err)
	}
	if len(logged) != 1 {
		t.Fatalf("got %d messages, want 1", len(logged))
	}
	if logged[0].SequenceID != 1 {
		t.Errorf("sequence id = %d, want 1", logged[0].SequenceID)
	}
}

func TestProject_Sessions(t *testing.T) {
	path := projectPath(t)
	prj := openTestProject(t, path, 0)
	defer closeTestProject(t, prj)

	if err := prj.SessionOpen(SourceFileOpen, "/tmp/drawing.ora", "dp:4.24.0"); err != nil {
		t.Fatalf("SessionOpen failed: %v", err)
	}
	if err := prj.RecordMessage(NewMessage(MessageTypeChat, 1, []byte("one"))); err != nil {
		t.Fatalf("RecordMessage failed: %v", err)
	}
	if _, err := prj.SessionClose(); err != nil {
		t.Fatalf("SessionClose failed: %v", err)
	}

	if err := prj.SessionOpen(SourceBlank, "", "dp:4.25.0"); err != nil {
		t.Fatalf("second SessionOpen failed: %v", err)
	}

	sessions, err := prj.Sessions()
	if err != nil {
		t.Fatalf("Sessions failed: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("Sessions returned %d entries, want 2", len(sessions))
	}

	first := sessions[0]
	if first.SourceType != SourceFileOpen || first.SourceParam != "/tmp/drawing.ora" {
		t.Errorf("first session source = %s %q", first.SourceType, first.SourceParam)
	}
	if first.Protocol != "dp:4.24.0" {
		t.Errorf("first session protocol = %q, want dp:4.24.0", first.Protocol)
	}
	if first.Open {
		t.Error("first session still reported open after close")
	}
	if first.MessageCount != 1 {
		t.Errorf("first session message count = %d, want 1", first.MessageCount)
	}

	second := sessions[1]
	if second.SourceType != SourceBlank || second.SourceParam != "" {
		t.Errorf("second session source = %s %q", second.SourceType, second.SourceParam)
	}
	if !second.Open {
		t.Error("second session reported closed while open")
	}
}

func TestProject_CloseAutoClosesSession(t *testing.T) {
	path := projectPath(t)
	prj := openTestProject(t, path, 0)
	if err := prj.SessionOpen(SourceBlank, "", "dp:4.24.0"); err != nil {
		t.Fatalf("SessionOpen failed: %v", err)
	}
	sessionID := prj.SessionID()
	closeTestProject(t, prj)

	prj = openTestProject(t, path, OpenExisting)
	defer closeTestProject(t, prj)

	sessions, err := prj.Sessions()
	if err != nil {
		t.Fatalf("Sessions failed: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("Sessions returned %d entries, want 1", len(sessions))
	}
	if sessions[0].SessionID != sessionID {
		t.Errorf("session id = %d, want %d", sessions[0].SessionID, sessionID)
	}
	if sessions[0].Open {
		t.Error("dangling session was not closed by project close")
	}
}

func TestProject_TakeSnapshot(t *testing.T) {
	path := projectPath(t)
	prj := openTestProject(t, path, 0)
	defer closeTestProject(t, prj)

	if _, err := prj.TakeSnapshot(nil); !errors.Is(err, ErrNoSession) {
		t.Errorf("TakeSnapshot without session error = %v, want ErrNoSession", err)
	}

	if err := prj.SessionOpen(SourceBlank, "", "dp:4.24.0"); err != nil {
		t.Fatalf("SessionOpen failed: %v", err)
	}

	msgs := []Message{
		NewMessage(MessageTypeCanvasResize, 0, []byte("resize")),
		NewMessage(MessageTypeLayerCreate, 0, []byte("layer")),
		NewMessage(MessageTypePutImage, 0, []byte("tiles")),
	}
	snapshotID, err := prj.TakeSnapshot(msgs)
	if err != nil {
		t.Fatalf("TakeSnapshot failed: %v", err)
	}
	if snapshotID == 0 {
		t.Fatal("TakeSnapshot returned snapshot id 0")
	}

	logged, err := prj.SnapshotMessages(snapshotID)
	if err != nil {
		t.Fatalf("SnapshotMessages failed: %v", err)
	}
	if len(logged) != len(msgs) {
		t.Fatalf("SnapshotMessages returned %d messages, want %d", len(logged), len(msgs))
	}
	for i, msg := range logged {
		if msg.SequenceID != int64(i+1) {
			t.Errorf("snapshot message %d sequence id = %d, want %d", i, msg.SequenceID, i+1)
		}
		if msg.Type != msgs[i].Type {
			t.Errorf("snapshot message %d type = %s, want %s", i, msg.Type, msgs[i].Type)
		}
		if !bytes.Equal(msg.Body, msgs[i].Body) {
			t.Errorf("snapshot message %d body = %q, want %q", i, msg.Body, msgs[i].Body)
		}
	}

	// Snapshot messages must not leak into the session's message log.
	sessionMsgs, err := prj.SessionMessages(prj.SessionID())
	if err != nil {
		t.Fatalf("SessionMessages failed: %v", err)
	}
	if len(sessionMsgs) != 0 {
		t.Errorf("session log has %d messages after snapshot, want 0", len(sessionMsgs))
	}
}

func TestProject_Dump(t *testing.T) {
	path := projectPath(t)
	prj := openTestProject(t, path, 0)
	defer closeTestProject(t, prj)

	if err := prj.SessionOpen(SourceSessionJoin, "canvas://example.com", "dp:4.24.0"); err != nil {
		t.Fatalf("SessionOpen failed: %v", err)
	}
	if _, err := prj.SessionClose(); err != nil {
		t.Fatalf("SessionClose failed: %v", err)
	}

	var first bytes.Buffer
	if err := prj.Dump(&first); err != nil {
		t.Fatalf("Dump failed: %v", err)
	}

	out := first.String()
	if !strings.HasPrefix(out, "begin project dump\n") {
		t.Errorf("dump does not start with the begin marker:\n%s", out)
	}
	if !strings.HasSuffix(out, "\nend project dump\n") {
		t.Errorf("dump does not end with the end marker:\n%s", out)
	}
	for _, want := range []string{
		fmt.Sprintf("'%d'", ProjectApplicationID),
		fmt.Sprintf("'%d'", ProjectUserVersion),
		"--- pragma application_id",
		"--- pragma user_version",
		"'canvas://example.com'",
		"'closed'",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("dump missing %q:\n%s", want, out)
		}
	}

	// An unmodified store dumps identically.
	var second bytes.Buffer
	if err := prj.Dump(&second); err != nil {
		t.Fatalf("second Dump failed: %v", err)
	}
	if out != second.String() {
		t.Error("two dumps of the same store differ")
	}
}

func TestProject_ReopenAppliesNoNewMigrations(t *testing.T) {
	path := projectPath(t)
	prj := openTestProject(t, path, 0)
	closeTestProject(t, prj)

	// Opening an up-to-date store again must not change the file contents.
	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	prj = openTestProject(t, path, OpenExisting)
	closeTestProject(t, prj)
	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if !bytes.Equal(before, after) {
		t.Error("reopening an up-to-date store modified the file")
	}
}
