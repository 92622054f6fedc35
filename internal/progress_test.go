package internal

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

func TestShowProgress_NonTerminal(t *testing.T) {
	// Under go test stderr is not a terminal, so the plain path runs.
	ran := false
	err := ShowProgress(context.Background(), "working", func() error {
		ran = true
		return nil
	})
	if err != nil {
		t.Errorf("ShowProgress() error = %v, want nil", err)
	}
	if !ran {
		t.Error("ShowProgress() did not run the function")
	}

	wantErr := errors.New("boom")
	err = ShowProgress(context.Background(), "failing", func() error {
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Errorf("ShowProgress() error = %v, want %v", err, wantErr)
	}
}

func TestRenderCatchupProgress(t *testing.T) {
	out := RenderCatchupProgress(42)
	if !strings.Contains(out, "42%") {
		t.Errorf("RenderCatchupProgress(42) = %q, want percentage", out)
	}
}

func TestIsTerminal(t *testing.T) {
	var buf bytes.Buffer
	if isTerminal(&buf) {
		t.Error("isTerminal() = true for a bytes.Buffer")
	}
}
