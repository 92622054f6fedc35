package internal

import (
	"errors"
	"fmt"
)

// CheckCode classifies a project file header check failure.
type CheckCode int

const (
	CheckErrorOpen CheckCode = -1 - iota
	CheckErrorRead
	CheckErrorHeader
	CheckErrorMagic
	CheckErrorApplicationID
	CheckErrorUserVersion
)

func (c CheckCode) String() string {
	switch c {
	case CheckErrorOpen:
		return "open"
	case CheckErrorRead:
		return "read"
	case CheckErrorHeader:
		return "header"
	case CheckErrorMagic:
		return "magic"
	case CheckErrorApplicationID:
		return "application id"
	case CheckErrorUserVersion:
		return "user version"
	default:
		return "unknown"
	}
}

// CheckError reports why a project file failed its header check.
type CheckError struct {
	Path string
	Code CheckCode
	Err  error
}

func (e *CheckError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("check %s: %s error: %v", e.Path, e.Code, e.Err)
	}
	return fmt.Sprintf("check %s: %s error", e.Path, e.Code)
}

func (e *CheckError) Unwrap() error {
	return e.Err
}

// StoreError represents errors from project store operations
type StoreError struct {
	Path string
	Op   string // "open", "migrate", "session open", "record", ...
	Err  error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store error: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// ProtocolError represents a malformed or unexpected server message
type ProtocolError struct {
	What string
	Err  error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("protocol error: %s: %v", e.What, e.Err)
	}
	return fmt.Sprintf("protocol error: %s", e.What)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

var (
	// ErrSessionOpen is returned when opening a session while one is open.
	ErrSessionOpen = errors.New("a session is already open")

	// ErrNoSession is returned when recording without an open session.
	ErrNoSession = errors.New("no open session")
)
