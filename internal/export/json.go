package export

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/iksnae/canvas-session/internal"
)

// JSONExporter exports a session log as one indented JSON document
type JSONExporter struct{}

// Export exports a session log to JSON format
func (e *JSONExporter) Export(log *internal.SessionLog, w io.Writer) error {
	data, err := json.MarshalIndent(log, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session log: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write session log: %w", err)
	}
	_, err = io.WriteString(w, "\n")
	return err
}

// Extension returns the file extension for this format
func (e *JSONExporter) Extension() string {
	return "json"
}
