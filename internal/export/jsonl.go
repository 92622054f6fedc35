package export

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/iksnae/canvas-session/internal"
)

// JSONLExporter exports a session log in JSONL format (one message per line)
type JSONLExporter struct{}

// Export exports a session log to JSONL format
func (e *JSONLExporter) Export(log *internal.SessionLog, w io.Writer) error {
	enc := json.NewEncoder(w)

	for _, msg := range log.Messages {
		obj := map[string]interface{}{
			"sequence_id": msg.SequenceID,
			"type":        msg.Type.String(),
			"context_id":  msg.ContextID,
		}
		if msg.RecordedAt != 0 {
			obj["recorded_at"] = msg.RecordedAt
		}
		if len(msg.Body) > 0 {
			obj["body"] = msg.Body
		}

		if err := enc.Encode(obj); err != nil {
			return fmt.Errorf("failed to encode message: %w", err)
		}
	}

	return nil
}

// Extension returns the file extension for this format
func (e *JSONLExporter) Extension() string {
	return "jsonl"
}
