package export

import (
	"io"

	"github.com/iksnae/canvas-session/internal"
	"gopkg.in/yaml.v3"
)

// YAMLExporter exports a session log in YAML format
type YAMLExporter struct{}

// Export exports a session log to YAML format
func (e *YAMLExporter) Export(log *internal.SessionLog, w io.Writer) error {
	enc := yaml.NewEncoder(w)
	defer func() { _ = enc.Close() }()

	return enc.Encode(log)
}

// Extension returns the file extension for this format
func (e *YAMLExporter) Extension() string {
	return "yaml"
}
