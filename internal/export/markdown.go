package export

import (
	"fmt"
	"io"

	"github.com/iksnae/canvas-session/internal"
)

// MarkdownExporter exports a session log in Markdown format
type MarkdownExporter struct{}

// Export exports a session log to Markdown format
func (e *MarkdownExporter) Export(log *internal.SessionLog, w io.Writer) error {
	info := log.Info
	_, _ = fmt.Fprintf(w, "# Session %d\n\n", info.SessionID)

	_, _ = fmt.Fprintf(w, "**Source:** %s  \n", info.SourceType)
	if info.SourceParam != "" {
		_, _ = fmt.Fprintf(w, "**Origin:** %s  \n", info.SourceParam)
	}
	_, _ = fmt.Fprintf(w, "**Protocol:** %s  \n", info.Protocol)
	status := "closed"
	if info.Open {
		status = "open"
	}
	_, _ = fmt.Fprintf(w, "**Status:** %s  \n", status)
	_, _ = fmt.Fprintf(w, "**Messages:** %d\n\n", len(log.Messages))

	_, _ = fmt.Fprintf(w, "---\n\n")
	_, _ = fmt.Fprintf(w, "## Messages\n\n")

	_, _ = fmt.Fprintf(w, "| # | Type | Context | Body bytes |\n")
	_, _ = fmt.Fprintf(w, "|---|------|---------|------------|\n")
	for _, msg := range log.Messages {
		_, _ = fmt.Fprintf(w, "| %d | %s | %d | %d |\n",
			msg.SequenceID, msg.Type, msg.ContextID, len(msg.Body))
	}

	return nil
}

// Extension returns the file extension for this format
func (e *MarkdownExporter) Extension() string {
	return "md"
}
