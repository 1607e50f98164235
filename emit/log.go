package emit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// LogEmitter writes events to an io.Writer, one per line, either as
// key=value text or as JSONL.
type LogEmitter struct {
	writer   io.Writer
	jsonMode bool
}

// NewLogEmitter builds a LogEmitter. writer defaults to os.Stdout when nil.
func NewLogEmitter(writer io.Writer, jsonMode bool) *LogEmitter {
	if writer == nil {
		writer = os.Stdout
	}
	return &LogEmitter{writer: writer, jsonMode: jsonMode}
}

func (l *LogEmitter) Emit(event Event) {
	if l.jsonMode {
		l.emitJSON(event)
	} else {
		l.emitText(event)
	}
}

func (l *LogEmitter) emitJSON(event Event) {
	data, err := json.Marshal(struct {
		RunID    string                 `json:"runID"`
		FeedName string                 `json:"feedName"`
		Stage    Stage                  `json:"stage"`
		Msg      string                 `json:"msg"`
		Meta     map[string]interface{} `json:"meta,omitempty"`
	}{RunID: event.RunID, FeedName: event.FeedName, Stage: event.Stage, Msg: event.Msg, Meta: event.Meta})
	if err != nil {
		_, _ = fmt.Fprintf(l.writer, "{\"error\":\"failed to marshal event: %v\"}\n", err)
		return
	}
	_, _ = fmt.Fprintf(l.writer, "%s\n", data)
}

func (l *LogEmitter) emitText(event Event) {
	_, _ = fmt.Fprintf(l.writer, "[%s] feed=%s run=%s msg=%s", event.Stage, event.FeedName, event.RunID, event.Msg)
	if len(event.Meta) > 0 {
		if metaJSON, err := json.Marshal(event.Meta); err == nil {
			_, _ = fmt.Fprintf(l.writer, " meta=%s", metaJSON)
		}
	}
	_, _ = fmt.Fprint(l.writer, "\n")
}

func (l *LogEmitter) EmitBatch(_ context.Context, events []Event) error {
	for _, event := range events {
		l.Emit(event)
	}
	return nil
}

// Flush is a no-op: LogEmitter writes synchronously with no internal
// buffer. Wrap writer in a bufio.Writer and flush that directly if you
// need buffered output.
func (l *LogEmitter) Flush(_ context.Context) error { return nil }
