package hub

import (
	"context"
	"log/slog"

	"go.klb.dev/clipstash/internal/clip"
)

// previewWidth is the longest preview written to the debug log.
const previewWidth = 120

// LogClip logs a clip event at INFO (id, kind, size) and, at DEBUG only,
// a one-line preview of the content.
func LogClip(event string, c clip.Clip) {
	slog.Info(event, "id", c.ID, "kind", c.Kind, "size", len(c.Data))

	if !slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	slog.Debug("clip content", "id", c.ID, "preview", c.Preview(previewWidth))
}
