package web

import (
	"bytes"
	"context"
	"html/template"
	"net/http"

	"github.com/raaihank/incident-sentinel/internal/logger"
	"github.com/raaihank/incident-sentinel/internal/status"
	"go.uber.org/zap"
)

var statusPage = template.Must(template.New("status").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", sans-serif; max-width: 760px; margin: 2rem auto; color: #1f2933; }
article { border-left: 3px solid #3b82f6; padding: 0.5rem 1rem; margin-bottom: 1.5rem; }
time { color: #64748b; font-size: 0.85rem; }
pre { white-space: pre-wrap; font-family: inherit; margin: 0.5rem 0 0; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
{{- range .Updates}}
<article>
<time datetime="{{.Timestamp}}">{{.Timestamp}}</time>
<pre>{{.Draft}}</pre>
</article>
{{- else}}
<p>No status updates have been published.</p>
{{- end}}
</body>
</html>
`))

// UpdateLister is the read side of the status log
type UpdateLister interface {
	Updates(ctx context.Context) ([]status.Update, error)
}

type statusPageData struct {
	Title   string
	Updates []status.Update
}

// StatusPageHandler renders the published updates, newest first
func StatusPageHandler(title string, updates UpdateLister, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := updates.Updates(r.Context())
		if err != nil {
			log.Error("Failed to load status updates", zap.Error(err))
			http.Error(w, "Failed to load status updates", http.StatusInternalServerError)
			return
		}

		var page bytes.Buffer
		if err := statusPage.Execute(&page, statusPageData{Title: title, Updates: list}); err != nil {
			log.Error("Failed to render status page", zap.Error(err))
			http.Error(w, "Failed to render status page", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		w.Header().Set("Pragma", "no-cache")
		w.Header().Set("Expires", "0")
		w.Write(page.Bytes())
	}
}
