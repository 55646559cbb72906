package web

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/raaihank/incident-sentinel/internal/logger"
	"github.com/raaihank/incident-sentinel/internal/status"
	"github.com/stretchr/testify/assert"
)

type listerFunc func(ctx context.Context) ([]status.Update, error)

func (f listerFunc) Updates(ctx context.Context) ([]status.Update, error) {
	return f(ctx)
}

func TestStatusPageRendersNewestFirst(t *testing.T) {
	lister := listerFunc(func(context.Context) ([]status.Update, error) {
		return []status.Update{
			{Timestamp: "2024-01-02T00:00:00.000000Z", Draft: "Resolved <script>alert(1)</script>"},
			{Timestamp: "2024-01-01T00:00:00.000000Z", Draft: "Investigating"},
		}, nil
	})

	rec := httptest.NewRecorder()
	StatusPageHandler("Acme Status", lister, logger.NewNop())(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	body := rec.Body.String()
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, body, "<title>Acme Status</title>")
	assert.NotContains(t, body, "<script>")
	assert.Contains(t, body, "&lt;script&gt;")
	assert.Less(t, strings.Index(body, "Resolved"), strings.Index(body, "Investigating"))
}

func TestStatusPageEmpty(t *testing.T) {
	lister := listerFunc(func(context.Context) ([]status.Update, error) { return nil, nil })

	rec := httptest.NewRecorder()
	StatusPageHandler("Status", lister, logger.NewNop())(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	assert.Contains(t, rec.Body.String(), "No status updates have been published.")
}

func TestStatusPageStoreError(t *testing.T) {
	lister := listerFunc(func(context.Context) ([]status.Update, error) {
		return nil, errors.New("redis down")
	})

	rec := httptest.NewRecorder()
	StatusPageHandler("Status", lister, logger.NewNop())(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestStatusPageRenderError(t *testing.T) {
	original := statusPage
	statusPage = template.Must(template.New("status").Parse(`<h1>{{.Title}}</h1>{{.Missing}}`))
	t.Cleanup(func() { statusPage = original })

	lister := listerFunc(func(context.Context) ([]status.Update, error) { return nil, nil })

	rec := httptest.NewRecorder()
	StatusPageHandler("Status", lister, logger.NewNop())(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "<h1>")
	assert.NotEqual(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
}
