package incident

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"text/template"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/raaihank/incident-sentinel/internal/llm"
	"github.com/raaihank/incident-sentinel/internal/logger"
	"github.com/raaihank/incident-sentinel/internal/observability"
	"github.com/raaihank/incident-sentinel/internal/status"
	"github.com/raaihank/incident-sentinel/internal/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const leakyIncident = `{
  "incident_id": "INC-42",
  "title": "Database failover",
  "impact": "Logins failing for some users",
  "status": "identified",
  "affected_services": ["Auth"],
  "start_time": "2024-03-01T08:00:00Z",
  "description": "Primary db-primary.prod.acme.net (10.20.30.40) stopped replicating. Paged oncall@acme.com.",
  "runbook": "https://wiki/runbooks/db"
}`

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []websocket.Event
}

func (b *recordingBroadcaster) BroadcastEvent(event websocket.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}

func (b *recordingBroadcaster) types() []websocket.EventType {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]websocket.EventType, len(b.events))
	for i, e := range b.events {
		out[i] = e.Type
	}
	return out
}

func writeIncident(t *testing.T, dir, id, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, id+".json"), []byte(body), 0o644))
}

func fixedClock() func() time.Time {
	var mu sync.Mutex
	current := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		current = current.Add(time.Second)
		return current
	}
}

func newTestService(t *testing.T, gen llm.Generator) (*Service, *recordingBroadcaster, status.Store) {
	t.Helper()
	dir := t.TempDir()
	writeIncident(t, dir, "INC-42", leakyIncident)

	events := &recordingBroadcaster{}
	store := status.NewMemoryStore(status.DefaultMaxUpdates)
	svc := NewService(Options{
		Incidents:    NewRepository(dir),
		Generator:    gen,
		Store:        store,
		Events:       events,
		Metrics:      observability.NewMetrics(prometheus.NewRegistry()),
		Logger:       logger.NewNop(),
		Organization: "Acme",
		Now:          fixedClock(),
	})
	return svc, events, store
}

func TestParseTone(t *testing.T) {
	tests := []struct {
		in   string
		want Tone
	}{
		{"urgent", ToneUrgent},
		{" Casual ", ToneCasual},
		{"TECHNICAL", ToneTechnical},
		{"", ToneProfessional},
		{"pirate", ToneProfessional},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseTone(tt.in))
		})
	}
}

func TestToneConfig(t *testing.T) {
	assert.Equal(t, float32(0.3), ToneProfessional.Config().Temperature)
	assert.Equal(t, "calm and reassuring", ToneReassuring.Config().Style)
	assert.Equal(t, ToneProfessional.Config(), Tone("unknown").Config())
	assert.Len(t, Tones(), 5)
}

func TestDraftPrompt(t *testing.T) {
	prompt, err := DraftPrompt("Acme", `{"title": "Outage"}`, ToneUrgent)
	require.NoError(t, err)

	assert.Contains(t, prompt, `Sign off as "Acme Incident Communications Team"`)
	assert.Contains(t, prompt, `{"title": "Outage"}`)
	assert.True(t, strings.HasSuffix(prompt, "Tone: Write in a urgent and direct tone."))

	system, err := SystemPrompt("Acme")
	require.NoError(t, err)
	assert.Equal(t, "You are a professional incident communications specialist for Acme.", system)
}

func TestRepositoryLoad(t *testing.T) {
	dir := t.TempDir()
	writeIncident(t, dir, "INC-42", leakyIncident)
	repo := NewRepository(dir)

	t.Run("existing record keeps unknown fields", func(t *testing.T) {
		record, err := repo.Load("INC-42")
		require.NoError(t, err)
		assert.Equal(t, "Database failover", record.Title)
		assert.Equal(t, []string{"Auth"}, record.AffectedServices)
		require.Contains(t, record.Extra, "runbook")

		data, err := record.MarshalJSON()
		require.NoError(t, err)
		assert.Contains(t, string(data), `"runbook":"https://wiki/runbooks/db"`)
		assert.Contains(t, string(data), `"incident_id":"INC-42"`)
	})

	t.Run("missing record falls back to default", func(t *testing.T) {
		record, err := repo.Load("INC-7")
		require.NoError(t, err)
		assert.Equal(t, "INC-7", record.IncidentID)
		assert.Equal(t, "Service Degradation", record.Title)
	})

	t.Run("path traversal rejected", func(t *testing.T) {
		_, err := repo.Load("../etc/passwd")
		assert.ErrorIs(t, err, ErrInvalidIncidentID)
	})

	t.Run("empty id", func(t *testing.T) {
		_, err := repo.Load("")
		assert.ErrorIs(t, err, ErrIncidentIDRequired)

		_, err = repo.Load("   ")
		assert.ErrorIs(t, err, ErrIncidentIDRequired)
	})
}

func TestDraftRedactsBeforeAndAfterGeneration(t *testing.T) {
	var got llm.Request
	gen := llm.GeneratorFunc(func(_ context.Context, req llm.Request) (string, error) {
		got = req
		return "We are investigating. Reach us at support@acme.com.", nil
	})
	svc, events, _ := newTestService(t, gen)

	result, err := svc.Draft(context.Background(), "INC-42", "urgent")
	require.NoError(t, err)

	for _, secret := range []string{"oncall@acme.com", "10.20.30.40", "db-primary.prod.acme.net"} {
		assert.NotContains(t, got.Prompt, secret)
	}
	assert.Contains(t, got.Prompt, "<REDACTED_EMAIL>")
	assert.Contains(t, got.Prompt, "<REDACTED_IP>")
	assert.Contains(t, got.Prompt, "<REDACTED_HOSTNAME>")
	assert.Equal(t, float32(0.2), got.Temperature)
	assert.Equal(t, defaultMaxTokens, got.MaxTokens)
	assert.Contains(t, got.SystemPrompt, "Acme")

	assert.Equal(t, "We are investigating. Reach us at <REDACTED_EMAIL>.", result.Draft)
	assert.Equal(t, []string{"EMAIL: support@acme.com"}, result.Leaks)
	assert.Equal(t, ToneUrgent, result.Tone)
	assert.Equal(t, int64(1000), result.LatencyMS)
	assert.Equal(t, []websocket.EventType{websocket.EventTypeLeakDetection}, events.types())
}

func TestDraftCleanOutputHasNoLeaks(t *testing.T) {
	gen := llm.GeneratorFunc(func(context.Context, llm.Request) (string, error) {
		return "  All systems operational.  ", nil
	})
	svc, events, _ := newTestService(t, gen)

	result, err := svc.Draft(context.Background(), "INC-1", "")
	require.NoError(t, err)
	assert.Equal(t, "  All systems operational.  ", result.Draft)
	assert.Empty(t, result.Leaks)
	assert.Equal(t, ToneProfessional, result.Tone)
	assert.Empty(t, events.types())
}

func TestDraftUsesConfiguredDefaultTone(t *testing.T) {
	var got llm.Request
	gen := llm.GeneratorFunc(func(_ context.Context, req llm.Request) (string, error) {
		got = req
		return "ok", nil
	})
	svc := NewService(Options{
		Incidents:   NewRepository(t.TempDir()),
		Generator:   gen,
		DefaultTone: ToneReassuring,
	})

	result, err := svc.Draft(context.Background(), "INC-9", "")
	require.NoError(t, err)
	assert.Equal(t, ToneReassuring, result.Tone)
	assert.Equal(t, float32(0.5), got.Temperature)
	assert.Contains(t, got.Prompt, "calm and reassuring")

	result, err = svc.Draft(context.Background(), "INC-9", "urgent")
	require.NoError(t, err)
	assert.Equal(t, ToneUrgent, result.Tone)
}

func TestDraftGenerationFailure(t *testing.T) {
	boom := errors.New("upstream timeout")
	gen := llm.GeneratorFunc(func(context.Context, llm.Request) (string, error) {
		return "", boom
	})
	svc, _, _ := newTestService(t, gen)

	_, err := svc.Draft(context.Background(), "INC-42", "casual")
	assert.ErrorIs(t, err, boom)
}

func TestDraftPromptRenderFailure(t *testing.T) {
	original := draftPromptTemplate
	draftPromptTemplate = template.Must(template.New("draft").Parse(`{{.Severity}}`))
	t.Cleanup(func() { draftPromptTemplate = original })

	called := false
	gen := llm.GeneratorFunc(func(context.Context, llm.Request) (string, error) {
		called = true
		return "ok", nil
	})
	svc, _, _ := newTestService(t, gen)

	_, err := svc.Draft(context.Background(), "INC-42", "casual")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to render draft prompt")
	assert.False(t, called)
}

func TestDraftWithoutGenerator(t *testing.T) {
	svc, _, _ := newTestService(t, nil)

	_, err := svc.Draft(context.Background(), "INC-42", "casual")
	assert.ErrorIs(t, err, ErrGeneratorUnavailable)
}

func TestPublishBlocksSensitiveDraft(t *testing.T) {
	svc, events, store := newTestService(t, nil)
	ctx := context.Background()

	_, err := svc.Publish(ctx, "Root cause was db-01.corp.example.com; ping admin@example.com")

	var leakErr *LeakError
	require.True(t, errors.As(err, &leakErr))
	assert.ElementsMatch(t, []string{
		"EMAIL: admin@example.com",
		"HOSTNAME: db-01.corp.example.com",
	}, leakErr.Leaks)

	updates, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, updates)
	assert.Equal(t, []websocket.EventType{
		websocket.EventTypeLeakDetection,
		websocket.EventTypePublishRejected,
	}, events.types())
}

func TestPublishCleanDraft(t *testing.T) {
	svc, events, _ := newTestService(t, nil)
	ctx := context.Background()

	update, err := svc.Publish(ctx, "Service restored.")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01T09:00:01.000000Z", update.Timestamp)

	updates, err := svc.Updates(ctx)
	require.NoError(t, err)
	require.Len(t, updates, 1)
	assert.Equal(t, "Service restored.", updates[0].Draft)
	assert.Equal(t, []websocket.EventType{websocket.EventTypeStatusPublished}, events.types())
}

func TestPublishEmptyDraft(t *testing.T) {
	svc, _, _ := newTestService(t, nil)

	_, err := svc.Publish(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrDraftRequired)
}

func TestPublishKeepsMostRecentUpdates(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	ctx := context.Background()

	for i := 0; i < status.DefaultMaxUpdates+5; i++ {
		_, err := svc.Publish(ctx, "update "+strings.Repeat("x", i))
		require.NoError(t, err)
	}

	updates, err := svc.Updates(ctx)
	require.NoError(t, err)
	require.Len(t, updates, status.DefaultMaxUpdates)
	assert.Equal(t, "update "+strings.Repeat("x", status.DefaultMaxUpdates+4), updates[0].Draft)
	assert.Greater(t, updates[0].Timestamp, updates[1].Timestamp)
}

func TestValidateHasNoStoreSideEffects(t *testing.T) {
	svc, events, store := newTestService(t, nil)

	result := svc.Validate("Call 555-123-4567")
	assert.Equal(t, "Call <REDACTED_PHONE>", result.RedactedText)
	assert.Equal(t, []string{"PHONE: 5551234567"}, result.Leaks)

	updates, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, updates)
	assert.Equal(t, []websocket.EventType{websocket.EventTypeLeakDetection}, events.types())
}
