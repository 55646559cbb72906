package incident

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/raaihank/incident-sentinel/internal/llm"
	"github.com/raaihank/incident-sentinel/internal/logger"
	"github.com/raaihank/incident-sentinel/internal/observability"
	"github.com/raaihank/incident-sentinel/internal/privacy"
	"github.com/raaihank/incident-sentinel/internal/status"
	"github.com/raaihank/incident-sentinel/internal/websocket"
	"go.uber.org/zap"
)

// Detection passes, used as the metrics "pass" label and event source
const (
	PassPreGeneration = "pre_generation"
	PassDraft         = "draft"
	PassPublish       = "publish"
	PassValidate      = "validate"
)

const defaultMaxTokens = 400

var (
	// ErrDraftRequired is returned when publish is called without text
	ErrDraftRequired = errors.New("draft is required")
	// ErrGeneratorUnavailable is returned when no generator is configured
	ErrGeneratorUnavailable = errors.New("draft generation is not configured")
)

// LeakError is returned by Publish when the draft still carries sensitive data.
// Nothing has been written when it is returned.
type LeakError struct {
	Leaks []string
}

func (e *LeakError) Error() string {
	return fmt.Sprintf("cannot publish: %d sensitive finding(s) detected", len(e.Leaks))
}

// Broadcaster receives service events
type Broadcaster interface {
	BroadcastEvent(event websocket.Event)
}

// DraftResult is the outcome of Draft. Draft is already redacted.
type DraftResult struct {
	Draft     string   `json:"draft"`
	Leaks     []string `json:"leaks"`
	LatencyMS int64    `json:"latency_ms"`
	Tone      Tone     `json:"tone"`
}

// Options wires a Service
type Options struct {
	Detector  *privacy.Detector
	Incidents *Repository
	Generator llm.Generator
	Store     status.Store
	Events    Broadcaster
	Metrics   *observability.Metrics
	Logger    *logger.Logger

	Organization string
	DefaultTone  Tone
	MaxTokens    int
	Now          func() time.Time
}

// Service drafts, validates and publishes incident status updates. Every
// piece of text crossing a trust boundary goes through the detector first.
type Service struct {
	detector     *privacy.Detector
	incidents    *Repository
	generator    llm.Generator
	store        status.Store
	events       Broadcaster
	metrics      *observability.Metrics
	logger       *logger.Logger
	organization string
	defaultTone  Tone
	maxTokens    int
	now          func() time.Time
}

// NewService builds a service from opts
func NewService(opts Options) *Service {
	log := opts.Logger
	if log == nil {
		log = logger.NewNop()
	}
	detector := opts.Detector
	if detector == nil {
		detector = privacy.New(log)
	}
	store := opts.Store
	if store == nil {
		store = status.NewMemoryStore(status.DefaultMaxUpdates)
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	defaultTone := ParseTone(string(opts.DefaultTone))
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Service{
		detector:     detector,
		incidents:    opts.Incidents,
		generator:    opts.Generator,
		store:        store,
		events:       opts.Events,
		metrics:      opts.Metrics,
		logger:       log.WithComponent("incident"),
		organization: opts.Organization,
		defaultTone:  defaultTone,
		maxTokens:    maxTokens,
		now:          now,
	}
}

// Draft generates a redacted status update for an incident. An empty tone
// selects the configured default; unknown tones fall back to professional.
func (s *Service) Draft(ctx context.Context, incidentID string, toneName string) (*DraftResult, error) {
	if s.generator == nil {
		return nil, ErrGeneratorUnavailable
	}
	if s.incidents == nil {
		return nil, fmt.Errorf("no incident repository configured")
	}

	record, err := s.incidents.Load(strings.TrimSpace(incidentID))
	if err != nil {
		return nil, err
	}

	raw, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode incident %s: %w", record.IncidentID, err)
	}

	pre := s.detect(PassPreGeneration, string(raw))
	if !pre.Clean() {
		s.logger.Info("Masked sensitive data before generation",
			zap.String("incident_id", record.IncidentID),
			zap.Int("findings", len(pre.Findings)),
		)
	}

	tone := s.defaultTone
	if strings.TrimSpace(toneName) != "" {
		tone = ParseTone(toneName)
	}
	systemPrompt, err := SystemPrompt(s.organization)
	if err != nil {
		return nil, err
	}
	prompt, err := DraftPrompt(s.organization, pre.RedactedText, tone)
	if err != nil {
		return nil, err
	}

	start := s.now()
	text, err := s.generator.Generate(ctx, llm.Request{
		SystemPrompt: systemPrompt,
		Prompt:       prompt,
		Temperature:  tone.Config().Temperature,
		MaxTokens:    s.maxTokens,
	})
	latency := s.now().Sub(start)
	if err != nil {
		s.logger.Error("Draft generation failed",
			zap.String("incident_id", record.IncidentID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to generate draft: %w", err)
	}
	s.metrics.ObserveDraft(string(tone), latency)

	post := s.detect(PassDraft, text)
	if !post.Clean() {
		s.broadcastLeaks(PassDraft, post, false)
	}

	s.logger.Info("Draft generated",
		zap.String("incident_id", record.IncidentID),
		zap.String("tone", string(tone)),
		zap.Int64("latency_ms", latency.Milliseconds()),
		zap.Int("findings", len(post.Findings)),
	)

	return &DraftResult{
		Draft:     post.RedactedText,
		Leaks:     post.Leaks,
		LatencyMS: latency.Milliseconds(),
		Tone:      tone,
	}, nil
}

// Publish appends draft to the status log when it is free of findings.
// Drafts with findings return a *LeakError and are never stored.
func (s *Service) Publish(ctx context.Context, draft string) (status.Update, error) {
	if strings.TrimSpace(draft) == "" {
		return status.Update{}, ErrDraftRequired
	}

	result := s.detect(PassPublish, draft)
	if !result.Clean() {
		s.metrics.ObservePublish(observability.OutcomeRejected)
		s.logger.Warn("Publish blocked: sensitive data detected",
			zap.Int("findings", len(result.Findings)),
		)
		s.broadcastLeaks(PassPublish, result, true)
		s.broadcast(websocket.EventTypePublishRejected, websocket.LeakDetectionEvent{
			Source:        PassPublish,
			Categories:    categoryCounts(result),
			TotalFindings: len(result.Findings),
			Blocked:       true,
		})
		return status.Update{}, &LeakError{Leaks: result.Leaks}
	}

	update := status.NewUpdate(draft, s.now())
	if err := s.store.Append(ctx, update); err != nil {
		s.metrics.ObservePublish(observability.OutcomeError)
		return status.Update{}, fmt.Errorf("failed to store update: %w", err)
	}
	s.metrics.ObservePublish(observability.OutcomePublished)

	s.logger.Info("Status update published", zap.String("ts", update.Timestamp))
	s.broadcast(websocket.EventTypeStatusPublished, websocket.StatusPublishedEvent{
		Timestamp: update.Timestamp,
		Draft:     update.Draft,
	})
	return update, nil
}

// Validate runs the detector over text without side effects on the log
func (s *Service) Validate(text string) privacy.ProcessResult {
	result := s.detect(PassValidate, text)
	if !result.Clean() {
		s.broadcastLeaks(PassValidate, result, false)
	}
	return result
}

// Updates returns the status log, newest first
func (s *Service) Updates(ctx context.Context) ([]status.Update, error) {
	return s.store.List(ctx)
}

func (s *Service) detect(pass, text string) privacy.ProcessResult {
	result := s.detector.Process(text)
	if !result.Clean() {
		s.metrics.ObserveFindings(pass, categoryCounts(result))
	}
	return result
}

func (s *Service) broadcastLeaks(source string, result privacy.ProcessResult, blocked bool) {
	s.broadcast(websocket.EventTypeLeakDetection, websocket.LeakDetectionEvent{
		Source:        source,
		Categories:    categoryCounts(result),
		TotalFindings: len(result.Findings),
		Blocked:       blocked,
	})
}

func (s *Service) broadcast(eventType websocket.EventType, data interface{}) {
	if s.events == nil {
		return
	}
	s.events.BroadcastEvent(websocket.Event{
		Type:      eventType,
		Timestamp: s.now().UTC(),
		Data:      data,
	})
}

func categoryCounts(result privacy.ProcessResult) map[string]int {
	counts := make(map[string]int)
	for category, n := range result.CountByCategory() {
		counts[string(category)] = n
	}
	return counts
}
