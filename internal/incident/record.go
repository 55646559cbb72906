package incident

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	// ErrIncidentIDRequired is returned when no incident id was supplied
	ErrIncidentIDRequired = errors.New("incident_id is required")
	// ErrInvalidIncidentID is returned for ids that are not a plain file name
	ErrInvalidIncidentID = errors.New("invalid incident_id")
)

var incidentIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Record is the raw incident data a draft is written from. Fields beyond the
// known ones are kept in Extra and survive a JSON round trip.
type Record struct {
	IncidentID       string   `json:"incident_id"`
	Title            string   `json:"title"`
	Impact           string   `json:"impact"`
	Status           string   `json:"status"`
	AffectedServices []string `json:"affected_services"`
	StartTime        string   `json:"start_time"`
	Description      string   `json:"description"`

	Extra map[string]json.RawMessage `json:"-"`
}

var knownFields = []string{
	"incident_id", "title", "impact", "status", "affected_services", "start_time", "description",
}

type plainRecord Record

// UnmarshalJSON decodes the known fields and keeps the rest in Extra
func (r *Record) UnmarshalJSON(data []byte) error {
	var known plainRecord
	if err := json.Unmarshal(data, &known); err != nil {
		return err
	}

	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for _, field := range knownFields {
		delete(all, field)
	}

	*r = Record(known)
	if len(all) > 0 {
		r.Extra = all
	}
	return nil
}

// MarshalJSON encodes the known fields together with Extra
func (r Record) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(plainRecord(r))
	if err != nil {
		return nil, err
	}
	if len(r.Extra) == 0 {
		return known, nil
	}

	merged := make(map[string]json.RawMessage, len(r.Extra)+len(knownFields))
	for k, v := range r.Extra {
		merged[k] = v
	}
	if err := json.Unmarshal(known, &merged); err != nil {
		return nil, err
	}
	return json.Marshal(merged)
}

// DefaultRecord is served for incidents without a record on disk
func DefaultRecord(id string) *Record {
	return &Record{
		IncidentID:       id,
		Title:            "Service Degradation",
		Impact:           "Some users experiencing slow response times",
		Status:           "investigating",
		AffectedServices: []string{"API Gateway", "User Authentication"},
		StartTime:        "2024-01-15T10:30:00Z",
		Description:      "We are currently investigating reports of slow response times affecting user authentication and API gateway services.",
	}
}

// Repository reads incident records from <dir>/<id>.json
type Repository struct {
	dir string
}

// NewRepository creates a repository rooted at dir
func NewRepository(dir string) *Repository {
	return &Repository{dir: dir}
}

// Load returns the record for id, or DefaultRecord(id) when none exists
func (r *Repository) Load(id string) (*Record, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrIncidentIDRequired
	}
	if !incidentIDPattern.MatchString(id) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidIncidentID, id)
	}

	data, err := os.ReadFile(filepath.Join(r.dir, id+".json"))
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultRecord(id), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read incident %s: %w", id, err)
	}

	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to decode incident %s: %w", id, err)
	}
	if record.IncidentID == "" {
		record.IncidentID = id
	}
	return &record, nil
}
