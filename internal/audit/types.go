package audit

import (
	"path/filepath"
	"strings"
)

// Record is a single text to audit
type Record struct {
	ID   string `csv:"id" parquet:"id" json:"id"`
	Text string `csv:"text" parquet:"text" json:"text"`
}

// RecordReport lists the findings of one flagged record
type RecordReport struct {
	ID    string   `json:"id"`
	Leaks []string `json:"leaks"`
}

// Report summarises an audit run. Records holds flagged records only, in input order.
type Report struct {
	TotalRecords       int64          `json:"total_records"`
	FlaggedRecords     int64          `json:"flagged_records"`
	SkippedRecords     int64          `json:"skipped_records"`
	FindingsByCategory map[string]int `json:"findings_by_category"`
	Records            []RecordReport `json:"records"`
	DurationMS         int64          `json:"duration_ms"`
	Errors             []string       `json:"errors,omitempty"`
}

// Config contains audit pipeline configuration
type Config struct {
	BatchSize     int `yaml:"batch_size" mapstructure:"batch_size"`
	WorkerCount   int `yaml:"worker_count" mapstructure:"worker_count"`
	MaxTextLength int `yaml:"max_text_length" mapstructure:"max_text_length"`
}

// DefaultConfig returns the settings used by the CLI
func DefaultConfig() Config {
	return Config{
		BatchSize:     500,
		WorkerCount:   4,
		MaxTextLength: 1 << 20,
	}
}

// FileFormat represents supported file formats
type FileFormat string

const (
	FormatCSV     FileFormat = "csv"
	FormatParquet FileFormat = "parquet"
	FormatJSON    FileFormat = "json"
)

// DetectFileFormat detects file format from extension, defaulting to CSV
func DetectFileFormat(filename string) FileFormat {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".parquet":
		return FormatParquet
	case ".json", ".jsonl", ".ndjson":
		return FormatJSON
	default:
		return FormatCSV
	}
}
