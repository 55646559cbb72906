package audit

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/raaihank/incident-sentinel/internal/privacy"
	"github.com/segmentio/parquet-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Pipeline runs the leak detector over every record of a dataset
type Pipeline struct {
	detector *privacy.Detector
	config   Config
	logger   *zap.Logger
}

// NewPipeline creates a new audit pipeline
func NewPipeline(detector *privacy.Detector, config Config, logger *zap.Logger) *Pipeline {
	defaults := DefaultConfig()
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.WorkerCount <= 0 {
		config.WorkerCount = defaults.WorkerCount
	}
	if config.MaxTextLength <= 0 {
		config.MaxTextLength = defaults.MaxTextLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{detector: detector, config: config, logger: logger}
}

// batchReader returns the next batch, counting skipped rows on report.
// An empty batch marks the end of input.
type batchReader func(report *Report) ([]Record, error)

// maxReportedErrors caps Report.Errors
const maxReportedErrors = 100

// ProcessFile audits a dataset file (CSV, Parquet, or JSON lines)
func (p *Pipeline) ProcessFile(ctx context.Context, filePath string) (*Report, error) {
	format := DetectFileFormat(filePath)
	p.logger.Info("Starting audit",
		zap.String("file", filePath),
		zap.String("format", string(format)),
		zap.Int("batch_size", p.config.BatchSize),
		zap.Int("workers", p.config.WorkerCount))

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", filePath, err)
	}
	defer file.Close()

	if format == FormatParquet {
		reader := parquet.NewReader(file)
		defer reader.Close()
		return p.run(ctx, p.parquetBatches(reader))
	}
	return p.ProcessReader(ctx, file, format)
}

// ProcessReader audits a CSV or JSON-lines stream
func (p *Pipeline) ProcessReader(ctx context.Context, r io.Reader, format FileFormat) (*Report, error) {
	switch format {
	case FormatCSV:
		read, err := p.csvBatches(r)
		if err != nil {
			return nil, err
		}
		return p.run(ctx, read)
	case FormatJSON:
		return p.run(ctx, p.jsonBatches(r))
	default:
		return nil, fmt.Errorf("unsupported stream format: %s", format)
	}
}

func (p *Pipeline) run(ctx context.Context, read batchReader) (*Report, error) {
	start := time.Now()
	report := &Report{
		FindingsByCategory: make(map[string]int),
		Records:            []RecordReport{},
	}

	for {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		batch, err := read(report)
		if err != nil {
			return report, fmt.Errorf("failed to read batch: %w", err)
		}
		if len(batch) == 0 {
			break
		}

		results, err := p.processBatch(ctx, batch)
		if err != nil {
			return report, err
		}
		p.merge(report, batch, results)
	}

	report.DurationMS = time.Since(start).Milliseconds()
	p.logger.Info("Audit completed",
		zap.Int64("total_records", report.TotalRecords),
		zap.Int64("flagged_records", report.FlaggedRecords),
		zap.Int64("skipped_records", report.SkippedRecords),
		zap.Int64("duration_ms", report.DurationMS))

	return report, nil
}

// processBatch runs the detector over a batch with a bounded worker pool.
// results[i] belongs to batch[i].
func (p *Pipeline) processBatch(ctx context.Context, batch []Record) ([]privacy.ProcessResult, error) {
	results := make([]privacy.ProcessResult, len(batch))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.config.WorkerCount)
	for i := range batch {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = p.detector.Process(batch[i].Text)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (p *Pipeline) merge(report *Report, batch []Record, results []privacy.ProcessResult) {
	for i, result := range results {
		report.TotalRecords++
		if result.Clean() {
			continue
		}
		report.FlaggedRecords++
		for category, n := range result.CountByCategory() {
			report.FindingsByCategory[string(category)] += n
		}
		report.Records = append(report.Records, RecordReport{ID: batch[i].ID, Leaks: result.Leaks})
	}
}

// skip counts an unreadable row and keeps its reason for the report
func (p *Pipeline) skip(report *Report, reason string) {
	report.SkippedRecords++
	if len(report.Errors) < maxReportedErrors {
		report.Errors = append(report.Errors, reason)
	}
}

// validateRecord reports whether a record is worth scanning
func (p *Pipeline) validateRecord(record *Record) bool {
	if strings.TrimSpace(record.Text) == "" {
		p.logger.Debug("Skipping record: empty text", zap.String("id", record.ID))
		return false
	}
	if len(record.Text) > p.config.MaxTextLength {
		p.logger.Debug("Skipping record: text too long",
			zap.String("id", record.ID),
			zap.Int("length", len(record.Text)))
		return false
	}
	return true
}

// csvBatches reads a CSV stream with an "id,text" header. Files without an
// id column are numbered by row.
func (p *Pipeline) csvBatches(r io.Reader) (batchReader, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	idCol, textCol := -1, -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "id":
			idCol = i
		case "text":
			textCol = i
		}
	}
	if textCol < 0 {
		return nil, errors.New("CSV header has no text column")
	}
	p.logger.Debug("CSV header detected", zap.Strings("columns", header))

	var row int64
	return func(report *Report) ([]Record, error) {
		var batch []Record
		for len(batch) < p.config.BatchSize {
			fields, err := reader.Read()
			if err == io.EOF {
				break
			}
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				row++
				p.logger.Warn("Failed to parse CSV record", zap.Error(err))
				p.skip(report, parseErr.Error())
				continue
			}
			if err != nil {
				return batch, fmt.Errorf("failed to read CSV: %w", err)
			}
			row++
			if textCol >= len(fields) {
				p.logger.Warn("Invalid CSV record length", zap.Int("length", len(fields)))
				p.skip(report, fmt.Sprintf("record %d: missing text column", row))
				continue
			}

			record := Record{ID: strconv.FormatInt(row, 10), Text: fields[textCol]}
			if idCol >= 0 && idCol < len(fields) && fields[idCol] != "" {
				record.ID = fields[idCol]
			}
			if !p.validateRecord(&record) {
				report.SkippedRecords++
				continue
			}
			batch = append(batch, record)
		}
		return batch, nil
	}, nil
}

// jsonBatches reads one JSON object per line
func (p *Pipeline) jsonBatches(r io.Reader) batchReader {
	decoder := json.NewDecoder(r)
	var row int64
	return func(report *Report) ([]Record, error) {
		var batch []Record
		for len(batch) < p.config.BatchSize {
			var record Record
			err := decoder.Decode(&record)
			if err == io.EOF {
				break
			}
			if err != nil {
				return batch, fmt.Errorf("failed to decode JSON record %d: %w", row+1, err)
			}
			row++
			if record.ID == "" {
				record.ID = strconv.FormatInt(row, 10)
			}
			if !p.validateRecord(&record) {
				report.SkippedRecords++
				continue
			}
			batch = append(batch, record)
		}
		return batch, nil
	}
}

func (p *Pipeline) parquetBatches(reader *parquet.Reader) batchReader {
	var row int64
	return func(report *Report) ([]Record, error) {
		var batch []Record
		for len(batch) < p.config.BatchSize {
			var record Record
			err := reader.Read(&record)
			if err == io.EOF {
				break
			}
			if err != nil {
				return batch, fmt.Errorf("failed to read Parquet record: %w", err)
			}
			row++
			if record.ID == "" {
				record.ID = strconv.FormatInt(row, 10)
			}
			if !p.validateRecord(&record) {
				report.SkippedRecords++
				continue
			}
			batch = append(batch, record)
		}
		return batch, nil
	}
}
