package store

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/qgenlab/qgen/internal/model"
)

// TokenLogFile is the per-run CSV usage log name.
const TokenLogFile = "token_log.csv"

var csvHeader = []string{
	"timestamp",
	"model",
	"prompt_tokens",
	"completion_tokens",
	"total_tokens",
	"duration_sec",
	"subject",
	"grade_level",
	"topic",
	"subtopic",
	"bloom_level",
	"num_questions",
	"user_keywords",
	"stage",
	"status",
}

// CSVLog appends call records to a CSV file, writing the header when the
// file is first created.
type CSVLog struct {
	mu   sync.Mutex
	path string
}

// NewCSVLog returns a log writing to path. Nothing is created until the
// first Record.
func NewCSVLog(path string) *CSVLog {
	return &CSVLog{path: path}
}

// Path returns the file the log writes to.
func (l *CSVLog) Path() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.path
}

// SetPath redirects later records, e.g. into the next run directory.
func (l *CSVLog) SetPath(path string) {
	l.mu.Lock()
	l.path = path
	l.mu.Unlock()
}

// Record appends one row.
func (l *CSVLog) Record(rec model.CallRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("creating token log directory: %w", err)
	}

	first := false
	if info, err := os.Stat(l.path); errors.Is(err, os.ErrNotExist) || (err == nil && info.Size() == 0) {
		first = true
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening token log: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if first {
		if err := w.Write(csvHeader); err != nil {
			return fmt.Errorf("writing token log header: %w", err)
		}
	}
	p := rec.Params
	row := []string{
		rec.Timestamp.Format(time.RFC3339),
		rec.Model,
		strconv.Itoa(rec.Usage.PromptTokens),
		strconv.Itoa(rec.Usage.CompletionTokens),
		strconv.Itoa(rec.Usage.TotalTokens),
		strconv.FormatFloat(rec.Duration.Seconds(), 'f', 2, 64),
		p.Subject,
		p.GradeLevel,
		p.Topic,
		p.Subtopic,
		strings.Join(p.BloomLevels, ", "),
		strconv.Itoa(p.NumQuestions),
		p.UserKeywords,
		rec.Stage,
		rec.Status,
	}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("writing token log row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flushing token log: %w", err)
	}
	return nil
}

// Tee fans a record out to several recorders. Every recorder is tried; the
// errors are joined.
type Tee []model.UsageRecorder

func (t Tee) Record(rec model.CallRecord) error {
	var errs []error
	for _, r := range t {
		if r == nil {
			continue
		}
		if err := r.Record(rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
