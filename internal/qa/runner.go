package qa

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"earnrev/internal/metrics"
)

// Report is the artifact of one QA run. Counters carries the batch's
// collected prometheus series when the report follows a live run.
type Report struct {
	RunID       string           `json:"run_id"`
	GeneratedAt time.Time        `json:"generated_at"`
	Pass        bool             `json:"pass"`
	FailCount   int              `json:"fail_count"`
	WarnCount   int              `json:"warn_count"`
	InfoCount   int              `json:"info_count"`
	Issues      []Issue          `json:"issues"`
	Counters    []metrics.Sample `json:"counters,omitempty"`
}

// Run executes every check and aggregates the findings. The run
// passes when no FAIL-severity issue was raised.
func Run(in Inputs) *Report {
	report := &Report{
		RunID:       uuid.NewString(),
		GeneratedAt: time.Now().UTC(),
		Issues:      make([]Issue, 0),
		Counters:    in.Counters,
	}

	report.add(checkExports(in.ExportDir)...)
	report.add(checkDateOrdering(in.Windows)...)
	report.add(checkOHLC(in.Windows)...)
	report.add(checkSignalRules(in.Signals, in.Thresholds)...)
	report.add(checkTrades(in.Trades, in.Cost, in.Tolerances)...)
	report.add(checkCoverage(in.Signals, in.Degradations)...)

	report.Pass = report.FailCount == 0

	event := log.Info()
	if !report.Pass {
		event = log.Error()
	}
	event.Str("run_id", report.RunID).
		Bool("pass", report.Pass).
		Int("fail", report.FailCount).
		Int("warn", report.WarnCount).
		Int("info", report.InfoCount).
		Msg("qa run complete")

	return report
}

func (r *Report) add(issues ...Issue) {
	for _, issue := range issues {
		switch issue.Severity {
		case SeverityFail:
			r.FailCount++
		case SeverityWarn:
			r.WarnCount++
		default:
			r.InfoCount++
		}
		r.Issues = append(r.Issues, issue)
	}
}

// WriteJSON writes the report atomically to path.
func (r *Report) WriteJSON(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal qa report: %w", err)
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write qa report: %w", err)
	}
	return os.Rename(tmpPath, path)
}
