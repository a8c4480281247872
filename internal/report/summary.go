package report

import (
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/google/uuid"

	"github.com/tracertea/certidao/internal/batch"
	"github.com/tracertea/certidao/internal/registry"
)

// Summary is the report of one batch run.
type Summary struct {
	RunID         string            `json:"run_id"`
	Total         int               `json:"total"`
	SuccessCount  int               `json:"success_count"`
	FailureCount  int               `json:"failure_count"`
	FaultCount    int               `json:"fault_count"`
	Cancelled     bool              `json:"cancelled,omitempty"`
	Errors        map[string]string `json:"errors,omitempty"`
	Latency       LatencyStats      `json:"latency"`
	ExecutionTime string            `json:"execution_time"`
	Timestamp     time.Time         `json:"timestamp"`
	Items         []Item            `json:"items"`
}

// Item is one row of the report.
type Item struct {
	Index    int    `json:"index"`
	CNPJ     string `json:"cnpj"`
	Company  string `json:"company"`
	Status   string `json:"status"`
	Duration string `json:"duration"`
	Error    string `json:"error,omitempty"`
}

// LatencyStats summarizes per-identifier durations in milliseconds.
type LatencyStats struct {
	P50  int64   `json:"p50_ms"`
	P90  int64   `json:"p90_ms"`
	P99  int64   `json:"p99_ms"`
	Max  int64   `json:"max_ms"`
	Mean float64 `json:"mean_ms"`
}

// NewSummary builds a Summary from a batch result. total is the number of
// identifiers submitted, which exceeds the processed count after a
// cancellation.
func NewSummary(result batch.Result, reg batch.Registry, total int, elapsed time.Duration) *Summary {
	s := &Summary{
		RunID:         uuid.NewString(),
		Total:         total,
		SuccessCount:  result.Success,
		FailureCount:  result.Failure,
		FaultCount:    result.Faults(),
		Cancelled:     result.Processed() < total,
		Latency:       latency(result.Items),
		ExecutionTime: elapsed.Round(time.Second).String(),
		Timestamp:     time.Now(),
		Items:         make([]Item, 0, len(result.Items)),
	}

	for _, outcome := range result.Items {
		item := Item{
			Index:    outcome.Index,
			CNPJ:     string(outcome.Identifier),
			Company:  registry.Name(reg, outcome.Identifier),
			Status:   outcome.Status.String(),
			Duration: outcome.Duration.Round(time.Millisecond).String(),
		}
		if outcome.Err != nil {
			item.Error = outcome.Err.Error()
		}
		if outcome.Succeeded() {
			// A later occurrence of a duplicate CNPJ may succeed.
			delete(s.Errors, item.CNPJ)
		} else {
			if s.Errors == nil {
				s.Errors = make(map[string]string)
			}
			msg := item.Error
			if msg == "" {
				msg = "certificate not issued"
			}
			s.Errors[item.CNPJ] = msg
		}
		s.Items = append(s.Items, item)
	}
	return s
}

func latency(items []batch.ItemOutcome) LatencyStats {
	if len(items) == 0 {
		return LatencyStats{}
	}

	// 1ms to 1h, 3 significant figures.
	h := hdrhistogram.New(1, int64(time.Hour/time.Millisecond), 3)
	for _, item := range items {
		ms := item.Duration.Milliseconds()
		if ms < 1 {
			ms = 1
		}
		_ = h.RecordValue(ms)
	}

	return LatencyStats{
		P50:  h.ValueAtQuantile(50),
		P90:  h.ValueAtQuantile(90),
		P99:  h.ValueAtQuantile(99),
		Max:  h.Max(),
		Mean: h.Mean(),
	}
}
