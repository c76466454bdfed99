package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/perpflow/fundarb/internal/executor"
	"github.com/redis/go-redis/v9"
)

const (
	reportsKey = "fundarb:reports"
	// reportsKeep caps the report log length.
	reportsKeep = 500
)

// ReportLog persists execution reports so entries and exits survive process
// restarts and can be inspected from other machines.
type ReportLog struct {
	rdb *redis.Client
}

// NewReportLog creates a ReportLog backed by the given Client.
func NewReportLog(c *Client) *ReportLog {
	return &ReportLog{rdb: c.Underlying()}
}

// Store appends a report to the log, trimming it to the retention cap.
func (rl *ReportLog) Store(ctx context.Context, rep *executor.ExecutionReport) error {
	data, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("redis: marshaling report: %w", err)
	}

	pipe := rl.rdb.TxPipeline()
	pipe.LPush(ctx, reportsKey, data)
	pipe.LTrim(ctx, reportsKey, 0, reportsKeep-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: storing report %s: %w", rep.ID, err)
	}
	return nil
}

// Recent returns up to n reports, most recent first.
func (rl *ReportLog) Recent(ctx context.Context, n int) ([]executor.ExecutionReport, error) {
	raw, err := rl.rdb.LRange(ctx, reportsKey, 0, int64(n)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: reading reports: %w", err)
	}

	reports := make([]executor.ExecutionReport, 0, len(raw))
	for _, item := range raw {
		var rep executor.ExecutionReport
		if err := json.Unmarshal([]byte(item), &rep); err != nil {
			return nil, fmt.Errorf("redis: decoding report: %w", err)
		}
		reports = append(reports, rep)
	}
	return reports, nil
}
