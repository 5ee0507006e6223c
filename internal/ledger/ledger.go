// Package ledger keeps an audit trail of grading runs: one record per
// processed queue row and one summary per run. The queue sheet remains the
// source of truth; the ledger is write-only history.
package ledger

import (
	"context"
	"time"
)

// RetentionPeriod is how long ledger records live before DynamoDB TTL
// removes them.
const RetentionPeriod = 90 * 24 * time.Hour

// JobRecord describes the outcome of one queue row.
type JobRecord struct {
	RunID       string  `dynamodbav:"-"`
	Row         int     `dynamodbav:"-"`
	ClientID    string  `dynamodbav:"clientId"`
	ClientName  string  `dynamodbav:"clientName"`
	Status      string  `dynamodbav:"status"`
	Deliverable string  `dynamodbav:"deliverable,omitempty"`
	Documents   int     `dynamodbav:"documents"`
	TokensIn    int     `dynamodbav:"tokensIn"`
	TokensOut   int     `dynamodbav:"tokensOut"`
	StepRetries int     `dynamodbav:"stepRetries"`
	DurationSec float64 `dynamodbav:"durationSec"`
	Error       string  `dynamodbav:"error,omitempty"`
	FinishedAt  int64   `dynamodbav:"finishedAt"`
}

// RunRecord summarizes one pipeline pass.
type RunRecord struct {
	RunID      string `dynamodbav:"-"`
	AppVersion string `dynamodbav:"appVersion"`
	CacheName  string `dynamodbav:"cacheName,omitempty"`
	Ready      int    `dynamodbav:"ready"`
	Completed  int    `dynamodbav:"completed"`
	Failed     int    `dynamodbav:"failed"`
	Error      string `dynamodbav:"error,omitempty"`
	StartedAt  int64  `dynamodbav:"startedAt"`
	FinishedAt int64  `dynamodbav:"finishedAt"`
}

// Ledger records run history.
type Ledger interface {
	RecordJob(ctx context.Context, rec *JobRecord) error
	RecordRun(ctx context.Context, rec *RunRecord) error
}

// Nop discards every record. It is used when no ledger table is configured.
type Nop struct{}

func (Nop) RecordJob(context.Context, *JobRecord) error { return nil }
func (Nop) RecordRun(context.Context, *RunRecord) error { return nil }
