package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tagaralaaziis/event36-sub000/internal/errcode"
)

// ErrBatchNotFound means the batch id is unknown or its progress has expired.
var ErrBatchNotFound = errors.New("batch not found")

// FailureResult records one terminally failed participant so an operator can
// re-target just the failures. Failures never silently vanish.
type FailureResult struct {
	ParticipantID uint   `json:"participant_id"`
	Reason        string `json:"reason"`
	Code          int    `json:"code"`
}

// Snapshot is the poll view of a batch. Counters are updated as jobs
// complete; consumers must tolerate a short lag between a job finishing and
// its counter moving.
type Snapshot struct {
	Total     int64           `json:"total"`
	Generated int64           `json:"generated"`
	Sent      int64           `json:"sent"`
	Failed    int64           `json:"failed"`
	Results   []FailureResult `json:"results"`
}

// progressRedis is the slice of go-redis the store needs; narrowed so tests
// can fake it without a server.
type progressRedis interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	LRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
}

// Progress keeps per-batch counters and failure results in Redis. Counters
// move via atomic INCR, never read-modify-write, so concurrent workers need
// no further coordination.
type Progress struct {
	client progressRedis
	ttl    time.Duration
}

func NewProgress(client progressRedis, ttl time.Duration) *Progress {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Progress{client: client, ttl: ttl}
}

func batchKey(batchID, field string) string {
	return fmt.Sprintf("batch:%s:%s", batchID, field)
}

// StartBatch initializes the total and arms the expiry.
func (p *Progress) StartBatch(ctx context.Context, batchID string, total int) error {
	if err := p.client.Set(ctx, batchKey(batchID, "total"), total, p.ttl).Err(); err != nil {
		return fmt.Errorf("init batch %s: %w", batchID, err)
	}
	return nil
}

// MarkGenerated counts one successfully generated artifact.
func (p *Progress) MarkGenerated(ctx context.Context, batchID string) error {
	return p.incr(ctx, batchID, "generated")
}

// MarkSent counts one successfully delivered artifact.
func (p *Progress) MarkSent(ctx context.Context, batchID string) error {
	return p.incr(ctx, batchID, "sent")
}

// MarkFailed counts one terminally failed participant and appends the
// human-readable reason to the batch's result list.
func (p *Progress) MarkFailed(ctx context.Context, batchID string, result FailureResult) error {
	if err := p.incr(ctx, batchID, "failed"); err != nil {
		return err
	}
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal failure result: %w", err)
	}
	key := batchKey(batchID, "results")
	if err := p.client.RPush(ctx, key, string(data)).Err(); err != nil {
		return fmt.Errorf("record failure for batch %s: %w", batchID, err)
	}
	_ = p.client.Expire(ctx, key, p.ttl).Err()
	return nil
}

func (p *Progress) incr(ctx context.Context, batchID, field string) error {
	key := batchKey(batchID, field)
	count, err := p.client.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("incr %s: %w", key, err)
	}
	if count == 1 {
		_ = p.client.Expire(ctx, key, p.ttl).Err()
	}
	return nil
}

// Read returns the batch's current snapshot.
func (p *Progress) Read(ctx context.Context, batchID string) (Snapshot, error) {
	var snap Snapshot

	total, err := p.client.Get(ctx, batchKey(batchID, "total")).Int64()
	if errors.Is(err, redis.Nil) {
		return snap, fmt.Errorf("%w: %s", ErrBatchNotFound, batchID)
	}
	if err != nil {
		return snap, fmt.Errorf("read batch %s: %w", batchID, err)
	}
	snap.Total = total

	for field, dst := range map[string]*int64{
		"generated": &snap.Generated,
		"sent":      &snap.Sent,
		"failed":    &snap.Failed,
	} {
		n, err := p.client.Get(ctx, batchKey(batchID, field)).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return snap, fmt.Errorf("read batch %s %s: %w", batchID, field, err)
		}
		*dst = n
	}

	raw, err := p.client.LRange(ctx, batchKey(batchID, "results"), 0, -1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return snap, fmt.Errorf("read batch %s results: %w", batchID, err)
	}
	for _, entry := range raw {
		var result FailureResult
		if err := json.Unmarshal([]byte(entry), &result); err != nil {
			// A mangled list entry still counts as a failure; keep a
			// placeholder so results never come up short of the counter.
			result = FailureResult{
				Reason: fmt.Sprintf("unreadable failure record: %v", err),
				Code:   errcode.SystemError,
			}
		}
		snap.Results = append(snap.Results, result)
	}

	return snap, nil
}
