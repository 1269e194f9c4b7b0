// Package queue implements the Redis-list job broker shared by the marker
// pipeline (C4) and the scheduler (C5), generalized from the teacher's
// fixed-queue design (QueueRecordings/QueueEmails/QueueAnalytics) into one
// generic JobKind envelope over three named queues plus a DLQ.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// QueueMarkers carries marker-compile jobs (C4).
	QueueMarkers = "worker:markers"
	// QueueNotifications carries outbound notification-dispatch jobs.
	QueueNotifications = "worker:notifications"
	// QueueDefault carries everything else (storage usage recompute, etc).
	QueueDefault = "worker:default"
	// QueueDLQ is the dead-letter queue for jobs that exhausted MaxRetries.
	QueueDLQ = "worker:dlq"

	// MaxRetries is the number of attempts before a job moves to the DLQ.
	MaxRetries = 3
	// RetryBackoff is the delay a consumer should wait before reprocessing
	// a retried job; enforced by the consumer, not the queue itself.
	RetryBackoff = 10 * time.Second
)

// JobKind identifies the job payload shape.
type JobKind string

const (
	JobKindCompileMarker  JobKind = "compile_marker"
	JobKindDispatchEmail  JobKind = "dispatch_email"
	JobKindRecomputeUsage JobKind = "recompute_storage_usage"

	// The three C5 scheduler sweeps: each ticker tick enqueues one trigger
	// job rather than querying the database on the ticker goroutine, so a
	// slow or failed sweep is retried like any other job instead of
	// blocking the next tick.
	JobKindCheckExpiringProjects JobKind = "check_expiring_projects"
	JobKindDeactivateExpired     JobKind = "deactivate_expired"
	JobKindRotateVideos          JobKind = "rotate_videos"
)

// CompileMarkerPayload is the payload for JobKindCompileMarker.
type CompileMarkerPayload struct {
	ARContentID int64     `json:"ar_content_id"`
	UniqueID    uuid.UUID `json:"unique_id"`
	ImagePath   string    `json:"image_path"`
}

// DispatchEmailPayload is the payload for JobKindDispatchEmail.
type DispatchEmailPayload struct {
	NotificationID int64  `json:"notification_id"`
	RecipientEmail string `json:"recipient_email"`
	Subject        string `json:"subject"`
	BodyText       string `json:"body_text"`
}

// RecomputeUsagePayload is the payload for JobKindRecomputeUsage.
type RecomputeUsagePayload struct {
	CompanyID int64 `json:"company_id"`
}

// SweepTriggerPayload is the (empty) payload for the three C5 sweep job
// kinds: the trigger itself carries no data, the list of rows to act on is
// queried by the dispatcher when the job runs, not by the scheduler.
type SweepTriggerPayload struct{}

// Job is the generic envelope pushed onto every queue.
type Job struct {
	ID         string          `json:"id"`
	Kind       JobKind         `json:"job_kind"`
	Payload    json.RawMessage `json:"payload"`
	Attempt    int             `json:"attempt"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// queueFor maps a JobKind to the Redis list it belongs on.
func queueFor(kind JobKind) string {
	switch kind {
	case JobKindCompileMarker:
		return QueueMarkers
	case JobKindDispatchEmail:
		return QueueNotifications
	case JobKindCheckExpiringProjects, JobKindDeactivateExpired, JobKindRotateVideos:
		return QueueDefault
	default:
		return QueueDefault
	}
}

// Queue enqueues and dequeues jobs via Redis lists (RPush/BLPop).
type Queue struct {
	client *redis.Client
	logger *zap.Logger
}

// NewQueue creates a new Redis-backed job queue.
func NewQueue(client *redis.Client, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{client: client, logger: logger}
}

// Enqueue marshals payload into a Job of kind and pushes it onto the
// matching queue.
func (q *Queue) Enqueue(ctx context.Context, kind JobKind, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	job := Job{
		ID:         uuid.New().String(),
		Kind:       kind,
		Payload:    body,
		EnqueuedAt: time.Now(),
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	queueName := queueFor(kind)
	if err := q.client.RPush(ctx, queueName, raw).Err(); err != nil {
		return fmt.Errorf("rpush %s: %w", queueName, err)
	}
	q.logger.Debug("enqueued job", zap.String("job_id", job.ID), zap.String("kind", string(kind)), zap.String("queue", queueName))
	return nil
}

// Dequeue blocks on all three queues (markers, notifications, default) and
// returns the first job to arrive along with the queue it came from.
func (q *Queue) Dequeue(ctx context.Context) (*Job, string, error) {
	result, err := q.client.BLPop(ctx, 0, QueueMarkers, QueueNotifications, QueueDefault).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, "", nil
		}
		return nil, "", err
	}
	if len(result) < 2 {
		return nil, "", nil
	}
	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		q.logger.Warn("invalid job payload", zap.String("raw", result[1]), zap.Error(err))
		return nil, "", nil
	}
	return &job, result[0], nil
}

// Retry re-enqueues job with an incremented attempt count onto its
// originating queue. Once Attempt reaches MaxRetries it is pushed to the
// DLQ instead.
func (q *Queue) Retry(ctx context.Context, job *Job, originQueue string) error {
	job.Attempt++
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if job.Attempt >= MaxRetries {
		if err := q.client.RPush(ctx, QueueDLQ, raw).Err(); err != nil {
			q.logger.Error("dlq push failed", zap.Error(err), zap.String("job_id", job.ID))
			return err
		}
		q.logger.Warn("job moved to DLQ", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
		return nil
	}
	if err := q.client.RPush(ctx, originQueue, raw).Err(); err != nil {
		return err
	}
	q.logger.Info("job retried", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
	return nil
}
