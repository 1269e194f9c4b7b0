// Package worker hosts the background job dispatcher: it dequeues from
// the markers/notifications/default queues and routes each job to the
// processor for its JobKind, retrying failed jobs with backoff and
// parking exhausted ones on the DLQ. Grounded on
// internal/worker/worker.go's RecordingProcessor.Run loop (dequeue →
// process → retry-with-backoff, repeated until context cancellation).
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/smtp"
	"time"

	"go.uber.org/zap"

	"github.com/fegerV/arplatform/config"
	"github.com/fegerV/arplatform/internal/companies"
	"github.com/fegerV/arplatform/internal/marker"
	"github.com/fegerV/arplatform/internal/notifications"
	"github.com/fegerV/arplatform/internal/projects"
	"github.com/fegerV/arplatform/internal/rotation"
	"github.com/fegerV/arplatform/pkg/queue"
)

// Dispatcher routes dequeued jobs to their kind-specific processor.
type Dispatcher struct {
	queue     *queue.Queue
	marker    *marker.Processor
	company   *companies.Repository
	provider  marker.ProviderResolver
	email     config.EmailConfig
	projects  *projects.Repository
	rotations *rotation.Repository
	notifier  *notifications.Repository
	logger    *zap.Logger
}

// NewDispatcher builds a job Dispatcher. projectsRepo, rotationsRepo, and
// notifier back the C5 scheduler sweeps (JobKindCheckExpiringProjects,
// JobKindDeactivateExpired, JobKindRotateVideos): the scheduler only
// enqueues the trigger, the dispatcher does the actual database work when
// the job is dequeued.
func NewDispatcher(q *queue.Queue, markerProc *marker.Processor, companyRepo *companies.Repository,
	provider marker.ProviderResolver, email config.EmailConfig,
	projectsRepo *projects.Repository, rotationsRepo *rotation.Repository, notifier *notifications.Repository,
	logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		queue: q, marker: markerProc, company: companyRepo, provider: provider, email: email,
		projects: projectsRepo, rotations: rotationsRepo, notifier: notifier,
		logger: logger,
	}
}

// Run drains the queue until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("worker dispatcher stopping")
			return
		default:
		}

		job, originQueue, err := d.queue.Dequeue(ctx)
		if err != nil {
			d.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		d.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("kind", string(job.Kind)))
		if err := d.process(ctx, job); err != nil {
			d.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if job.Kind == queue.JobKindCompileMarker && job.Attempt+1 >= queue.MaxRetries {
				d.failMarkerPermanently(ctx, job, err)
			}
			if reErr := d.queue.Retry(ctx, job, originQueue); reErr != nil {
				d.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(marker.BackoffFor(queue.RetryBackoff, job.Attempt, 5*time.Minute))
			continue
		}
	}
}

func (d *Dispatcher) process(ctx context.Context, job *queue.Job) error {
	switch job.Kind {
	case queue.JobKindCompileMarker:
		return d.marker.Process(ctx, job)
	case queue.JobKindDispatchEmail:
		return d.dispatchEmail(ctx, job)
	case queue.JobKindRecomputeUsage:
		return d.recomputeUsage(ctx, job)
	case queue.JobKindCheckExpiringProjects:
		return d.checkExpiringProjects(ctx)
	case queue.JobKindDeactivateExpired:
		return d.deactivateExpired(ctx)
	case queue.JobKindRotateVideos:
		return d.rotateVideos(ctx)
	default:
		return fmt.Errorf("unknown job kind: %s", job.Kind)
	}
}

func (d *Dispatcher) failMarkerPermanently(ctx context.Context, job *queue.Job, cause error) {
	var payload queue.CompileMarkerPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return
	}
	d.marker.FailPermanently(ctx, payload.ARContentID, cause)
}

// dispatchEmail sends a Notification's text over SMTP. No library in the
// source corpus touches outbound email beyond an unused SMTP config
// struct, so this uses net/smtp directly (see DESIGN.md).
func (d *Dispatcher) dispatchEmail(ctx context.Context, job *queue.Job) error {
	var payload queue.DispatchEmailPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	if d.email.SMTPHost == "" {
		d.logger.Debug("smtp not configured, dropping email job", zap.String("job_id", job.ID))
		return nil
	}
	addr := fmt.Sprintf("%s:%d", d.email.SMTPHost, d.email.SMTPPort)
	var auth smtp.Auth
	if d.email.SMTPUser != "" {
		auth = smtp.PlainAuth("", d.email.SMTPUser, d.email.SMTPPass, d.email.SMTPHost)
	}
	msg := fmt.Sprintf("From: %s <%s>\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		d.email.FromName, d.email.FromAddress, payload.RecipientEmail, payload.Subject, payload.BodyText)
	if err := smtp.SendMail(addr, auth, d.email.FromAddress, []string{payload.RecipientEmail}, []byte(msg)); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

// recomputeUsage asks the company's storage provider for current usage and
// updates the best-effort storage_used_bytes counter (I5).
func (d *Dispatcher) recomputeUsage(ctx context.Context, job *queue.Job) error {
	var payload queue.RecomputeUsagePayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	company, err := d.company.Get(ctx, payload.CompanyID)
	if err != nil {
		return fmt.Errorf("load company: %w", err)
	}
	prov, err := d.provider(ctx, company.ID)
	if err != nil {
		return fmt.Errorf("resolve storage provider: %w", err)
	}
	usage, err := prov.Usage(ctx, company.StoragePath)
	if err != nil {
		return fmt.Errorf("query usage: %w", err)
	}
	return d.company.UpdateStorageUsage(ctx, company.ID, usage.UsedBytes)
}
