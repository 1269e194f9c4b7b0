// Package marker implements C4: the marker-compile job processor. It
// downloads the source image via C1, shells out to the external marker
// compiler, uploads the resulting artifact back through C1, and drives the
// ARContent pending/failed→processing→ready/failed state machine,
// grounded on internal/worker/worker.go's RecordingProcessor
// (download → external step → upload → DB update → retry-on-error loop).
package marker

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/fegerV/arplatform/config"
	"github.com/fegerV/arplatform/internal/companies"
	"github.com/fegerV/arplatform/internal/content"
	"github.com/fegerV/arplatform/internal/models"
	"github.com/fegerV/arplatform/pkg/apierrors"
	"github.com/fegerV/arplatform/pkg/queue"
	"github.com/fegerV/arplatform/pkg/storage"
)

// Notifier raises a Notification row; narrowed to avoid a dependency
// cycle, satisfied by internal/notifications.Repository.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification) error
}

// ProviderResolver resolves the storage.Provider backing a company's
// StorageConnection.
type ProviderResolver func(ctx context.Context, companyID int64) (storage.Provider, error)

// Processor handles JobKindCompileMarker jobs.
type Processor struct {
	content  *content.Repository
	company  *companies.Repository
	provider ProviderResolver
	queue    *queue.Queue
	notifier Notifier
	cfg      config.MarkerConfig
	logger   *zap.Logger
}

// NewProcessor builds a marker Processor.
func NewProcessor(contentRepo *content.Repository, companyRepo *companies.Repository, provider ProviderResolver,
	q *queue.Queue, notifier Notifier, cfg config.MarkerConfig, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{content: contentRepo, company: companyRepo, provider: provider, queue: q, notifier: notifier, cfg: cfg, logger: logger}
}

var featurePointsLine = regexp.MustCompile(`(?i)^FEATURE_POINTS=(\d+)\s*$`)

// Process executes one marker-compile job end to end (spec.md §4.4 steps
// 1-6). The job's attempt count lives on the envelope, not the row: a
// failure here is returned to the caller, which decides retry vs DLQ.
func (p *Processor) Process(ctx context.Context, job *queue.Job) error {
	var payload queue.CompileMarkerPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	ar, err := p.content.GetByID(ctx, payload.ARContentID)
	if err != nil {
		// Row not found is fatal, not retriable.
		p.raiseFatal(ctx, payload.ARContentID, "ar content not found")
		return nil
	}
	// A retried job (Attempt > 0) finds the row still in processing from its
	// earlier attempt and carries on without re-claiming it.
	retrying := job.Attempt > 0 && ar.MarkerStatus == models.MarkerStatusProcessing
	if !retrying && ar.MarkerStatus != models.MarkerStatusPending && ar.MarkerStatus != models.MarkerStatusFailed {
		p.logger.Debug("marker job dropped: not pending/failed", zap.Int64("ar_content_id", ar.ID), zap.String("status", string(ar.MarkerStatus)))
		return nil
	}
	var beginErr error
	if !retrying {
		beginErr = p.content.BeginMarkerProcessing(ctx, ar.ID)
	}
	if err := beginErr; err != nil {
		if apierrors.Is(err, apierrors.KindConflict) {
			p.logger.Debug("marker job dropped: lost CAS race", zap.Int64("ar_content_id", ar.ID))
			return nil
		}
		return err
	}

	company, err := p.company.Get(ctx, ar.CompanyID)
	if err != nil {
		return p.failAttempt(ctx, ar.ID, fmt.Errorf("load company: %w", err))
	}
	prov, err := p.provider(ctx, company.ID)
	if err != nil {
		return p.failAttempt(ctx, ar.ID, fmt.Errorf("resolve storage provider: %w", err))
	}

	workDir, err := os.MkdirTemp(p.cfg.WorkDir, fmt.Sprintf("marker-%d-", ar.ID))
	if err != nil {
		return p.failAttempt(ctx, ar.ID, fmt.Errorf("create scratch dir: %w", err))
	}
	defer os.RemoveAll(workDir)

	srcImage := filepath.Join(workDir, "source"+filepath.Ext(ar.ImagePath))
	if err := prov.Download(ctx, ar.ImagePath, srcImage); err != nil {
		if apierrors.Is(err, apierrors.KindNotFound) {
			p.raiseFatal(ctx, ar.ID, "source image missing from storage")
			return nil
		}
		return p.failAttempt(ctx, ar.ID, fmt.Errorf("download source image: %w", err))
	}

	outPath := filepath.Join(workDir, "output.mind")
	featurePoints, err := p.compile(ctx, srcImage, outPath)
	if err != nil {
		return p.failAttempt(ctx, ar.ID, fmt.Errorf("compile marker: %w", err))
	}

	destKey := fmt.Sprintf("%s/markers/%d.mind", company.StoragePath, ar.ID)
	f, err := os.Open(outPath)
	if err != nil {
		return p.failAttempt(ctx, ar.ID, fmt.Errorf("open compiled artifact: %w", err))
	}
	defer f.Close()
	info, _ := f.Stat()
	url, err := prov.Upload(ctx, destKey, f, info.Size(), "application/octet-stream")
	if err != nil {
		return p.failAttempt(ctx, ar.ID, fmt.Errorf("upload marker artifact: %w", err))
	}

	if err := p.content.CompleteMarkerSuccess(ctx, ar.ID, destKey, url, featurePoints); err != nil {
		return fmt.Errorf("record marker success: %w", err)
	}
	p.logger.Info("marker compiled", zap.Int64("ar_content_id", ar.ID), zap.Int("feature_points", featurePoints))
	return nil
}

// compile invokes the external marker compiler as a subprocess with a
// bounded timeout and parses the feature point count from its stdout.
func (p *Processor) compile(ctx context.Context, srcImage, outPath string) (int, error) {
	timeout := time.Duration(p.cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, p.cfg.CompilerPath, "-i", srcImage, "-o", outPath)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return 0, err
	}
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("start compiler: %w", err)
	}

	featurePoints := 0
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		if m := featurePointsLine.FindStringSubmatch(scanner.Text()); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				featurePoints = n
			}
		}
	}
	if err := cmd.Wait(); err != nil {
		if cctx.Err() == context.DeadlineExceeded {
			return 0, fmt.Errorf("compiler timed out after %s", timeout)
		}
		return 0, fmt.Errorf("compiler exited: %w", err)
	}
	if _, err := os.Stat(outPath); err != nil {
		return 0, fmt.Errorf("compiler produced no output artifact: %w", err)
	}
	return featurePoints, nil
}

// failAttempt logs the retriable failure and returns it for the caller's
// retry/backoff policy; the row stays in processing until retries are
// exhausted (see FailPermanently, called by the dispatcher on final failure).
func (p *Processor) failAttempt(ctx context.Context, arContentID int64, cause error) error {
	p.logger.Warn("marker compile attempt failed", zap.Int64("ar_content_id", arContentID), zap.Error(cause))
	return cause
}

// FailPermanently transitions the row to failed and raises a Notification,
// called by the dispatcher once a job has exhausted queue.MaxRetries.
func (p *Processor) FailPermanently(ctx context.Context, arContentID int64, cause error) {
	if err := p.content.FailMarker(ctx, arContentID); err != nil && !apierrors.Is(err, apierrors.KindConflict) {
		p.logger.Error("mark marker failed error", zap.Int64("ar_content_id", arContentID), zap.Error(err))
	}
	p.raiseFatal(ctx, arContentID, cause.Error())
}

func (p *Processor) raiseFatal(ctx context.Context, arContentID int64, reason string) {
	if p.notifier == nil {
		return
	}
	id := arContentID
	if err := p.notifier.Notify(ctx, models.Notification{
		ARContentID: &id,
		Kind:        models.NotificationMarkerFailed,
		Subject:     "marker generation failed",
		Message:     reason,
	}); err != nil {
		p.logger.Warn("notify marker failure failed", zap.Error(err))
	}
}

// BackoffFor returns the exponential backoff delay for attempt (0-based),
// base*2^attempt, capped at maxDelay.
func BackoffFor(base time.Duration, attempt int, maxDelay time.Duration) time.Duration {
	d := time.Duration(float64(base) * math.Pow(2, float64(attempt)))
	if d > maxDelay || d <= 0 {
		return maxDelay
	}
	return d
}
