package job

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"

	"github.com/feichai0017/tapu-processor/internal/agent/document/table"
	"github.com/feichai0017/tapu-processor/internal/models"
	"github.com/feichai0017/tapu-processor/internal/service/record"
	"github.com/feichai0017/tapu-processor/pkg/converters"
	"github.com/feichai0017/tapu-processor/pkg/logger"
	"github.com/feichai0017/tapu-processor/pkg/queue"
	"github.com/feichai0017/tapu-processor/pkg/storage"
)

var (
	ErrNoFiles       = errors.New("no files submitted")
	ErrInvalidFormat = errors.New("invalid output format")
	ErrNoTables      = errors.New("no tables extracted")
)

const msgNoRecords = "No data extracted from any PDF"

// Cleaner removes watermarks from in and writes the result to out.
type Cleaner interface {
	CleanFile(ctx context.Context, in, out string) (int, error)
}

// Assembler turns the tables of one document into records.
type Assembler interface {
	Assemble(source string, tables []models.TableGrid) record.Outcome
}

// Submission is one uploaded batch.
type Submission struct {
	Paths        []string
	Format       models.OutputFormat
	DownloadName string
	// UploadDir is removed with the inputs once the job ends.
	UploadDir string
}

type Options struct {
	WorkDir           string
	DownloadURLPrefix string
}

type Orchestrator struct {
	registry  *Registry
	cleaner   Cleaner
	extractor table.Extractor
	assembler Assembler
	writer    converters.Writer
	storage   storage.Storage
	scheduler queue.Scheduler
	snapshots queue.SnapshotStore
	logger    logger.Logger
	opts      Options
}

type Dependencies struct {
	Registry  *Registry
	Cleaner   Cleaner
	Extractor table.Extractor
	Assembler Assembler
	Writer    converters.Writer
	Storage   storage.Storage
	Scheduler queue.Scheduler
	Snapshots queue.SnapshotStore
}

// NewOrchestrator wires the pipeline. A nil Cleaner disables watermark
// removal; nil Scheduler and Snapshots fall back to no-ops.
func NewOrchestrator(deps Dependencies, opts Options, log logger.Logger) *Orchestrator {
	if deps.Scheduler == nil {
		deps.Scheduler = queue.NopScheduler{}
	}
	if deps.Snapshots == nil {
		deps.Snapshots = queue.NopSnapshotStore{}
	}
	if opts.WorkDir == "" {
		opts.WorkDir = os.TempDir()
	}
	return &Orchestrator{
		registry:  deps.Registry,
		cleaner:   deps.Cleaner,
		extractor: deps.Extractor,
		assembler: deps.Assembler,
		writer:    deps.Writer,
		storage:   deps.Storage,
		scheduler: deps.Scheduler,
		snapshots: deps.Snapshots,
		logger:    log.Named("orchestrator"),
		opts:      opts,
	}
}

func (o *Orchestrator) Registry() *Registry {
	return o.registry
}

func (o *Orchestrator) Get(id string) (models.Job, bool) {
	return o.registry.Get(id)
}

// Attach claims the progress stream of job id.
func (o *Orchestrator) Attach(id string) (*Stream, error) {
	return o.registry.Attach(id)
}

// DownloadURL is where the output of job id is served.
func DownloadURL(prefix, id string) string {
	return fmt.Sprintf("%s/%s/download", strings.TrimSuffix(prefix, "/"), id)
}

// Submit registers the batch and starts processing it in the background.
// The worker outlives ctx's cancellation and cannot be stopped.
func (o *Orchestrator) Submit(ctx context.Context, sub Submission) (models.Job, error) {
	if len(sub.Paths) == 0 {
		return models.Job{}, ErrNoFiles
	}
	if _, ok := models.ParseOutputFormat(string(sub.Format)); !ok {
		return models.Job{}, fmt.Errorf("%w: %q", ErrInvalidFormat, sub.Format)
	}
	if sub.DownloadName == "" {
		sub.DownloadName = DownloadName(sub.Paths, sub.Format)
	}

	names := make([]string, len(sub.Paths))
	for i, p := range sub.Paths {
		names[i] = filepath.Base(p)
	}
	j := o.registry.Create(names, sub.Format, sub.DownloadName)
	j = o.publish(ctx, j.ID, models.ProgressEvent{
		Kind:    models.EventQueued,
		Message: fmt.Sprintf("Job queued with %d PDF file(s)", len(sub.Paths)),
	})

	o.logger.Info("Job queued",
		logger.String("jobId", j.ID),
		logger.Int("files", len(sub.Paths)),
		logger.String("format", string(sub.Format)),
	)

	go o.run(context.WithoutCancel(ctx), j.ID, sub)
	return j, nil
}

// DownloadName is the file stem for a single upload, otherwise processed_<n>_files.
func DownloadName(paths []string, format models.OutputFormat) string {
	base := fmt.Sprintf("processed_%d_files", len(paths))
	if len(paths) == 1 {
		name := filepath.Base(paths[0])
		base = strings.TrimSuffix(name, filepath.Ext(name))
	}
	return base + "." + format.Extension()
}

func (o *Orchestrator) run(ctx context.Context, id string, sub Submission) {
	log := o.logger.With(logger.String("jobId", id))
	defer o.removeInputs(sub, log)
	defer func() {
		if r := recover(); r != nil {
			log.Error("Job panicked",
				logger.Any("panic", r),
				logger.String("stack", string(debug.Stack())),
			)
			if j, ok := o.registry.Get(id); ok && j.Status == models.StatusCompleted {
				o.finish(ctx, id, sub)
				return
			}
			o.publish(ctx, id, models.ProgressEvent{
				Kind:    models.EventError,
				Message: fmt.Sprintf("Unexpected error: %v", r),
			})
		}
	}()

	total := len(sub.Paths)
	o.publish(ctx, id, models.ProgressEvent{
		Kind:    models.EventStart,
		Total:   total,
		Message: fmt.Sprintf("Processing %d PDF file(s)", total),
	})

	scratch, err := os.MkdirTemp(o.opts.WorkDir, "job-"+id+"-")
	if err != nil {
		o.fail(ctx, id, log, "Failed to prepare work directory", err)
		return
	}
	defer os.RemoveAll(scratch)

	var batch record.Batch
	for i, path := range sub.Paths {
		outcome := o.processDocument(ctx, i, path, scratch, log)
		status := models.DocumentFailed
		if batch.Add(outcome) {
			status = models.DocumentProcessed
		}

		current := i + 1
		percent := current * 100 / total
		o.publish(ctx, id, models.ProgressEvent{
			Kind:    models.EventProgress,
			Current: current,
			Total:   total,
			Percent: percent,
			Status:  status,
			File:    outcome.Source,
			Message: fmt.Sprintf("Processing PDFs: %d/%d file(s) [%d%%] (%s)", current, total, percent, status),
		})
	}

	if batch.Empty() {
		log.Warn("No records produced", logger.Int("files", total))
		o.publish(ctx, id, models.ProgressEvent{Kind: models.EventError, Message: msgNoRecords})
		return
	}

	o.publish(ctx, id, models.ProgressEvent{
		Kind:      models.EventComplete,
		Processed: batch.Processed(),
		Failures:  batch.Failures(),
		Message:   fmt.Sprintf("Processed %d PDF file(s) with %d failure(s)", batch.Processed(), batch.Failures()),
	})

	key, err := o.export(ctx, id, sub.Format, batch.Records(), scratch)
	if err != nil {
		o.fail(ctx, id, log, "Failed to write output", err)
		return
	}
	o.publish(ctx, id, models.ProgressEvent{
		Kind:       models.EventOutputReady,
		OutputName: key,
		Message:    fmt.Sprintf("Output file generated: %s", filepath.Base(key)),
	})

	if err := o.scheduler.ScheduleExpiry(ctx, id, key); err != nil {
		log.Warn("Failed to schedule output expiry", logger.String("key", key), logger.Error(err))
	}

	o.finish(ctx, id, sub)
	log.Info("Job finished",
		logger.Int("records", len(batch.Records())),
		logger.Int("processed", batch.Processed()),
		logger.Int("failures", batch.Failures()),
	)
}

// finish announces the download once the output exists.
func (o *Orchestrator) finish(ctx context.Context, id string, sub Submission) {
	o.publish(ctx, id, models.ProgressEvent{
		Kind:         models.EventFinished,
		Message:      fmt.Sprintf("Successfully processed %d PDFs", len(sub.Paths)),
		DownloadURL:  DownloadURL(o.opts.DownloadURLPrefix, id),
		DownloadName: sub.DownloadName,
	})
}

func (o *Orchestrator) processDocument(ctx context.Context, index int, path, scratch string, log logger.Logger) record.Outcome {
	source := filepath.Base(path)
	input := path

	if o.cleaner != nil {
		cleaned := filepath.Join(scratch, fmt.Sprintf("%03d-%s", index, source))
		if err := o.clean(ctx, path, cleaned); err != nil {
			log.Warn("Watermark removal failed, using original",
				logger.String("file", source),
				logger.Error(err),
			)
		} else {
			input = cleaned
		}
	}

	tables := o.extractor.Extract(ctx, input)
	if len(tables) == 0 {
		log.Error("No tables extracted", logger.String("file", source))
		return record.Outcome{Source: source, Err: ErrNoTables}
	}
	return o.assembler.Assemble(source, tables)
}

// clean runs the cleaner, turning a panic on a malformed document into an error.
func (o *Orchestrator) clean(ctx context.Context, in, out string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("watermark removal panicked: %v", r)
		}
	}()
	_, err = o.cleaner.CleanFile(ctx, in, out)
	return err
}

func (o *Orchestrator) export(ctx context.Context, id string, format models.OutputFormat, records []models.RestrictionRecord, scratch string) (string, error) {
	path := filepath.Join(scratch, id+"."+format.Extension())
	if err := o.writer.Write(records, path, format); err != nil {
		return "", err
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open output: %w", err)
	}
	defer f.Close()

	return o.storage.Store(ctx, f, storage.OutputKey(id, format.Extension()))
}

func (o *Orchestrator) fail(ctx context.Context, id string, log logger.Logger, msg string, err error) {
	log.Error(msg, logger.Error(err))
	o.publish(ctx, id, models.ProgressEvent{
		Kind:    models.EventError,
		Message: fmt.Sprintf("%s: %v", msg, err),
	})
}

func (o *Orchestrator) publish(ctx context.Context, id string, ev models.ProgressEvent) models.Job {
	j, err := o.registry.Publish(id, ev)
	if err != nil {
		o.logger.Error("Failed to publish event",
			logger.String("jobId", id),
			logger.String("event", string(ev.Kind)),
			logger.Error(err),
		)
		return j
	}
	if err := o.snapshots.Save(ctx, &j); err != nil {
		o.logger.Warn("Failed to save job snapshot",
			logger.String("jobId", id),
			logger.Error(err),
		)
	}
	return j
}

func (o *Orchestrator) removeInputs(sub Submission, log logger.Logger) {
	for _, p := range sub.Paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Error("Error deleting file", logger.String("file", p), logger.Error(err))
		}
	}
	if sub.UploadDir != "" {
		if err := os.RemoveAll(sub.UploadDir); err != nil {
			log.Error("Error deleting upload directory", logger.String("dir", sub.UploadDir), logger.Error(err))
		}
	}
}
