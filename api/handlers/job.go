package handlers

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/tapu-processor/internal/models"
	"github.com/feichai0017/tapu-processor/internal/service/job"
	"github.com/feichai0017/tapu-processor/internal/utils/validator"
	"github.com/feichai0017/tapu-processor/pkg/logger"
	"github.com/feichai0017/tapu-processor/pkg/queue"
	"github.com/feichai0017/tapu-processor/pkg/storage"
)

const uploadField = "pdf_files"

// JobService runs jobs and exposes their progress streams.
type JobService interface {
	Submit(ctx context.Context, sub job.Submission) (models.Job, error)
	Get(id string) (models.Job, bool)
	Attach(id string) (*job.Stream, error)
}

type JobHandler struct {
	service        JobService
	validator      *validator.DocumentValidator
	storage        storage.Storage
	snapshots      queue.SnapshotStore
	uploadDir      string
	downloadPrefix string
	logger         logger.Logger
}

type SubmitResponse struct {
	Success bool     `json:"success"`
	JobID   string   `json:"job_id"`
	Skipped []string `json:"skipped,omitempty"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message"`
}

func NewJobHandler(
	service JobService,
	v *validator.DocumentValidator,
	store storage.Storage,
	snapshots queue.SnapshotStore,
	cfg Config,
	log logger.Logger,
) *JobHandler {
	if snapshots == nil {
		snapshots = queue.NopSnapshotStore{}
	}
	return &JobHandler{
		service:        service,
		validator:      v,
		storage:        store,
		snapshots:      snapshots,
		uploadDir:      cfg.UploadDir,
		downloadPrefix: cfg.DownloadURLPrefix,
		logger:         log.Named("api"),
	}
}

// SubmitJob accepts a multipart batch of PDFs and queues it.
func (h *JobHandler) SubmitJob(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		h.handleError(c, http.StatusBadRequest, "Invalid form data", err)
		return
	}

	format, ok := models.ParseOutputFormat(strings.ToLower(c.DefaultPostForm("output_format", string(models.FormatExcel))))
	if !ok {
		h.handleError(c, http.StatusBadRequest,
			fmt.Sprintf("Unsupported output format: %s", c.PostForm("output_format")), nil)
		return
	}

	files := form.File[uploadField]
	results, err := h.validator.ValidateFiles(c.Request.Context(), files)
	switch {
	case errors.Is(err, validator.ErrNoFiles):
		h.handleError(c, http.StatusBadRequest, "No files selected", err)
		return
	case errors.Is(err, validator.ErrTooManyFiles):
		h.handleError(c, http.StatusBadRequest, "Too many files", err)
		return
	case err != nil:
		h.handleError(c, http.StatusInternalServerError, "Failed to validate files", err)
		return
	}
	valid, rejected := validator.Accepted(files, results)
	skipped := make([]string, 0, len(rejected))
	for _, r := range rejected {
		h.logger.Warn("Skipping invalid upload",
			logger.String("file", r.FileInfo.Filename),
			logger.String("reason", r.Message()))
		skipped = append(skipped, r.Message())
	}
	if len(valid) == 0 {
		h.handleError(c, http.StatusBadRequest, "No valid PDF files uploaded", errors.New(strings.Join(skipped, "; ")))
		return
	}

	dir, paths, err := h.saveUploads(c, valid)
	if err != nil {
		h.handleError(c, http.StatusInternalServerError, "Failed to save files", err)
		return
	}

	j, err := h.service.Submit(c.Request.Context(), job.Submission{
		Paths:     paths,
		Format:    format,
		UploadDir: dir,
	})
	if err != nil {
		os.RemoveAll(dir)
		h.handleError(c, http.StatusInternalServerError, "Failed to start job", err)
		return
	}

	c.JSON(http.StatusOK, SubmitResponse{Success: true, JobID: j.ID, Skipped: skipped})
}

// saveUploads writes files into a fresh directory. Clashing names get a
// numeric suffix so no upload overwrites another.
func (h *JobHandler) saveUploads(c *gin.Context, files []*multipart.FileHeader) (string, []string, error) {
	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		return "", nil, err
	}
	dir, err := os.MkdirTemp(h.uploadDir, "upload-")
	if err != nil {
		return "", nil, err
	}

	seen := make(map[string]int)
	paths := make([]string, 0, len(files))
	for _, fh := range files {
		path := filepath.Join(dir, uniqueName(seen, fh.Filename))
		if err := c.SaveUploadedFile(fh, path); err != nil {
			os.RemoveAll(dir)
			return "", nil, fmt.Errorf("save %s: %w", fh.Filename, err)
		}
		paths = append(paths, path)
	}
	return dir, paths, nil
}

func uniqueName(seen map[string]int, filename string) string {
	name := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "upload.pdf"
	}
	key := strings.ToLower(name)
	n := seen[key]
	seen[key] = n + 1
	if n == 0 {
		return name
	}

	ext := filepath.Ext(name)
	candidate := fmt.Sprintf("%s_%d%s", strings.TrimSuffix(name, ext), n, ext)
	// the suffixed name may itself clash with a later upload
	return uniqueName(seen, candidate)
}

// GetJob returns the job snapshot, falling back to the snapshot store for
// jobs this process no longer holds.
func (h *JobHandler) GetJob(c *gin.Context) {
	j, err := h.lookup(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleLookupError(c, err)
		return
	}
	c.JSON(http.StatusOK, j)
}

func (h *JobHandler) lookup(ctx context.Context, id string) (models.Job, error) {
	if j, ok := h.service.Get(id); ok {
		return j, nil
	}
	snap, err := h.snapshots.Load(ctx, id)
	if err != nil {
		return models.Job{}, err
	}
	return *snap, nil
}

func (h *JobHandler) handleLookupError(c *gin.Context, err error) {
	if errors.Is(err, queue.ErrSnapshotNotFound) || errors.Is(err, job.ErrJobNotFound) {
		h.handleError(c, http.StatusNotFound, "Job not found", err)
		return
	}
	h.handleError(c, http.StatusInternalServerError, "Failed to load job", err)
}

// StreamEvents serves the job's progress as server-sent events until a
// terminal event has been sent or the client goes away.
func (h *JobHandler) StreamEvents(c *gin.Context) {
	id := c.Param("id")

	stream, err := h.service.Attach(id)
	switch {
	case errors.Is(err, job.ErrJobNotFound):
		h.handleError(c, http.StatusNotFound, "Job not found", err)
		return
	case errors.Is(err, job.ErrStreamBusy):
		h.handleError(c, http.StatusConflict, "Job progress is already being streamed", err)
		return
	case errors.Is(err, job.ErrStreamClosed):
		// a reconnect after the end only needs the outcome
		j, lookupErr := h.lookup(c.Request.Context(), id)
		if lookupErr != nil {
			h.handleLookupError(c, lookupErr)
			return
		}
		h.startEvents(c, id)
		h.writeEvent(c, h.outcome(j))
		return
	case err != nil:
		h.handleError(c, http.StatusInternalServerError, "Failed to attach to job", err)
		return
	}
	defer stream.Detach()

	h.startEvents(c, id)
	for {
		ev, err := stream.Next(c.Request.Context())
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				h.logger.Debug("Event stream ended", logger.String("jobId", id), logger.Error(err))
			}
			return
		}
		if ev.Kind == models.EventKeepAlive {
			c.Writer.WriteString(": heartbeat\n\n")
			c.Writer.Flush()
			continue
		}
		h.writeEvent(c, ev)
		if ev.Kind.Terminal() {
			return
		}
	}
}

func (h *JobHandler) startEvents(c *gin.Context, id string) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	c.SSEvent("connected", gin.H{"job_id": id})
	c.Writer.Flush()
}

func (h *JobHandler) writeEvent(c *gin.Context, ev models.ProgressEvent) {
	c.SSEvent(string(ev.Kind), ev)
	c.Writer.Flush()
}

// outcome rebuilds the terminal event of a finished job.
func (h *JobHandler) outcome(j models.Job) models.ProgressEvent {
	if j.Status == models.StatusCompleted {
		return models.ProgressEvent{
			Kind:         models.EventFinished,
			Message:      fmt.Sprintf("Successfully processed %d PDFs", j.Total),
			DownloadURL:  job.DownloadURL(h.downloadPrefix, j.ID),
			DownloadName: j.DownloadName,
		}
	}
	return models.ProgressEvent{Kind: models.EventError, Message: j.Error}
}

// DownloadOutput streams the job's output file as an attachment.
func (h *JobHandler) DownloadOutput(c *gin.Context) {
	j, err := h.lookup(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleLookupError(c, err)
		return
	}
	if j.Status != models.StatusCompleted || j.OutputKey == "" {
		h.handleError(c, http.StatusNotFound, "No downloadable file for this job", nil)
		return
	}

	rc, err := h.storage.Get(c.Request.Context(), j.OutputKey)
	if err != nil {
		h.handleError(c, http.StatusNotFound, "Output file not found", err)
		return
	}
	defer rc.Close()

	name := j.DownloadName
	if name == "" {
		name = filepath.Base(j.OutputKey)
	}
	c.DataFromReader(http.StatusOK, -1, j.OutputFormat.ContentType(), rc, map[string]string{
		"Content-Disposition": fmt.Sprintf(`attachment; filename="%s"`, name),
	})
}

// handleError logs and writes a JSON error body.
func (h *JobHandler) handleError(c *gin.Context, status int, message string, err error) {
	fields := []logger.Field{logger.String("path", c.Request.URL.Path), logger.Int("status", status)}
	if err != nil {
		fields = append(fields, logger.Error(err))
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error(message, fields...)
	} else {
		h.logger.Warn(message, fields...)
	}

	response := ErrorResponse{Message: message}
	if err != nil {
		response.Error = err.Error()
	}
	c.JSON(status, response)
}
