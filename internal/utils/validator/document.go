// Package validator checks uploaded deed PDFs before a job is created.
package validator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/feichai0017/tapu-processor/internal/agent/document/pdf"
	"github.com/feichai0017/tapu-processor/pkg/logger"
)

var (
	ErrNoFiles      = errors.New("no files uploaded")
	ErrTooManyFiles = errors.New("too many files uploaded")
)

const (
	CodeFileTooLarge    = "FILE_TOO_LARGE"
	CodeEmptyFile       = "EMPTY_FILE"
	CodeInvalidFileType = "INVALID_FILE_TYPE"
	CodeInvalidMimeType = "INVALID_MIME_TYPE"
	CodeInvalidPDF      = "INVALID_PDF"
	CodeTooManyPages    = "TOO_MANY_PAGES"
)

var pdfMagic = []byte("%PDF-")

// DocumentValidator validates uploaded PDFs.
type DocumentValidator struct {
	logger logger.Logger
	config *ValidatorConfig
}

// ValidatorConfig limits what an upload may contain. Zero values disable a limit.
type ValidatorConfig struct {
	MaxFileSize  int64
	MaxFiles     int
	MaxPageCount int
	// Workers bounds concurrent file checks.
	Workers int
}

// ValidationResult is the verdict for one file.
type ValidationResult struct {
	IsValid  bool              `json:"isValid"`
	Errors   []ValidationError `json:"errors,omitempty"`
	FileInfo FileInfo          `json:"fileInfo"`
}

type ValidationError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

type FileInfo struct {
	Filename  string `json:"filename"`
	Size      int64  `json:"size"`
	MimeType  string `json:"mimeType"`
	Extension string `json:"extension"`
	Hash      string `json:"hash,omitempty"`
	Pages     int    `json:"pages,omitempty"`
}

// Message joins the messages of every error of r.
func (r *ValidationResult) Message() string {
	msgs := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		msgs[i] = e.Message
	}
	return fmt.Sprintf("%s: %s", r.FileInfo.Filename, strings.Join(msgs, "; "))
}

func (r *ValidationResult) add(code, field, format string, args ...interface{}) {
	r.IsValid = false
	r.Errors = append(r.Errors, ValidationError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Field:   field,
	})
}

func NewDocumentValidator(log logger.Logger, config *ValidatorConfig) *DocumentValidator {
	if config == nil {
		config = &ValidatorConfig{
			MaxFileSize:  50 << 20,
			MaxFiles:     50,
			MaxPageCount: 100,
		}
	}
	if config.Workers <= 0 {
		config.Workers = 4
	}
	return &DocumentValidator{
		logger: log.Named("validator"),
		config: config,
	}
}

// ValidateFile checks one upload. The returned error is for I/O failures; a
// file that is merely invalid is reported through the result.
func (v *DocumentValidator) ValidateFile(file *multipart.FileHeader) (*ValidationResult, error) {
	result := &ValidationResult{
		IsValid: true,
		FileInfo: FileInfo{
			Filename:  filepath.Base(file.Filename),
			Size:      file.Size,
			Extension: strings.ToLower(filepath.Ext(file.Filename)),
		},
	}

	if result.FileInfo.Extension != ".pdf" {
		result.add(CodeInvalidFileType, "extension", "File type %q is not allowed", result.FileInfo.Extension)
		return result, nil
	}
	if file.Size == 0 {
		result.add(CodeEmptyFile, "size", "File is empty")
		return result, nil
	}
	if v.config.MaxFileSize > 0 && file.Size > v.config.MaxFileSize {
		result.add(CodeFileTooLarge, "size", "File size exceeds maximum limit of %d bytes", v.config.MaxFileSize)
		return result, nil
	}

	f, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	head = head[:n]

	result.FileInfo.MimeType = http.DetectContentType(head)
	if !bytes.HasPrefix(head, pdfMagic) || !pdf.CanProcess(result.FileInfo.MimeType) {
		result.add(CodeInvalidMimeType, "mimeType", "Invalid MIME type %s for extension .pdf", result.FileInfo.MimeType)
		return result, nil
	}

	v.validatePDF(f, result)
	return result, nil
}

func (v *DocumentValidator) validatePDF(r io.ReaderAt, result *ValidationResult) {
	meta, err := pdf.Inspect(r, result.FileInfo.Size)
	result.FileInfo.Hash = meta.Hash
	result.FileInfo.Pages = meta.Pages
	if err != nil {
		v.logger.Warn("Rejected unreadable PDF",
			logger.String("file", result.FileInfo.Filename),
			logger.Error(err),
		)
		result.add(CodeInvalidPDF, "content", "PDF cannot be read: %v", err)
		return
	}
	if v.config.MaxPageCount > 0 && meta.Pages > v.config.MaxPageCount {
		result.add(CodeTooManyPages, "pages", "PDF has %d pages, maximum is %d", meta.Pages, v.config.MaxPageCount)
	}
}

// ValidateFiles checks a batch concurrently and returns results in input order.
func (v *DocumentValidator) ValidateFiles(ctx context.Context, files []*multipart.FileHeader) ([]*ValidationResult, error) {
	if len(files) == 0 {
		return nil, ErrNoFiles
	}
	if v.config.MaxFiles > 0 && len(files) > v.config.MaxFiles {
		return nil, fmt.Errorf("%w: %d (maximum %d)", ErrTooManyFiles, len(files), v.config.MaxFiles)
	}

	results := make([]*ValidationResult, len(files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(v.config.Workers)

	for i, file := range files {
		i, file := i, file
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			result, err := v.ValidateFile(file)
			if err != nil {
				return err
			}
			results[i] = result
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Accepted splits a validated batch into the files that passed and the
// results of those that did not, both in input order.
func Accepted(files []*multipart.FileHeader, results []*ValidationResult) ([]*multipart.FileHeader, []*ValidationResult) {
	var valid []*multipart.FileHeader
	var rejected []*ValidationResult
	for i, r := range results {
		if r.IsValid {
			valid = append(valid, files[i])
		} else {
			rejected = append(rejected, r)
		}
	}
	return valid, rejected
}
