package validator

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/tapu-processor/pkg/logger"
)

// minimalPDF builds a well-formed document whose page tree reports pages.
func minimalPDF(pages int) []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")

	var kids bytes.Buffer
	for i := 0; i < pages; i++ {
		fmt.Fprintf(&kids, "%d 0 R ", i+3)
	}
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", kids.String(), pages),
	}
	for i := 0; i < pages; i++ {
		objects = append(objects, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>")
	}

	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

type upload struct {
	name string
	data []byte
}

func fileHeaders(t *testing.T, uploads ...upload) []*multipart.FileHeader {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for _, u := range uploads {
		part, err := w.CreateFormFile("pdf_files", u.name)
		require.NoError(t, err)
		_, err = part.Write(u.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest("POST", "/", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(32<<20))
	return req.MultipartForm.File["pdf_files"]
}

func TestValidateFile(t *testing.T) {
	v := NewDocumentValidator(logger.NewTestLogger(), &ValidatorConfig{MaxFileSize: 1 << 20, MaxPageCount: 2})

	tests := []struct {
		name  string
		file  upload
		valid bool
		code  string
	}{
		{"valid", upload{"deed.pdf", minimalPDF(1)}, true, ""},
		{"upper case extension", upload{"DEED.PDF", minimalPDF(2)}, true, ""},
		{"wrong extension", upload{"deed.txt", minimalPDF(1)}, false, CodeInvalidFileType},
		{"empty", upload{"deed.pdf", nil}, false, CodeEmptyFile},
		{"not a pdf", upload{"deed.pdf", []byte("hello world")}, false, CodeInvalidMimeType},
		{"broken pdf", upload{"deed.pdf", []byte("%PDF-1.4\ngarbage")}, false, CodeInvalidPDF},
		{"too many pages", upload{"deed.pdf", minimalPDF(3)}, false, CodeTooManyPages},
		{"too large", upload{"deed.pdf", append(minimalPDF(1), make([]byte, 1<<20)...)}, false, CodeFileTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := v.ValidateFile(fileHeaders(t, tt.file)[0])
			require.NoError(t, err)
			assert.Equal(t, tt.valid, result.IsValid)
			if tt.valid {
				assert.Empty(t, result.Errors)
				assert.NotEmpty(t, result.FileInfo.Hash)
				return
			}
			require.NotEmpty(t, result.Errors)
			assert.Equal(t, tt.code, result.Errors[0].Code)
			assert.Contains(t, result.Message(), result.FileInfo.Filename)
		})
	}
}

func TestValidateFiles(t *testing.T) {
	v := NewDocumentValidator(logger.NewTestLogger(), &ValidatorConfig{MaxFiles: 3, Workers: 2})

	files := fileHeaders(t,
		upload{"a.pdf", minimalPDF(1)},
		upload{"b.txt", []byte("x")},
		upload{"c.pdf", minimalPDF(2)},
	)
	results, err := v.ValidateFiles(context.Background(), files)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "a.pdf", results[0].FileInfo.Filename)
	assert.Equal(t, 2, results[2].FileInfo.Pages)

	valid, rejected := Accepted(files, results)
	require.Len(t, valid, 2)
	assert.Equal(t, "a.pdf", valid[0].Filename)
	assert.Equal(t, "c.pdf", valid[1].Filename)
	require.Len(t, rejected, 1)
	assert.Equal(t, "b.txt", rejected[0].FileInfo.Filename)
}

func TestValidateFiles_Limits(t *testing.T) {
	v := NewDocumentValidator(logger.NewTestLogger(), &ValidatorConfig{MaxFiles: 1})

	_, err := v.ValidateFiles(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoFiles)

	files := fileHeaders(t, upload{"a.pdf", minimalPDF(1)}, upload{"b.pdf", minimalPDF(1)})
	_, err = v.ValidateFiles(context.Background(), files)
	assert.ErrorIs(t, err, ErrTooManyFiles)
}
