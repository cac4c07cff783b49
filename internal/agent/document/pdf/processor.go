// Package pdf reads and rewrites registry PDFs: page inspection for uploads
// and watermark removal ahead of grid extraction.
package pdf

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/ledongthuc/pdf"
)

const MimeType = "application/pdf"

var (
	ErrUnreadable = errors.New("pdf is unreadable")
	ErrNoPages    = errors.New("pdf has no pages")
)

// Metadata describes an uploaded PDF.
type Metadata struct {
	Pages  int
	Title  string
	Author string
	Size   int64
	Hash   string
}

// CanProcess reports whether mimeType names a PDF.
func CanProcess(mimeType string) bool {
	return mimeType == MimeType
}

// Inspect parses the cross-reference structure of r and returns its page
// count and document info. A document without pages is rejected.
func Inspect(r io.ReaderAt, size int64) (meta Metadata, err error) {
	// the reader panics on some malformed trailers
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %v", ErrUnreadable, rec)
		}
	}()

	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return Metadata{}, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}

	hash, err := digest(io.NewSectionReader(r, 0, size))
	if err != nil {
		return Metadata{}, err
	}

	meta = Metadata{
		Pages: reader.NumPage(),
		Size:  size,
		Hash:  hash,
	}
	if meta.Pages == 0 {
		return meta, ErrNoPages
	}

	trailer := reader.Trailer()
	if !trailer.IsNull() {
		info := trailer.Key("Info")
		if !info.IsNull() {
			if title := info.Key("Title"); !title.IsNull() {
				meta.Title = title.Text()
			}
			if author := info.Key("Author"); !author.IsNull() {
				meta.Author = author.Text()
			}
		}
	}

	return meta, nil
}

func digest(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("hash pdf: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
