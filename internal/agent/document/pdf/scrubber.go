package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/feichai0017/tapu-processor/pkg/logger"
)

var ErrNotStream = errors.New("content object is not a stream")

// Cleaner rewrites the page content streams of a PDF file through a Scrubber.
type Cleaner struct {
	scrubber Scrubber
	logger   logger.Logger
}

func NewCleaner(scrubber Scrubber, log logger.Logger) *Cleaner {
	return &Cleaner{
		scrubber: scrubber,
		logger:   log.Named("watermark"),
	}
}

// CleanFile scrubs every page content stream of in and writes the document to
// out. Only streams whose bytes change are re-encoded. It returns the number
// of rewritten streams.
func (c *Cleaner) CleanFile(ctx context.Context, in, out string) (int, error) {
	f, err := os.Open(in)
	if err != nil {
		return 0, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	pdfCtx, err := api.ReadValidateAndOptimize(f, model.NewDefaultConfiguration())
	if err != nil {
		return 0, fmt.Errorf("read pdf: %w", err)
	}

	changed := 0
	for pageNr := 1; pageNr <= pdfCtx.PageCount; pageNr++ {
		if err := ctx.Err(); err != nil {
			return changed, err
		}
		n, err := c.cleanPage(pdfCtx, pageNr)
		if err != nil {
			return changed, fmt.Errorf("page %d: %w", pageNr, err)
		}
		changed += n
	}

	if err := api.WriteContextFile(pdfCtx, out); err != nil {
		return changed, fmt.Errorf("write pdf: %w", err)
	}

	c.logger.Debug("watermark scrubbed",
		logger.String("file", in),
		logger.Int("pages", pdfCtx.PageCount),
		logger.Int("streams", changed),
	)
	return changed, nil
}

func (c *Cleaner) cleanPage(pdfCtx *model.Context, pageNr int) (int, error) {
	pageDict, _, _, err := pdfCtx.PageDict(pageNr, false)
	if err != nil {
		return 0, err
	}
	if pageDict == nil {
		return 0, nil
	}

	obj, found := pageDict.Find("Contents")
	if !found || obj == nil {
		return 0, nil
	}

	var refs []types.IndirectRef
	switch v := obj.(type) {
	case types.IndirectRef:
		deref, err := pdfCtx.Dereference(v)
		if err != nil {
			return 0, err
		}
		if arr, ok := deref.(types.Array); ok {
			refs = indirectRefs(arr)
		} else {
			refs = []types.IndirectRef{v}
		}
	case types.Array:
		refs = indirectRefs(v)
	default:
		return 0, nil
	}

	changed := 0
	for _, ref := range refs {
		ok, err := c.cleanStream(pdfCtx, ref)
		if err != nil {
			return changed, err
		}
		if ok {
			changed++
		}
	}
	return changed, nil
}

func (c *Cleaner) cleanStream(pdfCtx *model.Context, ref types.IndirectRef) (bool, error) {
	entry, found := pdfCtx.FindTableEntryForIndRef(&ref)
	if !found || entry == nil {
		return false, nil
	}
	sd, ok := entry.Object.(types.StreamDict)
	if !ok {
		return false, fmt.Errorf("object %d: %w", ref.ObjectNumber.Value(), ErrNotStream)
	}

	if err := sd.Decode(); err != nil {
		return false, fmt.Errorf("decode object %d: %w", ref.ObjectNumber.Value(), err)
	}

	scrubbed := c.scrubber.Scrub(sd.Content)
	if bytes.Equal(scrubbed, sd.Content) {
		return false, nil
	}

	sd.Content = scrubbed
	if err := sd.Encode(); err != nil {
		return false, fmt.Errorf("encode object %d: %w", ref.ObjectNumber.Value(), err)
	}
	entry.Object = sd
	return true, nil
}

func indirectRefs(arr types.Array) []types.IndirectRef {
	refs := make([]types.IndirectRef, 0, len(arr))
	for _, o := range arr {
		if ir, ok := o.(types.IndirectRef); ok {
			refs = append(refs, ir)
		}
	}
	return refs
}
