package pdf

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/tapu-processor/pkg/logger"
)

const (
	bodyStream      = "BT /F1 12 Tf 10 10 Td (keep) Tj ET"
	watermarkStream = "BT /F9 108.9 Tf 50 50 Td (TAPU) Tj ET"
)

// pagePDF builds a one-page document whose page draws the given content
// streams in order.
func pagePDF(streams ...string) []byte {
	var refs bytes.Buffer
	for i := range streams {
		fmt.Fprintf(&refs, "%d 0 R ", i+5)
	}
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] "+
			"/Resources << /Font << /F1 4 0 R /F9 4 0 R >> >> /Contents [%s] >>", refs.String()),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
	}
	for _, s := range streams {
		objects = append(objects, fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(s), s))
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
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

// contentStreams returns the decoded content streams of page 1 of path.
func contentStreams(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	pdfCtx, err := api.ReadValidateAndOptimize(f, model.NewDefaultConfiguration())
	require.NoError(t, err)
	pageDict, _, _, err := pdfCtx.PageDict(1, false)
	require.NoError(t, err)

	obj, found := pageDict.Find("Contents")
	require.True(t, found)
	if ref, ok := obj.(types.IndirectRef); ok {
		obj, err = pdfCtx.Dereference(ref)
		require.NoError(t, err)
	}
	arr, ok := obj.(types.Array)
	require.True(t, ok, "contents is %T", obj)

	var out []string
	for _, ref := range indirectRefs(arr) {
		entry, found := pdfCtx.FindTableEntryForIndRef(&ref)
		require.True(t, found)
		sd, ok := entry.Object.(types.StreamDict)
		require.True(t, ok)
		require.NoError(t, sd.Decode())
		out = append(out, string(sd.Content))
	}
	return out
}

func TestCleanFile_BlanksWatermarkStream(t *testing.T) {
	c := NewCleaner(NewScrubber(), logger.NewTestLogger())
	dir := t.TempDir()
	in := filepath.Join(dir, "deed.pdf")
	out := filepath.Join(dir, "clean.pdf")
	require.NoError(t, os.WriteFile(in, pagePDF(bodyStream, watermarkStream), 0o644))

	changed, err := c.CleanFile(context.Background(), in, out)
	require.NoError(t, err)
	assert.Equal(t, 1, changed)

	streams := contentStreams(t, out)
	require.Len(t, streams, 2)
	assert.Equal(t, bodyStream, streams[0])
	assert.NotContains(t, streams[1], "(TAPU)")
	assert.Equal(t, "BT /F9 108.9 Tf 50 50 Td () Tj ET", streams[1])
}

func TestCleanFile_NoWatermark(t *testing.T) {
	c := NewCleaner(NewScrubber(), logger.NewTestLogger())
	dir := t.TempDir()
	in := filepath.Join(dir, "deed.pdf")
	out := filepath.Join(dir, "clean.pdf")
	require.NoError(t, os.WriteFile(in, pagePDF(bodyStream), 0o644))

	changed, err := c.CleanFile(context.Background(), in, out)
	require.NoError(t, err)
	assert.Zero(t, changed)
	assert.Equal(t, []string{bodyStream}, contentStreams(t, out))
}

func TestCleanFile_Errors(t *testing.T) {
	c := NewCleaner(NewScrubber(), logger.NewTestLogger())
	dir := t.TempDir()
	out := filepath.Join(dir, "out.pdf")

	_, err := c.CleanFile(context.Background(), filepath.Join(dir, "missing.pdf"), out)
	assert.Error(t, err)

	garbage := filepath.Join(dir, "garbage.pdf")
	require.NoError(t, os.WriteFile(garbage, []byte("not a pdf at all"), 0o644))
	_, err = c.CleanFile(context.Background(), garbage, out)
	assert.Error(t, err)
	assert.NoFileExists(t, out)
}

func TestIndirectRefs(t *testing.T) {
	arr := types.Array{
		*types.NewIndirectRef(4, 0),
		types.Integer(7),
		*types.NewIndirectRef(9, 0),
	}

	refs := indirectRefs(arr)
	require.Len(t, refs, 2)
	assert.Equal(t, 4, refs[0].ObjectNumber.Value())
	assert.Equal(t, 9, refs[1].ObjectNumber.Value())
}
