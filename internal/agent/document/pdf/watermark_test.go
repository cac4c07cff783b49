package pdf

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScrub_NoMatchingSizeIsIdentity(t *testing.T) {
	s := NewScrubber()

	streams := []string{
		"",
		"q 1 0 0 1 0 0 cm Q",
		"BT /F1 12 Tf 10 10 Td (hello) Tj ET",
		"BT /F2 108.8 Tf (near) Tj [(a) 2 (b)] TJ ET",
	}
	for _, in := range streams {
		assert.Equal(t, in, string(s.Scrub([]byte(in))))
	}
}

func TestScrub_BlanksMatchingSegment(t *testing.T) {
	s := NewScrubber()

	in := "BT /F1 12 Tf (keep) Tj ET BT /F9 108.9 Tf 0.5 g 1 0 0 1 50 50 Tm (TAPU) Tj [(W) -20 (M)] TJ ET BT /F1 12 Tf (after) Tj ET"
	want := "BT /F1 12 Tf (keep) Tj ET BT /F9 108.9 Tf 0.5 g 1 0 0 1 50 50 Tm () Tj [] TJ ET BT /F1 12 Tf (after) Tj ET"

	assert.Equal(t, want, string(s.Scrub([]byte(in))))
}

func TestScrub_Tolerance(t *testing.T) {
	s := NewScrubber()

	assert.Equal(t, "/F1 108.94 Tf () Tj", string(s.Scrub([]byte("/F1 108.94 Tf (x) Tj"))))
	assert.Equal(t, "/F1 108.86 Tf () Tj", string(s.Scrub([]byte("/F1 108.86 Tf (x) Tj"))))
	assert.Equal(t, "/F1 109 Tf (x) Tj", string(s.Scrub([]byte("/F1 109 Tf (x) Tj"))))
}

func TestScrub_PreservesPrefixAndEscapes(t *testing.T) {
	s := NewScrubber()

	in := "(before) Tj /F1 108.9 Tf (a\\) b) Tj\n[(x)]TJ"
	want := "(before) Tj /F1 108.9 Tf () Tj\n[] TJ"

	assert.Equal(t, want, string(s.Scrub([]byte(in))))
}

func TestScrub_CustomTarget(t *testing.T) {
	s := Scrubber{TargetSize: 48, Tolerance: 0}

	assert.Equal(t, "/F1 48 Tf () Tj /F1 48.5 Tf (y) Tj", string(s.Scrub([]byte("/F1 48 Tf (x) Tj /F1 48.5 Tf (y) Tj"))))
}

func TestScrub_DoesNotModifyInput(t *testing.T) {
	in := []byte("/F1 108.9 Tf (x) Tj")
	_ = NewScrubber().Scrub(in)
	assert.Equal(t, "/F1 108.9 Tf (x) Tj", string(in))
}

func TestScrub_KeepsOperatorsBetweenArrays(t *testing.T) {
	s := NewScrubber()

	in := "BT /F9 108.9 Tf [3 2] 0 d 1 0 0 1 50 50 Tm [(W)] TJ ET"
	want := "BT /F9 108.9 Tf [3 2] 0 d 1 0 0 1 50 50 Tm [] TJ ET"
	assert.Equal(t, want, string(s.Scrub([]byte(in))))

	in = "/F9 108.9 Tf [(a]b) -20 (c\\)d)] TJ (x) 2 Tz [0 1] 0 d (y) Tj"
	want = "/F9 108.9 Tf [] TJ (x) 2 Tz [0 1] 0 d () Tj"
	assert.Equal(t, want, string(s.Scrub([]byte(in))))
}

func TestScrub_NonTextBytesUnchanged(t *testing.T) {
	s := NewScrubber()

	in := "q [6 3] 0 d 2 w BT /F9 108.9 Tf 12 TL 1 0 0 1 10 700 Td [(WATER) 120 (MARK)] TJ T* (COPY) Tj ET Q"
	out := string(s.Scrub([]byte(in)))

	for _, op := range []string{"q [6 3] 0 d 2 w BT", "12 TL 1 0 0 1 10 700 Td", "T*", "ET Q"} {
		assert.Contains(t, out, op)
	}
	assert.NotContains(t, out, "WATER")
	assert.NotContains(t, out, "COPY")
}
