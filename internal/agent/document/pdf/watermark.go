package pdf

import (
	"bytes"
	"math"
	"regexp"
	"strconv"
)

const (
	DefaultWatermarkSize      = 108.9
	DefaultWatermarkTolerance = 0.05
)

var (
	fontSizeOp  = regexp.MustCompile(`/[^\s]+?\s+([+-]?\d+(?:\.\d+)?)\s+Tf`)
	// string operands end at the first unescaped ")", array operands at the
	// first "]" outside a string, so neither can run into the next operator
	showTextOp  = regexp.MustCompile(`\((?:\\.|[^\\)])*\)\s*Tj`)
	showArrayOp = regexp.MustCompile(`\[(?:\((?:\\.|[^\\)])*\)|[^\]()])*\]\s*TJ`)
)

// Scrubber blanks text drawn at the watermark font size in a page content stream.
type Scrubber struct {
	TargetSize float64
	Tolerance  float64
}

// NewScrubber returns a Scrubber with the registry watermark defaults.
func NewScrubber() Scrubber {
	return Scrubber{TargetSize: DefaultWatermarkSize, Tolerance: DefaultWatermarkTolerance}
}

// Scrub returns a copy of stream in which every Tj/TJ operator following a
// Tf at the target size has an empty payload. Everything else is copied
// through unchanged, including bytes before the first Tf.
func (s Scrubber) Scrub(stream []byte) []byte {
	matches := fontSizeOp.FindAllSubmatchIndex(stream, -1)
	if len(matches) == 0 {
		return append([]byte(nil), stream...)
	}

	var out bytes.Buffer
	out.Grow(len(stream))
	out.Write(stream[:matches[0][0]])

	for i, m := range matches {
		// m[0]:m[1] is the Tf operator, m[2]:m[3] its size operand.
		out.Write(stream[m[0]:m[1]])

		end := len(stream)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		segment := stream[m[1]:end]

		if s.matches(stream[m[2]:m[3]]) {
			out.Write(blankText(segment))
		} else {
			out.Write(segment)
		}
	}
	return out.Bytes()
}

func (s Scrubber) matches(operand []byte) bool {
	size, err := strconv.ParseFloat(string(operand), 64)
	if err != nil {
		return false
	}
	return math.Abs(size-s.TargetSize) <= s.Tolerance
}

func blankText(segment []byte) []byte {
	segment = showTextOp.ReplaceAllLiteral(segment, []byte("() Tj"))
	return showArrayOp.ReplaceAllLiteral(segment, []byte("[] TJ"))
}
