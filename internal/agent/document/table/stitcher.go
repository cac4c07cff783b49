// Package table turns extracted table regions into logical rows.
package table

import (
	"github.com/feichai0017/tapu-processor/internal/agent/text"
	"github.com/feichai0017/tapu-processor/internal/models"
)

// Stitcher merges rows that a page break or wrapped cell split in two.
type Stitcher struct {
	normalizer *text.Normalizer
}

func NewStitcher(normalizer *text.Normalizer) *Stitcher {
	return &Stitcher{normalizer: normalizer}
}

// Stitch drops a leading row with a blank first cell, then folds every later
// blank-first row into the previous output row cell by cell. Blank
// continuation cells leave the previous value untouched. The input is not
// modified and the column count is preserved.
func (s *Stitcher) Stitch(rows models.TableGrid) models.TableGrid {
	if len(rows) > 0 && s.blankFirst(rows[0]) {
		rows = rows[1:]
	}

	out := make(models.TableGrid, 0, len(rows))
	for _, row := range rows {
		if !s.blankFirst(row) {
			out = append(out, append([]string(nil), row...))
			continue
		}
		if len(out) == 0 {
			// nothing to continue
			continue
		}
		prev := out[len(out)-1]
		for i := range prev {
			if i >= len(row) || s.normalizer.Clean(row[i]) == "" {
				continue
			}
			prev[i] = prev[i] + " " + row[i]
		}
	}
	return out
}

func (s *Stitcher) blankFirst(row []string) bool {
	return len(row) == 0 || s.normalizer.Clean(row[0]) == ""
}
