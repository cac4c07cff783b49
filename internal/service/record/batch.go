package record

import "github.com/feichai0017/tapu-processor/internal/models"

// Batch accumulates document outcomes in submission order.
type Batch struct {
	records   []models.RestrictionRecord
	processed int
	failures  int
}

// Add records o and reports whether the document produced records.
func (b *Batch) Add(o Outcome) bool {
	if !o.OK() {
		b.failures++
		return false
	}
	b.processed++
	b.records = append(b.records, o.Records...)
	return true
}

func (b *Batch) Records() []models.RestrictionRecord {
	return b.records
}

func (b *Batch) Processed() int {
	return b.processed
}

func (b *Batch) Failures() int {
	return b.failures
}

func (b *Batch) Empty() bool {
	return len(b.records) == 0
}
