// Package record turns the tables of one document into restriction records
// and accumulates them across a batch.
package record

import (
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/feichai0017/tapu-processor/internal/agent/document/table"
	"github.com/feichai0017/tapu-processor/internal/agent/extract"
	"github.com/feichai0017/tapu-processor/internal/models"
	"github.com/feichai0017/tapu-processor/pkg/logger"
)

var (
	ErrMissingHeaderTables = errors.New("document has too few header tables")
	ErrNoRestrictions      = errors.New("document has no restriction rows")
	ErrUnexpected          = errors.New("unexpected error")
)

// Outcome is the result of assembling one document. Err is nil exactly when
// Records is non-empty.
type Outcome struct {
	Source  string
	Records []models.RestrictionRecord
	Err     error
}

func (o Outcome) OK() bool {
	return o.Err == nil && len(o.Records) > 0
}

type Assembler struct {
	stitcher  *table.Stitcher
	extractor *extract.Extractor
	logger    logger.Logger
}

func NewAssembler(stitcher *table.Stitcher, extractor *extract.Extractor, log logger.Logger) *Assembler {
	return &Assembler{
		stitcher:  stitcher,
		extractor: extractor,
		logger:    log.Named("assembler"),
	}
}

// Assemble builds the restriction records of one document. It never panics;
// a failure is reported through Outcome.Err.
func (a *Assembler) Assemble(source string, tables []models.TableGrid) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("Panic while assembling document",
				logger.String("source", source),
				logger.Any("panic", r),
				logger.String("stack", string(debug.Stack())),
			)
			out = Outcome{Source: source, Err: fmt.Errorf("%w: %v", ErrUnexpected, r)}
		}
	}()

	records, err := a.assemble(source, tables)
	if err != nil {
		a.logger.Warn("Document produced no records",
			logger.String("source", source),
			logger.Int("tables", len(tables)),
			logger.Error(err),
		)
		return Outcome{Source: source, Err: err}
	}

	a.logger.Info("Document assembled",
		logger.String("source", source),
		logger.Int("records", len(records)),
	)
	return Outcome{Source: source, Records: records}
}

func (a *Assembler) assemble(source string, tables []models.TableGrid) ([]models.RestrictionRecord, error) {
	layout := a.extractor.Layout()
	if len(tables) < layout.HeaderTables() {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrMissingHeaderTables, len(tables), layout.HeaderTables())
	}

	info, err := a.extractor.GeneralInfo(tables)
	if err != nil {
		return nil, fmt.Errorf("general info: %w", err)
	}

	var rows models.TableGrid
	for _, t := range tables {
		if t.Columns() == layout.Restrictions.Columns {
			rows = append(rows, t...)
		}
	}
	rows = a.stitcher.Stitch(rows)
	if len(rows) <= layout.Restrictions.CaptionRows {
		return nil, ErrNoRestrictions
	}
	rows = rows[layout.Restrictions.CaptionRows:]

	records := make([]models.RestrictionRecord, 0, len(rows))
	for _, row := range rows {
		rec := a.extractor.Restriction(row)
		rec.Source = source
		rec.GeneralInfo = info
		records = append(records, rec)
	}
	return records, nil
}
