// Package extract decomposes registry tables into general info and restriction records.
package extract

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/feichai0017/tapu-processor/internal/agent/text"
	"github.com/feichai0017/tapu-processor/internal/models"
)

// ErrIdentityNumber means the property identity number is not an integer.
var ErrIdentityNumber = errors.New("invalid property identity number")

// RestrictionColumns is the width of a restriction row; every column maps to
// a fixed record field.
const RestrictionColumns = 6

// Extractor reads fields out of stitched registry tables. It holds no
// mutable state and may be shared between jobs.
type Extractor struct {
	normalizer *text.Normalizer
	layout     *Layout
}

func NewExtractor(normalizer *text.Normalizer, layout *Layout) *Extractor {
	if layout == nil {
		layout = DefaultLayout()
	}
	return &Extractor{normalizer: normalizer, layout: layout}
}

// Layout returns the template layout the extractor reads with.
func (e *Extractor) Layout() *Layout {
	return e.layout
}

// GeneralInfo reads the document-level fields from the header tables.
func (e *Extractor) GeneralInfo(tables []models.TableGrid) (models.GeneralInfo, error) {
	g := e.layout.General
	cells := []Cell{
		g.IdentityNumber, g.ProvinceDistrict, g.Organization, g.Neighborhood,
		g.AdaParsel, g.UnitQualifier, g.UnitAddress,
	}
	raw := make([]string, len(cells))
	for i, c := range cells {
		v, err := e.layout.lookup(tables, c)
		if err != nil {
			return models.GeneralInfo{}, err
		}
		raw[i] = v
	}

	id, err := strconv.ParseInt(strings.TrimSpace(raw[0]), 10, 64)
	if err != nil {
		return models.GeneralInfo{}, fmt.Errorf("%w: %q", ErrIdentityNumber, raw[0])
	}

	n := e.normalizer
	info := models.GeneralInfo{
		IdentityNumber: id,
		Organization:   n.Clean(raw[2]),
		Neighborhood:   n.Capitalize(raw[3]),
		UnitQualifier:  n.Capitalize(raw[5]),
	}

	if parts := n.Split(raw[1], "/"); len(parts) >= 2 {
		info.Province = n.Title(parts[0])
		info.District = n.Title(parts[1])
	}
	if parts := n.Split(raw[4], "/"); len(parts) >= 2 {
		info.Ada, info.Parsel = parts[0], parts[1]
	}
	if parts := n.Split(raw[6], "/"); len(parts) >= 4 {
		info.Building = parts[0]
		info.Floor = e.floor(parts[1])
		info.Entry = parts[2]
		info.UnitNumber = parts[3]
	}

	return info, nil
}

// floor spaces out ordinals ("3.KAT" -> "3. Kat") unless the value is a plain number.
func (e *Extractor) floor(kat string) string {
	if kat == "" || isDigits(kat) {
		return kat
	}
	return e.normalizer.TitleWords(ordinalFloor.ReplaceAllString(kat, "${1}. ${2}"))
}

func isDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}

// Restriction decomposes one six-column restriction row. Sub-patterns that
// do not match leave their fields empty.
func (e *Extractor) Restriction(row []string) models.RestrictionRecord {
	var cells [RestrictionColumns]string
	for i := range cells {
		if i < len(row) {
			cells[i] = e.normalizer.Upper(e.normalizer.Clean(row[i]))
		}
	}

	rec := models.RestrictionRecord{
		SBI:              cells[0],
		Description:      cells[1],
		RestrictedOwner:  cells[2],
		OwnerBeneficiary: cells[3],
		Institution:      cells[4],
		Cancellation:     cells[5],
	}
	e.describe(&rec)
	registration(&rec)
	return rec
}

func (e *Extractor) describe(rec *models.RestrictionRecord) {
	m := hacizTypePattern.FindStringSubmatch(rec.Description)
	if m == nil {
		return
	}
	rec.HacizType = e.normalizer.Capitalize(m[1])
	if rec.HacizType == "" {
		return
	}

	if m := remainderPattern.FindStringSubmatch(rec.Description); m != nil {
		rec.DescriptionExt = m[1]
	}
	if m := referencePattern.FindStringSubmatch(rec.Description); m != nil {
		rec.ReferenceDate = m[1]
		rec.FileNumber = m[2]
	}
	rec.EnforcementOffice = e.enforcementOffice(rec.DescriptionExt)
}

func (e *Extractor) enforcementOffice(ext string) string {
	i := strings.Index(ext, officeMarker)
	if i < 0 {
		return ""
	}
	return e.normalizer.Capitalize(rewriteOffice(strings.TrimSpace(ext[:i])))
}

// registration reads the registration date and journal number from the
// institution column.
func registration(rec *models.RestrictionRecord) {
	m := institutionPattern.FindStringSubmatch(rec.Institution)
	if m == nil {
		return
	}
	if d, err := time.Parse("02-01-2006", m[1]); err == nil {
		rec.Date = d.Format("02/01/2006")
	}
	if n, err := strconv.Atoi(m[2]); err == nil {
		rec.JournalNumber = &n
	}
}
