package extract

import (
	_ "embed"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/feichai0017/tapu-processor/internal/models"
)

//go:embed layout.yaml
var defaultLayout []byte

// ErrLayoutMismatch means a document does not have the cells the layout expects.
var ErrLayoutMismatch = errors.New("document does not match template layout")

// Cell addresses one cell of one extracted table.
type Cell struct {
	Table int `yaml:"table"`
	Row   int `yaml:"row"`
	Col   int `yaml:"col"`
}

func (c Cell) String() string {
	return fmt.Sprintf("table %d row %d col %d", c.Table, c.Row, c.Col)
}

// Layout is the positional contract of one registry template version.
type Layout struct {
	Version string `yaml:"version"`

	General struct {
		IdentityNumber   Cell `yaml:"identity_number"`
		ProvinceDistrict Cell `yaml:"province_district"`
		Organization     Cell `yaml:"organization"`
		Neighborhood     Cell `yaml:"neighborhood"`
		AdaParsel        Cell `yaml:"ada_parsel"`
		UnitQualifier    Cell `yaml:"unit_qualifier"`
		UnitAddress      Cell `yaml:"unit_address"`
	} `yaml:"general"`

	Restrictions struct {
		Columns     int `yaml:"columns"`
		CaptionRows int `yaml:"caption_rows"`
	} `yaml:"restrictions"`
}

// ParseLayout decodes and validates a layout document.
func ParseLayout(data []byte) (*Layout, error) {
	var l Layout
	if err := yaml.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}
	if err := l.validate(); err != nil {
		return nil, err
	}
	return &l, nil
}

// DefaultLayout returns the embedded registry layout.
func DefaultLayout() *Layout {
	l, err := ParseLayout(defaultLayout)
	if err != nil {
		panic(err)
	}
	return l
}

// HeaderTables is the number of leading tables general info is read from.
func (l *Layout) HeaderTables() int {
	n := 0
	for _, c := range l.cells() {
		if c.Table+1 > n {
			n = c.Table + 1
		}
	}
	return n
}

func (l *Layout) cells() []Cell {
	g := l.General
	return []Cell{
		g.IdentityNumber, g.ProvinceDistrict, g.Organization, g.Neighborhood,
		g.AdaParsel, g.UnitQualifier, g.UnitAddress,
	}
}

func (l *Layout) validate() error {
	if l.Version == "" {
		return errors.New("layout: version is required")
	}
	if l.Restrictions.Columns != RestrictionColumns {
		return fmt.Errorf("layout %s: restriction columns must be %d, got %d", l.Version, RestrictionColumns, l.Restrictions.Columns)
	}
	if l.Restrictions.CaptionRows < 0 {
		return fmt.Errorf("layout %s: caption rows must not be negative", l.Version)
	}
	for _, c := range l.cells() {
		if c.Table < 0 || c.Row < 0 || c.Col < 0 {
			return fmt.Errorf("layout %s: invalid cell %s", l.Version, c)
		}
	}
	return nil
}

// lookup returns the raw text at c.
func (l *Layout) lookup(tables []models.TableGrid, c Cell) (string, error) {
	if c.Table >= len(tables) {
		return "", fmt.Errorf("%w (%s): only %d tables", ErrLayoutMismatch, l.Version, len(tables))
	}
	v, ok := tables[c.Table].Cell(c.Row, c.Col)
	if !ok {
		return "", fmt.Errorf("%w (%s): missing %s", ErrLayoutMismatch, l.Version, c)
	}
	return v, nil
}
