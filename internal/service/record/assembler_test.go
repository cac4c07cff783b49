package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/tapu-processor/internal/agent/document/table"
	"github.com/feichai0017/tapu-processor/internal/agent/extract"
	"github.com/feichai0017/tapu-processor/internal/agent/text"
	"github.com/feichai0017/tapu-processor/internal/models"
	"github.com/feichai0017/tapu-processor/pkg/logger"
)

func newTestAssembler(log logger.Logger) *Assembler {
	n := text.NewTurkish()
	return NewAssembler(table.NewStitcher(n), extract.NewExtractor(n, nil), log)
}

func documentTables() []models.TableGrid {
	return []models.TableGrid{
		{
			{"TAŞINMAZ BİLGİLERİ", ""},
			{"Taşınmaz Kimlik No:", "987"},
			{"İl/İlçe:", "KOCAELİ/GEBZE"},
			{"Kurum Adı:", "Gebze Tapu Müdürlüğü"},
			{"Mahalle/Köy Adı:", "ARAPÇEŞME"},
		},
		{
			{"Ada/Parsel:", "12/3"},
			{"", ""},
			{"Bağımsız Bölüm Nitelik:", "DÜKKAN"},
			{"", ""},
			{"", ""},
			{"Blok/Kat/Giriş/BBNo:", "B/ZEMİN/1/4"},
		},
		{
			{"", "", "", "", "", ""},
			{"S/B/İ", "Açıklama", "Kısıtlı Malik", "Malik/Lehtar", "Tesis Kurum Tarih-Yevmiye", "Terkin Sebebi"},
			{"Ş", "HACİZ : GEBZE 4 İCRA MÜDÜRLÜĞÜ NİN 01/02/2020 TARİH 2020/55", "ALİ", "", "GEBZE - 03-02-2020 - 881", ""},
			{"", "SAYILI HACİZ", "", "", "", ""},
		},
		{
			{"other", "shape"},
		},
		{
			{"B", "İPOTEK LEHİNE", "VELİ", "BANKA", "GEBZE - 04-02-2020 - 900", ""},
		},
	}
}

func TestAssemble(t *testing.T) {
	out := newTestAssembler(logger.NewNop()).Assemble("tapu-1.pdf", documentTables())

	require.True(t, out.OK(), "%v", out.Err)
	require.Len(t, out.Records, 2)

	first := out.Records[0]
	assert.Equal(t, "tapu-1.pdf", first.Source)
	assert.Equal(t, "Ş", first.SBI)
	assert.Equal(t, "HACİZ : GEBZE 4 İCRA MÜDÜRLÜĞÜ NİN 01/02/2020 TARİH 2020/55 SAYILI HACİZ", first.Description)
	assert.Equal(t, "Gebze 4. İcra Dairesi", first.EnforcementOffice)
	assert.Equal(t, "03/02/2020", first.Date)
	assert.Equal(t, int64(987), first.IdentityNumber)
	assert.Equal(t, "Kocaeli", first.Province)
	assert.Equal(t, "Zemin", first.Floor)

	second := out.Records[1]
	assert.Equal(t, "B", second.SBI)
	assert.Empty(t, second.HacizType)
	assert.Equal(t, first.GeneralInfo, second.GeneralInfo)
}

func TestAssemble_Failures(t *testing.T) {
	a := newTestAssembler(logger.NewNop())
	tables := documentTables()

	tests := []struct {
		name   string
		tables []models.TableGrid
		want   error
	}{
		{"no tables", nil, ErrMissingHeaderTables},
		{"one table", tables[:1], ErrMissingHeaderTables},
		{"bad identity", func() []models.TableGrid {
			ts := documentTables()
			ts[0][1][1] = "X"
			return ts
		}(), extract.ErrIdentityNumber},
		{"no restriction tables", tables[:2], ErrNoRestrictions},
		{"caption only", append(tables[:2:2], models.TableGrid{
			{"S/B/İ", "Açıklama", "Kısıtlı Malik", "Malik/Lehtar", "Tesis", "Terkin"},
		}), ErrNoRestrictions},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := a.Assemble("x.pdf", tt.tables)
			assert.False(t, out.OK())
			assert.Empty(t, out.Records)
			assert.ErrorIs(t, out.Err, tt.want)
			assert.Equal(t, "x.pdf", out.Source)
		})
	}
}

func TestAssemble_RecoversPanic(t *testing.T) {
	log := logger.NewTestLogger()
	n := text.NewTurkish()
	a := NewAssembler(table.NewStitcher(n), nil, log)

	out := a.Assemble("boom.pdf", documentTables())

	assert.ErrorIs(t, out.Err, ErrUnexpected)
	assert.NotEmpty(t, log.Messages("ERROR"))
}

func TestBatch(t *testing.T) {
	var b Batch
	assert.True(t, b.Empty())

	rec := func(src string) models.RestrictionRecord { return models.RestrictionRecord{Source: src} }

	assert.True(t, b.Add(Outcome{Source: "a", Records: []models.RestrictionRecord{rec("a"), rec("a")}}))
	assert.False(t, b.Add(Outcome{Source: "b", Err: ErrNoRestrictions}))
	assert.False(t, b.Add(Outcome{Source: "c"}))
	assert.True(t, b.Add(Outcome{Source: "d", Records: []models.RestrictionRecord{rec("d")}}))

	assert.Equal(t, 2, b.Processed())
	assert.Equal(t, 2, b.Failures())
	require.Len(t, b.Records(), 3)
	assert.Equal(t, "d", b.Records()[2].Source)
	assert.False(t, b.Empty())
}
