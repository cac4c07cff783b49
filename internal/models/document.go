package models

// TableGrid is one table region of a page: ordered rows of ordered cell strings.
type TableGrid [][]string

// Columns returns the width of the widest row.
func (g TableGrid) Columns() int {
	n := 0
	for _, row := range g {
		if len(row) > n {
			n = len(row)
		}
	}
	return n
}

// Cell returns the cell at (row, col) and whether it exists.
func (g TableGrid) Cell(row, col int) (string, bool) {
	if row < 0 || row >= len(g) || col < 0 || col >= len(g[row]) {
		return "", false
	}
	return g[row][col], true
}

// GeneralInfo holds the document-level fields shared by every restriction row of a document.
// Empty strings mean the field was absent.
type GeneralInfo struct {
	IdentityNumber int64  `json:"tasinmazKimlikNo"`
	Province       string `json:"il"`
	District       string `json:"ilce"`
	Organization   string `json:"kurumAdi"`
	Neighborhood   string `json:"mahalle"`
	Ada            string `json:"ada"`
	Parsel         string `json:"parsel"`
	UnitQualifier  string `json:"bagimsizBolumNitelik"`
	Building       string `json:"blok"`
	Floor          string `json:"kat"`
	Entry          string `json:"giris"`
	UnitNumber     string `json:"bbno"`
}

// RestrictionRecord is one output row: a restriction entry joined with its document's GeneralInfo.
type RestrictionRecord struct {
	Source string `json:"sourceFile"`

	// Raw columns, cleaned and uppercased.
	SBI              string `json:"sbi"`
	Description      string `json:"aciklama"`
	RestrictedOwner  string `json:"kisitliMalik"`
	OwnerBeneficiary string `json:"malikLehtar"`
	Institution      string `json:"tesisKurumTarihYevmiye"`
	Cancellation     string `json:"terkinSebebiYevmiye"`

	HacizType         string `json:"hacizType"`
	DescriptionExt    string `json:"aciklamaExt"`
	ReferenceDate     string `json:"aciklamaDate"`
	FileNumber        string `json:"aciklamaFileNo"`
	Date              string `json:"tarih"`
	JournalNumber     *int   `json:"yevmiye"`
	EnforcementOffice string `json:"icraDairesi"`

	GeneralInfo
}
