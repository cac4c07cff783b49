package extract

import "regexp"

var (
	hacizTypePattern   = regexp.MustCompile(`^([^:(]+)\s*:`)
	remainderPattern   = regexp.MustCompile(`: (.*(\d{2}/\d{2}/\d{4}|BİLA) TARİH (\d+/\d+|\d+-\d+|\d+|[A-Fa-f0-9]{32}))`)
	referencePattern   = regexp.MustCompile(`(\d{2}/\d{2}/\d{4}|BİLA) TARİH (\d+/\d+|\d+-\d+|\d+|[A-Fa-f0-9]{32})`)
	institutionPattern = regexp.MustCompile(`(\d{2}-\d{2}-\d{4}).*- (\d+)`)
	ordinalFloor       = regexp.MustCompile(`(\d+)\.(\S)`)
)

// officeMarker ends the enforcement office name inside a description ("...DAİRESİNİN").
const officeMarker = "NİN"

// rewriteRule is one step of enforcement office normalization.
type rewriteRule struct {
	pattern     *regexp.Regexp
	replacement string
}

func (r rewriteRule) apply(s string) string {
	return r.pattern.ReplaceAllString(s, r.replacement)
}

func pattern(expr, replacement string) rewriteRule {
	return rewriteRule{pattern: regexp.MustCompile(expr), replacement: replacement}
}

func literal(old, replacement string) rewriteRule {
	return rewriteRule{pattern: regexp.MustCompile(regexp.QuoteMeta(old)), replacement: replacement}
}

// officeRules run in order on every office name, each one whether or not an
// earlier rule matched. Later rules rely on earlier rewrites.
var officeRules = []rewriteRule{
	// "3.İCRA" -> "3. İCRA"
	pattern(`(\d)\.(\s?)`, "${1}. "),
	pattern(`\.\.$`, ""),
	pattern(`(^|[^\p{L}\p{N}_])T\.C\. ?`, "${1}"),
	literal("İCRA MÜDÜRLÜĞÜ", "İCRA DAİRESİ"),
	literal("GEBZE 4 İCRA DAİRESİ", "GEBZE 4. İCRA DAİRESİ"),
	literal("ANADOLU 1 TÜKETİCİ", "ANADOLU 1. TÜKETİCİ"),
	literal("İCRA DAİRESİ MÜDÜRLÜĞÜ", "İCRA DAİRESİ"),
	literal("MEHKEMESİ", "MAHKEMESİ"),
	literal("MAHKEMESİNE", "MAHKEMESİ"),
	pattern(`([A-ZÇĞİÖŞÜ])BELEDİYESİ`, "${1} BELEDİYESİ"),
	literal("S.G.M.", "SOSYAL GÜVENLİK MERKEZİ"),
}

func rewriteOffice(s string) string {
	for _, r := range officeRules {
		s = r.apply(s)
	}
	return s
}
