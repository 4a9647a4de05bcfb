package masterdata

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/ignite/caseload-importer/internal/domain"
)

const (
	maxCourtNameLen    = 200
	maxCaseTypeNameLen = 200
	maxJudgeNameLen    = 100
)

var allowedName = regexp.MustCompile(`^[\p{L}\p{N} .,'&()/\-]+$`)

var courtStopWords = map[string]bool{
	"court": true, "courts": true, "law": true, "the": true, "of": true, "and": true, "at": true,
}

var judgeHonorifics = map[string]bool{
	"hon": true, "honourable": true, "justice": true, "lady": true, "mr": true, "mrs": true, "ms": true, "dr": true,
}

var judgePostNominals = map[string]bool{
	"j": true, "ja": true, "jj": true, "spm": true, "cm": true, "pm": true, "srm": true, "rm": true,
}

// courtPrefixes is checked longest first so that SCC wins over SC.
var courtPrefixes = []struct {
	prefix string
	kind   domain.CourtType
}{
	{"ELRC", domain.CourtEmploymentLabour},
	{"CMCC", domain.CourtMagistrate},
	{"MCCC", domain.CourtMagistrate},
	{"SCC", domain.CourtSmallClaims},
	{"ELC", domain.CourtEnvironmentLand},
	{"COA", domain.CourtOfAppeal},
	{"HC", domain.CourtHigh},
	{"SC", domain.CourtSupreme},
	{"CA", domain.CourtOfAppeal},
	{"KC", domain.CourtKadhi},
	{"MC", domain.CourtMagistrate},
	{"CM", domain.CourtMagistrate},
}

var courtKeywords = []struct {
	words []string
	kind  domain.CourtType
}{
	{[]string{"supreme"}, domain.CourtSupreme},
	{[]string{"appeal"}, domain.CourtOfAppeal},
	{[]string{"employment", "labour", "labor"}, domain.CourtEmploymentLabour},
	{[]string{"environment", "land"}, domain.CourtEnvironmentLand},
	{[]string{"small claims"}, domain.CourtSmallClaims},
	{[]string{"kadhi"}, domain.CourtKadhi},
	{[]string{"magistrate"}, domain.CourtMagistrate},
	{[]string{"tribunal"}, domain.CourtTribunal},
	{[]string{"high"}, domain.CourtHigh},
}

func validateName(field, raw string, max int) error {
	v := strings.TrimSpace(raw)
	switch {
	case v == "":
		return fmt.Errorf("%w: %s is empty", ErrInvalidName, field)
	case len([]rune(v)) > max:
		return fmt.Errorf("%w: %s longer than %d characters", ErrInvalidName, field, max)
	case !allowedName.MatchString(v):
		return fmt.Errorf("%w: %s contains unsupported characters", ErrInvalidName, field)
	}
	return nil
}

// NormalizeName trims, collapses whitespace and title-cases s.
func NormalizeName(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return ""
	}
	return cases.Title(language.English).String(s)
}

// CourtKeywords returns the distinguishing words of a court name: words of
// three or more letters that are not stop words.
func CourtKeywords(name string) map[string]bool {
	out := make(map[string]bool)
	for _, w := range strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len([]rune(w)) >= 3 && !courtStopWords[w] {
			out[w] = true
		}
	}
	return out
}

func sameKeywords(a, b map[string]bool) bool {
	if len(a) == 0 || len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

// CourtCode generates the fallback code for a court: the initials of its
// words followed by the first six hex digits of the name's SHA-256.
func CourtCode(normalizedName string) string {
	var initials strings.Builder
	for _, w := range strings.Fields(normalizedName) {
		for _, r := range w {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				initials.WriteRune(unicode.ToUpper(r))
				break
			}
		}
	}
	sum := sha256.Sum256([]byte(strings.ToLower(normalizedName)))
	return initials.String() + "-" + hex.EncodeToString(sum[:])[:6]
}

// InferCourtType derives the court type from a case-id prefix, falling back
// to keywords in the court name.
func InferCourtType(caseIDType, normalizedName string) domain.CourtType {
	prefix := strings.ToUpper(strings.TrimSpace(caseIDType))
	if prefix != "" {
		for _, p := range courtPrefixes {
			if strings.HasPrefix(prefix, p.prefix) {
				return p.kind
			}
		}
		return domain.CourtTribunal
	}

	lower := strings.ToLower(normalizedName)
	for _, k := range courtKeywords {
		for _, w := range k.words {
			if strings.Contains(lower, w) {
				return k.kind
			}
		}
	}
	return domain.CourtHigh
}

// JudgeName is a parsed judge name.
type JudgeName struct {
	FullName  string
	FirstName string
	LastName  string
}

// ParseJudgeName strips honorifics and post-nominals and reorders
// "Last, First Middle" into "First Middle Last".
func ParseJudgeName(raw string) JudgeName {
	raw = strings.Join(strings.Fields(raw), " ")
	if i := strings.Index(raw, ","); i >= 0 {
		last := strings.TrimSpace(raw[:i])
		rest := strings.TrimSpace(strings.ReplaceAll(raw[i+1:], ",", " "))
		restTokens := trimTitles(strings.Fields(rest))
		lastTokens := trimTitles(strings.Fields(last))
		raw = strings.Join(append(restTokens, lastTokens...), " ")
	}

	tokens := trimTitles(strings.Fields(raw))
	if len(tokens) == 0 {
		return JudgeName{}
	}
	full := NormalizeName(strings.Join(tokens, " "))
	parts := strings.Fields(full)
	jn := JudgeName{FullName: full, FirstName: parts[0]}
	if len(parts) > 1 {
		jn.LastName = parts[len(parts)-1]
	}
	return jn
}

// trimTitles removes leading honorifics and trailing post-nominals, keeping
// at least one token.
func trimTitles(tokens []string) []string {
	key := func(s string) string { return strings.ToLower(strings.Trim(s, ".")) }
	for len(tokens) > 1 && judgeHonorifics[key(tokens[0])] {
		tokens = tokens[1:]
	}
	for len(tokens) > 1 && judgePostNominals[key(tokens[len(tokens)-1])] {
		tokens = tokens[:len(tokens)-1]
	}
	return tokens
}

// CaseTypeCode upper-cases name and replaces runs of other characters with
// underscores ("Civil Suit" -> "CIVIL_SUIT").
func CaseTypeCode(name string) string {
	var b strings.Builder
	pending := false
	for _, r := range strings.ToUpper(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pending && b.Len() > 0 {
				b.WriteByte('_')
			}
			pending = false
			b.WriteRune(r)
			continue
		}
		pending = true
	}
	return b.String()
}
