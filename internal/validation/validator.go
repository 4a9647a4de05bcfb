// Package validation applies the fixed extract schema to raw CSV rows and
// produces typed rows or field-level import errors.
package validation

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ignite/caseload-importer/internal/csvstream"
	"github.com/ignite/caseload-importer/internal/domain"
	"github.com/ignite/caseload-importer/internal/importerr"
)

const (
	maxIdentifierLen = 200
	maxJudgeLen      = 100
	maxFreeTextLen   = 500
	maxPartyCount    = 1000
	maxWitnessCount  = 100
	maxCustodyCount  = 1000

	// MaxJudges is the number of judge_N columns in an extract.
	MaxJudges = 7
)

var months = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March, "apr": time.April,
	"may": time.May, "jun": time.June, "jul": time.July, "aug": time.August,
	"sep": time.September, "oct": time.October, "nov": time.November, "dec": time.December,
}

// ValidatedRow is a row that passed the schema. It is not modified after
// validation.
type ValidatedRow struct {
	RowNumber int

	Court      string
	CaseIDType string
	CaseIDNo   string
	CaseType   string

	ActivityDate    time.Time
	FiledDate       time.Time
	NextHearingDate *time.Time

	OriginalCourt  string
	OriginalCode   string
	OriginalNumber string
	OriginalYear   *int

	// Judges holds the non-empty judge_N values in column order.
	Judges []string

	ComingFor    string
	Outcome      string
	ReasonAdj    string
	OtherDetails string

	Parties            domain.PartyCounts
	LegalRep           string // "Yes", "No" or ""
	ApplicantWitnesses int
	DefendantWitnesses int
	Custody            int
}

// CaseNumber is "{caseid_type}-{caseid_no}".
func (r *ValidatedRow) CaseNumber() string {
	return r.CaseIDType + "-" + r.CaseIDNo
}

// HasLegalRepresentation reports whether legalrep was Yes.
func (r *ValidatedRow) HasLegalRepresentation() bool {
	return r.LegalRep == "Yes"
}

// PrimaryJudge returns judge_1 (or the first judge given), if any.
func (r *ValidatedRow) PrimaryJudge() string {
	if len(r.Judges) == 0 {
		return ""
	}
	return r.Judges[0]
}

// Result is the outcome of validating one row.
type Result struct {
	IsValid bool
	Errors  []*importerr.ImportError
	Data    *ValidatedRow
}

// Option configures a Validator.
type Option func(*Validator)

// WithClock overrides the clock used for year bounds.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) { v.now = now }
}

// Validator checks rows against the extract schema. It holds no per-file
// state and is safe for concurrent use.
type Validator struct {
	now func() time.Time
}

// New creates a Validator.
func New(opts ...Option) *Validator {
	v := &Validator{now: time.Now}
	for _, o := range opts {
		o(v)
	}
	return v
}

// ValidateRow checks row and returns either typed data or every issue found.
func (v *Validator) ValidateRow(row csvstream.Row, rowNumber int) Result {
	c := &checker{row: row}
	year := v.now().Year()

	out := &ValidatedRow{
		RowNumber:  rowNumber,
		Court:      c.required("court", maxIdentifierLen),
		CaseIDType: c.required("caseid_type", maxIdentifierLen),
		CaseIDNo:   c.required("caseid_no", maxIdentifierLen),
		CaseType:   c.required("case_type", maxIdentifierLen),
	}

	activity, activityOK := c.date("date", true, 2000, year+1)
	filed, filedOK := c.date("filed", true, 1950, year+1)
	if activityOK && filedOK && filed.After(activity) {
		c.add(importerr.FieldIssue{
			Field:      "filed_yyyy",
			Code:       importerr.IssueDate,
			Message:    "Filed date is after the activity date",
			Suggestion: fmt.Sprintf("Filed date %s must not be after activity date %s", filed.Format("2006-01-02"), activity.Format("2006-01-02")),
			RawValue:   filed.Format("2006-01-02"),
		})
	}
	out.ActivityDate = activity
	out.FiledDate = filed
	if next, ok := c.date("next", false, 2000, year+5); ok && !next.IsZero() {
		out.NextHearingDate = &next
	}

	out.OriginalCourt = c.text("original_court", maxFreeTextLen)
	out.OriginalCode = c.text("original_code", maxFreeTextLen)
	out.OriginalNumber = c.text("original_number", maxFreeTextLen)
	if y, ok := c.optionalInt("original_year", 1950, year+1); ok {
		out.OriginalYear = &y
	}

	for i := 1; i <= MaxJudges; i++ {
		if j := c.text(fmt.Sprintf("judge_%d", i), maxJudgeLen); j != "" {
			out.Judges = append(out.Judges, j)
		}
	}

	out.ComingFor = c.text("comingfor", maxFreeTextLen)
	out.Outcome = c.text("outcome", maxFreeTextLen)
	out.ReasonAdj = c.text("reason_adj", maxFreeTextLen)
	out.OtherDetails = c.text("other_details", maxFreeTextLen)

	out.Parties = domain.PartyCounts{
		MaleApplicant:         c.count("male_applicant", maxPartyCount),
		FemaleApplicant:       c.count("female_applicant", maxPartyCount),
		OrganizationApplicant: c.count("organization_applicant", maxPartyCount),
		MaleDefendant:         c.count("male_defendant", maxPartyCount),
		FemaleDefendant:       c.count("female_defendant", maxPartyCount),
		OrganizationDefendant: c.count("organization_defendant", maxPartyCount),
	}
	out.LegalRep = c.legalRep()
	out.ApplicantWitnesses = c.count("applicant_witness", maxWitnessCount)
	out.DefendantWitnesses = c.count("defendant_witness", maxWitnessCount)
	out.Custody = c.count("custody", maxCustodyCount)

	if len(c.issues) > 0 {
		errs := make([]*importerr.ImportError, 0, len(c.issues))
		for _, is := range c.issues {
			errs = append(errs, importerr.FromFieldIssue(is, rowNumber))
		}
		return Result{IsValid: false, Errors: errs}
	}
	return Result{IsValid: true, Data: out}
}

type checker struct {
	row    csvstream.Row
	issues []importerr.FieldIssue
}

func (c *checker) add(is importerr.FieldIssue) { c.issues = append(c.issues, is) }

func (c *checker) value(field string) string {
	return strings.TrimSpace(c.row[field])
}

func (c *checker) required(field string, max int) string {
	v := c.value(field)
	if v == "" {
		c.add(importerr.FieldIssue{
			Field:      field,
			Code:       importerr.IssueRequired,
			Message:    fmt.Sprintf("%s is required", field),
			Suggestion: fmt.Sprintf("Provide a value for %s", field),
		})
		return ""
	}
	return c.bounded(field, v, max)
}

func (c *checker) text(field string, max int) string {
	v := c.value(field)
	if v == "" {
		return ""
	}
	return c.bounded(field, v, max)
}

func (c *checker) bounded(field, v string, max int) string {
	if n := len([]rune(v)); n > max {
		c.add(importerr.FieldIssue{
			Field:      field,
			Code:       importerr.IssueLength,
			Message:    fmt.Sprintf("%s is too long", field),
			Suggestion: fmt.Sprintf("%s must be at most %d characters. Found: %d", field, max, n),
			RawValue:   truncate(v, 50),
		})
		return ""
	}
	return v
}

// date validates the {prefix}_dd, {prefix}_mon, {prefix}_yyyy triple. An
// optional triple that is entirely absent yields the zero time and ok.
func (c *checker) date(prefix string, required bool, minYear, maxYear int) (time.Time, bool) {
	ddField, monField, yyField := prefix+"_dd", prefix+"_mon", prefix+"_yyyy"
	dd, mon, yy := c.value(ddField), c.value(monField), c.value(yyField)

	if dd == "" && mon == "" && yy == "" && !required {
		return time.Time{}, true
	}

	before := len(c.issues)
	for _, f := range [][2]string{{ddField, dd}, {monField, mon}, {yyField, yy}} {
		if f[1] != "" {
			continue
		}
		msg := fmt.Sprintf("%s is required", f[0])
		if !required {
			msg = fmt.Sprintf("%s is required when any %s date part is given", f[0], prefix)
		}
		c.add(importerr.FieldIssue{Field: f[0], Code: importerr.IssueRequired, Message: msg,
			Suggestion: fmt.Sprintf("Provide a value for %s", f[0])})
	}
	if len(c.issues) > before {
		return time.Time{}, false
	}

	day, err := strconv.Atoi(dd)
	if err != nil || day < 1 || day > 31 {
		c.add(importerr.FieldIssue{Field: ddField, Code: importerr.IssueDate, Message: "Invalid day",
			Suggestion: fmt.Sprintf("Day must be between 1-31. Found: %s", dd), RawValue: dd})
	}
	month, ok := months[strings.ToLower(mon)]
	if !ok || len(mon) != 3 {
		c.add(importerr.FieldIssue{Field: monField, Code: importerr.IssueDate, Message: "Invalid month",
			Suggestion: fmt.Sprintf("Month must be a 3-letter abbreviation (Jan, Feb, ...). Found: %s", mon), RawValue: mon})
	}
	year, err := strconv.Atoi(yy)
	if err != nil || len(yy) != 4 || year < minYear || year > maxYear {
		c.add(importerr.FieldIssue{Field: yyField, Code: importerr.IssueDate, Message: "Invalid year",
			Suggestion: fmt.Sprintf("Year must be between %d-%d. Found: %s", minYear, maxYear, yy), RawValue: yy})
	}
	if len(c.issues) > before {
		return time.Time{}, false
	}

	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day {
		raw := fmt.Sprintf("%s-%s-%s", dd, mon, yy)
		c.add(importerr.FieldIssue{Field: ddField, Code: importerr.IssueDate, Message: "Date does not exist",
			Suggestion: fmt.Sprintf("%s has only %d days. Found: %s", month, daysIn(month, year), raw), RawValue: raw})
		return time.Time{}, false
	}
	return t, true
}

func (c *checker) optionalInt(field string, min, max int) (int, bool) {
	v := c.value(field)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		c.add(importerr.FieldIssue{Field: field, Code: importerr.IssueFormat, Message: fmt.Sprintf("%s must be a whole number", field),
			Suggestion: fmt.Sprintf("Use digits only for %s. Found: %s", field, v), RawValue: v})
		return 0, false
	}
	if n < min || n > max {
		c.add(importerr.FieldIssue{Field: field, Code: importerr.IssueRange, Message: fmt.Sprintf("%s is out of range", field),
			Suggestion: fmt.Sprintf("%s must be between %d-%d. Found: %d", field, min, max, n), RawValue: v})
		return 0, false
	}
	return n, true
}

func (c *checker) count(field string, max int) int {
	n, _ := c.optionalInt(field, 0, max)
	return n
}

func (c *checker) legalRep() string {
	v := c.value("legalrep")
	switch strings.ToLower(v) {
	case "":
		return ""
	case "yes", "y":
		return "Yes"
	case "no", "n":
		return "No"
	}
	c.add(importerr.FieldIssue{Field: "legalrep", Code: importerr.IssueFormat, Message: "legalrep must be Yes or No",
		Suggestion: fmt.Sprintf("Use Yes or No. Found: %s", v), RawValue: v})
	return ""
}

func daysIn(m time.Month, year int) int {
	return time.Date(year, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
