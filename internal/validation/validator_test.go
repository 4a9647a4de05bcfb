package validation

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/caseload-importer/internal/csvstream"
	"github.com/ignite/caseload-importer/internal/importerr"
)

func fixedClock() func() time.Time {
	return func() time.Time { return time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC) }
}

func sampleRow() csvstream.Row {
	return csvstream.Row{
		"court":       "Milimani Civil",
		"caseid_type": "HCCC",
		"caseid_no":   "TEST123",
		"case_type":   "Civil Suit",
		"filed_dd":    "13",
		"filed_mon":   "Jun",
		"filed_yyyy":  "2019",
		"date_dd":     "6",
		"date_mon":    "Nov",
		"date_yyyy":   "2023",
		"judge_1":     "Kendagor, Caroline J",
		"comingfor":   "Mention",
		"outcome":     "Directions Given",
	}
}

func issueFor(t *testing.T, res Result, field string) *importerr.ImportError {
	t.Helper()
	for _, e := range res.Errors {
		if e.Field == field {
			return e
		}
	}
	t.Fatalf("no error for field %s in %v", field, res.Errors)
	return nil
}

func TestValidateRow_Valid(t *testing.T) {
	v := New(WithClock(fixedClock()))

	res := v.ValidateRow(sampleRow(), 1)
	require.True(t, res.IsValid, "%v", res.Errors)

	d := res.Data
	assert.Equal(t, "HCCC-TEST123", d.CaseNumber())
	assert.Equal(t, time.Date(2023, time.November, 6, 0, 0, 0, 0, time.UTC), d.ActivityDate)
	assert.Equal(t, time.Date(2019, time.June, 13, 0, 0, 0, 0, time.UTC), d.FiledDate)
	assert.Nil(t, d.NextHearingDate)
	assert.Equal(t, []string{"Kendagor, Caroline J"}, d.Judges)
	assert.Equal(t, "Kendagor, Caroline J", d.PrimaryJudge())
	assert.Equal(t, 0, d.Parties.TotalApplicants())
	assert.False(t, d.HasLegalRepresentation())
}

func TestValidateRow_OptionalFields(t *testing.T) {
	row := sampleRow()
	row["next_dd"] = "15"
	row["next_mon"] = "jan"
	row["next_yyyy"] = "2024"
	row["male_applicant"] = "2"
	row["organization_defendant"] = "1"
	row["legalrep"] = "y"
	row["applicant_witness"] = "3"
	row["custody"] = "0"
	row["original_year"] = "2018"
	row["judge_3"] = "Odunga G.V."

	res := New(WithClock(fixedClock())).ValidateRow(row, 2)
	require.True(t, res.IsValid, "%v", res.Errors)

	d := res.Data
	require.NotNil(t, d.NextHearingDate)
	assert.Equal(t, time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC), *d.NextHearingDate)
	assert.Equal(t, 2, d.Parties.MaleApplicant)
	assert.Equal(t, 1, d.Parties.TotalDefendants())
	assert.Equal(t, "Yes", d.LegalRep)
	assert.True(t, d.HasLegalRepresentation())
	assert.Equal(t, 3, d.ApplicantWitnesses)
	require.NotNil(t, d.OriginalYear)
	assert.Equal(t, 2018, *d.OriginalYear)
	assert.Equal(t, []string{"Kendagor, Caroline J", "Odunga G.V."}, d.Judges)
}

func TestValidateRow_MissingRequired(t *testing.T) {
	row := sampleRow()
	delete(row, "caseid_no")
	delete(row, "case_type")

	res := New(WithClock(fixedClock())).ValidateRow(row, 5)
	require.False(t, res.IsValid)
	assert.Nil(t, res.Data)

	e := issueFor(t, res, "caseid_no")
	assert.Equal(t, importerr.KindMissingFields, e.Kind)
	assert.Equal(t, 5, e.RowNumber)
	issueFor(t, res, "case_type")
}

func TestValidateRow_DateErrors(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(csvstream.Row)
		field      string
		suggestion string
	}{
		{"day zero", func(r csvstream.Row) { r["date_dd"] = "0" }, "date_dd", "Day must be between 1-31. Found: 0"},
		{"long month", func(r csvstream.Row) { r["date_mon"] = "June" }, "date_mon", "Month must be a 3-letter abbreviation (Jan, Feb, ...). Found: June"},
		{"year too old", func(r csvstream.Row) { r["date_yyyy"] = "1999" }, "date_yyyy", "Year must be between 2000-2026. Found: 1999"},
		{"year in future", func(r csvstream.Row) { r["filed_yyyy"] = "2027" }, "filed_yyyy", "Year must be between 1950-2026. Found: 2027"},
		{"impossible date", func(r csvstream.Row) { r["date_dd"] = "30"; r["date_mon"] = "Feb" }, "date_dd", "February has only 28 days. Found: 30-Feb-2023"},
		{"filed after activity", func(r csvstream.Row) { r["filed_yyyy"] = "2024" }, "filed_yyyy", "Filed date 2024-06-13 must not be after activity date 2023-11-06"},
		{"partial next date", func(r csvstream.Row) { r["next_dd"] = "3" }, "next_mon", "Provide a value for next_mon"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := sampleRow()
			tt.mutate(row)
			res := New(WithClock(fixedClock())).ValidateRow(row, 1)
			require.False(t, res.IsValid)
			e := issueFor(t, res, tt.field)
			assert.Equal(t, tt.suggestion, e.Suggestion)
		})
	}
}

func TestValidateRow_NumericAndEnums(t *testing.T) {
	row := sampleRow()
	row["male_applicant"] = "abc"
	row["female_defendant"] = "1001"
	row["applicant_witness"] = "101"
	row["legalrep"] = "Maybe"
	row["original_year"] = "1900"

	res := New(WithClock(fixedClock())).ValidateRow(row, 1)
	require.False(t, res.IsValid)

	assert.Equal(t, importerr.KindDataFormat, issueFor(t, res, "male_applicant").Kind)
	assert.Equal(t, importerr.KindValidation, issueFor(t, res, "female_defendant").Kind)
	assert.Equal(t, "applicant_witness must be between 0-100. Found: 101", issueFor(t, res, "applicant_witness").Suggestion)
	assert.Equal(t, importerr.KindDataFormat, issueFor(t, res, "legalrep").Kind)
	issueFor(t, res, "original_year")
}

func TestValidateRow_Lengths(t *testing.T) {
	row := sampleRow()
	long := make([]rune, 201)
	for i := range long {
		long[i] = 'a'
	}
	row["court"] = string(long)
	row["judge_2"] = string(long[:101])

	res := New(WithClock(fixedClock())).ValidateRow(row, 1)
	require.False(t, res.IsValid)
	assert.Equal(t, "court must be at most 200 characters. Found: 201", issueFor(t, res, "court").Suggestion)
	issueFor(t, res, "judge_2")
}

func badRecord(n int) csvstream.Record {
	return csvstream.Record{Number: n, Fields: csvstream.Row{"court": "Milimani"}}
}

func goodRecord(n int) csvstream.Record {
	return csvstream.Record{Number: n, Fields: sampleRow()}
}

func TestValidateBatch_CircuitBreaker(t *testing.T) {
	var records []csvstream.Record
	for i := 1; i <= 15; i++ {
		records = append(records, badRecord(i))
	}

	res := New(WithClock(fixedClock())).ValidateBatch(records)
	assert.True(t, res.Aborted)
	assert.ErrorIs(t, res.Err, importerr.ErrTooManyConsecutiveFailures)
	assert.Equal(t, 10, res.Processed)
	assert.Equal(t, 10, res.Failed)

	last := res.Errors[len(res.Errors)-1]
	assert.Equal(t, importerr.KindEarlyFailure, last.Kind)
	assert.Equal(t, 10, last.RowNumber)
}

func TestValidateBatch_SuccessResetsBreaker(t *testing.T) {
	var records []csvstream.Record
	for i := 1; i <= 20; i++ {
		if i%9 == 0 {
			records = append(records, goodRecord(i))
			continue
		}
		records = append(records, badRecord(i))
	}

	res := New(WithClock(fixedClock())).ValidateBatch(records)
	assert.False(t, res.Aborted)
	assert.NoError(t, res.Err)
	assert.Equal(t, 20, res.Processed)
	assert.Len(t, res.Valid, 2)
	assert.Equal(t, 18, res.Failed)
}

func TestBreaker(t *testing.T) {
	b := NewBreaker(3)
	assert.False(t, b.Failure())
	assert.False(t, b.Failure())
	b.Success()
	assert.Equal(t, 0, b.Consecutive())
	for i := 0; i < 2; i++ {
		b.Failure()
	}
	assert.True(t, b.Failure())
	assert.Contains(t, fmt.Sprint(b.EarlyFailure(7)), "3 consecutive")

	assert.Equal(t, DefaultConsecutiveFailureLimit, NewBreaker(0).Limit())
}
