package masterdata

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ignite/caseload-importer/internal/domain"
)

func TestInferCourtType(t *testing.T) {
	tests := []struct {
		prefix string
		name   string
		want   domain.CourtType
	}{
		{"SCC", "", domain.CourtSmallClaims},
		{"SCCC", "", domain.CourtSmallClaims},
		{"SC", "", domain.CourtSupreme},
		{"HCCC", "", domain.CourtHigh},
		{"HCCA", "", domain.CourtHigh},
		{"ELRC", "", domain.CourtEmploymentLabour},
		{"ELC", "", domain.CourtEnvironmentLand},
		{"CMCC", "", domain.CourtMagistrate},
		{"MCCR", "", domain.CourtMagistrate},
		{"COA", "", domain.CourtOfAppeal},
		{"KC", "", domain.CourtKadhi},
		{"XYZ", "Supreme Court", domain.CourtTribunal},
		{"", "Supreme Court Of Kenya", domain.CourtSupreme},
		{"", "Court Of Appeal Nairobi", domain.CourtOfAppeal},
		{"", "Employment And Labour Relations", domain.CourtEmploymentLabour},
		{"", "Small Claims Court Milimani", domain.CourtSmallClaims},
		{"", "Kadhi Court Mombasa", domain.CourtKadhi},
		{"", "Rent Restriction Tribunal", domain.CourtTribunal},
		{"", "Milimani Civil", domain.CourtHigh},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, InferCourtType(tt.prefix, tt.name), "%s / %s", tt.prefix, tt.name)
	}
}

func TestParseJudgeName(t *testing.T) {
	tests := []struct {
		raw  string
		want JudgeName
	}{
		{"Kendagor, Caroline J", JudgeName{"Caroline Kendagor", "Caroline", "Kendagor"}},
		{"Hon. Justice Mumbi Ngugi", JudgeName{"Mumbi Ngugi", "Mumbi", "Ngugi"}},
		{"Mr. Peter Gesora SPM", JudgeName{"Peter Gesora", "Peter", "Gesora"}},
		{"ODUNGA", JudgeName{"Odunga", "Odunga", ""}},
		{"  mary   kasango  ", JudgeName{"Mary Kasango", "Mary", "Kasango"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseJudgeName(tt.raw), tt.raw)
	}
}

func TestCaseTypeCode(t *testing.T) {
	assert.Equal(t, "CIVIL_SUIT", CaseTypeCode("Civil Suit"))
	assert.Equal(t, "CRIMINAL_APPEAL", CaseTypeCode(" Criminal -- Appeal "))
	assert.Equal(t, "HCCA_2019", CaseTypeCode("hcca/2019"))
}

func TestCourtKeywords(t *testing.T) {
	assert.Equal(t, map[string]bool{"milimani": true, "commercial": true}, CourtKeywords("The Milimani Law Courts (Commercial)"))
	assert.Empty(t, CourtKeywords("The Court of Law"))
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "Milimani Civil", NormalizeName("  MILIMANI \t civil "))
	assert.Equal(t, "", NormalizeName("   "))
}
