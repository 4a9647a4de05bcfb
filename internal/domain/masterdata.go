package domain

import "time"

// CourtType classifies a court in the judicial hierarchy.
type CourtType string

const (
	CourtSupreme          CourtType = "SUPREME_COURT"
	CourtOfAppeal         CourtType = "COURT_OF_APPEAL"
	CourtHigh             CourtType = "HIGH_COURT"
	CourtEmploymentLabour CourtType = "EMPLOYMENT_LABOUR_COURT"
	CourtEnvironmentLand  CourtType = "ENVIRONMENT_LAND_COURT"
	CourtMagistrate       CourtType = "MAGISTRATE_COURT"
	CourtKadhi            CourtType = "KADHI_COURT"
	CourtSmallClaims      CourtType = "SMALL_CLAIMS_COURT"
	CourtTribunal         CourtType = "TRIBUNAL"
)

// Court is master data keyed by normalized name and court code.
type Court struct {
	ID             string    `json:"id" db:"id"`
	CourtName      string    `json:"court_name" db:"court_name"`
	NormalizedName string    `json:"normalized_name" db:"normalized_name"`
	CourtCode      string    `json:"court_code" db:"court_code"`
	CourtType      CourtType `json:"court_type" db:"court_type"`
	IsActive       bool      `json:"is_active" db:"is_active"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// Judge is master data keyed by normalized full name.
type Judge struct {
	ID             string    `json:"id" db:"id"`
	FullName       string    `json:"full_name" db:"full_name"`
	NormalizedName string    `json:"normalized_name" db:"normalized_name"`
	FirstName      string    `json:"first_name" db:"first_name"`
	LastName       string    `json:"last_name" db:"last_name"`
	IsActive       bool      `json:"is_active" db:"is_active"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// CaseType is master data keyed by normalized name and generated code.
type CaseType struct {
	ID             string    `json:"id" db:"id"`
	CaseTypeName   string    `json:"case_type_name" db:"case_type_name"`
	NormalizedName string    `json:"normalized_name" db:"normalized_name"`
	CaseTypeCode   string    `json:"case_type_code" db:"case_type_code"`
	IsActive       bool      `json:"is_active" db:"is_active"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// MasterDataStats counts new vs. existing master data resolved during one run.
type MasterDataStats struct {
	CourtsCreated     int `json:"courts_created"`
	CourtsExisting    int `json:"courts_existing"`
	JudgesCreated     int `json:"judges_created"`
	JudgesExisting    int `json:"judges_existing"`
	CaseTypesCreated  int `json:"case_types_created"`
	CaseTypesExisting int `json:"case_types_existing"`
}
