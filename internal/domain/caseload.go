package domain

import "time"

// CaseStatus enumerates the lifecycle of a court case.
type CaseStatus string

const (
	CaseActive CaseStatus = "ACTIVE"
	CaseClosed CaseStatus = "CLOSED"
)

// PartyCounts is the applicant/defendant breakdown recorded on a case.
type PartyCounts struct {
	MaleApplicant         int `json:"male_applicant" db:"male_applicant"`
	FemaleApplicant       int `json:"female_applicant" db:"female_applicant"`
	OrganizationApplicant int `json:"organization_applicant" db:"organization_applicant"`
	MaleDefendant         int `json:"male_defendant" db:"male_defendant"`
	FemaleDefendant       int `json:"female_defendant" db:"female_defendant"`
	OrganizationDefendant int `json:"organization_defendant" db:"organization_defendant"`
}

// TotalApplicants sums all applicant parties.
func (p PartyCounts) TotalApplicants() int {
	return p.MaleApplicant + p.FemaleApplicant + p.OrganizationApplicant
}

// TotalDefendants sums all defendant parties.
func (p PartyCounts) TotalDefendants() int {
	return p.MaleDefendant + p.FemaleDefendant + p.OrganizationDefendant
}

// Case is identified by its natural key (CaseNumber, CourtName).
type Case struct {
	ID                     string     `json:"id" db:"id"`
	CaseNumber             string     `json:"case_number" db:"case_number"`
	CourtName              string     `json:"court_name" db:"court_name"`
	CourtID                string     `json:"court_id" db:"court_id"`
	OriginalCourtID        *string    `json:"original_court_id,omitempty" db:"original_court_id"`
	OriginalCaseNumber     string     `json:"original_case_number,omitempty" db:"original_case_number"`
	OriginalYear           *int       `json:"original_year,omitempty" db:"original_year"`
	CaseTypeID             string     `json:"case_type_id" db:"case_type_id"`
	FiledDate              time.Time  `json:"filed_date" db:"filed_date"`
	PartyCounts            `json:"parties"`
	Status                 CaseStatus `json:"status" db:"status"`
	HasLegalRepresentation bool       `json:"has_legal_representation" db:"has_legal_representation"`
	LastActivityDate       time.Time  `json:"last_activity_date" db:"last_activity_date"`
	TotalActivities        int        `json:"total_activities" db:"total_activities"`
	CreatedBy              string     `json:"created_by" db:"created_by"`
	CreatedAt              time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at" db:"updated_at"`
}

// CaseJudgeAssignment links a judge to a case. The first judge listed on the
// row that created the case is primary.
type CaseJudgeAssignment struct {
	CaseID    string `json:"case_id" db:"case_id"`
	JudgeID   string `json:"judge_id" db:"judge_id"`
	IsPrimary bool   `json:"is_primary" db:"is_primary"`
}

// ActivityKey is the natural duplicate key of a CaseActivity.
type ActivityKey struct {
	CaseID         string
	ActivityDate   time.Time
	ActivityType   string
	PrimaryJudgeID string
}

// CaseActivity is one hearing/mention recorded against a case. Immutable once
// created.
type CaseActivity struct {
	ID                     string     `json:"id" db:"id"`
	CaseID                 string     `json:"case_id" db:"case_id"`
	ActivityDate           time.Time  `json:"activity_date" db:"activity_date"`
	ActivityType           string     `json:"activity_type" db:"activity_type"`
	Outcome                string     `json:"outcome" db:"outcome"`
	ReasonForAdjournment   string     `json:"reason_for_adjournment,omitempty" db:"reason_for_adjournment"`
	NextHearingDate        *time.Time `json:"next_hearing_date,omitempty" db:"next_hearing_date"`
	PrimaryJudgeID         string     `json:"primary_judge_id" db:"primary_judge_id"`
	HasLegalRepresentation bool       `json:"has_legal_representation" db:"has_legal_representation"`
	ApplicantWitnesses     int        `json:"applicant_witnesses" db:"applicant_witnesses"`
	DefendantWitnesses     int        `json:"defendant_witnesses" db:"defendant_witnesses"`
	CustodyStatus          int        `json:"custody_status" db:"custody_status"`
	Details                string     `json:"details,omitempty" db:"details"`
	ImportBatchID          string     `json:"import_batch_id" db:"import_batch_id"`
	CreatedAt              time.Time  `json:"created_at" db:"created_at"`
}

// Key returns the natural duplicate key of the activity.
func (a *CaseActivity) Key() ActivityKey {
	return ActivityKey{
		CaseID:         a.CaseID,
		ActivityDate:   a.ActivityDate,
		ActivityType:   a.ActivityType,
		PrimaryJudgeID: a.PrimaryJudgeID,
	}
}
