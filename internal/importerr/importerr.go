package importerr

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/ignite/caseload-importer/internal/domain"
)

// Kind tags an ImportError.
type Kind string

const (
	KindValidation    Kind = "validation_error"
	KindMissingFields Kind = "missing_fields_error"
	KindDate          Kind = "date_validation_error"
	KindDataFormat    Kind = "data_format_error"
	KindDatabase      Kind = "database_error"
	KindCaseCreate    Kind = "case_create_error"
	KindForeignKey    Kind = "foreign_key_error"
	KindDuplicate     Kind = "duplicate_error"
	KindConnection    Kind = "connection_error"
	KindEarlyFailure  Kind = "early_failure"
	KindSystem        Kind = "system_error"
)

// Category is the coarse classification of any error.
type Category string

const (
	CategoryValidation Category = "validation"
	CategoryDatabase   Category = "database"
	CategoryBusiness   Category = "business"
	CategorySystem     Category = "system"
)

// ImportError is a row-attributable failure.
type ImportError struct {
	Kind       Kind
	RowNumber  int
	Field      string
	Message    string
	Suggestion string
	RawValue   string
	Cause      error
}

func (e *ImportError) Error() string {
	var b strings.Builder
	if e.RowNumber > 0 {
		fmt.Fprintf(&b, "row %d: ", e.RowNumber)
	}
	b.WriteString(string(e.Kind))
	if e.Field != "" {
		fmt.Fprintf(&b, " [%s]", e.Field)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	return b.String()
}

func (e *ImportError) Unwrap() error { return e.Cause }

// Category derives the coarse category from the kind.
func (e *ImportError) Category() Category {
	switch e.Kind {
	case KindValidation, KindMissingFields, KindDate, KindDataFormat, KindEarlyFailure:
		return CategoryValidation
	case KindDatabase, KindCaseCreate, KindForeignKey, KindDuplicate, KindConnection:
		return CategoryDatabase
	default:
		return CategorySystem
	}
}

// LogEntry converts the error into the persisted batch log shape.
func (e *ImportError) LogEntry() domain.ErrorLogEntry {
	return domain.ErrorLogEntry{
		RowNumber:  e.RowNumber,
		ErrorType:  string(e.Kind),
		Message:    e.Message,
		Field:      e.Field,
		Suggestion: e.Suggestion,
		RawValue:   e.RawValue,
	}
}

// New builds an ImportError with the default suggestion for kind.
func New(kind Kind, row int, field, msg string) *ImportError {
	return &ImportError{Kind: kind, RowNumber: row, Field: field, Message: msg, Suggestion: defaultSuggestion(kind, field)}
}

// IssueCode classifies a schema issue reported by the validator.
type IssueCode string

const (
	IssueRequired IssueCode = "required"
	IssueDate     IssueCode = "date"
	IssueFormat   IssueCode = "format"
	IssueRange    IssueCode = "range"
	IssueLength   IssueCode = "length"
)

// FieldIssue is one schema failure for one field.
type FieldIssue struct {
	Field      string
	Code       IssueCode
	Message    string
	Suggestion string
	RawValue   string
}

// FromFieldIssue turns a schema issue into a row error.
func FromFieldIssue(issue FieldIssue, row int) *ImportError {
	kind := KindValidation
	switch issue.Code {
	case IssueRequired:
		kind = KindMissingFields
	case IssueDate:
		kind = KindDate
	case IssueFormat:
		kind = KindDataFormat
	}
	e := New(kind, row, issue.Field, issue.Message)
	e.RawValue = issue.RawValue
	if issue.Suggestion != "" {
		e.Suggestion = issue.Suggestion
	}
	return e
}

// FromDatabase classifies a persistence failure that happened while
// processing row. An *ImportError is returned unchanged apart from the row.
func FromDatabase(err error, row int) *ImportError {
	if err == nil {
		return nil
	}
	var ie *ImportError
	if errors.As(err, &ie) {
		if ie.RowNumber == 0 {
			ie.RowNumber = row
		}
		return ie
	}

	kind := classifyDatabase(err)
	return &ImportError{
		Kind:       kind,
		RowNumber:  row,
		Message:    safeDatabaseMessage(kind),
		Suggestion: defaultSuggestion(kind, ""),
		Cause:      err,
	}
}

func classifyDatabase(err error) Kind {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code == "23503":
			return KindForeignKey
		case pqErr.Code == "23505":
			return KindDuplicate
		case pqErr.Code.Class() == "08":
			return KindConnection
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "foreign key"):
		return KindForeignKey
	case strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique"):
		return KindDuplicate
	case strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "bad connection") ||
		strings.Contains(msg, "dial tcp"):
		return KindConnection
	case strings.Contains(msg, "case") &&
		(strings.Contains(msg, "create") || strings.Contains(msg, "insert")):
		return KindCaseCreate
	default:
		return KindDatabase
	}
}

func safeDatabaseMessage(kind Kind) string {
	switch kind {
	case KindForeignKey:
		return "Referenced record does not exist"
	case KindDuplicate:
		return "Record already exists"
	case KindConnection:
		return "Database connection problem"
	case KindCaseCreate:
		return "Case could not be created"
	default:
		return "A database error occurred"
	}
}

func defaultSuggestion(kind Kind, field string) string {
	switch kind {
	case KindMissingFields:
		if field != "" {
			return fmt.Sprintf("Provide a value for %s", field)
		}
		return "Fill in the required columns"
	case KindDate:
		return "Use day 1-31, a 3-letter month (Jan, Feb, ...) and a 4-digit year"
	case KindDataFormat:
		return "Check the value format for this column"
	case KindValidation:
		return "Correct the value and re-import the row"
	case KindForeignKey:
		return "Check that the court, judge and case type values are valid"
	case KindDuplicate:
		return "This record already exists and was not imported again"
	case KindConnection:
		return "Retry the import once the database is reachable"
	case KindCaseCreate:
		return "Check the case identification and filed date columns"
	case KindEarlyFailure:
		return "Check that the file uses the expected column layout"
	case KindDatabase:
		return "Retry the import; contact support if it keeps failing"
	default:
		return "Contact support with the batch id"
	}
}
