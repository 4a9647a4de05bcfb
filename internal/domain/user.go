package domain

import "time"

// SystemUserEmail identifies the fallback user imports are attributed to when
// no initiating user is known.
const SystemUserEmail = "system@caseload-importer.local"

// User is an identity that imports can be attributed to.
type User struct {
	ID        string    `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	Name      string    `json:"name" db:"name"`
	Role      string    `json:"role" db:"role"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
