// Package cases upserts Cases and creates Case Activities from validated
// rows, always inside a transaction owned by the caller.
//
// A Case is identified by (case number, court name). Later rows for the same
// case update its activity statistics and never rewrite its identity, party
// counts or filing details. An activity is unique on its natural key
// (case, activity date, activity type, primary judge); a second row with the
// same key is reported as a duplicate, not as an error.
package cases
