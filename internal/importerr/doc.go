// Package importerr is the error taxonomy of the import pipeline.
//
// Row-level problems are values of *ImportError carrying an explicit Kind;
// they are recorded against the batch and never abort a run on their own.
// Run-level failures are plain errors wrapping one of the sentinels below,
// and UserMessage turns any of them into text that is safe to show an
// operator. Low-level persistence errors are classified by PostgreSQL
// SQLSTATE first and by message pattern second.
package importerr
