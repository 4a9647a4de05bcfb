// Package job reports import progress as a sequence of named phases and
// submits import jobs to the queue.
//
// Status writes are best effort: a cache failure is logged and swallowed so
// that progress reporting can never abort an import.
package job
