// Package errors provides the classified error primitives used across the notes builder.
//
// Errors carry a category (config, stage, notes, feeds, ...), a severity and a retry
// hint. The CLI adapter maps categories to process exit codes.
//
//	err := errors.WrapError(cause, errors.CategoryFeeds, "write feed").
//		WithContext("path", path).
//		Build()
package errors
