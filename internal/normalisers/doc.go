// Package normalisers turns files read from disk into documents.
//
// Each sub-package handles a family of MIME types. The Registry dispatches
// on the type detected from the file extension; anything unrecognised is
// treated as plain text.
package normalisers
