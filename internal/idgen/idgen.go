// Package idgen generates short random identifiers.
package idgen

import gonanoid "github.com/matoous/go-nanoid/v2"

const (
	StepIDLength    = 9
	DatasetIDLength = 15
)

// alphabet keeps ids lower-case so they read well in URLs and logs.
const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// StepID identifies a transformation step within its pipeline.
func StepID() string {
	return gonanoid.MustGenerate(alphabet, StepIDLength)
}

// DatasetID identifies a cached upload.
func DatasetID() string {
	return gonanoid.MustGenerate(alphabet, DatasetIDLength)
}
