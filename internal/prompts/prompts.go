// Package prompts holds the system instructions given to the summarizer and
// judge models.
package prompts

import (
	_ "embed"
)

//go:embed summarizer.md
var summarizer string

//go:embed judge.md
var judge string

// Summarizer returns the summarizer system instruction.
func Summarizer() string { return summarizer }

// Judge returns the judge system instruction.
func Judge() string { return judge }
