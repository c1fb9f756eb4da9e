// Package generator wraps the external question-generation collaborator.
// The engine treats it as a black box: generated questions are persisted
// once and referenced by id afterwards, never regenerated mid-attempt.
package generator

import "context"

// QuestionType mirrors the engine's question kinds without importing them.
type QuestionType string

const (
	TypeObjective  QuestionType = "objective"
	TypeSubjective QuestionType = "subjective"
)

// Question is the structured output of the collaborator.
type Question struct {
	Type            QuestionType `json:"type"`
	Prompt          string       `json:"prompt"`
	Options         []string     `json:"options,omitempty"`
	CorrectAnswer   string       `json:"correct_answer,omitempty"`
	SuggestedAnswer string       `json:"suggested_answer,omitempty"`
}

// Request describes what to generate.
type Request struct {
	Topic string
	Scope string // lesson, module or course
	Count int

	// ObjectiveOnly suppresses subjective questions, for flows that must be
	// auto-scored end to end.
	ObjectiveOnly bool
}

// Generator produces a fixed question set for a topic.
type Generator interface {
	Generate(ctx context.Context, req Request) ([]Question, error)
}
