package generator

import (
	"context"
	"fmt"
)

// Static is a deterministic Generator for development and tests. It fabricates
// objective questions whose correct answer is always option A.
type Static struct{}

func (Static) Generate(_ context.Context, req Request) ([]Question, error) {
	count := req.Count
	if count <= 0 {
		count = 5
	}
	questions := make([]Question, 0, count)
	for i := 0; i < count; i++ {
		questions = append(questions, Question{
			Type:   TypeObjective,
			Prompt: fmt.Sprintf("Sample question %d on %s", i+1, req.Topic),
			Options: []string{
				"A) first", "B) second", "C) third", "D) fourth",
			},
			CorrectAnswer: "A",
		})
	}
	return questions, nil
}
