package generator

import "fmt"

const systemPrompt = `You generate quiz questions for a gamified learning platform.

Rules:
1. Questions must test real understanding of the given topic.
2. Objective questions have exactly 4 options and a single correct answer.
3. Subjective questions have no options; include a suggested model answer.
4. Roughly 1 in 5 questions should be subjective, the rest objective.
5. Respond with a raw JSON array only, no prose and no markdown fences.

Expected JSON shape:

[
  {
    "type": "objective",
    "prompt": "<question text>",
    "options": ["A) ...", "B) ...", "C) ...", "D) ..."],
    "correct_answer": "B"
  },
  {
    "type": "subjective",
    "prompt": "<question text>",
    "suggested_answer": "<model answer>"
  }
]`

func buildUserPrompt(req Request) string {
	prompt := fmt.Sprintf(
		"Generate %d questions on the topic %q at %s scope.",
		req.Count, req.Topic, req.Scope,
	)
	if req.ObjectiveOnly {
		prompt += " Every question must be objective; do not generate subjective questions."
	}
	return prompt
}
