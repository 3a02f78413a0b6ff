package models

// Usage represents token usage reported for one model call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// SumUsage returns the field-wise sum of a and b. A nil side counts as zero.
func SumUsage(a, b *Usage) Usage {
	var out Usage
	for _, u := range []*Usage{a, b} {
		if u == nil {
			continue
		}
		out.PromptTokens += u.PromptTokens
		out.CompletionTokens += u.CompletionTokens
		out.TotalTokens += u.TotalTokens
	}
	return out
}

// TokenUsage holds the token usage of the story call, the evaluation call,
// and their field-wise total.
type TokenUsage struct {
	Story      *Usage `json:"story,omitempty"`
	Evaluation *Usage `json:"evaluation,omitempty"`
	Total      Usage  `json:"total"`
}

// NewTokenUsage builds a TokenUsage whose Total is derived from both sides.
func NewTokenUsage(story, evaluation *Usage) TokenUsage {
	return TokenUsage{
		Story:      cloneUsage(story),
		Evaluation: cloneUsage(evaluation),
		Total:      SumUsage(story, evaluation),
	}
}

// Present reports whether either side carries usage data.
func (t TokenUsage) Present() bool {
	return t.Story != nil || t.Evaluation != nil
}

func cloneUsage(u *Usage) *Usage {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}
