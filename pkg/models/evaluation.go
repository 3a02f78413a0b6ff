package models

import (
	"encoding/json"
	"math"
	"strings"
)

// ParseFailure is the error text recorded when judge output is not valid JSON.
const ParseFailure = "Failed to parse evaluation"

// OverallKey is the averageScores key holding the mean overall score.
const OverallKey = "overall"

// RubricCriteria lists the criterion keys each evaluation tier asks the judge for.
var RubricCriteria = map[Complexity][]string{
	ComplexitySimple:  {"contentQuality", "writingStyle", "creativity", "emotionalImpact"},
	ComplexityComplex: {"contentQuality", "writingStyle", "creativity", "emotionalImpact"},
	ComplexityAdvanced: {
		"narrativeCraft", "literaryTechnique", "thematicDepth",
		"worldBuilding", "characterDevelopment", "emotionalImpact",
	},
}

// Criterion is the judge's score and feedback for one rubric criterion.
type Criterion struct {
	Score    *float64 `json:"score,omitempty"`
	Feedback string   `json:"feedback,omitempty"`
}

// Evaluation is either a rubric result or a failure marker.
type Evaluation struct {
	Criteria        map[string]Criterion `json:"criteria,omitempty"`
	OverallScore    *float64             `json:"overallScore,omitempty"`
	Summary         string               `json:"summary,omitempty"`
	LiteraryMerits  string               `json:"literaryMerits,omitempty"`
	Recommendations string               `json:"recommendations,omitempty"`

	Error       string `json:"error,omitempty"`
	Message     string `json:"message,omitempty"`
	RawResponse string `json:"rawResponse,omitempty"`
}

// Succeeded reports whether the evaluation carries a usable overall score.
func (e *Evaluation) Succeeded() bool {
	if e == nil || e.Error != "" {
		return false
	}
	_, ok := e.Overall()
	return ok
}

// Overall returns the overall score when it is a finite number.
func (e *Evaluation) Overall() (float64, bool) {
	if e == nil || e.OverallScore == nil {
		return 0, false
	}
	return finite(*e.OverallScore)
}

// CriterionScore returns the score for name when it is a finite number.
func (e *Evaluation) CriterionScore(name string) (float64, bool) {
	if e == nil {
		return 0, false
	}
	c, ok := e.Criteria[name]
	if !ok || c.Score == nil {
		return 0, false
	}
	return finite(*c.Score)
}

// FailedEvaluation builds a failure marker.
func FailedEvaluation(errText, message string) Evaluation {
	return Evaluation{Error: errText, Message: message}
}

// Score returns a pointer to v, for building Criterion and Evaluation values.
func Score(v float64) *float64 {
	return &v
}

var evaluationTextFields = map[string]bool{
	"overallScore":    true,
	"summary":         true,
	"literaryMerits":  true,
	"recommendations": true,
	"error":           true,
	"message":         true,
	"rawResponse":     true,
	"tokenUsage":      true,
}

// ParseEvaluation decodes the flattened judge response, where every
// criterion is a top-level {"score", "feedback"} object. Output that is
// not a JSON object yields a failure marker holding the raw text.
func ParseEvaluation(raw []byte) Evaluation {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Evaluation{
			Error:       ParseFailure,
			Message:     err.Error(),
			RawResponse: strings.TrimSpace(string(raw)),
		}
	}

	var ev Evaluation
	decodeString(fields["summary"], &ev.Summary)
	decodeString(fields["literaryMerits"], &ev.LiteraryMerits)
	decodeString(fields["recommendations"], &ev.Recommendations)
	decodeString(fields["error"], &ev.Error)
	decodeString(fields["message"], &ev.Message)
	decodeString(fields["rawResponse"], &ev.RawResponse)

	ev.OverallScore = decodeScore(fields["overallScore"])

	for name, v := range fields {
		if evaluationTextFields[name] {
			continue
		}
		var c struct {
			Score    json.RawMessage `json:"score"`
			Feedback string          `json:"feedback"`
		}
		if json.Unmarshal(v, &c) != nil {
			continue
		}
		score := decodeScore(c.Score)
		if score == nil {
			continue
		}
		if ev.Criteria == nil {
			ev.Criteria = make(map[string]Criterion)
		}
		ev.Criteria[name] = Criterion{Score: score, Feedback: c.Feedback}
	}
	return ev
}

// decodeScore returns nil unless raw holds a JSON number. A JSON null
// decodes without error but leaves the pointer nil.
func decodeScore(raw json.RawMessage) *float64 {
	if len(raw) == 0 {
		return nil
	}
	var score *float64
	if json.Unmarshal(raw, &score) != nil {
		return nil
	}
	return score
}

// Clone returns a deep copy of e.
func (e Evaluation) Clone() Evaluation {
	out := e
	if e.OverallScore != nil {
		out.OverallScore = Score(*e.OverallScore)
	}
	if e.Criteria != nil {
		out.Criteria = make(map[string]Criterion, len(e.Criteria))
		for k, c := range e.Criteria {
			if c.Score != nil {
				c.Score = Score(*c.Score)
			}
			out.Criteria[k] = c
		}
	}
	return out
}

func decodeString(raw json.RawMessage, dst *string) {
	if len(raw) == 0 {
		return
	}
	_ = json.Unmarshal(raw, dst)
}

func finite(v float64) (float64, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
