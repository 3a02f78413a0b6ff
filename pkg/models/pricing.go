package models

// ModelPricing defines per-1M token prices for a model.
type ModelPricing struct {
	Model            string  `json:"model" yaml:"model" validate:"required"`
	InputPerMillion  float64 `json:"inputPricePerM" yaml:"input_per_million" validate:"gte=0"`
	OutputPerMillion float64 `json:"outputPricePerM" yaml:"output_per_million" validate:"gte=0"`
}

// Rate is a bare input/output price pair, used for the fallback rate.
type Rate struct {
	InputPerMillion  float64 `json:"inputPricePerM" yaml:"input_per_million" validate:"gte=0"`
	OutputPerMillion float64 `json:"outputPricePerM" yaml:"output_per_million" validate:"gte=0"`
}

// PricingTable is the injected price list the cost model is built from.
type PricingTable struct {
	Currency string         `json:"currency" yaml:"currency"`
	Default  Rate           `json:"default" yaml:"default"`
	Models   []ModelPricing `json:"models" yaml:"models" validate:"dive"`
}

// Cost is the monetary breakdown of a single model call.
type Cost struct {
	Model      string      `json:"model,omitempty"`
	InputCost  float64     `json:"inputCost"`
	OutputCost float64     `json:"outputCost"`
	TotalCost  float64     `json:"totalCost"`
	Currency   string      `json:"currency"`
	Tokens     TokenCounts `json:"tokens"`
}

// TokenCounts are the token counts a Cost was computed from.
type TokenCounts struct {
	Prompt     int `json:"prompt"`
	Completion int `json:"completion"`
	Total      int `json:"total"`
}

// Costs groups the story, evaluation and combined cost of one entry.
type Costs struct {
	Story      Cost `json:"story"`
	Evaluation Cost `json:"evaluation"`
	Total      Cost `json:"total"`
}

// CostEfficiency relates cost to output size and quality.
type CostEfficiency struct {
	CostPerCharacter    float64 `json:"costPerCharacter"`
	CostPerWord         float64 `json:"costPerWord"`
	CostPerQualityPoint float64 `json:"costPerQualityPoint"`
	QualityPerDollar    float64 `json:"qualityPerDollar"`
}
