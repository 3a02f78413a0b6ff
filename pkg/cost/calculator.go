// Package cost prices token usage and derives cost-efficiency ratios.
package cost

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/storyeval/storyeval/pkg/models"
)

// DisplayPlaces is the number of decimal places costs are rounded to for display.
const DisplayPlaces = 6

// DefaultCurrency is used when the pricing table does not name one.
const DefaultCurrency = "USD"

// DefaultRate is the conservative fallback for models missing from the table.
var DefaultRate = models.Rate{InputPerMillion: 0.002, OutputPerMillion: 0.008}

// Calculator computes the cost of model calls from an injected pricing table.
type Calculator struct {
	currency string
	fallback models.Rate
	rates    map[string]models.Rate
	order    []string
}

// New builds a Calculator. A zero default rate in the table is replaced by DefaultRate.
func New(table models.PricingTable) *Calculator {
	c := &Calculator{
		currency: table.Currency,
		fallback: table.Default,
		rates:    make(map[string]models.Rate, len(table.Models)),
	}
	if c.currency == "" {
		c.currency = DefaultCurrency
	}
	if c.fallback == (models.Rate{}) {
		c.fallback = DefaultRate
	}
	for _, p := range table.Models {
		if _, seen := c.rates[p.Model]; !seen {
			c.order = append(c.order, p.Model)
		}
		c.rates[p.Model] = models.Rate{InputPerMillion: p.InputPerMillion, OutputPerMillion: p.OutputPerMillion}
	}
	return c
}

// Currency returns the currency all costs are expressed in.
func (c *Calculator) Currency() string {
	return c.currency
}

func (c *Calculator) rate(model string) models.Rate {
	if r, ok := c.rates[model]; ok {
		return r
	}
	return c.fallback
}

// Cost prices a single call. Missing usage and negative counts count as zero;
// unknown models use the fallback rate. Results are unrounded.
func (c *Calculator) Cost(model string, usage *models.Usage) models.Cost {
	var prompt, completion int
	if usage != nil {
		prompt = max(usage.PromptTokens, 0)
		completion = max(usage.CompletionTokens, 0)
	}

	r := c.rate(model)
	input := float64(prompt) / 1_000_000 * r.InputPerMillion
	output := float64(completion) / 1_000_000 * r.OutputPerMillion

	return models.Cost{
		Model:      model,
		InputCost:  input,
		OutputCost: output,
		TotalCost:  input + output,
		Currency:   c.currency,
		Tokens: models.TokenCounts{
			Prompt:     prompt,
			Completion: completion,
			Total:      prompt + completion,
		},
	}
}

// TotalCosts prices the story and evaluation calls and sums them field-wise.
func (c *Calculator) TotalCosts(storyModel string, storyUsage *models.Usage, evalModel string, evalUsage *models.Usage) models.Costs {
	story := c.Cost(storyModel, storyUsage)
	eval := c.Cost(evalModel, evalUsage)
	return models.Costs{
		Story:      story,
		Evaluation: eval,
		Total: models.Cost{
			InputCost:  story.InputCost + eval.InputCost,
			OutputCost: story.OutputCost + eval.OutputCost,
			TotalCost:  story.TotalCost + eval.TotalCost,
			Currency:   c.currency,
			Tokens: models.TokenCounts{
				Prompt:     story.Tokens.Prompt + eval.Tokens.Prompt,
				Completion: story.Tokens.Completion + eval.Tokens.Completion,
				Total:      story.Tokens.Total + eval.Tokens.Total,
			},
		},
	}
}

// Pricing returns the rate applied to model, reporting whether it was listed.
func (c *Calculator) Pricing(model string) (models.ModelPricing, bool) {
	r, ok := c.rates[model]
	if !ok {
		r = c.fallback
	}
	return models.ModelPricing{Model: model, InputPerMillion: r.InputPerMillion, OutputPerMillion: r.OutputPerMillion}, ok
}

// AllPricing returns the listed models in configuration order.
func (c *Calculator) AllPricing() []models.ModelPricing {
	out := make([]models.ModelPricing, 0, len(c.order))
	for _, m := range c.order {
		p, _ := c.Pricing(m)
		out = append(out, p)
	}
	return out
}

// Round rounds v half away from zero to places decimals.
func Round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

// Display returns a copy of c with every amount rounded to DisplayPlaces.
func Display(c models.Cost) models.Cost {
	c.InputCost = Round(c.InputCost, DisplayPlaces)
	c.OutputCost = Round(c.OutputCost, DisplayPlaces)
	c.TotalCost = Round(c.TotalCost, DisplayPlaces)
	return c
}

// Format renders a dollar amount with precision scaled to its magnitude.
func Format(v float64) string {
	switch {
	case v == 0:
		return "$0.00"
	case v < 0.01:
		return fmt.Sprintf("$%.6f", v)
	case v < 1:
		return fmt.Sprintf("$%.4f", v)
	default:
		return fmt.Sprintf("$%.2f", v)
	}
}

// DefaultTable is the built-in price list, per 1M tokens.
func DefaultTable() models.PricingTable {
	return models.PricingTable{
		Currency: DefaultCurrency,
		Default:  DefaultRate,
		Models: []models.ModelPricing{
			{Model: "gpt-4.1-2025-04-14", InputPerMillion: 2, OutputPerMillion: 8},
			{Model: "gpt-4.1-mini-2025-04-14", InputPerMillion: 0.4, OutputPerMillion: 1.6},
			{Model: "gpt-4.1-nano-2025-04-14", InputPerMillion: 0.1, OutputPerMillion: 0.4},
			{Model: "o4-mini-2025-04-16", InputPerMillion: 1.1, OutputPerMillion: 4.4},
		},
	}
}
