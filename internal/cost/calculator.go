package cost

import (
	"fmt"
	"strings"
)

type PricingTable struct {
	InputPricePerMillion  float64
	OutputPricePerMillion float64
}

// DefaultModel is the pricing fallback for model IDs missing from the table.
// A stale price table must never block generation, so unknown models are
// estimated against this one.
const DefaultModel = "gemini-2.5-flash"

// https://ai.google.dev/gemini-api/docs/pricing
var pricing = map[string]PricingTable{
	"gemini-1.5-flash":   {InputPricePerMillion: 0.075, OutputPricePerMillion: 0.30},
	"gemini-1.5-pro":     {InputPricePerMillion: 1.25, OutputPricePerMillion: 5.00},
	"gemini-2.5-flash":   {InputPricePerMillion: 0.10, OutputPricePerMillion: 0.40},
	"gemini-2.5-pro":     {InputPricePerMillion: 1.25, OutputPricePerMillion: 10.00},
	"gemini-3-flash-preview": {InputPricePerMillion: 0.50, OutputPricePerMillion: 3.00},
	"gemini-3-pro-preview":   {InputPricePerMillion: 2.00, OutputPricePerMillion: 12.00},
}

type Calculator struct{}

func NewCalculator() *Calculator {
	return &Calculator{}
}

// Cost computes the USD cost for a call. The second return value reports
// whether the model was found in the table; when false the default model's
// pricing was used.
func (c *Calculator) Cost(model string, inputTokens, outputTokens int) (float64, bool) {
	model = strings.ToLower(model)

	modelPricing, known := pricing[model]
	if !known {
		modelPricing = pricing[DefaultModel]
	}

	inputCost := (float64(inputTokens) / 1_000_000) * modelPricing.InputPricePerMillion
	outputCost := (float64(outputTokens) / 1_000_000) * modelPricing.OutputPricePerMillion

	return inputCost + outputCost, known
}

// GetPricing returns the pricing table for a model
func (c *Calculator) GetPricing(model string) (PricingTable, error) {
	model = strings.ToLower(model)

	modelPricing, exists := pricing[model]
	if !exists {
		return PricingTable{}, fmt.Errorf("model %s not found in pricing table", model)
	}

	return modelPricing, nil
}

// AddPricing allows adding pricing dynamically (useful for testing or new models)
func (c *Calculator) AddPricing(model string, table PricingTable) {
	pricing[strings.ToLower(model)] = table
}
