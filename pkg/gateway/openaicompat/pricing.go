package openaicompat

// modelPricing is USD per one million tokens.
type modelPricing struct {
	Input  float64
	Output float64
}

// pricing covers the models the gateway is expected to run against.
// Unknown models fall back to defaultPricingModel so cost estimates stay
// conservative rather than silently zero.
var pricing = map[string]modelPricing{
	"gpt-4-turbo-preview": {Input: 10.00, Output: 30.00},
	"gpt-4":               {Input: 30.00, Output: 60.00},
	"gpt-4o":              {Input: 2.50, Output: 10.00},
	"gpt-4o-mini":         {Input: 0.15, Output: 0.60},
	"gpt-3.5-turbo":       {Input: 0.50, Output: 1.50},
}

const defaultPricingModel = "gpt-4-turbo-preview"

// CostFor estimates the USD cost of a call against the given model.
func CostFor(model string, inputTokens, outputTokens int) float64 {
	p, ok := pricing[model]
	if !ok {
		p = pricing[defaultPricingModel]
	}
	return float64(inputTokens)/1_000_000*p.Input + float64(outputTokens)/1_000_000*p.Output
}
