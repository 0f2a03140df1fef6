package openaicompat

import (
	"math"
	"testing"
)

func TestCostFor(t *testing.T) {
	tests := []struct {
		name   string
		model  string
		input  int
		output int
		want   float64
	}{
		{"gpt-4 small call", "gpt-4", 1000, 500, 1000.0/1e6*30.00 + 500.0/1e6*60.00},
		{"gpt-4o-mini", "gpt-4o-mini", 10000, 2000, 10000.0/1e6*0.15 + 2000.0/1e6*0.60},
		{"gpt-3.5-turbo", "gpt-3.5-turbo", 1_000_000, 1_000_000, 0.50 + 1.50},
		{"unknown model falls back", "mystery-model", 1_000_000, 0, 10.00},
		{"zero usage", "gpt-4", 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CostFor(tt.model, tt.input, tt.output)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("CostFor(%q, %d, %d) = %v, want %v", tt.model, tt.input, tt.output, got, tt.want)
			}
		})
	}
}
