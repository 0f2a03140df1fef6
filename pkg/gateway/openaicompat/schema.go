package openaicompat

import (
	"encoding/json"
	"strings"

	"github.com/codewright-io/codewright/pkg/api"
	"github.com/codewright-io/codewright/pkg/gateway"
)

// Structured output shapes the backend must produce. Decoding is lenient
// about extra fields (models like to editorialize) but strict about the
// required ones.

type planOutput struct {
	Understanding string `json:"understanding"`
	Approach      string `json:"approach"`
}

type testsOutput struct {
	TestCases []api.TestCase `json:"test_cases"`
}

type codeOutput struct {
	Code string `json:"code"`
}

type analysisOutput struct {
	Diagnosis string `json:"diagnosis"`
}

func decodePlan(content string) (*planOutput, error) {
	var out planOutput
	if err := decodeJSON(content, &out); err != nil {
		return nil, err
	}
	if out.Understanding == "" || out.Approach == "" {
		return nil, gateway.NewFailure(gateway.FailureMalformedOutput,
			"plan response missing understanding or approach", nil)
	}
	return &out, nil
}

func decodeTests(content string) (*testsOutput, error) {
	var out testsOutput
	if err := decodeJSON(content, &out); err != nil {
		return nil, err
	}
	if len(out.TestCases) == 0 {
		return nil, gateway.NewFailure(gateway.FailureMalformedOutput,
			"test inference response contains no test cases", nil)
	}
	for _, tc := range out.TestCases {
		if tc.Description == "" || tc.Inputs == nil {
			return nil, gateway.NewFailure(gateway.FailureMalformedOutput,
				"test inference response contains an incomplete test case", nil)
		}
	}
	return &out, nil
}

func decodeCode(content string) (*codeOutput, error) {
	var out codeOutput
	if err := decodeJSON(content, &out); err != nil {
		return nil, err
	}
	code := strings.TrimSpace(out.Code)
	if code == "" {
		return nil, gateway.NewFailure(gateway.FailureMalformedOutput,
			"code response contains no code", nil)
	}
	if strings.HasPrefix(code, "```") {
		return nil, gateway.NewFailure(gateway.FailureMalformedOutput,
			"code response is wrapped in markdown fences", nil)
	}
	out.Code = code
	return &out, nil
}

func decodeAnalysis(content string) (*analysisOutput, error) {
	var out analysisOutput
	if err := decodeJSON(content, &out); err != nil {
		return nil, err
	}
	if out.Diagnosis == "" {
		return nil, gateway.NewFailure(gateway.FailureMalformedOutput,
			"analysis response missing diagnosis", nil)
	}
	return &out, nil
}

func decodeJSON(content string, v any) error {
	if err := json.Unmarshal([]byte(content), v); err != nil {
		return gateway.NewFailure(gateway.FailureMalformedOutput,
			"response is not valid JSON", err)
	}
	return nil
}
