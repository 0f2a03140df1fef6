package validation

import (
	"encoding/json"
	"fmt"
)

// BuildHarness wraps a candidate program with a per-test driver. The
// driver calls main() with the test inputs as keyword arguments and
// prints a single JSON object on stdout: {"success": true, "result": ...}
// on a clean return, {"success": false, "error": ...} when main raises.
func BuildHarness(code string, inputs map[string]any) (string, error) {
	encoded, err := json.Marshal(inputs)
	if err != nil {
		return "", fmt.Errorf("encode test inputs: %w", err)
	}

	harness := `

import json
try:
    inputs = json.loads(%s)
    result = main(**inputs)
    print(json.dumps({"success": True, "result": result}))
except Exception as e:
    print(json.dumps({"success": False, "error": f"{type(e).__name__}: {str(e)}"}))
`
	return code + fmt.Sprintf(harness, pythonStringLiteral(string(encoded))), nil
}

// harnessOutput is the JSON object the driver prints.
type harnessOutput struct {
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result"`
	Error   string          `json:"error"`
}

// pythonStringLiteral renders s as a Python single-quoted string literal.
// The input is compact JSON, so only backslashes and quotes need escaping.
func pythonStringLiteral(s string) string {
	out := make([]byte, 0, len(s)+2)
	out = append(out, '\'')
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			out = append(out, '\\', '\\')
		case '\'':
			out = append(out, '\\', '\'')
		default:
			out = append(out, s[i])
		}
	}
	out = append(out, '\'')
	return string(out)
}
