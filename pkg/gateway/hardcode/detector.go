// Package hardcode implements the default heuristics for spotting
// candidate programs that bake test answers in as literals instead of
// computing them. The checks are textual and deliberately conservative:
// a flag routes the candidate to repair, it never aborts the run.
package hardcode

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/codewright-io/codewright/pkg/api"
)

const (
	maxLiteralItems     = 20
	maxStringEqualityIf = 5
	maxLiteralReturns   = 3
)

var (
	ifStringEquality = regexp.MustCompile(`if\s+.*==\s*["'].*["']`)
	returnLiteral    = regexp.MustCompile(`^\s*return\s+(?:-?\d+(?:\.\d+)?|"[^"]*"|'[^']*'|True|False|None)\s*(?:#.*)?$`)
	numberValue      = regexp.MustCompile(`\d+`)
)

// Detector is the default gateway.HardcodePolicy.
type Detector struct{}

// New returns a Detector with the default thresholds.
func New() *Detector {
	return &Detector{}
}

// Inspect scans code for hardcoding patterns and returns one reason per
// triggered check. An empty slice means the code is acceptable.
func (d *Detector) Inspect(code string, tests []api.TestCase) []string {
	var reasons []string

	if n := largestLiteralCollection(code); n > maxLiteralItems {
		reasons = append(reasons,
			fmt.Sprintf("large literal collection (%d items) - possible hardcoded lookup table", n))
	}

	if n := len(ifStringEquality.FindAllString(code, -1)); n > maxStringEqualityIf {
		reasons = append(reasons,
			fmt.Sprintf("multiple string equality checks (%d) - possible input hardcoding", n))
	}

	if n := literalReturnCount(code); n > maxLiteralReturns {
		reasons = append(reasons,
			fmt.Sprintf("multiple literal return statements (%d) - possible output hardcoding", n))
	}

	if value, found := testValueAsStringLiteral(code, tests); found {
		reasons = append(reasons,
			fmt.Sprintf("test value %q appears as a string literal in the code", value))
	}

	return reasons
}

// largestLiteralCollection returns the item count of the biggest bracketed
// literal in the code, approximated by counting top-level commas between
// matching brackets.
func largestLiteralCollection(code string) int {
	largest := 0
	for i := 0; i < len(code); i++ {
		open := code[i]
		if open != '[' && open != '{' {
			continue
		}
		close := byte(']')
		if open == '{' {
			close = '}'
		}

		depth := 1
		items := 1
		empty := true
		for j := i + 1; j < len(code) && depth > 0; j++ {
			switch code[j] {
			case open:
				depth++
			case close:
				depth--
			case ',':
				if depth == 1 {
					items++
				}
			default:
				if !isSpace(code[j]) {
					empty = false
				}
			}
		}
		if !empty && items > largest {
			largest = items
		}
	}
	return largest
}

func literalReturnCount(code string) int {
	count := 0
	for _, line := range strings.Split(code, "\n") {
		if returnLiteral.MatchString(line) {
			count++
		}
	}
	return count
}

// testValueAsStringLiteral checks whether a numeric value from the first
// few test inputs shows up quoted in the code. Numbers computed from
// inputs never need to be string literals.
func testValueAsStringLiteral(code string, tests []api.TestCase) (string, bool) {
	limit := len(tests)
	if limit > 5 {
		limit = 5
	}
	for _, tc := range tests[:limit] {
		for _, value := range numberValue.FindAllString(fmt.Sprintf("%v", tc.Inputs), -1) {
			if strings.Contains(code, `"`+value+`"`) || strings.Contains(code, `'`+value+`'`) {
				return value, true
			}
		}
	}
	return "", false
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
