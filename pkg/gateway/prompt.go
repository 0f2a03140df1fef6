package gateway

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/codewright-io/codewright/pkg/api"
)

// System messages shared by all backend adapters. Kept here so every
// adapter drives the model the same way.
const (
	PlanSystemMessage = "You are an expert Python programmer and problem solver. " +
		"Analyze the user's request and create a clear execution plan."

	InferTestsSystemMessage = "You are an expert at creating comprehensive test cases for code. " +
		"Generate test cases that cover basic functionality, edge cases, and boundary conditions."

	GenerateSystemMessage = "You are an expert Python programmer. " +
		"Write clean, efficient, well-documented Python code. " +
		"IMPORTANT: Return ONLY raw Python code in the 'code' field - NO markdown formatting, NO code fences."

	AnalyzeSystemMessage = "You are an expert Python debugger. " +
		"Analyze code errors and provide clear, actionable fixes."
)

// PlanPrompt builds the user message for the planning call.
func PlanPrompt(task string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analyze this programming task:\n\n**Task:** %s\n\n", task)
	b.WriteString(`Provide:
1. **Problem Understanding**: What exactly is being asked? Include:
   - Input format and types
   - Expected output format
   - Any constraints or requirements
   - Edge cases to consider

2. **Approach**: How will you solve this? Include:
   - Algorithm or method to use
   - Key implementation steps
   - Time/space complexity if relevant

Respond with a JSON object with fields "understanding" and "approach".
`)
	return b.String()
}

// InferTestsPrompt builds the user message for test inference.
func InferTestsPrompt(task string, plan *Plan) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Generate comprehensive test cases for this programming task:\n\n**Task:** %s\n\n", task)
	if plan != nil {
		fmt.Fprintf(&b, "**Problem Understanding:** %s\n\n**Approach:** %s\n\n", plan.Understanding, plan.Approach)
	}
	b.WriteString(`Create test cases that cover:
1. **Basic functionality**: Normal inputs and expected outputs
2. **Edge cases**: Empty inputs, single elements, special values
3. **Boundary conditions**: Maximum/minimum values, type boundaries

Each test case needs:
- "description": what the test checks
- "inputs": input parameters as an object (e.g., {"numbers": [10, 20, 30]})
- "expected_output": the expected return value

Generate 3-5 diverse test cases.

Respond with a JSON object with a "test_cases" array.
`)
	return b.String()
}

// GeneratePrompt builds the user message for code generation. An empty
// analysis means this is the first attempt; a non-empty analysis turns
// the call into a repair.
func GeneratePrompt(task string, plan *Plan, tests []api.TestCase, analysis string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Generate Python code for this task:\n\n**Task:** %s\n\n", task)
	if plan != nil {
		fmt.Fprintf(&b, "**Problem Understanding:** %s\n\n**Approach:** %s\n\n", plan.Understanding, plan.Approach)
	}

	b.WriteString("**Test Cases to Satisfy:**\n")
	for i, tc := range tests {
		fmt.Fprintf(&b, "\nTest %d: %s\n", i+1, tc.Description)
		fmt.Fprintf(&b, "  Inputs: %s\n", compactJSON(tc.Inputs))
		fmt.Fprintf(&b, "  Expected Output: %s\n", compactJSON(tc.ExpectedOutput))
	}

	if analysis != "" {
		b.WriteString("\n\n**PREVIOUS ATTEMPT FAILED:**\n")
		fmt.Fprintf(&b, "Error Analysis: %s\n\n", analysis)
		b.WriteString("Fix the issues and generate corrected code.\n")
	}

	b.WriteString(`

**Requirements:**
1. Include a main() function that accepts the inputs as keyword parameters
2. Return the result (do not just print it)
3. Compute the answer from the inputs. Do NOT hardcode expected outputs or
   match on specific test inputs; solutions must generalize beyond the
   listed test cases
4. Handle all edge cases from the test cases
5. NO imports of os, subprocess, sys, socket, or other system modules

**CRITICAL:** In the "code" field, return ONLY the raw Python code.
DO NOT wrap it in markdown code fences.

Respond with a JSON object with a "code" field.
`)
	return b.String()
}

// AnalyzePrompt builds the user message for failure analysis.
func AnalyzePrompt(fc *FailureContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analyze this code failure and suggest fixes:\n\n**Task:** %s\n\n", fc.Task)
	fmt.Fprintf(&b, "**Current Code:**\n```python\n%s\n```\n\n", fc.Code)

	b.WriteString("**Error Information:**\n")
	b.WriteString(FailureSummary(fc))

	b.WriteString(`

Analyze:
1. **Root Cause**: What exactly is wrong with the code?
2. **Failed Test Details**: For each failed test, explain why it failed
3. **Suggested Fix**: Concrete changes needed to fix the code

Respond with a JSON object with a "diagnosis" field.
`)
	return b.String()
}

// FailureSummary renders the execution and validation evidence of a
// failed iteration as prompt text.
func FailureSummary(fc *FailureContext) string {
	var b strings.Builder

	if len(fc.Flagged) > 0 {
		b.WriteString("**Rejected Before Execution:**\n")
		for _, reason := range fc.Flagged {
			fmt.Fprintf(&b, "- %s\n", reason)
		}
	}

	if exec := fc.Execution; exec != nil && !exec.Success {
		b.WriteString("**Execution Error:**\n")
		if exec.TimedOut {
			fmt.Fprintf(&b, "- Code timed out after %.1fs\n", exec.Seconds)
			b.WriteString("- This usually means an infinite loop or a very inefficient algorithm\n")
		} else {
			fmt.Fprintf(&b, "- Exit code: %d\n", exec.ExitCode)
			fmt.Fprintf(&b, "- Error: %s\n", exec.Error)
		}
	}

	if val := fc.Validation; val != nil && val.Failed > 0 {
		fmt.Fprintf(&b, "\n**Validation Errors:** %d/%d tests failed\n", val.Failed, val.Total)
		for i, r := range val.Results {
			if r.Passed {
				continue
			}
			fmt.Fprintf(&b, "\nFailed Test %d: %s\n", i+1, r.Description)
			fmt.Fprintf(&b, "  Expected: %s\n", compactJSON(r.ExpectedOutput))
			if r.ActualOutput != nil {
				fmt.Fprintf(&b, "  Actual: %s\n", compactJSON(r.ActualOutput))
			}
			if r.Error != "" {
				fmt.Fprintf(&b, "  Error: %s\n", r.Error)
			}
		}
	}

	return b.String()
}

func compactJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
