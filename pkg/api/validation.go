package api

import "fmt"

// ValidationConfig holds configurable limits for request validation.
type ValidationConfig struct {
	MaxTaskLength    int
	MaxSuppliedTests int
	MaxIterations    int
}

// DefaultValidationConfig returns a ValidationConfig with sensible defaults.
func DefaultValidationConfig() ValidationConfig {
	return ValidationConfig{
		MaxTaskLength:    4000,
		MaxSuppliedTests: 64,
		MaxIterations:    10,
	}
}

// ValidateCreateRunRequest checks a CreateRunRequest for validity. It returns an
// *APIError describing the first validation failure, or nil if the request is valid.
func ValidateCreateRunRequest(req *CreateRunRequest, cfg ValidationConfig) *APIError {
	if req.Task == "" {
		return NewInvalidRequestError("task", "task is required")
	}

	if cfg.MaxTaskLength > 0 && len(req.Task) > cfg.MaxTaskLength {
		return NewInvalidRequestError("task",
			fmt.Sprintf("task exceeds maximum of %d characters", cfg.MaxTaskLength))
	}

	if req.MaxIterations < 0 {
		return NewInvalidRequestError("max_iterations", "max_iterations must be positive")
	}

	if cfg.MaxIterations > 0 && req.MaxIterations > cfg.MaxIterations {
		return NewInvalidRequestError("max_iterations",
			fmt.Sprintf("max_iterations exceeds maximum of %d", cfg.MaxIterations))
	}

	if cfg.MaxSuppliedTests > 0 && len(req.Tests) > cfg.MaxSuppliedTests {
		return NewInvalidRequestError("tests",
			fmt.Sprintf("tests exceeds maximum of %d cases", cfg.MaxSuppliedTests))
	}

	for i, tc := range req.Tests {
		if err := validateTestCase(i, &tc); err != nil {
			return err
		}
	}

	if req.RunID != "" && !ValidateRunID(req.RunID) {
		return NewInvalidRequestError("run_id", "invalid run ID format")
	}

	return nil
}

func validateTestCase(index int, tc *TestCase) *APIError {
	param := fmt.Sprintf("tests[%d]", index)

	if tc.Description == "" {
		return NewInvalidRequestError(param+".description", "test description is required")
	}
	if tc.Inputs == nil {
		return NewInvalidRequestError(param+".inputs", "test inputs are required")
	}
	return nil
}
