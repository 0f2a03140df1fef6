// Package gateway defines the contract between the orchestrator and an
// LLM generation backend. The interface is protocol-agnostic: each adapter
// handles its own backend protocol internally and reports failures through
// the typed Failure error so the orchestrator can distinguish transient
// rate limiting from malformed output and hard provider errors.
package gateway
