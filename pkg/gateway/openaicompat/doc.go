// Package openaicompat implements the generation gateway against an
// OpenAI-compatible Chat Completions backend. Every call requests a JSON
// object response and decodes it strictly; undecodable payloads surface
// as malformed_output failures with the consumed tokens still accounted.
package openaicompat
