// Package llm talks to an OpenAI-compatible chat completions endpoint and
// builds the prompts for the comparison and historical workflows.
//
// Requests are paced by a token bucket and retried with exponential backoff
// on 429 and 5xx responses. Failures surface as NETWORK application errors
// carrying the last HTTP status.
package llm
