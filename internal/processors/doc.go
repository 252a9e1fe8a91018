// Package processors holds the job payloads and the processors that run them.
//
// Every job name maps to exactly one payload type. Decode turns a stored job
// into that type before a processor acts on it, so a processor switches on
// the decoded value rather than on raw JSON.
package processors
