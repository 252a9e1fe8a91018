// Package dispatch turns committed domain events into durable jobs and
// integration messages.
//
// Subscribers here never fail the command that published the event. An
// enqueue error is logged and dropped, since the order change it describes
// is already stored.
package dispatch
