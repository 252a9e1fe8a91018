// Package bus provides in-process message routing.
//
// Bus routes a command or query value to exactly one handler, keyed by the
// message's Go type, and returns the handler's result to the caller without
// wrapping its error. EventBus fans committed domain events out to every
// subscriber of the event name in registration order. Each subscriber runs
// inside its own error boundary: a returned error or a panic is logged and
// the remaining subscribers still run. Event delivery is best effort; the
// durable job queue covers anything that must survive a failure.
package bus
