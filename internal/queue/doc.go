// Package queue is a durable, Redis-backed job queue with retry, backoff
// and dead-lettering.
//
// Each named queue keeps its jobs in a handful of Redis keys:
//
//	<prefix>:<queue>:jobs       hash  id -> job JSON
//	<prefix>:<queue>:keys       hash  idempotency key -> id
//	<prefix>:<queue>:jobkeys    hash  id -> idempotency key
//	<prefix>:<queue>:wait       list  ids ready to run, FIFO
//	<prefix>:<queue>:delayed    zset  ids waiting for a retry, scored by ready time
//	<prefix>:<queue>:active     zset  ids being processed, scored by lease expiry
//	<prefix>:<queue>:completed  list  most recent completed ids, newest first
//	<prefix>:<queue>:dead       list  most recent dead-lettered ids, newest first
//
// All state transitions run as Lua scripts so they are atomic. Enqueueing a
// job whose idempotency key is still known to the queue is a no-op that
// returns the existing id; the key is forgotten only when the job is trimmed
// from the completed or dead list.
//
// Delivery is at least once. A worker that dies mid-job leaves the id in the
// active set; once its lease expires the next reservation moves it back to
// the wait list. Retried jobs re-enter at the tail of the wait list, so they
// may run after jobs enqueued later.
package queue
