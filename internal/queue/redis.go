package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var enqueueScript = redis.NewScript(`
local key = ARGV[3]
if key ~= '' then
	local existing = redis.call('HGET', KEYS[2], key)
	if existing then
		return {existing, 0}
	end
	redis.call('HSET', KEYS[2], key, ARGV[1])
	redis.call('HSET', KEYS[3], ARGV[1], key)
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
redis.call('RPUSH', KEYS[4], ARGV[1])
return {ARGV[1], 1}
`)

var reserveScript = redis.NewScript(`
local now = ARGV[1]
local due = redis.call('ZRANGEBYSCORE', KEYS[2], '-inf', now)
for _, id in ipairs(due) do
	redis.call('ZREM', KEYS[2], id)
	redis.call('RPUSH', KEYS[1], id)
end
local stalled = redis.call('ZRANGEBYSCORE', KEYS[3], '-inf', now)
for _, id in ipairs(stalled) do
	redis.call('ZREM', KEYS[3], id)
	redis.call('HDEL', KEYS[5], id)
	redis.call('RPUSH', KEYS[1], id)
end
while true do
	local id = redis.call('LPOP', KEYS[1])
	if not id then
		return false
	end
	local body = redis.call('HGET', KEYS[4], id)
	if body then
		redis.call('ZADD', KEYS[3], ARGV[2], id)
		redis.call('HSET', KEYS[5], id, ARGV[3])
		return body
	end
end
`)

// finishScript moves a job to a bounded terminal list and forgets the
// bodies and idempotency keys of whatever falls off the end. It is a no-op
// returning 0 unless the caller still holds the job's lease.
var finishScript = redis.NewScript(`
if redis.call('HGET', KEYS[6], ARGV[1]) ~= ARGV[4] then
	return 0
end
redis.call('HDEL', KEYS[6], ARGV[1])
redis.call('ZREM', KEYS[1], ARGV[1])
redis.call('HSET', KEYS[2], ARGV[1], ARGV[2])
redis.call('LPUSH', KEYS[3], ARGV[1])
local keep = tonumber(ARGV[3])
while redis.call('LLEN', KEYS[3]) > keep do
	local old = redis.call('RPOP', KEYS[3])
	redis.call('HDEL', KEYS[2], old)
	local key = redis.call('HGET', KEYS[5], old)
	if key then
		redis.call('HDEL', KEYS[4], key)
		redis.call('HDEL', KEYS[5], old)
	end
end
return 1
`)

var retryScript = redis.NewScript(`
if redis.call('HGET', KEYS[4], ARGV[1]) ~= ARGV[4] then
	return 0
end
redis.call('HDEL', KEYS[4], ARGV[1])
redis.call('ZREM', KEYS[1], ARGV[1])
redis.call('HSET', KEYS[2], ARGV[1], ARGV[2])
redis.call('ZADD', KEYS[3], ARGV[3], ARGV[1])
return 1
`)

var requeueDeadScript = redis.NewScript(`
local removed = redis.call('LREM', KEYS[1], 0, ARGV[1])
if removed == 0 then
	return 0
end
redis.call('HSET', KEYS[2], ARGV[1], ARGV[2])
redis.call('RPUSH', KEYS[3], ARGV[1])
return 1
`)

type RedisOptions struct {
	Prefix        string
	Lease         time.Duration
	KeepCompleted int64
	KeepDead      int64
}

// RedisQueue implements Enqueuer and Store on top of Redis.
type RedisQueue struct {
	client        *redis.Client
	prefix        string
	lease         time.Duration
	keepCompleted int64
	keepDead      int64
	now           func() time.Time
}

func NewRedisQueue(client *redis.Client, opts RedisOptions) *RedisQueue {
	if opts.Prefix == "" {
		opts.Prefix = "queue"
	}
	if opts.Lease <= 0 {
		opts.Lease = 2 * time.Minute
	}
	if opts.KeepCompleted <= 0 {
		opts.KeepCompleted = 100
	}
	if opts.KeepDead <= 0 {
		opts.KeepDead = 1000
	}
	return &RedisQueue{
		client:        client,
		prefix:        opts.Prefix,
		lease:         opts.Lease,
		keepCompleted: opts.KeepCompleted,
		keepDead:      opts.KeepDead,
		now:           time.Now,
	}
}

var (
	_ Enqueuer = (*RedisQueue)(nil)
	_ Store    = (*RedisQueue)(nil)
)

func (q *RedisQueue) key(queue, suffix string) string {
	return fmt.Sprintf("%s:%s:%s", q.prefix, queue, suffix)
}

// Enqueue stores a job and returns its id. When opts.IdempotencyKey is
// already known to the queue nothing is stored and the existing id is
// returned.
func (q *RedisQueue) Enqueue(ctx context.Context, queue, name string, payload any, opts Options) (string, error) {
	id, _, err := q.enqueue(ctx, queue, name, payload, opts)
	return id, err
}

// EnqueueUnique behaves like Enqueue and also reports whether a new job was
// created.
func (q *RedisQueue) EnqueueUnique(ctx context.Context, queue, name string, payload any, opts Options) (string, bool, error) {
	return q.enqueue(ctx, queue, name, payload, opts)
}

func (q *RedisQueue) enqueue(ctx context.Context, queue, name string, payload any, opts Options) (string, bool, error) {
	if opts.MaxAttempts < 1 {
		return "", false, ErrInvalidMaxTries
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", false, fmt.Errorf("marshal payload for %s/%s: %w", queue, name, err)
	}

	now := q.now().UTC()
	job := Job{
		ID:             uuid.NewString(),
		Queue:          queue,
		Name:           name,
		IdempotencyKey: opts.IdempotencyKey,
		Payload:        raw,
		MaxAttempts:    opts.MaxAttempts,
		Backoff:        opts.Backoff,
		State:          StateWaiting,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	body, err := json.Marshal(job)
	if err != nil {
		return "", false, err
	}

	keys := []string{q.key(queue, "jobs"), q.key(queue, "keys"), q.key(queue, "jobkeys"), q.key(queue, "wait")}
	res, err := enqueueScript.Run(ctx, q.client, keys, job.ID, body, opts.IdempotencyKey).Slice()
	if err != nil {
		return "", false, fmt.Errorf("enqueue %s/%s: %w", queue, name, err)
	}
	if len(res) != 2 {
		return "", false, fmt.Errorf("enqueue %s/%s: unexpected reply %v", queue, name, res)
	}
	id, _ := res[0].(string)
	created, _ := res[1].(int64)
	return id, created == 1, nil
}

func (q *RedisQueue) Reserve(ctx context.Context, queue string) (*Job, error) {
	now := q.now()
	lease := uuid.NewString()
	keys := []string{
		q.key(queue, "wait"), q.key(queue, "delayed"), q.key(queue, "active"), q.key(queue, "jobs"),
		q.key(queue, "leases"),
	}
	body, err := reserveScript.Run(ctx, q.client, keys, now.UnixMilli(), now.Add(q.lease).UnixMilli(), lease).Text()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reserve from %s: %w", queue, err)
	}

	var job Job
	if err := json.Unmarshal([]byte(body), &job); err != nil {
		return nil, fmt.Errorf("decode job from %s: %w", queue, err)
	}
	job.State = StateActive
	job.UpdatedAt = now.UTC()
	job.lease = lease
	return &job, nil
}

func (q *RedisQueue) Complete(ctx context.Context, job *Job) error {
	return q.finish(ctx, job, StateCompleted, "completed", q.keepCompleted)
}

// Bury moves the job to the dead-letter list.
func (q *RedisQueue) Bury(ctx context.Context, job *Job) error {
	return q.finish(ctx, job, StateDead, "dead", q.keepDead)
}

func (q *RedisQueue) finish(ctx context.Context, job *Job, state State, list string, keep int64) error {
	now := q.now().UTC()
	job.State = state
	job.UpdatedAt = now
	job.FinishedAt = &now
	body, err := json.Marshal(job)
	if err != nil {
		return err
	}

	keys := []string{
		q.key(job.Queue, "active"), q.key(job.Queue, "jobs"), q.key(job.Queue, list),
		q.key(job.Queue, "keys"), q.key(job.Queue, "jobkeys"), q.key(job.Queue, "leases"),
	}
	ok, err := finishScript.Run(ctx, q.client, keys, job.ID, body, keep, job.lease).Int()
	if err != nil {
		return fmt.Errorf("mark job %s %s: %w", job.ID, state, err)
	}
	if ok == 0 {
		return fmt.Errorf("mark job %s %s: %w", job.ID, state, ErrLeaseLost)
	}
	return nil
}

func (q *RedisQueue) Retry(ctx context.Context, job *Job, delay time.Duration) error {
	now := q.now()
	job.State = StateDelayed
	job.UpdatedAt = now.UTC()
	body, err := json.Marshal(job)
	if err != nil {
		return err
	}

	keys := []string{
		q.key(job.Queue, "active"), q.key(job.Queue, "jobs"), q.key(job.Queue, "delayed"),
		q.key(job.Queue, "leases"),
	}
	readyAt := now.Add(delay).UnixMilli()
	ok, err := retryScript.Run(ctx, q.client, keys, job.ID, body, readyAt, job.lease).Int()
	if err != nil {
		return fmt.Errorf("schedule retry of job %s: %w", job.ID, err)
	}
	if ok == 0 {
		return fmt.Errorf("schedule retry of job %s: %w", job.ID, ErrLeaseLost)
	}
	return nil
}

// Get returns a stored job, or ErrJobNotFound.
func (q *RedisQueue) Get(ctx context.Context, queue, id string) (*Job, error) {
	body, err := q.client.HGet(ctx, q.key(queue, "jobs"), id).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	var job Job
	if err := json.Unmarshal([]byte(body), &job); err != nil {
		return nil, err
	}
	return &job, nil
}

type Counts struct {
	Waiting   int64 `json:"waiting"`
	Delayed   int64 `json:"delayed"`
	Active    int64 `json:"active"`
	Completed int64 `json:"completed"`
	Dead      int64 `json:"dead"`
}

func (q *RedisQueue) Counts(ctx context.Context, queue string) (Counts, error) {
	pipe := q.client.Pipeline()
	waiting := pipe.LLen(ctx, q.key(queue, "wait"))
	delayed := pipe.ZCard(ctx, q.key(queue, "delayed"))
	active := pipe.ZCard(ctx, q.key(queue, "active"))
	completed := pipe.LLen(ctx, q.key(queue, "completed"))
	dead := pipe.LLen(ctx, q.key(queue, "dead"))
	if _, err := pipe.Exec(ctx); err != nil {
		return Counts{}, fmt.Errorf("count jobs in %s: %w", queue, err)
	}
	return Counts{
		Waiting:   waiting.Val(),
		Delayed:   delayed.Val(),
		Active:    active.Val(),
		Completed: completed.Val(),
		Dead:      dead.Val(),
	}, nil
}

// DeadJobs returns up to limit dead-lettered jobs, newest first.
func (q *RedisQueue) DeadJobs(ctx context.Context, queue string, limit int64) ([]Job, error) {
	ids, err := q.client.LRange(ctx, q.key(queue, "dead"), 0, limit-1).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	bodies, err := q.client.HMGet(ctx, q.key(queue, "jobs"), ids...).Result()
	if err != nil {
		return nil, err
	}

	out := make([]Job, 0, len(bodies))
	for _, b := range bodies {
		s, ok := b.(string)
		if !ok {
			continue
		}
		var job Job
		if err := json.Unmarshal([]byte(s), &job); err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, nil
}

// RetryDead puts a dead-lettered job back on the wait list with a fresh
// attempt budget.
func (q *RedisQueue) RetryDead(ctx context.Context, queue, id string) error {
	job, err := q.Get(ctx, queue, id)
	if err != nil {
		return err
	}
	if job.State != StateDead {
		return fmt.Errorf("%w: job %s is %s, not dead", ErrJobNotFound, id, job.State)
	}

	job.State = StateWaiting
	job.Attempts = 0
	job.LastError = ""
	job.FinishedAt = nil
	job.UpdatedAt = q.now().UTC()
	body, err := json.Marshal(job)
	if err != nil {
		return err
	}

	keys := []string{q.key(queue, "dead"), q.key(queue, "jobs"), q.key(queue, "wait")}
	moved, err := requeueDeadScript.Run(ctx, q.client, keys, id, body).Int()
	if err != nil {
		return fmt.Errorf("requeue dead job %s: %w", id, err)
	}
	if moved == 0 {
		return ErrJobNotFound
	}
	return nil
}
