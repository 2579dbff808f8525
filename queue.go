package relay

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/AZ-204-Projects/event-relay/internal"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
)

const (
	messageTable   = "message"
	messageColumns = "id, body, enqueued_at, visible_at, dequeue_count"

	reasonPoison = "max deliveries exceeded"
)

// Queue is a durable FIFO message queue over a SQL database. Messages are
// ordered by enqueue time with ids breaking ties, delivered at least once,
// and removed only by acknowledgment or dead-lettering.
type Queue struct {
	db         *sqlx.DB
	opts       QueueOptions
	lockClause string
}

func newQueue(db *sqlx.DB, opts *QueueOptions) (*Queue, error) {
	o := QueueOptions{}
	if opts != nil {
		o = *opts
	}
	o = o.withDefaults()
	if err := o.validate(); err != nil {
		return nil, fmt.Errorf("invalid queue options: %s", err)
	}
	if err := internal.CreateSchema(db, o.DeadLetterTable); err != nil {
		return nil, fmt.Errorf("error creating schema: %s", err)
	}
	log.Debug().Str("dead_letter_table", o.DeadLetterTable).Msg("queue ready")
	return &Queue{db: db, opts: o, lockClause: internal.LockClause(db.DriverName())}, nil
}

// storeErr tags a backend failure so callers can classify it with
// errors.Is(err, ErrStoreUnavailable).
func storeErr(op string, err error) error {
	return fmt.Errorf("error %s: %w: %v", op, ErrStoreUnavailable, err)
}

// Enqueue appends body to the queue and returns the stored message. The
// message is immediately visible. The write is bounded by StoreTimeout.
func (q *Queue) Enqueue(ctx context.Context, body []byte) (*Message, error) {
	return q.enqueue(ctx, body, 0)
}

// EnqueueDelayed appends body to the queue with its first delivery held back
// by delay. Ordering among delayed messages still follows enqueue time once
// they become visible.
func (q *Queue) EnqueueDelayed(ctx context.Context, body []byte, delay time.Duration) (*Message, error) {
	if delay < 0 {
		delay = 0
	}
	return q.enqueue(ctx, body, delay)
}

func (q *Queue) enqueue(ctx context.Context, body []byte, delay time.Duration) (*Message, error) {
	if len(body) == 0 {
		return nil, ErrEmptyPayload
	}
	if len(body) > q.opts.MaxPayloadBytes {
		return nil, fmt.Errorf("%w (%d bytes, limit %d)", ErrPayloadTooLarge, len(body), q.opts.MaxPayloadBytes)
	}
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("error generating message id: %s", err)
	}
	now := time.Now().UTC()
	m := Message{
		ID:         id.String(),
		Body:       body,
		EnqueuedAt: now,
		VisibleAt:  now.Add(delay),
	}
	ctx, cancel := context.WithTimeout(ctx, q.opts.StoreTimeout)
	defer cancel()
	query := q.db.Rebind("INSERT INTO message (" + messageColumns + ") VALUES (?, ?, ?, ?, ?)")
	if _, err := q.db.ExecContext(ctx, query, m.ID, m.Body, m.EnqueuedAt, m.VisibleAt, m.DequeueCount); err != nil {
		return nil, storeErr("inserting message", err)
	}
	log.Debug().Str("message_id", m.ID).Msg("message enqueued")
	return &m, nil
}

// Dequeue returns the oldest visible message and leases it for the given
// duration, hiding it from other consumers. A non-positive lease selects the
// queue default. Returns (nil, nil) when no message is visible.
//
// Delivery is at least once: a message not acknowledged before its lease
// expires becomes visible again. Each delivery increments the dequeue count,
// and a candidate already delivered PoisonThreshold times is moved to the
// dead-letter table instead of returned.
func (q *Queue) Dequeue(ctx context.Context, lease time.Duration) (*Message, error) {
	if lease <= 0 {
		lease = q.opts.LeaseDuration
	}
	for {
		m, deadLettered, err := q.dequeueOnce(ctx, lease)
		if err != nil {
			return nil, err
		}
		if deadLettered {
			continue
		}
		return m, nil
	}
}

func (q *Queue) dequeueOnce(ctx context.Context, lease time.Duration) (*Message, bool, error) {
	now := time.Now().UTC()
	tx, err := q.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, false, storeErr("beginning dequeue transaction", err)
	}
	defer tx.Rollback()
	var m Message
	query := tx.Rebind("SELECT " + messageColumns + " FROM message WHERE visible_at <= ? ORDER BY enqueued_at ASC, id ASC LIMIT 1" + q.lockClause)
	if err := tx.QueryRowxContext(ctx, query, now).StructScan(&m); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, storeErr("selecting dequeue candidate", err)
	}
	if m.DequeueCount >= q.opts.PoisonThreshold {
		if err := moveToDeadLetter(ctx, tx, q.opts.DeadLetterTable, now, reasonPoison, m.ID); err != nil {
			return nil, false, err
		}
		if err := tx.Commit(); err != nil {
			return nil, false, storeErr("committing dead-letter move", err)
		}
		log.Info().Str("message_id", m.ID).Int("dequeue_count", m.DequeueCount).Msg("message moved to dead-letter table")
		return nil, true, nil
	}
	m.VisibleAt = now.Add(lease)
	m.DequeueCount++
	query = tx.Rebind("UPDATE message SET visible_at = ?, dequeue_count = ? WHERE id = ?")
	res, err := tx.ExecContext(ctx, query, m.VisibleAt, m.DequeueCount, m.ID)
	if err != nil {
		return nil, false, storeErr("leasing message", err)
	}
	if n, err := res.RowsAffected(); err != nil || n != 1 {
		return nil, false, storeErr("leasing message", fmt.Errorf("rows affected: %d, err: %v", n, err))
	}
	if err := tx.Commit(); err != nil {
		return nil, false, storeErr("committing dequeue transaction", err)
	}
	log.Debug().Str("message_id", m.ID).Time("visible_at", m.VisibleAt).Msg("message leased")
	return &m, false, nil
}

// Acknowledge deletes a delivered message, completing it. Acknowledging an
// id that is absent or already acknowledged returns ErrNotFound. The lease
// is not checked: a late acknowledgment after expiry still completes the
// message unless another consumer dead-lettered it first.
func (q *Queue) Acknowledge(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, q.opts.StoreTimeout)
	defer cancel()
	query := q.db.Rebind("DELETE FROM message WHERE id = ?")
	res, err := q.db.ExecContext(ctx, query, id)
	if err != nil {
		return storeErr("deleting acknowledged message", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storeErr("reading rows affected", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	log.Debug().Str("message_id", id).Msg("message acknowledged")
	return nil
}

// Peek returns up to limit visible messages in delivery order without
// leasing them. Leased and dead-lettered messages are excluded.
func (q *Queue) Peek(ctx context.Context, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 1
	}
	now := time.Now().UTC()
	msgs := make([]Message, 0, limit)
	query := q.db.Rebind("SELECT " + messageColumns + " FROM message WHERE visible_at <= ? ORDER BY enqueued_at ASC, id ASC LIMIT ?")
	if err := q.db.SelectContext(ctx, &msgs, query, now, limit); err != nil {
		return nil, storeErr("selecting visible messages", err)
	}
	return msgs, nil
}

// DeadLettered returns up to limit dead-lettered messages, oldest move
// first.
func (q *Queue) DeadLettered(ctx context.Context, limit int) ([]DeadLetter, error) {
	if limit <= 0 {
		limit = 1
	}
	rows := make([]DeadLetter, 0, limit)
	query := q.db.Rebind(fmt.Sprintf(
		"SELECT id, body, enqueued_at, dequeue_count, dead_lettered_at, reason FROM %s ORDER BY dead_lettered_at ASC, id ASC LIMIT ?",
		q.opts.DeadLetterTable))
	if err := q.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, storeErr("selecting dead-lettered messages", err)
	}
	return rows, nil
}

// SweepPoison moves every visible message at or past the poison threshold to
// the dead-letter table in one transaction and reports how many moved.
// Dequeue performs the same routing lazily; the sweep clears poison messages
// that no consumer is asking for.
func (q *Queue) SweepPoison(ctx context.Context) (int, error) {
	now := time.Now().UTC()
	tx, err := q.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, storeErr("beginning sweep transaction", err)
	}
	defer tx.Rollback()
	var ids []string
	query := tx.Rebind("SELECT id FROM message WHERE visible_at <= ? AND dequeue_count >= ?" + q.lockClause)
	if err := tx.SelectContext(ctx, &ids, query, now, q.opts.PoisonThreshold); err != nil {
		return 0, storeErr("selecting poison messages", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	if err := moveToDeadLetter(ctx, tx, q.opts.DeadLetterTable, now, reasonPoison, ids...); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, storeErr("committing sweep transaction", err)
	}
	log.Info().Int("moved", len(ids)).Msg("swept poison messages to dead-letter table")
	return len(ids), nil
}

// moveToDeadLetter copies the identified messages into the dead-letter table
// and deletes them from the queue, inside the caller's transaction.
func moveToDeadLetter(ctx context.Context, tx *sqlx.Tx, table string, at time.Time, reason string, ids ...string) error {
	insert, args, err := sqlx.In(fmt.Sprintf(
		"INSERT INTO %s (id, body, enqueued_at, dequeue_count, dead_lettered_at, reason) SELECT id, body, enqueued_at, dequeue_count, ?, ? FROM message WHERE id IN (?)",
		table), at, reason, ids)
	if err != nil {
		return fmt.Errorf("error formulating dead-letter INSERT: %s", err)
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(insert), args...); err != nil {
		return storeErr("copying messages to dead-letter table", err)
	}
	del, args, err := sqlx.In("DELETE FROM message WHERE id IN (?)", ids)
	if err != nil {
		return fmt.Errorf("error formulating dead-letter DELETE: %s", err)
	}
	res, err := tx.ExecContext(ctx, tx.Rebind(del), args...)
	if err != nil {
		return storeErr("deleting dead-lettered messages", err)
	}
	if n, err := res.RowsAffected(); err != nil || n != int64(len(ids)) {
		return storeErr("deleting dead-lettered messages", fmt.Errorf("rows affected: %d of %d, err: %v", n, len(ids), err))
	}
	return nil
}

// Stats counts messages by state. Visible and leased partition the queue;
// dead-lettered counts the sink.
func (q *Queue) Stats(ctx context.Context) (*Stats, error) {
	now := time.Now().UTC()
	var s Stats
	query := q.db.Rebind("SELECT COUNT(*) FROM message WHERE visible_at <= ?")
	if err := q.db.GetContext(ctx, &s.Visible, query, now); err != nil {
		return nil, storeErr("counting visible messages", err)
	}
	query = q.db.Rebind("SELECT COUNT(*) FROM message WHERE visible_at > ?")
	if err := q.db.GetContext(ctx, &s.Leased, query, now); err != nil {
		return nil, storeErr("counting leased messages", err)
	}
	query = fmt.Sprintf("SELECT COUNT(*) FROM %s", q.opts.DeadLetterTable)
	if err := q.db.GetContext(ctx, &s.DeadLettered, query); err != nil {
		return nil, storeErr("counting dead-lettered messages", err)
	}
	return &s, nil
}
