package relay

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

// Sweeper periodically routes poison messages to the dead-letter table so
// they drain even when no consumer is dequeuing. It runs until its context
// is cancelled.
type Sweeper struct {
	queue *Queue
	opts  SweeperOptions
}

func newSweeper(ctx context.Context, q *Queue, opts *SweeperOptions) (*Sweeper, error) {
	log.Debug().Msg("pinging database")
	if err := q.db.Ping(); err != nil {
		e := fmt.Errorf("error pinging database: %s", err)
		log.Debug().Msg(e.Error())
		return nil, e
	}
	o := SweeperOptions{}
	if opts != nil {
		o = *opts
	}
	s := &Sweeper{queue: q, opts: o.withDefaults()}
	go s.run(ctx)
	return s, nil
}

func (s *Sweeper) run(ctx context.Context) {
	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Debug().Err(ctx.Err()).Msg("stopping sweeper: context closed")
			return
		case <-ticker.C:
			if err := s.sweep(ctx); err != nil {
				log.Err(err).Msg("error sweeping poison messages")
			}
		}
	}
}

// sweep runs one sweep, retrying transient failures with exponential backoff
// up to MaxRetries before giving up until the next tick.
func (s *Sweeper) sweep(ctx context.Context) error {
	var moved int
	op := func() error {
		n, err := s.queue.SweepPoison(ctx)
		if err != nil {
			return err
		}
		moved = n
		return nil
	}
	if err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), s.opts.MaxRetries), ctx)); err != nil {
		return err
	}
	if s.opts.OnSweep != nil {
		s.opts.OnSweep(moved)
	}
	return nil
}
