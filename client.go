package relay

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
)

// Client wraps an open database handle and hands out queues bound to it.
type Client struct {
	db *sqlx.DB
}

// NewClient verifies the database is reachable and returns a client. Schema
// creation is deferred to NewQueue, which knows the dead-letter table name.
func NewClient(db *sqlx.DB) (*Client, error) {
	log.Debug().Str("driver", db.DriverName()).Msg("creating new client")
	c := Client{db: db}
	if err := c.db.Ping(); err != nil {
		err = fmt.Errorf("error pinging database: %s", err)
		log.Debug().Msg(err.Error())
		return nil, err
	}
	log.Debug().Msg("client created")
	return &c, nil
}

// NewQueue creates the relay schema if needed and returns a queue configured
// with opts. A nil opts selects the defaults.
func (c Client) NewQueue(opts *QueueOptions) (*Queue, error) {
	return newQueue(c.db, opts)
}

// NewSweeper starts a background sweeper over the queue. The sweeper stops
// when ctx is cancelled.
func (c Client) NewSweeper(ctx context.Context, q *Queue, opts *SweeperOptions) (*Sweeper, error) {
	return newSweeper(ctx, q, opts)
}
