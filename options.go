package relay

import (
	"fmt"
	"regexp"
	"time"
)

const (
	defaultMaxPayloadBytes = 64 << 10
	defaultPoisonThreshold = 5
	defaultLeaseDuration   = 30 * time.Second
	defaultStoreTimeout    = 5 * time.Second
	defaultDeadLetterTable = "dead_letter"

	defaultSweepInterval   = 10 * time.Second
	defaultSweepMaxRetries = 3
)

// identRegexp constrains the dead-letter table name to a plain SQL
// identifier, since it is spliced into statements by name.
var identRegexp = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// QueueOptions configures a Queue. Zero fields take the defaults above.
type QueueOptions struct {
	// MaxPayloadBytes bounds the size of a single message body.
	MaxPayloadBytes int
	// PoisonThreshold is the number of deliveries a message gets before it
	// is routed to the dead-letter sink instead of redelivered.
	PoisonThreshold int
	// LeaseDuration is the visibility window applied when Dequeue is called
	// without an explicit lease.
	LeaseDuration time.Duration
	// StoreTimeout bounds how long Enqueue and Acknowledge wait on backend
	// I/O before surfacing ErrStoreUnavailable.
	StoreTimeout time.Duration
	// DeadLetterTable names the dead-letter sink table.
	DeadLetterTable string
}

func defaultQueueOptions() QueueOptions {
	return QueueOptions{
		MaxPayloadBytes: defaultMaxPayloadBytes,
		PoisonThreshold: defaultPoisonThreshold,
		LeaseDuration:   defaultLeaseDuration,
		StoreTimeout:    defaultStoreTimeout,
		DeadLetterTable: defaultDeadLetterTable,
	}
}

func (o QueueOptions) withDefaults() QueueOptions {
	d := defaultQueueOptions()
	if o.MaxPayloadBytes > 0 {
		d.MaxPayloadBytes = o.MaxPayloadBytes
	}
	if o.PoisonThreshold > 0 {
		d.PoisonThreshold = o.PoisonThreshold
	}
	if o.LeaseDuration > 0 {
		d.LeaseDuration = o.LeaseDuration
	}
	if o.StoreTimeout > 0 {
		d.StoreTimeout = o.StoreTimeout
	}
	if o.DeadLetterTable != "" {
		d.DeadLetterTable = o.DeadLetterTable
	}
	return d
}

func (o QueueOptions) validate() error {
	if !identRegexp.MatchString(o.DeadLetterTable) {
		return fmt.Errorf("dead-letter table %q is not a valid identifier", o.DeadLetterTable)
	}
	if o.DeadLetterTable == messageTable {
		return fmt.Errorf("dead-letter table cannot shadow the %s table", messageTable)
	}
	return nil
}

// SweeperOptions configures a Sweeper. Zero fields take the defaults above.
type SweeperOptions struct {
	// Interval is the sweep schedule.
	Interval time.Duration
	// MaxRetries bounds the retries of a failed sweep attempt within one
	// interval.
	MaxRetries uint64
	// OnSweep, when set, is called after each successful sweep with the
	// number of messages moved to the dead-letter sink.
	OnSweep func(moved int)
}

func (o SweeperOptions) withDefaults() SweeperOptions {
	if o.Interval <= 0 {
		o.Interval = defaultSweepInterval
	}
	if o.MaxRetries == 0 {
		o.MaxRetries = defaultSweepMaxRetries
	}
	return o
}
