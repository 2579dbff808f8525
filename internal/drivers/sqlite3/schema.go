package sqlite3

import "fmt"

const (
	messageTable = `CREATE TABLE IF NOT EXISTS message (
	id TEXT PRIMARY KEY,
	body BLOB NOT NULL,
	enqueued_at DATETIME NOT NULL,
	visible_at DATETIME NOT NULL,
	dequeue_count INTEGER NOT NULL DEFAULT 0
);`
	messageVisibleIndex = `CREATE INDEX IF NOT EXISTS idx_message_visible ON message (visible_at, enqueued_at, id);`
	deadLetterTable     = `CREATE TABLE IF NOT EXISTS %[1]s (
	id TEXT PRIMARY KEY,
	body BLOB NOT NULL,
	enqueued_at DATETIME NOT NULL,
	dequeue_count INTEGER NOT NULL,
	dead_lettered_at DATETIME NOT NULL,
	reason TEXT NOT NULL DEFAULT ''
);`
	deadLetterIndex = `CREATE INDEX IF NOT EXISTS idx_%[1]s_arrival ON %[1]s (dead_lettered_at, id);`
)

// Schema returns the statements that bootstrap the relay tables, with the
// dead-letter sink created under the given name.
func Schema(deadLetter string) []string {
	return []string{
		messageTable,
		messageVisibleIndex,
		fmt.Sprintf(deadLetterTable, deadLetter),
		fmt.Sprintf(deadLetterIndex, deadLetter),
	}
}
