package mysql

import "fmt"

const (
	messageTable = `CREATE TABLE IF NOT EXISTS message (
	id VARCHAR(36) PRIMARY KEY,
	body MEDIUMBLOB NOT NULL,
	enqueued_at DATETIME(6) NOT NULL,
	visible_at DATETIME(6) NOT NULL,
	dequeue_count INT NOT NULL DEFAULT 0,
	INDEX idx_message_visible (visible_at, enqueued_at, id)
);`
	deadLetterTable = `CREATE TABLE IF NOT EXISTS %[1]s (
	id VARCHAR(36) PRIMARY KEY,
	body MEDIUMBLOB NOT NULL,
	enqueued_at DATETIME(6) NOT NULL,
	dequeue_count INT NOT NULL,
	dead_lettered_at DATETIME(6) NOT NULL,
	reason VARCHAR(255) NOT NULL DEFAULT '',
	INDEX idx_dead_letter_arrival (dead_lettered_at, id)
);`
)

// Schema returns the statements that bootstrap the relay tables, with the
// dead-letter sink created under the given name.
func Schema(deadLetter string) []string {
	return []string{
		messageTable,
		fmt.Sprintf(deadLetterTable, deadLetter),
	}
}
