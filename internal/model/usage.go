package model

import "time"

// UsageEvent is one billable call made with a credential. Events are
// append-only and aggregated by count per credential.
type UsageEvent struct {
	ID        string    `db:"id" json:"id"`
	APIKey    string    `db:"api_key" json:"api_key"`
	Endpoint  string    `db:"endpoint" json:"endpoint"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
