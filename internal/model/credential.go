package model

import "time"

// Credential is the persisted mapping from an issued API key to its namespace.
type Credential struct {
	APIKey    string    `db:"api_key" json:"api_key"`
	Namespace string    `db:"namespace" json:"-"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
