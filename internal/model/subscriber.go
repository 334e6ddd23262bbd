// Package model defines the data structures used throughout the application.
package model

import "time"

// Subscriber is an email address collected by the waitlist form.
//
// Rows are only ever inserted or deleted, never updated, so CreatedAt is
// the moment the address first joined the list.
type Subscriber struct {
	ID        int64     `json:"id"         db:"id"`
	Email     string    `json:"email"      db:"email"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
