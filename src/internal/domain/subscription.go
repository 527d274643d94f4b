package domain

import "time"

// Subscription is one checkout record for a viewer. Several records may exist
// per viewer; the most recently created one is authoritative.
type Subscription struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Paid      bool      `json:"paid"`
	Reference string    `json:"reference"` // Payment reference, e.g. flux_1718000000000
	CreatedAt time.Time `json:"createdAt"`
}
