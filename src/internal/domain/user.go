package domain

import "time"

type User struct {
	ID        string // OIDC Subject ID
	Email     string
	Name      string
	CreatedAt time.Time
	LastSeen  time.Time
}

type WatchProgress struct {
	UserID    string    `json:"userId"`
	MovieID   string    `json:"movieId"`
	Position  float64   `json:"position"` // Seconds
	UpdatedAt time.Time `json:"updatedAt"`
}
