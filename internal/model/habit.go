package model

// Habit is a recurring habit fetched from the habit tracker database.
// Per-day completion is tracked in memory by the sync package and is
// never written to the local store.
type Habit struct {
	ID          string `json:"id"`
	Name        string `json:"habit"`
	Description string `json:"description"`
	DoNow       bool   `json:"doNow"`
}
