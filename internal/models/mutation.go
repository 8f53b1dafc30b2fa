package models

import "time"

// Operation names a user action handled by the diary service
type Operation string

const (
	OpRate                 Operation = "rate"
	OpUnrate               Operation = "unrate"
	OpComment              Operation = "comment"
	OpRemoveComment        Operation = "remove_comment"
	OpAddWatchLater        Operation = "add_watch_later"
	OpRemoveWatchLater     Operation = "remove_watch_later"
	OpAddAlreadyWatched    Operation = "add_already_watched"
	OpRemoveAlreadyWatched Operation = "remove_already_watched"
)

// MutationEvent describes a mutation after it has been applied locally
type MutationEvent struct {
	ID         string    `json:"id"`
	Op         Operation `json:"op"`
	UserID     string    `json:"userId"`
	EntityName string    `json:"entityName"`
	Kinds      []Kind    `json:"kinds,omitempty"`
	Score      float64   `json:"score,omitempty"`
	Text       string    `json:"text,omitempty"`
	At         time.Time `json:"at"`
}
