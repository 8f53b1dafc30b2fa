package models

import (
	"slices"
	"time"
)

// Rating is one user's score for one catalog entity. It is stored twice:
// under the entity and under the user.
type Rating struct {
	SenderID   string    `json:"senderId"`
	EntityName string    `json:"entityName"`
	Score      float64   `json:"score"`
	CreatedAt  time.Time `json:"createdDate"`
}

// Key returns the identity of the rating
func (r Rating) Key() FactKey {
	return FactKey{SenderID: r.SenderID, EntityName: r.EntityName}
}

// Comment is one user's text on one catalog entity, mirrored like Rating
type Comment struct {
	SenderID   string    `json:"senderId"`
	EntityName string    `json:"entityName"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"createdDate"`
}

// Key returns the identity of the comment
func (c Comment) Key() FactKey {
	return FactKey{SenderID: c.SenderID, EntityName: c.EntityName}
}

// FactKey is the (sender, entity) identity shared by ratings and comments
type FactKey struct {
	SenderID   string
	EntityName string
}

// User represents a signed-in diary owner. ID is the lower-cased username.
type User struct {
	ID              string    `json:"id"`
	Email           string    `json:"email"`
	WatchLaters     []string  `json:"watchLaters"`
	AlreadyWatcheds []string  `json:"alreadyWatcheds"`
	Ratings         []Rating  `json:"ratings"`
	Comments        []Comment `json:"comments"`
}

// NewUser creates a user with empty collections
func NewUser(id, email string) *User {
	return &User{
		ID:              id,
		Email:           email,
		WatchLaters:     []string{},
		AlreadyWatcheds: []string{},
		Ratings:         []Rating{},
		Comments:        []Comment{},
	}
}

// Clone returns a deep copy of the user
func (u *User) Clone() *User {
	out := *u
	out.WatchLaters = slices.Clone(u.WatchLaters)
	out.AlreadyWatcheds = slices.Clone(u.AlreadyWatcheds)
	out.Ratings = slices.Clone(u.Ratings)
	out.Comments = slices.Clone(u.Comments)
	return &out
}

// RatingFor returns the user's rating of the named entity
func (u *User) RatingFor(name string) (Rating, bool) {
	for _, r := range u.Ratings {
		if r.EntityName == name {
			return r, true
		}
	}
	return Rating{}, false
}

// CommentFor returns the user's comment on the named entity
func (u *User) CommentFor(name string) (Comment, bool) {
	for _, c := range u.Comments {
		if c.EntityName == name {
			return c, true
		}
	}
	return Comment{}, false
}

// UpsertRating replaces the rating with the same identity or appends it
func UpsertRating(ratings []Rating, r Rating) []Rating {
	for i := range ratings {
		if ratings[i].Key() == r.Key() {
			ratings[i] = r
			return ratings
		}
	}
	return append(ratings, r)
}

// RemoveRating drops every rating with the given identity
func RemoveRating(ratings []Rating, key FactKey) []Rating {
	return slices.DeleteFunc(ratings, func(r Rating) bool { return r.Key() == key })
}

// UpsertComment replaces the comment with the same identity or appends it
func UpsertComment(comments []Comment, c Comment) []Comment {
	for i := range comments {
		if comments[i].Key() == c.Key() {
			comments[i] = c
			return comments
		}
	}
	return append(comments, c)
}

// RemoveComment drops every comment with the given identity
func RemoveComment(comments []Comment, key FactKey) []Comment {
	return slices.DeleteFunc(comments, func(c Comment) bool { return c.Key() == key })
}
