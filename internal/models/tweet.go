package models

import (
	"slices"
	"time"
)

// Tweet is a post owned by a single user. Username is a copy of the
// author's username and is rewritten whenever the author renames.
type Tweet struct {
	ID        string    `gorm:"primaryKey;size:36" bson:"_id" json:"_id"`
	Author    string    `gorm:"size:36;index;not null" bson:"author" json:"author"`
	Username  string    `gorm:"size:50;index;not null" bson:"username" json:"username"`
	Content   string    `gorm:"type:text;not null" bson:"content" json:"content"`
	Pictures  []string  `gorm:"type:jsonb;serializer:json" bson:"pictures" json:"pictures"`
	Videos    []string  `gorm:"type:jsonb;serializer:json" bson:"videos" json:"videos"`
	Comments  []Comment `gorm:"type:jsonb;serializer:json" bson:"comments" json:"comments"`
	CreatedAt time.Time `gorm:"index" bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// TableName specifies the table name for Tweet model
func (Tweet) TableName() string {
	return "tweets"
}

// Comment is embedded in its parent tweet; insertion order is array order.
type Comment struct {
	ID       string    `bson:"_id" json:"_id"`
	Author   string    `bson:"author" json:"author"`
	Username string    `bson:"username" json:"username"`
	Content  string    `bson:"content" json:"content"`
	Datetime time.Time `bson:"datetime" json:"datetime"`
}

// CommentIndex returns the position of the comment with the given id, or -1.
func (t *Tweet) CommentIndex(commentID string) int {
	for i := range t.Comments {
		if t.Comments[i].ID == commentID {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy so callers can mutate slices freely.
func (t *Tweet) Clone() *Tweet {
	c := *t
	c.Pictures = slices.Clone(t.Pictures)
	c.Videos = slices.Clone(t.Videos)
	c.Comments = slices.Clone(t.Comments)
	return &c
}
