package models

import (
	"slices"
	"time"
)

// User represents a registered account.
//
// PasswordHash, Tokens and Avatar never leave the server: they carry
// json:"-" and responses are built from UserView.
type User struct {
	ID           string    `gorm:"primaryKey;size:36" bson:"_id" json:"_id"`
	Username     string    `gorm:"uniqueIndex;size:50;not null" bson:"username" json:"username"`
	Email        string    `gorm:"size:100;not null" bson:"email" json:"email"`
	PasswordHash string    `gorm:"size:255;not null" bson:"password" json:"-"`
	Tokens       []string  `gorm:"type:jsonb;serializer:json" bson:"tokens" json:"-"`
	Avatar       []byte    `gorm:"type:bytea" bson:"avatar,omitempty" json:"-"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time `bson:"updatedAt" json:"updatedAt"`
}

// TableName specifies the table name for User model
func (User) TableName() string {
	return "users"
}

// HasToken reports whether token is one of the user's active sessions.
func (u *User) HasToken(token string) bool {
	return slices.Contains(u.Tokens, token)
}

// UserView is the public projection of a User.
type UserView struct {
	ID        string    `json:"_id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PublicView strips credentials, sessions and avatar bytes.
func (u *User) PublicView() UserView {
	return UserView{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// Clone returns a deep copy of the user.
func (u *User) Clone() *User {
	c := *u
	c.Tokens = slices.Clone(u.Tokens)
	c.Avatar = slices.Clone(u.Avatar)
	return &c
}
