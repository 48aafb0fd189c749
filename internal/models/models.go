package models

import (
	"database/sql"
	"time"
)

// Role is the permission level of a user.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// DateLayout is the display format stored in blog_posts.date.
const DateLayout = "January 02, 2006"

// DefaultCategory is stored when a post is created without one.
const DefaultCategory = "general"

type User struct {
	ID           int
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
}

// IsAdmin is false for a nil (anonymous) user.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

type Session struct {
	ID        string
	UserID    int
	CreatedAt time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
}

// Active reports whether the session can still identify its user at now.
func (s *Session) Active(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}

type Post struct {
	ID        int
	UserID    sql.NullInt64
	Author    string
	Title     string
	Subtitle  string
	Date      string
	Body      string
	ImgURL    string
	Category  string
	CreatedAt time.Time
}

type Comment struct {
	ID        int
	PostID    int
	UserID    sql.NullInt64
	Name      string
	Body      string
	CreatedAt time.Time
}
