package models

import "time"

// User is an account row. Presence updates mutate IsOnline/LastSeen.
type User struct {
	UserID        int        `db:"user_id" json:"user_id"`
	Username      string     `db:"username" json:"username"`
	Email         string     `db:"email" json:"email,omitempty"`
	FullName      string     `db:"full_name" json:"full_name"`
	Phone         string     `db:"phone" json:"phone,omitempty"`
	ProfilePic    string     `db:"profile_pic" json:"profile_pic,omitempty"`
	StatusMessage string     `db:"status_message" json:"status_message,omitempty"`
	Bio           string     `db:"bio" json:"bio,omitempty"`
	IsOnline      bool       `db:"is_online" json:"is_online"`
	LastSeen      *time.Time `db:"last_seen" json:"last_seen,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}

// UserProfile is the public subset embedded in message payloads.
type UserProfile struct {
	UserID     int    `db:"user_id" json:"user_id"`
	Username   string `db:"username" json:"username"`
	FullName   string `db:"full_name" json:"full_name"`
	ProfilePic string `db:"profile_pic" json:"profile_pic,omitempty"`
}

// Profile trims a User down to its broadcastable fields.
func (u User) Profile() UserProfile {
	return UserProfile{
		UserID:     u.UserID,
		Username:   u.Username,
		FullName:   u.FullName,
		ProfilePic: u.ProfilePic,
	}
}
