package model

import (
	"database/sql"
	"time"
)

// Contact is the data structure for a person that we know. Every contact belongs to exactly one
// user, referenced by UserId.
type Contact struct {
	Id       int64     `db:"id"`
	Name     string    `db:"name"`
	Surname  string    `db:"surname"`
	Email    string    `db:"email"`
	Phone    string    `db:"phone"`
	Birthday time.Time `db:"birthday"`
	UserId   int64     `db:"user_id"`
}

// ContactFilter holds the optional search criteria for listing contacts. A nil field imposes no
// constraint; a non-nil field is matched as a case-insensitive substring.
type ContactFilter struct {
	Name    *string
	Surname *string
	Email   *string
}

// User is an account that owns contacts.
type User struct {
	Id           int64          `db:"id"`
	Username     string         `db:"username"`
	Email        string         `db:"email"`
	Password     string         `db:"password"`
	RefreshToken sql.NullString `db:"refresh_token"`
	Confirmed    bool           `db:"confirmed"`
	CreatedAt    time.Time      `db:"created_at"`
}
