package entity

import "time"

type User struct {
	ID           int64
	UserNumber   int64
	Email        string
	Phone        string
	Name         string
	DateOfBirth  time.Time
	LoginMethod  Channel
	PasswordHash string
	IsBlocked    bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewUser is the input of a registration. UserNumber is assigned by the store.
type NewUser struct {
	ID          int64
	Email       string
	Phone       string
	Name        string
	DateOfBirth time.Time
	LoginMethod Channel
}

type Admin struct {
	ID           int64
	Email        string
	Name         string
	PasswordHash string
	CreatedAt    time.Time
}

// PublicProfile is the subset of a user that anyone may read.
type PublicProfile struct {
	UserNumber int64
	Name       string
	CreatedAt  time.Time
}
