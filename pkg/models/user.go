package models

import (
	"time"
)

type User struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	IsVerified   bool       `json:"isVerified"`
	OTP          *string    `json:"-"`
	OTPExpires   *time.Time `json:"-"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// Profile is the public view of a user returned by login and validate.
type Profile struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (u *User) Profile() Profile {
	return Profile{ID: u.ID, Name: u.Name, Email: u.Email}
}

// SetOTP stores a one-time code valid until expires.
func (u *User) SetOTP(code string, expires time.Time) {
	u.OTP = &code
	u.OTPExpires = &expires
}

func (u *User) ClearOTP() {
	u.OTP = nil
	u.OTPExpires = nil
}

// OTPValid reports whether code matches the stored OTP and has not expired at now.
func (u *User) OTPValid(code string, now time.Time) bool {
	if u.OTP == nil || u.OTPExpires == nil {
		return false
	}
	return *u.OTP == code && !u.OTPExpires.Before(now)
}
