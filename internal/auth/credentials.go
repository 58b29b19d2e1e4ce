package auth

import (
	"crypto/subtle"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Role names a login page and the session marker it sets.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleStudent Role = "student"
)

// Result is the outcome of a login attempt.
type Result int

const (
	OK Result = iota
	WrongPassword
	WrongRole // username belongs to the other role
	Unknown
)

// Credential is a single username/password pair. Password may be a bcrypt hash.
type Credential struct {
	Username string
	Password string
}

func (c Credential) matchUser(username string) bool {
	return subtle.ConstantTimeCompare([]byte(c.Username), []byte(username)) == 1
}

func (c Credential) matchPassword(password string) bool {
	if isBcrypt(c.Password) {
		return bcrypt.CompareHashAndPassword([]byte(c.Password), []byte(password)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(c.Password), []byte(password)) == 1
}

func isBcrypt(s string) bool {
	return strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$")
}

// Credentials holds the one admin and one student login.
type Credentials struct {
	Admin   Credential
	Student Credential
}

// Check validates a login made on the given role's page.
func (c Credentials) Check(role Role, username, password string) Result {
	own, other := c.Admin, c.Student
	if role == RoleStudent {
		own, other = c.Student, c.Admin
	}
	switch {
	case own.matchUser(username):
		if own.matchPassword(password) {
			return OK
		}
		return WrongPassword
	case other.matchUser(username):
		return WrongRole
	default:
		return Unknown
	}
}

// Message is the user-facing text for a failed login on role's page.
func Message(role Role, r Result) string {
	switch r {
	case WrongPassword:
		return "Wrong password"
	case WrongRole:
		if role == RoleAdmin {
			return "Please use the Student Login page."
		}
		return "Please use the Admin Login page."
	case Unknown:
		if role == RoleAdmin {
			return "Invalid Admin Credentials"
		}
		return "Invalid Student Credentials"
	}
	return ""
}

// HashPassword returns a bcrypt hash suitable for ADMIN_PASSWORD or STUDENT_PASSWORD.
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(b), err
}
