package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func creds(t *testing.T) Credentials {
	t.Helper()
	hash, err := HashPassword("student123")
	require.NoError(t, err)
	return Credentials{
		Admin:   Credential{Username: "admin", Password: "admin123"},
		Student: Credential{Username: "student", Password: hash},
	}
}

func TestCheckAdminPage(t *testing.T) {
	c := creds(t)
	assert.Equal(t, OK, c.Check(RoleAdmin, "admin", "admin123"))
	assert.Equal(t, WrongPassword, c.Check(RoleAdmin, "admin", "wrongpass"))
	assert.Equal(t, WrongRole, c.Check(RoleAdmin, "student", "student123"))
	assert.Equal(t, Unknown, c.Check(RoleAdmin, "root", "admin123"))
}

func TestCheckStudentPageWithHashedPassword(t *testing.T) {
	c := creds(t)
	assert.Equal(t, OK, c.Check(RoleStudent, "student", "student123"))
	assert.Equal(t, WrongPassword, c.Check(RoleStudent, "student", "nope"))
	assert.Equal(t, WrongRole, c.Check(RoleStudent, "admin", "admin123"))
	assert.Equal(t, Unknown, c.Check(RoleStudent, "", ""))
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "Wrong password", Message(RoleAdmin, WrongPassword))
	assert.Equal(t, "Please use the Student Login page.", Message(RoleAdmin, WrongRole))
	assert.Equal(t, "Please use the Admin Login page.", Message(RoleStudent, WrongRole))
	assert.Equal(t, "Invalid Admin Credentials", Message(RoleAdmin, Unknown))
	assert.Equal(t, "Invalid Student Credentials", Message(RoleStudent, Unknown))
	assert.Empty(t, Message(RoleAdmin, OK))
}

func TestTicketRoundTrip(t *testing.T) {
	now := time.Date(2024, 3, 1, 23, 59, 0, 0, time.UTC)
	tok, err := IssueTicket("DBMS", "CSE-A", "qrattend", "k", now, now.Add(2*time.Minute))
	require.NoError(t, err)

	claims, err := ParseTicket(tok, "k", "qrattend", now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, "DBMS", claims.Course)
	assert.Equal(t, "CSE-A", claims.Branch)

	// past midnight the full timestamp still decides
	_, err = ParseTicket(tok, "k", "qrattend", now.Add(3*time.Minute))
	assert.Error(t, err)
}

func TestTicketRejectsWrongKeyOrIssuer(t *testing.T) {
	now := time.Now()
	tok, err := IssueTicket("", "", "qrattend", "k", now, now.Add(time.Minute))
	require.NoError(t, err)

	_, err = ParseTicket(tok, "other", "qrattend", now)
	assert.Error(t, err)
	_, err = ParseTicket(tok, "k", "someone-else", now)
	assert.Error(t, err)
	_, err = ParseTicket("not-a-token", "k", "qrattend", now)
	assert.Error(t, err)
}
