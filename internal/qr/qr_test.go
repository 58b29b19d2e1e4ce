package qr

import (
	"bytes"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qrattend/internal/attendance"
)

var issuedAt = time.Date(2024, 3, 1, 10, 30, 15, 0, time.Local)

func TestIssueClockURL(t *testing.T) {
	iss := &Issuer{TTL: 2 * time.Minute, Mode: ModeClock}

	code, err := iss.Issue("http://host:5000/", attendance.Scope{Subject: "P and S", Branch: "CSE-A"}, issuedAt)
	require.NoError(t, err)
	assert.Equal(t, "10:32", code.Expiry)
	assert.Equal(t, "http://host:5000/scan?exp=10%3A32&sub=P+and+S&branch=CSE-A", code.URL)

	code, err = iss.Issue("http://host", attendance.Scope{}, issuedAt)
	require.NoError(t, err)
	assert.Equal(t, "http://host/scan?exp=10%3A32", code.URL)
}

func TestClockExpiry(t *testing.T) {
	iss := &Issuer{Mode: ModeClock}
	scope := attendance.Scope{}

	assert.False(t, iss.Expired(issuedAt, "10:32", "", scope))
	assert.False(t, iss.Expired(issuedAt, "10:30", "", scope))
	assert.True(t, iss.Expired(issuedAt, "10:29", "", scope))
	assert.False(t, iss.Expired(issuedAt, "", "", scope))

	// issued 23:59 with exp 00:01, scanned 23:59:30: "23:59" > "00:01"
	late := time.Date(2024, 3, 1, 23, 59, 30, 0, time.Local)
	assert.True(t, iss.Expired(late, "00:01", "", scope))
}

func TestTicketExpiry(t *testing.T) {
	iss := &Issuer{TTL: 2 * time.Minute, Mode: ModeTicket, Key: "secret", Issuer: "qrattend"}
	scope := attendance.Scope{Subject: "DBMS", Branch: "CSE-A"}
	late := time.Date(2024, 3, 1, 23, 59, 0, 0, time.Local)

	code, err := iss.Issue("http://host", scope, late)
	require.NoError(t, err)
	u, err := url.Parse(code.URL)
	require.NoError(t, err)
	q := u.Query()
	ticket := q.Get("t")
	require.NotEmpty(t, ticket)

	// valid across midnight
	assert.False(t, iss.Expired(late.Add(90*time.Second), q.Get("exp"), ticket, scope))
	assert.True(t, iss.Expired(late.Add(3*time.Minute), q.Get("exp"), ticket, scope))

	assert.True(t, iss.Expired(late, q.Get("exp"), "", scope))
	assert.True(t, iss.Expired(late, q.Get("exp"), ticket, attendance.Scope{Subject: "OS", Branch: "CSE-A"}))
	assert.True(t, iss.Expired(late, q.Get("exp"), "garbage", scope))
}

func TestPNG(t *testing.T) {
	png, err := PNG("http://host/scan?exp=10%3A32")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))
}
