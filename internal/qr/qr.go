// Package qr issues check-in QR codes and decides when a scanned code has expired.
package qr

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/skip2/go-qrcode"

	"qrattend/internal/attendance"
	"qrattend/internal/auth"
)

// Mode selects how expiry is checked at scan time.
type Mode string

const (
	// ModeClock compares the scan's HH:MM against the exp parameter as strings.
	ModeClock Mode = "clock"
	// ModeTicket requires a signed ticket carrying the full expiry timestamp.
	ModeTicket Mode = "ticket"
)

const pngSize = 256

// Code is one issued QR code.
type Code struct {
	URL       string
	Expiry    string // HH:MM
	ExpiresAt time.Time
	Scope     attendance.Scope
}

// Issuer builds scan URLs and implements attendance.ExpiryPolicy.
type Issuer struct {
	TTL    time.Duration
	Mode   Mode
	Key    string
	Issuer string
}

// Issue builds the scan URL for scope, valid for TTL from now.
func (i *Issuer) Issue(baseURL string, scope attendance.Scope, now time.Time) (Code, error) {
	scope = scope.Clean()
	expiresAt := now.Add(i.TTL)
	code := Code{
		Expiry:    expiresAt.Format(attendance.ClockLayout),
		ExpiresAt: expiresAt,
		Scope:     scope,
	}

	var b strings.Builder
	b.WriteString(strings.TrimRight(baseURL, "/"))
	b.WriteString("/scan?exp=")
	b.WriteString(url.QueryEscape(code.Expiry))
	if scope.Subject != "" {
		b.WriteString("&sub=" + url.QueryEscape(scope.Subject))
	}
	if scope.Branch != "" {
		b.WriteString("&branch=" + url.QueryEscape(scope.Branch))
	}
	if i.Mode == ModeTicket {
		t, err := auth.IssueTicket(scope.Subject, scope.Branch, i.Issuer, i.Key, now, expiresAt)
		if err != nil {
			return Code{}, fmt.Errorf("sign ticket: %w", err)
		}
		b.WriteString("&t=" + url.QueryEscape(t))
	}
	code.URL = b.String()
	return code, nil
}

// Expired reports whether a scan at now may no longer use the code.
func (i *Issuer) Expired(now time.Time, exp, ticket string, scope attendance.Scope) bool {
	if i.Mode == ModeTicket {
		if ticket == "" {
			return true
		}
		claims, err := auth.ParseTicket(ticket, i.Key, i.Issuer, now)
		if err != nil {
			return true
		}
		return claims.Course != scope.Subject || claims.Branch != scope.Branch
	}
	// HH:MM string comparison; a code issued just before midnight reads as
	// expired after the wrap.
	if exp == "" {
		return false
	}
	return now.Format(attendance.ClockLayout) > exp
}

// PNG renders content as a QR code image.
func PNG(content string) ([]byte, error) {
	return qrcode.Encode(content, qrcode.Medium, pngSize)
}
