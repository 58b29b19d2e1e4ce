package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TicketClaims is the payload of a signed QR check-in ticket.
type TicketClaims struct {
	Course string `json:"course,omitempty"`
	Branch string `json:"branch,omitempty"`
	jwt.RegisteredClaims
}

// IssueTicket signs a ticket for a subject/branch scope valid until expiresAt.
func IssueTicket(subject, branch, issuer, key string, issuedAt, expiresAt time.Time) (string, error) {
	claims := TicketClaims{
		Course: subject,
		Branch: branch,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
}

// ParseTicket validates signature, issuer and expiry against now.
func ParseTicket(tokenStr, key, issuer string, now time.Time) (TicketClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	parsed, err := jwt.ParseWithClaims(tokenStr, &TicketClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(key), nil
	}, opts...)
	if err != nil {
		return TicketClaims{}, err
	}
	claims, ok := parsed.Claims.(*TicketClaims)
	if !ok || !parsed.Valid {
		return TicketClaims{}, errors.New("invalid ticket")
	}
	return *claims, nil
}
