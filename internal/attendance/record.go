package attendance

import (
	"fmt"
	"strings"
)

const (
	DateLayout  = "2006-01-02"
	TimeLayout  = "15:04:05"
	ClockLayout = "15:04"
)

// Scope narrows attendance to a class session. Empty fields mean "general".
type Scope struct {
	Subject string
	Branch  string
}

// Clean returns the scope with surrounding whitespace removed.
func (s Scope) Clean() Scope {
	return Scope{Subject: strings.TrimSpace(s.Subject), Branch: strings.TrimSpace(s.Branch)}
}

// Or fills empty fields from fallback.
func (s Scope) Or(fallback Scope) Scope {
	if s.Subject == "" {
		s.Subject = fallback.Subject
	}
	if s.Branch == "" {
		s.Branch = fallback.Branch
	}
	return s
}

// MarkKey is the per-session dedup flag name for this scope on date.
func (s Scope) MarkKey(date string) string {
	return fmt.Sprintf("marked_%s_%s_%s", date, orGeneral(s.Subject), orGeneral(s.Branch))
}

func orGeneral(v string) string {
	if v == "" {
		return "general"
	}
	return v
}

// Record is one attendance row.
type Record struct {
	Roll    string `json:"roll"`
	Name    string `json:"name"`
	Date    string `json:"date"`
	Time    string `json:"time"`
	Subject string `json:"subject,omitempty"`
	Branch  string `json:"branch,omitempty"`
}

// Scope returns the record's subject and branch.
func (r Record) Scope() Scope {
	return Scope{Subject: r.Subject, Branch: r.Branch}
}

// Filter selects records for listing. Empty fields do not filter.
type Filter struct {
	Subject string
	Branch  string
	Name    string // case-insensitive substring
	Month   string
	Day     string
}

// Normalized trims the filter and zero-pads month and day.
func (f Filter) Normalized() Filter {
	f.Subject = strings.TrimSpace(f.Subject)
	f.Branch = strings.TrimSpace(f.Branch)
	f.Name = strings.TrimSpace(f.Name)
	f.Month = zeroPad(strings.TrimSpace(f.Month))
	f.Day = zeroPad(strings.TrimSpace(f.Day))
	return f
}

func zeroPad(v string) string {
	if len(v) == 1 {
		return "0" + v
	}
	return v
}
