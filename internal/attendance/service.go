package attendance

import (
	"context"
	"errors"
	"strings"
	"time"

	"qrattend/internal/dedup"
)

// ExpiryPolicy decides whether a scanned QR code may still be used.
type ExpiryPolicy interface {
	Expired(now time.Time, exp, ticket string, scope Scope) bool
}

// ScanRequest carries one check-in attempt from a scanned QR URL.
type ScanRequest struct {
	SessionID string
	Exp       string
	Ticket    string
	Query     Scope // from the QR URL
	Form      Scope // from the submitted form
	Roll      string
	Name      string
}

// Summary is a student's own attendance view.
type Summary struct {
	Name      string         `json:"student_name"`
	Subject   string         `json:"selected_subject"`
	Records   []Record       `json:"records"`
	BySubject map[string]int `json:"attendance_count"`
}

// ClearResult describes a bulk clear.
type ClearResult struct {
	Deleted int64
	Backup  string // file name, empty when nothing matched
	Path    string
}

// Service coordinates check-ins, deduplication and record maintenance.
type Service struct {
	repo    *Repository
	marks   dedup.Cache
	expiry  ExpiryPolicy
	backups *Backups
	now     func() time.Time
}

// NewService creates a service backed by a repository.
func NewService(repo *Repository, marks dedup.Cache, expiry ExpiryPolicy, backups *Backups) *Service {
	if marks == nil {
		marks = dedup.NewInMemory()
	}
	return &Service{repo: repo, marks: marks, expiry: expiry, backups: backups, now: time.Now}
}

// SetClock replaces the service clock.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Open runs the checks that guard the check-in form: expiry first, then the
// session flag for the QR's scope.
func (s *Service) Open(ctx context.Context, req ScanRequest) error {
	now := s.now()
	if s.expiry != nil && s.expiry.Expired(now, req.Exp, req.Ticket, req.Query.Clean()) {
		return ErrExpired
	}
	date := now.Format(DateLayout)
	marked, err := s.marks.Marked(ctx, req.SessionID, req.Query.Clean().MarkKey(date))
	if err != nil {
		return persist("check session flag", err)
	}
	if marked {
		return &DuplicateError{Date: date, Scope: req.Query.Clean(), Session: true}
	}
	return nil
}

// CheckIn records attendance for a scanned QR code.
func (s *Service) CheckIn(ctx context.Context, req ScanRequest) (Record, error) {
	if err := s.Open(ctx, req); err != nil {
		return Record{}, err
	}
	roll := strings.TrimSpace(req.Roll)
	name := strings.TrimSpace(req.Name)
	if roll == "" || name == "" {
		return Record{}, ErrValidation
	}

	now := s.now()
	rec := Record{
		Roll: roll,
		Name: name,
		Date: now.Format(DateLayout),
		Time: now.Format(TimeLayout),
	}
	scope := req.Query.Clean().Or(req.Form.Clean())
	rec.Subject, rec.Branch = scope.Subject, scope.Branch

	err := s.insertUnique(ctx, rec)
	if err != nil && !IsDuplicate(err) {
		return Record{}, err
	}
	key := req.Query.Clean().MarkKey(rec.Date)
	if markErr := s.marks.Mark(ctx, req.SessionID, key, dedup.EndOfDay(now)); markErr != nil && err == nil {
		return rec, persist("set session flag", markErr)
	}
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

// ManualAdd inserts an administrator-supplied record with the same duplicate
// rule as CheckIn. Empty date and time default to now.
func (s *Service) ManualAdd(ctx context.Context, rec Record) (Record, error) {
	rec.Roll = strings.TrimSpace(rec.Roll)
	rec.Name = strings.TrimSpace(rec.Name)
	if rec.Roll == "" || rec.Name == "" {
		return Record{}, ErrValidation
	}
	now := s.now()
	if strings.TrimSpace(rec.Date) == "" {
		rec.Date = now.Format(DateLayout)
	}
	if strings.TrimSpace(rec.Time) == "" {
		rec.Time = now.Format(TimeLayout)
	}
	scope := rec.Scope().Clean()
	rec.Subject, rec.Branch = scope.Subject, scope.Branch

	if err := s.insertUnique(ctx, rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (s *Service) insertUnique(ctx context.Context, rec Record) error {
	exists, err := s.repo.Exists(ctx, rec.Roll, rec.Date, rec.Scope())
	if err != nil {
		return persist("duplicate check", err)
	}
	if exists {
		return &DuplicateError{Roll: rec.Roll, Date: rec.Date, Scope: rec.Scope()}
	}
	if err := s.repo.Insert(ctx, rec); err != nil {
		if IsDuplicate(err) {
			return err
		}
		return persist("insert attendance", err)
	}
	return nil
}

// List returns records for the listing page.
func (s *Service) List(ctx context.Context, f Filter) ([]Record, error) {
	recs, err := s.repo.List(ctx, f.Normalized())
	return recs, persist("list attendance", err)
}

// StudentSummary returns a student's records, optionally narrowed to one
// subject, with per-subject counts taken over all of the student's records.
func (s *Service) StudentSummary(ctx context.Context, name, subject string) (Summary, error) {
	name = strings.TrimSpace(name)
	subject = strings.TrimSpace(subject)
	all, err := s.repo.ListByName(ctx, name)
	if err != nil {
		return Summary{}, persist("list student attendance", err)
	}
	sum := Summary{Name: name, Subject: subject, Records: []Record{}, BySubject: map[string]int{}}
	for _, rec := range all {
		if rec.Subject != "" {
			sum.BySubject[rec.Subject]++
		}
		if subject == "" || rec.Subject == subject {
			sum.Records = append(sum.Records, rec)
		}
	}
	return sum, nil
}

// Delete removes one record identified by roll, date, time and optional subject.
func (s *Service) Delete(ctx context.Context, roll, date, tm, subject string) (int64, error) {
	n, err := s.repo.Delete(ctx, roll, date, tm, subject)
	return n, persist("delete attendance", err)
}

// Clear deletes every record in scope after writing them to a backup file.
// No file is written when nothing matches.
func (s *Service) Clear(ctx context.Context, scope Scope) (ClearResult, error) {
	if s.backups == nil {
		return ClearResult{}, errors.New("backups not configured")
	}
	scope = scope.Clean()
	var res ClearResult
	n, err := s.repo.ClearScope(ctx, scope, func(recs []Record) error {
		if len(recs) == 0 {
			return nil
		}
		name, path, err := s.backups.Write(scope, recs, s.now())
		if err != nil {
			return err
		}
		res.Backup, res.Path = name, path
		return nil
	})
	if err != nil {
		return ClearResult{}, persist("clear attendance", err)
	}
	res.Deleted = n
	return res, nil
}

// Export returns records for a CSV download filtered by subject and branch only.
func (s *Service) Export(ctx context.Context, scope Scope) ([]Record, error) {
	scope = scope.Clean()
	recs, err := s.repo.List(ctx, Filter{Subject: scope.Subject, Branch: scope.Branch})
	return recs, persist("export attendance", err)
}
