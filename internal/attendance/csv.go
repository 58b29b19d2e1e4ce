package attendance

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Columns returns the CSV header for recs: Roll, Name, Date, Time, then
// Subject and Branch only when some record carries them.
func Columns(recs []Record) []string {
	var subject, branch bool
	for _, r := range recs {
		subject = subject || r.Subject != ""
		branch = branch || r.Branch != ""
	}
	cols := []string{"Roll", "Name", "Date", "Time"}
	if subject {
		cols = append(cols, "Subject")
	}
	if branch {
		cols = append(cols, "Branch")
	}
	return cols
}

// WriteCSV writes a header and one line per record using Columns.
func WriteCSV(w io.Writer, recs []Record) error {
	cols := Columns(recs)
	cw := csv.NewWriter(w)
	if err := cw.Write(cols); err != nil {
		return err
	}
	for _, r := range recs {
		row := []string{r.Roll, r.Name, r.Date, r.Time}
		for _, c := range cols[4:] {
			switch c {
			case "Subject":
				row = append(row, r.Subject)
			case "Branch":
				row = append(row, r.Branch)
			}
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportFilename names a CSV download; a branch filter takes precedence over a subject filter.
func ExportFilename(scope Scope) string {
	name := "attendance.csv"
	if scope.Subject != "" {
		name = "attendance_" + fileSafe(scope.Subject) + ".csv"
	}
	if scope.Branch != "" {
		name = "attendance_" + fileSafe(scope.Branch) + ".csv"
	}
	return name
}

// Backups writes clear-all snapshots into a directory.
type Backups struct {
	Dir string
}

// BackupFilename is attendance_<subject>_<branch>_backup_<stamp>.csv with empty parts left out.
func BackupFilename(scope Scope, at time.Time) string {
	parts := []string{"attendance"}
	if scope.Subject != "" {
		parts = append(parts, fileSafe(scope.Subject))
	}
	if scope.Branch != "" {
		parts = append(parts, fileSafe(scope.Branch))
	}
	parts = append(parts, "backup", at.Format("20060102_150405"))
	return strings.Join(parts, "_") + ".csv"
}

// Write stores recs as CSV and returns the file name and full path.
func (b *Backups) Write(scope Scope, recs []Record, at time.Time) (string, string, error) {
	if err := os.MkdirAll(b.Dir, 0o755); err != nil {
		return "", "", fmt.Errorf("create backup dir: %w", err)
	}
	name := BackupFilename(scope, at)
	path := filepath.Join(b.Dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", "", fmt.Errorf("create backup: %w", err)
	}
	if err := WriteCSV(f, recs); err != nil {
		f.Close()
		return "", "", fmt.Errorf("write backup: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", "", fmt.Errorf("close backup: %w", err)
	}
	return name, path, nil
}

var unsafeChars = strings.NewReplacer("/", "-", `\`, "-", "..", "-", `"`, "", "\x00", "")

func fileSafe(s string) string {
	return unsafeChars.Replace(s)
}
