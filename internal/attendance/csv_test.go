package attendance

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColumns(t *testing.T) {
	base := Record{Roll: "1", Name: "A", Date: "2024-03-01", Time: "09:00:00"}
	withSubject := base
	withSubject.Subject = "DBMS"
	withBranch := base
	withBranch.Branch = "CSE-A"

	assert.Len(t, Columns(nil), 4)
	assert.Len(t, Columns([]Record{base}), 4)
	assert.Equal(t, []string{"Roll", "Name", "Date", "Time", "Subject"}, Columns([]Record{base, withSubject}))
	assert.Equal(t, []string{"Roll", "Name", "Date", "Time", "Branch"}, Columns([]Record{withBranch}))
	assert.Len(t, Columns([]Record{withSubject, withBranch}), 6)
}

func TestWriteCSVRowsMatchHeader(t *testing.T) {
	recs := []Record{
		{Roll: "1", Name: "Asha, R", Date: "2024-03-01", Time: "09:00:00", Subject: "DBMS"},
		{Roll: "2", Name: "Ravi", Date: "2024-03-01", Time: "09:01:00", Branch: "CSE-A"},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, recs))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"1", "Asha, R", "2024-03-01", "09:00:00", "DBMS", ""}, rows[1])
	assert.Equal(t, []string{"2", "Ravi", "2024-03-01", "09:01:00", "", "CSE-A"}, rows[2])
}

func TestFilenames(t *testing.T) {
	at := time.Date(2024, 3, 1, 14, 5, 9, 0, time.UTC)
	assert.Equal(t, "attendance_backup_20240301_140509.csv", BackupFilename(Scope{}, at))
	assert.Equal(t, "attendance_DBMS_backup_20240301_140509.csv", BackupFilename(Scope{Subject: "DBMS"}, at))
	assert.Equal(t, "attendance_CSE-A_backup_20240301_140509.csv", BackupFilename(Scope{Branch: "CSE-A"}, at))
	assert.Equal(t, "attendance_P and S_CSE-A_backup_20240301_140509.csv", BackupFilename(Scope{Subject: "P and S", Branch: "CSE-A"}, at))
	assert.Equal(t, "attendance_a-b_backup_20240301_140509.csv", BackupFilename(Scope{Subject: "a/b"}, at))

	assert.Equal(t, "attendance.csv", ExportFilename(Scope{}))
	assert.Equal(t, "attendance_DBMS.csv", ExportFilename(Scope{Subject: "DBMS"}))
	assert.Equal(t, "attendance_CSE-A.csv", ExportFilename(Scope{Subject: "DBMS", Branch: "CSE-A"}))
}

func TestMarkKey(t *testing.T) {
	assert.Equal(t, "marked_2024-03-01_general_general", Scope{}.MarkKey("2024-03-01"))
	assert.Equal(t, "marked_2024-03-01_DBMS_general", Scope{Subject: "DBMS"}.MarkKey("2024-03-01"))
	assert.Equal(t, "marked_2024-03-01_DBMS_CSE-A", Scope{Subject: "DBMS", Branch: "CSE-A"}.MarkKey("2024-03-01"))
}

func TestFilterNormalized(t *testing.T) {
	f := Filter{Month: "3", Day: " 7 ", Name: " asha "}.Normalized()
	assert.Equal(t, "03", f.Month)
	assert.Equal(t, "07", f.Day)
	assert.Equal(t, "asha", f.Name)
}
