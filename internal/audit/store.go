package audit

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ErrNotFound is returned when no summary file exists at all for a query.
var ErrNotFound = errors.New("özet bulunamadı")

// Match reports how a summary lookup was satisfied. Lookup is best-effort
// text matching, not an indexed query; when no file matches the requested
// identifier the newest summary is returned flagged as MatchLatest so callers
// can see the answer may belong to another transaction.
type Match string

const (
	MatchExact  Match = "exact"
	MatchLatest Match = "latest"
)

// SummaryFile is one retrieved summary document.
type SummaryFile struct {
	Filename string
	Content  string
	Match    Match
}

// SummaryHead is the headline view used by the listing operation.
type SummaryHead struct {
	Filename         string    `json:"filename"`
	MessageControlID string    `json:"messageControlId"`
	Date             string    `json:"date"`
	PatientID        string    `json:"patientId"`
	Size             int64     `json:"size"`
	Created          time.Time `json:"created"`
}

// Store reads the summaries the Logger wrote.
type Store struct {
	dir string
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// FindByAppointment returns the newest summary mentioning the appointment id,
// or the newest summary overall flagged MatchLatest.
func (s *Store) FindByAppointment(appointmentID int64) (*SummaryFile, error) {
	return s.find(fmt.Sprintf("AppointmentId: %d", appointmentID), nil)
}

// FindByPatient returns the newest summary mentioning the patient id,
// optionally restricted to files written on the given calendar date.
func (s *Store) FindByPatient(patientID int64, date *time.Time) (*SummaryFile, error) {
	return s.find(fmt.Sprintf("PatientId: %d", patientID), date)
}

func (s *Store) find(needle string, date *time.Time) (*SummaryFile, error) {
	files, err := s.summaryFiles()
	if err != nil {
		return nil, err
	}

	if date != nil {
		filtered := files[:0]
		for _, f := range files {
			if sameDay(f.modTime, *date) {
				filtered = append(filtered, f)
			}
		}
		files = filtered
	}

	if len(files) == 0 {
		return nil, ErrNotFound
	}

	for _, f := range files {
		content, err := os.ReadFile(f.path)
		if err != nil {
			continue
		}
		if strings.Contains(string(content), needle) {
			return &SummaryFile{
				Filename: filepath.Base(f.path),
				Content:  string(content),
				Match:    MatchExact,
			}, nil
		}
	}

	// Best-effort fallback: newest available summary.
	content, err := os.ReadFile(files[0].path)
	if err != nil {
		return nil, fmt.Errorf("özet dosyası okunamadı: %w", err)
	}
	return &SummaryFile{
		Filename: filepath.Base(files[0].path),
		Content:  string(content),
		Match:    MatchLatest,
	}, nil
}

// List returns headline fields for the most recent summaries, newest first.
func (s *Store) List(limit int) ([]SummaryHead, error) {
	files, err := s.summaryFiles()
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(files) > limit {
		files = files[:limit]
	}

	heads := []SummaryHead{}
	for _, f := range files {
		content, err := os.ReadFile(f.path)
		if err != nil {
			continue
		}

		head := SummaryHead{
			Filename: filepath.Base(f.path),
			Size:     f.size,
			Created:  f.modTime,
			Date:     f.modTime.Format("2006-01-02 15:04:05"),
		}
		for _, line := range strings.Split(string(content), "\n") {
			switch {
			case strings.HasPrefix(line, "Message Control ID:"):
				head.MessageControlID = strings.TrimSpace(strings.TrimPrefix(line, "Message Control ID:"))
			case strings.HasPrefix(line, "Date/Time:") && head.Date == f.modTime.Format("2006-01-02 15:04:05"):
				head.Date = strings.TrimSpace(strings.TrimPrefix(line, "Date/Time:"))
			case strings.HasPrefix(line, "PatientId:") && head.PatientID == "":
				head.PatientID = strings.TrimSpace(strings.TrimPrefix(line, "PatientId:"))
			}
		}
		heads = append(heads, head)
	}
	return heads, nil
}

type summaryEntry struct {
	path    string
	size    int64
	modTime time.Time
}

// summaryFiles lists SUMMARY_* files, newest first.
func (s *Store) summaryFiles() ([]summaryEntry, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, summaryPrefix+"*.txt"))
	if err != nil {
		return nil, fmt.Errorf("özet dizini okunamadı: %w", err)
	}

	entries := []summaryEntry{}
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		entries = append(entries, summaryEntry{path: path, size: info.Size(), modTime: info.ModTime()})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].modTime.Equal(entries[j].modTime) {
			return entries[i].path > entries[j].path
		}
		return entries[i].modTime.After(entries[j].modTime)
	})
	return entries, nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
