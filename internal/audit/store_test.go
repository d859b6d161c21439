package audit

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSummary(t *testing.T, logger *Logger, controlID, patientInfo, appointmentInfo, ackCode string) {
	t.Helper()
	logger.LogSummary(Summary{
		ControlID:       controlID,
		AckCode:         ackCode,
		PatientInfo:     patientInfo,
		AppointmentInfo: appointmentInfo,
		RawMessage:      "MSH|^~\\&|EMR|HOSPITAL|||20240510120000||ORM^O01|" + controlID + "|P|2.3\r",
		Timestamp:       time.Now(),
	})
	// Distinct mod times keep the newest-first ordering deterministic.
	time.Sleep(10 * time.Millisecond)
}

func newStore(t *testing.T) (*Logger, *Store) {
	t.Helper()
	dir := t.TempDir()
	logger, err := NewLogger(dir)
	require.NoError(t, err)
	return logger, NewStore(dir)
}

func TestLogSummary_WritesFile(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewLogger(dir)
	require.NoError(t, err)

	logger.LogSummary(Summary{
		ControlID:   "CTRL1",
		AckCode:     "AA",
		PatientInfo: "DNI: 12345678\nPatientId: 101",
		ErrorText:   "",
		RawMessage:  "MSH|^~\\&|A|B\rPID|1\r",
		RawAck:      "MSH|^~\\&|B|A\rMSA|AA|CTRL1\r",
		Timestamp:   time.Now(),
	})

	matches, err := filepath.Glob(filepath.Join(dir, "SUMMARY_CTRL1_*.txt"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	content, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	text := string(content)
	assert.Contains(t, text, "HL7 TRANSACTION SUMMARY")
	assert.Contains(t, text, "Message Control ID: CTRL1")
	assert.Contains(t, text, "Status: PROCESSED SUCCESSFULLY")
	assert.Contains(t, text, "PatientId: 101")
	assert.Contains(t, text, "ACK Code: AA")
	assert.NotContains(t, text, "\r", "segment terminators are rendered as line breaks")
}

func TestLogSummary_ErrorStatus(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewLogger(dir)
	require.NoError(t, err)

	logger.LogSummary(Summary{
		ControlID:   "CTRL2",
		AckCode:     "AE",
		PatientInfo: "(not processed)",
		ErrorText:   "identifier required",
	})

	matches, _ := filepath.Glob(filepath.Join(dir, "SUMMARY_CTRL2_*.txt"))
	require.Len(t, matches, 1)
	content, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	assert.Contains(t, string(content), "Status: ERROR")
	assert.Contains(t, string(content), "ERROR:\n")
	assert.Contains(t, string(content), "identifier required")
}

func TestLogSummary_SanitizesControlID(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewLogger(dir)
	require.NoError(t, err)

	logger.LogSummary(Summary{ControlID: "CTRL/..\\evil", AckCode: "AA", PatientInfo: "x"})

	matches, _ := filepath.Glob(filepath.Join(dir, "SUMMARY_*.txt"))
	require.Len(t, matches, 1)
	base := filepath.Base(matches[0])
	assert.NotContains(t, base, "/")
	assert.True(t, strings.HasPrefix(base, "SUMMARY_CTRL_"))
}

func TestLogMessage_WritesTimestampedFile(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewLogger(dir)
	require.NoError(t, err)

	logger.LogMessage("RECEIVED", "MSH|^~\\&|A|B\rPID|1\r")

	matches, err := filepath.Glob(filepath.Join(dir, "RECEIVED_*.txt"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	content, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	assert.Contains(t, string(content), "HL7 MESSAGE - RECEIVED")
	assert.Contains(t, string(content), "MSH|^~\\&|A|B\nPID|1\n")
}

func TestFindByAppointment_ExactMatch(t *testing.T) {
	logger, store := newStore(t)
	writeSummary(t, logger, "CTRL1", "PatientId: 101", "AppointmentId: 555", "AA")
	writeSummary(t, logger, "CTRL2", "PatientId: 102", "AppointmentId: 556", "AA")

	found, err := store.FindByAppointment(555)
	require.NoError(t, err)

	assert.Equal(t, MatchExact, found.Match)
	assert.Contains(t, found.Content, "AppointmentId: 555")
	assert.Contains(t, found.Filename, "CTRL1")
}

func TestFindByAppointment_FallsBackToLatest(t *testing.T) {
	logger, store := newStore(t)
	writeSummary(t, logger, "CTRL1", "PatientId: 101", "AppointmentId: 555", "AA")
	writeSummary(t, logger, "CTRL2", "PatientId: 102", "AppointmentId: 556", "AA")

	found, err := store.FindByAppointment(999)
	require.NoError(t, err)

	assert.Equal(t, MatchLatest, found.Match, "unknown id degrades to the newest summary")
	assert.Contains(t, found.Filename, "CTRL2", "newest file wins")
}

func TestFindByAppointment_EmptyDirectory(t *testing.T) {
	_, store := newStore(t)

	_, err := store.FindByAppointment(555)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFindByPatient_ExactMatch(t *testing.T) {
	logger, store := newStore(t)
	writeSummary(t, logger, "CTRL1", "PatientId: 101", "", "AA")
	writeSummary(t, logger, "CTRL2", "PatientId: 102", "", "AA")

	found, err := store.FindByPatient(101, nil)
	require.NoError(t, err)

	assert.Equal(t, MatchExact, found.Match)
	assert.Contains(t, found.Filename, "CTRL1")
}

func TestFindByPatient_NewestMatchWins(t *testing.T) {
	logger, store := newStore(t)
	writeSummary(t, logger, "OLD", "PatientId: 101", "", "AA")
	writeSummary(t, logger, "NEW", "PatientId: 101", "", "AA")

	found, err := store.FindByPatient(101, nil)
	require.NoError(t, err)
	assert.Contains(t, found.Filename, "NEW")
}

func TestFindByPatient_DateFilter(t *testing.T) {
	logger, store := newStore(t)
	writeSummary(t, logger, "CTRL1", "PatientId: 101", "", "AA")

	today := time.Now()
	found, err := store.FindByPatient(101, &today)
	require.NoError(t, err)
	assert.Equal(t, MatchExact, found.Match)

	yesterday := today.Add(-24 * time.Hour)
	_, err = store.FindByPatient(101, &yesterday)
	assert.ErrorIs(t, err, ErrNotFound, "no file written on that date")
}

func TestList_HeadlineFields(t *testing.T) {
	logger, store := newStore(t)
	writeSummary(t, logger, "CTRL1", "DNI: 12345678\nPatientId: 101", "AppointmentId: 555", "AA")
	writeSummary(t, logger, "CTRL2", "DNI: 87654321\nPatientId: 102", "", "AE")

	heads, err := store.List(10)
	require.NoError(t, err)
	require.Len(t, heads, 2)

	assert.Equal(t, "CTRL2", heads[0].MessageControlID, "newest first")
	assert.Equal(t, "102", heads[0].PatientID)
	assert.Equal(t, "CTRL1", heads[1].MessageControlID)
	assert.Equal(t, "101", heads[1].PatientID)
	assert.NotEmpty(t, heads[0].Date)
	assert.Positive(t, heads[0].Size)
}

func TestList_LimitApplies(t *testing.T) {
	logger, store := newStore(t)
	for _, id := range []string{"A", "B", "C"} {
		writeSummary(t, logger, id, "PatientId: 1", "", "AA")
	}

	heads, err := store.List(2)
	require.NoError(t, err)
	assert.Len(t, heads, 2)
}

func TestList_EmptyDirectory(t *testing.T) {
	_, store := newStore(t)

	heads, err := store.List(10)
	require.NoError(t, err)
	assert.Empty(t, heads)
}
