// Package audit persists every inbound HL7 message, every acknowledgment and
// one consolidated transaction summary as plain-text files. Writes are
// best-effort: failures are logged and never abort the pipeline.
package audit

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	summaryPrefix = "SUMMARY_"
	fileTimestamp = "20060102_150405.000000"
)

// Summary is the denormalized record of one processed transaction.
type Summary struct {
	ControlID       string
	AckCode         string
	PatientInfo     string
	AppointmentInfo string
	ErrorText       string
	RawMessage      string
	RawAck          string
	Timestamp       time.Time
}

type Logger struct {
	dir string
}

func NewLogger(dir string) (*Logger, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("audit dizini oluşturulamadı: %w", err)
	}
	return &Logger{dir: dir}, nil
}

// LogMessage records one raw HL7 message or acknowledgment as an independent
// timestamped file. kind names the record (RECEIVED, ACK_AA, ACK_AE, ...).
func (l *Logger) LogMessage(kind, hl7Text string) {
	now := time.Now()
	filename := fmt.Sprintf("%s_%s.txt", kind, now.Format(fileTimestamp))

	var b strings.Builder
	writeRule(&b, '=')
	fmt.Fprintf(&b, "HL7 MESSAGE - %s\n", kind)
	fmt.Fprintf(&b, "Date/Time: %s\n", now.Format("2006-01-02 15:04:05"))
	writeRule(&b, '=')
	b.WriteString("\n")
	writeRule(&b, '-')
	b.WriteString(displayHL7(hl7Text))
	writeRule(&b, '-')

	l.write(filename, b.String())
}

// LogSummary records one consolidated transaction summary, uniquely named by
// control id with a timestamp suffix.
func (l *Logger) LogSummary(s Summary) {
	if s.Timestamp.IsZero() {
		s.Timestamp = time.Now()
	}
	filename := fmt.Sprintf("%s%s_%s.txt", summaryPrefix, safeName(s.ControlID), s.Timestamp.Format(fileTimestamp))

	status := "ERROR"
	if s.AckCode == "AA" {
		status = "PROCESSED SUCCESSFULLY"
	}

	var b strings.Builder
	writeRule(&b, '=')
	b.WriteString("HL7 TRANSACTION SUMMARY\n")
	writeRule(&b, '=')
	fmt.Fprintf(&b, "Date/Time: %s\n", s.Timestamp.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Message Control ID: %s\n", s.ControlID)
	fmt.Fprintf(&b, "Status: %s\n\n", status)

	b.WriteString("PATIENT:\n")
	writeRule(&b, '-')
	b.WriteString(strings.TrimRight(s.PatientInfo, "\n") + "\n\n")

	if s.AppointmentInfo != "" {
		b.WriteString("APPOINTMENT/ORDER:\n")
		writeRule(&b, '-')
		b.WriteString(strings.TrimRight(s.AppointmentInfo, "\n") + "\n\n")
	}

	if s.ErrorText != "" {
		b.WriteString("ERROR:\n")
		writeRule(&b, '-')
		b.WriteString(s.ErrorText + "\n\n")
	}

	if s.RawMessage != "" {
		b.WriteString("HL7 MESSAGE:\n")
		writeRule(&b, '-')
		b.WriteString(displayHL7(s.RawMessage))
		writeRule(&b, '-')
		b.WriteString("\n")
	}

	if s.RawAck != "" {
		b.WriteString("ACK MESSAGE:\n")
		writeRule(&b, '-')
		b.WriteString(displayHL7(s.RawAck))
		writeRule(&b, '-')
		b.WriteString("\n")
	}

	writeRule(&b, '=')
	fmt.Fprintf(&b, "ACK Code: %s\n", s.AckCode)
	writeRule(&b, '=')

	l.write(filename, b.String())
}

func (l *Logger) write(filename, content string) {
	path := filepath.Join(l.dir, filename)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		slog.Error("Audit dosyası yazılamadı", "path", path, "error", err)
		return
	}
	slog.Debug("Audit dosyası yazıldı", "path", path)
}

// displayHL7 renders segment terminators as line breaks for readability.
func displayHL7(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\r")
	text = strings.ReplaceAll(text, "\r", "\n")
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	return text
}

func safeName(s string) string {
	if s == "" {
		return "UNKNOWN"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
			return r
		}
		return '_'
	}, s)
}

func writeRule(b *strings.Builder, c byte) {
	b.WriteString(strings.Repeat(string(c), 40) + "\n")
}
