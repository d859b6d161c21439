// Package pipeline routes decoded order notifications into the downstream
// directory and scheduling services and decides the acknowledgment outcome.
package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minasoft/hl7-gateway/internal/audit"
	"github.com/minasoft/hl7-gateway/internal/db"
	"github.com/minasoft/hl7-gateway/internal/hl7"
	"github.com/minasoft/hl7-gateway/internal/mllp"
)

// DirectoryClient is the patient/practitioner directory capability.
type DirectoryClient interface {
	UpsertPatient(ctx context.Context, patient db.PatientUpsert) (int64, error)
}

// SchedulingClient is the appointment scheduler capability.
type SchedulingClient interface {
	CreateAppointment(ctx context.Context, appt db.AppointmentCreate) (int64, error)
}

// AuditLogger persists raw messages, acknowledgments and transaction
// summaries. Best-effort; implementations never return errors to the caller.
type AuditLogger interface {
	LogMessage(kind, hl7Text string)
	LogSummary(s audit.Summary)
}

// HistoryRecorder publishes one transaction record per processed message.
type HistoryRecorder interface {
	Record(ctx context.Context, rec *db.TransactionRecord)
}

// State tracks a transaction through the pipeline. Failed is terminal and
// reachable from every state; an acknowledgment is produced in every case.
type State string

const (
	StateReceived        State = "Received"
	StateDecoded         State = "Decoded"
	StateValidated       State = "Validated"
	StatePatientResolved State = "PatientResolved"
	StateOrderResolved   State = "OrderResolved"
	StateAcknowledged    State = "Acknowledged"
	StateFailed          State = "Failed"
)

// Failure reasons, echoed as the ACK free text.
const (
	ReasonDecodeError     = "decode error"
	ReasonUnsupportedType = "unsupported message type"
	ReasonPatientRequired = "patient block required"
	ReasonIDRequired      = "identifier required"
	ReasonNameRequired    = "name required"
	ReasonUpsertFailed    = "patient upsert failed"
	ReasonOrderFailed     = "order resolution failed"
)

type Processor struct {
	directory        DirectoryClient
	scheduling       SchedulingClient
	audit            AuditLogger
	history          HistoryRecorder
	fallbackDoctorID int64
}

// NewProcessor wires the pipeline. history may be nil.
func NewProcessor(directory DirectoryClient, scheduling SchedulingClient, auditLog AuditLogger, history HistoryRecorder, fallbackDoctorID int64) *Processor {
	return &Processor{
		directory:        directory,
		scheduling:       scheduling,
		audit:            auditLog,
		history:          history,
		fallbackDoctorID: fallbackDoctorID,
	}
}

type transaction struct {
	state           State
	msg             *hl7.Message
	text            string
	patientInfo     string
	appointmentInfo string
	record          *db.TransactionRecord
}

// Process runs one inbound message through the state machine and returns the
// acknowledgment to write back. Exactly one acknowledgment is produced per
// message, whatever happens.
func (p *Processor) Process(ctx context.Context, raw []byte) []byte {
	tx := &transaction{
		state: StateReceived,
		text:  string(raw),
		record: &db.TransactionRecord{
			ID:         uuid.New().String(),
			Timestamp:  time.Now(),
			SourceAddr: mllp.RemoteAddr(ctx),
			RawMessage: raw,
		},
	}

	p.audit.LogMessage("RECEIVED", tx.text)
	slog.Info("HL7 mesajı alındı", "id", tx.record.ID, "source", tx.record.SourceAddr, "bytes", len(raw))

	msg, err := hl7.Parse(tx.text)
	if err != nil {
		slog.Error("Mesaj parse hatası", "id", tx.record.ID, "error", err)
		return p.fail(ctx, tx, ReasonDecodeError)
	}
	tx.msg = msg
	tx.state = StateDecoded
	tx.record.MessageType = msg.MessageType()
	tx.record.MessageControlID = msg.ControlID()

	msgType := msg.Segment("MSH").Field(9)
	if msgType.Component(1) != "ORM" || msgType.Component(2) != "O01" {
		slog.Warn("Desteklenmeyen mesaj tipi", "id", tx.record.ID, "messageType", tx.record.MessageType)
		return p.fail(ctx, tx, ReasonUnsupportedType)
	}

	pid := msg.Segment("PID")
	if pid == nil {
		return p.fail(ctx, tx, ReasonPatientRequired)
	}

	identifier := pid.Field(3).Value()
	family := pid.Field(5).Component(1)
	given := pid.Field(5).Component(2)
	tx.record.PatientDNI = identifier
	tx.record.PatientName = strings.TrimSpace(given + " " + family)

	// A patient segment carrying neither identifier nor name is treated the
	// same as a missing patient block.
	if identifier == "" && family == "" && given == "" {
		return p.fail(ctx, tx, ReasonPatientRequired)
	}
	if identifier == "" {
		return p.fail(ctx, tx, ReasonIDRequired)
	}
	if family == "" && given == "" {
		return p.fail(ctx, tx, ReasonNameRequired)
	}
	tx.state = StateValidated

	patient := mapPatient(pid)
	patientID, err := p.directory.UpsertPatient(ctx, patient)
	if err != nil {
		slog.Error("Hasta upsert hatası", "id", tx.record.ID, "dni", identifier, "error", err)
		return p.fail(ctx, tx, ReasonUpsertFailed)
	}
	tx.state = StatePatientResolved
	tx.record.PatientID = patientID
	tx.patientInfo = patientInfo(patient, patientID)
	slog.Info("Hasta çözümlendi", "id", tx.record.ID, "patientId", patientID)

	// PV1 is optional visit context; nothing downstream consumes it.
	if pv1 := msg.Segment("PV1"); pv1 != nil {
		slog.Debug("PV1 segmenti mevcut",
			"id", tx.record.ID,
			"location", pv1.Field(3).Component(1),
			"visitNumber", pv1.Field(19).Value())
	}

	// The order block is optional: a patient-only message is acknowledged AA.
	orc, obr := msg.Segment("ORC"), msg.Segment("OBR")
	if orc != nil && obr != nil {
		appt := mapAppointment(obr, patientID, p.fallbackDoctorID, time.Now())
		slog.Warn("Mesajda doktor kimliği yok, yapılandırılmış doktor atanıyor",
			"id", tx.record.ID,
			"doctorId", p.fallbackDoctorID,
			"controlID", tx.record.MessageControlID)

		appointmentID, err := p.scheduling.CreateAppointment(ctx, appt)
		if err != nil {
			slog.Error("Randevu oluşturma hatası", "id", tx.record.ID, "error", err)
			return p.fail(ctx, tx, ReasonOrderFailed)
		}
		tx.state = StateOrderResolved
		tx.record.AppointmentID = appointmentID
		tx.appointmentInfo = appointmentInfo(appt, appointmentID)
		slog.Info("Randevu oluşturuldu", "id", tx.record.ID, "appointmentId", appointmentID)
	}

	tx.state = StateAcknowledged
	ack := hl7.BuildAck(tx.msg, "AA", "Message processed successfully")
	return p.finish(ctx, tx, "AA", "", []byte(ack.Encode()))
}

// fail moves the transaction to the terminal Failed state and still emits an
// acknowledgment; when no header could be decoded at all, the fixed-template
// fallback guarantees a response.
func (p *Processor) fail(ctx context.Context, tx *transaction, reason string) []byte {
	tx.state = StateFailed

	var ackBytes []byte
	if tx.msg != nil {
		ackBytes = []byte(hl7.BuildAck(tx.msg, "AE", reason).Encode())
	} else {
		ackBytes = hl7.FallbackAck("AE", reason)
	}

	return p.finish(ctx, tx, "AE", reason, ackBytes)
}

// finish persists the audit records and the history entry, then hands the
// acknowledgment back. Audit/history problems never alter the outcome.
func (p *Processor) finish(ctx context.Context, tx *transaction, code, reason string, ackBytes []byte) []byte {
	now := time.Now()
	tx.record.AckCode = code
	tx.record.ErrorText = reason
	tx.record.RawAck = ackBytes
	tx.record.ProcessedAt = &now

	controlID := tx.record.MessageControlID
	if controlID == "" {
		controlID = "UNKNOWN"
	}

	info := tx.patientInfo
	if info == "" {
		info = "(not processed)"
	}

	p.audit.LogSummary(audit.Summary{
		ControlID:       controlID,
		AckCode:         code,
		PatientInfo:     info,
		AppointmentInfo: tx.appointmentInfo,
		ErrorText:       reason,
		RawMessage:      tx.text,
		RawAck:          string(ackBytes),
		Timestamp:       now,
	})
	p.audit.LogMessage("ACK_"+code, string(ackBytes))

	if p.history != nil {
		p.history.Record(ctx, tx.record)
	}

	slog.Info("Mesaj işlendi",
		"id", tx.record.ID,
		"controlID", controlID,
		"state", tx.state,
		"ackCode", code,
		"reason", reason)

	return ackBytes
}
