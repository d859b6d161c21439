package db

import (
	"time"
)

// TransactionRecord is the durable history entry published per processed
// MLLP transaction.
type TransactionRecord struct {
	ID               string     `json:"id"`
	Timestamp        time.Time  `json:"timestamp"`
	SourceAddr       string     `json:"source_addr"`
	MessageType      string     `json:"message_type"`
	MessageControlID string     `json:"message_control_id"`
	PatientDNI       string     `json:"patient_dni"`
	PatientName      string     `json:"patient_name"`
	PatientID        int64      `json:"patient_id,omitempty"`
	AppointmentID    int64      `json:"appointment_id,omitempty"`
	AckCode          string     `json:"ack_code"`
	ErrorText        string     `json:"error_text,omitempty"`
	RawMessage       []byte     `json:"raw_message"`
	RawAck           []byte     `json:"raw_ack"`
	ProcessedAt      *time.Time `json:"processed_at,omitempty"`
}

// PatientUpsert carries the patient fields derivable from one order
// notification; created fresh per transaction, never shared.
type PatientUpsert struct {
	DNI              int        `json:"dni,omitempty"`
	FirstName        string     `json:"firstName,omitempty"`
	LastName         string     `json:"lastName,omitempty"`
	Address          string     `json:"adress,omitempty"`
	Phone            string     `json:"phone,omitempty"`
	DateOfBirth      *time.Time `json:"dateOfBirth,omitempty"`
	HealthPlan       string     `json:"healthPlan,omitempty"`
	MembershipNumber string     `json:"membershipNumber,omitempty"`
}

// PractitionerUpsert carries the practitioner fields the directory accepts.
type PractitionerUpsert struct {
	FirstName     string `json:"firstName,omitempty"`
	LastName      string `json:"lastName,omitempty"`
	LicenseNumber string `json:"licenseNumber,omitempty"`
	Specialty     string `json:"specialty,omitempty"`
	Phone         string `json:"phone,omitempty"`
}

// AppointmentCreate is the scheduling request built from the order block.
type AppointmentCreate struct {
	DoctorID  int64     `json:"doctorId"`
	PatientID int64     `json:"patientId"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	Reason    string    `json:"reason,omitempty"`
}

type StreamInfo struct {
	Name          string `json:"name"`
	Messages      uint64 `json:"messages"`
	Bytes         uint64 `json:"bytes"`
	FirstSequence uint64 `json:"first_sequence"`
	LastSequence  uint64 `json:"last_sequence"`
}
