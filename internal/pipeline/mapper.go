package pipeline

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/minasoft/hl7-gateway/internal/db"
	"github.com/minasoft/hl7-gateway/internal/hl7"
)

// mapPatient builds the directory upsert request from a PID segment.
// PID-3 identifier, PID-5 name (family^given), PID-7 birth date, PID-11
// address (street/city/state joined), PID-13 home phone.
func mapPatient(pid *hl7.Segment) db.PatientUpsert {
	patient := db.PatientUpsert{
		LastName:  pid.Field(5).Component(1),
		FirstName: pid.Field(5).Component(2),
		Phone:     pid.Field(13).Value(),
	}

	if dni, err := strconv.Atoi(pid.Field(3).Value()); err == nil {
		patient.DNI = dni
	}

	if birth, ok := parseHL7Date(pid.Field(7).Value()); ok {
		patient.DateOfBirth = &birth
	}

	var parts []string
	addr := pid.Field(11)
	for _, n := range []int{1, 3, 4} { // street, city, state
		if v := addr.Component(n); v != "" {
			parts = append(parts, v)
		}
	}
	patient.Address = strings.Join(parts, ", ")

	return patient
}

// mapAppointment builds the scheduling request from the order detail block.
// Start time comes from OBR-7; absent or malformed values default to one day
// out. The doctor id is the configured fallback: the order message carries no
// resolvable doctor identity.
func mapAppointment(obr *hl7.Segment, patientID, doctorID int64, now time.Time) db.AppointmentCreate {
	appt := db.AppointmentCreate{
		PatientID: patientID,
		DoctorID:  doctorID,
	}

	if serviceID := obr.Field(4).Component(1); serviceID != "" {
		appt.Reason = fmt.Sprintf("Estudio: %s", serviceID)
	}

	start, ok := parseHL7DateTime(obr.Field(7).Value())
	if !ok {
		start = now.Add(24 * time.Hour)
	}
	appt.StartTime = start
	appt.EndTime = start.Add(time.Hour)

	return appt
}

// parseHL7Date reads the YYYYMMDD prefix of an HL7 TS value.
func parseHL7Date(v string) (time.Time, bool) {
	if len(v) < 8 {
		return time.Time{}, false
	}
	t, err := time.Parse("20060102", v[:8])
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// parseHL7DateTime reads a full YYYYMMDDHHMMSS timestamp; shorter values are
// treated as absent.
func parseHL7DateTime(v string) (time.Time, bool) {
	if len(v) < 14 {
		return time.Time{}, false
	}
	t, err := time.Parse("20060102150405", v[:14])
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func patientInfo(patient db.PatientUpsert, patientID int64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "DNI: %d\n", patient.DNI)
	fmt.Fprintf(&b, "Name: %s %s\n", patient.FirstName, patient.LastName)
	if patient.DateOfBirth != nil {
		fmt.Fprintf(&b, "Birth Date: %s\n", patient.DateOfBirth.Format("2006-01-02"))
	}
	if patient.Phone != "" {
		fmt.Fprintf(&b, "Phone: %s\n", patient.Phone)
	}
	if patient.Address != "" {
		fmt.Fprintf(&b, "Address: %s\n", patient.Address)
	}
	fmt.Fprintf(&b, "PatientId: %d", patientID)
	return b.String()
}

func appointmentInfo(appt db.AppointmentCreate, appointmentID int64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "PatientId: %d\n", appt.PatientID)
	fmt.Fprintf(&b, "DoctorId: %d\n", appt.DoctorID)
	fmt.Fprintf(&b, "Start Time: %s\n", appt.StartTime.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "End Time: %s\n", appt.EndTime.Format("2006-01-02 15:04:05"))
	if appt.Reason != "" {
		fmt.Fprintf(&b, "Reason: %s\n", appt.Reason)
	}
	fmt.Fprintf(&b, "AppointmentId: %d", appointmentID)
	return b.String()
}
