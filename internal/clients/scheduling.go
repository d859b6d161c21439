package clients

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/minasoft/hl7-gateway/internal/db"
)

// Scheduling is the REST client for the appointment scheduler. Stateless and
// safe for concurrent use.
type Scheduling struct {
	baseURL string
	http    *http.Client
}

func NewScheduling(baseURL string, timeout time.Duration) *Scheduling {
	return &Scheduling{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

type appointmentResponse struct {
	AppointmentID int64 `json:"appointmentId"`
	DoctorID      int64 `json:"doctorId"`
	PatientID     int64 `json:"patientId"`
}

// CreateAppointment creates one appointment and returns its assigned id.
func (s *Scheduling) CreateAppointment(ctx context.Context, appt db.AppointmentCreate) (int64, error) {
	slog.Info("Randevu oluşturuluyor",
		"patientId", appt.PatientID,
		"doctorId", appt.DoctorID,
		"startTime", appt.StartTime)

	var created appointmentResponse
	if err := doJSON(ctx, s.http, http.MethodPost, s.baseURL+"/api/v1/appointments", appt, &created); err != nil {
		return 0, fmt.Errorf("randevu oluşturulamadı: %w", err)
	}

	slog.Info("Randevu oluşturuldu", "appointmentId", created.AppointmentID)
	return created.AppointmentID, nil
}
