package web

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/minasoft/hl7-gateway/internal/audit"
	"github.com/minasoft/hl7-gateway/internal/hl7"
)

// matchHeader carries the best-effort signal of the summary lookup: "exact"
// when the identifier was found in the returned file, "latest" when the
// newest summary was substituted because nothing matched.
const matchHeader = "X-Summary-Match"

func (s *Server) handleListSummaries(c echo.Context) error {
	limit := 10
	if v := c.QueryParam("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	heads, err := s.store.List(limit)
	if err != nil {
		slog.Error("Özet listeleme hatası", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Özetler listelenemedi")
	}

	return c.JSON(http.StatusOK, heads)
}

func (s *Server) handleSummaryByAppointment(c echo.Context) error {
	appointmentID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Geçersiz appointment id")
	}

	file, err := s.store.FindByAppointment(appointmentID)
	if err != nil {
		if errors.Is(err, audit.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Bu appointment için özet bulunamadı")
		}
		slog.Error("Özet arama hatası", "appointmentId", appointmentID, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Özet okunamadı")
	}

	return writeSummaryFile(c, file)
}

func (s *Server) handleSummaryByPatient(c echo.Context) error {
	patientID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Geçersiz patient id")
	}

	var date *time.Time
	if v := c.QueryParam("date"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Geçersiz tarih, beklenen biçim YYYY-MM-DD")
		}
		date = &parsed
	}

	file, err := s.store.FindByPatient(patientID, date)
	if err != nil {
		if errors.Is(err, audit.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Bu hasta için özet bulunamadı")
		}
		slog.Error("Özet arama hatası", "patientId", patientID, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Özet okunamadı")
	}

	return writeSummaryFile(c, file)
}

func writeSummaryFile(c echo.Context, file *audit.SummaryFile) error {
	c.Response().Header().Set(matchHeader, string(file.Match))
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%q", file.Filename))
	return c.Blob(http.StatusOK, "text/plain; charset=utf-8", []byte(file.Content))
}

// GenerateSummaryRequest regenerates a transaction summary (and the matching
// HL7 order text) from encounter data, for consultations created while the
// gateway was not receiving messages.
type GenerateSummaryRequest struct {
	EncounterID   int64 `json:"encounterId" validate:"required,gt=0"`
	PatientID     int64 `json:"patientId" validate:"required,gt=0"`
	DoctorID      int64 `json:"doctorId" validate:"required,gt=0"`
	AppointmentID int64 `json:"appointmentId" validate:"required,gt=0"`

	PatientDNI         string     `json:"patientDni"`
	PatientFirstName   string     `json:"patientFirstName"`
	PatientLastName    string     `json:"patientLastName"`
	PatientDateOfBirth *time.Time `json:"patientDateOfBirth"`
	PatientPhone       string     `json:"patientPhone"`
	PatientAddress     string     `json:"patientAddress"`

	DoctorFirstName string `json:"doctorFirstName"`
	DoctorLastName  string `json:"doctorLastName"`
	DoctorSpecialty string `json:"doctorSpecialty"`

	AppointmentStartTime *time.Time `json:"appointmentStartTime"`
	AppointmentEndTime   *time.Time `json:"appointmentEndTime"`
	AppointmentReason    string     `json:"appointmentReason"`
	EncounterReasons     string     `json:"encounterReasons"`
	EncounterAssessment  string     `json:"encounterAssessment"`
	EncounterDate        time.Time  `json:"encounterDate"`
}

func (s *Server) handleGenerateSummary(c echo.Context) error {
	var req GenerateSummaryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Geçersiz istek gövdesi")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	controlID := fmt.Sprintf("ENC%d_%s", req.EncounterID, time.Now().Format("20060102150405"))

	slog.Info("Özet üretiliyor",
		"encounterId", req.EncounterID,
		"appointmentId", req.AppointmentID,
		"controlID", controlID)

	ormText := buildOrderMessage(&req, controlID)

	s.logger.LogSummary(audit.Summary{
		ControlID:       controlID,
		AckCode:         "AA",
		PatientInfo:     generatePatientInfo(&req),
		AppointmentInfo: generateAppointmentInfo(&req),
		RawMessage:      ormText,
	})

	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":          "Özet üretildi",
		"messageControlId": controlID,
		"encounterId":      req.EncounterID,
		"appointmentId":    req.AppointmentID,
	})
}

// buildOrderMessage renders the encounter as an ORM^O01 message through the
// codec, so the regenerated summary carries the same wire text an inbound
// order would have had.
func buildOrderMessage(req *GenerateSummaryRequest, controlID string) string {
	now := time.Now()
	msg := &hl7.Message{Delims: hl7.DefaultDelimiters}

	msh := &hl7.Segment{Tag: "MSH"}
	msh.SetField(1, hl7.Leaf("|"))
	msh.SetField(2, hl7.Leaf(hl7.DefaultDelimiters.EncodingCharacters()))
	msh.SetField(3, hl7.Leaf("EMR"))
	msh.SetField(4, hl7.Leaf("HOSPITAL"))
	msh.SetField(5, hl7.Leaf("HL7GATEWAY"))
	msh.SetField(6, hl7.Leaf("HL7GATEWAY"))
	msh.SetField(7, hl7.Leaf(now.Format("20060102150405")))
	msh.SetField(9, hl7.Composite("ORM", "O01"))
	msh.SetField(10, hl7.Leaf(controlID))
	msh.SetField(11, hl7.Leaf("P"))
	msh.SetField(12, hl7.Leaf("2.3"))
	msg.Segments = append(msg.Segments, msh)

	patientID := req.PatientDNI
	if patientID == "" {
		patientID = strconv.FormatInt(req.PatientID, 10)
	}
	pid := &hl7.Segment{Tag: "PID"}
	pid.SetField(1, hl7.Leaf("1"))
	pid.SetField(3, hl7.Leaf(patientID))
	pid.SetField(5, hl7.Composite(req.PatientLastName, req.PatientFirstName))
	if req.PatientDateOfBirth != nil {
		pid.SetField(7, hl7.Leaf(req.PatientDateOfBirth.Format("20060102")))
	}
	if req.PatientAddress != "" {
		pid.SetField(11, hl7.Leaf(req.PatientAddress))
	}
	if req.PatientPhone != "" {
		pid.SetField(13, hl7.Leaf(req.PatientPhone))
	}
	msg.Segments = append(msg.Segments, pid)

	pv1 := &hl7.Segment{Tag: "PV1"}
	pv1.SetField(1, hl7.Leaf("1"))
	pv1.SetField(2, hl7.Leaf("O"))
	msg.Segments = append(msg.Segments, pv1)

	apptID := strconv.FormatInt(req.AppointmentID, 10)
	orc := &hl7.Segment{Tag: "ORC"}
	orc.SetField(1, hl7.Leaf("NW"))
	orc.SetField(2, hl7.Leaf(apptID))
	msg.Segments = append(msg.Segments, orc)

	obr := &hl7.Segment{Tag: "OBR"}
	obr.SetField(1, hl7.Leaf("1"))
	obr.SetField(2, hl7.Leaf(apptID))
	if req.AppointmentReason != "" {
		obr.SetField(4, hl7.Leaf(req.AppointmentReason))
	}
	if req.AppointmentStartTime != nil {
		obr.SetField(7, hl7.Leaf(req.AppointmentStartTime.Format("20060102150405")))
	}
	msg.Segments = append(msg.Segments, obr)

	if req.EncounterAssessment != "" {
		dg1 := &hl7.Segment{Tag: "DG1"}
		dg1.SetField(1, hl7.Leaf("1"))
		dg1.SetField(4, hl7.Leaf(req.EncounterAssessment))
		msg.Segments = append(msg.Segments, dg1)
	}

	return msg.Encode()
}

func generatePatientInfo(req *GenerateSummaryRequest) string {
	var b strings.Builder
	if req.PatientDNI != "" {
		fmt.Fprintf(&b, "DNI: %s\n", req.PatientDNI)
	}
	if req.PatientFirstName != "" || req.PatientLastName != "" {
		fmt.Fprintf(&b, "Name: %s\n", strings.TrimSpace(req.PatientFirstName+" "+req.PatientLastName))
	}
	if req.PatientDateOfBirth != nil {
		fmt.Fprintf(&b, "Birth Date: %s\n", req.PatientDateOfBirth.Format("2006-01-02"))
	}
	if req.PatientPhone != "" {
		fmt.Fprintf(&b, "Phone: %s\n", req.PatientPhone)
	}
	if req.PatientAddress != "" {
		fmt.Fprintf(&b, "Address: %s\n", req.PatientAddress)
	}
	fmt.Fprintf(&b, "PatientId: %d", req.PatientID)
	return b.String()
}

func generateAppointmentInfo(req *GenerateSummaryRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "PatientId: %d\n", req.PatientID)
	fmt.Fprintf(&b, "DoctorId: %d\n", req.DoctorID)
	if req.DoctorFirstName != "" || req.DoctorLastName != "" {
		fmt.Fprintf(&b, "Doctor: %s\n", strings.TrimSpace(req.DoctorFirstName+" "+req.DoctorLastName))
	}
	if req.DoctorSpecialty != "" {
		fmt.Fprintf(&b, "Specialty: %s\n", req.DoctorSpecialty)
	}
	if req.AppointmentStartTime != nil {
		fmt.Fprintf(&b, "Start Time: %s\n", req.AppointmentStartTime.Format("2006-01-02 15:04:05"))
	}
	if req.AppointmentEndTime != nil {
		fmt.Fprintf(&b, "End Time: %s\n", req.AppointmentEndTime.Format("2006-01-02 15:04:05"))
	}
	if req.AppointmentReason != "" {
		fmt.Fprintf(&b, "Reason: %s\n", req.AppointmentReason)
	}
	if req.EncounterReasons != "" {
		fmt.Fprintf(&b, "Consultation Reason: %s\n", req.EncounterReasons)
	}
	if req.EncounterAssessment != "" {
		fmt.Fprintf(&b, "Assessment: %s\n", req.EncounterAssessment)
	}
	fmt.Fprintf(&b, "AppointmentId: %d\n", req.AppointmentID)
	fmt.Fprintf(&b, "EncounterId: %d", req.EncounterID)
	return b.String()
}
