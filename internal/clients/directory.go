package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/minasoft/hl7-gateway/internal/db"
)

// Directory is the REST client for the patient/practitioner directory
// service. Upsert is lookup-before-write by natural key (DNI for patients,
// license number for practitioners); the directory assigns internal ids.
// Stateless and safe for concurrent use.
type Directory struct {
	baseURL string
	http    *http.Client
}

func NewDirectory(baseURL string, timeout time.Duration) *Directory {
	return &Directory{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

type patientResponse struct {
	PatientID int64  `json:"patientId"`
	DNI       int    `json:"dni"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type doctorResponse struct {
	DoctorID      int64  `json:"doctorId"`
	FirstName     string `json:"firstName"`
	LastName      string `json:"lastName"`
	LicenseNumber string `json:"licenseNumber"`
}

// UpsertPatient looks up an existing patient by DNI; if found the record is
// updated and its id returned, otherwise a new record is created.
func (d *Directory) UpsertPatient(ctx context.Context, patient db.PatientUpsert) (int64, error) {
	slog.Info("Hasta upsert deneniyor",
		"dni", patient.DNI,
		"firstName", patient.FirstName,
		"lastName", patient.LastName)

	existing, err := d.findPatientByDNI(ctx, patient.DNI)
	if err != nil {
		slog.Warn("DNI ile hasta arama hatası", "dni", patient.DNI, "error", err)
	}

	if existing != nil {
		update := map[string]any{
			"name":             patient.FirstName,
			"lastName":         patient.LastName,
			"dni":              patient.DNI,
			"adress":           patient.Address,
			"phone":            patient.Phone,
			"dateOfBirth":      formatDate(patient.DateOfBirth),
			"healthPlan":       patient.HealthPlan,
			"membershipNumber": patient.MembershipNumber,
		}

		path := fmt.Sprintf("/api/v1/Patient/%d", existing.PatientID)
		if err := d.do(ctx, http.MethodPut, path, update, nil); err != nil {
			return 0, fmt.Errorf("hasta güncellenemedi: %w", err)
		}

		slog.Info("Hasta güncellendi", "patientId", existing.PatientID)
		return existing.PatientID, nil
	}

	create := map[string]any{
		"dni":              patient.DNI,
		"firstName":        patient.FirstName,
		"lastName":         patient.LastName,
		"adress":           patient.Address,
		"phone":            patient.Phone,
		"dateOfBirth":      formatDate(patient.DateOfBirth),
		"healthPlan":       orDefault(patient.HealthPlan, "Pendiente"),
		"membershipNumber": orDefault(patient.MembershipNumber, fmt.Sprintf("HL7-%d", patient.DNI)),
		"userId":           0, // no user identity in an order message
	}

	var created patientResponse
	if err := d.do(ctx, http.MethodPost, "/api/v1/Patient", create, &created); err != nil {
		return 0, fmt.Errorf("hasta oluşturulamadı: %w", err)
	}

	slog.Info("Hasta oluşturuldu", "patientId", created.PatientID)
	return created.PatientID, nil
}

// UpsertPractitioner is the practitioner counterpart, keyed by license number.
func (d *Directory) UpsertPractitioner(ctx context.Context, pr db.PractitionerUpsert) (int64, error) {
	slog.Info("Doktor upsert deneniyor",
		"licenseNumber", pr.LicenseNumber,
		"firstName", pr.FirstName,
		"lastName", pr.LastName)

	existing, err := d.findDoctorByLicense(ctx, pr.LicenseNumber)
	if err != nil {
		slog.Warn("Lisans ile doktor arama hatası", "licenseNumber", pr.LicenseNumber, "error", err)
	}

	if existing != nil {
		update := map[string]any{
			"firstName":     pr.FirstName,
			"lastName":      pr.LastName,
			"licenseNumber": pr.LicenseNumber,
			"specialty":     orDefault(pr.Specialty, "Clinico"),
			"phone":         pr.Phone,
		}

		path := fmt.Sprintf("/api/v1/Doctor/%d", existing.DoctorID)
		if err := d.do(ctx, http.MethodPut, path, update, nil); err != nil {
			return 0, fmt.Errorf("doktor güncellenemedi: %w", err)
		}

		slog.Info("Doktor güncellendi", "doctorId", existing.DoctorID)
		return existing.DoctorID, nil
	}

	create := map[string]any{
		"firstName":     pr.FirstName,
		"lastName":      pr.LastName,
		"licenseNumber": orDefault(pr.LicenseNumber, "PENDING"),
		"specialty":     orDefault(pr.Specialty, "Clinico"),
		"phone":         pr.Phone,
		"userId":        0,
	}

	var created doctorResponse
	if err := d.do(ctx, http.MethodPost, "/api/v1/Doctor", create, &created); err != nil {
		return 0, fmt.Errorf("doktor oluşturulamadı: %w", err)
	}

	slog.Info("Doktor oluşturuldu", "doctorId", created.DoctorID)
	return created.DoctorID, nil
}

// findPatientByDNI lists all patients and filters client-side; the directory
// API has no lookup by DNI.
func (d *Directory) findPatientByDNI(ctx context.Context, dni int) (*patientResponse, error) {
	if dni == 0 {
		return nil, nil
	}

	var patients []patientResponse
	if err := d.do(ctx, http.MethodGet, "/api/v1/Patient/all", nil, &patients); err != nil {
		return nil, err
	}

	for i := range patients {
		if patients[i].DNI == dni {
			return &patients[i], nil
		}
	}
	return nil, nil
}

func (d *Directory) findDoctorByLicense(ctx context.Context, license string) (*doctorResponse, error) {
	if license == "" {
		return nil, nil
	}

	var doctors []doctorResponse
	if err := d.do(ctx, http.MethodGet, "/api/v1/Doctor", nil, &doctors); err != nil {
		return nil, err
	}

	for i := range doctors {
		if doctors[i].LicenseNumber == license {
			return &doctors[i], nil
		}
	}
	return nil, nil
}

func (d *Directory) do(ctx context.Context, method, path string, body, out any) error {
	return doJSON(ctx, d.http, method, d.baseURL+path, body, out)
}

// doJSON is the shared request helper for the downstream REST clients.
func doJSON(ctx context.Context, client *http.Client, method, url string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("istek serialize hatası: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("istek oluşturulamadı: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("istek hatası %s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("beklenmeyen yanıt %s %s: %d %s", method, url, resp.StatusCode, detail)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("yanıt parse hatası: %w", err)
	}
	return nil
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
