package identity

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func setupHandler() (*echo.Echo, *mockPatientRepo, *mockDoctorRepo) {
	patients := newMockPatientRepo()
	doctors := newMockDoctorRepo()
	h := NewHandler(NewService(patients, doctors))

	e := echo.New()
	h.RegisterRoutes(e.Group("/api"))
	return e, patients, doctors
}

func TestHandler_CreatePatient(t *testing.T) {
	e, _, _ := setupHandler()

	body := `{"name":"Ana Silva","phone":"+15550001111"}`
	req := httptest.NewRequest(http.MethodPost, "/api/patients", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var p Patient
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if p.ID == uuid.Nil || p.Name != "Ana Silva" {
		t.Errorf("unexpected patient: %+v", p)
	}
}

func TestHandler_CreatePatient_Invalid(t *testing.T) {
	e, _, _ := setupHandler()

	req := httptest.NewRequest(http.MethodPost, "/api/patients", strings.NewReader(`{"name":""}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandler_GetPatient_NotFound(t *testing.T) {
	e, _, _ := setupHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/patients/"+uuid.NewString(), nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHandler_GetPatient_InvalidID(t *testing.T) {
	e, _, _ := setupHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/patients/not-a-uuid", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandler_ListDoctorPatients(t *testing.T) {
	e, patients, doctors := setupHandler()

	d := &Doctor{Name: "Dr. Chen", Email: "chen@example.com"}
	_ = doctors.Create(nil, d)
	_ = patients.Create(nil, &Patient{Name: "Ana", DoctorID: &d.ID})
	_ = patients.Create(nil, &Patient{Name: "Bo"})

	req := httptest.NewRequest(http.MethodGet, "/api/doctors/"+d.ID.String()+"/patients", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Data  []Patient `json:"data"`
		Total int       `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Total != 1 || len(resp.Data) != 1 {
		t.Fatalf("expected 1 patient for doctor, got %+v", resp)
	}
	if resp.Data[0].Name != "Ana" {
		t.Errorf("expected Ana, got %s", resp.Data[0].Name)
	}
}

func TestHandler_DeleteDoctor(t *testing.T) {
	e, _, doctors := setupHandler()

	d := &Doctor{Name: "Dr. Chen", Email: "chen@example.com"}
	_ = doctors.Create(nil, d)

	req := httptest.NewRequest(http.MethodDelete, "/api/doctors/"+d.ID.String(), nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if _, ok := doctors.doctors[d.ID]; ok {
		t.Error("expected doctor removed")
	}
}
