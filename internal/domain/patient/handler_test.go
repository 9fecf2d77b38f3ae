package patient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/rme/rme/internal/platform/db"
	"github.com/rme/rme/internal/platform/validate"
)

func newTestHandler() (*Handler, *echo.Echo) {
	h := NewHandler(NewService(newMockRepo()))
	e := echo.New()
	e.Validator = validate.New()
	return h, e
}

func newTenantContext(e *echo.Echo, req *http.Request, rec *httptest.ResponseRecorder, tenantID uuid.UUID) echo.Context {
	ctx := context.WithValue(req.Context(), db.TenantIDKey, tenantID)
	return e.NewContext(req.WithContext(ctx), rec)
}

func TestHandler_CreatePatient(t *testing.T) {
	h, e := newTestHandler()
	tenantID := uuid.New()

	body := `{"full_name":"Budi Santoso","mrn":"MRN-001","birth_date":"1990-05-17","gender":"M"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/patients", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := newTenantContext(e, req, rec, tenantID)

	if err := h.CreatePatient(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}

	var p Patient
	json.Unmarshal(rec.Body.Bytes(), &p)
	if p.FullName != "Budi Santoso" {
		t.Errorf("expected 'Budi Santoso', got %s", p.FullName)
	}
	if p.TenantID != tenantID {
		t.Error("expected tenant_id from request context")
	}
	if p.BirthDate == nil {
		t.Error("expected birth_date to be parsed")
	}
}

func TestHandler_CreatePatient_MissingMRN(t *testing.T) {
	h, e := newTestHandler()

	body := `{"full_name":"Budi Santoso"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/patients", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := newTenantContext(e, req, rec, uuid.New())

	err := h.CreatePatient(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandler_CreatePatient_BadBirthDate(t *testing.T) {
	h, e := newTestHandler()

	body := `{"full_name":"Budi","mrn":"MRN-001","birth_date":"17/05/1990"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/patients", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := newTenantContext(e, req, rec, uuid.New())

	err := h.CreatePatient(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandler_CreatePatient_DuplicateMRN(t *testing.T) {
	h, e := newTestHandler()
	tenantID := uuid.New()

	body := `{"full_name":"Budi","mrn":"MRN-001"}`
	for i, want := range []int{http.StatusCreated, http.StatusConflict} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/patients", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		c := newTenantContext(e, req, rec, tenantID)

		err := h.CreatePatient(c)
		if i == 0 {
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if rec.Code != want {
				t.Errorf("expected %d, got %d", want, rec.Code)
			}
			continue
		}
		he, ok := err.(*echo.HTTPError)
		if !ok || he.Code != want {
			t.Errorf("expected %d, got %v", want, err)
		}
	}
}

func TestHandler_GetPatient(t *testing.T) {
	h, e := newTestHandler()
	tenantID := uuid.New()
	p := &Patient{TenantID: tenantID, FullName: "Budi", MRN: "MRN-001"}
	h.svc.Create(context.Background(), p)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := newTenantContext(e, req, rec, tenantID)
	c.SetParamNames("id")
	c.SetParamValues(p.ID.String())

	if err := h.GetPatient(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestHandler_GetPatient_CrossTenant(t *testing.T) {
	h, e := newTestHandler()
	p := &Patient{TenantID: uuid.New(), FullName: "Budi", MRN: "MRN-001"}
	h.svc.Create(context.Background(), p)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := newTenantContext(e, req, rec, uuid.New())
	c.SetParamNames("id")
	c.SetParamValues(p.ID.String())

	err := h.GetPatient(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %v", err)
	}
}

func TestHandler_UpdatePatient(t *testing.T) {
	h, e := newTestHandler()
	tenantID := uuid.New()
	p := &Patient{TenantID: tenantID, FullName: "Budi", MRN: "MRN-001"}
	h.svc.Create(context.Background(), p)

	body := `{"full_name":"Budi Santoso","mrn":"MRN-001"}`
	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := newTenantContext(e, req, rec, tenantID)
	c.SetParamNames("id")
	c.SetParamValues(p.ID.String())

	if err := h.UpdatePatient(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestHandler_DeletePatient(t *testing.T) {
	h, e := newTestHandler()
	tenantID := uuid.New()
	p := &Patient{TenantID: tenantID, FullName: "Budi", MRN: "MRN-001"}
	h.svc.Create(context.Background(), p)

	req := httptest.NewRequest(http.MethodDelete, "/", nil)
	rec := httptest.NewRecorder()
	c := newTenantContext(e, req, rec, tenantID)
	c.SetParamNames("id")
	c.SetParamValues(p.ID.String())

	if err := h.DeletePatient(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
}

func TestHandler_ListPatients_SearchParam(t *testing.T) {
	h, e := newTestHandler()
	tenantID := uuid.New()
	h.svc.Create(context.Background(), &Patient{TenantID: tenantID, FullName: "Budi Santoso", MRN: "MRN-001"})
	h.svc.Create(context.Background(), &Patient{TenantID: tenantID, FullName: "Siti Aminah", MRN: "MRN-002"})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/patients?search=siti", nil)
	rec := httptest.NewRecorder()
	c := newTenantContext(e, req, rec, tenantID)

	if err := h.ListPatients(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var resp struct {
		Total int `json:"total"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Total != 1 {
		t.Errorf("expected total 1, got %d", resp.Total)
	}
}
