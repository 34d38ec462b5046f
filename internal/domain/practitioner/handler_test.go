package practitioner

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medsched/medsched/internal/platform/db"
)

func newTestServer() (*echo.Echo, *Service) {
	svc := newTestService()
	e := echo.New()
	NewHandler(svc).RegisterRoutes(e.Group("/api/v1", db.TenantMiddleware(nil, "acme")))
	return e, svc
}

func serve(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

const scheduleBody = `{
	"name": "Dr. Grace Hopper",
	"specialization": "cardiology",
	"work_start": "09:00",
	"work_end": "12:00",
	"slot_size": 30,
	"breaks": [{"start": "10:00", "end": "10:30"}],
	"holidays": ["2025-12-25"]
}`

func TestHandler_PutAndGetSchedule(t *testing.T) {
	e, _ := newTestServer()
	id := uuid.New().String()

	rec := serve(e, http.MethodPut, "/api/v1/practitioners/"+id+"/schedule", scheduleBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = serve(e, http.MethodGet, "/api/v1/practitioners/"+id+"/schedule", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var p Practitioner
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.Name != "Dr. Grace Hopper" || p.WorkStart.String() != "09:00" || len(p.Breaks) != 1 {
		t.Errorf("unexpected practitioner %+v", p)
	}
	if !strings.Contains(rec.Body.String(), `"work_end":"12:00"`) {
		t.Errorf("expected HH:MM wire times, got %s", rec.Body.String())
	}
}

func TestHandler_PutSchedule_Errors(t *testing.T) {
	e, _ := newTestServer()
	if rec := serve(e, http.MethodPut, "/api/v1/practitioners/x/schedule", scheduleBody); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad id, got %d", rec.Code)
	}
	bad := strings.Replace(scheduleBody, `"10:30"`, `"12:30"`, 1)
	rec := serve(e, http.MethodPut, "/api/v1/practitioners/"+uuid.New().String()+"/schedule", bad)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for break past closing, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"code":"validation_error"`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
	if rec := serve(e, http.MethodGet, "/api/v1/practitioners/"+uuid.New().String()+"/schedule", ""); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestHandler_PutAvailability(t *testing.T) {
	e, _ := newTestServer()
	id := uuid.New().String()
	serve(e, http.MethodPut, "/api/v1/practitioners/"+id+"/schedule", scheduleBody)

	rec := serve(e, http.MethodPut, "/api/v1/practitioners/"+id+"/availability/2025-03-14",
		`{"windows":[{"start":"14:00","end":"15:00"}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var day DayAvailability
	if err := json.Unmarshal(rec.Body.Bytes(), &day); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if day.Date != "2025-03-14" || len(day.Windows) != 1 {
		t.Errorf("unexpected availability %+v", day)
	}

	rec = serve(e, http.MethodPut, "/api/v1/practitioners/"+id+"/availability/14-03-2025", `{"windows":[]}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad date, got %d", rec.Code)
	}
	rec = serve(e, http.MethodPut, "/api/v1/practitioners/"+uuid.New().String()+"/availability/2025-03-14", `{"windows":[]}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown practitioner, got %d", rec.Code)
	}
}

func TestHandler_ListPractitionersAndDepartments(t *testing.T) {
	e, _ := newTestServer()
	serve(e, http.MethodPut, "/api/v1/practitioners/"+uuid.New().String()+"/schedule", scheduleBody)
	serve(e, http.MethodPut, "/api/v1/practitioners/"+uuid.New().String()+"/schedule",
		strings.Replace(scheduleBody, "cardiology", "dermatology", 1))

	rec := serve(e, http.MethodGet, "/api/v1/practitioners?department=dermatology", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var page struct {
		Data  []Practitioner `json:"data"`
		Total int            `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if page.Total != 1 || page.Data[0].Specialization != "dermatology" {
		t.Errorf("unexpected page %+v", page)
	}

	rec = serve(e, http.MethodGet, "/api/v1/departments", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if strings.TrimSpace(rec.Body.String()) != `{"departments":["cardiology","dermatology"]}` {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}
