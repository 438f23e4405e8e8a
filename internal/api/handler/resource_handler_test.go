package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/rideops/fleet-backoffice/internal/core/domain"
	"github.com/rideops/fleet-backoffice/internal/core/ports"
	fleet "github.com/rideops/fleet-backoffice/pkg/domain"
)

type stubVehicles struct {
	stored   fleet.Vehicle
	filter   ports.ListFilter
	created  *fleet.Vehicle
	actor    ports.Actor
	deleted  fleet.ID
	notFound bool
}

func (s *stubVehicles) List(_ context.Context, f ports.ListFilter) (*fleet.Page[fleet.Vehicle], error) {
	s.filter = f
	return &fleet.Page[fleet.Vehicle]{Data: []fleet.Vehicle{s.stored}, Pagination: fleet.Pagination{Total: 1, Page: 1, Limit: 20, TotalPages: 1}}, nil
}

func (s *stubVehicles) Get(_ context.Context, id fleet.ID) (*fleet.Vehicle, error) {
	if s.notFound {
		return nil, domain.ErrNotFound
	}
	v := s.stored
	return &v, nil
}

func (s *stubVehicles) Create(_ context.Context, a ports.Actor, v *fleet.Vehicle) (*fleet.Vehicle, error) {
	s.actor = a
	s.created = v
	v.ID = "new"
	return v, nil
}

func (s *stubVehicles) Update(_ context.Context, a ports.Actor, id fleet.ID, apply func(*fleet.Vehicle) error) (*fleet.Vehicle, error) {
	v := s.stored
	if err := apply(&v); err != nil {
		return nil, err
	}
	v.ID = id
	s.stored = v
	return &v, nil
}

func (s *stubVehicles) Delete(_ context.Context, a ports.Actor, id fleet.ID) error {
	s.deleted = id
	return nil
}

func newStubVehicles() *stubVehicles {
	return &stubVehicles{stored: fleet.Vehicle{
		Base:        fleet.Base{ID: "v1"},
		PlateNumber: "ABC-123",
		Make:        "Toyota",
		Model:       "Prius",
		Type:        fleet.VehicleTaxi,
		Status:      "active",
	}}
}

func TestResourceHandler_ListFilters(t *testing.T) {
	svc := newStubVehicles()
	h := NewResourceHandler[fleet.Vehicle](svc, QueryFields{"status": "status", "driver": "assigned_driver", "active": "active"})

	q := url.Values{}
	q.Set("page", "2")
	q.Set("limit", "5")
	q.Set("status", "maintenance")
	q.Set("driver", "d1")
	q.Set("active", "true")
	q.Set("search", " prius ")
	q.Set("from", "2024-01-01")
	q.Set("to", "2024-01-31T23:59:59Z")
	q.Set("ignored", "x")

	c, rec := newJSONContext(http.MethodGet, "/vehicles?"+q.Encode(), "")
	if err := h.List(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	f := svc.filter
	if f.Page != 2 || f.Limit != 5 || f.Search != "prius" {
		t.Errorf("filter = %+v", f)
	}
	if f.Equals["status"] != "maintenance" || f.Equals["assigned_driver"] != "d1" || f.Equals["active"] != true {
		t.Errorf("equals = %+v", f.Equals)
	}
	if _, ok := f.Equals["ignored"]; ok {
		t.Errorf("unmapped parameter reached the filter")
	}
	if !f.From.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) || f.To.Day() != 31 {
		t.Errorf("range = %v .. %v", f.From, f.To)
	}

	var page map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &page)
	if _, ok := page["data"]; !ok {
		t.Errorf("response lacks data: %s", rec.Body.String())
	}
	if _, ok := page["pagination"]; !ok {
		t.Errorf("response lacks pagination: %s", rec.Body.String())
	}
}

func TestResourceHandler_ListBadQuery(t *testing.T) {
	h := NewResourceHandler[fleet.Vehicle](newStubVehicles(), nil)
	for _, target := range []string{"/vehicles?page=x", "/vehicles?limit=-1", "/vehicles?from=yesterday"} {
		c, _ := newJSONContext(http.MethodGet, target, "")
		if code := httpCode(t, h.List(c)); code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", target, code)
		}
	}
}

func TestResourceHandler_Create(t *testing.T) {
	svc := newStubVehicles()
	h := NewResourceHandler[fleet.Vehicle](svc, nil)

	c, rec := newJSONContext(http.MethodPost, "/vehicles",
		`{"plateNumber":"XYZ-9","make":"Honda","model":"CB500","type":"moto","assignedDriver":{"$oid":"d7"}}`)
	withActor(c, "m1", fleet.RoleManager)
	if err := h.Create(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if svc.created.AssignedDriverID != "d7" || svc.actor.UserID != "m1" {
		t.Errorf("created = %+v, actor = %+v", svc.created, svc.actor)
	}

	c, _ = newJSONContext(http.MethodPost, "/vehicles", `{"plateNumber":"XYZ-9","type":"bus"}`)
	withActor(c, "m1", fleet.RoleManager)
	if code := httpCode(t, h.Create(c)); code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", code)
	}
}

func TestResourceHandler_UpdateMerges(t *testing.T) {
	svc := newStubVehicles()
	h := NewResourceHandler[fleet.Vehicle](svc, nil)

	c, rec := newJSONContext(http.MethodPut, "/vehicles/v1", `{"status":"maintenance","mileage":900}`)
	c.SetParamNames("id")
	c.SetParamValues("v1")
	withActor(c, "m1", fleet.RoleManager)
	if err := h.Update(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if svc.stored.Status != "maintenance" || svc.stored.Mileage != 900 || svc.stored.PlateNumber != "ABC-123" {
		t.Errorf("stored = %+v", svc.stored)
	}

	c, _ = newJSONContext(http.MethodPut, "/vehicles/v1", `{"status":"scrapped"}`)
	c.SetParamNames("id")
	c.SetParamValues("v1")
	withActor(c, "m1", fleet.RoleManager)
	if code := httpCode(t, h.Update(c)); code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", code)
	}
}

func TestResourceHandler_Delete(t *testing.T) {
	svc := newStubVehicles()
	h := NewResourceHandler[fleet.Vehicle](svc, nil)

	c, rec := newJSONContext(http.MethodDelete, "/vehicles/v1", "")
	c.SetParamNames("id")
	c.SetParamValues("v1")
	withActor(c, "m1", fleet.RoleAdmin)
	if err := h.Delete(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusNoContent || svc.deleted != "v1" {
		t.Fatalf("code %d, deleted %q", rec.Code, svc.deleted)
	}
}

type stubUploads struct {
	media []ports.Upload
	doc   fleet.Document
	body  string
}

func (s *stubUploads) SaveMedia(_ context.Context, _ ports.Actor, files []ports.Upload) ([]fleet.Media, error) {
	out := make([]fleet.Media, 0, len(files))
	for _, f := range files {
		data, _ := io.ReadAll(f.Body)
		s.media = append(s.media, f)
		out = append(out, fleet.Media{Base: fleet.Base{ID: fleet.ID(f.FileName)}, FileName: f.FileName, Size: int64(len(data))})
	}
	return out, nil
}

func (s *stubUploads) SaveDocument(_ context.Context, _ ports.Actor, doc fleet.Document, file ports.Upload) (*fleet.Document, error) {
	data, _ := io.ReadAll(file.Body)
	s.doc = doc
	s.body = string(data)
	doc.ID = "doc1"
	return &doc, nil
}

func (s *stubUploads) SetVehicleImage(context.Context, ports.Actor, fleet.ID, ports.Upload) (*fleet.Vehicle, error) {
	return nil, domain.ErrNotFound
}

func (s *stubUploads) SetDriverPhoto(context.Context, ports.Actor, fleet.ID, ports.Upload) (*fleet.Driver, error) {
	return nil, domain.ErrNotFound
}

func newMultipartContext(t *testing.T, target string, fields map[string]string, field string, files map[string]string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		_ = w.WriteField(k, v)
	}
	for name, content := range files {
		fw, err := w.CreateFormFile(field, name)
		if err != nil {
			t.Fatal(err)
		}
		_, _ = fw.Write([]byte(content))
	}
	_ = w.Close()

	e := echo.New()
	e.Validator = NewValidator()
	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	withActor(c, "m1", fleet.RoleManager)
	return c, rec
}

func TestUploadHandler_Media(t *testing.T) {
	svc := &stubUploads{}
	h := NewUploadHandler(svc)

	c, rec := newMultipartContext(t, "/media/upload", nil, "files", map[string]string{"a.png": "aaa", "b.png": "bb"})
	if err := h.Media(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated || len(svc.media) != 2 {
		t.Fatalf("code %d, files %d", rec.Code, len(svc.media))
	}

	var resp struct {
		Data []fleet.Media `json:"data"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if len(resp.Data) != 2 {
		t.Fatalf("response = %s", rec.Body.String())
	}

	c, _ = newMultipartContext(t, "/media/upload", nil, "wrong", map[string]string{"a.png": "a"})
	if code := httpCode(t, h.Media(c)); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for the wrong field, got %d", code)
	}
}

func TestUploadHandler_Document(t *testing.T) {
	svc := &stubUploads{}
	h := NewUploadHandler(svc)

	fields := map[string]string{"ownerType": "vehicle", "owner": "v1", "type": "insurance", "expiresAt": "2025-06-30"}
	c, rec := newMultipartContext(t, "/documents/upload", fields, "file", map[string]string{"policy.pdf": "%PDF"})
	if err := h.Document(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if svc.doc.OwnerID != "v1" || svc.doc.ExpiresAt == nil || svc.doc.ExpiresAt.Month() != time.June || svc.body != "%PDF" {
		t.Errorf("document = %+v, body %q", svc.doc, svc.body)
	}

	c, _ = newMultipartContext(t, "/documents/upload", map[string]string{"ownerType": "boat"}, "file", map[string]string{"x.pdf": "x"})
	if code := httpCode(t, h.Document(c)); code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", code)
	}
}
