package handler

import (
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/rideops/fleet-backoffice/internal/core/ports"
	fleet "github.com/rideops/fleet-backoffice/pkg/domain"
)

// UploadHandler serves the multipart upload routes.
type UploadHandler struct {
	service ports.UploadService
}

func NewUploadHandler(service ports.UploadService) *UploadHandler {
	return &UploadHandler{service: service}
}

type mediaResponse struct {
	Data []fleet.Media `json:"data"`
}

// Media stores every file sent under "files".
//
// @Summary      Upload media
// @Tags         uploads
// @Accept       multipart/form-data
// @Security     BearerAuth
// @Success      201  {object}  mediaResponse
// @Router       /media/upload [post]
func (h *UploadHandler) Media(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}
	form, err := c.MultipartForm()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid multipart form")
	}

	uploads, closeAll, err := openUploads(form.File["files"])
	if err != nil {
		return err
	}
	defer closeAll()

	media, err := h.service.SaveMedia(c.Request().Context(), actor, uploads)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, mediaResponse{Data: media})
}

// Document stores the file sent under "file" and creates a document record
// from the other form fields.
//
// @Summary      Upload document
// @Tags         uploads
// @Accept       multipart/form-data
// @Security     BearerAuth
// @Success      201  {object}  fleet.Document
// @Router       /documents/upload [post]
func (h *UploadHandler) Document(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}

	doc := fleet.Document{
		OwnerType: c.FormValue("ownerType"),
		OwnerID:   fleet.ID(c.FormValue("owner")),
		Type:      c.FormValue("type"),
		Title:     c.FormValue("title"),
		Status:    c.FormValue("status"),
	}
	if doc.IssuedAt, err = formDate(c, "issuedAt"); err != nil {
		return err
	}
	if doc.ExpiresAt, err = formDate(c, "expiresAt"); err != nil {
		return err
	}
	if err := c.Validate(&doc); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	upload, closeFn, err := openSingle(c, "file")
	if err != nil {
		return err
	}
	defer closeFn()

	created, err := h.service.SaveDocument(c.Request().Context(), actor, doc, upload)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, created)
}

// VehicleImage replaces the image of a vehicle with the file sent under "image".
func (h *UploadHandler) VehicleImage(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}
	upload, closeFn, err := openSingle(c, "image")
	if err != nil {
		return err
	}
	defer closeFn()

	v, err := h.service.SetVehicleImage(c.Request().Context(), actor, fleet.ID(c.Param("id")), upload)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, v)
}

// DriverPhoto replaces the photo of a driver with the file sent under "photo".
func (h *UploadHandler) DriverPhoto(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}
	upload, closeFn, err := openSingle(c, "photo")
	if err != nil {
		return err
	}
	defer closeFn()

	d, err := h.service.SetDriverPhoto(c.Request().Context(), actor, fleet.ID(c.Param("id")), upload)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, d)
}

func openSingle(c echo.Context, field string) (ports.Upload, func(), error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return ports.Upload{}, nil, echo.NewHTTPError(http.StatusBadRequest, "missing file field "+field)
	}
	uploads, closeAll, err := openUploads([]*multipart.FileHeader{fh})
	if err != nil {
		return ports.Upload{}, nil, err
	}
	return uploads[0], closeAll, nil
}

func openUploads(headers []*multipart.FileHeader) ([]ports.Upload, func(), error) {
	if len(headers) == 0 {
		return nil, nil, echo.NewHTTPError(http.StatusBadRequest, "no files uploaded")
	}

	var opened []io.Closer
	closeAll := func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}

	uploads := make([]ports.Upload, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			closeAll()
			return nil, nil, echo.NewHTTPError(http.StatusBadRequest, "unreadable file "+fh.Filename)
		}
		opened = append(opened, f)
		uploads = append(uploads, ports.Upload{
			FileName:    fh.Filename,
			ContentType: fh.Header.Get(echo.HeaderContentType),
			Body:        f,
		})
	}
	return uploads, closeAll, nil
}

func formDate(c echo.Context, name string) (*time.Time, error) {
	raw := c.FormValue(name)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, echo.NewHTTPError(http.StatusBadRequest, name+" must be a date (YYYY-MM-DD) or RFC 3339 timestamp")
}
