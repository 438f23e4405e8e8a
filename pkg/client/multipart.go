package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/textproto"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rideops/fleet-backoffice/pkg/domain"
)

// File is one file to upload.
type File struct {
	Name        string
	ContentType string // guessed from Name when empty
	Data        io.Reader
}

// OpenFiles opens the files at paths for upload. The returned function closes
// all of them.
func OpenFiles(paths ...string) ([]File, func(), error) {
	var opened []*os.File
	closeAll := func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}

	files := make([]File, 0, len(paths))
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			closeAll()
			return nil, func() {}, fmt.Errorf("open %s: %w", p, err)
		}
		opened = append(opened, f)
		files = append(files, File{Name: filepath.Base(p), Data: f})
	}
	return files, closeAll, nil
}

type multipartBody struct {
	buf         *bytes.Buffer
	contentType string
}

// newMultipart encodes fields and files. Every file goes under fileField, in
// order.
func newMultipart(fileField string, fields map[string]string, files []File) (*multipartBody, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := w.WriteField(k, fields[k]); err != nil {
			return nil, fmt.Errorf("write field %s: %w", k, err)
		}
	}

	for _, f := range files {
		ct := f.ContentType
		if ct == "" {
			ct = mime.TypeByExtension(strings.ToLower(filepath.Ext(f.Name)))
		}
		if ct == "" {
			ct = "application/octet-stream"
		}

		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, fileField, f.Name))
		h.Set("Content-Type", ct)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, fmt.Errorf("create part %s: %w", f.Name, err)
		}
		if _, err := io.Copy(part, f.Data); err != nil {
			return nil, fmt.Errorf("copy %s: %w", f.Name, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}
	return &multipartBody{buf: buf, contentType: w.FormDataContentType()}, nil
}

// UploadResult is the raw response of an upload endpoint. Upload endpoints do
// not agree on where the created entity's identifier lives, so the response
// is returned as-is.
type UploadResult struct {
	StatusCode int
	Raw        json.RawMessage
}

// CandidateIDs lists every identifier found at the locations upload endpoints
// are known to use: "_id", "id", "data._id", "data.id", and the same keys on
// each element when "data" is an array. It does not pick one.
func (r *UploadResult) CandidateIDs() []domain.ID {
	var top struct {
		Mongo domain.ID       `json:"_id"`
		Plain domain.ID       `json:"id"`
		Data  json.RawMessage `json:"data"`
	}
	if json.Unmarshal(r.Raw, &top) != nil {
		return nil
	}

	var ids []domain.ID
	seen := map[domain.ID]bool{}
	add := func(id domain.ID) {
		if !id.IsZero() && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	add(top.Mongo)
	add(top.Plain)

	type keyed struct {
		Mongo domain.ID `json:"_id"`
		Plain domain.ID `json:"id"`
	}
	var one keyed
	if json.Unmarshal(top.Data, &one) == nil {
		add(one.Mongo)
		add(one.Plain)
	}
	var many []keyed
	if json.Unmarshal(top.Data, &many) == nil {
		for _, k := range many {
			add(k.Mongo)
			add(k.Plain)
		}
	}
	return ids
}

// Decode unmarshals the raw response into v.
func (r *UploadResult) Decode(v any) error {
	return json.Unmarshal(r.Raw, v)
}
