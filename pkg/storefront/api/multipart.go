package api

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/tendant/simple-storefront/pkg/storefront"
)

// parseMultipart reads the form of a multi-file upload. The returned closer
// releases every opened part and the temporary files behind them.
func (s *Server) parseMultipart(w http.ResponseWriter, r *http.Request, fields ...string) ([]storefront.FileUpload, func(), error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, func() {}, &storefront.ValidationError{Field: "body", Reason: "exceeds upload limit"}
		}
		return nil, func() {}, &storefront.ValidationError{Field: "body", Reason: "must be multipart/form-data"}
	}

	var headers []*multipart.FileHeader
	for _, field := range fields {
		headers = append(headers, r.MultipartForm.File[field]...)
	}

	var opened []io.Closer
	release := func() {
		for _, c := range opened {
			c.Close()
		}
		r.MultipartForm.RemoveAll()
	}

	uploads := make([]storefront.FileUpload, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			release()
			return nil, func() {}, &storefront.ValidationError{Field: fields[0], Reason: "unreadable part " + fh.Filename}
		}
		opened = append(opened, f)
		uploads = append(uploads, storefront.FileUpload{
			FileName:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Reader:      f,
			Size:        fh.Size,
		})
	}
	return uploads, release, nil
}
