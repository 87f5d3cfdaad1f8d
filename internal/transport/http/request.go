package http

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	apierrors "github.com/gddickinson/flipr-calcium-response-analysis-sub000/internal/errors"
)

// maxMultipartMemory is the part of a multipart upload kept in memory.
const maxMultipartMemory = 32 << 20

// uploadedFile returns the uploaded document and its name. Multipart
// requests read the given form field; any other body is taken as the file
// itself, named by the "name" query parameter.
func uploadedFile(r *http.Request, field, fallbackName string) (io.ReadCloser, string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				return nil, "", apierrors.New(http.StatusRequestEntityTooLarge, apierrors.CodePayloadTooLarge, "Upload exceeds the size limit")
			}
			return nil, "", apierrors.InvalidRequestWithError(err)
		}
		file, header, err := r.FormFile(field)
		if err != nil {
			return nil, "", apierrors.ErrValidation(field, "A file is required in form field "+field)
		}
		return file, filepath.Base(header.Filename), nil
	}

	if r.Body == nil || r.ContentLength == 0 {
		return nil, "", apierrors.New(http.StatusBadRequest, apierrors.CodeInvalidRequest, "Request body is required")
	}
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		name = fallbackName
	}
	return r.Body, filepath.Base(name), nil
}
