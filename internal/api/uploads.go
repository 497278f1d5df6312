package api

import (
	"bufio"
	"errors"
	"net/http"

	"github.com/punchamoorthee/trash2cash/internal/service"
)

// Upload stores the multipart field "file" and returns its public URL.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "file exceeds the upload limit")
			return
		}
		respondError(w, http.StatusBadRequest, "expected a multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, hdr, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, "multipart field \"file\" is required")
		return
	}
	defer file.Close()

	// Unlabelled parts are sniffed.
	br := bufio.NewReader(file)
	contentType := hdr.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		head, _ := br.Peek(512)
		contentType = http.DetectContentType(head)
	}

	url, err := service.UploadImage(r.Context(), h.media, hdr.Filename, contentType, br)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"url": url, "secure_url": url})
}
