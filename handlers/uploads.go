package handlers

import (
	"errors"
	"net/http"
	"path"

	"github.com/apex/log"
	"p9e.in/zeladoria/photos"
)

// UploadPhoto stores one report photo (multipart field "file") and returns
// the URL to put in the report's photos list.
func (h *Handler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, photos.MaxUploadSize)
	if err := r.ParseMultipartForm(photos.MaxUploadSize); err != nil {
		http.Error(w, "bad multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "missing file field: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	url, err := h.Photos.Save(r.Context(), header.Filename, file)
	if errors.Is(err, photos.ErrUnsupportedType) {
		http.Error(w, err.Error(), http.StatusUnsupportedMediaType)
		return
	}
	if err != nil {
		log.WithError(err).WithField("file", header.Filename).Error("photo upload failed")
		http.Error(w, "failed to save file", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"url":      url,
		"filename": path.Base(url),
	})
}
