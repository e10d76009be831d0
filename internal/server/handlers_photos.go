package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"pixelfort/internal/api"
	"pixelfort/internal/models"
)

func (s *Server) handleUploadPhoto(w http.ResponseWriter, r *http.Request) {
	s.withLimiter(w, r, s.uploadLimiter, "upload", func() {
		s.uploadPhoto(w, r)
	})
}

func (s *Server) uploadPhoto(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		s.writeErrorReq(w, r, http.StatusUnauthorized, unauthorized())
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Uploads.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.cfg.Uploads.MultipartMaxMemory); err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, classifyMultipartError(err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest,
			badRequestCode(errors.New("file is required"), ErrCodeMissingRequired))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, classifyMultipartError(err))
		return
	}
	if len(data) == 0 {
		s.writeErrorReq(w, r, http.StatusBadRequest,
			badRequestCode(errors.New("upload is empty"), ErrCodeEmptyUpload))
		return
	}

	mediaType := http.DetectContentType(data)
	if declared := header.Header.Get("Content-Type"); declared != "" && mediaType == "application/octet-stream" {
		mediaType = declared
	}
	if !s.cfg.MediaTypeAllowed(mediaType) {
		s.writeErrorReq(w, r, http.StatusBadRequest,
			badRequestCode(fmt.Errorf("unsupported media type %s", mediaType), ErrCodeUnsupportedMediaType))
		return
	}

	photo, err := s.photoService.Store(r.Context(), StorePhotoInput{
		OwnerID:      user.ID,
		OriginalName: firstNonEmpty(r.FormValue("filename"), header.Filename),
		MimeType:     mediaType,
		Data:         data,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, toPhotoResponse(photo))
}

func (s *Server) handleListPhotos(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		s.writeErrorReq(w, r, http.StatusUnauthorized, unauthorized())
		return
	}

	photos, err := s.photoService.List(r.Context(), user.ID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	resp := make([]api.PhotoResponse, 0, len(photos))
	for i := range photos {
		resp = append(resp, toPhotoResponse(&photos[i]))
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetPhoto(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		s.writeErrorReq(w, r, http.StatusUnauthorized, unauthorized())
		return
	}
	id, ok := s.pathIDOrBadRequest(w, r)
	if !ok {
		return
	}

	photo, err := s.photoService.Get(r.Context(), user.ID, id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toPhotoResponse(photo))
}

func (s *Server) handleDeletePhoto(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		s.writeErrorReq(w, r, http.StatusUnauthorized, unauthorized())
		return
	}
	id, ok := s.pathIDOrBadRequest(w, r)
	if !ok {
		return
	}

	if err := s.photoService.Delete(r.Context(), user.ID, id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePhotoContent(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		s.writeErrorReq(w, r, http.StatusUnauthorized, unauthorized())
		return
	}
	id, ok := s.pathIDOrBadRequest(w, r)
	if !ok {
		return
	}

	photo, rc, err := s.photoService.OpenContent(r.Context(), user.ID, id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	defer rc.Close()

	contentType := photo.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.FormatInt(photo.SizeBytes, 10))
	w.Header().Set("ETag", `"`+photo.Digest.String()+`"`)
	if _, err := io.Copy(w, rc); err != nil {
		s.log().Debug("content stream aborted", "photo_id", photo.ID, "error", err)
	}
}

func (s *Server) handlePhotoThumbnail(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		s.writeErrorReq(w, r, http.StatusUnauthorized, unauthorized())
		return
	}
	id, ok := s.pathIDOrBadRequest(w, r)
	if !ok {
		return
	}

	photo, rc, err := s.photoService.OpenThumbnail(r.Context(), user.ID, id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("ETag", `"`+photo.ThumbnailDigest.String()+`"`)
	if _, err := io.Copy(w, rc); err != nil {
		s.log().Debug("thumbnail stream aborted", "photo_id", photo.ID, "error", err)
	}
}

func toPhotoResponse(photo *models.Photo) api.PhotoResponse {
	if photo == nil {
		return api.PhotoResponse{}
	}
	return api.PhotoResponse{
		Photo:        *photo,
		HasThumbnail: photo.HasThumbnail(),
	}
}
