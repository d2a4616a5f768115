package web

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/detailing/internal/domain"
	"github.com/JonMunkholm/detailing/internal/ingest"
)

// multipartMemory is how much of a multipart body is held in memory before
// spilling to temporary files.
const multipartMemory = 32 << 20

// handleSubmitFileSet stores an uploaded archive and attaches it to the
// acting user's STARTED claim. The archive is the "file" form field; "label"
// is optional.
func (s *Server) handleSubmitFileSet(w http.ResponseWriter, r *http.Request) {
	username, err := actingUser(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	// The form envelope may add a little to the archive itself.
	limit := s.cfg.Upload.MaxFileSize + 1<<20
	if r.ContentLength > limit {
		respondError(w, r, fmt.Errorf("request of %d bytes: %w", r.ContentLength, domain.ErrUploadTooLarge))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, r, fmt.Errorf("request over %d bytes: %w", tooLarge.Limit, domain.ErrUploadTooLarge))
			return
		}
		respondError(w, r, fmt.Errorf("parse form: %v: %w", err, domain.ErrNoFile))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, r, fmt.Errorf("form field file: %v: %w", err, domain.ErrNoFile))
		return
	}
	defer file.Close()

	fs, err := s.deps.Files.Submit(r.Context(), chi.URLParam(r, "jobId"), username, ingest.Upload{
		Filename: header.Filename,
		Label:    r.FormValue("label"),
		Body:     file,
		Size:     header.Size,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, fs)
}

// handleProcessFileSet runs the unprocessed files of a file set through the
// table pipeline. Per-file failures are part of the 200 response.
func (s *Server) handleProcessFileSet(w http.ResponseWriter, r *http.Request) {
	username, err := actingUser(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	result, err := s.deps.Files.ProcessFileSet(r.Context(),
		chi.URLParam(r, "jobId"),
		username,
		chi.URLParam(r, "fileSetId"),
	)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// handleClaimFileSets lists the file sets on the acting user's active claim.
func (s *Server) handleClaimFileSets(w http.ResponseWriter, r *http.Request) {
	username, err := actingUser(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	sets, err := s.deps.Files.FileSetsForClaim(r.Context(), chi.URLParam(r, "jobId"), username)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, sets)
}

func (s *Server) handleJobFileSets(w http.ResponseWriter, r *http.Request) {
	sets, err := s.deps.Files.FileSetsForJob(r.Context(), chi.URLParam(r, "jobId"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, sets)
}

// handleDownloadArchive streams the archive a file set was ingested from.
func (s *Server) handleDownloadArchive(w http.ResponseWriter, r *http.Request) {
	key, err := claimKeyParam(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	rc, name, err := s.deps.Files.OpenArchive(r.Context(), key, chi.URLParam(r, "fileSetId"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	if _, err := io.Copy(w, rc); err != nil {
		// Headers are gone; all that is left is to record it.
		logRequestError(r, "archive download interrupted", err)
	}
}
