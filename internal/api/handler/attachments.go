package handler

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	mw "github.com/feedbacklens/feedbacklens/internal/api/middleware"
	"github.com/feedbacklens/feedbacklens/internal/api/response"
	"github.com/feedbacklens/feedbacklens/internal/storage"
	"github.com/feedbacklens/feedbacklens/internal/store"
	"github.com/feedbacklens/feedbacklens/pkg/models"
)

const (
	maxAttachmentBytes = 10 << 20
	signedURLTTL       = 15 * time.Minute
)

// NewUploadAttachmentHandler returns the handler for POST /projects/{projectID}/attachments.
// The upload is a single multipart file field named "file". The attachment is
// created unlinked; the client attaches it to a report via attachment_ids at
// report creation.
func NewUploadAttachmentHandler(s store.Store, objects storage.ObjectStorage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projectID, ok := mw.GetProjectID(r)
		if !ok {
			response.Error(w, r, response.CodeInvalidToken, "Missing project", nil)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxAttachmentBytes+4096)
		file, header, err := r.FormFile("file")
		if err != nil {
			response.Error(w, r, response.CodeValidation, "A multipart file field named 'file' is required", nil)
			return
		}
		defer file.Close()

		data, err := io.ReadAll(io.LimitReader(file, maxAttachmentBytes+1))
		if err != nil {
			response.Error(w, r, response.CodeValidation, "Failed to read upload", nil)
			return
		}
		if len(data) > maxAttachmentBytes {
			response.Error(w, r, response.CodeStorageQuota,
				fmt.Sprintf("attachment exceeds the %d byte limit", maxAttachmentBytes), nil)
			return
		}

		contentType := header.Header.Get("Content-Type")
		if contentType == "" {
			contentType = http.DetectContentType(data)
		}

		id := uuid.New()
		objectKey := fmt.Sprintf("attachments/%s/%s", projectID, id)
		if err := objects.Put(r.Context(), objectKey, contentType, data); err != nil {
			response.Error(w, r, response.CodeInternal, "Failed to store attachment", nil)
			return
		}

		attachment := &models.Attachment{
			ID:          id,
			ProjectID:   projectID,
			ObjectKey:   objectKey,
			Filename:    header.Filename,
			ContentType: contentType,
			SizeBytes:   int64(len(data)),
			CreatedAt:   time.Now().UTC(),
		}
		if err := s.CreateAttachment(r.Context(), attachment); err != nil {
			_ = objects.Delete(r.Context(), objectKey)
			storeError(w, r, err, "attachment")
			return
		}
		response.Created(w, attachment)
	}
}

// NewListReportAttachmentsHandler returns the handler for
// GET /projects/{projectID}/reports/{reportID}/attachments. Each entry carries
// a short-lived download URL.
func NewListReportAttachmentsHandler(s store.Store, objects storage.ObjectStorage) http.HandlerFunc {
	type entry struct {
		*models.Attachment
		DownloadURL string `json:"download_url,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		projectID, ok := mw.GetProjectID(r)
		if !ok {
			response.Error(w, r, response.CodeInvalidToken, "Missing project", nil)
			return
		}
		reportID, err := uuid.Parse(chi.URLParam(r, "reportID"))
		if err != nil {
			response.Error(w, r, response.CodeValidation, "Invalid report id", nil)
			return
		}

		// Ownership check; attachments are listed by report id alone.
		if _, err := s.GetReport(r.Context(), reportID, projectID); err != nil {
			storeError(w, r, err, "report")
			return
		}

		attachments, err := s.ListReportAttachments(r.Context(), reportID)
		if err != nil {
			response.Error(w, r, response.CodeInternal, "Failed to list attachments", nil)
			return
		}

		entries := make([]entry, 0, len(attachments))
		for _, a := range attachments {
			e := entry{Attachment: a}
			if url, err := objects.SignedURL(r.Context(), a.ObjectKey, signedURLTTL); err == nil {
				e.DownloadURL = url
			}
			entries = append(entries, e)
		}
		response.JSON(w, entries)
	}
}
