package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/username/cryptotax/src/logger"
	"github.com/username/cryptotax/src/security/validation"
	"github.com/username/cryptotax/src/services"
	"github.com/username/cryptotax/src/utils"
)

type ImportHandler struct {
	importService      services.ImportService
	maxUploadSizeBytes int64
}

func NewImportHandler(service services.ImportService, maxUploadSizeBytes int64) *ImportHandler {
	return &ImportHandler{
		importService:      service,
		maxUploadSizeBytes: maxUploadSizeBytes,
	}
}

// HandleImport serves POST /api/transactions/import?source=csv|json with the
// ledger file in the multipart field "file".
func (h *ImportHandler) HandleImport(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}
	log := logger.FromContext(r.Context())

	source := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("source")))
	if source == "" {
		source = "csv"
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSizeBytes+1<<20)
	if err := r.ParseMultipartForm(h.maxUploadSizeBytes); err != nil {
		log.Warn("Failed to parse multipart form or request too large", "error", err, "limit", h.maxUploadSizeBytes)
		utils.SendJSONError(w, fmt.Sprintf("Failed to parse form or request too large (max %d MB)", h.maxUploadSizeBytes/(1024*1024)), http.StatusBadRequest)
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		log.Warn("Failed to retrieve file from request", "error", err)
		utils.SendJSONError(w, "Failed to retrieve file from request. Ensure 'file' field is used.", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if fileHeader.Size > h.maxUploadSizeBytes {
		log.Warn("Uploaded file header reports size too large", "fileSize", fileHeader.Size, "limit", h.maxUploadSizeBytes)
		utils.SendJSONError(w, fmt.Sprintf("File too large, max %d MB", h.maxUploadSizeBytes/(1024*1024)), http.StatusBadRequest)
		return
	}

	clientContentType := fileHeader.Header.Get("Content-Type")
	if err := validation.ValidateClientContentType(source, clientContentType); err != nil {
		log.Warn("Invalid client-declared file type", "contentType", clientContentType, "source", source, "error", err)
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	detectedContentType, err := validation.ValidateFileContentByMagicBytes(file)
	if err != nil {
		log.Warn("Server-side file content validation failed", "filename", fileHeader.Filename, "error", err)
		status := http.StatusBadRequest
		if !errors.Is(err, validation.ErrValidationFailed) {
			status = http.StatusInternalServerError
		}
		utils.SendJSONError(w, err.Error(), status)
		return
	}
	log.Info("Processing import request", "filename", fileHeader.Filename, "source", source, "detectedType", detectedContentType)

	result, err := h.importService.Import(r.Context(), userID, source, file)
	if err != nil {
		switch {
		case errors.Is(err, validation.ErrValidationFailed):
			log.Warn("Import failed due to file validation errors", "filename", fileHeader.Filename, "error", err)
			utils.SendJSONError(w, fmt.Sprintf("File content validation failed: %v", err), http.StatusBadRequest)
		case errors.Is(err, services.ErrParsingFailed):
			log.Warn("Import failed due to parsing errors", "filename", fileHeader.Filename, "error", err)
			utils.SendJSONError(w, fmt.Sprintf("Error parsing %s file: %v", source, err), http.StatusBadRequest)
		case errors.Is(err, services.ErrImportConflict):
			log.Warn("Import conflicts with stored transactions", "filename", fileHeader.Filename, "error", err)
			utils.SendJSONError(w, err.Error(), http.StatusConflict)
		default:
			log.Error("Import failed", "filename", fileHeader.Filename, "error", err)
			utils.SendJSONError(w, "Failed to store imported transactions", http.StatusInternalServerError)
		}
		return
	}

	utils.SendJSON(w, result, http.StatusOK)
}
