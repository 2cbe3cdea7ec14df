package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/username/cryptotax/src/ledger"
	"github.com/username/cryptotax/src/logger"
	"github.com/username/cryptotax/src/models"
	"github.com/username/cryptotax/src/services"
	"github.com/username/cryptotax/src/utils"
)

// maxBatchUsers caps one batch request.
const maxBatchUsers = 500

type TaxReportHandler struct {
	taxReportService services.TaxReportService
	now              func() time.Time
}

func NewTaxReportHandler(service services.TaxReportService) *TaxReportHandler {
	return &TaxReportHandler{
		taxReportService: service,
		now:              time.Now,
	}
}

type batchRequest struct {
	UserIDs []string `json:"userIds"`
	TaxYear int      `json:"taxYear"`
}

type skippedResponse struct {
	TaxYear int                   `json:"taxYear"`
	Skipped []models.SkippedEvent `json:"skipped"`
}

// HandleGetTaxReport serves GET /api/tax-report?year=YYYY with ETag support.
func (h *TaxReportHandler) HandleGetTaxReport(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}
	taxYear, ok := h.parseYear(w, r)
	if !ok {
		return
	}
	log := logger.FromContext(r.Context())
	log.Debug("Handling GetTaxReport request with ETag support", "taxYear", taxYear)

	report, err := h.taxReportService.GetTaxReport(r.Context(), userID, taxYear)
	if err != nil {
		h.sendServiceError(w, r, err)
		return
	}

	currentETag, etagErr := utils.GenerateETag(report)
	if etagErr != nil {
		log.Error("Failed to generate ETag for tax report", "error", etagErr)
	}

	w.Header().Set("Cache-Control", "no-cache, private")
	if etagErr == nil && currentETag != "" {
		w.Header().Set("ETag", fmt.Sprintf("\"%s\"", currentETag))
		if utils.ETagMatches(r.Header.Get("If-None-Match"), currentETag) {
			log.Info("ETag match for tax report", "taxYear", taxYear, "etag", currentETag)
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}
	utils.SendJSON(w, report, http.StatusOK)
}

// HandleGetSkipped serves GET /api/tax-report/skipped?year=YYYY.
func (h *TaxReportHandler) HandleGetSkipped(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}
	taxYear, ok := h.parseYear(w, r)
	if !ok {
		return
	}

	skipped, err := h.taxReportService.Skipped(r.Context(), userID, taxYear)
	if err != nil {
		h.sendServiceError(w, r, err)
		return
	}
	if skipped == nil {
		skipped = []models.SkippedEvent{}
	}
	w.Header().Set("Cache-Control", "no-cache, private")
	utils.SendJSON(w, skippedResponse{TaxYear: taxYear, Skipped: skipped}, http.StatusOK)
}

// HandleBatch serves POST /api/tax-report/batch for admin tokens.
func (h *TaxReportHandler) HandleBatch(w http.ResponseWriter, r *http.Request) {
	claims, ok := GetClaimsFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}
	if !claims.IsAdmin() {
		logger.FromContext(r.Context()).Warn("Batch report requested without admin role")
		utils.SendJSONError(w, "admin role required", http.StatusForbidden)
		return
	}

	var req batchRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.UserIDs) == 0 {
		utils.SendJSONError(w, "userIds must not be empty", http.StatusBadRequest)
		return
	}
	if len(req.UserIDs) > maxBatchUsers {
		utils.SendJSONError(w, fmt.Sprintf("at most %d userIds per request", maxBatchUsers), http.StatusBadRequest)
		return
	}
	for i, id := range req.UserIDs {
		parsed, err := uuid.Parse(id)
		if err != nil {
			utils.SendJSONError(w, fmt.Sprintf("invalid user id %q", id), http.StatusBadRequest)
			return
		}
		req.UserIDs[i] = parsed.String()
	}
	if err := utils.ValidateTaxYear(req.TaxYear, h.now()); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	results, err := h.taxReportService.ComputeBatch(r.Context(), req.UserIDs, req.TaxYear)
	if err != nil {
		h.sendServiceError(w, r, err)
		return
	}
	utils.SendJSON(w, map[string]interface{}{"taxYear": req.TaxYear, "reports": results}, http.StatusOK)
}

func (h *TaxReportHandler) parseYear(w http.ResponseWriter, r *http.Request) (int, bool) {
	yearParam := r.URL.Query().Get("year")
	if yearParam == "" {
		utils.SendJSONError(w, "year query parameter is required", http.StatusBadRequest)
		return 0, false
	}
	taxYear, err := utils.ParseTaxYear(yearParam, h.now())
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return 0, false
	}
	return taxYear, true
}

func (h *TaxReportHandler) sendServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidTaxYear):
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ledger.ErrDataUnavailable):
		utils.SendJSONError(w, "Ledger data is temporarily unavailable", http.StatusServiceUnavailable)
	default:
		logger.FromContext(r.Context()).Error("Tax report request failed", "error", err)
		utils.SendJSONError(w, "Failed to compute tax report", http.StatusInternalServerError)
	}
}
