package handlers

import (
	"net/http"
	"time"

	"expenses-api/internal/expenses"
	"expenses-api/internal/models"

	"github.com/shopspring/decimal"
)

type recordRequest struct {
	UserID     *int64           `json:"user_id"`
	CategoryID *int64           `json:"category_id" validate:"required"`
	Amount     *decimal.Decimal `json:"amount" validate:"required,gte=0,lt=1000000000000"`
	CreatedAt  *time.Time       `json:"created_at"`
}

// CreateRecord stores an expense for the caller.
func (h *Handlers) CreateRecord(w http.ResponseWriter, r *http.Request) {
	var req recordRequest
	if !h.decode(w, r, &req) {
		return
	}
	user := GetUserFromContext(r)

	// user_id is optional; when present it must name the caller.
	if req.UserID != nil && *req.UserID != user.ID {
		writeError(w, http.StatusForbidden, CodeForbidden, nil)
		return
	}

	record, err := h.svc.CreateRecord(r.Context(), expenses.NewRecord{
		UserID:     user.ID,
		CategoryID: *req.CategoryID,
		Amount:     *req.Amount,
		CreatedAt:  req.CreatedAt,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, record)
}

// ListRecords returns the caller's records, optionally filtered by user_id and category_id.
func (h *Handlers) ListRecords(w http.ResponseWriter, r *http.Request) {
	var filter models.RecordFilter
	details := fieldErrors{}
	var err error
	if filter.UserID, err = queryID(r, "user_id"); err != nil {
		details["user_id"] = []string{"Not a valid integer."}
	}
	if filter.CategoryID, err = queryID(r, "category_id"); err != nil {
		details["category_id"] = []string{"Not a valid integer."}
	}
	if len(details) > 0 {
		writeError(w, http.StatusBadRequest, CodeValidation, details)
		return
	}

	records, err := h.svc.ListRecords(r.Context(), GetUserFromContext(r), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newList[models.Record](records))
}

// GetRecord returns one of the caller's records.
func (h *Handlers) GetRecord(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	record, err := h.svc.Record(r.Context(), GetUserFromContext(r), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// DeleteRecord deletes one of the caller's records.
func (h *Handlers) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteRecord(r.Context(), GetUserFromContext(r), id); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true, "record_id": id})
}
