package handlers

import (
	"net/http"
	"strings"

	"expenses-api/internal/models"
)

type categoryRequest struct {
	Name     string `json:"name" validate:"required,max=120"`
	IsGlobal *bool  `json:"is_global" validate:"required"`
	UserID   *int64 `json:"user_id"`
}

// ListCategories returns the categories visible to the caller.
func (h *Handlers) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.svc.ListCategoriesVisibleTo(r.Context(), GetUserFromContext(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newList[models.Category](categories))
}

// GetCategory returns a single visible category.
func (h *Handlers) GetCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	category, err := h.svc.Category(r.Context(), GetUserFromContext(r), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, category)
}

// CreateCategory creates a global category or one owned by the caller.
func (h *Handlers) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if !h.decode(w, r, &req) {
		return
	}
	user := GetUserFromContext(r)

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, CodeValidation, fieldErrors{"name": {"Name must not be empty."}})
		return
	}

	if *req.IsGlobal && req.UserID != nil {
		writeError(w, http.StatusBadRequest, CodeValidation, fieldErrors{
			"user_id": {"Global category must not have user_id"},
		})
		return
	}
	if !*req.IsGlobal && req.UserID != nil && *req.UserID != user.ID {
		writeError(w, http.StatusForbidden, CodeForbidden, nil)
		return
	}

	category, err := h.svc.CreateCategory(r.Context(), user, req.Name, *req.IsGlobal)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, category)
}

// DeleteCategory deletes the category named in the path.
func (h *Handlers) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	h.deleteCategory(w, r, id)
}

// DeleteCategoryByQuery deletes the category named by the ?id= query parameter.
func (h *Handlers) DeleteCategoryByQuery(w http.ResponseWriter, r *http.Request) {
	id, err := queryID(r, "id")
	switch {
	case err != nil:
		writeError(w, http.StatusBadRequest, CodeValidation, fieldErrors{"id": {"Not a valid integer."}})
		return
	case id == nil:
		writeError(w, http.StatusBadRequest, CodeValidation, fieldErrors{"id": {"Missing data for required field."}})
		return
	}
	h.deleteCategory(w, r, *id)
}

func (h *Handlers) deleteCategory(w http.ResponseWriter, r *http.Request, id int64) {
	if err := h.svc.DeleteCategory(r.Context(), GetUserFromContext(r), id); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true, "category_id": id})
}
