package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/ansonkao/time-tracker/internal/models"
	"github.com/ansonkao/time-tracker/internal/store"
	"github.com/ansonkao/time-tracker/internal/validation"
)

const (
	// MaxCategoryNameLength is the maximum length for category names
	MaxCategoryNameLength = 60
)

// CategoryHandler handles category-related requests
type CategoryHandler struct {
	categories *store.CategoryStore
}

// NewCategoryHandler creates a new category handler
func NewCategoryHandler(categories *store.CategoryStore) *CategoryHandler {
	return &CategoryHandler{categories: categories}
}

// RegisterRoutes registers category routes on the given router
// The router should already have the /categories prefix
func (h *CategoryHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.ListCategories).Methods("GET")
	r.HandleFunc("", h.CreateCategory).Methods("POST")
	r.HandleFunc("/reorder", h.ReorderCategories).Methods("POST")
	r.HandleFunc("/{id}", h.UpdateCategory).Methods("PATCH")
	r.HandleFunc("/{id}", h.DeleteCategory).Methods("DELETE")
}

// CreateCategoryRequest represents a create category request
type CreateCategoryRequest struct {
	Name  string `json:"name" validate:"required,min=1,max=60"`
	Color string `json:"color" validate:"required,hex_color"`
}

// UpdateCategoryRequest represents an update category request
type UpdateCategoryRequest struct {
	Name  *string `json:"name,omitempty" validate:"omitempty,min=1,max=60"`
	Color *string `json:"color,omitempty" validate:"omitempty,hex_color"`
}

// ReorderCategoriesRequest moves the category at SourceIndex to DestIndex
type ReorderCategoriesRequest struct {
	SourceIndex *int `json:"source_index" validate:"required,min=0"`
	DestIndex   *int `json:"dest_index" validate:"required,min=0"`
}

func respondValidationError(w http.ResponseWriter, err error) {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		for _, fieldError := range validationErrors {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", fmt.Sprintf("Validation failed: %s", fieldError.Error()))
			return
		}
	}
	respondJSONError(w, http.StatusBadRequest, "Bad Request", "Validation failed")
}

// ListCategories lists all categories in display order
func (h *CategoryHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.categories.List(r.Context())
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to load categories")
		return
	}
	if categories == nil {
		categories = []models.Category{}
	}
	respondJSON(w, http.StatusOK, categories)
}

// CreateCategory appends a new category to the list
func (h *CategoryHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CreateCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid request body")
		return
	}

	if err := validation.Validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	req.Name = validation.SanitizeText(req.Name)
	if req.Name == "" {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Category name cannot be empty")
		return
	}

	category, err := h.categories.Add(r.Context(), req.Name, req.Color)
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to save category")
		return
	}

	respondJSON(w, http.StatusCreated, category)
}

// UpdateCategory renames or recolors an existing category
func (h *CategoryHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req UpdateCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid request body")
		return
	}

	if err := validation.Validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	if req.Name != nil {
		sanitized := validation.SanitizeText(*req.Name)
		if sanitized == "" {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", "Category name cannot be empty")
			return
		}
		req.Name = &sanitized
	}

	category, err := h.categories.Update(r.Context(), id, models.CategoryUpdate{
		Name:  req.Name,
		Color: req.Color,
	})
	if err != nil {
		if errors.Is(err, store.ErrCategoryNotFound) {
			respondJSONError(w, http.StatusNotFound, "Not Found", "Category not found")
			return
		}
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to update category")
		return
	}

	respondJSON(w, http.StatusOK, category)
}

// DeleteCategory removes a category from the list
func (h *CategoryHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.categories.Remove(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrCategoryNotFound) {
			respondJSONError(w, http.StatusNotFound, "Not Found", "Category not found")
			return
		}
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to delete category")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"id": id})
}

// ReorderCategories moves a category to a new position in display order
func (h *CategoryHandler) ReorderCategories(w http.ResponseWriter, r *http.Request) {
	var req ReorderCategoriesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid request body")
		return
	}

	if err := validation.Validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	ordered, err := h.categories.Reorder(r.Context(), *req.SourceIndex, *req.DestIndex)
	if err != nil {
		if errors.Is(err, store.ErrIndexOutOfRange) {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", "Reorder indexes out of range")
			return
		}
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to save category order")
		return
	}

	respondJSON(w, http.StatusOK, ordered)
}
