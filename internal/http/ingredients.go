package httpx

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/shortontech/botsense/internal/ingredient"
)

func (e Env) ListIngredients(w http.ResponseWriter, r *http.Request) {
	items, err := e.Ingredients.List(r.Context())
	if err != nil {
		e.ingredientError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (e Env) CreateIngredient(w http.ResponseWriter, r *http.Request) {
	var in ingredient.Ingredient
	if !e.decodeJSON(w, r, &in) {
		return
	}
	created, err := e.Ingredients.Create(r.Context(), in)
	if err != nil {
		e.ingredientError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (e Env) GetIngredient(w http.ResponseWriter, r *http.Request) {
	it, err := e.Ingredients.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		e.ingredientError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

func (e Env) UpdateIngredient(w http.ResponseWriter, r *http.Request) {
	var in ingredient.Ingredient
	if !e.decodeJSON(w, r, &in) {
		return
	}
	in.ID = chi.URLParam(r, "id")
	updated, err := e.Ingredients.Update(r.Context(), in)
	if err != nil {
		e.ingredientError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (e Env) DeleteIngredient(w http.ResponseWriter, r *http.Request) {
	if err := e.Ingredients.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		e.ingredientError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (e Env) ingredientError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ingredient.ErrNotFound):
		writeError(w, http.StatusNotFound, "ingredient not found")
	case errors.Is(err, ingredient.ErrInvalid):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		e.log().Error("http: ingredient store failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
