package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"subtrack/internal/auth"
)

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.categories.List(r.Context(), auth.UserFromRequest(r))
	if err != nil {
		writeServiceError(w, r, "List categories failed", err)
		return
	}
	NewResponse().JSON(map[string]any{"categories": cats}).Write(w)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	name, ok := readCategoryName(w, r)
	if !ok {
		return
	}

	c, err := s.categories.Create(r.Context(), auth.UserFromRequest(r), name)
	if err != nil {
		writeServiceError(w, r, "Create category failed", err)
		return
	}
	NewResponse().Status(http.StatusCreated).JSON(c).Write(w)
}

func (s *Server) handleRenameCategory(w http.ResponseWriter, r *http.Request) {
	name, ok := readCategoryName(w, r)
	if !ok {
		return
	}

	c, err := s.categories.Rename(r.Context(), auth.UserFromRequest(r), chi.URLParam(r, "id"), name)
	if err != nil {
		writeServiceError(w, r, "Rename category failed", err)
		return
	}
	NewResponse().JSON(c).Write(w)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := s.categories.Delete(r.Context(), auth.UserFromRequest(r), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, "Delete category failed", err)
		return
	}
	NewResponse().Status(http.StatusNoContent).Write(w)
}

func readCategoryName(w http.ResponseWriter, r *http.Request) (string, bool) {
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		BadRequestError("invalid request body").Write(w)
		return "", false
	}
	return p.Get("name"), true
}
