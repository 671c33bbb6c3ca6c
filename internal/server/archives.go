package server

import (
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"

	"nestcore/internal/core"
)

func (s *Server) archivesEnabled(w http.ResponseWriter) bool {
	if s.deps.Archives == nil {
		s.Error(w, http.StatusNotFound, "archive storage not configured")
		return false
	}
	return true
}

func (s *Server) handleCreateArchive(w http.ResponseWriter, r *http.Request) {
	if !s.archivesEnabled(w) {
		return
	}
	obj, err := s.deps.Service.Archive(r.Context(), s.deps.Archives)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.Success(w, http.StatusCreated, obj)
}

func (s *Server) handleListArchives(w http.ResponseWriter, r *http.Request) {
	if !s.archivesEnabled(w) {
		return
	}
	objs, err := s.deps.Archives.List(r.Context(), core.ArchivePrefix)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.Success(w, http.StatusOK, objs)
}

func (s *Server) handleGetArchive(w http.ResponseWriter, r *http.Request) {
	if !s.archivesEnabled(w) {
		return
	}
	name := chi.URLParam(r, "name")
	if name == "" || strings.ContainsAny(name, "/\\") {
		s.Error(w, http.StatusBadRequest, "invalid archive name")
		return
	}
	doc, err := core.ReadArchive(r.Context(), s.deps.Archives, path.Join(core.ArchivePrefix, name))
	if err != nil {
		s.fail(w, err)
		return
	}
	s.Success(w, http.StatusOK, doc)
}
