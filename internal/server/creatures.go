package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"nestcore/pkg/domain"
)

// CreatureRequest adds a live creature to the world.
type CreatureRequest struct {
	ID         string      `json:"id,omitempty"`
	Code       string      `json:"code"`
	Generation int         `json:"generation"`
	Position   domain.Vec3 `json:"position"`
}

func (s *Server) handleListCreatures(w http.ResponseWriter, _ *http.Request) {
	if s.deps.Creatures == nil {
		s.Success(w, http.StatusOK, []domain.Creature{})
		return
	}
	s.Success(w, http.StatusOK, s.deps.Creatures.List())
}

func (s *Server) handleAddCreature(w http.ResponseWriter, r *http.Request) {
	if s.deps.Creatures == nil {
		s.Error(w, http.StatusNotImplemented, "creature registry not configured")
		return
	}
	var req CreatureRequest
	if err := decode(r, &req); err != nil {
		s.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	code := strings.TrimSpace(req.Code)
	if code == "" {
		s.Error(w, http.StatusBadRequest, "creature code is required")
		return
	}
	if req.Generation < 0 {
		s.Error(w, http.StatusBadRequest, "generation must not be negative")
		return
	}
	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	if _, exists := s.deps.Creatures.Get(id); exists {
		s.Error(w, http.StatusConflict, fmt.Sprintf("creature %s already exists", id))
		return
	}
	c := domain.Creature{
		ID:         id,
		Code:       code,
		Generation: req.Generation,
		Position:   req.Position,
		Alive:      true,
		Origin:     "admin",
		SpawnedAt:  time.Now().UTC(),
	}
	s.deps.Creatures.Add(c)
	s.Success(w, http.StatusCreated, c)
}

func (s *Server) handleKillCreature(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if s.deps.Creatures == nil || !s.deps.Creatures.Kill(id) {
		s.Error(w, http.StatusNotFound, fmt.Sprintf("creature %s not found", id))
		return
	}
	c, _ := s.deps.Creatures.Get(id)
	s.Success(w, http.StatusOK, c)
}
