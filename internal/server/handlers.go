package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"golang.org/x/text/language"

	"nestcore/internal/core"
	"nestcore/internal/logfields"
	"nestcore/internal/nest"
	"nestcore/pkg/domain"
)

// PlaceRequest places a nest block.
type PlaceRequest struct {
	Block    string          `json:"block"`
	Position domain.BlockPos `json:"position"`
}

// InteractRequest is a player's click on a nest block.
type InteractRequest struct {
	Player string            `json:"player"`
	Held   *domain.ItemStack `json:"held,omitempty"`
}

// InteractResponse reports what the click did and what the player still holds.
type InteractResponse struct {
	nest.InteractResult
	Held *domain.ItemStack `json:"held,omitempty"`
	// Warning is set when the interaction happened but saving it failed.
	Warning string `json:"warning,omitempty"`
}

// LayRequest lays an egg on behalf of a live creature. Without an explicit
// incubation time the creature's profile is used.
type LayRequest struct {
	CreatureID     string  `json:"creature_id"`
	Fertile        bool    `json:"fertile"`
	IncubationDays float64 `json:"incubation_days,omitempty"`
}

// LayResponse reports whether an egg went in.
type LayResponse struct {
	Added bool          `json:"added"`
	Nest  core.NestView `json:"nest"`
}

// OccupierRequest sets or clears the brooding creature.
type OccupierRequest struct {
	CreatureID string `json:"creature_id"`
}

// DescribeResponse is a nest with its hover text.
type DescribeResponse struct {
	Nest core.NestView `json:"nest"`
	Info []string      `json:"info"`
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func positionParam(r *http.Request) (domain.BlockPos, error) {
	var coords [3]int
	for i, name := range []string{"x", "y", "z"} {
		v, err := strconv.Atoi(chi.URLParam(r, name))
		if err != nil {
			return domain.BlockPos{}, fmt.Errorf("invalid %s coordinate", name)
		}
		coords[i] = v
	}
	return domain.BlockPos{X: coords[0], Y: coords[1], Z: coords[2]}, nil
}

func (s *Server) withPosition(w http.ResponseWriter, r *http.Request) (domain.BlockPos, bool) {
	pos, err := positionParam(r)
	if err != nil {
		s.Error(w, http.StatusBadRequest, err.Error())
		return pos, false
	}
	return pos, true
}

func (s *Server) handleListNests(w http.ResponseWriter, _ *http.Request) {
	s.Success(w, http.StatusOK, s.deps.Service.Nests())
}

func (s *Server) handlePlaceNest(w http.ResponseWriter, r *http.Request) {
	var req PlaceRequest
	if err := decode(r, &req); err != nil {
		s.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	view, err := s.deps.Service.PlaceNestBox(r.Context(), req.Block, req.Position)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.Success(w, http.StatusCreated, view)
}

func (s *Server) handleLoadNests(w http.ResponseWriter, r *http.Request) {
	n, err := s.deps.Service.LoadNestBoxes(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	s.Success(w, http.StatusOK, map[string]int{"loaded": n})
}

func (s *Server) handleGetNest(w http.ResponseWriter, r *http.Request) {
	pos, ok := s.withPosition(w, r)
	if !ok {
		return
	}
	tag := language.English
	if lang := r.URL.Query().Get("lang"); lang != "" {
		if parsed, err := language.Parse(lang); err == nil {
			tag = parsed
		}
	}
	view, info, err := s.deps.Service.Describe(pos, tag)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.Success(w, http.StatusOK, DescribeResponse{Nest: view, Info: info})
}

func (s *Server) handleRemoveNest(w http.ResponseWriter, r *http.Request) {
	pos, ok := s.withPosition(w, r)
	if !ok {
		return
	}
	if err := s.deps.Service.RemoveNestBox(r.Context(), pos); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUnloadNest(w http.ResponseWriter, r *http.Request) {
	pos, ok := s.withPosition(w, r)
	if !ok {
		return
	}
	if err := s.deps.Service.UnloadNestBox(r.Context(), pos); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleInteract(w http.ResponseWriter, r *http.Request) {
	pos, ok := s.withPosition(w, r)
	if !ok {
		return
	}
	var req InteractRequest
	if err := decode(r, &req); err != nil {
		s.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Player) == "" {
		s.Error(w, http.StatusBadRequest, "player is required")
		return
	}
	player := domain.Player{Name: req.Player, ActiveSlot: &domain.ItemSlot{Stack: req.Held.Clone()}}
	res, err := s.deps.Service.Interact(r.Context(), player, domain.BlockSelection{Position: pos})
	out := InteractResponse{InteractResult: res, Held: player.ActiveSlot.Stack}
	switch {
	case errors.Is(err, core.ErrPersist):
		// Items already moved; the nest stays dirty and is saved on the next write.
		s.logger.Warn("interaction not saved", logfields.Position(pos), logfields.Error(err))
		out.Warning = err.Error()
	case err != nil:
		s.fail(w, err)
		return
	}
	s.Success(w, http.StatusOK, out)
}

func (s *Server) handleLayEgg(w http.ResponseWriter, r *http.Request) {
	pos, ok := s.withPosition(w, r)
	if !ok {
		return
	}
	var req LayRequest
	if err := decode(r, &req); err != nil {
		s.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	creature, ok := s.creature(req.CreatureID)
	if !ok {
		s.Error(w, http.StatusNotFound, fmt.Sprintf("creature %s not found", req.CreatureID))
		return
	}
	days := req.IncubationDays
	var chick *domain.SpeciesID
	if s.deps.Profiles != nil {
		if profile, ok := s.deps.Profiles.Species(creature.Code); ok {
			if days <= 0 {
				days = profile.IncubationDays
			}
			if req.Fertile && profile.Chick != "" {
				sp := profile.Chick
				chick = &sp
			}
		}
	}
	added, err := s.deps.Service.LayEgg(r.Context(), pos, creature, chick, days)
	if err != nil {
		s.fail(w, err)
		return
	}
	view, _ := s.deps.Service.Nest(pos)
	s.Success(w, http.StatusOK, LayResponse{Added: added, Nest: view})
}

func (s *Server) handleSetOccupier(w http.ResponseWriter, r *http.Request) {
	pos, ok := s.withPosition(w, r)
	if !ok {
		return
	}
	var req OccupierRequest
	if err := decode(r, &req); err != nil {
		s.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.deps.Service.SetOccupier(r.Context(), pos, req.CreatureID); err != nil {
		s.fail(w, err)
		return
	}
	view, _ := s.deps.Service.Nest(pos)
	s.Success(w, http.StatusOK, view)
}

func (s *Server) handleClaimNest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	creature, ok := s.creature(id)
	if !ok {
		s.Error(w, http.StatusNotFound, fmt.Sprintf("creature %s not found", id))
		return
	}
	view, claimed, err := s.deps.Service.ClaimNest(r.Context(), creature)
	if err != nil {
		s.fail(w, err)
		return
	}
	if !claimed {
		s.Error(w, http.StatusNotFound, "no suitable nest")
		return
	}
	s.Success(w, http.StatusOK, view)
}

func (s *Server) creature(id string) (domain.Creature, bool) {
	if s.deps.Creatures == nil || id == "" {
		return domain.Creature{}, false
	}
	return s.deps.Creatures.Get(id)
}

func (s *Server) handleTick(w http.ResponseWriter, r *http.Request) {
	sum, err := s.deps.Service.Tick(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	s.Success(w, http.StatusOK, sum)
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	if s.deps.Audit == nil {
		s.Error(w, http.StatusNotFound, "audit log not enabled")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	s.Success(w, http.StatusOK, s.deps.Audit.Recent(limit))
}
