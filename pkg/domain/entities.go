// Package domain defines the persistent nest box records, the value types
// exchanged with world collaborators, and the rule evaluation primitives used
// by nestcore.
package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityNestBox identifies a nest box block entity record.
	EntityNestBox EntityType = "nest_box"
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Base contains common fields for all domain records.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BlockPos addresses a block in the world grid.
type BlockPos struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

// String renders the position the way audit lines and logs print it.
func (p BlockPos) String() string {
	return fmt.Sprintf("%d, %d, %d", p.X, p.Y, p.Z)
}

// ParseBlockPos parses "x,y,z"; spaces around each coordinate are allowed.
func ParseBlockPos(s string) (BlockPos, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return BlockPos{}, fmt.Errorf("block position %q: want x,y,z", s)
	}
	var coords [3]int
	for i, part := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return BlockPos{}, fmt.Errorf("block position %q: %w", s, err)
		}
		coords[i] = v
	}
	return BlockPos{X: coords[0], Y: coords[1], Z: coords[2]}, nil
}

// Center returns the world-space centre of the block.
func (p BlockPos) Center() Vec3 {
	return Vec3{X: float64(p.X) + 0.5, Y: float64(p.Y) + 0.5, Z: float64(p.Z) + 0.5}
}

// Vec3 is a world-space position or velocity.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// SpeciesID is the short-form identifier of a creature type, e.g. "game:chicken-baby".
type SpeciesID string

// ItemStack is an opaque handle to a stack of items held in a slot.
type ItemStack struct {
	Code       string `json:"code"`
	Size       int    `json:"size"`
	PlaceSound string `json:"place_sound,omitempty"`
}

// Empty reports whether the stack holds nothing.
func (s *ItemStack) Empty() bool {
	return s == nil || s.Size <= 0
}

// Clone returns a detached copy of the stack; nil stays nil.
func (s *ItemStack) Clone() *ItemStack {
	if s == nil {
		return nil
	}
	cp := *s
	return &cp
}

// Egg bundles a slot's item with its lineage metadata.
// A nil ChickSpecies marks an infertile egg.
type Egg struct {
	Item             *ItemStack `json:"item"`
	ParentGeneration int        `json:"parent_generation"`
	ChickSpecies     *SpeciesID `json:"chick_species,omitempty"`
}

// Fertile reports whether the egg will hatch once incubated.
func (e *Egg) Fertile() bool {
	return e != nil && e.ChickSpecies != nil && *e.ChickSpecies != ""
}

// Clone deep-copies the egg.
func (e *Egg) Clone() *Egg {
	if e == nil {
		return nil
	}
	cp := Egg{Item: e.Item.Clone(), ParentGeneration: e.ParentGeneration}
	if e.ChickSpecies != nil {
		sp := *e.ChickSpecies
		cp.ChickSpecies = &sp
	}
	return &cp
}

// Creature is a live world actor (a hen, a chick) as seen by the nest.
type Creature struct {
	ID         string    `json:"id"`
	Code       string    `json:"code"`
	Generation int       `json:"generation"`
	Position   Vec3      `json:"position"`
	Alive      bool      `json:"alive"`
	Origin     string    `json:"origin,omitempty"`
	Motion     Vec3      `json:"motion"`
	Yaw        float64   `json:"yaw"`
	SpawnedAt  time.Time `json:"spawned_at,omitempty"`
}

// ItemSlot is a single inventory slot; the player's active hotbar slot is one.
type ItemSlot struct {
	Stack *ItemStack `json:"stack,omitempty"`
}

// Empty reports whether the slot holds nothing.
func (s *ItemSlot) Empty() bool {
	return s == nil || s.Stack.Empty()
}

// TakeOut removes up to n items from the slot and returns them as a new stack.
func (s *ItemSlot) TakeOut(n int) *ItemStack {
	if s.Empty() || n <= 0 {
		return nil
	}
	if n > s.Stack.Size {
		n = s.Stack.Size
	}
	out := s.Stack.Clone()
	out.Size = n
	s.Stack.Size -= n
	if s.Stack.Size <= 0 {
		s.Stack = nil
	}
	return out
}

// Player identifies the actor driving an interaction.
type Player struct {
	Name       string    `json:"name"`
	EntityID   string    `json:"entity_id"`
	ActiveSlot *ItemSlot `json:"active_slot,omitempty"`
}

// BlockSelection is the block a player is pointing at.
type BlockSelection struct {
	Position BlockPos `json:"position"`
}

// NestBoxRecord is the persisted form of a nest box block entity. State holds
// the flat attribute layout written by the nest codec.
type NestBoxRecord struct {
	Base
	BlockCode string        `json:"block_code"`
	Position  BlockPos      `json:"position"`
	State     AttributeTree `json:"state"`
}

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported CRUD operations captured in audit trail.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	return "transaction blocked by rules"
}

// AuditRecord is a structured "who did what, to which item, where" entry.
type AuditRecord struct {
	ID         string    `json:"id"`
	Actor      string    `json:"actor"`
	Action     string    `json:"action"`
	ItemCode   string    `json:"item"`
	Quantity   int       `json:"quantity"`
	Target     string    `json:"target"`
	NestID     string    `json:"nest_id,omitempty"`
	Position   BlockPos  `json:"position"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Audit actions emitted by nest boxes.
const (
	AuditDeposit = "deposit"
	AuditCollect = "collect"
	AuditHatch   = "hatch"
)
