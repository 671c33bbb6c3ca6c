// Package nest implements the nest box block entity: a fixed-capacity egg
// container, a shared incubation countdown gated on a live occupier, the
// hatch-and-spawn transition, and the player deposit/collect protocol.
//
// A NestBox is not safe for concurrent use. The owning service serialises
// ticks and interactions on one logical thread.
package nest

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"time"

	"nestcore/internal/logfields"
	"nestcore/pkg/domain"
)

const (
	// TickInterval is the real-time period of the incubation tick.
	TickInterval = 1500 * time.Millisecond
	// DefaultInventoryClassName is used when the block config names none.
	DefaultInventoryClassName = "nestbox"
	// DefaultEggItem is deposited when a creature's egg table cannot be used.
	DefaultEggItem = "game:egg-chicken-raw"
	// DefaultPlaceSound plays when a deposited item defines no place sound.
	DefaultPlaceSound = "sounds/player/build"
	// CollectSound plays once per interaction that collected anything.
	CollectSound = "sounds/player/collect"
	// POIType is the point-of-interest type nest boxes register under.
	POIType = "nest"
	// OriginReproduction tags creatures hatched from eggs.
	OriginReproduction = "reproduction"

	defaultOccupier = "chicken-hen"
)

// ErrCapacity is returned when a nest is configured with a non-positive capacity.
var ErrCapacity = errors.New("nest capacity must be positive")

// BlockConfig is the static configuration of the block that owns the nest.
type BlockConfig struct {
	Code               string
	QuantitySlots      int
	InventoryClassName string
	// Accepts limits which held items a player may deposit; empty accepts anything.
	Accepts []string
	// SuitableOccupiers lists creature codes allowed to brood; empty means chicken-hen.
	SuitableOccupiers []string
}

// NestBox is the aggregate root: slots, the shared timer, and the occupier.
type NestBox struct {
	id    string
	block BlockConfig
	pos   domain.BlockPos
	deps  Deps

	slots              []*domain.Egg
	timeToIncubate     float64
	occupiedTimeLast   float64
	occupier           string
	occupiedClientside bool
	dirty              bool

	tick Subscription
}

// New constructs an uninitialised nest box. Call Initialize (after an
// optional FromTree) before use.
func New(id string, block BlockConfig, pos domain.BlockPos, deps Deps) *NestBox {
	return &NestBox{
		id:    id,
		block: block,
		pos:   pos,
		deps:  deps.withDefaults(),
	}
}

// ID returns the nest's record identifier.
func (n *NestBox) ID() string { return n.id }

// BlockCode returns the owning block's code.
func (n *NestBox) BlockCode() string { return n.block.Code }

// Pos returns the block position.
func (n *NestBox) Pos() domain.BlockPos { return n.pos }

// Position implements POI: the block centre.
func (n *NestBox) Position() domain.Vec3 { return n.pos.Center() }

// Type implements POI.
func (n *NestBox) Type() string { return POIType }

// InventoryClassName returns the configured inventory class.
func (n *NestBox) InventoryClassName() string {
	if n.block.InventoryClassName != "" {
		return n.block.InventoryClassName
	}
	return DefaultInventoryClassName
}

// Capacity is the number of slots, or the configured capacity before the
// slot array exists.
func (n *NestBox) Capacity() int {
	if n.slots != nil {
		return len(n.slots)
	}
	return n.configuredCapacity()
}

func (n *NestBox) configuredCapacity() int {
	if n.block.QuantitySlots <= 0 {
		return 1
	}
	return n.block.QuantitySlots
}

// TimeToIncubate is the remaining countdown in calendar days; 0 means idle.
func (n *NestBox) TimeToIncubate() float64 { return n.timeToIncubate }

// OccupiedTimeLast is the calendar day of the last accrual tick.
func (n *NestBox) OccupiedTimeLast() float64 { return n.occupiedTimeLast }

// Occupier returns the id of the creature currently credited with brooding.
func (n *NestBox) Occupier() string { return n.occupier }

// OccupiedClientside is the cached display flag from the last sync.
func (n *NestBox) OccupiedClientside() bool { return n.occupiedClientside }

// Dirty reports unsaved changes.
func (n *NestBox) Dirty() bool { return n.dirty }

// ClearDirty is called after the state has been persisted.
func (n *NestBox) ClearDirty() { n.dirty = false }

func (n *NestBox) markDirty() { n.dirty = true }

// Slots returns detached copies of the slot contents; empty slots are nil.
func (n *NestBox) Slots() []*domain.Egg {
	out := make([]*domain.Egg, len(n.slots))
	for i, egg := range n.slots {
		out[i] = egg.Clone()
	}
	return out
}

// Initialize resolves the capacity from block configuration, reconciling a
// reloaded slot array of a different size, then registers the nest as a POI
// and subscribes its incubation tick.
func (n *NestBox) Initialize() error {
	capacity := n.configuredCapacity()
	if n.slots == nil {
		n.slots = make([]*domain.Egg, capacity)
	} else if capacity != len(n.slots) {
		n.deps.Logger.Warn("nest loaded with wrong capacity",
			logfields.NestID(n.id), "block", n.block.Code, "loaded", len(n.slots), "configured", capacity)
		if err := n.Resize(capacity); err != nil {
			return err
		}
	}
	if n.deps.POI != nil {
		n.deps.POI.AddPOI(n)
	}
	n.occupiedClientside = false
	if n.deps.Scheduler != nil && n.tick == nil {
		sub, err := n.deps.Scheduler.Subscribe(fmt.Sprintf("nest-%s", n.id), n.deps.TickInterval, func() { n.Tick(context.Background()) })
		if err != nil {
			return fmt.Errorf("subscribe nest tick: %w", err)
		}
		n.tick = sub
	}
	return nil
}

// OnRemoved is called when the owning block is broken.
func (n *NestBox) OnRemoved() { n.teardown() }

// OnUnloaded is called when the owning chunk unloads.
func (n *NestBox) OnUnloaded() { n.teardown() }

func (n *NestBox) teardown() {
	if n.deps.POI != nil {
		n.deps.POI.RemovePOI(n)
	}
	n.releaseTick()
}

func (n *NestBox) releaseTick() {
	if n.tick == nil {
		return
	}
	if err := n.tick.Cancel(); err != nil {
		n.deps.Logger.Warn("cancel nest tick", logfields.NestID(n.id), logfields.Error(err))
	}
	n.tick = nil
}

// IsSuitableFor reports whether the creature may brood here.
func (n *NestBox) IsSuitableFor(c domain.Creature) bool {
	if len(n.block.SuitableOccupiers) == 0 {
		return c.Code == defaultOccupier
	}
	return slices.Contains(n.block.SuitableOccupiers, c.Code)
}

// Occupied reports whether some creature other than by is sitting here.
func (n *NestBox) Occupied(by string) bool {
	return n.occupier != "" && n.occupier != by
}

// SetOccupier credits a creature with brooding; "" clears it.
func (n *NestBox) SetOccupier(id string) {
	if n.occupier == id {
		return
	}
	n.occupier = id
	n.markDirty()
}

func (n *NestBox) occupierAlive() bool {
	if n.occupier == "" || n.deps.Actors == nil {
		return false
	}
	return n.deps.Actors.Alive(n.occupier)
}

// DistanceWeighting biases creature AI towards emptier nests.
func (n *NestBox) DistanceWeighting() float64 {
	return 2.0 / float64(n.CountOccupied()+2)
}

type defaultRand struct{}

func (defaultRand) Float64() float64 { return rand.Float64() }
func (defaultRand) IntN(n int) int   { return rand.IntN(n) }
