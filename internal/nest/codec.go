package nest

import (
	"fmt"
	"strconv"

	"nestcore/internal/logfields"
	"nestcore/pkg/domain"
)

// Attribute keys of the persisted nest layout.
const (
	keyTimeToIncubate   = "inc"
	keyOccupiedTimeLast = "occ"
	keyIsOccupied       = "isOccupied"
	keyOccupier         = "occupier"
	keyInventory        = "inventory"
	keyQuantitySlots    = "qslots"
	keySlots            = "slots"
	keyGenPrefix        = "gen"
	keyChickPrefix      = "chick"
	keyItemCode         = "code"
	keyItemSize         = "size"
	keyItemPlaceSound   = "placeSound"

	// legacyMetaWidth is the minimum number of gen/chick keys written, so
	// readers expecting the fixed-width table always find every key.
	legacyMetaWidth = 10
)

// ToTree serialises the nest into the flat attribute layout.
func (n *NestBox) ToTree() domain.AttributeTree {
	t := domain.NewAttributeTree()
	t.SetDouble(keyTimeToIncubate, n.timeToIncubate)
	t.SetDouble(keyOccupiedTimeLast, n.occupiedTimeLast)
	t.SetBool(keyIsOccupied, n.occupierAlive())
	if n.occupier != "" {
		t.SetString(keyOccupier, n.occupier)
	}

	width := max(legacyMetaWidth, len(n.slots))
	for i := 0; i < width; i++ {
		var egg *domain.Egg
		if i < len(n.slots) {
			egg = n.slots[i]
		}
		gen := 0
		if egg != nil {
			gen = egg.ParentGeneration
		}
		t.SetInt(keyGenPrefix+strconv.Itoa(i), gen)
		if egg.Fertile() {
			t.SetString(keyChickPrefix+strconv.Itoa(i), string(*egg.ChickSpecies))
		}
	}

	inv := domain.NewAttributeTree()
	inv.SetInt(keyQuantitySlots, len(n.slots))
	slots := domain.NewAttributeTree()
	for i, egg := range n.slots {
		if egg == nil || egg.Item.Empty() {
			continue
		}
		item := domain.NewAttributeTree()
		item.SetString(keyItemCode, egg.Item.Code)
		item.SetInt(keyItemSize, egg.Item.Size)
		if egg.Item.PlaceSound != "" {
			item.SetString(keyItemPlaceSound, egg.Item.PlaceSound)
		}
		slots.SetTree(strconv.Itoa(i), item)
	}
	inv.SetTree(keySlots, slots)
	t.SetTree(keyInventory, inv)
	return t
}

// FromTree restores state written by ToTree. The slot array takes the
// persisted qslots size; Initialize reconciles it against configuration.
func (n *NestBox) FromTree(t domain.AttributeTree) error {
	if t == nil {
		return fmt.Errorf("nest %s: empty state", n.id)
	}
	inc := t.GetDouble(keyTimeToIncubate)
	if inc < 0 {
		n.deps.Logger.Warn("negative incubation time in saved state, clamped", logfields.NestID(n.id), "inc", inc)
		inc = 0
		n.markDirty()
	}
	n.timeToIncubate = inc
	n.occupiedTimeLast = t.GetDouble(keyOccupiedTimeLast)
	n.occupiedClientside = t.GetBool(keyIsOccupied)
	n.occupier, _ = t.GetString(keyOccupier)

	inv, ok := t.GetTree(keyInventory)
	if !ok {
		return fmt.Errorf("nest %s: missing %s subtree", n.id, keyInventory)
	}
	qslots := inv.GetInt(keyQuantitySlots)
	if qslots <= 0 {
		return fmt.Errorf("nest %s: invalid %s %d", n.id, keyQuantitySlots, qslots)
	}
	slots := make([]*domain.Egg, qslots)
	stored, _ := inv.GetTree(keySlots)
	for _, key := range stored.Keys() {
		idx, err := strconv.Atoi(key)
		if err != nil || idx < 0 || idx >= qslots {
			n.deps.Logger.Warn("ignoring saved slot outside inventory", logfields.NestID(n.id), "slot", key, "qslots", qslots)
			continue
		}
		item, ok := stored.GetTree(key)
		if !ok {
			continue
		}
		code, _ := item.GetString(keyItemCode)
		size := item.GetInt(keyItemSize)
		if code == "" || size <= 0 {
			continue
		}
		sound, _ := item.GetString(keyItemPlaceSound)
		egg := &domain.Egg{
			Item:             &domain.ItemStack{Code: code, Size: size, PlaceSound: sound},
			ParentGeneration: t.GetInt(keyGenPrefix + key),
		}
		if chick, ok := t.GetString(keyChickPrefix + key); ok && chick != "" {
			sp := domain.SpeciesID(chick)
			egg.ChickSpecies = &sp
		}
		slots[idx] = egg
	}
	n.slots = slots
	return nil
}

// StateStats summarises a persisted layout without building a NestBox.
type StateStats struct {
	Capacity       int
	Occupied       int
	Fertile        int
	TimeToIncubate float64
	Occupier       string
}

// InspectState reads the counters rules and tooling care about. Every stored
// slot entry with a non-empty item counts as occupied, even one whose index
// lies outside the declared capacity.
func InspectState(t domain.AttributeTree) StateStats {
	stats := StateStats{TimeToIncubate: t.GetDouble(keyTimeToIncubate)}
	stats.Occupier, _ = t.GetString(keyOccupier)
	inv, ok := t.GetTree(keyInventory)
	if !ok {
		return stats
	}
	stats.Capacity = inv.GetInt(keyQuantitySlots)
	stored, _ := inv.GetTree(keySlots)
	for _, key := range stored.Keys() {
		item, ok := stored.GetTree(key)
		if !ok {
			continue
		}
		if code, _ := item.GetString(keyItemCode); code == "" || item.GetInt(keyItemSize) <= 0 {
			continue
		}
		stats.Occupied++
		if chick, ok := t.GetString(keyChickPrefix + key); ok && chick != "" {
			stats.Fertile++
		}
	}
	return stats
}
