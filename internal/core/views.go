package core

import (
	"nestcore/internal/nest"
	"nestcore/pkg/domain"
)

// SlotView is a read-only copy of one nest slot.
type SlotView struct {
	Index            int               `json:"index"`
	Item             *domain.ItemStack `json:"item,omitempty"`
	Fertile          bool              `json:"fertile"`
	ChickSpecies     domain.SpeciesID  `json:"chick_species,omitempty"`
	ParentGeneration int               `json:"parent_generation"`
}

// NestView is a detached snapshot of a loaded nest for callers outside the
// service lock.
type NestView struct {
	ID               string                 `json:"id"`
	BlockCode        string                 `json:"block_code"`
	Position         domain.BlockPos        `json:"position"`
	InventoryClass   string                 `json:"inventory_class"`
	Capacity         int                    `json:"capacity"`
	Eggs             int                    `json:"eggs"`
	Full             bool                   `json:"full"`
	Fertile          int                    `json:"fertile"`
	TimeToIncubate   float64                `json:"time_to_incubate"`
	OccupiedTimeLast float64                `json:"occupied_time_last"`
	Occupier         string                 `json:"occupier,omitempty"`
	Weighting        float64                `json:"distance_weighting"`
	Slots            []SlotView             `json:"slots"`
	Help             []nest.InteractionHelp `json:"help,omitempty"`
}

func newNestView(nb *nest.NestBox) NestView {
	v := NestView{
		ID:               nb.ID(),
		BlockCode:        nb.BlockCode(),
		Position:         nb.Pos(),
		InventoryClass:   nb.InventoryClassName(),
		Capacity:         nb.Capacity(),
		Eggs:             nb.CountOccupied(),
		Full:             nb.Full(),
		TimeToIncubate:   nb.TimeToIncubate(),
		OccupiedTimeLast: nb.OccupiedTimeLast(),
		Occupier:         nb.Occupier(),
		Weighting:        nb.DistanceWeighting(),
		Help:             nb.Help(),
	}
	for i, egg := range nb.Slots() {
		slot := SlotView{Index: i}
		if egg != nil {
			slot.Item = egg.Item
			slot.ParentGeneration = egg.ParentGeneration
			if egg.Fertile() {
				slot.Fertile = true
				slot.ChickSpecies = *egg.ChickSpecies
				v.Fertile++
			}
		}
		v.Slots = append(v.Slots, slot)
	}
	return v
}
