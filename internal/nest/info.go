package nest

import (
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// HelpCollectEggs is the interaction help code shown while a nest holds eggs.
const HelpCollectEggs = "blockhelp-collect-eggs"

// InteractionHelp describes one available interaction on a placed block.
type InteractionHelp struct {
	ActionCode  string `json:"action_code"`
	MouseButton string `json:"mouse_button"`
}

// Help lists the interactions a player can perform on this nest right now.
func (n *NestBox) Help() []InteractionHelp {
	if n.CountOccupied() == 0 {
		return nil
	}
	return []InteractionHelp{{ActionCode: HelpCollectEggs, MouseButton: "right"}}
}

// BlockInfo renders the hover text lines for a nest in the given language.
func (n *NestBox) BlockInfo(tag language.Tag) []string {
	p := message.NewPrinter(tag)
	eggs := n.CountOccupied()
	fertile := 0
	for _, egg := range n.slots {
		if egg != nil && !egg.Item.Empty() && egg.Fertile() {
			fertile++
		}
	}

	var lines []string
	switch {
	case fertile > 1:
		lines = append(lines, p.Sprintf("%d fertile eggs", fertile))
	case fertile == 1:
		lines = append(lines, p.Sprintf("1 fertile egg"))
	case eggs > 0:
		return append(lines, p.Sprintf("No eggs are fertilized"))
	default:
		return nil
	}

	switch remaining := n.timeToIncubate; {
	case remaining >= 1.5:
		lines = append(lines, p.Sprintf("Incubation time remaining: %d days", int(math.Round(remaining))))
	case remaining >= 0.75:
		lines = append(lines, p.Sprintf("Incubation time remaining: 1 day"))
	case remaining > 0:
		lines = append(lines, p.Sprintf("Incubation time remaining: %d hours", int(math.Round(remaining*24))))
	}
	if !n.occupiedClientside && eggs >= len(n.slots) {
		lines = append(lines, p.Sprintf("A broody hen is needed!"))
	}
	return lines
}

// SyncClientside refreshes the cached display flag from the authoritative
// occupier liveness.
func (n *NestBox) SyncClientside() {
	n.occupiedClientside = n.occupierAlive()
}
