// Package logfields holds the canonical slog attribute keys shared by every
// nestcore package.
package logfields

import (
	"log/slog"

	"nestcore/pkg/domain"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyNestID     = "nest_id"
	KeyBlock      = "block"
	KeyPosition   = "position"
	KeySlot       = "slot"
	KeySpecies    = "species"
	KeyPlayer     = "player"
	KeyItem       = "item"
	KeyQuantity   = "quantity"
	KeyOperation  = "operation"
	KeyDurationMS = "duration_ms"
	KeyDriver     = "driver"
	KeyPath       = "path"
	KeySubject    = "subject"
	KeyKey        = "key"
	KeyMethod     = "method"
	KeyStatus     = "status"
	KeyRequestID  = "request_id"
	KeyError      = "error"
)

func NestID(id string) slog.Attr           { return slog.String(KeyNestID, id) }
func Block(code string) slog.Attr          { return slog.String(KeyBlock, code) }
func Position(p domain.BlockPos) slog.Attr { return slog.String(KeyPosition, p.String()) }
func Slot(i int) slog.Attr                 { return slog.Int(KeySlot, i) }
func Species(s domain.SpeciesID) slog.Attr { return slog.String(KeySpecies, string(s)) }
func Player(name string) slog.Attr         { return slog.String(KeyPlayer, name) }
func Item(code string) slog.Attr           { return slog.String(KeyItem, code) }
func Quantity(n int) slog.Attr             { return slog.Int(KeyQuantity, n) }
func Operation(op string) slog.Attr        { return slog.String(KeyOperation, op) }
func DurationMS(ms float64) slog.Attr      { return slog.Float64(KeyDurationMS, ms) }
func Driver(name string) slog.Attr         { return slog.String(KeyDriver, name) }
func Path(p string) slog.Attr              { return slog.String(KeyPath, p) }
func Subject(s string) slog.Attr           { return slog.String(KeySubject, s) }
func Key(k string) slog.Attr               { return slog.String(KeyKey, k) }
func Method(m string) slog.Attr            { return slog.String(KeyMethod, m) }
func Status(code int) slog.Attr            { return slog.Int(KeyStatus, code) }
func RequestID(id string) slog.Attr        { return slog.String(KeyRequestID, id) }

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
