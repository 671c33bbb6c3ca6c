package world

import (
	"log/slog"
	"sync"

	"nestcore/internal/logfields"
	"nestcore/pkg/domain"
)

// PlayedSound is one entry of the sound log.
type PlayedSound struct {
	Sound  string
	At     domain.Vec3
	Player string
}

// Sounds records positional sounds and logs them at debug level. A
// headless server has nobody to play them to.
type Sounds struct {
	Logger *slog.Logger

	mu     sync.Mutex
	played []PlayedSound
}

// PlaySound implements nest.SoundPlayer.
func (s *Sounds) PlaySound(sound string, at domain.Vec3, player *domain.Player) {
	entry := PlayedSound{Sound: sound, At: at}
	if player != nil {
		entry.Player = player.Name
	}
	s.mu.Lock()
	s.played = append(s.played, entry)
	s.mu.Unlock()
	if s.Logger != nil {
		s.Logger.Debug("sound played", slog.String("sound", sound), logfields.Player(entry.Player))
	}
}

// Played returns a copy of the sound log.
func (s *Sounds) Played() []PlayedSound {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]PlayedSound(nil), s.played...)
}

// Animations counts use animations per player.
type Animations struct {
	mu     sync.Mutex
	counts map[string]int
}

// TriggerUseAnimation implements nest.Animator.
func (a *Animations) TriggerUseAnimation(player domain.Player) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.counts == nil {
		a.counts = make(map[string]int)
	}
	a.counts[player.Name]++
}

// Count returns how many animations a player triggered.
func (a *Animations) Count(player string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.counts[player]
}
