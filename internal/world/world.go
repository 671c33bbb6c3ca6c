package world

import (
	"log/slog"
	"math/rand/v2"
	"time"

	"nestcore/internal/nest"
)

// Options configures a World.
type Options struct {
	StartDay      float64
	DaysPerSecond float64
	StackLimit    int
	Species       map[string]Species
	Items         map[string]Item
	Logger        *slog.Logger
	Now           func() time.Time
	// Seed fixes the random source; zero seeds from the runtime.
	Seed uint64
}

// World bundles one instance of every collaborator.
type World struct {
	Calendar    *Calendar
	Actors      *Actors
	Claims      *Claims
	Inventories *Inventories
	Catalog     *Catalog
	Spawner     *Spawner
	POIs        *POIs
	Sounds      *Sounds
	Animations  *Animations

	rand *rand.Rand
	now  func() time.Time
}

// New assembles a world.
func New(opts Options) *World {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	seed := opts.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	w := &World{
		Calendar:    NewCalendar(opts.StartDay, opts.DaysPerSecond, now),
		Actors:      NewActors(),
		Claims:      NewClaims(),
		Inventories: NewInventories(opts.StackLimit),
		Catalog:     NewCatalog(opts.Species, opts.Items),
		POIs:        NewPOIs(),
		Sounds:      &Sounds{Logger: opts.Logger},
		Animations:  &Animations{},
		rand:        rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		now:         now,
	}
	w.Spawner = &Spawner{Catalog: w.Catalog, Actors: w.Actors, Now: now}
	return w
}

// Deps wires the world into nest dependencies. Audit and Scheduler come
// from outside the world.
func (w *World) Deps(audit nest.AuditSink, scheduler nest.Scheduler, logger nest.Logger) nest.Deps {
	return nest.Deps{
		Calendar:  w.Calendar,
		Actors:    w.Actors,
		Access:    w.Claims,
		Eggs:      w.Catalog,
		Spawner:   w.Spawner,
		Giver:     nest.LegacyGiver{Inner: w.Inventories},
		Audit:     audit,
		Sounds:    w.Sounds,
		POI:       w.POIs,
		Scheduler: scheduler,
		Animator:  w.Animations,
		Rand:      w.rand,
		Logger:    logger,
		Now:       func() time.Time { return w.now().UTC() },
	}
}
