package nest

import (
	"context"
	"time"

	"nestcore/pkg/domain"
)

// Logger is satisfied by *slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Calendar samples the simulated world clock.
type Calendar interface {
	// TotalDays is monotonic within a session.
	TotalDays() float64
}

// ActorRegistry answers liveness for non-owning actor references.
type ActorRegistry interface {
	Alive(id string) bool
}

// AccessAction names the kind of access a player asks for.
type AccessAction string

// AccessUse is the only action nest interaction requires.
const AccessUse AccessAction = "use"

// AccessChecker is the claims/permission gate.
type AccessChecker interface {
	TryAccess(player domain.Player, pos domain.BlockPos, action AccessAction) bool
}

// ItemSpec is a resolved item definition.
type ItemSpec struct {
	Code       string
	PlaceSound string
}

// EggCatalog resolves the egg items a laying creature produces.
type EggCatalog interface {
	// EggVariants returns the configured egg table for a creature code;
	// ok is false when the creature has no table.
	EggVariants(creatureCode string) (variants []ItemSpec, ok bool)
	// ResolveItem looks up an item definition by code.
	ResolveItem(code string) (ItemSpec, bool)
}

// Offspring describes a creature to insert into the world.
type Offspring struct {
	Species    domain.SpeciesID
	Position   domain.Vec3
	Yaw        float64
	Motion     domain.Vec3
	Origin     string
	Generation int
}

// Spawner is the world entity-creation sink.
type Spawner interface {
	// KnowsSpecies reports whether the species resolves to a creature type.
	KnowsSpecies(species domain.SpeciesID) bool
	Spawn(ctx context.Context, o Offspring) (domain.Creature, error)
}

// ItemGiver is the legacy give-item collaborator. On partial or full
// acceptance it decrements stack.Size to the unaccepted remainder; on
// rejection it may zero stack.Size anyway.
type ItemGiver interface {
	TryGiveItemstack(player domain.Player, stack *domain.ItemStack) bool
}

// GiveResult is the outcome of offering a stack to a player.
type GiveResult struct {
	Accepted  bool
	Remainder domain.ItemStack
}

// Giver offers a stack to a player without touching the caller's copy.
type Giver interface {
	Give(player domain.Player, stack domain.ItemStack) GiveResult
}

// AuditSink receives structured audit records. Errors are logged and dropped.
type AuditSink interface {
	Audit(ctx context.Context, record domain.AuditRecord) error
}

// SoundPlayer plays a positional sound.
type SoundPlayer interface {
	PlaySound(sound string, at domain.Vec3, player *domain.Player)
}

// POI is a point of interest actor AI can query.
type POI interface {
	Position() domain.Vec3
	Type() string
}

// POIRegistry tracks points of interest.
type POIRegistry interface {
	AddPOI(poi POI)
	RemovePOI(poi POI)
}

// Subscription is a lifecycle-bound periodic callback registration.
type Subscription interface {
	Cancel() error
}

// Scheduler hands out periodic tick subscriptions.
type Scheduler interface {
	Subscribe(name string, interval time.Duration, fn func()) (Subscription, error)
}

// Animator drives cosmetic first-person animations on the interacting player.
type Animator interface {
	TriggerUseAnimation(player domain.Player)
}

// Rand is the random source; *math/rand/v2.Rand satisfies it.
type Rand interface {
	Float64() float64
	IntN(n int) int
}

// Deps bundles the collaborators a nest box talks to. Nil members fall back
// to inert implementations, except Calendar which is required for ticking.
type Deps struct {
	Calendar  Calendar
	Actors    ActorRegistry
	Access    AccessChecker
	Eggs      EggCatalog
	Spawner   Spawner
	Giver     Giver
	Audit     AuditSink
	Sounds    SoundPlayer
	POI       POIRegistry
	Scheduler Scheduler
	Animator  Animator
	Rand      Rand
	Logger    Logger
	Now       func() time.Time
	// TickInterval overrides the default incubation tick period.
	TickInterval time.Duration
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = noopLogger{}
	}
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}
	if d.TickInterval <= 0 {
		d.TickInterval = TickInterval
	}
	if d.Rand == nil {
		d.Rand = defaultRand{}
	}
	return d
}
