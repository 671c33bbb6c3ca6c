package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"nestcore/internal/audit"
	"nestcore/internal/blob"
	"nestcore/internal/core"
	"nestcore/internal/infra/persistence/memory"
	"nestcore/internal/nest"
	"nestcore/internal/world"
	"nestcore/pkg/domain"
)

const eggItem = "game:egg-chicken-raw"

type harness struct {
	srv   *Server
	world *world.World
	ring  *audit.Ring
	store *brokenDisk
}

// brokenDisk fails every commit while down is set.
type brokenDisk struct {
	*memory.Store
	down bool
}

func (b *brokenDisk) RunInTransaction(ctx context.Context, fn func(domain.Transaction) error) (domain.Result, error) {
	if b.down {
		return domain.Result{}, errors.New("disk full")
	}
	return b.Store.RunInTransaction(ctx, fn)
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	w := world.New(world.Options{
		StartDay: 1,
		Seed:     9,
		Species: map[string]world.Species{
			"chicken-hen": {EggTypes: []string{eggItem}, Chick: "game:chicken-baby", IncubationDays: 4},
		},
		Items: map[string]world.Item{eggItem: {}},
	})
	ring := audit.NewRing(16)
	store := &brokenDisk{Store: memory.NewStore(core.NewDefaultRulesEngine())}
	svc := core.NewService(
		store,
		w.Deps(ring, nil, nil),
		core.WithBlocks(nest.BlockConfig{Code: "henbox", QuantitySlots: 2}),
	)
	archives, err := blob.Open(context.Background(), blob.Config{Driver: blob.DriverMemory})
	require.NoError(t, err)
	srv := New(":0", Deps{
		Service:   svc,
		Creatures: w.Actors,
		Profiles:  w.Catalog,
		Archives:  archives,
		Audit:     ring,
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("nestcore_ticks_total 0\n"))
		}),
	})
	return &harness{srv: srv, world: w, ring: ring, store: store}
}

func (h *harness) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(rec, req)
	var resp Response
	if rec.Body.Len() > 0 && rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func decodeData[T any](t *testing.T, resp Response) T {
	t.Helper()
	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var out T
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestHealth(t *testing.T) {
	h := newHarness(t)
	rec, resp := h.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, resp.Success)
}

func TestNestLifecycleOverHTTP(t *testing.T) {
	h := newHarness(t)
	rec, resp := h.do(t, http.MethodPost, "/nests", PlaceRequest{Block: "henbox", Position: domain.BlockPos{X: -3, Y: 64, Z: 5}})
	require.Equal(t, http.StatusCreated, rec.Code, resp.Error)
	placed := decodeData[core.NestView](t, resp)
	require.Equal(t, 2, placed.Capacity)

	h.world.Actors.Add(domain.Creature{ID: "hen-1", Code: "chicken-hen", Generation: 1})
	for i := 0; i < 2; i++ {
		rec, resp = h.do(t, http.MethodPost, "/nests/-3,64,5/eggs", LayRequest{CreatureID: "hen-1", Fertile: true})
		require.Equal(t, http.StatusOK, rec.Code, resp.Error)
		require.True(t, decodeData[LayResponse](t, resp).Added)
	}
	_, resp = h.do(t, http.MethodPost, "/nests/-3,64,5/eggs", LayRequest{CreatureID: "hen-1"})
	lay := decodeData[LayResponse](t, resp)
	require.False(t, lay.Added)
	require.Equal(t, 4.0, lay.Nest.TimeToIncubate)
	require.Equal(t, 2, lay.Nest.Fertile)

	rec, resp = h.do(t, http.MethodGet, "/nests/-3,64,5?lang=en", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	desc := decodeData[DescribeResponse](t, resp)
	require.Equal(t, []string{"2 fertile eggs", "Incubation time remaining: 4 days", "A broody hen is needed!"}, desc.Info)

	rec, resp = h.do(t, http.MethodPost, "/creatures/hen-1/claim", nil)
	require.Equal(t, http.StatusOK, rec.Code, resp.Error)
	require.Equal(t, "hen-1", decodeData[core.NestView](t, resp).Occupier)

	h.world.Calendar.Advance(5)
	rec, resp = h.do(t, http.MethodPost, "/tick", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	sum := decodeData[core.TickSummary](t, resp)
	require.Len(t, sum.Hatched, 2)

	_, resp = h.do(t, http.MethodGet, "/audit?limit=1", nil)
	recent := decodeData[[]domain.AuditRecord](t, resp)
	require.Len(t, recent, 1)
	require.Equal(t, domain.AuditHatch, recent[0].Action)

	rec, _ = h.do(t, http.MethodDelete, "/nests/-3,64,5", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec, _ = h.do(t, http.MethodGet, "/nests/-3,64,5", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInteractOverHTTP(t *testing.T) {
	h := newHarness(t)
	_, _ = h.do(t, http.MethodPost, "/nests", PlaceRequest{Block: "henbox"})

	rec, resp := h.do(t, http.MethodPost, "/nests/0,0,0/interact", InteractRequest{Player: "alice", Held: &domain.ItemStack{Code: eggItem, Size: 3}})
	require.Equal(t, http.StatusOK, rec.Code, resp.Error)
	out := decodeData[InteractResponse](t, resp)
	require.True(t, out.Success)
	require.Equal(t, 1, out.Deposited.Size)
	require.Equal(t, 2, out.Held.Size)

	_, resp = h.do(t, http.MethodPost, "/nests/0,0,0/interact", InteractRequest{Player: "alice"})
	out = decodeData[InteractResponse](t, resp)
	require.Len(t, out.Collected, 1)
	require.Equal(t, 1, h.world.Inventories.Count("alice", eggItem))

	rec, _ = h.do(t, http.MethodPost, "/nests/0,0,0/interact", InteractRequest{})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	rec, _ = h.do(t, http.MethodPost, "/nests/9,9,9/interact", InteractRequest{Player: "alice"})
	require.Equal(t, http.StatusNotFound, rec.Code)
	rec, _ = h.do(t, http.MethodPost, "/nests/a,b,c/interact", InteractRequest{Player: "alice"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInteractReportsUnsavedResult(t *testing.T) {
	h := newHarness(t)
	_, _ = h.do(t, http.MethodPost, "/nests", PlaceRequest{Block: "henbox"})
	_, _ = h.do(t, http.MethodPost, "/nests/0,0,0/interact", InteractRequest{Player: "alice", Held: &domain.ItemStack{Code: eggItem, Size: 1}})

	h.store.down = true
	rec, resp := h.do(t, http.MethodPost, "/nests/0,0,0/interact", InteractRequest{Player: "alice"})
	require.Equal(t, http.StatusOK, rec.Code, resp.Error)
	out := decodeData[InteractResponse](t, resp)
	require.True(t, out.Success)
	require.Len(t, out.Collected, 1)
	require.Contains(t, out.Warning, "disk full")
	require.Equal(t, 1, h.world.Inventories.Count("alice", eggItem))

	rec, resp = h.do(t, http.MethodPost, "/nests/0,0,0/interact", InteractRequest{Player: "alice", Held: &domain.ItemStack{Code: eggItem, Size: 2}})
	require.Equal(t, http.StatusOK, rec.Code, resp.Error)
	out = decodeData[InteractResponse](t, resp)
	require.Equal(t, 1, out.Held.Size)
	require.NotEmpty(t, out.Warning)

	h.store.down = false
	_, resp = h.do(t, http.MethodGet, "/nests/0,0,0", nil)
	require.Equal(t, 1, decodeData[DescribeResponse](t, resp).Nest.Eggs)
}

func TestRequestErrors(t *testing.T) {
	h := newHarness(t)
	rec, _ := h.do(t, http.MethodPost, "/nests", PlaceRequest{Block: "anvil"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	rec, _ = h.do(t, http.MethodPost, "/nests", map[string]any{"colour": "red"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	rec, _ = h.do(t, http.MethodPost, "/nests/0,0,0/eggs", LayRequest{CreatureID: "ghost"})
	require.Equal(t, http.StatusNotFound, rec.Code)
	rec, _ = h.do(t, http.MethodPost, "/creatures/ghost/claim", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	rec, _ = h.do(t, http.MethodPut, "/nests/0,0,0/occupier", OccupierRequest{CreatureID: "x"})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUnloadAndReload(t *testing.T) {
	h := newHarness(t)
	_, _ = h.do(t, http.MethodPost, "/nests", PlaceRequest{Block: "henbox", Position: domain.BlockPos{X: 1}})
	rec, _ := h.do(t, http.MethodPost, "/nests/1,0,0/unload", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	_, resp := h.do(t, http.MethodGet, "/nests", nil)
	require.Empty(t, decodeData[[]core.NestView](t, resp))

	rec, resp = h.do(t, http.MethodPost, "/nests/load", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, map[string]int{"loaded": 1}, decodeData[map[string]int](t, resp))
}

func TestArchivesOverHTTP(t *testing.T) {
	h := newHarness(t)
	_, _ = h.do(t, http.MethodPost, "/nests", PlaceRequest{Block: "henbox"})

	rec, resp := h.do(t, http.MethodPost, "/archives", nil)
	require.Equal(t, http.StatusCreated, rec.Code, resp.Error)
	obj := decodeData[blob.Object](t, resp)

	_, resp = h.do(t, http.MethodGet, "/archives", nil)
	require.Len(t, decodeData[[]blob.Object](t, resp), 1)

	name := obj.Key[len(core.ArchivePrefix):]
	rec, resp = h.do(t, http.MethodGet, "/archives/"+name, nil)
	require.Equal(t, http.StatusOK, rec.Code, resp.Error)
	require.Len(t, decodeData[core.ArchiveDocument](t, resp).NestBoxes, 1)

	rec, _ = h.do(t, http.MethodGet, "/archives/missing.json", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsAndExpvar(t *testing.T) {
	h := newHarness(t)
	rec, _ := h.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "nestcore_ticks_total")
	rec, _ = h.do(t, http.MethodGet, "/debug/vars", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestStartAndShutdown(t *testing.T) {
	h := newHarness(t)
	h.srv.server.Addr = "127.0.0.1:0"
	done := make(chan error, 1)
	go func() { done <- h.srv.Start() }()
	time.Sleep(20 * time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, h.srv.Shutdown(ctx))
	require.NoError(t, <-done)
}

func TestCreatureRegistryOverHTTP(t *testing.T) {
	h := newHarness(t)
	rec, resp := h.do(t, http.MethodPost, "/creatures", CreatureRequest{ID: "hen-9", Code: "chicken-hen", Generation: 2})
	require.Equal(t, http.StatusCreated, rec.Code, resp.Error)
	require.True(t, h.world.Actors.Alive("hen-9"))

	rec, _ = h.do(t, http.MethodPost, "/creatures", CreatureRequest{ID: "hen-9", Code: "chicken-hen"})
	require.Equal(t, http.StatusConflict, rec.Code)
	rec, _ = h.do(t, http.MethodPost, "/creatures", CreatureRequest{Code: " "})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec, resp = h.do(t, http.MethodGet, "/creatures", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decodeData[[]domain.Creature](t, resp), 1)

	rec, resp = h.do(t, http.MethodDelete, "/creatures/hen-9", nil)
	require.Equal(t, http.StatusOK, rec.Code, resp.Error)
	require.False(t, decodeData[domain.Creature](t, resp).Alive)
	require.False(t, h.world.Actors.Alive("hen-9"))

	rec, _ = h.do(t, http.MethodDelete, "/creatures/nobody", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServesEmbeddedDocuments(t *testing.T) {
	h := newHarness(t)
	rec, _ := h.do(t, http.MethodGet, "/openapi.yaml", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/yaml", rec.Header().Get("Content-Type"))
	require.Contains(t, rec.Body.String(), "/nests/{x},{y},{z}/interact")

	rec, _ = h.do(t, http.MethodGet, "/schema/archive.json", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"nest_boxes"`)
}
