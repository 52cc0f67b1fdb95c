package build

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/hyperengineering/rigbuild/internal/types"
)

func part(id string, cat types.Category, price float64, spec map[string]any) types.Part {
	return types.Part{
		ID:       id,
		Category: cat,
		Brand:    "Brand",
		Model:    strings.ToUpper(id),
		PriceUSD: price,
		Spec:     spec,
	}
}

func floatPtr(v float64) *float64 { return &v }

// recordEvents subscribes to s and returns a pointer to the captured events.
func recordEvents(t *testing.T, s *Store) *[]Event {
	t.Helper()
	var events []Event
	unsubscribe := s.Subscribe(func(ev Event) { events = append(events, ev) })
	t.Cleanup(unsubscribe)
	return &events
}

func TestNew_EmptyShape(t *testing.T) {
	s := New()
	st := s.State()

	if len(st.Candidates) != len(types.Categories) {
		t.Errorf("len(Candidates) = %d, want %d", len(st.Candidates), len(types.Categories))
	}
	for _, c := range types.Categories {
		if pool, ok := st.Candidates[c]; !ok || len(pool) != 0 {
			t.Errorf("Candidates[%s] = %v (present=%v), want empty pool", c, pool, ok)
		}
	}
	if len(st.Active) != 0 || len(st.Selected) != 0 || len(st.Compare) != 0 || len(st.Builds) != 0 {
		t.Errorf("new store state not empty: %+v", st)
	}
	if st.BudgetTarget != nil || st.PerformanceTarget != nil {
		t.Errorf("targets = %v/%v, want nil", st.BudgetTarget, st.PerformanceTarget)
	}
}

func TestAddCandidate_AppendsWithoutChangingActive(t *testing.T) {
	s := New()
	a := part("cpu_a", types.CategoryCPU, 300, nil)
	b := part("cpu_b", types.CategoryCPU, 400, nil)

	s.AddCandidate(types.CategoryCPU, a)
	s.SetActive(types.CategoryCPU, a.ID)
	s.AddCandidate(types.CategoryCPU, b)

	pool := s.Candidates(types.CategoryCPU)
	if len(pool) != 2 || pool[0].ID != "cpu_a" || pool[1].ID != "cpu_b" {
		t.Fatalf("pool = %v, want [cpu_a cpu_b] in insertion order", pool)
	}
	if got := s.State().Active[types.CategoryCPU]; got != "cpu_a" {
		t.Errorf("active = %q, want cpu_a", got)
	}
}

func TestAddCandidate_DuplicatesTolerated(t *testing.T) {
	s := New()
	a := part("gpu_a", types.CategoryGPU, 900, nil)

	for i := 1; i <= 3; i++ {
		s.AddCandidate(types.CategoryGPU, a)
		if got := len(s.Candidates(types.CategoryGPU)); got != i {
			t.Fatalf("after %d adds len(pool) = %d, want %d", i, got, i)
		}
	}
}

func TestRemoveCandidate_PromotesFirstRemaining(t *testing.T) {
	// Given: cpu pool [A, B], A active
	s := New()
	a := part("cpu_a", types.CategoryCPU, 300, nil)
	b := part("cpu_b", types.CategoryCPU, 400, nil)
	s.AddCandidate(types.CategoryCPU, a)
	s.SetActive(types.CategoryCPU, a.ID)
	s.AddCandidate(types.CategoryCPU, b)

	// When: A is removed
	s.RemoveCandidate(types.CategoryCPU, a.ID)

	// Then: B becomes active
	if got := s.State().Active[types.CategoryCPU]; got != "cpu_b" {
		t.Errorf("active = %q, want cpu_b", got)
	}
	if pool := s.Candidates(types.CategoryCPU); len(pool) != 1 || pool[0].ID != "cpu_b" {
		t.Errorf("pool = %v, want [cpu_b]", pool)
	}
}

func TestRemoveCandidate_LastActiveClearsSlot(t *testing.T) {
	s := New()
	a := part("psu_a", types.CategoryPSU, 120, nil)
	s.AddCandidate(types.CategoryPSU, a)
	s.SetActive(types.CategoryPSU, a.ID)

	s.RemoveCandidate(types.CategoryPSU, a.ID)

	if id, ok := s.State().Active[types.CategoryPSU]; ok {
		t.Errorf("active = %q, want cleared", id)
	}
	if _, ok := s.ActivePart(types.CategoryPSU); ok {
		t.Error("ActivePart ok = true, want false")
	}
}

func TestRemoveCandidate_NonActiveKeepsActive(t *testing.T) {
	s := New()
	a := part("ram_a", types.CategoryMemory, 90, nil)
	b := part("ram_b", types.CategoryMemory, 120, nil)
	c := part("ram_c", types.CategoryMemory, 150, nil)
	for _, p := range []types.Part{a, b, c} {
		s.AddCandidate(types.CategoryMemory, p)
	}
	s.SetActive(types.CategoryMemory, c.ID)

	s.RemoveCandidate(types.CategoryMemory, a.ID)

	if got := s.State().Active[types.CategoryMemory]; got != "ram_c" {
		t.Errorf("active = %q, want ram_c", got)
	}
}

func TestRemoveCandidate_DropsAllDuplicates(t *testing.T) {
	s := New()
	a := part("ssd_a", types.CategoryStorage, 80, nil)
	b := part("ssd_b", types.CategoryStorage, 110, nil)
	s.AddCandidate(types.CategoryStorage, a)
	s.AddCandidate(types.CategoryStorage, a)
	s.AddCandidate(types.CategoryStorage, b)
	s.SetActive(types.CategoryStorage, a.ID)

	s.RemoveCandidate(types.CategoryStorage, a.ID)

	if got := s.State().Active[types.CategoryStorage]; got != "ssd_b" {
		t.Errorf("active = %q, want ssd_b (no dangling reference to a duplicate)", got)
	}
}

func TestRemoveCandidate_UnknownIDIsNoop(t *testing.T) {
	s := New()
	s.AddCandidate(types.CategoryCase, part("case_a", types.CategoryCase, 99, nil))
	events := recordEvents(t, s)
	before := s.State()

	s.RemoveCandidate(types.CategoryCase, "nope")

	if diff := cmp.Diff(before, s.State()); diff != "" {
		t.Errorf("state changed on unknown id (-before +after):\n%s", diff)
	}
	if len(*events) != 0 {
		t.Errorf("events = %v, want none", *events)
	}
}

func TestSetActive_Unconditional(t *testing.T) {
	s := New()
	s.SetActive(types.CategoryGPU, "not-in-pool")

	if got := s.State().Active[types.CategoryGPU]; got != "not-in-pool" {
		t.Errorf("active = %q, want not-in-pool", got)
	}
	// An id outside the pool never resolves to a part.
	if _, ok := s.ActivePart(types.CategoryGPU); ok {
		t.Error("ActivePart ok = true, want false")
	}
}

func TestSetPart_LegacySelection(t *testing.T) {
	s := New()
	a := part("case_a", types.CategoryCase, 80, nil)
	b := part("case_b", types.CategoryCase, 95, nil)

	s.SetPart(types.CategoryCase, a)
	s.SetPart(types.CategoryCase, b)

	if got := s.State().Selected[types.CategoryCase].ID; got != "case_b" {
		t.Errorf("selected = %q, want case_b", got)
	}
	if got := s.Selection()[types.CategoryCase].ID; got != "case_b" {
		t.Errorf("Selection() = %q, want case_b", got)
	}
}

func TestSelection_ActiveOverridesSelected(t *testing.T) {
	s := New()
	legacy := part("cpu_legacy", types.CategoryCPU, 100, nil)
	pooled := part("cpu_pooled", types.CategoryCPU, 200, nil)
	s.SetPart(types.CategoryCPU, legacy)
	s.AddCandidate(types.CategoryCPU, pooled)
	s.SetActive(types.CategoryCPU, pooled.ID)

	if got := s.Selection()[types.CategoryCPU].ID; got != "cpu_pooled" {
		t.Errorf("Selection()[cpu] = %q, want cpu_pooled", got)
	}
}

func TestToggleCompare_SelfInverse(t *testing.T) {
	s := New()
	a := part("gpu_a", types.CategoryGPU, 500, nil)
	b := part("gpu_b", types.CategoryGPU, 700, nil)
	s.ToggleCompare(a)
	before := s.Compare()

	s.ToggleCompare(b)
	s.ToggleCompare(b)

	if diff := cmp.Diff(before, s.Compare()); diff != "" {
		t.Errorf("compare changed after toggle pair (-want +got):\n%s", diff)
	}
}

func TestToggleCompare_CapIsThree(t *testing.T) {
	s := New()
	for i := 0; i < MaxCompare; i++ {
		if !s.ToggleCompare(part(fmt.Sprintf("p%d", i), types.CategoryGPU, 1, nil)) {
			t.Fatalf("ToggleCompare(p%d) = false, want true", i)
		}
	}
	before := s.Compare()

	if s.ToggleCompare(part("p-extra", types.CategoryGPU, 1, nil)) {
		t.Error("ToggleCompare on full tray = true, want false")
	}
	if diff := cmp.Diff(before, s.Compare()); diff != "" {
		t.Errorf("full tray changed (-want +got):\n%s", diff)
	}

	// Removing from a full tray still works.
	if !s.ToggleCompare(part("p1", types.CategoryGPU, 1, nil)) {
		t.Error("ToggleCompare(existing) on full tray = false, want true")
	}
	if got := len(s.Compare()); got != MaxCompare-1 {
		t.Errorf("len(compare) = %d, want %d", got, MaxCompare-1)
	}
}

func TestSaveCurrent_DefaultAndTrimmedNames(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", DefaultBuildName},
		{"blank", "   \t", DefaultBuildName},
		{"trimmed", "  Gaming rig  ", "Gaming rig"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New()
			snap := s.SaveCurrent(tt.in)
			if snap.Name != tt.want {
				t.Errorf("Name = %q, want %q", snap.Name, tt.want)
			}
			if len(snap.ID) != 26 {
				t.Errorf("ID = %q, want 26-char ULID", snap.ID)
			}
			if snap.Date == "" {
				t.Error("Date is empty")
			}
		})
	}
}

func TestSaveCurrent_UniqueIDs(t *testing.T) {
	s := New()
	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		snap := s.SaveCurrent("b")
		if seen[snap.ID] {
			t.Fatalf("duplicate snapshot id %s", snap.ID)
		}
		seen[snap.ID] = true
	}
	if got := len(s.Builds()); got != 20 {
		t.Errorf("len(builds) = %d, want 20", got)
	}
}

func TestSaveThenLoad_RoundTrip(t *testing.T) {
	// Given: a build with an active cpu, a legacy gpu and targets
	s := New()
	cpu := part("cpu_a", types.CategoryCPU, 300, map[string]any{"socket": "AM5"})
	gpu := part("gpu_a", types.CategoryGPU, 800, nil)
	s.AddCandidate(types.CategoryCPU, cpu)
	s.SetActive(types.CategoryCPU, cpu.ID)
	s.SetPart(types.CategoryGPU, gpu)
	s.SetBudgetTarget(1500)
	s.SetPerformanceTarget(144)
	snap := s.SaveCurrent("Rig")

	// When: the live build diverges and then the snapshot is loaded
	s.SetPart(types.CategoryGPU, part("gpu_b", types.CategoryGPU, 1200, nil))
	s.SetBudgetTarget(3000)
	s.ToggleCompare(gpu)
	s.AddCandidate(types.CategoryMobo, part("mobo_a", types.CategoryMobo, 200, nil))
	if !s.LoadBuild(snap.ID) {
		t.Fatal("LoadBuild() = false, want true")
	}

	// Then: selection and targets match save time, transient pools are empty
	st := s.State()
	want := map[types.Category]types.Part{types.CategoryCPU: cpu, types.CategoryGPU: gpu}
	if diff := cmp.Diff(want, st.Selected); diff != "" {
		t.Errorf("selected mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(floatPtr(1500), st.BudgetTarget); diff != "" {
		t.Errorf("budgetTarget mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(floatPtr(144), st.PerformanceTarget); diff != "" {
		t.Errorf("performanceTarget mismatch (-want +got):\n%s", diff)
	}
	if len(st.Compare) != 0 || len(st.Active) != 0 {
		t.Errorf("compare/active not reset: %v / %v", st.Compare, st.Active)
	}
	for c, pool := range st.Candidates {
		if len(pool) != 0 {
			t.Errorf("Candidates[%s] = %v, want empty", c, pool)
		}
	}
	if got := len(st.Builds); got != 1 {
		t.Errorf("len(builds) = %d, want 1", got)
	}
}

func TestSnapshot_NotAliasedToLiveTargets(t *testing.T) {
	s := New()
	s.SetBudgetTarget(1000)
	snap := s.SaveCurrent("a")

	s.SetBudgetTarget(2000)

	stored := s.Builds()[0]
	if *stored.Data.BudgetTarget != 1000 || *snap.Data.BudgetTarget != 1000 {
		t.Errorf("snapshot budget = %v / %v, want 1000", *stored.Data.BudgetTarget, *snap.Data.BudgetTarget)
	}
}

func TestLoadBuild_UnknownIDIsNoop(t *testing.T) {
	s := New()
	s.SetPart(types.CategoryCPU, part("cpu_a", types.CategoryCPU, 1, nil))
	s.ToggleCompare(part("gpu_a", types.CategoryGPU, 1, nil))
	before := s.State()

	if s.LoadBuild("missing") {
		t.Error("LoadBuild(missing) = true, want false")
	}
	if diff := cmp.Diff(before, s.State()); diff != "" {
		t.Errorf("state changed (-before +after):\n%s", diff)
	}
}

func TestDeleteBuild(t *testing.T) {
	s := New()
	a := s.SaveCurrent("a")
	b := s.SaveCurrent("b")

	if !s.DeleteBuild(a.ID) {
		t.Error("DeleteBuild(a) = false, want true")
	}
	if s.DeleteBuild(a.ID) {
		t.Error("second DeleteBuild(a) = true, want false")
	}
	builds := s.Builds()
	if len(builds) != 1 || builds[0].ID != b.ID {
		t.Errorf("builds = %v, want only %s", builds, b.ID)
	}
}

func TestResetCurrent_EmptiesLiveStateKeepsBuilds(t *testing.T) {
	s := New()
	cpu := part("cpu_a", types.CategoryCPU, 300, nil)
	s.AddCandidate(types.CategoryCPU, cpu)
	s.SetActive(types.CategoryCPU, cpu.ID)
	s.SetPart(types.CategoryGPU, part("gpu_a", types.CategoryGPU, 1, nil))
	s.SetBudgetTarget(1200)
	s.SetPerformanceTarget(60)
	s.ToggleCompare(cpu)
	s.SaveCurrent("keep me")
	builds := s.Builds()

	s.ResetCurrent()

	want := EmptyState()
	want.Builds = builds
	if diff := cmp.Diff(want, s.State(), cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("state after reset (-want +got):\n%s", diff)
	}
}

func TestState_ReturnsIndependentCopy(t *testing.T) {
	s := New()
	s.AddCandidate(types.CategoryCPU, part("cpu_a", types.CategoryCPU, 1, nil))

	st := s.State()
	st.Candidates[types.CategoryCPU][0].ID = "mutated"
	st.Active[types.CategoryCPU] = "mutated"

	fresh := s.State()
	if fresh.Candidates[types.CategoryCPU][0].ID != "cpu_a" {
		t.Error("State() shares candidate slices with the store")
	}
	if _, ok := fresh.Active[types.CategoryCPU]; ok {
		t.Error("State() shares the active map with the store")
	}
}

func TestSubscribe_PublishesChangesOnly(t *testing.T) {
	s := New()
	events := recordEvents(t, s)
	a := part("cpu_a", types.CategoryCPU, 1, nil)

	s.AddCandidate(types.CategoryCPU, a)
	s.SetActive(types.CategoryCPU, a.ID)
	s.DeleteBuild("missing")
	s.LoadBuild("missing")
	s.RemoveCandidate(types.CategoryCPU, a.ID)

	want := []Event{
		{Action: ActionAddCandidate, Category: types.CategoryCPU, ID: "cpu_a"},
		{Action: ActionSetActive, Category: types.CategoryCPU, ID: "cpu_a"},
		{Action: ActionRemoveCandidate, Category: types.CategoryCPU, ID: "cpu_a"},
	}
	if diff := cmp.Diff(want, *events); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestSubscribe_CallbackCanReadStore(t *testing.T) {
	s := New()
	var seen int
	s.Subscribe(func(Event) { seen = len(s.Candidates(types.CategoryGPU)) })

	s.AddCandidate(types.CategoryGPU, part("gpu_a", types.CategoryGPU, 1, nil))

	if seen != 1 {
		t.Errorf("pool size seen by subscriber = %d, want 1", seen)
	}
}

func TestSubscribe_Unsubscribe(t *testing.T) {
	s := New()
	var calls int
	unsubscribe := s.Subscribe(func(Event) { calls++ })

	s.SetBudgetTarget(1)
	unsubscribe()
	s.SetBudgetTarget(2)

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestStore_ConcurrentMutations(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := part(fmt.Sprintf("ssd_%d", i), types.CategoryStorage, float64(i), nil)
			s.AddCandidate(types.CategoryStorage, p)
			s.SetActive(types.CategoryStorage, p.ID)
			_ = s.Summary()
		}(i)
	}
	wg.Wait()

	if got := len(s.Candidates(types.CategoryStorage)); got != 50 {
		t.Errorf("len(pool) = %d, want 50", got)
	}
}
