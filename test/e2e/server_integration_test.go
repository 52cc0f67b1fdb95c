package e2e

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/hyperengineering/rigbuild/internal/build"
	"github.com/hyperengineering/rigbuild/internal/compat"
	"github.com/hyperengineering/rigbuild/internal/types"
)

type summaryBody struct {
	build.Summary
	Conflicts []compat.Conflict `json:"conflicts"`
}

func TestWizard_FullFlow(t *testing.T) {
	env := newTestEnv(t, "")
	env.seed(t)
	sid := env.newSession(t)
	base := "/api/v1/sessions/" + sid

	// Setup dialog
	env.call(t, http.MethodPut, base+"/targets", types.TargetsRequest{
		BudgetTarget: ptr(2500.0),
		UseCase:      "1440p144",
	}, http.StatusOK, nil)

	// CPU step: shortlist two, pick the AMD
	for _, id := range []string{"cpu_7800x3d", "cpu_14600k"} {
		env.call(t, http.MethodPost, base+"/candidates/cpu", types.PartRef{PartID: id}, http.StatusOK, nil)
	}
	env.call(t, http.MethodPut, base+"/active/cpu", types.SetActiveRequest{ID: "cpu_7800x3d"}, http.StatusOK, nil)

	// Mobo step: the compat view flags the Intel board
	var cr types.CompatResponse
	env.call(t, http.MethodGet, base+"/compat?category=mobo", nil, http.StatusOK, &cr)
	if cr.Source != "catalog" {
		t.Errorf("source = %q, want catalog", cr.Source)
	}
	verdicts := map[string]types.CompatResult{}
	for _, r := range cr.Results {
		verdicts[r.PartID] = r
	}
	if !verdicts["mobo_x670e"].OK || verdicts["mobo_b760"].OK {
		t.Errorf("mobo verdicts = %+v", verdicts)
	}
	if verdicts["mobo_b760"].Reason != "Needs AM5" {
		t.Errorf("b760 reason = %q, want Needs AM5", verdicts["mobo_b760"].Reason)
	}

	env.call(t, http.MethodPost, base+"/candidates/mobo", types.PartRef{PartID: "mobo_x670e"}, http.StatusOK, nil)
	env.call(t, http.MethodPut, base+"/active/mobo", types.SetActiveRequest{ID: "mobo_x670e"}, http.StatusOK, nil)

	// Memory and cooler steps
	env.call(t, http.MethodGet, base+"/compat?category=memory", nil, http.StatusOK, &cr)
	for _, r := range cr.Results {
		if r.PartID == "ram_ddr4_3600" && (r.OK || r.Reason != "Mobo is DDR5") {
			t.Errorf("ddr4 verdict = %+v, want Mobo is DDR5", r)
		}
	}
	env.call(t, http.MethodPost, base+"/candidates/memory", types.PartRef{PartID: "ram_ddr5_6000"}, http.StatusOK, nil)
	env.call(t, http.MethodPut, base+"/active/memory", types.SetActiveRequest{ID: "ram_ddr5_6000"}, http.StatusOK, nil)

	env.call(t, http.MethodGet, base+"/compat?category=cooler", nil, http.StatusOK, &cr)
	for _, r := range cr.Results {
		if r.PartID == "cooler_am4only" && (r.OK || r.Reason != "Lacks AM5") {
			t.Errorf("cooler verdict = %+v, want Lacks AM5", r)
		}
	}
	env.call(t, http.MethodPost, base+"/candidates/cooler", types.PartRef{PartID: "cooler_nhd15"}, http.StatusOK, nil)
	env.call(t, http.MethodPut, base+"/active/cooler", types.SetActiveRequest{ID: "cooler_nhd15"}, http.StatusOK, nil)

	// GPU picked directly
	env.call(t, http.MethodPut, base+"/selected/gpu", types.PartRef{PartID: "gpu_4080s"}, http.StatusOK, nil)

	// Summary
	var sum summaryBody
	env.call(t, http.MethodGet, base+"/summary", nil, http.StatusOK, &sum)
	wantTotal := 449.0 + 499 + 119 + 109 + 999
	if sum.TotalUSD != wantTotal {
		t.Errorf("total = %v, want %v", sum.TotalUSD, wantTotal)
	}
	if sum.OverBudget {
		t.Error("over_budget = true, want false")
	}
	if len(sum.Conflicts) != 0 {
		t.Errorf("conflicts = %+v, want none", sum.Conflicts)
	}
	if sum.PerformanceTarget == nil || *sum.PerformanceTarget != 144 {
		t.Errorf("performance target = %v, want 144", sum.PerformanceTarget)
	}

	// Share link decodes to the active picks
	var link types.ShareResponse
	env.call(t, http.MethodGet, base+"/share", nil, http.StatusOK, &link)
	var shared types.SharedBuildResponse
	env.call(t, http.MethodGet, "/api/v1/share/"+url.PathEscape(link.Hash), nil, http.StatusOK, &shared)
	if shared.Active[types.CategoryCPU] != "cpu_7800x3d" || shared.Active[types.CategoryCooler] != "cooler_nhd15" {
		t.Errorf("shared active = %v", shared.Active)
	}

	// Save, reset, load
	var snap build.Snapshot
	env.call(t, http.MethodPost, base+"/builds", types.SaveBuildRequest{Name: "AM5 gaming"}, http.StatusCreated, &snap)
	env.call(t, http.MethodPost, base+"/reset", nil, http.StatusOK, nil)

	var st build.State
	env.call(t, http.MethodPost, base+"/builds/"+snap.ID+"/load", nil, http.StatusOK, &st)
	if st.Selected[types.CategoryMobo].ID != "mobo_x670e" || st.Selected[types.CategoryGPU].ID != "gpu_4080s" {
		t.Errorf("loaded selection = %v", st.Selected)
	}
	if len(st.Active) != 0 {
		t.Errorf("active after load = %v, want cleared", st.Active)
	}
}

func TestSession_PersistsAcrossRestart(t *testing.T) {
	env := newTestEnv(t, "")
	env.seed(t)
	sid := env.newSession(t)
	base := "/api/v1/sessions/" + sid

	env.call(t, http.MethodPost, base+"/candidates/cpu", types.PartRef{PartID: "cpu_14600k"}, http.StatusOK, nil)
	env.call(t, http.MethodPut, base+"/active/cpu", types.SetActiveRequest{ID: "cpu_14600k"}, http.StatusOK, nil)
	env.call(t, http.MethodPost, base+"/compare", types.PartRef{PartID: "gpu_4080s"}, http.StatusOK, nil)
	var snap build.Snapshot
	env.call(t, http.MethodPost, base+"/builds", nil, http.StatusCreated, &snap)

	env = env.restart(t)

	var st build.State
	env.call(t, http.MethodGet, base, nil, http.StatusOK, &st)
	if st.Active[types.CategoryCPU] != "cpu_14600k" {
		t.Errorf("active cpu = %q, want cpu_14600k", st.Active[types.CategoryCPU])
	}
	if len(st.Compare) != 1 || st.Compare[0].ID != "gpu_4080s" {
		t.Errorf("compare = %+v", st.Compare)
	}
	if len(st.Builds) != 1 || st.Builds[0].ID != snap.ID || st.Builds[0].Name != build.DefaultBuildName {
		t.Errorf("builds = %+v", st.Builds)
	}

	// Catalog survives too
	var parts types.PartsResponse
	env.call(t, http.MethodGet, "/api/v1/parts?category=cooler", nil, http.StatusOK, &parts)
	if parts.Total != 2 || parts.Parts[0].ID != "cooler_am4only" {
		t.Errorf("coolers = %+v, want cheapest first", parts.Parts)
	}
}

func TestSession_SweepPurgesIdleSessions(t *testing.T) {
	env := newTestEnv(t, "")
	idle := env.newSession(t)

	// Drop the in-memory copy, then purge everything not touched in the future
	res, err := env.sessions.Sweep(context.Background(), -time.Hour)
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if res.Evicted != 1 || res.Purged != 1 {
		t.Errorf("sweep = %+v, want 1 evicted and 1 purged", res)
	}

	env.call(t, http.MethodGet, "/api/v1/sessions/"+idle, nil, http.StatusNotFound, nil)
}

func TestCatalog_ReseedUpdatesInPlace(t *testing.T) {
	env := newTestEnv(t, "")
	env.seed(t)

	// Same natural key under a new id and price
	updated := seedParts[0]
	updated.ID = "cpu_7800x3d_v2"
	updated.PriceUSD = 399
	var res types.UpsertResult
	env.call(t, http.MethodPost, "/api/v1/parts", types.UpsertPartsRequest{Parts: []types.Part{updated}}, http.StatusOK, &res)

	var parts types.PartsResponse
	env.call(t, http.MethodGet, "/api/v1/parts?category=cpu", nil, http.StatusOK, &parts)
	if parts.Total != 2 {
		t.Fatalf("cpu count = %d, want 2 after reseed", parts.Total)
	}

	// The row now answers to the new id
	var got types.Part
	env.call(t, http.MethodGet, "/api/v1/parts/cpu_7800x3d_v2", nil, http.StatusOK, &got)
	if got.PriceUSD != 399 {
		t.Errorf("price = %v, want 399", got.PriceUSD)
	}
	env.call(t, http.MethodGet, "/api/v1/parts/"+seedParts[0].ID, nil, http.StatusNotFound, nil)

	var health types.HealthResponse
	env.call(t, http.MethodGet, "/api/v1/health", nil, http.StatusOK, &health)
	if health.PartCount != int64(len(seedParts)) {
		t.Errorf("part_count = %d, want %d", health.PartCount, len(seedParts))
	}
}

func ptr[T any](v T) *T { return &v }
