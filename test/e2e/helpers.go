package e2e

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/hyperengineering/rigbuild/internal/api"
	"github.com/hyperengineering/rigbuild/internal/catalog"
	"github.com/hyperengineering/rigbuild/internal/session"
	"github.com/hyperengineering/rigbuild/internal/types"
)

const testAPIKey = "e2e-test-api-key"

// seedParts is a small catalog covering the socket and memory rules.
var seedParts = []types.Part{
	{ID: "cpu_7800x3d", Category: types.CategoryCPU, Brand: "AMD", Model: "Ryzen 7 7800X3D", PriceUSD: 449, Spec: map[string]any{"socket": "AM5", "cores": 8}},
	{ID: "cpu_14600k", Category: types.CategoryCPU, Brand: "Intel", Model: "Core i5-14600K", PriceUSD: 319, Spec: map[string]any{"socket": "LGA1700", "cores": 14}},
	{ID: "mobo_x670e", Category: types.CategoryMobo, Brand: "ASUS", Model: "ROG Strix X670E-E", PriceUSD: 499, Spec: map[string]any{"socket": "AM5", "memory_type": "DDR5"}},
	{ID: "mobo_b760", Category: types.CategoryMobo, Brand: "MSI", Model: "PRO B760-P DDR4", PriceUSD: 139, Spec: map[string]any{"socket": "LGA1700", "memory_type": "DDR4"}},
	{ID: "ram_ddr5_6000", Category: types.CategoryMemory, Brand: "G.Skill", Model: "Trident Z5 32GB", PriceUSD: 119, Spec: map[string]any{"type": "DDR5"}},
	{ID: "ram_ddr4_3600", Category: types.CategoryMemory, Brand: "Corsair", Model: "Vengeance LPX 32GB", PriceUSD: 64, Spec: map[string]any{"type": "DDR4"}},
	{ID: "cooler_nhd15", Category: types.CategoryCooler, Brand: "Noctua", Model: "NH-D15", PriceUSD: 109, Spec: map[string]any{"socket": []any{"AM4", "AM5", "LGA1700"}}},
	{ID: "cooler_am4only", Category: types.CategoryCooler, Brand: "Generic", Model: "Tower 120", PriceUSD: 25, Spec: map[string]any{"socket": []any{"AM4"}}},
	{ID: "gpu_4080s", Category: types.CategoryGPU, Brand: "NVIDIA", Model: "RTX 4080 Super", PriceUSD: 999},
}

// testEnv is an in-process server over a real SQLite file.
type testEnv struct {
	dbPath   string
	db       *catalog.SQLiteCatalog
	sessions *session.Manager
	server   *httptest.Server
}

// newTestEnv starts a server over dbPath, or a fresh database when empty.
func newTestEnv(t *testing.T, dbPath string) *testEnv {
	t.Helper()
	if dbPath == "" {
		dbPath = filepath.Join(t.TempDir(), "rigbuild.db")
	}

	db, err := catalog.NewSQLiteCatalog(dbPath)
	if err != nil {
		t.Fatalf("open catalog: %v", err)
	}
	mgr := session.NewManager(db)
	h := api.NewHandler(db, mgr, testAPIKey, "e2e", "https://rigbuild.test")
	srv := httptest.NewServer(api.NewRouter(h, api.NewDeleteRateLimiter(50, 50)))

	env := &testEnv{dbPath: dbPath, db: db, sessions: mgr, server: srv}
	t.Cleanup(env.close)
	return env
}

func (e *testEnv) close() {
	if e.server == nil {
		return
	}
	e.server.Close()
	e.sessions.Close()
	e.db.Close()
	e.server = nil
}

// restart closes the server and opens a new one on the same database.
func (e *testEnv) restart(t *testing.T) *testEnv {
	t.Helper()
	e.close()
	return newTestEnv(t, e.dbPath)
}

func (e *testEnv) seed(t *testing.T) {
	t.Helper()
	var res types.UpsertResult
	e.call(t, http.MethodPost, "/api/v1/parts", types.UpsertPartsRequest{Parts: seedParts}, http.StatusOK, &res)
	if res.Upserted != len(seedParts) {
		t.Fatalf("seed upserted %d, want %d (errors %v)", res.Upserted, len(seedParts), res.Errors)
	}
}

func (e *testEnv) newSession(t *testing.T) string {
	t.Helper()
	var resp types.SessionResponse
	e.call(t, http.MethodPost, "/api/v1/sessions", nil, http.StatusCreated, &resp)
	return resp.SessionID
}

// call sends body as JSON, checks the status and decodes the response
// into out when out is non-nil.
func (e *testEnv) call(t *testing.T, method, path string, body any, wantStatus int, out any) {
	t.Helper()

	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, e.server.URL+path, r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != wantStatus {
		t.Fatalf("%s %s: status %d, want %d: %s", method, path, resp.StatusCode, wantStatus, data)
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			t.Fatalf("%s %s: decode %q: %v", method, path, data, err)
		}
	}
}
