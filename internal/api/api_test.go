package api

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"golang.org/x/exp/slog"

	"github.com/MJE43/fortune-wheel-go/internal/service"
	"github.com/MJE43/fortune-wheel-go/internal/store"
	"github.com/MJE43/fortune-wheel-go/internal/wheel"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestHandler(t *testing.T, token string) http.Handler {
	t.Helper()

	db, err := store.NewSQLiteDB(":memory:")
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}

	opts := service.DefaultOptions()
	opts.Seed = "api-test"
	svc := service.New(db, opts, discardLogger(), nil)

	return NewServer(svc, db, discardLogger(), Options{Token: token}).Routes()
}

func do(t *testing.T, h http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()

	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(dst); err != nil {
		t.Fatalf("Failed to decode response: %v (body %q)", err, w.Body.String())
	}
}

func createWheel(t *testing.T, h http.Handler, body string) service.WheelView {
	t.Helper()
	w := do(t, h, http.MethodPost, "/api/v1/wheels", body, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("create wheel: status %d, body %s", w.Code, w.Body.String())
	}
	var view service.WheelView
	decodeBody(t, w, &view)
	return view
}

func TestHealthEndpoints(t *testing.T) {
	h := newTestHandler(t, "")

	for _, path := range []string{"/health", "/health/live", "/health/ready", "/version"} {
		w := do(t, h, http.MethodGet, path, "", "")
		if w.Code != http.StatusOK {
			t.Errorf("%s: expected status 200, got %d", path, w.Code)
		}
	}

	w := do(t, h, http.MethodGet, "/health", "", "")
	var resp HealthCheckResponse
	decodeBody(t, w, &resp)
	if resp.Status != HealthStatusHealthy || resp.Checks["database"].Status != HealthStatusHealthy {
		t.Errorf("unexpected health: %+v", resp)
	}
}

type failingChecker struct{}

func (failingChecker) Ping(context.Context) error                    { return fmt.Errorf("connection refused") }
func (failingChecker) SchemaVersion(context.Context) (int64, error) { return 0, nil }

func TestReadinessFailsWithoutDatabase(t *testing.T) {
	h := NewServer(nil, failingChecker{}, discardLogger(), Options{}).Routes()

	w := do(t, h, http.MethodGet, "/health/ready", "", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	var apiErr APIError
	decodeBody(t, w, &apiErr)
	if apiErr.Type != ErrTypeUnavailable {
		t.Errorf("type = %q", apiErr.Type)
	}
}

func TestWheelLifecycle(t *testing.T) {
	h := newTestHandler(t, "")

	view := createWheel(t, h, `{"name":"prizes"}`)
	if len(view.Slices) != 2 || view.Total != 100 {
		t.Fatalf("default wheel = %+v", view)
	}
	base := "/api/v1/wheels/" + view.ID.String()

	w := do(t, h, http.MethodGet, "/api/v1/wheels", "", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "prizes") {
		t.Errorf("list wheels: %d %s", w.Code, w.Body.String())
	}

	w = do(t, h, http.MethodPost, base+"/slices", `{"label":"Prize 3","color":"#007AFF","drop_rate":20}`, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("add slice: %d %s", w.Code, w.Body.String())
	}
	decodeBody(t, w, &view)
	if len(view.Slices) != 3 || view.Slices[2].DropRate != 20 || view.Total != 100 {
		t.Errorf("after add: %+v", view.Slices)
	}

	w = do(t, h, http.MethodPatch, base+"/slices/0", `{"drop_rate":60,"label":"Gold"}`, "")
	if w.Code != http.StatusOK {
		t.Fatalf("update slice: %d %s", w.Code, w.Body.String())
	}
	decodeBody(t, w, &view)
	if view.Slices[0].DropRate != 60 || view.Slices[0].Label != "Gold" || view.Total != 100 {
		t.Errorf("after update: %+v", view.Slices)
	}

	w = do(t, h, http.MethodPost, base+"/equalize", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("equalize: %d %s", w.Code, w.Body.String())
	}

	w = do(t, h, http.MethodPut, base+"/slices",
		`{"slices":[{"label":"a","drop_rate":70},{"label":"b","drop_rate":30,"color":"#fff"}]}`, "")
	if w.Code != http.StatusOK {
		t.Fatalf("commit slices: %d %s", w.Code, w.Body.String())
	}

	w = do(t, h, http.MethodPost, base+"/spin", `{"current_angle":1.5}`, "")
	if w.Code != http.StatusOK {
		t.Fatalf("spin: %d %s", w.Code, w.Body.String())
	}
	var spin spinResponse
	decodeBody(t, w, &spin)
	if spin.TotalRotation <= 1.5 || spin.DurationMS != 4500 {
		t.Errorf("spin = %+v", spin)
	}
	if landed, _ := wheel.SectorAt(spin.TargetAngle, 2); landed != spin.Index {
		t.Errorf("landed on %d, won %d", landed, spin.Index)
	}
	if !strings.HasPrefix(spin.Message, "You have won ") {
		t.Errorf("message = %q", spin.Message)
	}

	w = do(t, h, http.MethodGet, base+"/stats", "", "")
	var stats service.Stats
	decodeBody(t, w, &stats)
	if stats.TotalSpins != 1 || len(stats.Slices) != 2 {
		t.Errorf("stats = %+v", stats)
	}

	w = do(t, h, http.MethodGet, base+"/spins?page=1&per_page=10", "", "")
	var page store.SpinsPage
	decodeBody(t, w, &page)
	if page.TotalCount != 1 || len(page.Spins) != 1 || page.Spins[0].SliceIndex != spin.Index {
		t.Errorf("spins page = %+v", page)
	}

	w = do(t, h, http.MethodGet, base+"/spins/export.csv", "", "")
	if ct := w.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("Content-Type = %q", ct)
	}
	rows, err := csv.NewReader(w.Body).ReadAll()
	if err != nil || len(rows) != 2 {
		t.Errorf("csv rows = %d, err %v", len(rows), err)
	}

	w = do(t, h, http.MethodPost, base+"/history/reset", "", "")
	decodeBody(t, w, &view)
	if w.Code != http.StatusOK || view.TotalSpins != 0 {
		t.Errorf("reset: %d %+v", w.Code, view)
	}

	w = do(t, h, http.MethodDelete, base+"/slices/1", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("delete slice: %d %s", w.Code, w.Body.String())
	}

	w = do(t, h, http.MethodDelete, base, "", "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete wheel: %d", w.Code)
	}
	w = do(t, h, http.MethodGet, base, "", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("get deleted wheel: %d", w.Code)
	}
}

func TestErrorResponses(t *testing.T) {
	h := newTestHandler(t, "")
	full := createWheel(t, h, `{"name":"full"}`)
	empty := createWheel(t, h, `{"name":"empty","defaults":false}`)
	fullPath := "/api/v1/wheels/" + full.ID.String()
	emptyPath := "/api/v1/wheels/" + empty.ID.String()

	tests := []struct {
		name     string
		method   string
		path     string
		body     string
		status   int
		errType  string
		category ErrorCategory
	}{
		{"bad wheel id", http.MethodGet, "/api/v1/wheels/nope", "", 400, ErrTypeValidation, CategoryValidation},
		{"unknown wheel", http.MethodGet, "/api/v1/wheels/" + uuid.NewString(), "", 404, ErrTypeNotFound, CategoryWheel},
		{"bad total", http.MethodPut, fullPath + "/slices", `{"slices":[{"label":"a","drop_rate":60},{"label":"b","drop_rate":30}]}`, 422, "invalid_rate_total", CategoryValidation},
		{"index out of range", http.MethodPatch, fullPath + "/slices/9", `{"drop_rate":10}`, 422, "invalid_index", CategoryValidation},
		{"bad index", http.MethodDelete, fullPath + "/slices/x", "", 400, ErrTypeValidation, CategoryValidation},
		{"nothing to update", http.MethodPatch, fullPath + "/slices/0", `{}`, 400, ErrTypeValidation, CategoryValidation},
		{"blank label", http.MethodPatch, fullPath + "/slices/0", `{"label":"   "}`, 422, "invalid_slice", CategoryValidation},
		{"missing label", http.MethodPost, fullPath + "/slices", `{"color":"#fff"}`, 400, ErrTypeValidation, CategoryValidation},
		{"bad color", http.MethodPost, fullPath + "/slices", `{"label":"x","color":"red"}`, 400, ErrTypeValidation, CategoryValidation},
		{"rate above 100", http.MethodPost, fullPath + "/slices", `{"label":"x","drop_rate":101}`, 400, ErrTypeValidation, CategoryValidation},
		{"malformed json", http.MethodPost, "/api/v1/wheels", `{"name":`, 400, ErrTypeValidation, CategoryValidation},
		{"negative angle", http.MethodPost, fullPath + "/spin", `{"current_angle":-1}`, 400, ErrTypeValidation, CategoryValidation},
		{"spin empty wheel", http.MethodPost, emptyPath + "/spin", "", 409, "empty_slice_set", CategoryWheel},
		{"equalize empty wheel", http.MethodPost, emptyPath + "/equalize", "", 409, "empty_slice_set", CategoryWheel},
		{"bad page", http.MethodGet, fullPath + "/spins?page=0", "", 400, ErrTypeValidation, CategoryValidation},
		{"unknown route", http.MethodGet, "/api/v2/nothing", "", 404, ErrTypeRouteNotFound, CategorySystem},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, tt.method, tt.path, tt.body, "")
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tt.status, w.Body.String())
			}
			var apiErr APIError
			decodeBody(t, w, &apiErr)
			if apiErr.Type != tt.errType {
				t.Errorf("type = %q, want %q", apiErr.Type, tt.errType)
			}
			if got := w.Header().Get("X-Error-Category"); got != string(tt.category) {
				t.Errorf("category = %q, want %q", got, tt.category)
			}
			if apiErr.Timestamp == "" {
				t.Error("missing timestamp")
			}
		})
	}
}

func TestSpinAcceptsEmptyBody(t *testing.T) {
	h := newTestHandler(t, "")
	view := createWheel(t, h, `{"name":"w"}`)

	w := do(t, h, http.MethodPost, "/api/v1/wheels/"+view.ID.String()+"/spin", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
}

func TestTokenRequiredForWrites(t *testing.T) {
	h := newTestHandler(t, "secret")

	if w := do(t, h, http.MethodPost, "/api/v1/wheels", `{"name":"w"}`, ""); w.Code != http.StatusUnauthorized {
		t.Errorf("no token: status %d", w.Code)
	}
	if w := do(t, h, http.MethodPost, "/api/v1/wheels", `{"name":"w"}`, "wrong"); w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token: status %d", w.Code)
	}
	if w := do(t, h, http.MethodPost, "/api/v1/wheels", `{"name":"w"}`, "secret"); w.Code != http.StatusCreated {
		t.Errorf("valid token: status %d", w.Code)
	}
	if w := do(t, h, http.MethodGet, "/api/v1/wheels", "", ""); w.Code != http.StatusOK {
		t.Errorf("read without token: status %d", w.Code)
	}
}

type panickyWheels struct {
	Wheels
}

func (panickyWheels) ListWheels(context.Context) ([]store.Wheel, error) {
	panic("boom")
}

func TestRecovererWritesAPIError(t *testing.T) {
	h := NewServer(panickyWheels{}, nil, discardLogger(), Options{}).Routes()

	w := do(t, h, http.MethodGet, "/api/v1/wheels", "", "")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	var apiErr APIError
	decodeBody(t, w, &apiErr)
	if apiErr.Type != ErrTypeInternal || apiErr.Context["panic"] != "boom" {
		t.Errorf("error = %+v", apiErr)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		typ    string
	}{
		{"not found", fmt.Errorf("x: %w", service.ErrWheelNotFound), 404, ErrTypeNotFound},
		{"corrupt", &wheel.Error{Kind: wheel.KindCorruptPersistedState}, 500, "corrupt_persisted_state"},
		{"unselectable", &wheel.Error{Kind: wheel.KindUnselectableSet}, 409, "unselectable_set"},
		{"insufficient", &wheel.Error{Kind: wheel.KindInsufficientSlices}, 409, "insufficient_slices"},
		{"deadline", fmt.Errorf("store: %w", context.DeadlineExceeded), 504, ErrTypeTimeout},
		{"other", io.ErrUnexpectedEOF, 500, ErrTypeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			status, apiErr := classify(r, tt.err)
			if status != tt.status || apiErr.Type != tt.typ {
				t.Errorf("classify = %d %q, want %d %q", status, apiErr.Type, tt.status, tt.typ)
			}
		})
	}
}

func TestErrorBuilder(t *testing.T) {
	e := NewError(ErrTypeValidation, "bad").
		WithRequestID("req-1").
		WithContext("field", "name").
		WithCause(io.EOF).
		Build()

	if e.Error() != "bad" || e.RequestID != "req-1" {
		t.Errorf("built = %+v", e)
	}
	if e.Context["field"] != "name" || e.Context["cause"] != "EOF" {
		t.Errorf("context = %v", e.Context)
	}

	data, _ := json.Marshal(NewError(ErrTypeInternal, "x").Build())
	if bytes.Contains(data, []byte(`"context"`)) {
		t.Errorf("empty context serialized: %s", data)
	}
}
