package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/shelflink/backend/config"
	"github.com/shelflink/backend/internal/domain"
	"github.com/shelflink/backend/internal/usecase"
)

// TestMain sets up test environment before running tests
func TestMain(m *testing.M) {
	// Set Gin to test mode once for all tests
	gin.SetMode(gin.TestMode)

	exitCode := m.Run()

	os.Exit(exitCode)
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Port:           "8080",
			Environment:    "test",
			AllowedOrigins: []string{"http://localhost:3000"},
		},
	}
}

// setupTestRouter creates a test router with nil services; handlers answer
// 503 for everything but health.
func setupTestRouter() *gin.Engine {
	handler := NewHandler(nil, nil, nil)
	return SetupRouter(testConfig(), handler)
}

// TestHealthCheckEndpoint tests the health check endpoint
func TestHealthCheckEndpoint(t *testing.T) {
	t.Run("returns healthy status", func(t *testing.T) {
		router := setupTestRouter()

		req, _ := http.NewRequest("GET", "/health", nil)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusOK)
		}

		var response map[string]interface{}
		if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
			t.Fatalf("Failed to unmarshal response: %v", err)
		}

		if response["status"] != "healthy" {
			t.Errorf("status = %v, want healthy", response["status"])
		}
		if response["service"] != "shelflink-backend" {
			t.Errorf("service = %v, want shelflink-backend", response["service"])
		}
		version, ok := response["version"].(string)
		if !ok || strings.TrimSpace(version) == "" {
			t.Errorf("version = %v, want non-empty string", response["version"])
		}
	})

	t.Run("accepts GET requests only", func(t *testing.T) {
		router := setupTestRouter()

		methods := []string{"POST", "PUT", "DELETE", "PATCH"}

		for _, method := range methods {
			req, _ := http.NewRequest(method, "/health", nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Code != http.StatusNotFound {
				t.Errorf("Method %s: Status = %d, want %d", method, w.Code, http.StatusNotFound)
			}
		}
	})
}

// TestEndpointsWithoutServices tests that unconfigured services answer 503
func TestEndpointsWithoutServices(t *testing.T) {
	router := setupTestRouter()

	endpoints := []struct {
		method string
		path   string
	}{
		{"GET", "/api/v1/products/1/candidates?source_id=1"},
		{"POST", "/api/v1/matches"},
		{"DELETE", "/api/v1/matches?local_product_id=1&external_product_key=a&source_id=1"},
		{"GET", "/api/v1/matches"},
	}

	for _, endpoint := range endpoints {
		t.Run(endpoint.method+" "+endpoint.path, func(t *testing.T) {
			req, _ := http.NewRequest(endpoint.method, endpoint.path, nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Code != http.StatusServiceUnavailable {
				t.Errorf("Status = %d, want %d", w.Code, http.StatusServiceUnavailable)
			}
		})
	}
}

// TestCORSIntegration tests CORS headers work end-to-end with full router
func TestCORSIntegration(t *testing.T) {
	t.Run("health endpoint has CORS for review UI", func(t *testing.T) {
		router := setupTestRouter()

		req, _ := http.NewRequest("GET", "/health", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusOK)
		}

		gotOrigin := w.Header().Get("Access-Control-Allow-Origin")
		if gotOrigin != "http://localhost:3000" {
			t.Errorf("Access-Control-Allow-Origin = %q, want %q", gotOrigin, "http://localhost:3000")
		}

		gotCreds := w.Header().Get("Access-Control-Allow-Credentials")
		if gotCreds != "true" {
			t.Errorf("Access-Control-Allow-Credentials = %q, want %q", gotCreds, "true")
		}
	})
}

// TestRecoveryMiddleware tests panic recovery
func TestRecoveryMiddleware(t *testing.T) {
	t.Run("recovers from panic without crashing server", func(t *testing.T) {
		router := setupTestRouter()

		// Add a test route that panics
		router.GET("/panic", func(c *gin.Context) {
			panic("test panic")
		})

		req, _ := http.NewRequest("GET", "/panic", nil)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		// Gin's default recovery returns 500
		if w.Code != http.StatusInternalServerError {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusInternalServerError)
		}
	})
}

// TestRateLimitMiddleware tests the per-IP limiter end-to-end
func TestRateLimitMiddleware(t *testing.T) {
	t.Run("rejects requests beyond the per-minute budget", func(t *testing.T) {
		router := gin.New()
		router.Use(RateLimitMiddleware(10))
		router.GET("/test", func(c *gin.Context) {
			c.String(http.StatusOK, "OK")
		})

		var limited bool
		for i := 0; i < 50; i++ {
			req := httptest.NewRequest("GET", "/test", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			if w.Code == http.StatusTooManyRequests {
				limited = true
				break
			}
		}

		if !limited {
			t.Error("expected at least one 429 after exhausting the burst")
		}
	})

	t.Run("disabled when per-minute budget is zero", func(t *testing.T) {
		router := gin.New()
		router.Use(RateLimitMiddleware(0))
		router.GET("/test", func(c *gin.Context) {
			c.String(http.StatusOK, "OK")
		})

		for i := 0; i < 200; i++ {
			req := httptest.NewRequest("GET", "/test", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			if w.Code != http.StatusOK {
				t.Fatalf("request %d: Status = %d, want %d", i, w.Code, http.StatusOK)
			}
		}
	})
}

// --- In-memory fakes for testing with real services ---

type fakeCatalog struct {
	internal  map[int64]domain.InternalProduct
	externals []domain.ExternalProduct
	sources   map[int64]domain.Source
}

func (f *fakeCatalog) LoadInternalPage(ctx context.Context, limit, offset int) ([]domain.InternalProduct, error) {
	return nil, nil
}

func (f *fakeCatalog) LoadExternalPage(ctx context.Context, limit, offset int, sourceID int64) ([]domain.ExternalProduct, error) {
	if offset >= len(f.externals) {
		return nil, nil
	}
	end := offset + limit
	if end > len(f.externals) {
		end = len(f.externals)
	}
	return f.externals[offset:end], nil
}

func (f *fakeCatalog) GetInternalProduct(ctx context.Context, id int64) (*domain.InternalProduct, error) {
	if p, ok := f.internal[id]; ok {
		return &p, nil
	}
	return nil, domain.ErrProductNotFound
}

func (f *fakeCatalog) GetSource(ctx context.Context, id int64) (*domain.Source, error) {
	if s, ok := f.sources[id]; ok {
		return &s, nil
	}
	return nil, domain.ErrSourceNotFound
}

func (f *fakeCatalog) ListSources(ctx context.Context) ([]domain.Source, error) {
	var out []domain.Source
	for _, s := range f.sources {
		out = append(out, s)
	}
	return out, nil
}

type fakeMatchRepo struct {
	records []domain.MatchRecord
}

func (f *fakeMatchRepo) Create(ctx context.Context, record *domain.MatchRecord) error {
	if record.Status == domain.StatusMatched {
		for _, existing := range f.records {
			if existing.Status == domain.StatusMatched && existing.Pair() == record.Pair() {
				return domain.ErrMatchConflict
			}
		}
	}
	f.records = append(f.records, *record)
	return nil
}

func (f *fakeMatchRepo) Supersede(ctx context.Context, pair domain.PairKey, updatedBy string) error {
	for i := range f.records {
		if f.records[i].Status == domain.StatusMatched && f.records[i].Pair() == pair {
			f.records[i].Status = domain.StatusSuperseded
			f.records[i].UpdatedBy = updatedBy
			f.records[i].Version++
			return nil
		}
	}
	return domain.ErrMatchNotFound
}

func (f *fakeMatchRepo) List(ctx context.Context, filter domain.MatchFilter) ([]domain.MatchRecord, error) {
	var out []domain.MatchRecord
	for _, r := range f.records {
		if filter.LocalProductID != nil && r.LocalProductID != *filter.LocalProductID {
			continue
		}
		if filter.Status != nil && r.Status != *filter.Status {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeMatchRepo) DecidedPairs(ctx context.Context, localProductID, sourceID int64) (map[string]domain.MatchStatus, error) {
	decided := make(map[string]domain.MatchStatus)
	for _, r := range f.records {
		if r.LocalProductID == localProductID && r.SourceID == sourceID && r.Status != domain.StatusSuperseded {
			decided[r.ExternalProductKey] = r.Status
		}
	}
	return decided, nil
}

func strPtr(s string) *string { return &s }

// setupTestRouterWithServices wires real services over in-memory fakes.
func setupTestRouterWithServices(catalog *fakeCatalog, matches *fakeMatchRepo) *gin.Engine {
	engine := usecase.NewMatchingService(usecase.DefaultMatchingConfig(), usecase.DefaultTaxonomy(), nil, nil)
	candidateService := usecase.NewCandidateService(catalog, matches, engine, nil, usecase.CandidateServiceConfig{
		PageSize: 100,
		CacheTTL: time.Minute,
	}, nil)
	matchService := usecase.NewMatchService(matches, nil)

	handler := NewHandler(candidateService, matchService, nil)
	return SetupRouter(testConfig(), handler)
}

func seededCatalog() *fakeCatalog {
	return &fakeCatalog{
		internal: map[int64]domain.InternalProduct{
			42: {ID: 42, Title: "Pampers Swaddlers Diapers Size 2, 84 Count", Brand: strPtr("Pampers")},
		},
		externals: []domain.ExternalProduct{
			{ID: 1, SourceID: 7, ExternalKey: "ext-100", Title: "Pampers Swaddlers Diapers Size 2 84 ct", Brand: strPtr("Pampers")},
			{ID: 2, SourceID: 7, ExternalKey: "ext-200", Title: "Garden Hose 50ft"},
		},
		sources: map[int64]domain.Source{
			7: {ID: 7, Code: "acme", Name: "Acme Baby"},
		},
	}
}

// TestGetCandidatesEndpoint tests candidate lookup end-to-end
func TestGetCandidatesEndpoint(t *testing.T) {
	t.Run("returns ranked candidates for a known product", func(t *testing.T) {
		router := setupTestRouterWithServices(seededCatalog(), &fakeMatchRepo{})

		req, _ := http.NewRequest("GET", "/api/v1/products/42/candidates?source_id=7", nil)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("Status = %d, want %d, body: %s", w.Code, http.StatusOK, w.Body.String())
		}

		var response struct {
			ProductID  int64                   `json:"productId"`
			SourceID   int64                   `json:"sourceId"`
			Candidates []domain.MatchCandidate `json:"candidates"`
			Count      int                     `json:"count"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
			t.Fatalf("Failed to unmarshal response: %v", err)
		}

		if response.ProductID != 42 {
			t.Errorf("productId = %d, want 42", response.ProductID)
		}
		if response.Count == 0 {
			t.Fatal("expected at least one candidate")
		}
		if response.Candidates[0].ExternalKey != "ext-100" {
			t.Errorf("top candidate = %s, want ext-100", response.Candidates[0].ExternalKey)
		}
	})

	t.Run("annotates already-decided pairs", func(t *testing.T) {
		matches := &fakeMatchRepo{}
		matches.records = append(matches.records, domain.MatchRecord{
			ID:                 uuid.New(),
			LocalProductID:     42,
			ExternalProductKey: "ext-100",
			SourceID:           7,
			Status:             domain.StatusMatched,
		})

		router := setupTestRouterWithServices(seededCatalog(), matches)

		req, _ := http.NewRequest("GET", "/api/v1/products/42/candidates?source_id=7", nil)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("Status = %d, want %d", w.Code, http.StatusOK)
		}

		var response struct {
			Candidates []domain.MatchCandidate `json:"candidates"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
			t.Fatalf("Failed to unmarshal response: %v", err)
		}

		var annotated bool
		for _, c := range response.Candidates {
			if c.ExternalKey == "ext-100" && c.DecidedStatus != nil && *c.DecidedStatus == domain.StatusMatched {
				annotated = true
			}
		}
		if !annotated {
			t.Error("expected ext-100 to carry decidedStatus=matched")
		}
	})

	t.Run("returns 404 for unknown product", func(t *testing.T) {
		router := setupTestRouterWithServices(seededCatalog(), &fakeMatchRepo{})

		req, _ := http.NewRequest("GET", "/api/v1/products/999/candidates?source_id=7", nil)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		if w.Code != http.StatusNotFound {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusNotFound)
		}
	})

	t.Run("returns 400 when source_id is missing", func(t *testing.T) {
		router := setupTestRouterWithServices(seededCatalog(), &fakeMatchRepo{})

		req, _ := http.NewRequest("GET", "/api/v1/products/42/candidates", nil)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusBadRequest)
		}
	})
}

// TestMatchLifecycleEndpoints tests create, conflict, remove and list
func TestMatchLifecycleEndpoints(t *testing.T) {
	t.Run("create then conflict then remove then re-create", func(t *testing.T) {
		router := setupTestRouterWithServices(seededCatalog(), &fakeMatchRepo{})

		payload := `{"localProductId":42,"externalProductKey":"ext-100","sourceId":7,"score":0.91,"reviewedBy":"dana"}`

		// Create
		req, _ := http.NewRequest("POST", "/api/v1/matches", strings.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusCreated {
			t.Fatalf("create: Status = %d, want %d, body: %s", w.Code, http.StatusCreated, w.Body.String())
		}

		var record domain.MatchRecord
		if err := json.Unmarshal(w.Body.Bytes(), &record); err != nil {
			t.Fatalf("Failed to unmarshal record: %v", err)
		}
		if record.Status != domain.StatusMatched {
			t.Errorf("status = %s, want matched", record.Status)
		}
		if record.Version != 1 {
			t.Errorf("version = %d, want 1", record.Version)
		}

		// Same pair again conflicts
		req, _ = http.NewRequest("POST", "/api/v1/matches", strings.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		w = httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusConflict {
			t.Fatalf("duplicate: Status = %d, want %d", w.Code, http.StatusConflict)
		}

		// Remove
		req, _ = http.NewRequest("DELETE", "/api/v1/matches?local_product_id=42&external_product_key=ext-100&source_id=7", nil)
		req.Header.Set("X-Reviewer", "dana")
		w = httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusNoContent {
			t.Fatalf("remove: Status = %d, want %d", w.Code, http.StatusNoContent)
		}

		// Pair is free again
		req, _ = http.NewRequest("POST", "/api/v1/matches", strings.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		w = httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusCreated {
			t.Fatalf("re-create: Status = %d, want %d", w.Code, http.StatusCreated)
		}
	})

	t.Run("returns 400 for invalid JSON", func(t *testing.T) {
		router := setupTestRouterWithServices(seededCatalog(), &fakeMatchRepo{})

		req, _ := http.NewRequest("POST", "/api/v1/matches", strings.NewReader(`{invalid json}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusBadRequest)
		}
	})

	t.Run("returns 404 when removing a match that does not exist", func(t *testing.T) {
		router := setupTestRouterWithServices(seededCatalog(), &fakeMatchRepo{})

		req, _ := http.NewRequest("DELETE", "/api/v1/matches?local_product_id=42&external_product_key=ext-999&source_id=7", nil)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		if w.Code != http.StatusNotFound {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusNotFound)
		}
	})

	t.Run("lists matches filtered by status", func(t *testing.T) {
		matches := &fakeMatchRepo{}
		router := setupTestRouterWithServices(seededCatalog(), matches)

		payload := `{"localProductId":42,"externalProductKey":"ext-100","sourceId":7,"status":"not_matched"}`
		req, _ := http.NewRequest("POST", "/api/v1/matches", strings.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusCreated {
			t.Fatalf("create: Status = %d, want %d", w.Code, http.StatusCreated)
		}

		req, _ = http.NewRequest("GET", "/api/v1/matches?status=not_matched", nil)
		w = httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("list: Status = %d, want %d", w.Code, http.StatusOK)
		}

		var response struct {
			Matches []domain.MatchRecord `json:"matches"`
			Count   int                  `json:"count"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
			t.Fatalf("Failed to unmarshal response: %v", err)
		}
		if response.Count != 1 {
			t.Errorf("count = %d, want 1", response.Count)
		}
	})

	t.Run("returns 400 for unknown status filter", func(t *testing.T) {
		router := setupTestRouterWithServices(seededCatalog(), &fakeMatchRepo{})

		req, _ := http.NewRequest("GET", "/api/v1/matches?status=bogus", nil)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusBadRequest)
		}
	})
}

// TestJSONResponses tests that all responses are valid JSON
func TestJSONResponses(t *testing.T) {
	endpoints := []struct {
		method string
		path   string
	}{
		{"GET", "/health"},
		{"GET", "/api/v1/matches"},
	}

	for _, endpoint := range endpoints {
		t.Run(endpoint.method+" "+endpoint.path, func(t *testing.T) {
			router := setupTestRouterWithServices(seededCatalog(), &fakeMatchRepo{})

			req, _ := http.NewRequest(endpoint.method, endpoint.path, nil)
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			gotContentType := w.Header().Get("Content-Type")
			wantContentType := "application/json; charset=utf-8"
			if gotContentType != wantContentType {
				t.Errorf("Content-Type = %q, want %q", gotContentType, wantContentType)
			}

			var response map[string]interface{}
			if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
				t.Errorf("Response should be valid JSON, got error: %v", err)
			}
		})
	}
}
