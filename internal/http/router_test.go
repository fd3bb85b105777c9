package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/don-confiado-backend/internal/config"
	"github.com/tbourn/don-confiado-backend/internal/domain"
	"github.com/tbourn/don-confiado-backend/internal/http/middleware"
	"github.com/tbourn/don-confiado-backend/internal/llm"
	"github.com/tbourn/don-confiado-backend/internal/llm/llmtest"
	"github.com/tbourn/don-confiado-backend/internal/memory"
	"github.com/tbourn/don-confiado-backend/internal/prompt"
	"github.com/tbourn/don-confiado-backend/internal/repo"
	"github.com/tbourn/don-confiado-backend/internal/services"
)

func testConfig() config.Config {
	return config.Config{
		APIBasePath:     "/api",
		MaxMessageRunes: 500,
		IdempotencyTTL:  time.Hour,
		Security:        config.SecurityConfig{HSTSMaxAge: time.Hour},
		OTEL:            config.OTELConfig{ServiceName: "test-svc"},
	}
}

type pipeline struct {
	engine *gin.Engine
	model  *llmtest.Fake
	mem    *memory.InMemory
}

// newPipeline wires the real router, services and a local SQLite record
// store behind a scripted model.
func newPipeline(t *testing.T, cfg config.Config, replies ...any) *pipeline {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := repo.OpenSQLite(fmt.Sprintf("file:router_%s?mode=memory&cache=shared", uuid.NewString()))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		t.Cleanup(func() { _ = sqlDB.Close() })
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := repo.MigrateRecords(db); err != nil {
		t.Fatalf("migrate records: %v", err)
	}

	p := &pipeline{model: llmtest.New(replies...), mem: memory.NewInMemory()}
	persister := repo.NewGorm(db)
	chat := services.NewRouter(services.Deps{
		Model:           p.model,
		Memory:          p.mem,
		Persister:       persister,
		Prompts:         prompt.Default(),
		MaxMessageRunes: cfg.MaxMessageRunes,
	})

	p.engine = gin.New()
	RegisterRoutes(p.engine, Deps{
		Chat:        chat,
		Idempotency: repo.NewIdempotencyStore(db, cfg.IdempotencyTTL),
		Ready:       func() bool { return persister.Ready() == nil },
	}, cfg)
	return p
}

func (p *pipeline) do(method, path, body string, headers ...string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	p.engine.ServeHTTP(w, req)
	return w
}

func TestRegisterRoutes_HealthMetricsFallbacks(t *testing.T) {
	p := newPipeline(t, testConfig())

	w := p.do(http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := strings.TrimSpace(w.Body.String()); got != `{"status":"ok","persistence":"ready"}` {
		t.Fatalf("health body = %s", got)
	}
	if w.Header().Get("X-Request-ID") == "" || w.Header().Get("Cache-Control") != "no-store" {
		t.Fatalf("missing pipeline headers: %#v", w.Header())
	}

	w = p.do(http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "http_requests_total") {
		t.Fatalf("GET /metrics: code=%d", w.Code)
	}

	w = p.do(http.MethodGet, "/nope", "")
	if w.Code != http.StatusNotFound || !strings.Contains(w.Body.String(), `"code":"not_found"`) {
		t.Fatalf("GET /nope = %d %s", w.Code, w.Body.String())
	}

	w = p.do(http.MethodGet, "/api/chat_v1.1", "")
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET /api/chat_v1.1 = %d, want 405", w.Code)
	}

	if w := p.do(http.MethodGet, "/swagger/index.html", ""); w.Code != http.StatusNotFound {
		t.Fatalf("swagger must be off by default, got %d", w.Code)
	}
}

func TestRegisterRoutes_Swagger(t *testing.T) {
	cfg := testConfig()
	cfg.SwaggerEnabled = true
	p := newPipeline(t, cfg)

	w := p.do(http.MethodGet, "/swagger/doc.json", "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /swagger/doc.json = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "/chat_v1.1") {
		t.Fatalf("doc.json does not describe the chat routes")
	}
}

func TestRegisterRoutes_CORS(t *testing.T) {
	p := newPipeline(t, testConfig())
	w := p.do(http.MethodGet, "/health", "", "Origin", "http://anywhere.test")
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("allow-all ACAO = %q", got)
	}

	cfg := testConfig()
	cfg.CORS.AllowedOrigins = []string{"http://tienda.test"}
	p = newPipeline(t, cfg)
	w = p.do(http.MethodGet, "/health", "", "Origin", "http://tienda.test")
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://tienda.test" {
		t.Fatalf("allow-list ACAO = %q", got)
	}
	w = p.do(http.MethodGet, "/health", "", "Origin", "http://evil.test")
	if w.Code != http.StatusForbidden {
		t.Fatalf("foreign origin = %d, want 403", w.Code)
	}
}

func TestRegisterRoutes_ChatV10(t *testing.T) {
	p := newPipeline(t, testConfig(), "¡Hola! Soy Don Confiado.")

	w := p.do(http.MethodPost, "/api/chat_v1.0", `{"user_id":"u1","message":"Hola"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var env map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("json: %v", err)
	}
	if len(env) != 1 || env["reply"] != "¡Hola! Soy Don Confiado." {
		t.Fatalf("v1.0 body = %v", env)
	}
	if n := len(p.mem.Turns(context.Background(), "u1")); n != 2 {
		t.Fatalf("turns = %d, want 2", n)
	}
}

func TestRegisterRoutes_ChatV11_ProductCreatedAndReplayed(t *testing.T) {
	p := newPipeline(t, testConfig(),
		`{"intent":"Create_product"}`,
		`{"is_complete":true,"missing_fields":[]}`,
		`{"sku":"ARZ-1","nombre":"Arroz Diana","precio_venta":3200,"cantidad":"24","proveedor_id":"7"}`,
		"¡Listo! Registré el producto Arroz Diana.",
	)
	body := `{"user_id":"u1","message":"Crear producto ARZ-1 Arroz Diana a 3200, 24 unidades, proveedor 7"}`

	first := p.do(http.MethodPost, "/api/chat_v1.1", body, middleware.HeaderIdempotencyKey, "order-1")
	if first.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", first.Code, first.Body.String())
	}
	var env domain.Envelope
	if err := json.Unmarshal(first.Body.Bytes(), &env); err != nil {
		t.Fatalf("json: %v", err)
	}
	if env.UserIntention != domain.IntentCreateProduct || env.Status != domain.StatusCreated {
		t.Fatalf("envelope = %+v", env)
	}
	if len(env.Data) != 1 || env.Data[0]["nombre"] != "Arroz Diana" || env.Data[0]["cantidad"] != float64(24) {
		t.Fatalf("data = %v", env.Data)
	}
	calls := len(p.model.Calls)

	second := p.do(http.MethodPost, "/api/chat_v1.1", body, middleware.HeaderIdempotencyKey, "order-1")
	if second.Code != http.StatusOK || second.Header().Get(middleware.HeaderIdempotencyReplayed) != "true" {
		t.Fatalf("replay: status %d header %q", second.Code, second.Header().Get(middleware.HeaderIdempotencyReplayed))
	}
	if !bytes.Equal(first.Body.Bytes(), second.Body.Bytes()) {
		t.Fatalf("replayed body differs")
	}
	if len(p.model.Calls) != calls {
		t.Fatalf("replay reached the model")
	}
}

func TestRegisterRoutes_ChatV11_Errors(t *testing.T) {
	p := newPipeline(t, testConfig(), fmt.Errorf("%w: quota exceeded", llm.ErrModelInvoke))

	w := p.do(http.MethodPost, "/api/chat_v1.1", `{"user_id":"u1","message":"hola"}`)
	if w.Code != http.StatusBadGateway || !strings.Contains(w.Body.String(), `"code":"model_failed"`) {
		t.Fatalf("model failure = %d %s", w.Code, w.Body.String())
	}

	w = p.do(http.MethodPost, "/api/chat_v1.1", `{"user_id":"u1","message":"hola"}`, middleware.HeaderIdempotencyKey, "bad key!")
	if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), "bad_idempotency_key") {
		t.Fatalf("bad key = %d %s", w.Code, w.Body.String())
	}

	big := `{"user_id":"u1","message":"` + strings.Repeat("a", maxBodyBytes) + `"}`
	w = p.do(http.MethodPost, "/api/chat_v1.1", big)
	if w.Code != http.StatusRequestEntityTooLarge || !strings.Contains(w.Body.String(), `"code":"request_too_large"`) {
		t.Fatalf("oversized body = %d %s", w.Code, w.Body.String())
	}
}

func Test_limitBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(limitBody(10))
	r.POST("/echo", func(c *gin.Context) {
		if _, err := io.ReadAll(c.Request.Body); err != nil {
			c.String(http.StatusRequestEntityTooLarge, "too big")
			return
		}
		c.String(http.StatusOK, "ok")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/echo", bytes.NewBufferString("0123456789AB")))
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 from limitBody, got %d", w.Code)
	}
}

func Test_groupWithPrefix(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	groupWithPrefix(r, "/").GET("/one", func(c *gin.Context) { c.String(http.StatusOK, "one") })
	groupWithPrefix(r, "").GET("/two", func(c *gin.Context) { c.String(http.StatusOK, "two") })
	groupWithPrefix(r, "/api").GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	for path, want := range map[string]string{"/one": "one", "/two": "two", "/api/ping": "pong"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK || w.Body.String() != want {
			t.Fatalf("GET %s = %d %q", path, w.Code, w.Body.String())
		}
	}
}
