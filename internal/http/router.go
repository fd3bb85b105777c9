// Package httpapi wires the Gin transport to the conversation router. It
// owns middleware order, CORS and security posture, the health, metrics and
// Swagger endpoints, and the versioned chat routes.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/tbourn/don-confiado-backend/docs"
	"github.com/tbourn/don-confiado-backend/internal/config"
	"github.com/tbourn/don-confiado-backend/internal/http/handlers"
	"github.com/tbourn/don-confiado-backend/internal/http/middleware"
)

// maxBodyBytes caps request bodies. Chat messages are bounded by
// MAX_MESSAGE_RUNES well below this.
const maxBodyBytes = 1 << 20

// Deps are the collaborators of the HTTP layer.
type Deps struct {
	Chat        handlers.ChatService
	Idempotency handlers.IdempotencyStore
	// Ready reports whether the record store has credentials. Optional.
	Ready func() bool
}

// RegisterRoutes attaches middleware and endpoints to r.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: request logger and scrubbed access log
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Gzip (responses only, /metrics excluded)
//  7. Metrics
//  8. Idempotency-Key validation
//  9. CORS and security headers
func RegisterRoutes(r *gin.Engine, d Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{"X-API-Key"},
	}))
	r.Use(middleware.Recovery())
	r.Use(limitBody(maxBodyBytes))
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.Use(middleware.IdempotencyValidator(middleware.IdempotencyOptions{MaxLen: 200}))

	r.Use(cors.New(corsConfig(cfg.CORS)))
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:    cfg.Security.EnableHSTS,
		HSTSMaxAge:    cfg.Security.HSTSMaxAge,
		NoStore:       true,
		EnablePolicy:  true,
		ExposeHeaders: []string{middleware.HeaderIdempotencyReplayed},
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", health(d.Ready))

	apiBase := cfg.APIBasePath
	if cfg.SwaggerEnabled {
		docs.SwaggerInfo.BasePath = apiBase
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	h := handlers.New(d.Chat, handlers.Options{
		Idempotency:     d.Idempotency,
		MaxMessageRunes: cfg.MaxMessageRunes,
	})
	api := groupWithPrefix(r, apiBase)
	{
		api.POST("/chat_v1.0", h.ChatV10)
		api.POST("/chat_v1.1", h.ChatV11)
	}
}

// corsConfig allows every origin when none is configured. Credentials stay
// off in both cases since the API carries no cookies.
func corsConfig(c config.CORSConfig) cors.Config {
	out := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-Request-ID", middleware.HeaderIdempotencyKey},
		ExposeHeaders:    []string{"X-Request-ID", "Content-Length", middleware.HeaderIdempotencyReplayed},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(c.AllowedOrigins) == 0 {
		out.AllowAllOrigins = true
	} else {
		out.AllowOrigins = c.AllowedOrigins
	}
	return out
}

type healthResponse struct {
	Status      string `json:"status"`
	Persistence string `json:"persistence,omitempty"`
}

// health always answers 200 while the process serves traffic. Missing
// record-store credentials are reported, not treated as unhealthy, because
// the chat flow degrades to a conversational error.
func health(ready func() bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp := healthResponse{Status: "ok"}
		if ready != nil {
			resp.Persistence = "ready"
			if !ready() {
				resp.Persistence = "missing_credentials"
			}
		}
		c.JSON(http.StatusOK, resp)
	}
}

// limitBody caps the request body at maxBytes; reads past the cap fail.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
