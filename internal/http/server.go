package httpx

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Router registers a resource's routes on the group it is mounted under.
type Router interface {
	Register(rg *gin.RouterGroup)
}

// RouterFunc adapts a plain function to Router.
type RouterFunc func(rg *gin.RouterGroup)

func (f RouterFunc) Register(rg *gin.RouterGroup) { f(rg) }

// Option configures NewServer.
type Option func(*serverConfig)

type serverConfig struct {
	bodyLimit     int64
	enableLogging bool
	rateLimiter   RateLimiter
}

// WithBodyLimit caps JSON request bodies at limit bytes.
func WithBodyLimit(limit int64) Option {
	return func(cfg *serverConfig) {
		if limit > 0 {
			cfg.bodyLimit = limit
		}
	}
}

// WithLogging controls whether access logs are emitted.
func WithLogging(enabled bool) Option {
	return func(cfg *serverConfig) {
		cfg.enableLogging = enabled
	}
}

// WithRateLimit enables a token bucket limiter. Zero rps or burst disables it.
func WithRateLimit(rps float64, burst int) Option {
	return func(cfg *serverConfig) {
		if rps <= 0 || burst <= 0 {
			cfg.rateLimiter = nil
			return
		}
		cfg.rateLimiter = newTokenBucketLimiter(rps, burst)
	}
}

// WithRateLimiter overrides the request rate limiter (primarily for tests).
func WithRateLimiter(limiter RateLimiter) Option {
	return func(cfg *serverConfig) {
		cfg.rateLimiter = limiter
	}
}

type Server struct {
	R *gin.Engine
}

// NewServer builds the engine with its global pipeline: recovery, access
// logs, CORS, rate limiting, then JSON body parsing. Routes are added with Mount.
func NewServer(logger *zap.Logger, opts ...Option) *Server {
	cfg := serverConfig{
		bodyLimit:     100 * 1024,
		enableLogging: true,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(recovery(logger))
	if cfg.enableLogging {
		r.Use(requestLogger(logger))
	}
	r.Use(cors.New(corsConfig()))
	if cfg.rateLimiter != nil {
		r.Use(rateLimit(cfg.rateLimiter))
	}
	r.Use(JSONBody(cfg.bodyLimit))

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	return &Server{R: r}
}

// corsConfig allows every origin and adds the auth and XHR headers to
// gin-contrib's defaults.
func corsConfig() cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowAllOrigins = true
	cfg.AddAllowHeaders("Authorization", "Accept", "X-Requested-With")
	return cfg
}

// Mount hands router its own group under prefix.
func (s *Server) Mount(prefix string, router Router) {
	router.Register(s.R.Group(prefix))
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.R.ServeHTTP(w, r)
}
