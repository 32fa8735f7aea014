package api

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"graphguard/internal/dsl"
	"graphguard/internal/metrics"
	"graphguard/internal/reference"
	"graphguard/internal/storage"
	"graphguard/internal/validation"

	"github.com/gin-gonic/gin"
)

// Engine — всё, что зависит от загруженной схемы. При reload заменяется целиком.
type Engine struct {
	Registry  *dsl.Registry
	Enums     reference.Catalog
	Finder    storage.Finder // может быть nil
	Validator *validation.Validator
}

// Builder собирает Engine для новой схемы: хранилище, сиды, валидатор
type Builder func(ctx context.Context, reg *dsl.Registry, enums reference.Catalog) (*Engine, error)

// Server — HTTP-поверхность над текущим Engine
type Server struct {
	mu     sync.RWMutex
	engine *Engine

	build     Builder
	dslRoot   string
	enumsRoot string

	log     *slog.Logger
	metrics *metrics.Collector // nil: /metrics не публикуется
}

type Option func(*Server)

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

func WithMetrics(m *metrics.Collector) Option {
	return func(s *Server) { s.metrics = m }
}

// WithReload — откуда admin/reload берёт схему по умолчанию и как собирает новый Engine
func WithReload(build Builder, dslRoot, enumsRoot string) Option {
	return func(s *Server) {
		s.build = build
		s.dslRoot = dslRoot
		s.enumsRoot = enumsRoot
	}
}

func NewServer(e *Engine, opts ...Option) *Server {
	s := &Server{engine: e, log: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// current — снимок Engine на время одного запроса
func (s *Server) current() *Engine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

func (s *Server) swap(e *Engine) {
	s.mu.Lock()
	s.engine = e
	s.mu.Unlock()
}

// Router — все маршруты; gin.Default() с логгером и recovery, как раньше
func (s *Server) Router() *gin.Engine {
	r := gin.Default()
	if s.metrics != nil {
		r.Use(s.observe)
		r.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/meta", s.MetaListHandler)
		apiGroup.GET("/meta/:module/:entity", s.MetaEntityHandler)
		apiGroup.GET("/meta/catalogs/:name", s.MetaCatalogHandler)

		apiGroup.GET("/admin/schema_lint", s.SchemaLintHandler)
		apiGroup.POST("/admin/reload", s.AdminReloadHandler)

		// служебные маршруты: СНАЧАЛА
		apiGroup.POST("/:module/:entity/_validate", s.ValidateHandler)
		apiGroup.POST("/:module/:entity/:id/_validate_delete", s.ValidateDeleteHandler)
		apiGroup.GET("/:module/:entity/_find", s.FindHandler)

		apiGroup.GET("/:module/:entity/:id", s.GetOneHandler)
	}
	return r
}

func (s *Server) observe(c *gin.Context) {
	c.Next()
	s.metrics.ObserveRequest(c.FullPath(), c.Writer.Status())
}

// Run — блокирующий запуск; останавливается по отмене ctx
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Router()}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		s.log.Info("shutting down", "addr", addr)
		return srv.Shutdown(context.Background())
	}
}

// resolve — сущность по паре из URL, без учёта регистра
func (e *Engine) resolve(module, entity string) (*dsl.Entity, bool) {
	if fqn, ok := e.Registry.NormalizeEntityName(module, entity); ok {
		return e.Registry.Lookup(fqn)
	}
	return nil, false
}
