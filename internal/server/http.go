package server

import (
	"errors"
	"expvar"
	"fmt"
	"github.com/denisschmidt/localstore/config"
	"github.com/denisschmidt/localstore/internal/middleware"
	"github.com/denisschmidt/localstore/internal/stats"
	"github.com/denisschmidt/localstore/internal/store"
	"github.com/denisschmidt/localstore/internal/types"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"net/http"
	"time"
)

// dbError marks a failure inside the store as opposed to a bad request
type dbError struct {
	Err error
}

type Server struct {
	engine *gin.Engine
	config *config.Config
	stat   *stats.Statistic
}

type handlers struct {
	auth    types.Authorizer
	db      store.Store
	backend string
}

func (dbe dbError) Error() string {
	return fmt.Sprintf("database error: %s", dbe.Err)
}

func (dbe dbError) Unwrap() error {
	return dbe.Err
}

// New builds the API engine on top of database. When stats are enabled every
// store call is timed into the same Statistic that backs /sys/stats.
func New(cfg *config.Config, database store.Store, authenticator types.Authorizer) (*Server, error) {
	if cfg.Options == nil {
		cfg.Options = config.DefaultConfig().Options
	}

	s := &Server{
		config: cfg,
	}
	if cfg.Options.EnableStats {
		s.stat = stats.NewStatistic()
		database = stats.InstrumentStore(database, s.stat, stats.MetricLabel{Name: "backend", Value: cfg.Backend})
	}

	s.init(database, authenticator)

	return s, nil
}

func (s *Server) init(database store.Store, authenticator types.Authorizer) {
	if !s.config.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery(), accessLog())

	h := &handlers{
		auth:    authenticator,
		db:      database,
		backend: s.config.Backend,
	}

	if len(s.config.AllowedOrigins) > 0 && len(s.config.AllowedMethods) > 0 {
		corsConfig := cors.Config{
			AllowMethods: s.config.AllowedMethods,
			AllowHeaders: s.config.AllowedHeaders,
			MaxAge:       12 * time.Hour,
		}
		if len(s.config.AllowedOrigins) == 1 && s.config.AllowedOrigins[0] == "*" {
			corsConfig.AllowAllOrigins = true
		} else {
			corsConfig.AllowOrigins = s.config.AllowedOrigins
		}
		router.Use(cors.New(corsConfig))
	}

	router.GET("/healthcheck", h.healthCheck(time.Now().UTC()))

	restrictIPAddresses := RestrictIPAddresses(s.config.Options.AllowedIPAddresses)

	if s.stat != nil {
		router.Use(func(c *gin.Context) {
			startTime := time.Now()
			c.Next()
			s.stat.RecordResponse(startTime, c.Writer.Status(), c.Writer.Size())
		})

		router.GET("/sys/stats", restrictIPAddresses, func(c *gin.Context) {
			c.JSON(http.StatusOK, s.stat.GatherData())
		})
	}

	if s.config.Options.EnableHealth {
		router.GET("/sys/health", restrictIPAddresses, gin.WrapH(expvar.Handler()))
		router.GET("/sys/info", restrictIPAddresses, h.sysInfo())
	}

	router.POST("/api/auth", h.authPost())
	router.DELETE("/api/auth", h.authDelete())
	router.Use(h.checkAuth())

	api := router.Group("/api")
	api.Use(h.requireAuth())
	{
		api.POST("/file", h.filePost())
		api.GET("/files", h.fileList())
		api.GET("/file/:id", h.fileGet())
		api.DELETE("/file/:id", h.fileDelete())
	}

	view := api.Group("/")
	view.Use(middleware.UpgradeToHttps())
	{
		view.GET("/file/:id/raw", h.fileRaw())
	}

	s.engine = router
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.engine.ServeHTTP(w, r)
}

// Statistic is nil unless stats are enabled
func (s *Server) Statistic() *stats.Statistic {
	return s.stat
}

func accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := log.WithFields(log.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"size":     c.Writer.Size(),
			"duration": time.Since(start).String(),
			"client":   c.ClientIP(),
		})
		if len(c.Errors) > 0 {
			entry.WithError(errors.New(c.Errors.String())).Warn("request failed")
			return
		}
		entry.Debug("request")
	}
}
