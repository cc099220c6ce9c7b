package server

import (
	"context"
	"encoding/json"
	"errors"
	"expvar"
	"fmt"
	muxhandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"net"
	"net/http"
	"time"
)

const shutdownTimeout = 30 * time.Second

// AdminHandler serves the operational endpoints on their own listener so they
// can stay off the public port. Requests are access-logged through logrus.
func (s *Server) AdminHandler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.restrictAdmin)
	r.Handle("/sys/health", expvar.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/sys/info", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, runtimeInfo())
	}).Methods(http.MethodGet)

	var h http.Handler = r
	if s.stat != nil {
		r.HandleFunc("/sys/stats", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, s.stat.GatherData())
		}).Methods(http.MethodGet)
		h = s.stat.WrapHandler(r)
	}

	return muxhandlers.LoggingHandler(log.StandardLogger().WriterLevel(log.InfoLevel), h)
}

// Run serves the API on the configured port, and the admin endpoints when an
// admin port is set, until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	servers := []*http.Server{{
		Addr:    fmt.Sprintf(":%d", s.config.Port),
		Handler: s,
	}}
	if s.config.AdminPort > 0 {
		servers = append(servers, &http.Server{
			Addr:    fmt.Sprintf(":%d", s.config.AdminPort),
			Handler: s.AdminHandler(),
		})
	}

	errs := make(chan error, len(servers))
	for _, srv := range servers {
		go func(srv *http.Server) {
			log.WithField("addr", srv.Addr).Info("starting HTTP server")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errs <- fmt.Errorf("serve %s: %w", srv.Addr, err)
			}
		}(srv)
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errs:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).WithField("addr", srv.Addr).Error("graceful shutdown failed")
		}
	}
	if s.stat != nil {
		s.stat.Close()
	}

	return runErr
}

func (s *Server) restrictAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		if !ipAllowed(s.config.Options.AllowedIPAddresses, host) {
			http.Error(w, "Unauthorized access", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Error("error encoding response")
	}
}
