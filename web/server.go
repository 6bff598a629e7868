package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"tidbyt.dev/arrivals"
	"tidbyt.dev/arrivals/storage"
	"tidbyt.dev/arrivals/telemetry"
)

// Serves the arrivals board as HTML and JSON.
type Server struct {
	Board          *arrivals.Board
	DefaultStation string

	// Optional. Station names come from StationNames first, and
	// then from Stations.
	StationNames map[string]string
	Stations     *arrivals.Stations

	// Optional. Enables /api/stations/{stationID}/history.
	Log storage.ArrivalLog

	// Optional. Enables /metrics.
	Metrics *telemetry.Metrics

	// Origins allowed to call the JSON API from a browser.
	CORSOrigins []string

	Location *time.Location
	Logger   zerolog.Logger
	TimeNow  func() time.Time

	renderer *Renderer
}

func NewServer(board *arrivals.Board, defaultStation string) (*Server, error) {
	renderer, err := NewRenderer()
	if err != nil {
		return nil, err
	}

	return &Server{
		Board:          board,
		DefaultStation: defaultStation,
		Location:       time.Local,
		Logger:         zerolog.Nop(),
		TimeNow:        time.Now,
		renderer:       renderer,
	}, nil
}

func (s *Server) Handler() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(requestLogger(s.Logger))
	router.Use(middleware.Recoverer)

	router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/stations/"+s.DefaultStation, http.StatusFound)
	})
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	router.Get("/stations/{stationID}", s.handleBoard)

	router.Route("/api", func(r chi.Router) {
		if len(s.CORSOrigins) > 0 {
			r.Use(cors.Handler(cors.Options{
				AllowedOrigins: s.CORSOrigins,
				AllowedMethods: []string{"GET", "OPTIONS"},
				AllowedHeaders: []string{"*"},
			}))
		}
		r.Get("/stations/{stationID}/arrivals", s.handleArrivals)
		if s.Log != nil {
			r.Get("/stations/{stationID}/history", s.handleHistory)
		}
	})

	if s.Metrics != nil {
		router.Handle("/metrics", s.Metrics.Handler())
	}

	return router
}

// Listens on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.Logger.Info().Str("addr", addr).Msg("listening")
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.Logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func (s *Server) stationName(stationID string) string {
	if name, ok := s.StationNames[stationID]; ok {
		return name
	}
	return s.Stations.Name(stationID)
}

func (s *Server) now() time.Time {
	if s.TimeNow != nil {
		return s.TimeNow()
	}
	return time.Now()
}

func (s *Server) arrivals(r *http.Request, stationID string) (*arrivals.Result, error) {
	result, err := s.Board.Arrivals(r.Context(), stationID)
	if s.Metrics != nil {
		matches := 0
		if result != nil {
			matches = len(result.Arrivals)
		}
		s.Metrics.ObserveArrivals(s.Board.FeedURL, stationID, matches, err)
	}
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("station", stationID).Msg("loading arrivals")
	}
	return result, err
}

func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			reqLogger := logger.With().
				Str("request_id", middleware.GetReqID(r.Context())).
				Logger()
			r = r.WithContext(reqLogger.WithContext(r.Context()))

			next.ServeHTTP(ww, r)

			reqLogger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Msg("request")
		})
	}
}
