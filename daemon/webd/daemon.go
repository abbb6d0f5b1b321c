package webd

import (
	"log"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/halocircle/guardd/app"
	"github.com/halocircle/guardd/params"
	"github.com/halocircle/guardd/state"
	"github.com/halocircle/guardd/types/fix"
	"github.com/olahol/melody"
)

// WebDaemon ingests fixes over HTTP and serves the derived state back.
// Sessions here are ingest-only: fixes arrive via /populate, not a device
// subscription, so there is no watcher and battery falls back to the
// drain model.
type WebDaemon struct {
	Config *params.WebDaemonConfig

	logger         *slog.Logger
	melodyInstance *melody.Melody
	store          *state.Store
	started        time.Time

	mu       sync.Mutex
	sessions map[fix.UserID]*app.Session
}

func NewWebDaemon(config *params.WebDaemonConfig) *WebDaemon {
	if config == nil {
		config = params.DefaultWebDaemonConfig()
	}
	return &WebDaemon{
		Config:   config,
		logger:   slog.With("d", "web"),
		store:    state.NewStore(config.DataDir),
		started:  time.Now(),
		sessions: map[fix.UserID]*app.Session{},
	}
}

// Run starts the HTTP server (ListenAndServe) and waits for it,
// returning any server error.
func (s *WebDaemon) Run() error {
	router := s.NewRouter()
	http.Handle("/", router)
	log.Printf("Starting web daemon on %s", s.Config.Address)
	return http.ListenAndServe(s.Config.Address, nil)
}

func (s *WebDaemon) Close() error {
	return s.store.Close()
}

func (s *WebDaemon) NewRouter() *mux.Router {
	s.initMelody()

	router := mux.NewRouter().StrictSlash(false)
	router.Use(loggingMiddleware)

	router.Path("/socket").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = s.melodyInstance.HandleRequest(w, r)
	})

	apiRoutes := router.NewRoute().Subrouter()

	// All API routes use permissive CORS settings.
	apiRoutes.Use(permissiveCorsMiddleware)

	// /ping is a simple server healthcheck endpoint
	apiRoutes.Path("/ping").HandlerFunc(pingPong)

	apiJSONRoutes := apiRoutes.NewRoute().Subrouter()
	apiJSONRoutes.Use(contentTypeMiddlewareFunc("application/json"))

	apiJSONRoutes.Path("/status").HandlerFunc(s.statusReport).Methods(http.MethodGet)
	apiJSONRoutes.Path("/last").HandlerFunc(s.handleLastKnown).Methods(http.MethodGet)
	apiJSONRoutes.Path("/last/{user}").HandlerFunc(s.handleLastKnown).Methods(http.MethodGet)
	apiJSONRoutes.Path("/reward/{user}").HandlerFunc(s.handleRewardState).Methods(http.MethodGet)

	authenticatedAPIRoutes := apiJSONRoutes.NewRoute().Subrouter()
	authenticatedAPIRoutes.Use(tokenAuthenticationMiddleware)

	authenticatedAPIRoutes.Path("/populate/").HandlerFunc(s.handlePopulate).Methods(http.MethodPost)
	authenticatedAPIRoutes.Path("/populate").HandlerFunc(s.handlePopulate).Methods(http.MethodPost)

	return router
}

// sessionFor returns the ingest session for a user, creating it on first
// use. Sessions share the daemon's store and live for the daemon's life.
func (s *WebDaemon) sessionFor(user fix.UserID) *app.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[user]; ok {
		return sess
	}
	sess := app.NewSession(user, app.Options{Store: s.store})
	s.sessions[user] = sess
	return sess
}
