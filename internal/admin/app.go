package admin

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/isqad/livelook-bridge/internal/core"
)

// SessionsReader is the read side of the sessions repository
type SessionsReader interface {
	FindByID(id string) (*core.Session, error)
	GetActive(page int, perPage int) (*core.ActiveSessions, error)
}

// Counter reports sessions alive in this bridge instance
type Counter interface {
	Count() int
}

// App is admin application struct
type App struct {
	router   *chi.Mux
	sessions SessionsReader
	counter  Counter
}

// NewApp creates new instance of admin application
func NewApp(sessions SessionsReader, counter Counter) *App {
	return &App{
		router:   chi.NewRouter(),
		sessions: sessions,
		counter:  counter,
	}
}

// Router return admin router
func (app *App) Router() http.Handler {
	// GET /sessions?page=1&per_page=50
	app.router.Get("/sessions", func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))

		active, err := app.sessions.GetActive(page, perPage)
		if err != nil {
			log.Error().Err(err).Str("service", "admin").Msg("get active sessions")
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		writeJSON(w, active)
	})

	app.router.Get("/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		session, err := app.sessions.FindByID(chi.URLParam(r, "id"))
		if errors.Is(err, core.ErrSessionNotFound) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if err != nil {
			log.Error().Err(err).Str("service", "admin").Msg("find session")
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		writeJSON(w, session)
	})

	app.router.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]int{"sessions": app.counter.Count()})
	})

	return app.router
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Str("service", "admin").Msg("encode response")
	}
}
