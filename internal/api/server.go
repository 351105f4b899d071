package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/pprof"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"sheetdrip/internal/app"
	"sheetdrip/internal/domain"
	"sheetdrip/internal/metrics"
	"sheetdrip/internal/queue"
)

type Server struct {
	r   *chi.Mux
	app *app.App
}

func NewServer(a *app.App, m *metrics.Metrics) http.Handler {
	return NewServerWithDebug(a, m, false)
}

func NewServerWithDebug(a *app.App, m *metrics.Metrics, enableDebug bool) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)

	s := &Server{r: r, app: a}

	r.Get("/health", s.health)
	if m != nil {
		r.Handle("/metrics", m.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.status)
		r.Get("/queue", s.listQueue)
		r.Post("/queue/requeue-failed", s.requeueFailed)
		r.Post("/urls", s.addURLs)
		r.Post("/start", s.start)
		r.Post("/pause", s.pause)
		r.Post("/reset", s.reset)
		r.Get("/config", s.getConfig)
		r.Patch("/config", s.updateConfig)
		r.Get("/logs", s.logs)
	})

	// Debug routes (pprof)
	if enableDebug {
		r.HandleFunc("/debug/pprof/", pprof.Index)
		r.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		r.HandleFunc("/debug/pprof/profile", pprof.Profile)
		r.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		r.HandleFunc("/debug/pprof/trace", pprof.Trace)
		r.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
		r.Handle("/debug/pprof/heap", pprof.Handler("heap"))
	}

	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.app.Status())
}

func (s *Server) listQueue(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.app.Queue())
}

type addURLsReq struct {
	URLs []string `json:"urls"`
	Text string   `json:"text"`
}

type countResp struct {
	Count int `json:"count"`
}

func (s *Server) addURLs(w http.ResponseWriter, r *http.Request) {
	var req addURLsReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	urls := append(req.URLs, queue.ParseURLList(req.Text)...)
	if len(urls) == 0 {
		http.Error(w, "no valid URLs given", 400)
		return
	}
	writeJSON(w, http.StatusOK, countResp{Count: s.app.AddURLs(urls)})
}

func (s *Server) requeueFailed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, countResp{Count: s.app.RequeueFailed()})
}

func (s *Server) start(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Start(); err != nil {
		if errors.Is(err, app.ErrNoPending) || errors.Is(err, app.ErrMissingWebhook) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), 500)
		return
	}
	writeJSON(w, http.StatusOK, s.app.Status())
}

func (s *Server) pause(w http.ResponseWriter, r *http.Request) {
	s.app.Pause()
	writeJSON(w, http.StatusOK, s.app.Status())
}

func (s *Server) reset(w http.ResponseWriter, r *http.Request) {
	s.app.Reset()
	writeJSON(w, http.StatusOK, s.app.Status())
}

func (s *Server) getConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.app.Config())
}

func (s *Server) updateConfig(w http.ResponseWriter, r *http.Request) {
	var patch domain.ConfigPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	cfg, err := s.app.UpdateConfig(r.Context(), patch)
	if err != nil {
		if errors.Is(err, app.ErrInvalidConfig) {
			http.Error(w, err.Error(), 400)
			return
		}
		http.Error(w, err.Error(), 500)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) logs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.app.Logs())
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
