package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"islandbot/internal/calendar"
	"islandbot/internal/config"
	appLog "islandbot/internal/log"
	"islandbot/internal/model"
	"islandbot/internal/schedule"
	"islandbot/internal/summary"
)

// ScheduleSource reports slot status. *schedule.Scheduler satisfies it.
type ScheduleSource interface {
	Upcoming(now time.Time) []schedule.SlotStatus
}

// Options wires the server to the rest of the process.
type Options struct {
	Listen    string
	BasicAuth *config.BasicAuthConfig

	// Ready reports whether the Discord session is up. nil means always ready.
	Ready     func() bool
	Builder   *summary.Builder
	Scheduler ScheduleSource
	Clock     func() time.Time
}

// Server provides the health check and a small read-only HTTP API.
type Server struct {
	opts   Options
	router chi.Router
	srv    *http.Server
}

// NewServer constructs a new Server.
func NewServer(opts Options) *Server {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	s := &Server{opts: opts}
	s.router = s.routes()
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	// /health 는 항상 무인증으로 노출한다.
	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		if s.basicAuthEnabled() {
			appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.opts.Listen)
			r.Use(s.basicAuthMiddleware)
		}
		r.Get("/api/islands", s.handleIslands)
		r.Get("/api/schedule", s.handleSchedule)
		r.Get("/islands.ics", s.handleICS)
	})
	return r
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	ba := s.opts.BasicAuth
	// 빈 사용자명 또는 비밀번호가 설정된 경우에는 비활성화로 취급한다.
	return ba != nil && ba.Username != "" && ba.Password != ""
}

func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.opts.BasicAuth.Username
	password := s.opts.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="islandbot", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		appLog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// Start listens on opts.Listen in the background. Serve errors other than
// a clean shutdown are logged.
func (s *Server) Start() {
	s.srv = &http.Server{
		Addr:              s.opts.Listen,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	appLog.Info("starting HTTP server", "listen", "http://"+s.opts.Listen)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Error("HTTP server stopped", err, "listen", s.opts.Listen)
		}
	}()
}

// Shutdown gracefully stops a started server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if s.opts.Ready != nil && !s.opts.Ready() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("Starting…"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// islandsResponse is the JSON response shape for /api/islands.
type islandsResponse struct {
	Date     string      `json:"date"`
	Timezone string      `json:"timezone"`
	Title    string      `json:"title"`
	Islands  []islandDTO `json:"islands"`
}

type islandDTO struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Times       []time.Time `json:"times"`
	Rewards     rewardsDTO  `json:"rewards"`
}

type rewardsDTO struct {
	Status   string   `json:"status"`
	Priority []string `json:"priority"`
	Other    []string `json:"other"`
}

// events resolves ?day= and runs the fetch/extract pipeline. It writes the
// error response itself and reports ok=false when the request is done.
func (s *Server) events(w http.ResponseWriter, r *http.Request) (summary.View, model.Date, []model.IslandEvent, bool) {
	view, err := summary.ParseView(r.URL.Query().Get("day"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return summary.View{}, model.Date{}, nil, false
	}
	if s.opts.Builder == nil {
		writeError(w, http.StatusServiceUnavailable, "calendar not configured")
		return summary.View{}, model.Date{}, nil, false
	}
	date, events, err := s.opts.Builder.Events(r.Context(), s.opts.Clock(), view)
	if err != nil {
		appLog.Error("api islands: calendar fetch failed", err)
		writeError(w, http.StatusBadGateway, "failed to fetch calendar")
		return summary.View{}, model.Date{}, nil, false
	}
	return view, date, events, true
}

// handleIslands returns the adventure islands for a day.
//
// GET /api/islands?day=today|tomorrow|YYYY-MM-DD
func (s *Server) handleIslands(w http.ResponseWriter, r *http.Request) {
	view, date, events, ok := s.events(w, r)
	if !ok {
		return
	}

	loc := s.opts.Builder.Location()
	resp := islandsResponse{
		Date:     date.String(),
		Timezone: loc.String(),
		Title:    summary.Render(events, date, view.Prefix()).Title,
		Islands:  make([]islandDTO, 0, len(events)),
	}
	for _, ev := range events {
		rs := calendar.Classify(ev.Rewards)
		times := make([]time.Time, 0, len(ev.Times))
		for _, t := range ev.Times {
			times = append(times, t.In(loc))
		}
		resp.Islands = append(resp.Islands, islandDTO{
			Name:        ev.Name,
			Description: ev.Description,
			Times:       times,
			Rewards: rewardsDTO{
				Status:   rs.Status.String(),
				Priority: nonNil(rs.Priority),
				Other:    nonNil(rs.Other),
			},
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleICS exports the day's islands as an iCalendar feed.
//
// GET /islands.ics?day=...
func (s *Server) handleICS(w http.ResponseWriter, r *http.Request) {
	_, _, events, ok := s.events(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(calendar.ExportICS(events, s.opts.Clock())))
}

type slotDTO struct {
	Slot      string    `json:"slot"`
	LastFired string    `json:"last_fired,omitempty"`
	Next      time.Time `json:"next"`
}

// handleSchedule reports every slot with its last and next firing.
//
// GET /api/schedule
func (s *Server) handleSchedule(w http.ResponseWriter, _ *http.Request) {
	if s.opts.Scheduler == nil {
		writeJSON(w, http.StatusOK, []slotDTO{})
		return
	}
	status := s.opts.Scheduler.Upcoming(s.opts.Clock())
	out := make([]slotDTO, 0, len(status))
	for _, st := range status {
		dto := slotDTO{Slot: st.Label, Next: st.Next}
		if !st.LastFired.IsZero() {
			dto.LastFired = st.LastFired.String()
		}
		out = append(out, dto)
	}
	writeJSON(w, http.StatusOK, out)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
