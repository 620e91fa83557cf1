// Package server exposes the control plane over HTTP: unit listings
// and actions, watch lists, execution history, a websocket stream of
// monitor events, and the Prometheus endpoint. Responses are JSON;
// client failures map onto status codes by error kind.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"unitdeck/internal/storage"
	"unitdeck/internal/unit"
	"unitdeck/internal/watchlist"
	"unitdeck/pkg/logx"
)

const (
	defaultLogLines = 50
	maxLogLines     = 1000
	defaultHistory  = 20
	maxHistory      = 200
)

// ServiceClient is the slice of the service client the API calls.
type ServiceClient interface {
	List(ctx context.Context) ([]unit.Summary, error)
	Status(ctx context.Context, name string) (unit.Status, error)
	Logs(ctx context.Context, name string, lines int) ([]unit.LogEntry, error)
	Start(ctx context.Context, name string) error
	Stop(ctx context.Context, name string) error
	Restart(ctx context.Context, name string) error
}

// TimerClient is the slice of the timer client the API calls.
type TimerClient interface {
	List(ctx context.Context) ([]unit.TimerListEntry, error)
	Info(ctx context.Context, name string) (unit.TimerInfo, error)
	Run(ctx context.Context, name string) error
	Enable(ctx context.Context, name string) error
	Disable(ctx context.Context, name string) error
}

// HistoryClient reconstructs execution history for a service.
type HistoryClient interface {
	History(ctx context.Context, service string, limit int) ([]unit.ExecutionRecord, error)
	Detail(ctx context.Context, service, invocationID string) (unit.ExecutionDetail, error)
}

// Watchlist owns the watched unit sets and resolves them to rows.
type Watchlist interface {
	Services(ctx context.Context) ([]string, error)
	SetServices(ctx context.Context, names []string) error
	Timers(ctx context.Context) ([]string, error)
	SetTimers(ctx context.Context, names []string) error
	ServiceStatuses(ctx context.Context) ([]watchlist.ServiceRow, error)
	TimerStatuses(ctx context.Context) ([]watchlist.TimerRow, error)
}

// Auditor records mutating unit actions.
type Auditor interface {
	AppendAudit(ctx context.Context, e storage.AuditEntry) error
}

// Config carries the listener settings, durations already parsed.
// RatePerSec zero disables the mutation rate limit.
type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	RatePerSec   int
	RateBurst    int
}

// Deps are the collaborators behind the API. Audit may be nil, in
// which case mutations are served but not recorded.
type Deps struct {
	Services ServiceClient
	Timers   TimerClient
	History  HistoryClient
	Watch    Watchlist
	Audit    Auditor
	Log      logx.Logger
}

// Server wraps HTTP serving of the control-plane API.
type Server struct {
	httpServer *http.Server
	services   ServiceClient
	timers     TimerClient
	history    HistoryClient
	watch      Watchlist
	audit      Auditor
	hub        *hub
	limiter    *rate.Limiter
	log        logx.Logger
}

// New creates a configured HTTP server.
func New(cfg Config, deps Deps) *Server {
	mux := http.NewServeMux()
	s := &Server{
		httpServer: &http.Server{
			Addr:         cfg.Addr,
			Handler:      mux,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		services: deps.Services,
		timers:   deps.Timers,
		history:  deps.History,
		watch:    deps.Watch,
		audit:    deps.Audit,
		hub:      newHub(),
		log:      deps.Log,
	}
	if s.log.IsZero() {
		s.log = logx.Nop()
	}
	if cfg.RatePerSec > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = cfg.RatePerSec
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), burst)
	}
	s.registerRoutes(mux)
	return s
}

// Run blocks and serves HTTP traffic until Shutdown.
func (s *Server) Run() error {
	s.log.Info("http server listening", logx.String("addr", s.httpServer.Addr))
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Serve accepts connections on l instead of binding the configured
// address, for socket-activated deployments.
func (s *Server) Serve(l net.Listener) error {
	err := s.httpServer.Serve(l)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully shuts the server down.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the route tree, for serving through a custom
// listener or in tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	s.route(mux, "GET /api/services", s.handleServiceList)
	s.route(mux, "GET /api/services/watched", s.handleWatchedServices)
	s.mutation(mux, "POST /api/services/watched", s.handleSaveWatchedServices)
	s.route(mux, "GET /api/services/{name}/status", s.handleServiceStatus)
	s.route(mux, "GET /api/services/{name}/logs", s.handleServiceLogs)
	s.mutation(mux, "POST /api/services/{name}/start", s.handleServiceAction("start"))
	s.mutation(mux, "POST /api/services/{name}/stop", s.handleServiceAction("stop"))
	s.mutation(mux, "POST /api/services/{name}/restart", s.handleServiceAction("restart"))

	s.route(mux, "GET /api/timers", s.handleWatchedTimers)
	s.route(mux, "GET /api/timers/available", s.handleAvailableTimers)
	s.route(mux, "GET /api/timers/settings", s.handleTimerSettings)
	s.mutation(mux, "POST /api/timers/settings", s.handleSaveTimerSettings)
	s.mutation(mux, "POST /api/timers/{name}/run", s.handleTimerAction("run"))
	s.mutation(mux, "POST /api/timers/{name}/enable", s.handleTimerAction("enable"))
	s.mutation(mux, "POST /api/timers/{name}/disable", s.handleTimerAction("disable"))
	s.route(mux, "GET /api/timers/{name}/history", s.handleTimerHistory)
	s.route(mux, "GET /api/timers/{name}/history/{invocation}", s.handleTimerHistoryDetail)

	s.route(mux, "GET /api/events", s.handleEvents)
	mux.Handle("GET /metrics", promhttp.Handler())
	s.route(mux, "GET /healthz", s.handleHealthz)
}

func (s *Server) route(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	mux.Handle(pattern, s.instrument(pattern, h))
}

func (s *Server) mutation(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	mux.Handle(pattern, s.instrument(pattern, s.limited(h)))
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// auditAction records one unit action. Audit failures are not the
// caller's problem; they are logged and dropped.
func (s *Server) auditAction(ctx context.Context, action, unitName string, took time.Duration, opErr error) {
	if s.audit == nil {
		return
	}
	e := storage.AuditEntry{
		At:     time.Now().UTC(),
		Actor:  "api",
		Action: action,
		Unit:   unitName,
		OK:     opErr == nil,
		TookMS: took.Milliseconds(),
	}
	if opErr != nil {
		e.Error = opErr.Error()
	}
	if err := s.audit.AppendAudit(ctx, e); err != nil {
		s.log.Debug("audit append failed", logx.Err(err))
	}
}

// errorBody is the uniform failure payload.
type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

type okBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func successBody(msg string) okBody { return okBody{Success: true, Message: msg} }

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status, kind := errorStatus(err)
	writeJSON(w, status, errorBody{Error: err.Error(), Kind: kind})
}

func (s *Server) writeBadRequest(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body: " + err.Error(), Kind: "bad_request"})
}

// errorStatus maps a client failure onto an HTTP status. Identifier
// problems are the caller's fault; everything that went wrong on the
// systemd side surfaces as a gateway error.
func errorStatus(err error) (int, string) {
	var ue *unit.Error
	if errors.As(err, &ue) {
		switch ue.Kind {
		case unit.KindInvalidIdentifier:
			return http.StatusBadRequest, "invalid_identifier"
		case unit.KindNotFound:
			return http.StatusNotFound, "not_found"
		case unit.KindPermissionDenied:
			return http.StatusForbidden, "permission_denied"
		case unit.KindTimeout:
			return http.StatusGatewayTimeout, "timeout"
		case unit.KindParse:
			return http.StatusBadGateway, "parse_error"
		case unit.KindCommandFailed:
			return http.StatusBadGateway, "command_failed"
		case unit.KindIO:
			return http.StatusBadGateway, "io_error"
		}
	}
	return http.StatusInternalServerError, "internal"
}

func parseCount(r *http.Request, key string, fallback, ceiling int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	if value > ceiling {
		return ceiling
	}
	return value
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}

// nonNil keeps empty list responses as [] instead of null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
