// Package pprof serves the runtime profiling endpoints on their own
// listener, kept off the API server so profiles stay reachable when
// the API is busy or rate limited.
package pprof

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	hpprof "net/http/pprof"
	"strings"
	"sync"
	"time"

	"unitdeck/pkg/logx"
)

const defaultAddr = "127.0.0.1:6060"

// Config controls the profiling listener. Binding beyond loopback is
// refused unless AllowRemote is set: the profile handlers expose heap
// contents and the process command line and carry no auth of their own.
type Config struct {
	Enabled     bool
	Addr        string
	AllowRemote bool
}

// Service is the profiling HTTP server.
type Service struct {
	addr       string
	httpServer *http.Server
	log        logx.Logger

	mu sync.Mutex
	ln net.Listener
}

func New(cfg Config, log logx.Logger) (*Service, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		addr = defaultAddr
	}
	if !cfg.AllowRemote && !isLoopbackAddr(addr) {
		return nil, fmt.Errorf("pprof: refusing non-loopback addr %q without allow_remote", addr)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", hpprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", hpprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", hpprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", hpprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", hpprof.Trace)

	return &Service{
		addr: addr,
		httpServer: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		log: log,
	}, nil
}

// Addr reports the bound listen address, empty until Run has bound.
func (s *Service) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Run blocks and serves profiling traffic until Shutdown.
func (s *Service) Run() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("pprof listen: %w", err)
	}
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()

	s.log.Info("pprof listening", logx.String("addr", ln.Addr().String()))
	err = s.httpServer.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully shuts the profiling server down.
func (s *Service) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func isLoopbackAddr(addr string) bool {
	h, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	h = strings.TrimSpace(h)
	if h == "" {
		// An empty host binds every interface.
		return false
	}
	if strings.EqualFold(h, "localhost") {
		return true
	}
	ip := net.ParseIP(h)
	if ip == nil {
		return false
	}
	return ip.IsLoopback()
}
