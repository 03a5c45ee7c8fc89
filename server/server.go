// Package server owns the dual gRPC + HTTP listener lifecycle of the
// network server (spec §4.5, C5), grounded directly on the teacher's
// registry.Registry ListenAndServe/Shutdown (signal.Notify + select over a
// quit channel and per-listener serve-error channels), duplicated for two
// independent listeners per spec §4.5's "shutdown of either is independent."
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	gometrics "github.com/docker/go-metrics"
	gorhandlers "github.com/gorilla/handlers"
	"golang.org/x/crypto/acme/autocert"
	"google.golang.org/grpc"

	"github.com/spkrepo/spk/configuration"
	"github.com/spkrepo/spk/internal/dcontext"
	"github.com/spkrepo/spk/server/httpapi"
	"github.com/spkrepo/spk/server/rpc"
	"github.com/spkrepo/spk/storage/cas"
)

// Server binds the gRPC listener (tag/database/payload/metadata services)
// and the HTTP payload listener (spec §4.5's two default addresses, ":7737"
// and ":7787"), and runs them until a shutdown signal is received (a
// process signal in production; a channel send in tests).
type Server struct {
	cfg *configuration.Configuration

	grpcServer *grpc.Server
	httpServer *http.Server

	quit chan os.Signal
}

// New constructs a Server wrapping store's four C5 services and the HTTP
// payload endpoint. provider backs the repository metadata service; pass
// rpc.NewMetadataProvider(store, version.Version(), repo.MetadataTagPath,
// repo.ReadRepositoryVersion).
func New(cfg *configuration.Configuration, store cas.Store, provider rpc.MetadataProvider) *Server {
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(metricsUnaryInterceptor))
	rpc.RegisterAll(grpcServer, store, provider, cfg.HTTP.PayloadURLRoot)

	var handler http.Handler = httpapi.NewRouter(store)
	handler = withResponseHeaders(cfg.HTTP.Headers, handler)
	handler = withRequestMetrics(handler)
	handler = gorhandlers.CombinedLoggingHandler(os.Stdout, handler)

	return &Server{
		cfg:        cfg,
		grpcServer: grpcServer,
		httpServer: &http.Server{Addr: cfg.HTTP.Addr, Handler: handler},
		quit:       make(chan os.Signal, 1),
	}
}

// withResponseHeaders sets a fixed set of response headers on every
// request, following the teacher's configuration.HTTP.Headers convention
// (e.g. X-Content-Type-Options: nosniff).
func withResponseHeaders(headers map[string][]string, next http.Handler) http.Handler {
	if len(headers) == 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for k, values := range headers {
			for _, v := range values {
				w.Header().Add(k, v)
			}
		}
		next.ServeHTTP(w, r)
	})
}

// ListenAndServe binds both listeners and runs until a shutdown signal
// (SIGINT/SIGTERM, or a send on Quit) arrives. An abnormal exit of either
// listener is logged but does not stop the other — the open question of
// spec §9/§4.5 ("either may keep running") is resolved by leaving both
// independent, matching the teacher's Registry.Shutdown errors.Join shape.
func (s *Server) ListenAndServe(ctx context.Context) error {
	log := dcontext.GetLogger(ctx)

	grpcLn, err := net.Listen("tcp", s.cfg.RPC.Addr)
	if err != nil {
		return err
	}
	httpLn, err := s.httpListener()
	if err != nil {
		return err
	}

	s.configureDebugServer(log)

	signal.Notify(s.quit, os.Interrupt, syscall.SIGTERM)

	grpcErr := make(chan error, 1)
	httpErr := make(chan error, 1)
	go func() { grpcErr <- s.grpcServer.Serve(grpcLn) }()
	go func() { httpErr <- s.httpServer.Serve(httpLn) }()

	log.Infof("gRPC listening on %v", grpcLn.Addr())
	log.Infof("HTTP payload listening on %v", httpLn.Addr())

	for grpcErr != nil || httpErr != nil {
		select {
		case err := <-grpcErr:
			log.Errorf("gRPC server exited: %v", err)
			grpcErr = nil
		case err := <-httpErr:
			log.Errorf("HTTP payload server exited: %v", err)
			httpErr = nil
		case <-s.quit:
			log.Info("stopping server gracefully")
			return s.Shutdown(ctx)
		}
	}
	return nil
}

// configureDebugServer starts an auxiliary HTTP listener exposing a
// Prometheus scrape endpoint, mirroring the teacher's
// configureDebugServer/configurePrometheus split in registry.go. It runs
// independently of the gRPC/HTTP payload listeners and is not joined by
// Shutdown, matching the teacher's fire-and-forget debug server.
func (s *Server) configureDebugServer(log dcontext.Logger) {
	if s.cfg.HTTP.Debug.Addr == "" {
		return
	}

	mux := http.NewServeMux()
	if s.cfg.HTTP.Debug.Prometheus.Enabled {
		path := s.cfg.HTTP.Debug.Prometheus.Path
		if path == "" {
			path = "/metrics"
		}
		log.Infof("providing prometheus metrics on %s", path)
		mux.Handle(path, gometrics.Handler())
	}

	addr := s.cfg.HTTP.Debug.Addr
	go func() {
		log.Infof("debug server listening %v", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Errorf("error listening on debug interface: %v", err)
		}
	}()
}

// httpListener builds the HTTP payload listener, wrapping it in TLS if
// cfg.HTTP.TLS names a certificate or a Let's Encrypt cache file.
func (s *Server) httpListener() (net.Listener, error) {
	ln, err := net.Listen("tcp", s.cfg.HTTP.Addr)
	if err != nil {
		return nil, err
	}

	tlsCfg := s.cfg.HTTP.TLS
	switch {
	case tlsCfg.LetsEncrypt.CacheFile != "":
		m := &autocert.Manager{
			HostPolicy: autocert.HostWhitelist(tlsCfg.LetsEncrypt.Hosts...),
			Cache:      autocert.DirCache(tlsCfg.LetsEncrypt.CacheFile),
			Email:      tlsCfg.LetsEncrypt.Email,
			Prompt:     autocert.AcceptTOS,
		}
		return tls.NewListener(ln, m.TLSConfig()), nil
	case tlsCfg.Certificate != "":
		cert, err := tls.LoadX509KeyPair(tlsCfg.Certificate, tlsCfg.Key)
		if err != nil {
			ln.Close()
			return nil, err
		}
		return tls.NewListener(ln, &tls.Config{Certificates: []tls.Certificate{cert}}), nil
	default:
		return ln, nil
	}
}

// Quit returns the channel ListenAndServe selects on for shutdown; sending
// to it triggers the same graceful shutdown path as a process signal.
func (s *Server) Quit() chan<- os.Signal { return s.quit }

// Shutdown tears down both listeners, joining any errors the way the
// teacher's Registry.Shutdown joins server.Shutdown and app.Shutdown
// errors.
func (s *Server) Shutdown(ctx context.Context) error {
	httpErr := s.httpServer.Shutdown(ctx)
	s.grpcServer.GracefulStop()
	return errors.Join(httpErr)
}
