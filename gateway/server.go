package gateway

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	gwnet "github.com/erfianugrah/do-rl-worker/net"
)

// Server bundles the pipeline handler with the pre-pipeline handler
// chain (forwarded headers, Host patching, payload, query and header-size
// checks) and graceful shutdown, mirroring how the teacher wires its own
// listener and shutdown handling around the request handler. The admin
// mux (/healthz, /metrics, the config store) is served separately, see
// NewAdminMux.
type Server struct {
	Addr    string
	Handler http.Handler

	// Forwarded controls X-Forwarded-For/-Host decoration applied to
	// every request before it reaches Handler.
	Forwarded gwnet.ForwardedHeaders

	// HostPatch normalizes the Host header (strip port, strip trailing
	// dot, lowercase) before Handler ever sees the request, so a rule's
	// "host" field condition isn't fooled by incidental casing.
	HostPatch gwnet.HostPatch

	// RefusePayload rejects any request whose URI or header name/value
	// contains one of these substrings with 400, before the pipeline
	// spends a fingerprint/counter round-trip on it.
	RefusePayload []string

	// ValidateQuery rejects requests with a malformed query string.
	ValidateQuery bool

	// MaxRequestHeaderSize rejects, with 431, any request whose
	// approximate header size exceeds this many bytes. Zero disables
	// the check.
	MaxRequestHeaderSize int

	// ShutdownTimeout bounds how long Shutdown waits for in-flight
	// connections to drain.
	ShutdownTimeout time.Duration

	httpServer *http.Server
	listener   *gwnet.ShutdownListener
}

// ListenAndServe starts the server and blocks until it stops, either
// because ListenAndServe itself failed or a later Shutdown call
// completed. It mirrors the teacher's own listen/shutdown split: a
// ShutdownListener tracks active connections so Shutdown can wait for
// them to drain instead of severing them.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	s.listener = gwnet.NewShutdownListener(ln)

	s.httpServer = &http.Server{Handler: s.wrap(s.Handler)}

	err = s.httpServer.Serve(s.listener)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// wrap builds the pre-pipeline handler chain, mirroring the teacher's
// CustomHttpHandlerWrap: each concern is a handler decorator, applied
// only when actually configured.
func (s *Server) wrap(handler http.Handler) http.Handler {
	if s.ValidateQuery {
		handler = &gwnet.ValidateQueryHandler{Handler: handler}
	}
	if s.MaxRequestHeaderSize > 0 {
		handler = &gwnet.MaxRequestHeaderSizeHandler{MaxBytes: s.MaxRequestHeaderSize, Handler: handler}
	}
	if len(s.RefusePayload) > 0 {
		handler = &gwnet.RequestMatchHandler{Match: s.RefusePayload, Handler: handler}
	}
	if s.HostPatch != (gwnet.HostPatch{}) {
		handler = &gwnet.HostPatchHandler{Patch: s.HostPatch, Handler: handler}
	}
	return &gwnet.ForwardedHeadersHandler{Headers: s.Forwarded, Handler: handler}
}

// Shutdown closes the listener so no new connections are accepted, then
// waits (up to ShutdownTimeout) for active ones to finish: first through
// http.Server.Shutdown, then until the ShutdownListener counts no open
// connection.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	if s.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.ShutdownTimeout)
		defer cancel()
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return err
	}
	if s.listener != nil {
		return s.listener.Shutdown(ctx)
	}
	return nil
}

// RunUntilSignal starts the server in the background and blocks until
// SIGINT/SIGTERM, then performs a graceful shutdown.
func RunUntilSignal(srv *Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		log.WithField("signal", sig).Info("gateway: shutting down")
		return srv.Shutdown(context.Background())
	}
}
