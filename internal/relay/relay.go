// Package relay fronts the invoice backend at the edge. It strips the
// /agents path prefix, proxies ordinary HTTP requests, and bridges WebSocket
// upgrades by dialing the backend and pumping frames in both directions.
package relay

import (
	"context"
	"errors"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/msandnes/invoiceagent/internal/config"
)

// pathPrefix is stripped from every request before forwarding.
const pathPrefix = "/agents"

// Relay forwards edge traffic to the backend origin.
type Relay struct {
	cfg     *config.Config
	log     *logrus.Logger
	backend *url.URL
	proxy   *httputil.ReverseProxy

	upgrader websocket.Upgrader
	dialer   *websocket.Dialer

	server *http.Server
	once   sync.Once
}

// New constructs a Relay for the configured backend origin.
func New(cfg *config.Config, log *logrus.Logger) (*Relay, error) {
	backend, err := url.Parse(cfg.BackendOrigin)
	if err != nil {
		return nil, err
	}
	if backend.Scheme == "" || backend.Host == "" {
		return nil, errors.New("backend origin must be an absolute URL")
	}

	r := &Relay{
		cfg:     cfg,
		log:     log,
		backend: backend,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}

	proxy := httputil.NewSingleHostReverseProxy(backend)
	proxy.ErrorHandler = func(w http.ResponseWriter, req *http.Request, err error) {
		log.WithError(err).WithField("path", req.URL.Path).Warn("proxy to backend failed")
		http.Error(w, "backend unavailable", http.StatusBadGateway)
	}
	r.proxy = proxy
	return r, nil
}

// Handler returns the relay's handler, exposed for tests.
func (r *Relay) Handler() http.Handler {
	return http.HandlerFunc(r.serve)
}

// Run starts the relay and blocks until the context is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	r.once.Do(func() {
		r.server = &http.Server{
			Addr:    r.cfg.RelayAddress,
			Handler: r.Handler(),
		}
	})
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = r.server.Shutdown(shutdownCtx)
	}()
	r.log.WithFields(logrus.Fields{
		"address": r.cfg.RelayAddress,
		"backend": r.backend.String(),
	}).Info("relay listening")
	if err := r.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (r *Relay) serve(w http.ResponseWriter, req *http.Request) {
	rewritePath(req)
	if isUpgrade(req) {
		r.bridge(w, req)
		return
	}
	r.proxy.ServeHTTP(w, req)
}

// rewritePath drops the /agents prefix so the backend sees its own routes.
func rewritePath(req *http.Request) {
	path := strings.TrimPrefix(req.URL.Path, pathPrefix)
	if path == "" {
		path = "/"
	}
	req.URL.Path = path
}

func isUpgrade(req *http.Request) bool {
	if !strings.EqualFold(req.Header.Get("Upgrade"), "websocket") {
		return false
	}
	for _, token := range strings.Split(req.Header.Get("Connection"), ",") {
		if strings.EqualFold(strings.TrimSpace(token), "upgrade") {
			return true
		}
	}
	return false
}

// bridge dials the backend first, so a refused upgrade turns into a 502
// before the client connection is ever committed.
func (r *Relay) bridge(w http.ResponseWriter, req *http.Request) {
	target := *r.backend
	switch target.Scheme {
	case "https":
		target.Scheme = "wss"
	default:
		target.Scheme = "ws"
	}
	target.Path = req.URL.Path
	target.RawQuery = req.URL.RawQuery

	backendConn, resp, err := r.dialer.DialContext(req.Context(), target.String(), forwardHeaders(req.Header))
	if err != nil {
		status := http.StatusBadGateway
		if resp != nil && resp.StatusCode >= http.StatusBadRequest {
			status = resp.StatusCode
		}
		r.log.WithError(err).WithField("target", target.String()).Warn("backend websocket dial failed")
		http.Error(w, "backend unavailable", status)
		return
	}
	defer backendConn.Close()

	clientConn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.log.WithError(err).Debug("client upgrade failed")
		return
	}
	defer clientConn.Close()

	errc := make(chan error, 2)
	go pump(clientConn, backendConn, errc)
	go pump(backendConn, clientConn, errc)

	// First leg to fail tears down both; the deferred closes unblock the
	// other pump.
	<-errc
}

// pump copies frames from src to dst until either side errors.
func pump(dst, src *websocket.Conn, errc chan<- error) {
	for {
		messageType, data, err := src.ReadMessage()
		if err != nil {
			errc <- err
			return
		}
		if err := dst.WriteMessage(messageType, data); err != nil {
			errc <- err
			return
		}
	}
}

// forwardHeaders keeps the headers the backend cares about, dropping the
// hop-by-hop and handshake headers gorilla manages itself.
func forwardHeaders(h http.Header) http.Header {
	out := http.Header{}
	for _, name := range []string{"Cookie", "Authorization", "User-Agent", "Origin"} {
		if v := h.Get(name); v != "" {
			out.Set(name, v)
		}
	}
	return out
}
