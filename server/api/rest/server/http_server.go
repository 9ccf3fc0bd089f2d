package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/buildbeaver/autopin/common/logger"
)

type TLSConfig struct {
	CertificateFile string
	PrivateKeyFile  string
}

type HTTPServerConfig struct {
	Address   string
	TLSConfig *TLSConfig
}

// HTTPServer is an HTTP(S) server that can serve autopin API requests.
type HTTPServer struct {
	httpServer *http.Server
	config     HTTPServerConfig
	listener   net.Listener
	log        logger.Log
}

func NewHTTPServer(handler http.Handler, config HTTPServerConfig, log logger.Log) *HTTPServer {
	return &HTTPServer{
		httpServer: &http.Server{
			Addr:              config.Address,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		config: config,
		log:    log,
	}
}

// Start listens on the configured address and serves requests on a goroutine, returning once the
// listener is open so callers can rely on GetServerURL.
func (s *HTTPServer) Start() error {
	listener, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("error listening on %s: %w", s.config.Address, err)
	}
	s.listener = listener
	go func() {
		var err error
		if s.config.TLSConfig != nil {
			s.log.Infof("HTTPS listening on %s", listener.Addr())
			err = s.httpServer.ServeTLS(listener, s.config.TLSConfig.CertificateFile, s.config.TLSConfig.PrivateKeyFile)
		} else {
			s.log.Infof("HTTP listening on %s", listener.Addr())
			err = s.httpServer.Serve(listener)
		}
		if err != nil && err != http.ErrServerClosed {
			s.log.Fatalf("Error serving HTTP: %s", err)
		}
	}()
	return nil
}

// Stop shuts down the server gracefully, allowing in-flight requests to complete until ctx expires.
func (s *HTTPServer) Stop(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if err != nil {
		return fmt.Errorf("error shutting down HTTP server: %w", err)
	}
	return nil
}

// GetServerURL returns the URL the server is listening on. Only valid after Start.
func (s *HTTPServer) GetServerURL() string {
	addr := s.config.Address
	if s.listener != nil {
		addr = s.listener.Addr().String()
	}
	if s.config.TLSConfig != nil {
		return fmt.Sprintf("https://%s", addr)
	}
	return fmt.Sprintf("http://%s", addr)
}
