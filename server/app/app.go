package app

import (
	"context"

	"github.com/buildbeaver/autopin/common/logger"
	"github.com/buildbeaver/autopin/server/api/rest/server"
	"github.com/buildbeaver/autopin/server/services"
)

type Server struct {
	AutopinService services.AutopinService
	APIServer      *server.AppAPIServer
	logger.Log
}

func NewServer(
	autopinService services.AutopinService,
	apiServer *server.AppAPIServer,
	logFactory logger.LogFactory,
) *Server {
	return &Server{
		AutopinService: autopinService,
		APIServer:      apiServer,
		Log:            logFactory("Server"),
	}
}

// Start starts serving the API. The server runs until Stop is called.
func (s *Server) Start() error {
	err := s.APIServer.Start()
	if err != nil {
		return err
	}
	s.Infof("Autopin server listening on %s", s.APIServer.GetServerURL())
	return nil
}

// Stop gracefully shuts down the API server, waiting for in-flight webhooks to finish until ctx is done.
func (s *Server) Stop(ctx context.Context) error {
	s.Infof("Stopping autopin server")
	return s.APIServer.Stop(ctx)
}
