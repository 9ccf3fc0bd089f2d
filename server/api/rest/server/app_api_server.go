package server

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/buildbeaver/autopin/common/logger"
	autopinmiddleware "github.com/buildbeaver/autopin/server/api/rest/middleware"
)

type AppAPIServerConfig struct {
	HTTPServerConfig
	SharedSecret autopinmiddleware.SharedSecret
	// RequestTimeout bounds the time spent handling one request, including all calls to TeamCity.
	RequestTimeout time.Duration
}

const DefaultRequestTimeout = 5 * time.Minute

type AppAPIServer struct {
	*HTTPServer
}

func NewAppAPIServer(router *AppAPIRouter, config AppAPIServerConfig, logFactory logger.LogFactory) *AppAPIServer {
	return &AppAPIServer{
		HTTPServer: NewHTTPServer(router, config.HTTPServerConfig, logFactory("AppAPIServer")),
	}
}

type AppAPIRouter struct {
	chi.Router
}

func NewAppAPIRouter(
	webhook *WebhookAPI,
	evaluate *EvaluateAPI,
	pins *PinAPI,
	root *RootAPI,
	config AppAPIServerConfig,
	logFactory logger.LogFactory,
) *AppAPIRouter {
	log := logFactory("AppAPIRouter").WithField("version", "v1")

	timeout := config.RequestTimeout
	if timeout == 0 {
		timeout = DefaultRequestTimeout
	}
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: log, NoColor: true}))
	r.Use(middleware.Timeout(timeout))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", root.GetRootDocument)
		r.Group(func(r chi.Router) {
			r.Use(autopinmiddleware.MakeSharedSecretAuthenticator(log, config.SharedSecret))
			r.Post("/webhooks/build-finished", webhook.BuildFinished)
			r.Post("/evaluate", evaluate.Evaluate)
			r.Get("/builds/{build_id}/pins", pins.ListForBuild)
		})
	})
	return &AppAPIRouter{Router: r}
}
