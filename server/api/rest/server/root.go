package server

import (
	"net/http"

	"github.com/buildbeaver/autopin/common/logger"
	"github.com/buildbeaver/autopin/common/version"
	"github.com/buildbeaver/autopin/server/api/rest/documents"
)

type RootAPI struct {
	*APIBase
}

func NewRootAPI(logFactory logger.LogFactory) *RootAPI {
	return &RootAPI{
		APIBase: NewAPIBase(logFactory("RootAPI")),
	}
}

func (a *RootAPI) GetRootDocument(w http.ResponseWriter, r *http.Request) {
	a.JSON(w, r, &documents.GetRootDocumentResponse{
		Name:    "autopin",
		Version: version.VersionOrDev(),
		Links: map[string]string{
			"build_finished_webhook_url": "/api/v1/webhooks/build-finished",
			"evaluate_url":               "/api/v1/evaluate",
			"build_pins_url":             "/api/v1/builds/{build_id}/pins",
		},
	})
}
