package server

import (
	"net/http"

	"github.com/buildbeaver/autopin/common/logger"
	"github.com/buildbeaver/autopin/server/api/rest/documents"
	"github.com/buildbeaver/autopin/server/services"
)

type WebhookAPI struct {
	autopinService services.AutopinService
	*APIBase
}

func NewWebhookAPI(autopinService services.AutopinService, logFactory logger.LogFactory) *WebhookAPI {
	return &WebhookAPI{
		autopinService: autopinService,
		APIBase:        NewAPIBase(logFactory("WebhookAPI")),
	}
}

// BuildFinished handles the notification that a build has finished, synchronously pinning whatever the
// build's tags and pin rules require. Partial failures are reported in the response with a 200 status.
func (a *WebhookAPI) BuildFinished(w http.ResponseWriter, r *http.Request) {
	req := &documents.BuildFinishedRequest{}
	err := a.DecodeJSON(r, req)
	if err != nil {
		a.Error(w, r, err)
		return
	}
	result, err := a.autopinService.HandleBuildFinished(r.Context(), req.ToEvent())
	if err != nil {
		a.Error(w, r, err)
		return
	}
	if result.Err != nil {
		a.Warnf("Build %d processed with errors: %v", req.BuildID, result.Err)
	}
	a.JSON(w, r, documents.MakeBuildFinishedResponse(result))
}
