package server

import (
	"net/http"

	"github.com/buildbeaver/autopin/common/logger"
	"github.com/buildbeaver/autopin/server/api/rest/documents"
	"github.com/buildbeaver/autopin/server/services"
)

type PinAPI struct {
	autopinService services.AutopinService
	*APIBase
}

func NewPinAPI(autopinService services.AutopinService, logFactory logger.LogFactory) *PinAPI {
	return &PinAPI{
		autopinService: autopinService,
		APIBase:        NewAPIBase(logFactory("PinAPI")),
	}
}

// ListForBuild returns the pins recorded against a build, oldest first.
func (a *PinAPI) ListForBuild(w http.ResponseWriter, r *http.Request) {
	buildID, err := a.BuildIDParam(r)
	if err != nil {
		a.Error(w, r, err)
		return
	}
	records, err := a.autopinService.ListPinRecords(r.Context(), buildID)
	if err != nil {
		a.Error(w, r, err)
		return
	}
	a.JSON(w, r, &documents.PinRecordsResponse{BuildID: buildID, PinRecords: records})
}
