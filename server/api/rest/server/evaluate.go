package server

import (
	"net/http"

	"github.com/buildbeaver/autopin/common/gerror"
	"github.com/buildbeaver/autopin/common/logger"
	"github.com/buildbeaver/autopin/server/api/rest/documents"
	"github.com/buildbeaver/autopin/server/services"
)

type EvaluateAPI struct {
	autopinService services.AutopinService
	*APIBase
}

func NewEvaluateAPI(autopinService services.AutopinService, logFactory logger.LogFactory) *EvaluateAPI {
	return &EvaluateAPI{
		autopinService: autopinService,
		APIBase:        NewAPIBase(logFactory("EvaluateAPI")),
	}
}

// Evaluate returns the pin decisions for the build and rules in the request, without pinning anything.
func (a *EvaluateAPI) Evaluate(w http.ResponseWriter, r *http.Request) {
	req := &documents.EvaluateRequest{}
	err := a.DecodeJSON(r, req)
	if err != nil {
		a.Error(w, r, err)
		return
	}
	if req.Build == nil {
		a.Error(w, r, gerror.NewErrValidationFailed("build must be set"))
		return
	}
	decisions, err := a.autopinService.Evaluate(r.Context(), req.Build, req.Rules)
	if err != nil && gerror.IsValidationFailed(err) {
		a.Error(w, r, err)
		return
	}
	a.JSON(w, r, documents.MakeEvaluateResponse(decisions, err))
}
