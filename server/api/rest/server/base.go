package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/buildbeaver/autopin/common/gerror"
	"github.com/buildbeaver/autopin/common/logger"
	"github.com/buildbeaver/autopin/common/models"
	"github.com/buildbeaver/autopin/server/api/rest/documents"
)

// maxRequestBodyBytes bounds the size of a JSON request body.
const maxRequestBodyBytes = 1 << 20

type APIBase struct {
	logger.Log
}

func NewAPIBase(logger logger.Log) *APIBase {
	return &APIBase{Log: logger}
}

// JSON marshals 'v' to JSON, automatically escaping HTML and setting the
// Content-Type as application/json. Based on chi/render.JSON, but logs serialization errors.
func (a *APIBase) JSON(w http.ResponseWriter, r *http.Request, v interface{}) {
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(true)
	if err := enc.Encode(v); err != nil {
		a.Error(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if status, ok := r.Context().Value(render.StatusCtxKey).(int); ok {
		w.WriteHeader(status)
	}
	a.Tracef("JSON Response: %s", buf.String())
	w.Write(buf.Bytes())
}

// Error writes the specified error to the http response as a standard API error document, and logs it
// at Warning level. Errors not meant for API callers are replaced with a generic internal error.
func (a *APIBase) Error(w http.ResponseWriter, r *http.Request, err error) {
	a.Warnf("Error in API call: %v", err)
	a.ErrorNotLogged(w, r, err)
}

// ErrorNotLogged is like Error but doesn't log the error.
func (a *APIBase) ErrorNotLogged(w http.ResponseWriter, r *http.Request, err error) {
	var gErr gerror.Error
	if !errors.As(err, &gErr) || gErr.Audience() != gerror.AudienceExternal {
		gErr = gerror.NewErrInternal()
	}
	r = r.WithContext(context.WithValue(r.Context(), render.StatusCtxKey, gErr.HTTPStatusCode()))
	a.JSON(w, r, documents.NewErrorDocument(gErr))
}

// DecodeJSON reads the request body into v, rejecting unknown fields.
func (a *APIBase) DecodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBodyBytes))
	dec.DisallowUnknownFields()
	err := dec.Decode(v)
	if err != nil {
		return gerror.NewErrValidationFailed("Error parsing request body").Wrap(err)
	}
	return nil
}

// BuildIDParam returns the {build_id} URL parameter of the request.
func (a *APIBase) BuildIDParam(r *http.Request) (models.BuildID, error) {
	id, err := models.ParseBuildID(chi.URLParam(r, "build_id"))
	if err != nil {
		return 0, gerror.NewErrValidationFailed("Invalid build id").Wrap(err)
	}
	return id, nil
}
