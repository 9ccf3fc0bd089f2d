package documents

import "github.com/buildbeaver/autopin/common/gerror"

type ErrorDetail struct {
	Key   gerror.DetailKey `json:"key"`
	Value interface{}      `json:"value"`
}

// ErrorDocument is the body of every non-2xx API response.
type ErrorDocument struct {
	Code       gerror.Code    `json:"code"`
	StatusCode int            `json:"http_status_code"`
	Message    string         `json:"message"`
	Details    []*ErrorDetail `json:"details,omitempty"`
}

// NewErrorDocument converts err to a document. Details marked internal are left out, in their original order.
func NewErrorDocument(err gerror.Error) *ErrorDocument {
	doc := &ErrorDocument{
		Code:       err.Code(),
		StatusCode: err.HTTPStatusCode(),
		Message:    err.Message(),
	}
	for _, d := range err.Details() {
		if d.Audience() != gerror.AudienceExternal {
			continue
		}
		doc.Details = append(doc.Details, &ErrorDetail{Key: d.Key(), Value: d.Value()})
	}
	return doc
}
