package gerror

import (
	"fmt"
	"strings"
)

const (
	AudienceInternal Audience = "internal"
	AudienceExternal Audience = "external"
)

// Audience says who may see an error or detail. External errors and details are returned to API callers;
// internal ones are only logged.
type Audience string

type Code string

type DetailKey string

// Detail is a key/value pair attached to an Error.
type Detail struct {
	audience Audience
	key      DetailKey
	value    interface{}
}

func (d Detail) Audience() Audience {
	return d.audience
}

func (d Detail) Key() DetailKey {
	return d.key
}

func (d Detail) Value() interface{} {
	return d.value
}

// Error is an immutable error value with a code, audience and HTTP status, plus optional details and an
// inner error. Methods that change an Error return a modified copy.
type Error struct {
	message        string
	inner          error
	details        []Detail
	audience       Audience
	code           Code
	httpStatusCode int
}

func NewError(message string, audience Audience, code Code, httpStatusCode int, inner error) Error {
	return Error{
		message:        message,
		inner:          inner,
		audience:       audience,
		code:           code,
		httpStatusCode: httpStatusCode,
	}
}

// Error returns the message followed by any details and the inner error, for logging.
func (e Error) Error() string {
	var b strings.Builder
	b.WriteString(e.message)
	if len(e.details) > 0 {
		b.WriteString(" [")
		for i, d := range e.details {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s=%v", d.key, d.value)
		}
		b.WriteString("]")
	}
	if e.inner != nil {
		fmt.Fprintf(&b, ": %v", e.inner)
	}
	return b.String()
}

func (e Error) Unwrap() error {
	return e.inner
}

// Message is the error message alone, suitable for showing to a user.
func (e Error) Message() string {
	return e.message
}

// Details returns the error's details in the order they were added.
func (e Error) Details() []Detail {
	return append([]Detail(nil), e.details...)
}

func (e Error) Audience() Audience {
	return e.audience
}

func (e Error) Code() Code {
	return e.code
}

func (e Error) HTTPStatusCode() int {
	return e.httpStatusCode
}

// Wrap returns a copy of the error with its inner error replaced by inner.
func (e Error) Wrap(inner error) Error {
	e.inner = inner
	e.details = e.Details()
	return e
}

// IDetail returns a copy of the error with an internal detail added.
func (e Error) IDetail(key DetailKey, value interface{}) Error {
	return e.withDetail(Detail{audience: AudienceInternal, key: key, value: value})
}

// EDetail returns a copy of the error with an external detail added.
func (e Error) EDetail(key DetailKey, value interface{}) Error {
	return e.withDetail(Detail{audience: AudienceExternal, key: key, value: value})
}

// withDetail adds detail, replacing any existing detail with the same key.
func (e Error) withDetail(detail Detail) Error {
	details := make([]Detail, 0, len(e.details)+1)
	for _, d := range e.details {
		if d.key != detail.key {
			details = append(details, d)
		}
	}
	e.details = append(details, detail)
	return e
}
