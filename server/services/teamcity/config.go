package teamcity

import "time"

type ServerURL string

func (u ServerURL) String() string {
	return string(u)
}

// AccessToken is a TeamCity access token. Takes precedence over a username and password.
type AccessToken string

type Username string

type Password string

type ClientConfig struct {
	URL      ServerURL
	Token    AccessToken
	Username Username
	Password Password
	// InsecureSkipVerify disables verification of the TeamCity server's TLS certificate. For testing only.
	InsecureSkipVerify bool
	// RetryMax is the maximum number of times a request is retried after a transport error or 5xx response.
	RetryMax int
	// Timeout is the timeout for each attempt at a request.
	Timeout time.Duration
}

const (
	DefaultRetryMax = 4
	DefaultTimeout  = 30 * time.Second
)
