package teamcity

import (
	"crypto/tls"
	"fmt"
	"net/http"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/buildbeaver/autopin/common/logger"
)

// Authenticator adds TeamCity credentials to requests.
type Authenticator interface {
	AuthenticateRequest(h http.Header) (http.Header, error)
	// AuthenticateClient is called once the HTTP client is set up, to allow the authenticator to
	// configure the transport.
	AuthenticateClient(client *retryablehttp.Client) (*retryablehttp.Client, error)
}

// NewAuthenticator selects token authentication if a token is configured, otherwise HTTP basic authentication.
func NewAuthenticator(config ClientConfig, logFactory logger.LogFactory) (Authenticator, error) {
	switch {
	case config.Token != "":
		return NewTokenAuthenticator(config.Token, config.InsecureSkipVerify, logFactory), nil
	case config.Username != "":
		return NewBasicAuthenticator(config.Username, config.Password, config.InsecureSkipVerify, logFactory), nil
	}
	return nil, fmt.Errorf("error no TeamCity credentials configured; set an access token or a username and password")
}

// TokenAuthenticator authenticates requests with a TeamCity access token.
type TokenAuthenticator struct {
	token              AccessToken
	insecureSkipVerify bool
	logger.Log
}

func NewTokenAuthenticator(token AccessToken, insecureSkipVerify bool, logFactory logger.LogFactory) *TokenAuthenticator {
	return &TokenAuthenticator{
		token:              token,
		insecureSkipVerify: insecureSkipVerify,
		Log:                logFactory("TeamCityTokenAuthenticator"),
	}
}

func (a *TokenAuthenticator) AuthenticateClient(client *retryablehttp.Client) (*retryablehttp.Client, error) {
	return configureTLS(client, a.insecureSkipVerify, a.Log), nil
}

func (a *TokenAuthenticator) AuthenticateRequest(h http.Header) (http.Header, error) {
	h.Set("Authorization", "Bearer "+string(a.token))
	return h, nil
}

// BasicAuthenticator authenticates requests with a TeamCity username and password.
type BasicAuthenticator struct {
	username           Username
	password           Password
	insecureSkipVerify bool
	logger.Log
}

func NewBasicAuthenticator(username Username, password Password, insecureSkipVerify bool, logFactory logger.LogFactory) *BasicAuthenticator {
	return &BasicAuthenticator{
		username:           username,
		password:           password,
		insecureSkipVerify: insecureSkipVerify,
		Log:                logFactory("TeamCityBasicAuthenticator"),
	}
}

func (a *BasicAuthenticator) AuthenticateClient(client *retryablehttp.Client) (*retryablehttp.Client, error) {
	return configureTLS(client, a.insecureSkipVerify, a.Log), nil
}

func (a *BasicAuthenticator) AuthenticateRequest(h http.Header) (http.Header, error) {
	req := &http.Request{Header: h}
	req.SetBasicAuth(string(a.username), string(a.password))
	return req.Header, nil
}

func configureTLS(client *retryablehttp.Client, insecureSkipVerify bool, log logger.Log) *retryablehttp.Client {
	if !insecureSkipVerify {
		return client
	}
	log.Warnf("Warning: insecure_skip_verify set; TeamCity client will not verify server certificate")
	if client.HTTPClient.Transport == nil {
		client.HTTPClient.Transport = http.DefaultTransport.(*http.Transport).Clone()
	}
	if transport, ok := client.HTTPClient.Transport.(*http.Transport); ok {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return client
}
