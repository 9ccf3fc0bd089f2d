package teamcity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"

	"github.com/buildbeaver/autopin/common/gerror"
	"github.com/buildbeaver/autopin/common/logger"
	"github.com/buildbeaver/autopin/common/util"
)

const maxErrorBodyChars = 512

// Client talks to the TeamCity REST API. It implements services.BuildHistory and, through
// FeatureRuleProvider, services.RuleProvider.
type Client struct {
	baseURL         *url.URL
	retryableClient *retryablehttp.Client
	authenticator   Authenticator
	logger.Log
}

func NewClient(config ClientConfig, authenticator Authenticator, logFactory logger.LogFactory) (*Client, error) {
	log := logFactory("TeamCityClient")
	if config.URL == "" {
		return nil, fmt.Errorf("error TeamCity server URL must be set")
	}
	baseURL, err := url.Parse(config.URL.String())
	if err != nil || baseURL.Host == "" {
		return nil, fmt.Errorf("error invalid TeamCity server URL %q", config.URL)
	}
	if !strings.HasSuffix(baseURL.Path, "/") {
		baseURL.Path += "/"
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}

	retryableClient := retryablehttp.NewClient()
	retryableClient.RetryWaitMin = time.Millisecond * 100
	retryableClient.RetryWaitMax = time.Second * 5
	retryableClient.RetryMax = config.RetryMax
	retryableClient.Logger = NewLeveledLogger(log)
	retryableClient.HTTPClient = &http.Client{Timeout: config.Timeout}
	// Hand the final response back instead of an opaque "giving up" error, so it can be mapped to a gerror
	retryableClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	if authenticator != nil {
		retryableClient, err = authenticator.AuthenticateClient(retryableClient)
		if err != nil {
			return nil, fmt.Errorf("error setting up HTTP client for authentication: %w", err)
		}
	}
	return &Client{
		baseURL:         baseURL,
		retryableClient: retryableClient,
		authenticator:   authenticator,
		Log:             log,
	}, nil
}

// getJSON reads the resource at path into out, returning a gerror if the server responds with anything but 200.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	statusCode, body, err := c.doRequest(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return err
	}
	if statusCode != http.StatusOK {
		return c.makeHTTPError(statusCode, body)
	}
	err = json.Unmarshal(body, out)
	if err != nil {
		return errors.Wrapf(err, "error parsing response from %s", path)
	}
	return nil
}

// putJSON sends data to the resource at path, accepting any of validCodes as success.
func (c *Client) putJSON(ctx context.Context, path string, data interface{}, validCodes ...int) error {
	statusCode, body, err := c.doRequest(ctx, http.MethodPut, path, nil, data)
	if err != nil {
		return err
	}
	if !isOneOf(statusCode, validCodes) {
		return c.makeHTTPError(statusCode, body)
	}
	return nil
}

// doRequest performs an HTTP request against a path relative to the REST API root and returns the status
// code and response body. No status code inspection is made.
func (c *Client) doRequest(ctx context.Context, method string, path string, query url.Values, data interface{}) (int, []byte, error) {
	endpoint, err := c.resolve(path)
	if err != nil {
		return -1, nil, err
	}
	if len(query) > 0 {
		endpoint.RawQuery = query.Encode()
	}
	var buf []byte
	if data != nil {
		buf, err = json.Marshal(data)
		if err != nil {
			return -1, nil, errors.Wrap(err, "error marshaling request data to JSON")
		}
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, endpoint.String(), buf)
	if err != nil {
		return -1, nil, errors.Wrap(err, "error making request")
	}
	if c.authenticator != nil {
		req.Header, err = c.authenticator.AuthenticateRequest(req.Header)
		if err != nil {
			return -1, nil, errors.Wrap(err, "error authenticating request")
		}
	}
	req.Header.Set("Accept", "application/json")
	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.Tracef("%s %s", method, endpoint)
	res, err := c.retryableClient.Do(req)
	if err != nil {
		return -1, nil, gerror.NewError(
			fmt.Sprintf("Error connecting to TeamCity: %s %s", method, endpoint.Path),
			gerror.AudienceInternal,
			gerror.ErrHttpOperationFailed,
			http.StatusBadGateway,
			err,
		)
	}
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return -1, nil, errors.Wrap(err, "error reading response body")
	}
	return res.StatusCode, body, nil
}

// resolve turns a REST path (e.g. "app/rest/builds/id:1") or a server-relative href returned by
// TeamCity (e.g. "/app/rest/builds?locator=...") into a URL under the configured server URL.
func (c *Client) resolve(pathOrHref string) (*url.URL, error) {
	ref, err := url.Parse(strings.TrimPrefix(pathOrHref, c.baseURL.Path))
	if err != nil {
		return nil, errors.Wrapf(err, "error parsing request path %q", pathOrHref)
	}
	ref.Path = strings.TrimPrefix(ref.Path, "/")
	return c.baseURL.ResolveReference(ref), nil
}

// makeHTTPError converts an unexpected TeamCity response into a gerror. TeamCity error bodies are plain
// text, so the (truncated) body is kept as an internal detail.
func (c *Client) makeHTTPError(statusCode int, body []byte) error {
	text := util.Abbreviate(strings.TrimSpace(string(body)), maxErrorBodyChars)
	var gErr gerror.Error
	switch statusCode {
	case http.StatusNotFound:
		gErr = gerror.NewErrNotFound("Not found in TeamCity")
	case http.StatusUnauthorized, http.StatusForbidden:
		gErr = gerror.NewError("TeamCity refused the configured credentials", gerror.AudienceInternal,
			gerror.ErrCodeUnauthorized, http.StatusBadGateway, nil)
	default:
		gErr = gerror.NewError(fmt.Sprintf("Error %d in TeamCity response", statusCode), gerror.AudienceInternal,
			gerror.ErrHttpOperationFailed, http.StatusBadGateway, nil)
	}
	return gErr.IDetail("teamcity_status", statusCode).IDetail("teamcity_response", text)
}

// isOneOf returns true iff an HTTP status code is one of the supplied set of valid codes.
func isOneOf(statusCode int, validCodes []int) bool {
	for _, code := range validCodes {
		if statusCode == code {
			return true
		}
	}
	return false
}
