// Authenticated HTTP client shared by the remote backends
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tunebox/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

// Authenticator performs the login exchange of one remote dialect and attaches its token to requests.
type Authenticator interface {
	// Login exchanges credentials for a new token. It must use [APIClient.Exchange] so the
	// exchange itself is never retried through the 401 path.
	Login(ctx context.Context, c *APIClient) (*oauth2.Token, error)

	// Authorize attaches token to req.
	Authorize(req *http.Request, token *oauth2.Token)
}

// Credential is a token plus the generation it was issued in. Generations only grow.
type Credential struct {
	Token      *oauth2.Token
	Generation uint64
}

// APIClient issues requests to one remote endpoint with a bearer token it acquires on first use
// and replaces when a request using it is answered with 401.
//
// At most one login exchange is in flight per client. Callers that hit a 401 while another caller
// is logging in wait for it and retry with the new token instead of logging in again.
type APIClient struct {
	baseURL    *url.URL
	httpClient *http.Client
	auth       Authenticator
	limiter    *rate.Limiter
	logger     *log.Logger

	loginLock chan struct{}
	cred      atomic.Pointer[Credential]
	logins    atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
}

// APIClientOpts configures an [APIClient].
type APIClientOpts struct {
	BaseURL    string
	HTTPClient *http.Client
	Auth       Authenticator
	Timeout    time.Duration
	RateLimit  float64 // requests per second, 0 disables limiting
	Burst      int
	Logger     *log.Logger
}

// APIResponse represents a raw API response with status and body.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// Request describes one call relative to the client's base URL.
type Request struct {
	Method string
	Path   []string
	Query  url.Values
	Body   any // encoded as JSON when non-nil
	Header http.Header
}

// NewAPIClient creates a client bound to opts.BaseURL.
func NewAPIClient(opts APIClientOpts) (*APIClient, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("%w: invalid base URL %q", shared.ErrInvalidProvider, opts.BaseURL)
	}
	if opts.Auth == nil {
		return nil, fmt.Errorf("%w: authenticator is required", shared.ErrInvalidProvider)
	}

	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout, Transport: http.DefaultTransport.(*http.Transport).Clone()}
	}

	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}

	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &APIClient{
		baseURL:    base,
		httpClient: client,
		auth:       opts.Auth,
		limiter:    rate.NewLimiter(limit, burst),
		logger:     logger.With("endpoint", base.Host),
		loginLock:  make(chan struct{}, 1),
		ctx:        ctx,
		cancel:     cancel,
	}, nil
}

// BaseURL returns the endpoint this client talks to.
func (a *APIClient) BaseURL() *url.URL {
	u := *a.baseURL
	return &u
}

// Credential returns the current credential, or nil before the first login.
func (a *APIClient) Credential() *Credential {
	return a.cred.Load()
}

// Logins returns how many login exchanges have succeeded.
func (a *APIClient) Logins() int64 {
	return a.logins.Load()
}

// URL builds an absolute URL under the base URL.
func (a *APIClient) URL(path []string, query url.Values) string {
	u := a.BaseURL()
	for _, segment := range path {
		u = u.JoinPath(segment)
	}
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// Do sends r with the current token, logging in first when there is none and once more when the
// token is rejected with 401. The response is returned whatever its status.
func (a *APIClient) Do(ctx context.Context, r Request) (*APIResponse, error) {
	ctx, release, err := a.bind(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	body, err := encodeBody(r.Body)
	if err != nil {
		return nil, err
	}

	tried := a.cred.Load()
	if tried != nil {
		resp, err := a.send(ctx, r, body, tried.Token)
		if err != nil || resp.StatusCode != http.StatusUnauthorized {
			return resp, err
		}
		a.logger.Debug("token rejected", "generation", tried.Generation, "path", strings.Join(r.Path, "/"))
	}

	next, err := a.refresh(ctx, tried)
	if err != nil {
		return nil, err
	}
	return a.send(ctx, r, body, next.Token)
}

// Exchange sends r without a token and without the 401 retry. Authenticators use it to log in.
func (a *APIClient) Exchange(ctx context.Context, r Request) (*APIResponse, error) {
	body, err := encodeBody(r.Body)
	if err != nil {
		return nil, err
	}
	return a.send(ctx, r, body, nil)
}

// Send performs r and decodes a successful JSON body into out, which may be nil.
//
// Non-2xx statuses map through [shared.HTTPStatusError]. A 2xx body that cannot be decoded is
// [shared.ErrDeserialization]; an empty one where a body was expected is [shared.ErrInvalidResponse].
func (a *APIClient) Send(ctx context.Context, r Request, out any) error {
	resp, err := a.Do(ctx, r)
	if err != nil {
		return err
	}
	return decodeResponse(r, resp, out)
}

// Get performs a GET request and decodes the JSON response into out.
func (a *APIClient) Get(ctx context.Context, path []string, query url.Values, out any) error {
	return a.Send(ctx, Request{Method: http.MethodGet, Path: path, Query: query}, out)
}

// Post performs a POST request with a JSON body and decodes the JSON response into out.
func (a *APIClient) Post(ctx context.Context, path []string, query url.Values, body, out any) error {
	return a.Send(ctx, Request{Method: http.MethodPost, Path: path, Query: query, Body: body}, out)
}

// Delete performs a DELETE request.
func (a *APIClient) Delete(ctx context.Context, path []string, query url.Values) error {
	return a.Send(ctx, Request{Method: http.MethodDelete, Path: path, Query: query}, nil)
}

// Close cancels every in-flight request and drops the token.
func (a *APIClient) Close() error {
	a.cancel()
	a.cred.Store(nil)
	a.httpClient.CloseIdleConnections()
	return nil
}

// refresh returns a credential newer than tried, logging in only when no other caller already
// replaced it.
func (a *APIClient) refresh(ctx context.Context, tried *Credential) (*Credential, error) {
	select {
	case a.loginLock <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: waiting for login: %w", shared.ErrIO, ctx.Err())
	}
	defer func() { <-a.loginLock }()

	var triedGen uint64
	if tried != nil {
		triedGen = tried.Generation
	}
	if current := a.cred.Load(); current != nil && current.Generation != triedGen {
		return current, nil
	}

	a.logger.Debug("logging in", "previous_generation", triedGen)
	token, err := a.auth.Login(ctx, a)
	if err != nil {
		a.logger.Warn("login failed", "error", err)
		return nil, fmt.Errorf("%w: login failed: %w", shared.ErrAuthenticationRequired, err)
	}
	if token == nil || token.AccessToken == "" {
		return nil, fmt.Errorf("%w: login returned no token", shared.ErrAuthenticationRequired)
	}

	next := &Credential{Token: token, Generation: triedGen + 1}
	if current := a.cred.Load(); current != nil && current.Generation >= next.Generation {
		next.Generation = current.Generation + 1
	}
	a.cred.Store(next)
	a.logins.Add(1)
	return next, nil
}

func (a *APIClient) send(ctx context.Context, r Request, body []byte, token *oauth2.Token) (*APIResponse, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limiter: %w", shared.ErrIO, err)
	}

	method := r.Method
	if method == "" {
		method = http.MethodGet
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.URL(r.Path, r.Query), reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for key, values := range r.Header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != nil {
		a.auth.Authorize(req, token)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request failed: %w", shared.ErrIO, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %w", shared.ErrIO, err)
	}

	return &APIResponse{StatusCode: resp.StatusCode, Headers: resp.Header, Body: data}, nil
}

// bind derives a context that is also cancelled when the client is closed.
func (a *APIClient) bind(ctx context.Context) (context.Context, context.CancelFunc, error) {
	if a.ctx.Err() != nil {
		return nil, nil, shared.ErrServiceClosed
	}
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(a.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}, nil
}

func encodeBody(body any) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request body: %w", err)
	}
	return data, nil
}

func decodeResponse(r Request, resp *APIResponse, out any) error {
	if kind := shared.HTTPStatusError(resp.StatusCode); kind != nil {
		return fmt.Errorf("%w: %s /%s returned %d", kind, r.Method, strings.Join(r.Path, "/"), resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if len(bytes.TrimSpace(resp.Body)) == 0 {
		return fmt.Errorf("%w: empty body from /%s", shared.ErrInvalidResponse, strings.Join(r.Path, "/"))
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("%w: /%s: %w", shared.ErrDeserialization, strings.Join(r.Path, "/"), err)
	}
	return nil
}
