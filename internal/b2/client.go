/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package b2

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// DefaultAPIURL is the public entry point of the B2 native API.
	DefaultAPIURL = "https://api.backblazeb2.com"

	apiPathPrefix = "b2api/v2"

	tracerName = "github.com/WirelessCar/b2-operator/internal/b2"
)

// Client is an HTTP client for the B2 native API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tracer     trace.Tracer
}

type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTracerProvider sets the provider used for authorize spans. Defaults to the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) {
		c.tracer = tp.Tracer(tracerName)
	}
}

// NewClient creates a B2 API client for the given base URL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		tracer: otel.Tracer(tracerName),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Allowed describes the capabilities and restrictions of an application key.
type Allowed struct {
	Capabilities []string `json:"capabilities,omitempty"`
	BucketID     string   `json:"bucketId,omitempty"`
	BucketName   string   `json:"bucketName,omitempty"`
	NamePrefix   string   `json:"namePrefix,omitempty"`
}

// Authorization is the response of b2_authorize_account. It is handed out as
// an opaque handle for later B2 calls.
type Authorization struct {
	AccountID               string  `json:"accountId"`
	AuthorizationToken      string  `json:"authorizationToken"`
	Allowed                 Allowed `json:"allowed"`
	APIURL                  string  `json:"apiUrl"`
	DownloadURL             string  `json:"downloadUrl"`
	S3APIURL                string  `json:"s3ApiUrl,omitempty"`
	RecommendedPartSize     int64   `json:"recommendedPartSize"`
	AbsoluteMinimumPartSize int64   `json:"absoluteMinimumPartSize"`
}

// Authorize calls b2_authorize_account with the given application key.
// Failing to reach B2 yields a *TransportError, an error reported by B2 yields an
// *APIError and a response that is neither yields a *ProtocolError.
func (c *Client) Authorize(ctx context.Context, keyID string, applicationKey string) (auth *Authorization, retErr error) {
	ctx, span := c.tracer.Start(ctx, "b2.AuthorizeAccount",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("b2.key_id", keyID)))
	defer func() {
		if retErr != nil {
			span.RecordError(retErr)
			span.SetStatus(codes.Error, retErr.Error())
		}
		span.End()
	}()

	u := strings.TrimSuffix(c.baseURL, "/") + "/" + apiPathPrefix + "/b2_authorize_account"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create authorize request: %w", err)
	}
	req.SetBasicAuth(keyID, applicationKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: "GET " + u, Err: err}
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil && retErr == nil {
			retErr = &TransportError{Op: "close response body", Err: closeErr}
		}
	}()
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, decodeError(u, resp)
	}

	var out Authorization
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &ProtocolError{Status: resp.StatusCode, Err: fmt.Errorf("decode authorize response: %w", err)}
	}
	return &out, nil
}

func decodeError(u string, resp *http.Response) error {
	slurp, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Op: "read error response", Err: err}
	}
	apiErr := &APIError{}
	if err := json.Unmarshal(slurp, apiErr); err != nil || apiErr.Code == "" {
		return &ProtocolError{
			Status: resp.StatusCode,
			Err:    fmt.Errorf("GET %s: unexpected error body: %s", u, string(slurp)),
		}
	}
	if apiErr.Status == 0 {
		apiErr.Status = resp.StatusCode
	}
	return apiErr
}
