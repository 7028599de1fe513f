package conversion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/fpang/sketchflow/internal/artifact"
	"github.com/rs/zerolog/log"
)

// maxResponseBytes bounds how much of a backend body is read.
const maxResponseBytes = 8 << 20

// Request is one outbound conversion call.
type Request struct {
	Artifact *artifact.Artifact
	Format   Format
	Notes    string
	// Token is attached as a bearer token when non-empty.
	Token string
}

// Response is the backend's conversion reply.
type Response struct {
	JobID  string  `json:"job_id"`
	Status string  `json:"status"`
	Result *Result `json:"result,omitempty"`
	Error  string  `json:"error,omitempty"`
}

// Result holds the generated diagram source.
type Result struct {
	Code   string `json:"code"`
	JobID  string `json:"job_id,omitempty"`
	Format string `json:"format,omitempty"`
}

// Backend performs conversion calls. *Client is the production implementation.
type Backend interface {
	Convert(ctx context.Context, req *Request) (*Response, error)
}

// Client talks to the conversion backend over HTTP.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a backend client for the given origin. The client sets no
// timeout of its own; callers bound each call through ctx.
func NewClient(baseURL string) *Client {
	return &Client{
		httpClient: &http.Client{},
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// BaseURL returns the backend origin.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Convert posts the artifact, format, and notes as multipart form data to /api/convert.
func (c *Client) Convert(ctx context.Context, req *Request) (*Response, error) {
	if req.Artifact == nil {
		return nil, ErrNoArtifact
	}

	body, contentType, err := encodeMultipart(req)
	if err != nil {
		return nil, &Failure{Kind: FailureNetwork, Message: "build conversion request", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/convert", body)
	if err != nil {
		return nil, &Failure{Kind: FailureNetwork, Message: "build conversion request", Err: err}
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")
	if req.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.Token)
	}

	log.Debug().
		Str("format", req.Format.WireName()).
		Int64("bytes", req.Artifact.Size()).
		Bool("authenticated", req.Token != "").
		Msg("Sending conversion request")

	start := time.Now()
	raw, status, err := c.do(httpReq)
	if err != nil {
		return nil, err
	}
	if status < 200 || status > 299 {
		return nil, &Failure{Kind: FailureHTTP, StatusCode: status, Message: errorMessage(raw, "conversion request failed")}
	}

	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &Failure{Kind: FailureDecode, StatusCode: status, Message: "parse conversion response", Err: err}
	}

	log.Debug().
		Str("status", resp.Status).
		Str("jobId", resp.JobID).
		Dur("duration", time.Since(start)).
		Msg("Conversion response received")
	return &resp, nil
}

// FetchCode retrieves the authoritative source for a previous job. A bearer
// token is required by the backend for this endpoint.
func (c *Client) FetchCode(ctx context.Context, jobID, token string) (string, error) {
	if strings.TrimSpace(jobID) == "" {
		return "", fmt.Errorf("job id is required")
	}
	if token == "" {
		return "", &Failure{Kind: FailureHTTP, StatusCode: http.StatusUnauthorized, Message: "sign in required to fetch conversion code"}
	}

	u := fmt.Sprintf("%s/api/conversions/%s/code", c.baseURL, url.PathEscape(jobID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	raw, status, err := c.do(req)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", &Failure{Kind: FailureHTTP, StatusCode: status, Message: errorMessage(raw, "fetch conversion code failed")}
	}

	var out struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", &Failure{Kind: FailureDecode, StatusCode: status, Message: "parse code response", Err: err}
	}
	return out.Code, nil
}

// Health checks GET /healthz.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	raw, status, err := c.do(req)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return &Failure{Kind: FailureHTTP, StatusCode: status, Message: errorMessage(raw, "health check failed")}
	}
	return nil
}

func (c *Client) do(req *http.Request) ([]byte, int, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, classifyTransportError(req.Context(), err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, resp.StatusCode, classifyTransportError(req.Context(), err)
	}
	return raw, resp.StatusCode, nil
}

func classifyTransportError(ctx context.Context, err error) error {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return &Failure{Kind: FailureTimeout, Message: "conversion request timed out", Err: err}
	case errors.Is(ctx.Err(), context.Canceled):
		return &Failure{Kind: FailureCanceled, Message: "conversion request canceled", Err: err}
	default:
		return &Failure{Kind: FailureNetwork, Message: "could not reach conversion backend", Err: err}
	}
}

func encodeMultipart(req *Request) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	name := req.Artifact.Name
	if name == "" {
		name = "sketch"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(name)))
	h.Set("Content-Type", req.Artifact.MIMEType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("create file part: %w", err)
	}
	if _, err := part.Write(req.Artifact.Data); err != nil {
		return nil, "", fmt.Errorf("write file part: %w", err)
	}
	if err := w.WriteField("format", req.Format.WireName()); err != nil {
		return nil, "", fmt.Errorf("write format field: %w", err)
	}
	if err := w.WriteField("notes", req.Notes); err != nil {
		return nil, "", fmt.Errorf("write notes field: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

// errorMessage extracts a FastAPI "detail" or an "error" field from body,
// falling back to the truncated raw body.
func errorMessage(body []byte, fallback string) string {
	var parsed struct {
		Detail json.RawMessage `json:"detail"`
		Error  string          `json:"error"`
	}
	if json.Unmarshal(body, &parsed) == nil {
		var detail string
		if len(parsed.Detail) > 0 && json.Unmarshal(parsed.Detail, &detail) == nil && detail != "" {
			return truncate(detail, 300)
		}
		if parsed.Error != "" {
			return truncate(parsed.Error, 300)
		}
	}
	if s := strings.TrimSpace(string(body)); s != "" {
		return fallback + ": " + truncate(s, 300)
	}
	return fallback
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
