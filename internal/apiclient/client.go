// Package apiclient talks to the twinboard server: the chunked upload protocol
// and the onboarding collaborators.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/templui/twinboard/internal/model"
	"github.com/templui/twinboard/internal/upload"
	"github.com/templui/twinboard/internal/validation"
)

const maxErrorBody = 4 << 10

// APIError is a non-2xx response. Code is the machine-readable code from the
// JSON error body, e.g. "kind_mismatch".
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// Is lets callers match finalize failures with the upload sentinels.
func (e *APIError) Is(target error) bool {
	fe, ok := target.(*upload.FinalizeError)
	return ok && e.Code != "" && fe.Code == e.Code
}

// Client is the twinboard API client.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a client authenticating with a bearer token. A zero timeout
// leaves request deadlines to the caller's context.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *Client) Init(ctx context.Context, kind model.MediaKind, req model.UploadInitRequest) (model.UploadPlan, error) {
	var plan model.UploadPlan
	err := c.doJSON(ctx, http.MethodPost, c.baseURL+"/upload/"+url.PathEscape(kind.String())+"/init", req, &plan)
	if err != nil {
		return model.UploadPlan{}, err
	}
	return plan, nil
}

// Put uploads one part and returns its etag.
func (c *Client) Put(ctx context.Context, target string, content []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.resolve(target), bytes.NewReader(content))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.ContentLength = int64(len(content))

	var out model.PutPartResponse
	if err := c.do(req, &out); err != nil {
		return "", err
	}
	return out.ETag, nil
}

func (c *Client) Complete(ctx context.Context, target string, req model.UploadCompleteRequest) (model.UploadCompleteResponse, error) {
	var out model.UploadCompleteResponse
	if err := c.doJSON(ctx, http.MethodPost, c.resolve(target), req, &out); err != nil {
		return model.UploadCompleteResponse{}, err
	}
	return out, nil
}

// SavePersonality stores the personality step and returns the profile id.
func (c *Client) SavePersonality(ctx context.Context, req model.SavePersonalityRequest) (string, error) {
	var out model.SavePersonalityResponse
	if err := c.doJSON(ctx, http.MethodPost, c.baseURL+"/api/onboarding/personality", req, &out); err != nil {
		return "", err
	}
	return out.ProfileID, nil
}

func (c *Client) Commit(ctx context.Context, req model.CommitRequest) (model.JobStatus, error) {
	var out model.JobStatus
	if err := c.doJSON(ctx, http.MethodPost, c.baseURL+"/api/onboarding/commit", req, &out); err != nil {
		return model.JobStatus{}, err
	}
	return out, nil
}

func (c *Client) Job(ctx context.Context, jobID string) (model.JobStatus, error) {
	var out model.JobStatus
	if err := c.doJSON(ctx, http.MethodGet, c.baseURL+"/api/onboarding/jobs/"+url.PathEscape(jobID), nil, &out); err != nil {
		return model.JobStatus{}, err
	}
	return out, nil
}

// MediaURL returns a playback link for a finalized upload.
func (c *Client) MediaURL(ctx context.Context, uploadID string) (string, error) {
	var out struct {
		URL string `json:"url"`
	}
	if err := c.doJSON(ctx, http.MethodGet, c.baseURL+"/api/media/"+url.PathEscape(uploadID)+"/url", nil, &out); err != nil {
		return "", err
	}
	return c.resolve(out.URL), nil
}

func (c *Client) Consent(ctx context.Context) (model.ConsentDocument, error) {
	var out model.ConsentDocument
	if err := c.doJSON(ctx, http.MethodGet, c.baseURL+"/api/onboarding/consent", nil, &out); err != nil {
		return model.ConsentDocument{}, err
	}
	return out, nil
}

// CaptureConfig fetches the server's capture constraints.
func (c *Client) CaptureConfig(ctx context.Context) (validation.CaptureConfig, error) {
	var out validation.CaptureConfig
	if err := c.doJSON(ctx, http.MethodGet, c.baseURL+"/api/onboarding/config", nil, &out); err != nil {
		return validation.CaptureConfig{}, err
	}
	return out, nil
}

// resolve accepts absolute upload targets as returned by the server and
// relative ones rooted at the base URL.
func (c *Client) resolve(target string) string {
	if strings.HasPrefix(target, "/") {
		return c.baseURL + target
	}
	return target
}

func (c *Client) doJSON(ctx context.Context, method, target string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	apiErr := &APIError{Status: resp.StatusCode}

	var body struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	if json.Unmarshal(raw, &body) == nil && (body.Error != "" || body.Code != "") {
		apiErr.Code = body.Code
		apiErr.Message = body.Error
	} else {
		apiErr.Message = strings.TrimSpace(string(raw))
		if apiErr.Message == "" {
			apiErr.Message = resp.Status
		}
	}
	return apiErr
}
