package compreface

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/r0gig0r/double-take/config"
)

const defaultTimeoutSeconds = 15

// Client talks to the CompreFace recognition API.
type Client struct {
	cfg        config.CompreFaceConfig
	httpClient *http.Client
}

// APIError is a non-2xx answer from CompreFace. The status code and
// message are surfaced to the caller untouched.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("compreface returned status %d: %s", e.StatusCode, e.Message)
}

// EnrollResponse is the answer to adding a subject example.
type EnrollResponse struct {
	ImageID string `json:"image_id"`
	Subject string `json:"subject"`
}

// facesPage is the answer of the per-subject faces listing.
type facesPage struct {
	TotalElements int `json:"total_elements"`
	Faces         []struct {
		ImageID string `json:"image_id"`
	} `json:"faces"`
}

// NewClient creates a CompreFace client. The request timeout comes from
// the configuration and defaults to 15 seconds.
func NewClient(cfg config.CompreFaceConfig) *Client {
	timeout := cfg.TimeoutSeconds
	if timeout <= 0 {
		timeout = defaultTimeoutSeconds
	}
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: time.Duration(timeout) * time.Second,
		},
	}
}

// Enabled reports whether a provider is configured.
func (c *Client) Enabled() bool {
	return c.cfg.Enabled
}

// Subjects returns all subject names known to CompreFace.
func (c *Client) Subjects(ctx context.Context) ([]string, error) {
	apiURL, err := url.JoinPath(c.cfg.URL, "/api/v1/recognition/subjects")
	if err != nil {
		return nil, fmt.Errorf("failed to create API URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("x-api-key", c.cfg.RecognitionAPIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.apiError(resp)
	}

	var result struct {
		Subjects []string `json:"subjects"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	log.Debugf("Retrieved %d subjects from CompreFace", len(result.Subjects))
	return result.Subjects, nil
}

// SubjectFaceCount returns the number of example images trained for a
// subject.
func (c *Client) SubjectFaceCount(ctx context.Context, subject string) (int, error) {
	apiURL, err := url.JoinPath(c.cfg.URL, "/api/v1/recognition/faces")
	if err != nil {
		return 0, fmt.Errorf("failed to create API URL: %w", err)
	}

	u, err := url.Parse(apiURL)
	if err != nil {
		return 0, fmt.Errorf("failed to parse URL: %w", err)
	}
	q := u.Query()
	q.Set("subject", subject)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("x-api-key", c.cfg.RecognitionAPIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, c.apiError(resp)
	}

	var page facesPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return 0, fmt.Errorf("failed to decode response: %w", err)
	}

	count := page.TotalElements
	if count == 0 {
		count = len(page.Faces)
	}
	return count, nil
}

// AddSubjectExample streams an image to CompreFace as a new training
// example for the subject and returns the image id it was stored under.
func (c *Client) AddSubjectExample(ctx context.Context, subject string, image io.Reader, filename string) (*EnrollResponse, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, image); err != nil {
		return nil, fmt.Errorf("failed to copy image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	apiURL, err := url.JoinPath(c.cfg.URL, "/api/v1/recognition/faces")
	if err != nil {
		return nil, fmt.Errorf("failed to create API URL: %w", err)
	}

	u, err := url.Parse(apiURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	q := u.Query()
	q.Set("subject", subject)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("x-api-key", c.cfg.RecognitionAPIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, c.apiError(resp)
	}

	var result EnrollResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	log.Infof("Added example for subject %s with image ID %s", subject, result.ImageID)
	return &result, nil
}

// apiError reads a failed response into an APIError, falling back to a
// generic message when the provider gives none.
func (c *Client) apiError(resp *http.Response) *APIError {
	bodyBytes, _ := io.ReadAll(resp.Body)

	var payload struct {
		Message string `json:"message"`
	}
	_ = json.Unmarshal(bodyBytes, &payload)

	message := payload.Message
	if message == "" {
		message = "face recognition provider request failed"
	}

	log.Warnf("CompreFace API error (status %d): %s", resp.StatusCode, string(bodyBytes))
	return &APIError{StatusCode: resp.StatusCode, Message: message}
}
