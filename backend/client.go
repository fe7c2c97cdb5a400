package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"ecovision/logging"
	"ecovision/snapshot"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultBaseURL is where the EcoVision server listens by default
	DefaultBaseURL = "http://localhost:5000"

	// DefaultTimeout for API requests. Analysis runs several detection models, so it is generous.
	DefaultTimeout = 2 * time.Minute

	// DefaultReportFilename is used when the server does not name the report
	DefaultReportFilename = "solar_report.pdf"
)

// Client is the EcoVision server client
type Client struct {
	baseURL    string
	httpClient *http.Client
	debug      bool
	log        logrus.FieldLogger
}

// ClientOption configures the Client
type ClientOption func(*Client)

// WithBaseURL sets the server base URL. Invalid URLs are ignored.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if normalized, err := normalizeBaseURL(baseURL); err == nil {
			c.baseURL = normalized
		}
	}
}

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the HTTP client timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithDebug enables request/response logging
func WithDebug(debug bool) ClientOption {
	return func(c *Client) {
		c.debug = debug
	}
}

// WithLogger sets the logger used for debug output
func WithLogger(log logrus.FieldLogger) ClientOption {
	return func(c *Client) {
		c.log = log
	}
}

// NewClient creates a new EcoVision server client
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		log: logging.WithField("component", "backend"),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// NewClientFromEnv creates a client from ECOVISION_SERVER_URL and ECOVISION_TIMEOUT
func NewClientFromEnv(opts ...ClientOption) (*Client, error) {
	if err := CheckConfig(); err != nil {
		return nil, err
	}

	envOpts := []ClientOption{WithDebug(os.Getenv("ECOVISION_DEBUG") != "")}
	if raw := os.Getenv("ECOVISION_SERVER_URL"); raw != "" {
		envOpts = append(envOpts, WithBaseURL(raw))
	}
	if raw := os.Getenv("ECOVISION_TIMEOUT"); raw != "" {
		timeout, _ := time.ParseDuration(raw)
		envOpts = append(envOpts, WithTimeout(timeout))
	}

	return NewClient(append(envOpts, opts...)...), nil
}

// BaseURL returns the server base URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Analyze submits an image to the analyze endpoint
func (c *Client) Analyze(ctx context.Context, req *AnalyzeRequest) (*AnalysisResult, error) {
	if req == nil || (req.ImagePath == "" && req.CameraImage.IsZero()) {
		return nil, fmt.Errorf("no image provided")
	}

	body, contentType, err := req.multipart()
	if err != nil {
		return nil, err
	}

	respBody, _, err := c.do(ctx, PathAnalyze, contentType, body)
	if err != nil {
		return nil, err
	}

	var result AnalysisResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to parse analysis: %w", err)
	}

	return &result, nil
}

// Recommend asks the server for an AI recommendation based on an analysis
func (c *Client) Recommend(ctx context.Context, req *RecommendRequest) (*RecommendResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	respBody, _, err := c.do(ctx, PathRecommend, "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	var result RecommendResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to parse recommendation: %w", err)
	}

	return &result, nil
}

// DownloadReport requests a PDF report for an analysis
func (c *Client) DownloadReport(ctx context.Context, req *ReportRequest) (*Report, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	respBody, header, err := c.do(ctx, PathDownloadReport, "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	return &Report{
		Data:        respBody,
		ContentType: header.Get("Content-Type"),
		Filename:    reportFilename(header.Get("Content-Disposition")),
	}, nil
}

// do POSTs body to path and returns the response body of a 200 response
func (c *Client) do(ctx context.Context, path, contentType string, body io.Reader) ([]byte, http.Header, error) {
	apiURL := c.baseURL + path

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)

	if c.debug {
		c.log.WithFields(logrus.Fields{"url": apiURL, "content_type": contentType}).Debug("POST")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response: %w", err)
	}

	if c.debug {
		entry := c.log.WithFields(logrus.Fields{
			"url":     apiURL,
			"status":  resp.StatusCode,
			"bytes":   len(respBody),
			"latency": time.Since(start).String(),
		})
		if len(respBody) < 2000 && !strings.HasPrefix(resp.Header.Get("Content-Type"), "application/pdf") {
			entry = entry.WithField("body", string(respBody))
		}
		entry.Debug("response")
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if err := json.Unmarshal(respBody, apiErr); err != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(truncate(string(respBody), 200))
		}
		apiErr.StatusCode = resp.StatusCode
		return nil, nil, apiErr
	}

	return respBody, resp.Header, nil
}

// AnalyzeRequest is an image submission. Either or both image sources may be set.
type AnalyzeRequest struct {
	// ImagePath is an uploaded image file, sent as the "image" file part
	ImagePath string

	// CameraImage is a captured frame, sent as the "camera_image" field
	CameraImage snapshot.DataURL

	// Latitude and Longitude locate the roof for sun position calculation
	Latitude  *float64
	Longitude *float64

	// Time is the moment to compute the sun position for (server uses now if unset)
	Time *time.Time
}

func (r *AnalyzeRequest) multipart() (io.Reader, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	if r.ImagePath != "" {
		file, err := os.Open(r.ImagePath)
		if err != nil {
			return nil, "", fmt.Errorf("failed to open image: %w", err)
		}
		defer file.Close()

		part, err := writer.CreateFormFile(FieldImage, filepath.Base(r.ImagePath))
		if err != nil {
			return nil, "", fmt.Errorf("failed to create form file: %w", err)
		}
		if _, err := io.Copy(part, file); err != nil {
			return nil, "", fmt.Errorf("failed to copy image to form: %w", err)
		}
	}

	if !r.CameraImage.IsZero() {
		if err := writer.WriteField(FieldCameraImage, r.CameraImage.String()); err != nil {
			return nil, "", fmt.Errorf("failed to write %s: %w", FieldCameraImage, err)
		}
	}

	if r.Latitude != nil {
		if err := writer.WriteField(FieldLatitude, strconv.FormatFloat(*r.Latitude, 'f', -1, 64)); err != nil {
			return nil, "", fmt.Errorf("failed to write %s: %w", FieldLatitude, err)
		}
	}

	if r.Longitude != nil {
		if err := writer.WriteField(FieldLongitude, strconv.FormatFloat(*r.Longitude, 'f', -1, 64)); err != nil {
			return nil, "", fmt.Errorf("failed to write %s: %w", FieldLongitude, err)
		}
	}

	if r.Time != nil {
		if err := writer.WriteField(FieldTime, r.Time.Format(time.RFC3339)); err != nil {
			return nil, "", fmt.Errorf("failed to write %s: %w", FieldTime, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart writer: %w", err)
	}

	return body, writer.FormDataContentType(), nil
}

func reportFilename(disposition string) string {
	if disposition == "" {
		return DefaultReportFilename
	}
	_, params, err := mime.ParseMediaType(disposition)
	if err != nil || params["filename"] == "" {
		return DefaultReportFilename
	}
	return filepath.Base(params["filename"])
}

func normalizeBaseURL(raw string) (string, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("invalid server URL %q: scheme must be http or https", raw)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("invalid server URL %q: missing host", raw)
	}
	return strings.TrimSuffix(raw, "/"), nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// CheckConfig validates the optional server configuration
func CheckConfig() error {
	if raw := os.Getenv("ECOVISION_SERVER_URL"); raw != "" {
		if _, err := normalizeBaseURL(raw); err != nil {
			return err
		}
	}
	if raw := os.Getenv("ECOVISION_TIMEOUT"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid ECOVISION_TIMEOUT %q: %w", raw, err)
		}
		if d <= 0 {
			return fmt.Errorf("ECOVISION_TIMEOUT must be positive")
		}
	}
	return nil
}

// GetServerHelp returns help text for pointing the client at a server
func GetServerHelp() string {
	return `EcoVision needs a running analysis server.

Option 1: Create a .env file next to the binary:
  ECOVISION_SERVER_URL=http://localhost:5000

Option 2: Set environment variables:
  export ECOVISION_SERVER_URL="http://localhost:5000"
  export ECOVISION_TIMEOUT="2m"            # optional

The server exposes /analyze, /recommend and /download-report.`
}
