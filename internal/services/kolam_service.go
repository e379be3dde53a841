package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/kolamai/studio/internal/logger"
)

// KolamService is the HTTP client for the remote kolam analysis API. It
// owns no retry or cancellation policy; every call is issued once and its
// outcome reported to the caller.
type KolamService struct {
	baseURL   string
	client    *http.Client
	apiCalls  []APICall
	callMutex sync.RWMutex
}

// APICall tracks one upstream request for the admin view.
type APICall struct {
	ID        string        `json:"id"`
	Timestamp time.Time     `json:"timestamp"`
	Endpoint  string        `json:"endpoint"`
	CallType  string        `json:"callType"` // "classify", "search", "predict", "render", "recreate"
	Status    int           `json:"status"`
	Duration  time.Duration `json:"duration"`
	Error     string        `json:"error,omitempty"`
}

type searchResponse struct {
	Matches []string `json:"matches"`
}

type predictResponse struct {
	Prediction string `json:"prediction"`
}

type renderResponse struct {
	Message string `json:"message"`
	File    string `json:"file"`
}

type recreateResponse struct {
	RecreatedImage string `json:"recreatedImage"`
}

func NewKolamService(baseURL string) *KolamService {
	if baseURL == "" {
		baseURL = "http://localhost:8000"
	}

	timeoutStr := os.Getenv("KOLAM_API_TIMEOUT_SECONDS")
	timeout := 120 * time.Second
	if timeoutStr != "" {
		if t, err := time.ParseDuration(timeoutStr + "s"); err == nil {
			timeout = t
		}
	}

	return &KolamService{
		baseURL:  baseURL,
		client:   &http.Client{Timeout: timeout},
		apiCalls: make([]APICall, 0),
	}
}

// BaseURL returns the configured upstream base URL.
func (ks *KolamService) BaseURL() string {
	return ks.baseURL
}

// GetAPICalls returns all tracked upstream API calls
func (ks *KolamService) GetAPICalls() []APICall {
	ks.callMutex.RLock()
	defer ks.callMutex.RUnlock()

	calls := make([]APICall, len(ks.apiCalls))
	copy(calls, ks.apiCalls)
	return calls
}

// ClearAPICalls clears the API call history
func (ks *KolamService) ClearAPICalls() {
	ks.callMutex.Lock()
	defer ks.callMutex.Unlock()
	ks.apiCalls = make([]APICall, 0)
}

func (ks *KolamService) trackAPICall(endpoint, callType string, status int, duration time.Duration, errMsg string) {
	ks.callMutex.Lock()
	defer ks.callMutex.Unlock()

	// Keep only last 100 calls to prevent memory issues
	if len(ks.apiCalls) >= 100 {
		ks.apiCalls = ks.apiCalls[1:]
	}
	ks.apiCalls = append(ks.apiCalls, APICall{
		ID:        fmt.Sprintf("kolam_%d", time.Now().UnixNano()),
		Timestamp: time.Now(),
		Endpoint:  endpoint,
		CallType:  callType,
		Status:    status,
		Duration:  duration,
		Error:     errMsg,
	})
}

// Classify submits an image to the classifier and returns the structured
// kolam representation verbatim. The upstream reports some failures as a
// 200 response carrying an "error" field; those are surfaced as errors.
func (ks *KolamService) Classify(filename string, image []byte) (json.RawMessage, error) {
	body, err := ks.postImage("/api/know-your-kolam", "classify", filename, image)
	if err != nil {
		return nil, err
	}

	var probe struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return nil, fmt.Errorf("failed to decode classify response: %w", err)
	}
	if probe.Error != "" {
		return nil, fmt.Errorf("classify failed upstream: %s", probe.Error)
	}

	return json.RawMessage(body), nil
}

// Search submits an image to similarity search and returns the ordered
// matches.
func (ks *KolamService) Search(filename string, image []byte) ([]string, error) {
	body, err := ks.postImage("/api/search", "search", filename, image)
	if err != nil {
		return nil, err
	}

	var res searchResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}
	return res.Matches, nil
}

// Predict submits an image to the region classifier.
func (ks *KolamService) Predict(filename string, image []byte) (string, error) {
	body, err := ks.postImage("/api/predict", "predict", filename, image)
	if err != nil {
		return "", err
	}

	var res predictResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return "", fmt.Errorf("failed to decode predict response: %w", err)
	}
	return res.Prediction, nil
}

// Render submits a structured representation document and returns the
// rendered image reference.
func (ks *KolamService) Render(doc json.RawMessage) (string, error) {
	startTime := time.Now()
	endpoint := "/api/create_kolam"
	url := ks.baseURL + endpoint

	resp, err := ks.client.Post(url, "application/json", bytes.NewReader(doc))
	elapsed := time.Since(startTime)

	if err != nil {
		ks.trackAPICall(endpoint, "render", 0, elapsed, fmt.Sprintf("HTTP request failed: %v", err))
		return "", fmt.Errorf("render request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		ks.trackAPICall(endpoint, "render", resp.StatusCode, elapsed, fmt.Sprintf("kolam API returned status %d", resp.StatusCode))
		return "", fmt.Errorf("kolam API returned status %d, body: %s", resp.StatusCode, string(respBody))
	}

	var res renderResponse
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		ks.trackAPICall(endpoint, "render", resp.StatusCode, elapsed, fmt.Sprintf("failed to decode response: %v", err))
		return "", fmt.Errorf("failed to decode render response: %w", err)
	}

	ks.trackAPICall(endpoint, "render", resp.StatusCode, elapsed, "")
	return res.File, nil
}

// Recreate submits an image for symmetric recreation and returns the
// recreated image reference.
func (ks *KolamService) Recreate(filename string, image []byte) (string, error) {
	body, err := ks.postImage("/api/recreate", "recreate", filename, image)
	if err != nil {
		return "", err
	}

	var res recreateResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return "", fmt.Errorf("failed to decode recreate response: %w", err)
	}
	return res.RecreatedImage, nil
}

// postImage uploads an image as a multipart form and returns the raw
// response body on a 200.
func (ks *KolamService) postImage(endpoint, callType, filename string, image []byte) ([]byte, error) {
	startTime := time.Now()
	url := ks.baseURL + endpoint

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to build upload form: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return nil, fmt.Errorf("failed to build upload form: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to build upload form: %w", err)
	}

	logger.WithKolamAPI(endpoint, callType).Debugf("Uploading %d bytes", len(image))

	resp, err := ks.client.Post(url, writer.FormDataContentType(), &buf)
	elapsed := time.Since(startTime)

	if err != nil {
		logger.WithKolamAPI(endpoint, callType).Errorf("Request failed after %v: %v", elapsed, err)
		ks.trackAPICall(endpoint, callType, 0, elapsed, fmt.Sprintf("HTTP request failed: %v", err))
		return nil, fmt.Errorf("%s request failed: %w", callType, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		ks.trackAPICall(endpoint, callType, resp.StatusCode, elapsed, fmt.Sprintf("failed to read response: %v", err))
		return nil, fmt.Errorf("failed to read %s response: %w", callType, err)
	}

	if resp.StatusCode != http.StatusOK {
		ks.trackAPICall(endpoint, callType, resp.StatusCode, elapsed, fmt.Sprintf("kolam API returned status %d", resp.StatusCode))
		return nil, fmt.Errorf("kolam API returned status %d, body: %s", resp.StatusCode, string(body))
	}

	ks.trackAPICall(endpoint, callType, resp.StatusCode, elapsed, "")
	return body, nil
}

// CheckHealth verifies the upstream kolam API is reachable.
func (ks *KolamService) CheckHealth() error {
	resp, err := ks.client.Get(ks.baseURL + "/openapi.json")
	if err != nil {
		return fmt.Errorf("kolam API is not accessible: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("kolam API health check returned status %d", resp.StatusCode)
	}
	return nil
}
