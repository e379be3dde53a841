package services

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestClassifyReportsUpstreamErrorField(t *testing.T) {
	// The upstream reports some classify failures as a 200 with an error field
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"error":"Could not load image"}`)
	}))
	defer server.Close()

	ks := NewKolamService(server.URL)
	_, err := ks.Classify("kolam.png", []byte("image-bytes"))
	if err == nil {
		t.Fatal("Expected error for upstream error field, got none")
	}
	if !strings.Contains(err.Error(), "Could not load image") {
		t.Errorf("Expected upstream message in error, got %q", err.Error())
	}
}

func TestPostImageSendsMultipartFileField(t *testing.T) {
	var gotField, gotFilename, gotContent string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("Failed to parse multipart form: %v", err)
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		for field, headers := range r.MultipartForm.File {
			gotField = field
			gotFilename = headers[0].Filename
			f, _ := headers[0].Open()
			content, _ := io.ReadAll(f)
			f.Close()
			gotContent = string(content)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"matches":["a.png"]}`)
	}))
	defer server.Close()

	ks := NewKolamService(server.URL)
	matches, err := ks.Search("my kolam.png", []byte("image-bytes"))
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if gotField != "file" {
		t.Errorf("Expected form field \"file\", got %q", gotField)
	}
	if gotFilename != "my kolam.png" {
		t.Errorf("Expected filename to be forwarded, got %q", gotFilename)
	}
	if gotContent != "image-bytes" {
		t.Errorf("Expected image bytes to be forwarded, got %q", gotContent)
	}
	if len(matches) != 1 || matches[0] != "a.png" {
		t.Errorf("Unexpected matches: %v", matches)
	}
}

func TestNon200IsAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	ks := NewKolamService(server.URL)
	if _, err := ks.Predict("kolam.png", []byte("image-bytes")); err == nil {
		t.Error("Expected error for 503 response, got none")
	}
	if _, err := ks.Render([]byte(`{"dots":[],"paths":[]}`)); err == nil {
		t.Error("Expected error for 503 response, got none")
	}
	if _, err := ks.Recreate("kolam.png", []byte("image-bytes")); err == nil {
		t.Error("Expected error for 503 response, got none")
	}
}

func TestAPICallTracking(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer server.Close()

	ks := NewKolamService(server.URL)
	ks.Predict("kolam.png", []byte("image-bytes"))

	calls := ks.GetAPICalls()
	if len(calls) != 1 {
		t.Fatalf("Expected 1 tracked call, got %d", len(calls))
	}
	if calls[0].CallType != "predict" {
		t.Errorf("Expected call type \"predict\", got %q", calls[0].CallType)
	}
	if calls[0].Status != http.StatusBadGateway {
		t.Errorf("Expected status 502, got %d", calls[0].Status)
	}
	if calls[0].Error == "" {
		t.Error("Expected error to be tracked")
	}

	ks.ClearAPICalls()
	if len(ks.GetAPICalls()) != 0 {
		t.Error("Expected call history to be empty after clear")
	}
}
