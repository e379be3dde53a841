package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/kolamai/studio/internal/logger"
	"github.com/kolamai/studio/internal/models"
)

var (
	ErrAnalysisInProgress = errors.New("an analysis is already in progress")
	ErrRenderInProgress   = errors.New("a render is already in progress")
	ErrRecreateInProgress = errors.New("a recreation is already in progress")
)

// PendingState reports which operations are currently in flight. The
// analyze action is considered busy while its dependent render still runs,
// matching how the upload form is disabled.
type PendingState struct {
	Analysis bool `json:"analysis"`
	Render   bool `json:"render"`
	Recreate bool `json:"recreate"`
}

// OperationService coordinates the remote calls behind each user action and
// folds their outcomes into the timeline. Analysis fans out into three
// concurrent upstream calls joined all-or-nothing; a successful join
// triggers a dependent render in the background. Recreation is a sibling
// single-call flow. Failures append nothing.
type OperationService struct {
	kolam    *KolamService
	timeline *TimelineStore
	gallery  *GalleryService

	mu              sync.Mutex
	analysisRunning bool
	recreateRunning bool
	rendersInFlight int

	bg sync.WaitGroup
}

func NewOperationService(kolam *KolamService, timeline *TimelineStore, gallery *GalleryService) *OperationService {
	return &OperationService{
		kolam:    kolam,
		timeline: timeline,
		gallery:  gallery,
	}
}

// RunAnalysis issues the three analysis calls concurrently and waits for
// all of them. If any call fails the whole submission fails: nothing is
// appended and no render is triggered. On success exactly one analysis
// record is appended and a render of the returned representation starts in
// the background; callers do not wait for it.
//
// Submitting with no image is a no-op. A second submission while one is
// running is rejected with ErrAnalysisInProgress.
func (s *OperationService) RunAnalysis(filename string, image []byte) (*models.OperationRecord, error) {
	if len(image) == 0 {
		return nil, nil
	}

	s.mu.Lock()
	if s.analysisRunning {
		s.mu.Unlock()
		return nil, ErrAnalysisInProgress
	}
	s.analysisRunning = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.analysisRunning = false
		s.mu.Unlock()
	}()

	var (
		representation json.RawMessage
		matches        []string
		prediction     string

		classifyErr error
		searchErr   error
		predictErr  error
	)

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		representation, classifyErr = s.kolam.Classify(filename, image)
	}()
	go func() {
		defer wg.Done()
		matches, searchErr = s.kolam.Search(filename, image)
	}()
	go func() {
		defer wg.Done()
		prediction, predictErr = s.kolam.Predict(filename, image)
	}()
	wg.Wait()

	for _, err := range []error{classifyErr, searchErr, predictErr} {
		if err != nil {
			logger.WithOperation("analysis").Errorf("Analysis failed: %v", err)
			return nil, fmt.Errorf("analysis failed: %w", err)
		}
	}

	record := models.NewAnalysisRecord(representation, matches, prediction)
	s.timeline.Append(record)

	logger.WithOperation("analysis").Infof("Analysis complete: %d matches, prediction %q", len(matches), prediction)

	s.renderAsync(representation)

	return &record, nil
}

// RunRender renders a user-supplied representation document. The document
// must already be validated; see models.ParseKolamDoc. Rejected while any
// render is in flight.
func (s *OperationService) RunRender(doc json.RawMessage) (*models.OperationRecord, error) {
	s.mu.Lock()
	if s.rendersInFlight > 0 {
		s.mu.Unlock()
		return nil, ErrRenderInProgress
	}
	s.rendersInFlight++
	s.mu.Unlock()

	defer s.renderDone()

	return s.renderAndRecord(doc)
}

// renderAsync starts the render that follows a successful analysis. The
// in-flight count is raised before the goroutine starts so the pending
// state is visible as soon as RunAnalysis returns.
func (s *OperationService) renderAsync(doc json.RawMessage) {
	s.mu.Lock()
	s.rendersInFlight++
	s.mu.Unlock()

	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		defer s.renderDone()
		if _, err := s.renderAndRecord(doc); err != nil {
			logger.WithOperation("render").Errorf("Render after analysis failed: %v", err)
		}
	}()
}

func (s *OperationService) renderDone() {
	s.mu.Lock()
	s.rendersInFlight--
	s.mu.Unlock()
}

func (s *OperationService) renderAndRecord(doc json.RawMessage) (*models.OperationRecord, error) {
	file, err := s.kolam.Render(doc)
	if err != nil {
		return nil, fmt.Errorf("render failed: %w", err)
	}

	record := models.NewRenderRecord(file)
	s.timeline.Append(record)

	if _, err := s.gallery.Publish(file, GalleryLabelRendered); err != nil {
		// The timeline record stands; only the community copy is missing.
		logger.WithOperation("render").Errorf("Failed to publish rendered kolam: %v", err)
	}

	return &record, nil
}

// RunRecreate submits an image for symmetric recreation. On success one
// recreate record is appended and the result is published to the gallery.
// Independent of RunAnalysis; only concurrent recreations are rejected.
func (s *OperationService) RunRecreate(filename string, image []byte) (*models.OperationRecord, error) {
	if len(image) == 0 {
		return nil, nil
	}

	s.mu.Lock()
	if s.recreateRunning {
		s.mu.Unlock()
		return nil, ErrRecreateInProgress
	}
	s.recreateRunning = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.recreateRunning = false
		s.mu.Unlock()
	}()

	recreated, err := s.kolam.Recreate(filename, image)
	if err != nil {
		logger.WithOperation("recreate").Errorf("Recreation failed: %v", err)
		return nil, fmt.Errorf("recreation failed: %w", err)
	}

	record := models.NewRecreateRecord(recreated)
	s.timeline.Append(record)

	if _, err := s.gallery.Publish(recreated, GalleryLabelRecreated); err != nil {
		logger.WithOperation("recreate").Errorf("Failed to publish recreated kolam: %v", err)
	}

	logger.WithOperation("recreate").Infof("Recreation complete: %s", recreated)
	return &record, nil
}

// Pending reports the current in-flight state.
func (s *OperationService) Pending() PendingState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return PendingState{
		Analysis: s.analysisRunning || s.rendersInFlight > 0,
		Render:   s.rendersInFlight > 0,
		Recreate: s.recreateRunning,
	}
}

// Wait blocks until background renders have finished. Called at shutdown
// so in-flight work lands in the timeline before the process exits.
func (s *OperationService) Wait() {
	s.bg.Wait()
}
