// Package session holds the client state the EcoVision flows share: the last captured or
// uploaded image, the current analysis result and the current recommendation.
//
// Every value is independently optional and last-writer-wins. The mutex only makes
// concurrent UI commands safe; it does not order them.
package session

import (
	"sync"

	"ecovision/backend"
	"ecovision/snapshot"
)

// State is the explicit application state passed to the flows
type State struct {
	mu             sync.RWMutex
	lastImage      snapshot.DataURL
	result         *backend.AnalysisResult
	recommendation string
}

// New creates an empty state
func New() *State {
	return &State{}
}

// SetLastImage replaces the last captured or uploaded image
func (s *State) SetLastImage(u snapshot.DataURL) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastImage = u
}

// LastImage returns the last image, if any
func (s *State) LastImage() (snapshot.DataURL, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastImage, !s.lastImage.IsZero()
}

// SetResult replaces the current analysis result. A nil result clears it.
func (s *State) SetResult(r *backend.AnalysisResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.result = r.Clone()
}

// Result returns a copy of the current analysis result, if any
func (s *State) Result() (*backend.AnalysisResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.result.Clone(), s.result != nil
}

// SetRecommendation replaces the current recommendation text
func (s *State) SetRecommendation(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recommendation = text
}

// Recommendation returns the current recommendation text, if any
func (s *State) Recommendation() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.recommendation, s.recommendation != ""
}

// Reset clears everything
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastImage = ""
	s.result = nil
	s.recommendation = ""
}
