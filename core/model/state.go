// Package model provides trained-state bookkeeping and serialization helpers
// shared by the label-transfer models.
package model

import (
	"sync"

	"github.com/sdss/AnniesLasso/pkg/errors"
)

// StateManager tracks whether a model has been trained and the shape of the
// data it was trained on. It is safe for concurrent use.
type StateManager struct {
	Trained bool // Public for gob encoding
	mu      sync.RWMutex

	// Public for gob encoding
	NStars  int
	NPixels int
	NTerms  int
}

// NewStateManager creates an untrained StateManager.
func NewStateManager() *StateManager {
	return &StateManager{}
}

// IsTrained returns whether the model has been trained.
func (s *StateManager) IsTrained() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Trained
}

// SetTrained marks the model as trained.
func (s *StateManager) SetTrained() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Trained = true
}

// SetDimensions records the training set shape.
func (s *StateManager) SetDimensions(nStars, nPixels, nTerms int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.NStars = nStars
	s.NPixels = nPixels
	s.NTerms = nTerms
}

// GetDimensions returns the recorded training set shape.
func (s *StateManager) GetDimensions() (nStars, nPixels, nTerms int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.NStars, s.NPixels, s.NTerms
}

// RequireTrained returns a NotFittedError naming modelName and method when
// the model has not been trained.
func (s *StateManager) RequireTrained(modelName, method string) error {
	if !s.IsTrained() {
		return errors.NewNotFittedError(modelName, method)
	}
	return nil
}

// State is a copy of the tracked state, persisted alongside the model.
type State struct {
	Trained bool
	NStars  int
	NPixels int
	NTerms  int
}

// GetState returns a snapshot of the current state.
func (s *StateManager) GetState() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return State{Trained: s.Trained, NStars: s.NStars, NPixels: s.NPixels, NTerms: s.NTerms}
}

// SetState restores a snapshot taken with GetState.
func (s *StateManager) SetState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Trained = state.Trained
	s.NStars = state.NStars
	s.NPixels = state.NPixels
	s.NTerms = state.NTerms
}
