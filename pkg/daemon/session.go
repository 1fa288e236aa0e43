package daemon

import (
	"sync"
	"time"

	"github.com/charlie0129/battsense/pkg/dataset"
	"github.com/charlie0129/battsense/pkg/soh"
)

// Session holds the prediction of the most recent upload. It lives in memory
// only and each new prediction replaces the previous one.
type Session struct {
	mu        sync.RWMutex
	result    *soh.PredictionResult
	dataset   *dataset.Summary
	updatedAt time.Time
}

func NewSession() *Session {
	return &Session{}
}

// Set replaces the current prediction.
func (s *Session) Set(r soh.PredictionResult, ds *dataset.Summary) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.result = &r
	s.dataset = ds
	// Round to strip monotonic clock reading.
	s.updatedAt = time.Now().Round(0)
}

// Latest returns the current prediction. ok is false before the first upload.
func (s *Session) Latest() (r soh.PredictionResult, ds *dataset.Summary, updatedAt time.Time, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.result == nil {
		return soh.PredictionResult{}, nil, time.Time{}, false
	}
	return *s.result, s.dataset, s.updatedAt, true
}

// Clear discards the current prediction.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.result = nil
	s.dataset = nil
	s.updatedAt = time.Time{}
}
