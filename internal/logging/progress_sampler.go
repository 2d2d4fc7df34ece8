package logging

import "strings"

// ProgressSampler thins playback progress lines. It emits when the percent
// crosses a bucket boundary or when playback moves to another segment.
type ProgressSampler struct {
	bucketSize  float64
	lastSegment string
	lastBucket  int
}

// NewProgressSampler constructs a sampler with buckets of bucketSize percent
// (default 10).
func NewProgressSampler(bucketSize float64) *ProgressSampler {
	if bucketSize <= 0 {
		bucketSize = 10
	}
	return &ProgressSampler{bucketSize: bucketSize, lastBucket: -1}
}

// ShouldLog reports whether a progress line for percent within segment should
// be logged. A negative percent only reacts to segment changes.
func (s *ProgressSampler) ShouldLog(percent float64, segment string) bool {
	if s == nil {
		return true
	}
	segment = strings.TrimSpace(segment)
	emit := false
	if segment != "" && segment != s.lastSegment {
		s.lastSegment = segment
		emit = true
	}
	if percent >= 0 {
		bucket := int(min(percent, 100) / s.bucketSize)
		// A seek backwards changes the bucket too.
		if bucket != s.lastBucket {
			s.lastBucket = bucket
			emit = true
		}
	}
	return emit
}

// Reset clears the sampler state, for example after a Track reload.
func (s *ProgressSampler) Reset() {
	if s == nil {
		return
	}
	s.lastSegment = ""
	s.lastBucket = -1
}
