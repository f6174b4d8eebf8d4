// Package stats aggregates per-record metrics into store-wide summaries and
// renders reports in text, JSON or YAML.
package stats

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aatumaykin/sessmaint/internal/policy"
	"github.com/aatumaykin/sessmaint/internal/store"
)

// Summary is the aggregate view of one store snapshot.
type Summary struct {
	Total                   int `json:"total" yaml:"total"`
	TotalSizeBytes          int `json:"total_size_bytes" yaml:"total_size_bytes"`
	AverageSizeBytes        int `json:"average_size_bytes" yaml:"average_size_bytes"`
	LargestSizeBytes        int `json:"largest_size_bytes" yaml:"largest_size_bytes"`
	AboveSizeThreshold      int `json:"above_size_threshold" yaml:"above_size_threshold"`
	OlderThanMaxAge         int `json:"older_than_max_age" yaml:"older_than_max_age"`
	InactiveBeyondThreshold int `json:"inactive_beyond_threshold" yaml:"inactive_beyond_threshold"`
}

// Summarize computes a summary over all sessions. Sizes use the canonical
// encoding; age counters reuse the eviction policy's classification.
func Summarize(sessions []store.Session, now time.Time, sizeThreshold int, pol *policy.Policy) (Summary, error) {
	var s Summary
	s.Total = len(sessions)

	for _, sess := range sessions {
		size, err := store.CanonicalSize(sess.Data)
		if err != nil {
			return Summary{}, fmt.Errorf("size session %s: %w", string(sess.ID), err)
		}
		s.TotalSizeBytes += size
		if size > s.LargestSizeBytes {
			s.LargestSizeBytes = size
		}
		if size > sizeThreshold {
			s.AboveSizeThreshold++
		}
		switch pol.Classify(sess.Data, now) {
		case policy.ExpireOld:
			s.OlderThanMaxAge++
		case policy.ExpireIdle:
			s.InactiveBeyondThreshold++
		}
	}

	if s.Total > 0 {
		s.AverageSizeBytes = s.TotalSizeBytes / s.Total
	}
	return s, nil
}

// String renders the summary as a human-readable block.
func (s Summary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "sessions:            %d\n", s.Total)
	fmt.Fprintf(&b, "total size:          %s\n", FormatBytes(s.TotalSizeBytes))
	fmt.Fprintf(&b, "average size:        %s\n", FormatBytes(s.AverageSizeBytes))
	fmt.Fprintf(&b, "largest size:        %s\n", FormatBytes(s.LargestSizeBytes))
	fmt.Fprintf(&b, "above size limit:    %d\n", s.AboveSizeThreshold)
	fmt.Fprintf(&b, "older than max age:  %d\n", s.OlderThanMaxAge)
	fmt.Fprintf(&b, "inactive too long:   %d\n", s.InactiveBeyondThreshold)
	return b.String()
}

// Marshal renders any report value in the requested format: "json" or
// "yaml". Text rendering is the report's own String method.
func Marshal(v any, format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case "json":
		return json.MarshalIndent(v, "", "  ")
	case "yaml":
		return yaml.Marshal(v)
	default:
		return nil, fmt.Errorf("unknown report format: %s (expected: text, json, yaml)", format)
	}
}

// FormatBytes renders a byte count with a binary unit suffix.
func FormatBytes(n int) string {
	switch {
	case n >= 1024*1024:
		return fmt.Sprintf("%.2f MB", float64(n)/(1024*1024))
	case n >= 1024:
		return fmt.Sprintf("%.2f KB", float64(n)/1024)
	default:
		return fmt.Sprintf("%d B", n)
	}
}
