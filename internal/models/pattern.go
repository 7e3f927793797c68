package models

import (
	"encoding/json"
	"fmt"
)

// PatternType enumerates cross-record patterns.
type PatternType string

const (
	PatternErrorSpike         PatternType = "ERROR_SPIKE"
	PatternCascadingFailure   PatternType = "CASCADING_FAILURE"
	PatternTemporalClustering PatternType = "TEMPORAL_CLUSTERING"
)

// Pattern is implemented by ErrorSpike, CascadingFailure and TemporalClustering only.
type Pattern interface {
	Type() PatternType
	Description() string
	isPattern()
}

// ErrorSpike reports a service emitting an unusually high number of records.
type ErrorSpike struct {
	Service string
	Count   int
}

func (ErrorSpike) Type() PatternType { return PatternErrorSpike }

func (p ErrorSpike) Description() string {
	return "High error count from service: " + p.Service
}

func (ErrorSpike) isPattern() {}

// CascadingFailure reports the same error type surfacing across several services.
type CascadingFailure struct {
	ErrorType        string
	AffectedServices []string
	Count            int
}

func (CascadingFailure) Type() PatternType { return PatternCascadingFailure }

func (p CascadingFailure) Description() string {
	return "Same error across multiple services: " + p.ErrorType
}

func (CascadingFailure) isPattern() {}

// TemporalClustering reports a dense burst of records over the batch time range.
type TemporalClustering struct {
	Count int
	Start string
	End   string
}

func (TemporalClustering) Type() PatternType { return PatternTemporalClustering }

func (TemporalClustering) Description() string {
	return "High concentration of errors in short time period"
}

// TimeRange renders the burst window as "start to end".
func (p TemporalClustering) TimeRange() string {
	return p.Start + " to " + p.End
}

func (TemporalClustering) isPattern() {}

// PatternSet serialises patterns with a "type" discriminator.
type PatternSet []Pattern

type patternEnvelope struct {
	Type             PatternType `json:"type"`
	Description      string      `json:"description"`
	Service          string      `json:"service,omitempty"`
	ErrorType        string      `json:"error_type,omitempty"`
	AffectedServices []string    `json:"affected_services,omitempty"`
	Count            int         `json:"count"`
	TimeRange        string      `json:"time_range,omitempty"`
	Start            string      `json:"start,omitempty"`
	End              string      `json:"end,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (s PatternSet) MarshalJSON() ([]byte, error) {
	out := make([]patternEnvelope, 0, len(s))
	for _, p := range s {
		env := patternEnvelope{Type: p.Type(), Description: p.Description()}
		switch v := p.(type) {
		case ErrorSpike:
			env.Service = v.Service
			env.Count = v.Count
		case CascadingFailure:
			env.ErrorType = v.ErrorType
			env.AffectedServices = v.AffectedServices
			env.Count = v.Count
		case TemporalClustering:
			env.Count = v.Count
			env.TimeRange = v.TimeRange()
			env.Start = v.Start
			env.End = v.End
		}
		out = append(out, env)
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *PatternSet) UnmarshalJSON(data []byte) error {
	var envs []patternEnvelope
	if err := json.Unmarshal(data, &envs); err != nil {
		return err
	}
	set := make(PatternSet, 0, len(envs))
	for _, env := range envs {
		switch env.Type {
		case PatternErrorSpike:
			set = append(set, ErrorSpike{Service: env.Service, Count: env.Count})
		case PatternCascadingFailure:
			set = append(set, CascadingFailure{ErrorType: env.ErrorType, AffectedServices: env.AffectedServices, Count: env.Count})
		case PatternTemporalClustering:
			set = append(set, TemporalClustering{Count: env.Count, Start: env.Start, End: env.End})
		default:
			return fmt.Errorf("unknown pattern type %q", env.Type)
		}
	}
	*s = set
	return nil
}

// CascadingFailures returns the cascading-failure patterns in order.
func (s PatternSet) CascadingFailures() []CascadingFailure {
	var out []CascadingFailure
	for _, p := range s {
		if cf, ok := p.(CascadingFailure); ok {
			out = append(out, cf)
		}
	}
	return out
}
