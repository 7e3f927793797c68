package advisory

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/miradorstack/mirador-logrca/internal/models"
)

const (
	textRootCauseConfidence = 70.0
	textSolutionConfidence  = 60.0
)

// ParseRootCause interprets a model answer. Plain text becomes a text-only advisory;
// JSON that does not describe a root cause yields nil.
func ParseRootCause(answer string) *models.Advisory {
	body, isJSON := jsonBody(answer)
	if !isJSON {
		text := strings.TrimSpace(answer)
		if text == "" {
			return nil
		}
		conf := textRootCauseConfidence
		return &models.Advisory{RootCause: text, Confidence: &conf, TextOnly: true}
	}

	var payload struct {
		RootCause           string   `json:"root_cause"`
		Confidence          *float64 `json:"confidence"`
		ContributingFactors []string `json:"contributing_factors"`
		AffectedServices    []string `json:"affected_services"`
	}
	if err := strictDecode(body, &payload); err != nil {
		return nil
	}
	return &models.Advisory{
		RootCause:           payload.RootCause,
		Confidence:          clampPtr(payload.Confidence),
		ContributingFactors: payload.ContributingFactors,
		AffectedServices:    payload.AffectedServices,
	}
}

// ParseSolution interprets a model remediation answer with the same tolerance as ParseRootCause.
func ParseSolution(answer string) *models.SolutionAdvice {
	body, isJSON := jsonBody(answer)
	if !isJSON {
		text := strings.TrimSpace(answer)
		if text == "" {
			return nil
		}
		conf := textSolutionConfidence
		return &models.SolutionAdvice{Text: text, TextOnly: true, Confidence: &conf}
	}

	var payload struct {
		ImmediateActions   []string `json:"immediate_actions"`
		PreventiveMeasures []string `json:"preventive_measures"`
		EstimatedTime      string   `json:"estimated_time"`
		Confidence         *float64 `json:"confidence"`
		Risks              []string `json:"risks"`
		VerificationSteps  []string `json:"verification_steps"`
	}
	if err := strictDecode(body, &payload); err != nil {
		return nil
	}
	return &models.SolutionAdvice{
		ImmediateActions:   payload.ImmediateActions,
		PreventiveMeasures: payload.PreventiveMeasures,
		EstimatedTime:      payload.EstimatedTime,
		Confidence:         clampPtr(payload.Confidence),
		Risks:              payload.Risks,
		VerificationSteps:  payload.VerificationSteps,
	}
}

// jsonBody strips markdown code fences and reports whether what remains is valid JSON.
func jsonBody(answer string) ([]byte, bool) {
	text := strings.TrimSpace(answer)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if nl := strings.IndexByte(text, '\n'); nl >= 0 {
			text = text[nl+1:]
		} else {
			text = strings.TrimPrefix(text, "json")
		}
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
		text = strings.TrimSpace(text)
	}
	body := []byte(text)
	if len(body) == 0 || !json.Valid(body) {
		return nil, false
	}
	return body, true
}

// strictDecode requires a JSON object whose known fields carry the expected types.
func strictDecode(body []byte, v any) error {
	if !bytes.HasPrefix(body, []byte("{")) {
		return errNotObject
	}
	return json.Unmarshal(body, v)
}

var errNotObject = errors.New("advisory payload is not a JSON object")

func clampPtr(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	if c < 0 {
		c = 0
	}
	if c > 100 {
		c = 100
	}
	return &c
}
