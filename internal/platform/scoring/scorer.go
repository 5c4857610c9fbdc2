// Package scoring is the client side of the external risk model. The model
// itself is out of process; this package only builds requests and decodes
// scores.
package scoring

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

// ErrNotConfigured is returned when no scorer endpoint is configured.
var ErrNotConfigured = errors.New("scorer not configured")

// FeatureNames is the column order of FeatureVector.Values.
var FeatureNames = []string{"age", "bmi", "gender", "hypertension", "smoking_history", "blood_glucose"}

type FeatureVector struct {
	Age          int
	BMI          float64
	Gender       int
	Hypertension bool
	Smoking      bool
	BloodGlucose float64
}

func (f FeatureVector) Values() []float64 {
	return []float64{
		float64(f.Age),
		f.BMI,
		float64(f.Gender),
		boolToFloat(f.Hypertension),
		boolToFloat(f.Smoking),
		f.BloodGlucose,
	}
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

type Score struct {
	HbA1cRisk    float64 `json:"hba1c_risk"`
	HeartRisk    float64 `json:"heart_risk"`
	ModelVersion string  `json:"model_version,omitempty"`
}

type Scorer interface {
	Score(ctx context.Context, f FeatureVector) (*Score, error)
}

// Unavailable is the Scorer used when no endpoint is configured.
type Unavailable struct{}

func (Unavailable) Score(context.Context, FeatureVector) (*Score, error) {
	return nil, ErrNotConfigured
}

type scoreRequest struct {
	Features []float64 `json:"features"`
	Names    []string  `json:"names"`
}

// HTTPScorer posts feature vectors to {baseURL}/score. It never retries; the
// caller bounds the call with its context.
type HTTPScorer struct {
	client *resty.Client
	logger zerolog.Logger
}

func NewHTTPScorer(baseURL string, timeout time.Duration, logger zerolog.Logger) *HTTPScorer {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &HTTPScorer{client: client, logger: logger}
}

// New returns an HTTPScorer for baseURL, or Unavailable when it is empty.
func New(baseURL string, timeout time.Duration, logger zerolog.Logger) Scorer {
	if baseURL == "" {
		logger.Warn().Msg("SCORER_URL not set, risk predictions disabled")
		return Unavailable{}
	}
	return NewHTTPScorer(baseURL, timeout, logger)
}

func (s *HTTPScorer) Score(ctx context.Context, f FeatureVector) (*Score, error) {
	var out Score
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(scoreRequest{Features: f.Values(), Names: FeatureNames}).
		SetResult(&out).
		Post("/score")
	if err != nil {
		return nil, fmt.Errorf("calling scorer: %w", err)
	}
	if resp.IsError() {
		s.logger.Warn().Int("status", resp.StatusCode()).Msg("scorer returned an error status")
		return nil, fmt.Errorf("scorer returned status %d", resp.StatusCode())
	}
	if !validRisk(out.HbA1cRisk) || !validRisk(out.HeartRisk) {
		return nil, fmt.Errorf("scorer returned out-of-range scores")
	}
	return &out, nil
}

func validRisk(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}
