package confidence

import (
	"math"
	"time"

	"MandiWatch/internal/domain/models"
)

const (
	sampleSaturation = 10.0 // reports at which the sample factor reaches 0.5
	sourceSaturation = 3.0  // distinct sources at which diversity reaches 0.5
	defaultRecencyTau = 30 * time.Minute
)

// Inputs are the observable facts a confidence score is computed from.
// Consistency only applies to anomaly scoring; leave HasConsistency false
// for aggregates and patterns and its weight is redistributed.
type Inputs struct {
	SampleCount    int
	SourceCount    int
	LastObserved   time.Time
	Now            time.Time
	Consistency    float64 // direction agreement in [0, 1]
	HasConsistency bool
}

// Scorer combines sample volume, source diversity, recency and direction
// consistency into one score in [0, 1]. Each factor is monotonic, so more
// evidence never lowers the score.
type Scorer struct {
	weights models.ConfidenceWeights
	tau     time.Duration
}

func NewScorer(w models.ConfidenceWeights) *Scorer {
	return &Scorer{weights: w, tau: defaultRecencyTau}
}

// SetWeights swaps the weight set; used when detection config is updated.
func (s *Scorer) SetWeights(w models.ConfidenceWeights) { s.weights = w }

func (s *Scorer) Score(in Inputs) float64 {
	sample := saturate(float64(in.SampleCount), sampleSaturation)
	diversity := saturate(float64(in.SourceCount), sourceSaturation)
	recency := s.recency(in)

	w := s.weights
	if in.HasConsistency {
		score := w.SampleCount*sample + w.Diversity*diversity +
			w.Recency*recency + w.Consistency*clamp01(in.Consistency)
		return clamp01(score)
	}

	total := w.SampleCount + w.Diversity + w.Recency
	if total <= 0 {
		return 0
	}
	score := (w.SampleCount*sample + w.Diversity*diversity + w.Recency*recency) / total
	return clamp01(score)
}

func (s *Scorer) recency(in Inputs) float64 {
	if in.LastObserved.IsZero() {
		return 0
	}
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}
	age := now.Sub(in.LastObserved)
	if age < 0 {
		age = 0
	}
	return math.Exp(-float64(age) / float64(s.tau))
}

// saturate maps n >= 0 into [0, 1) with half-saturation at k.
func saturate(n, k float64) float64 {
	if n <= 0 {
		return 0
	}
	return n / (n + k)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
