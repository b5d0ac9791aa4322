package stats

import "fmt"

// DefaultMaxCVPercent is the default reproducibility threshold.
const DefaultMaxCVPercent = 10.0

// Verdict is the outcome of a reproducibility check.
type Verdict struct {
	Reproducible bool    `json:"reproducible" yaml:"reproducible"`
	CVPercent    float64 `json:"cv_percent" yaml:"cv_percent"`
	Message      string  `json:"message" yaml:"message"`

	// Values are the throughputs that were compared
	Values []float64 `json:"values,omitempty" yaml:"values,omitempty"`
}

// VerifyReproducibility checks whether throughputs from repeated runs agree
// within maxCVPercent. Fewer than two values cannot show variance and are
// accepted.
func VerifyReproducibility(values []float64, maxCVPercent float64) Verdict {
	if len(values) < 2 {
		return Verdict{
			Reproducible: true,
			Message:      "Insufficient data for variance check",
			Values:       values,
		}
	}

	cv := CoefficientOfVariation(values)
	if cv <= maxCVPercent {
		return Verdict{
			Reproducible: true,
			CVPercent:    cv,
			Message:      fmt.Sprintf("Variance within limits (CV: %.2f%% <= %g%%)", cv, maxCVPercent),
			Values:       values,
		}
	}

	return Verdict{
		CVPercent: cv,
		Message:   fmt.Sprintf("Variance too high (CV: %.2f%% > %g%%)", cv, maxCVPercent),
		Values:    values,
	}
}
