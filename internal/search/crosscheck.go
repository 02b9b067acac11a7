package search

import (
	"context"
	"time"
)

// CrossReport compares several policies on one request against the linear
// baseline. Disagreement means the monotonicity assumption failed for this
// encoder and solver pairing.
type CrossReport struct {
	Baseline      int              `json:"baseline"`
	Results       map[Kind]*Result `json:"results"`
	Disagreements []Kind           `json:"disagreements,omitempty"`
}

// Consistent reports whether every policy matched the baseline.
func (r *CrossReport) Consistent() bool {
	return len(r.Disagreements) == 0
}

// Costs returns the total solve time per policy.
func (r *CrossReport) Costs() map[Kind]time.Duration {
	out := make(map[Kind]time.Duration, len(r.Results))
	for k, res := range r.Results {
		out[k] = res.TotalSolve
	}
	return out
}

// CrossCheck runs the linear baseline and then each kind on req. req.Policy
// is ignored. The first failing run aborts the check.
func CrossCheck(ctx context.Context, e *Engine, req Request, kinds []Kind) (*CrossReport, error) {
	report := &CrossReport{Results: make(map[Kind]*Result, len(kinds)+1)}

	req.Policy = KindLinear
	base, err := e.Run(ctx, req)
	if err != nil {
		return report, err
	}
	report.Baseline = base.MaxContacts
	report.Results[KindLinear] = base

	for _, k := range kinds {
		if k == KindLinear {
			continue
		}
		req.Policy = k
		res, err := e.Run(ctx, req)
		if err != nil {
			return report, err
		}
		report.Results[k] = res
		if res.MaxContacts != report.Baseline {
			report.Disagreements = append(report.Disagreements, k)
		}
	}
	return report, nil
}
