// Package fusion merges the ranked outputs of the analyzer agents and the
// collaborative-filtering predictor into a single deterministic top-K list.
package fusion

import (
	"sort"

	"github.com/carfin-ai/carfin/pkg/models"
)

// PredictorSource is the source label used for the predictor in
// contribution maps and per-source score breakdowns.
const PredictorSource = "predictor"

// Config bounds the merge.
type Config struct {
	// TopK is the maximum number of final candidates.
	TopK int
	// PerSourceTake is how many leading candidates each source contributes.
	PerSourceTake int
}

// Fuser performs the deterministic merge. Given identical inputs it always
// produces identical output: the arithmetic, the ranking key, and the
// tie-breaks are all pinned.
type Fuser struct {
	cfg Config
}

// NewFuser creates a fuser with the given bounds.
func NewFuser(cfg Config) *Fuser {
	return &Fuser{cfg: cfg}
}

// row accumulates the per-vehicle contributions before ranking.
type row struct {
	vehicleID string
	// confidence-weighted score accumulation: sumWeightedScore/sumWeight
	// is the fused score, sumWeight/len(sources) the fused weight.
	sumWeightedScore float64
	sumWeight        float64
	sources          []string
	perSource        map[string]float64
}

// Fuse merges agent results and the optional predictor result. Errored
// sources contribute nothing; a partial set of sources is acceptable. When
// no source reported, the result is empty with the error taxonomy recorded
// per source. topK overrides the configured TopK when positive (the start
// endpoint's per-request limit).
func (f *Fuser) Fuse(agents []models.AgentResult, predictor *models.PredictorResult, topK int) *models.FusedResult {
	if topK <= 0 {
		topK = f.cfg.TopK
	}

	result := &models.FusedResult{
		Contributions:   make(map[string]float64),
		SourceErrors:    make(map[string]models.ErrorKind),
		SourceDurations: make(map[string]int64),
	}

	rows := make(map[string]*row)
	reporting := 0

	for i := range agents {
		a := &agents[i]
		result.SourceDurations[a.AgentID] = a.DurationMS
		if !a.OK() {
			result.SourceErrors[a.AgentID] = a.ErrorKind
			continue
		}
		reporting++
		conf := models.ClampUnit(a.Confidence)
		result.Contributions[a.AgentID] = conf
		f.take(rows, a.AgentID, a.Candidates, conf)
	}

	if predictor != nil {
		result.SourceDurations[PredictorSource] = predictor.DurationMS
		if predictor.OK() {
			reporting++
			conf := models.ClampUnit(predictor.Confidence)
			result.Contributions[PredictorSource] = conf
			result.PredictorContribution = conf
			f.take(rows, PredictorSource, predictor.Candidates, conf)
		} else {
			result.SourceErrors[PredictorSource] = predictor.ErrorKind
		}
	}

	result.TotalAnalyzed = len(rows)
	if reporting == 0 || len(rows) == 0 {
		result.Method = models.FusionMethodEmpty
		result.Candidates = []models.FinalCandidate{}
		return result
	}
	result.Method = models.FusionMethodWeightedAverage

	final := make([]models.FinalCandidate, 0, len(rows))
	for _, r := range rows {
		weight := r.sumWeight / float64(len(r.sources))
		score := 0.0
		if r.sumWeight > 0 {
			score = models.ClampUnit(r.sumWeightedScore / r.sumWeight)
		}
		sort.Strings(r.sources)
		final = append(final, models.FinalCandidate{
			VehicleID:           r.vehicleID,
			FinalScore:          score,
			Weight:              weight,
			ContributingSources: r.sources,
			PerSourceScores:     r.perSource,
		})
	}

	// Rank by weight x score descending; break ties by contributing source
	// count descending, then vehicle id ascending.
	sort.Slice(final, func(i, j int) bool {
		pi := final[i].Weight * final[i].FinalScore
		pj := final[j].Weight * final[j].FinalScore
		if pi != pj {
			return pi > pj
		}
		if len(final[i].ContributingSources) != len(final[j].ContributingSources) {
			return len(final[i].ContributingSources) > len(final[j].ContributingSources)
		}
		return final[i].VehicleID < final[j].VehicleID
	})

	if len(final) > topK {
		final = final[:topK]
	}
	result.Candidates = final
	return result
}

// take folds the first PerSourceTake candidates of one source into rows.
func (f *Fuser) take(rows map[string]*row, source string, candidates []models.Candidate, confidence float64) {
	n := f.cfg.PerSourceTake
	if n <= 0 || n > len(candidates) {
		n = len(candidates)
	}
	for _, c := range candidates[:n] {
		score := models.ClampUnit(c.Score)
		r, ok := rows[c.VehicleID]
		if !ok {
			r = &row{vehicleID: c.VehicleID, perSource: make(map[string]float64)}
			rows[c.VehicleID] = r
		}
		if _, seen := r.perSource[source]; seen {
			// A source ranking the same vehicle twice counts once.
			continue
		}
		r.sumWeightedScore += confidence * score
		r.sumWeight += confidence
		r.sources = append(r.sources, source)
		r.perSource[source] = score
	}
}
