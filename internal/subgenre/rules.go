package subgenre

import "github.com/dnhngynops/muindb/internal/provider"

// NormalizeTempo folds half-time and double-time readings into [100, 200].
// Values already in range are returned unchanged.
func NormalizeTempo(bpm float64) float64 {
	switch {
	case bpm > 200:
		return bpm / 2
	case bpm < 100:
		return bpm * 2
	}
	return bpm
}

// featureValue reads name from f with tempo normalized.
func featureValue(f provider.Features, name string) (float64, bool) {
	v, ok := f[name]
	if ok && name == "tempo" {
		v = NormalizeTempo(v)
	}
	return v, ok
}

// scoreProfile averages per-feature credit over the features present in f:
// 1 inside the range, 0.5 within 20% past either bound, 0 otherwise.
func scoreProfile(f provider.Features, p Profile) float64 {
	var credit float64
	var checked int
	for _, r := range p.Ranges {
		v, ok := featureValue(f, r.Feature)
		if !ok {
			continue
		}
		checked++
		switch {
		case v >= r.Min && v <= r.Max:
			credit++
		case (v >= r.Min && v <= r.Max*1.2) || (v >= r.Min*0.8 && v <= r.Max):
			credit += 0.5
		}
	}
	if checked == 0 {
		return 0
	}
	return credit / float64(checked)
}

// matchRules returns the best-scoring rule subgenre for primary and its
// score. ok is false when primary has no rules or the best score is below
// threshold.
func matchRules(primary string, f provider.Features, threshold float64) (best string, score float64, ok bool) {
	for _, p := range RuleProfiles[primary] {
		if s := scoreProfile(f, p); s > score {
			best, score = p.Subgenre, s
		}
	}
	if best == "" || score < threshold {
		return "", score, false
	}
	return best, score, true
}
