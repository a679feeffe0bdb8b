package envelope

// ScoreToTier converts a source-quality score (0.0-1.0) to a
// confidence tier.
//
// Tier mapping:
//   - 0.90+ -> high (all sources fresh or cache-hit)
//   - 0.70-0.89 -> medium (stale data or the embedded taxonomy involved)
//   - 0.40-0.69 -> low (the catalog or several sources missing)
//   - <0.40 -> degraded (not enough data to ground an answer)
func ScoreToTier(score float64) ConfidenceTier {
	switch {
	case score >= 0.90:
		return TierHigh
	case score >= 0.70:
		return TierMedium
	case score >= 0.40:
		return TierLow
	default:
		return TierDegraded
	}
}
