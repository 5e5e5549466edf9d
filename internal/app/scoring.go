package app

// Scoring arithmetic. All divisions are integer (truncating) on purpose: the
// estimators are dampened running averages over the 0..100 range.

// nextTotalScore applies the dampened exponential update to the aggregate
// score. qScore is 0 (incorrect) or 1 (correct). The result never exceeds
// 100 and never falls below the decile floor of the pre-update score, so a
// single wrong answer costs at most one decile.
func nextTotalScore(total, qScore int) int {
	floor := (total / 10) * 10
	next := (150*qScore + 14*total) / 15
	if next < floor {
		next = floor
	}
	if next > 100 {
		next = 100
	}
	return next
}

// nextTopicScore applies the per-topic update. It converges roughly three
// times faster than the aggregate and self-caps at 100 (100*1+2*100=300 -> 100).
func nextTopicScore(score, qScore int) int {
	return (100*qScore + 2*score) / 3
}

// quintile maps a total score to its difficulty band 1..5. Scores 80..100
// all map to 5; the min clamp keeps a perfect 100 from spilling into a
// sixth band.
func quintile(total int) int {
	q := total/20 + 1
	if q > 5 {
		q = 5
	}
	return q
}

// typeWeight returns the Stage B weight for a question type at the given
// quintile: distance 0 -> 8, 1 -> 4, 2 -> 2, 3 -> 1, farther -> 0.
func typeWeight(typ, quintile int) int {
	d := typ - quintile
	if d < 0 {
		d = -d
	}
	switch d {
	case 0:
		return 8
	case 1:
		return 4
	case 2:
		return 2
	case 3:
		return 1
	default:
		return 0
	}
}
