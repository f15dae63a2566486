package reconcile

// Confidence maps a usage count onto (0, 1) as n/(n+pivot). It is strictly
// increasing in n and reaches 0.5 at n == pivot. Non-positive counts give 0.
func Confidence(usageCount int, pivot float64) float64 {
	if usageCount <= 0 {
		return 0
	}
	if pivot <= 0 {
		pivot = defaultConfidencePivot
	}
	n := float64(usageCount)
	return n / (n + pivot)
}
