package analysis

// DefaultCalibrationLimbLength is the average limb length, in pixels, a
// central person must exceed to count as engaged.
const DefaultCalibrationLimbLength = 51

// Engagement is the per-frame subject selection.
type Engagement struct {
	SelectedIndex int  `json:"selected_index"`
	Engaged       bool `json:"engaged"`
}

// IsEngaged reports whether a candidate is central and close enough to the camera.
func (c CandidateMetrics) IsEngaged(threshold float64) bool {
	return c.IsCentral && c.AverageLimbLength > threshold
}

// SelectEngaged scans candidates in ascending index order. The last
// candidate satisfying IsEngaged is selected. With no match the selection
// is index 0 and Engaged is false.
func SelectEngaged(metrics []CandidateMetrics, threshold float64) Engagement {
	var e Engagement
	for i, m := range metrics {
		if m.IsEngaged(threshold) {
			e.SelectedIndex = i
			e.Engaged = true
		}
	}
	return e
}
