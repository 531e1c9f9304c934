package repository

// Stage identifies one of the three optimizable pipeline stages.
type Stage string

const (
	StageDetection Stage = "detection"
	StageRange     Stage = "range"
	StageBreakout  Stage = "breakout"
)

// IsValidStage returns true if s names a known stage.
func IsValidStage(s Stage) bool {
	switch s {
	case StageDetection, StageRange, StageBreakout:
		return true
	default:
		return false
	}
}
