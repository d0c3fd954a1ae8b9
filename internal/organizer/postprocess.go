package organizer

import (
	"path/filepath"

	"filesage/internal/logging"
)

// PostProcessor is the pure filtering/adjustment pass applied to a
// negotiated suggestion list. No I/O; destination collisions are the
// executor's problem.
type PostProcessor struct {
	// ConfidenceThreshold drops suggestions scored below it.
	ConfidenceThreshold float64

	// PreserveNames keeps each file's original name, taking only the
	// destination directory from the model.
	PreserveNames bool
}

// Apply returns the filtered and adjusted list. The input is not mutated.
func (p PostProcessor) Apply(suggestions []Suggestion) []Suggestion {
	out := make([]Suggestion, 0, len(suggestions))

	for _, s := range suggestions {
		if s.Confidence < p.ConfidenceThreshold {
			logging.OrganizerDebug("dropping %q: confidence %.2f below threshold %.2f",
				s.SuggestedPath, s.Confidence, p.ConfidenceThreshold)
			continue
		}

		if p.PreserveNames && s.File != nil {
			s.SuggestedPath = filepath.Join(filepath.Dir(s.SuggestedPath), s.File.Name)
		}

		out = append(out, s)
	}
	return out
}
