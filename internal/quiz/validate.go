package quiz

import (
	"fmt"
	"strings"
)

// normalizeTest applies authoring defaults and checks the data-model
// invariants. Returned test has duration and per-question points defaulted
// and the true_false option fallback applied.
func normalizeTest(t Test) (Test, error) {
	if strings.TrimSpace(t.Title) == "" {
		return Test{}, fmt.Errorf("%w: title is required", ErrValidation)
	}
	if t.DurationMinutes <= 0 {
		t.DurationMinutes = 30
	}
	for i := range t.Questions {
		q := &t.Questions[i]
		if strings.TrimSpace(q.Text) == "" {
			return Test{}, fmt.Errorf("%w: question %d has no text", ErrValidation, i+1)
		}
		switch q.Type {
		case TypeMultipleChoice:
			if len(q.Options) == 0 {
				return Test{}, fmt.Errorf("%w: question %d needs options", ErrValidation, i+1)
			}
		case TypeTrueFalse:
			if len(q.Options) == 0 {
				q.Options = append([]string(nil), TrueFalseOptions...)
			}
		case TypeShortAnswer:
			q.Options = nil
		default:
			return Test{}, fmt.Errorf("%w: question %d has unknown type %q", ErrValidation, i+1, q.Type)
		}
		if q.Points <= 0 {
			q.Points = 1
		}
	}
	return t, nil
}
