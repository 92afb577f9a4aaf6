package quiz

// Question types. Grading treats all of them as exact normalized string match.
const (
	TypeMultipleChoice = "multiple_choice"
	TypeTrueFalse      = "true_false"
	TypeShortAnswer    = "short_answer"
)

// TrueFalseOptions is the fixed pair a true_false question falls back to when
// the author supplies no options.
var TrueFalseOptions = []string{"True", "False"}

type Question struct {
	ID            int64    `json:"id"`
	TestID        int64    `json:"test_id,omitempty"`
	Text          string   `json:"text"`
	Type          string   `json:"type"`
	Options       []string `json:"options,omitempty"`
	CorrectAnswer string   `json:"correct_answer,omitempty"` // stripped when serving students
	Points        float64  `json:"points"`
}

type Test struct {
	ID              int64      `json:"id"`
	CourseID        int64      `json:"course_id"`
	Title           string     `json:"title"`
	Description     string     `json:"description,omitempty"`
	DurationMinutes int        `json:"duration_minutes"` // advisory, not enforced server-side
	CreatedAt       int64      `json:"created_at,omitempty"`
	Questions       []Question `json:"questions,omitempty"`
}

type Attempt struct {
	ID          int64   `json:"id"`
	TestID      int64   `json:"test_id"`
	StudentID   string  `json:"student_id"`
	Score       float64 `json:"score"`
	MaxScore    float64 `json:"max_score"`
	StartedAt   int64   `json:"started_at"`
	CompletedAt int64   `json:"completed_at"`
}

// Answer is one graded response joined with its question, as served on the
// result view. Correctness is the stored flag, never recomputed.
type Answer struct {
	QuestionID    int64    `json:"question_id"`
	QuestionText  string   `json:"question_text"`
	QuestionType  string   `json:"question_type"`
	Options       []string `json:"options,omitempty"`
	CorrectAnswer string   `json:"correct_answer"`
	Points        float64  `json:"points"`
	StudentAnswer string   `json:"student_answer"`
	IsCorrect     bool     `json:"is_correct"`
}

type Result struct {
	Attempt   Attempt  `json:"attempt"`
	TestTitle string   `json:"test_title"`
	CourseID  int64    `json:"course_id"`
	Answers   []Answer `json:"answers"`
}

// TestStats is the instructor-facing summary for one test.
type TestStats struct {
	Attempts  int     `json:"attempts"`
	AvgScore  float64 `json:"avg_score"` // mean percentage over completed attempts, one decimal
	Questions int     `json:"questions"`
}

// TestSummary is one row of the per-course test list, with role-dependent
// extras filled in by the handler.
type TestSummary struct {
	Test
	Attempt *Attempt   `json:"attempt,omitempty"` // student's completed attempt
	Stats   *TestStats `json:"stats,omitempty"`   // instructor statistics
}
