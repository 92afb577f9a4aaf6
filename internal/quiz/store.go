package quiz

import "context"

// Store owns the lifecycle of tests, questions, attempts and answers.
//
// Submit is the only multi-write operation; implementations must run it
// atomically and surface a concurrent duplicate completion as
// ErrAlreadyCompleted with the surviving attempt.
type Store interface {
	// CreateTest inserts the test and its questions in authoring order.
	// Returns ErrValidation on a missing title, an unknown question type,
	// or a choice question without options.
	CreateTest(ctx context.Context, t Test) (Test, error)

	// GetTest returns the test with its questions in ascending id order,
	// answer keys included. Callers strip keys before serving students.
	GetTest(ctx context.Context, id int64) (Test, error)

	// ListTests returns the course's tests, newest first, without questions.
	ListTests(ctx context.Context, courseID int64) ([]Test, error)

	// Stats summarises attempts for one test (instructor listing).
	Stats(ctx context.Context, testID int64) (TestStats, error)

	// CompletedAttempt returns the student's completed attempt on the test,
	// or ErrNotFound when there is none.
	CompletedAttempt(ctx context.Context, testID int64, studentID string) (Attempt, error)

	// Submit grades the student's answers against the test's current question
	// set and persists the completed attempt with one answer row per
	// question. Missing answers grade as empty strings. When a completed
	// attempt already exists it is returned alongside ErrAlreadyCompleted.
	Submit(ctx context.Context, testID int64, studentID string, answers map[int64]string) (Attempt, error)

	// GetResult returns the attempt with its graded answers joined to their
	// questions, in question-id order.
	GetResult(ctx context.Context, attemptID int64) (Result, error)
}
