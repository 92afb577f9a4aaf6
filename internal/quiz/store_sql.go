package quiz

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/campus-lms/campus/internal/db"
	"github.com/campus-lms/campus/internal/grading"
)

type SQLStore struct {
	db     *sql.DB
	grader grading.Grader
}

func NewSQLStore(dbh *sql.DB) *SQLStore {
	return &SQLStore{db: dbh, grader: grading.NewDefaultGrader()}
}

func (s *SQLStore) CreateTest(ctx context.Context, t Test) (Test, error) {
	t, err := normalizeTest(t)
	if err != nil {
		return Test{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Test{}, err
	}
	defer func() { _ = tx.Rollback() }()

	t.CreatedAt = time.Now().Unix()
	err = tx.QueryRowContext(ctx,
		`INSERT INTO tests (course_id, title, description, duration_minutes, created_at)
		 VALUES ($1,$2,$3,$4,$5) RETURNING id`,
		t.CourseID, t.Title, t.Description, t.DurationMinutes, t.CreatedAt).Scan(&t.ID)
	if err != nil {
		return Test{}, err
	}

	for i := range t.Questions {
		q := &t.Questions[i]
		q.TestID = t.ID
		var opts sql.NullString
		if len(q.Options) > 0 {
			buf, err := json.Marshal(q.Options)
			if err != nil {
				return Test{}, err
			}
			opts = sql.NullString{String: string(buf), Valid: true}
		}
		err = tx.QueryRowContext(ctx,
			`INSERT INTO test_questions (test_id, question_text, question_type, options_json, correct_answer, points)
			 VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`,
			t.ID, q.Text, q.Type, opts, q.CorrectAnswer, q.Points).Scan(&q.ID)
		if err != nil {
			return Test{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return Test{}, err
	}
	return t, nil
}

func (s *SQLStore) GetTest(ctx context.Context, id int64) (Test, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, course_id, title, description, duration_minutes, created_at FROM tests WHERE id=$1`, id)
	var t Test
	if err := row.Scan(&t.ID, &t.CourseID, &t.Title, &t.Description, &t.DurationMinutes, &t.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Test{}, ErrNotFound
		}
		return Test{}, err
	}
	qs, err := s.questions(ctx, s.db, id)
	if err != nil {
		return Test{}, err
	}
	t.Questions = qs
	return t, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// questions loads the test's question set in ascending id order, the same
// ordering the open and submit paths must agree on.
func (s *SQLStore) questions(ctx context.Context, q querier, testID int64) ([]Question, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, test_id, question_text, question_type, options_json, correct_answer, points
		 FROM test_questions WHERE test_id=$1 ORDER BY id`, testID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Question
	for rows.Next() {
		var qu Question
		var opts sql.NullString
		if err := rows.Scan(&qu.ID, &qu.TestID, &qu.Text, &qu.Type, &opts, &qu.CorrectAnswer, &qu.Points); err != nil {
			return nil, err
		}
		if opts.Valid && opts.String != "" {
			if err := json.Unmarshal([]byte(opts.String), &qu.Options); err != nil {
				return nil, err
			}
		}
		out = append(out, qu)
	}
	return out, rows.Err()
}

func (s *SQLStore) ListTests(ctx context.Context, courseID int64) ([]Test, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, course_id, title, description, duration_minutes, created_at
		 FROM tests WHERE course_id=$1 ORDER BY created_at DESC, id DESC`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Test{}
	for rows.Next() {
		var t Test
		if err := rows.Scan(&t.ID, &t.CourseID, &t.Title, &t.Description, &t.DurationMinutes, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *SQLStore) Stats(ctx context.Context, testID int64) (TestStats, error) {
	var st TestStats
	var avg sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `
		SELECT
		  (SELECT COUNT(*) FROM test_attempts WHERE test_id=$1),
		  (SELECT AVG(CASE WHEN max_score > 0 THEN score * 100.0 / max_score END)
		     FROM test_attempts WHERE test_id=$1 AND completed_at IS NOT NULL),
		  (SELECT COUNT(*) FROM test_questions WHERE test_id=$1)`,
		testID).Scan(&st.Attempts, &avg, &st.Questions)
	if err != nil {
		return TestStats{}, err
	}
	if avg.Valid {
		st.AvgScore = roundTenth(avg.Float64)
	}
	return st, nil
}

func (s *SQLStore) CompletedAttempt(ctx context.Context, testID int64, studentID string) (Attempt, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, test_id, student_id, score, max_score, started_at, completed_at
		 FROM test_attempts WHERE test_id=$1 AND student_id=$2 AND completed_at IS NOT NULL`,
		testID, studentID)
	return scanAttempt(row)
}

func (s *SQLStore) Submit(ctx context.Context, testID int64, studentID string, answers map[int64]string) (Attempt, error) {
	// Existence check before any write.
	var exists int64
	if err := s.db.QueryRowContext(ctx, `SELECT id FROM tests WHERE id=$1`, testID).Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Attempt{}, ErrNotFound
		}
		return Attempt{}, err
	}

	// Fast path: a completed attempt already exists. The unique index below
	// remains the authoritative guard under concurrency.
	if prev, err := s.CompletedAttempt(ctx, testID, studentID); err == nil {
		return prev, ErrAlreadyCompleted
	} else if !errors.Is(err, ErrNotFound) {
		return Attempt{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Attempt{}, err
	}
	defer func() { _ = tx.Rollback() }()

	qs, err := s.questions(ctx, tx, testID)
	if err != nil {
		return Attempt{}, err
	}

	maxScore := 0.0
	for _, q := range qs {
		maxScore += q.Points
	}

	a := Attempt{TestID: testID, StudentID: studentID, MaxScore: maxScore, StartedAt: time.Now().Unix()}
	err = tx.QueryRowContext(ctx,
		`INSERT INTO test_attempts (test_id, student_id, max_score, started_at) VALUES ($1,$2,$3,$4) RETURNING id`,
		testID, studentID, maxScore, a.StartedAt).Scan(&a.ID)
	if err != nil {
		return Attempt{}, err
	}

	// Grade in question order; one answer row per question, answered or not.
	score := 0.0
	maxScore = 0.0
	for _, q := range qs {
		given := answers[q.ID]
		res, err := s.grader.Grade(grading.Q{Type: q.Type, Points: q.Points, CorrectAnswer: q.CorrectAnswer}, given)
		if err != nil {
			return Attempt{}, err
		}
		if res.Correct {
			score += res.Points
		}
		maxScore += q.Points
		isCorrect := 0
		if res.Correct {
			isCorrect = 1
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO test_answers (attempt_id, question_id, student_answer, is_correct) VALUES ($1,$2,$3,$4)`,
			a.ID, q.ID, given, isCorrect); err != nil {
			return Attempt{}, err
		}
	}

	a.Score = score
	a.MaxScore = maxScore
	a.CompletedAt = time.Now().Unix()
	_, err = tx.ExecContext(ctx,
		`UPDATE test_attempts SET score=$1, max_score=$2, completed_at=$3 WHERE id=$4`,
		a.Score, a.MaxScore, a.CompletedAt, a.ID)
	if err == nil {
		err = tx.Commit()
	}
	if err != nil {
		if db.IsUniqueViolation(err) {
			return s.resolveConflict(ctx, tx, testID, studentID)
		}
		return Attempt{}, err
	}
	return a, nil
}

// resolveConflict handles a unique-index conflict on completion: a concurrent
// submission completed first and wins. The failed transaction is rolled back
// before the lookup so its connection and locks are released; reading the
// surviving attempt through the pool would otherwise block on our own state.
func (s *SQLStore) resolveConflict(ctx context.Context, tx *sql.Tx, testID int64, studentID string) (Attempt, error) {
	_ = tx.Rollback()
	if prev, err := s.CompletedAttempt(ctx, testID, studentID); err == nil {
		return prev, ErrAlreadyCompleted
	}
	return Attempt{}, ErrAlreadyCompleted
}

func (s *SQLStore) GetResult(ctx context.Context, attemptID int64) (Result, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT a.id, a.test_id, a.student_id, a.score, a.max_score, a.started_at, a.completed_at,
		       t.title, t.course_id
		  FROM test_attempts a
		  JOIN tests t ON t.id = a.test_id
		 WHERE a.id=$1`, attemptID)
	var r Result
	var score, maxScore sql.NullFloat64
	var completedAt sql.NullInt64
	err := row.Scan(&r.Attempt.ID, &r.Attempt.TestID, &r.Attempt.StudentID,
		&score, &maxScore, &r.Attempt.StartedAt, &completedAt, &r.TestTitle, &r.CourseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Result{}, ErrNotFound
		}
		return Result{}, err
	}
	r.Attempt.Score = score.Float64
	r.Attempt.MaxScore = maxScore.Float64
	r.Attempt.CompletedAt = completedAt.Int64

	rows, err := s.db.QueryContext(ctx, `
		SELECT q.id, q.question_text, q.question_type, q.options_json, q.correct_answer, q.points,
		       ans.student_answer, ans.is_correct
		  FROM test_answers ans
		  JOIN test_questions q ON q.id = ans.question_id
		 WHERE ans.attempt_id=$1
		 ORDER BY q.id`, attemptID)
	if err != nil {
		return Result{}, err
	}
	defer rows.Close()

	r.Answers = []Answer{}
	for rows.Next() {
		var a Answer
		var opts sql.NullString
		var isCorrect int
		if err := rows.Scan(&a.QuestionID, &a.QuestionText, &a.QuestionType, &opts,
			&a.CorrectAnswer, &a.Points, &a.StudentAnswer, &isCorrect); err != nil {
			return Result{}, err
		}
		if opts.Valid && opts.String != "" {
			if err := json.Unmarshal([]byte(opts.String), &a.Options); err != nil {
				return Result{}, err
			}
		}
		a.IsCorrect = isCorrect != 0
		r.Answers = append(r.Answers, a)
	}
	return r, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAttempt(row rowScanner) (Attempt, error) {
	var a Attempt
	var score, maxScore sql.NullFloat64
	var completedAt sql.NullInt64
	err := row.Scan(&a.ID, &a.TestID, &a.StudentID, &score, &maxScore, &a.StartedAt, &completedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Attempt{}, ErrNotFound
		}
		return Attempt{}, err
	}
	a.Score = score.Float64
	a.MaxScore = maxScore.Float64
	a.CompletedAt = completedAt.Int64
	return a, nil
}

func roundTenth(v float64) float64 {
	if v < 0 {
		return float64(int64(v*10-0.5)) / 10
	}
	return float64(int64(v*10+0.5)) / 10
}
