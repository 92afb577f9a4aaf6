package quiz

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/campus-lms/campus/internal/grading"
)

// memoryStore mirrors SQLStore semantics without a database. Used in tests
// and handy for throwaway local runs.
type memoryStore struct {
	mu       sync.RWMutex
	grader   grading.Grader
	nextID   int64
	tests    map[int64]Test
	attempts map[int64]Attempt
	answers  map[int64][]storedAnswer // attemptID -> answers in question order
}

type storedAnswer struct {
	questionID    int64
	studentAnswer string
	isCorrect     bool
}

func NewInMemoryStore() Store {
	return &memoryStore{
		grader:   grading.NewDefaultGrader(),
		tests:    map[int64]Test{},
		attempts: map[int64]Attempt{},
		answers:  map[int64][]storedAnswer{},
	}
}

func (m *memoryStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memoryStore) CreateTest(_ context.Context, t Test) (Test, error) {
	t, err := normalizeTest(t)
	if err != nil {
		return Test{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t.ID = m.id()
	t.CreatedAt = time.Now().Unix()
	for i := range t.Questions {
		t.Questions[i].ID = m.id()
		t.Questions[i].TestID = t.ID
	}
	m.tests[t.ID] = t
	return t, nil
}

func (m *memoryStore) GetTest(_ context.Context, id int64) (Test, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tests[id]
	if !ok {
		return Test{}, ErrNotFound
	}
	cp := t
	cp.Questions = append([]Question(nil), t.Questions...)
	return cp, nil
}

func (m *memoryStore) ListTests(_ context.Context, courseID int64) ([]Test, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Test{}
	for _, t := range m.tests {
		if t.CourseID != courseID {
			continue
		}
		cp := t
		cp.Questions = nil
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt > out[j].CreatedAt
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (m *memoryStore) Stats(_ context.Context, testID int64) (TestStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st := TestStats{Questions: len(m.tests[testID].Questions)}
	sum, n := 0.0, 0
	for _, a := range m.attempts {
		if a.TestID != testID {
			continue
		}
		st.Attempts++
		if a.CompletedAt != 0 && a.MaxScore > 0 {
			sum += a.Score * 100.0 / a.MaxScore
			n++
		}
	}
	if n > 0 {
		st.AvgScore = roundTenth(sum / float64(n))
	}
	return st, nil
}

func (m *memoryStore) CompletedAttempt(_ context.Context, testID int64, studentID string) (Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.completedLocked(testID, studentID)
}

func (m *memoryStore) completedLocked(testID int64, studentID string) (Attempt, error) {
	for _, a := range m.attempts {
		if a.TestID == testID && a.StudentID == studentID && a.CompletedAt != 0 {
			return a, nil
		}
	}
	return Attempt{}, ErrNotFound
}

func (m *memoryStore) Submit(_ context.Context, testID int64, studentID string, answers map[int64]string) (Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tests[testID]
	if !ok {
		return Attempt{}, ErrNotFound
	}
	if prev, err := m.completedLocked(testID, studentID); err == nil {
		return prev, ErrAlreadyCompleted
	}

	now := time.Now().Unix()
	a := Attempt{ID: m.id(), TestID: testID, StudentID: studentID, StartedAt: now, CompletedAt: now}
	var stored []storedAnswer
	for _, q := range t.Questions {
		given := answers[q.ID]
		res, err := m.grader.Grade(grading.Q{Type: q.Type, Points: q.Points, CorrectAnswer: q.CorrectAnswer}, given)
		if err != nil {
			return Attempt{}, err
		}
		if res.Correct {
			a.Score += res.Points
		}
		a.MaxScore += q.Points
		stored = append(stored, storedAnswer{questionID: q.ID, studentAnswer: given, isCorrect: res.Correct})
	}
	m.attempts[a.ID] = a
	m.answers[a.ID] = stored
	return a, nil
}

func (m *memoryStore) GetResult(_ context.Context, attemptID int64) (Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.attempts[attemptID]
	if !ok {
		return Result{}, ErrNotFound
	}
	t := m.tests[a.TestID]
	r := Result{Attempt: a, TestTitle: t.Title, CourseID: t.CourseID, Answers: []Answer{}}
	byID := map[int64]Question{}
	for _, q := range t.Questions {
		byID[q.ID] = q
	}
	for _, sa := range m.answers[attemptID] {
		q := byID[sa.questionID]
		r.Answers = append(r.Answers, Answer{
			QuestionID:    q.ID,
			QuestionText:  q.Text,
			QuestionType:  q.Type,
			Options:       q.Options,
			CorrectAnswer: q.CorrectAnswer,
			Points:        q.Points,
			StudentAnswer: sa.studentAnswer,
			IsCorrect:     sa.isCorrect,
		})
	}
	return r, nil
}
