package quiz

import (
	"context"
	"errors"
	"testing"
)

// The in-memory store must agree with SQLStore on the engine semantics the
// handlers rely on.

func TestMemorySubmitAndGuard(t *testing.T) {
	m := NewInMemoryStore()
	ctx := context.Background()

	created, err := m.CreateTest(ctx, Test{
		CourseID: 1,
		Title:    "Basics",
		Questions: []Question{
			{Text: "Smallest unit of data?", Type: TypeMultipleChoice, Options: []string{"Bit", "Byte"}, CorrectAnswer: "Bit", Points: 2},
			{Text: "Kernel of Android?", Type: TypeShortAnswer, CorrectAnswer: "linux", Points: 2},
		},
	})
	if err != nil {
		t.Fatalf("create test: %v", err)
	}

	if _, err := m.Submit(ctx, 999, "s1", nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing test: got %v, want ErrNotFound", err)
	}

	a, err := m.Submit(ctx, created.ID, "s1", map[int64]string{
		created.Questions[0].ID: "bit",
		created.Questions[1].ID: "Linux",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if a.Score != 4 || a.MaxScore != 4 {
		t.Errorf("score = %v/%v, want 4/4", a.Score, a.MaxScore)
	}

	again, err := m.Submit(ctx, created.ID, "s1", nil)
	if !errors.Is(err, ErrAlreadyCompleted) {
		t.Fatalf("resubmit: got %v, want ErrAlreadyCompleted", err)
	}
	if again.ID != a.ID {
		t.Errorf("resubmit returned %d, want existing %d", again.ID, a.ID)
	}

	res, err := m.GetResult(ctx, a.ID)
	if err != nil {
		t.Fatalf("get result: %v", err)
	}
	if len(res.Answers) != 2 || !res.Answers[0].IsCorrect || !res.Answers[1].IsCorrect {
		t.Errorf("unexpected result answers: %+v", res.Answers)
	}
	if res.TestTitle != "Basics" || res.CourseID != 1 {
		t.Errorf("result context = %q/%d", res.TestTitle, res.CourseID)
	}
}

func TestMemoryStats(t *testing.T) {
	m := NewInMemoryStore()
	ctx := context.Background()

	created, _ := m.CreateTest(ctx, Test{
		CourseID: 1,
		Title:    "T",
		Questions: []Question{
			{Text: "q", Type: TypeShortAnswer, CorrectAnswer: "a", Points: 2},
		},
	})
	if _, err := m.Submit(ctx, created.ID, "s1", map[int64]string{created.Questions[0].ID: "a"}); err != nil {
		t.Fatalf("submit s1: %v", err)
	}
	if _, err := m.Submit(ctx, created.ID, "s2", nil); err != nil {
		t.Fatalf("submit s2: %v", err)
	}
	st, err := m.Stats(ctx, created.ID)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.Attempts != 2 || st.Questions != 1 || st.AvgScore != 50.0 {
		t.Errorf("stats = %+v", st)
	}
}
