package http

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/campus-lms/campus/internal/quiz"
	"github.com/campus-lms/campus/internal/rbac"
)

// POST /courses/{courseID}/tests
// Authoring input is an explicit array of question objects; order in the
// array is the order the questions are stored and later served in.
func CreateTestHandler(store quiz.Store, dbh *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		courseID, ok := urlID(r, "courseID")
		if !ok {
			writeErr(w, http.StatusBadRequest, "bad course id")
			return
		}
		if !courseExists(dbh, courseID) {
			writeErr(w, http.StatusNotFound, "course not found")
			return
		}
		sub := rbac.SubjectFromContext(r.Context())
		role := rbac.RoleFromContext(r.Context())
		if role != "admin" && !isCourseInstructor(dbh, sub, courseID) {
			writeErr(w, http.StatusForbidden, "forbidden")
			return
		}
		var req struct {
			Title           string `json:"title"`
			Description     string `json:"description"`
			DurationMinutes int    `json:"duration_minutes"`
			Questions       []struct {
				Text          string   `json:"text"`
				Type          string   `json:"type"`
				Options       []string `json:"options"`
				CorrectAnswer string   `json:"correct_answer"`
				Points        float64  `json:"points"`
			} `json:"questions"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeErr(w, http.StatusBadRequest, "bad json")
			return
		}
		t := quiz.Test{
			CourseID:        courseID,
			Title:           req.Title,
			Description:     req.Description,
			DurationMinutes: req.DurationMinutes,
		}
		for _, q := range req.Questions {
			t.Questions = append(t.Questions, quiz.Question{
				Text:          q.Text,
				Type:          q.Type,
				Options:       q.Options,
				CorrectAnswer: q.CorrectAnswer,
				Points:        q.Points,
			})
		}
		created, err := store.CreateTest(r.Context(), t)
		if err != nil {
			writeQuizErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

// GET /courses/{courseID}/tests
// Students get their completed attempt per test; instructors get per-test
// statistics (attempt count, mean percentage, question count).
func ListTestsHandler(store quiz.Store, dbh *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		courseID, ok := urlID(r, "courseID")
		if !ok {
			writeErr(w, http.StatusBadRequest, "bad course id")
			return
		}
		if !courseExists(dbh, courseID) {
			writeErr(w, http.StatusNotFound, "not found")
			return
		}
		sub := rbac.SubjectFromContext(r.Context())
		role := rbac.RoleFromContext(r.Context())
		if !canReadCourse(dbh, role, sub, courseID) {
			writeErr(w, http.StatusForbidden, "forbidden")
			return
		}

		tests, err := store.ListTests(r.Context(), courseID)
		if err != nil {
			writeQuizErr(w, err)
			return
		}
		out := make([]quiz.TestSummary, 0, len(tests))
		for _, t := range tests {
			s := quiz.TestSummary{Test: t}
			switch role {
			case "student":
				if a, err := store.CompletedAttempt(r.Context(), t.ID, sub); err == nil {
					att := a
					s.Attempt = &att
				} else if !errors.Is(err, quiz.ErrNotFound) {
					writeQuizErr(w, err)
					return
				}
			case "instructor", "admin":
				st, err := store.Stats(r.Context(), t.ID)
				if err != nil {
					writeQuizErr(w, err)
					return
				}
				s.Stats = &st
			}
			out = append(out, s)
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// GET /tests/{testID}
// Guards evaluated in order: existence, student role, prior completion.
// A prior completed attempt answers with 409 and the attempt id so the
// client can show the existing result instead of the question form.
func OpenTestHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		testID, ok := urlID(r, "testID")
		if !ok {
			writeErr(w, http.StatusBadRequest, "bad test id")
			return
		}
		t, err := store.GetTest(r.Context(), testID)
		if err != nil {
			writeQuizErr(w, err)
			return
		}
		sub := rbac.SubjectFromContext(r.Context())
		if rbac.RoleFromContext(r.Context()) != "student" {
			writeErr(w, http.StatusForbidden, "only students can take tests")
			return
		}
		if prev, err := store.CompletedAttempt(r.Context(), testID, sub); err == nil {
			writeJSON(w, http.StatusConflict, map[string]any{
				"error":      "already completed",
				"attempt_id": prev.ID,
			})
			return
		} else if !errors.Is(err, quiz.ErrNotFound) {
			writeQuizErr(w, err)
			return
		}
		// No attempt row yet; one is created only on submission.
		for i := range t.Questions {
			t.Questions[i].CorrectAnswer = ""
		}
		writeJSON(w, http.StatusOK, t)
	}
}

// POST /tests/{testID}/submit  { "answers": { "<questionID>": "<text>" } }
func SubmitTestHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		testID, ok := urlID(r, "testID")
		if !ok {
			writeErr(w, http.StatusBadRequest, "bad test id")
			return
		}
		sub := rbac.SubjectFromContext(r.Context())
		if rbac.RoleFromContext(r.Context()) != "student" {
			writeErr(w, http.StatusForbidden, "only students can take tests")
			return
		}
		var req struct {
			Answers map[string]string `json:"answers"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeErr(w, http.StatusBadRequest, "bad json")
			return
		}
		answers := make(map[int64]string, len(req.Answers))
		for k, v := range req.Answers {
			qid, err := strconv.ParseInt(k, 10, 64)
			if err != nil {
				writeErr(w, http.StatusBadRequest, "bad question id: "+k)
				return
			}
			answers[qid] = v
		}
		a, err := store.Submit(r.Context(), testID, sub, answers)
		if errors.Is(err, quiz.ErrAlreadyCompleted) {
			writeJSON(w, http.StatusConflict, map[string]any{
				"error":      "already completed",
				"attempt_id": a.ID,
			})
			return
		}
		if err != nil {
			writeQuizErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, a)
	}
}

// GET /attempts/{attemptID}
// Students see only their own attempts; instructors only attempts on courses
// they teach; admins anything.
func GetResultHandler(store quiz.Store, dbh *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		attemptID, ok := urlID(r, "attemptID")
		if !ok {
			writeErr(w, http.StatusBadRequest, "bad attempt id")
			return
		}
		res, err := store.GetResult(r.Context(), attemptID)
		if err != nil {
			writeQuizErr(w, err)
			return
		}
		sub := rbac.SubjectFromContext(r.Context())
		switch rbac.RoleFromContext(r.Context()) {
		case "student":
			if res.Attempt.StudentID != sub {
				writeErr(w, http.StatusForbidden, "forbidden")
				return
			}
		case "instructor":
			if !isCourseInstructor(dbh, sub, res.CourseID) {
				writeErr(w, http.StatusForbidden, "forbidden")
				return
			}
		case "admin":
		default:
			writeErr(w, http.StatusForbidden, "forbidden")
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}
