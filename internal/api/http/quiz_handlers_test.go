package http

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/campus-lms/campus/internal/db"
	"github.com/campus-lms/campus/internal/quiz"
	"github.com/campus-lms/campus/internal/rbac"
)

// testIdentity injects the caller identity from request headers, standing in
// for the JWT middleware.
func testIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := rbac.WithSubject(r.Context(), r.Header.Get("X-Test-Sub"))
		ctx = rbac.WithRole(ctx, r.Header.Get("X-Test-Role"))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type testEnv struct {
	srv     *httptest.Server
	store   *quiz.SQLStore
	dbh     *sql.DB
	course1 int64 // owned by i1, s1 enrolled
	course2 int64 // owned by i2
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	dbh, err := db.Open(context.Background(), db.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	dbh.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = dbh.Close() })

	now := time.Now().Unix()
	for _, u := range [][2]string{{"s1", "student"}, {"s2", "student"}, {"i1", "instructor"}, {"i2", "instructor"}, {"a1", "admin"}} {
		if _, err := dbh.Exec(
			`INSERT INTO users (id, username, password_hash, role, created_at) VALUES ($1,$2,'x',$3,$4)`,
			u[0], u[0], u[1], now); err != nil {
			t.Fatalf("seed user: %v", err)
		}
	}
	env := &testEnv{dbh: dbh, store: quiz.NewSQLStore(dbh)}
	for _, c := range []struct {
		name, owner string
		dst         *int64
	}{{"OS", "i1", &env.course1}, {"Databases", "i2", &env.course2}} {
		if err := dbh.QueryRow(
			`INSERT INTO courses (name, description, instructor_id, created_at) VALUES ($1,'',$2,$3) RETURNING id`,
			c.name, c.owner, now).Scan(c.dst); err != nil {
			t.Fatalf("seed course: %v", err)
		}
	}
	if _, err := dbh.Exec(
		`INSERT INTO enrollments (course_id, student_id, enrolled_at) VALUES ($1,'s1',$2)`,
		env.course1, now); err != nil {
		t.Fatalf("seed enrollment: %v", err)
	}

	r := chi.NewRouter()
	r.Use(testIdentity)
	r.With(rbac.Require("test:create")).Post("/courses/{courseID}/tests", CreateTestHandler(env.store, dbh))
	r.With(rbac.Require("test:view")).Get("/courses/{courseID}/tests", ListTestsHandler(env.store, dbh))
	r.Get("/tests/{testID}", OpenTestHandler(env.store))
	r.Post("/tests/{testID}/submit", SubmitTestHandler(env.store))
	r.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).Get("/attempts/{attemptID}", GetResultHandler(env.store, dbh))
	r.With(rbac.Require("announcement:create")).Post("/courses/{courseID}/announcements", CreateAnnouncementHandler(dbh))
	r.With(rbac.Require("event:create")).Post("/courses/{courseID}/events", CreateEventHandler(dbh))

	env.srv = httptest.NewServer(r)
	t.Cleanup(env.srv.Close)
	return env
}

func (e *testEnv) do(t *testing.T, method, path, sub, role string, body any) *http.Response {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(buf)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, rd)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("X-Test-Sub", sub)
	req.Header.Set("X-Test-Role", role)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func (e *testEnv) seedTest(t *testing.T) quiz.Test {
	t.Helper()
	resp := e.do(t, "POST", fmt.Sprintf("/courses/%d/tests", e.course1), "i1", "instructor", map[string]any{
		"title": "Basics",
		"questions": []map[string]any{
			{"text": "Smallest unit of data?", "type": "multiple_choice", "options": []string{"Bit", "Byte"}, "correct_answer": "Bit", "points": 2},
			{"text": "Kernel of Android?", "type": "short_answer", "correct_answer": "linux", "points": 2},
		},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("seed test: status %d", resp.StatusCode)
	}
	return decode[quiz.Test](t, resp)
}

func TestCreateTestAuthz(t *testing.T) {
	e := newTestEnv(t)

	// students are stopped at the rbac gate
	resp := e.do(t, "POST", fmt.Sprintf("/courses/%d/tests", e.course1), "s1", "student", map[string]any{"title": "x"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("student create: status %d, want 403", resp.StatusCode)
	}
	// instructors cannot author on other instructors' courses
	resp = e.do(t, "POST", fmt.Sprintf("/courses/%d/tests", e.course2), "i1", "instructor", map[string]any{"title": "x"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("foreign instructor create: status %d, want 403", resp.StatusCode)
	}
	// missing title is a validation failure
	resp = e.do(t, "POST", fmt.Sprintf("/courses/%d/tests", e.course1), "i1", "instructor", map[string]any{"title": " "})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("empty title: status %d, want 400", resp.StatusCode)
	}
}

func TestCreateOnMissingCourse(t *testing.T) {
	// Writes against a course that does not exist answer 404 before the
	// ownership check, so an admin never trips the foreign key instead.
	e := newTestEnv(t)

	cases := []struct {
		name string
		path string
		body map[string]any
	}{
		{"test", "/courses/9999/tests", map[string]any{"title": "x"}},
		{"announcement", "/courses/9999/announcements", map[string]any{"title": "x"}},
		{"event", "/courses/9999/events", map[string]any{"title": "x", "event_date": "2026-09-01"}},
	}
	for _, c := range cases {
		resp := e.do(t, "POST", c.path, "a1", "admin", c.body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("admin create %s: status %d, want 404", c.name, resp.StatusCode)
		}
	}
}

func TestOpenTestGuardOrder(t *testing.T) {
	e := newTestEnv(t)
	created := e.seedTest(t)

	// 1. missing test wins over role: 404 even for an instructor
	resp := e.do(t, "GET", "/tests/9999", "i1", "instructor", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing test: status %d, want 404", resp.StatusCode)
	}
	// 2. existing test, non-student role: 403
	resp = e.do(t, "GET", fmt.Sprintf("/tests/%d", created.ID), "i1", "instructor", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("instructor open: status %d, want 403", resp.StatusCode)
	}
	// 3. student sees the questions with answer keys stripped
	resp = e.do(t, "GET", fmt.Sprintf("/tests/%d", created.ID), "s1", "student", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("student open: status %d, want 200", resp.StatusCode)
	}
	got := decode[quiz.Test](t, resp)
	if len(got.Questions) != 2 {
		t.Fatalf("questions = %d, want 2", len(got.Questions))
	}
	for i, q := range got.Questions {
		if q.CorrectAnswer != "" {
			t.Errorf("question %d leaks answer key %q", i, q.CorrectAnswer)
		}
	}
}

func TestSubmitAndReopen(t *testing.T) {
	e := newTestEnv(t)
	created := e.seedTest(t)

	resp := e.do(t, "POST", fmt.Sprintf("/tests/%d/submit", created.ID), "s1", "student", map[string]any{
		"answers": map[string]string{
			fmt.Sprint(created.Questions[0].ID): "bit",
			fmt.Sprint(created.Questions[1].ID): "Linux",
		},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("submit: status %d, want 201", resp.StatusCode)
	}
	a := decode[quiz.Attempt](t, resp)
	if a.Score != 4 || a.MaxScore != 4 {
		t.Errorf("score = %v/%v, want 4/4", a.Score, a.MaxScore)
	}

	// re-opening redirects to the existing result instead of the form
	resp = e.do(t, "GET", fmt.Sprintf("/tests/%d", created.ID), "s1", "student", nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("reopen: status %d, want 409", resp.StatusCode)
	}
	conflict := decode[map[string]any](t, resp)
	if int64(conflict["attempt_id"].(float64)) != a.ID {
		t.Errorf("reopen attempt_id = %v, want %d", conflict["attempt_id"], a.ID)
	}

	// a direct resubmission is rejected the same way
	resp = e.do(t, "POST", fmt.Sprintf("/tests/%d/submit", created.ID), "s1", "student", map[string]any{
		"answers": map[string]string{},
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("resubmit: status %d, want 409", resp.StatusCode)
	}
	conflict = decode[map[string]any](t, resp)
	if int64(conflict["attempt_id"].(float64)) != a.ID {
		t.Errorf("resubmit attempt_id = %v, want %d", conflict["attempt_id"], a.ID)
	}
}

func TestResultAccess(t *testing.T) {
	e := newTestEnv(t)
	created := e.seedTest(t)

	resp := e.do(t, "POST", fmt.Sprintf("/tests/%d/submit", created.ID), "s1", "student", map[string]any{
		"answers": map[string]string{fmt.Sprint(created.Questions[0].ID): "Bit"},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("submit: status %d", resp.StatusCode)
	}
	a := decode[quiz.Attempt](t, resp)

	cases := []struct {
		sub, role string
		want      int
	}{
		{"s1", "student", http.StatusOK},           // owner
		{"s2", "student", http.StatusForbidden},    // not theirs
		{"i1", "instructor", http.StatusOK},        // teaches the course
		{"i2", "instructor", http.StatusForbidden}, // other course
		{"a1", "admin", http.StatusOK},
	}
	for _, c := range cases {
		resp := e.do(t, "GET", fmt.Sprintf("/attempts/%d", a.ID), c.sub, c.role, nil)
		resp.Body.Close()
		if resp.StatusCode != c.want {
			t.Errorf("%s/%s: status %d, want %d", c.sub, c.role, resp.StatusCode, c.want)
		}
	}

	resp = e.do(t, "GET", "/attempts/9999", "s1", "student", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing attempt: status %d, want 404", resp.StatusCode)
	}
}

func TestListTestsRoleExtras(t *testing.T) {
	e := newTestEnv(t)
	created := e.seedTest(t)

	resp := e.do(t, "POST", fmt.Sprintf("/tests/%d/submit", created.ID), "s1", "student", map[string]any{
		"answers": map[string]string{fmt.Sprint(created.Questions[0].ID): "Bit"},
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("submit: status %d", resp.StatusCode)
	}

	// student: completed attempt attached
	resp = e.do(t, "GET", fmt.Sprintf("/courses/%d/tests", e.course1), "s1", "student", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("student list: status %d", resp.StatusCode)
	}
	studentList := decode[[]quiz.TestSummary](t, resp)
	if len(studentList) != 1 || studentList[0].Attempt == nil {
		t.Fatalf("student list = %+v, want attached attempt", studentList)
	}
	if studentList[0].Attempt.Score != 2 {
		t.Errorf("attached attempt score = %v, want 2", studentList[0].Attempt.Score)
	}

	// instructor: stats attached
	resp = e.do(t, "GET", fmt.Sprintf("/courses/%d/tests", e.course1), "i1", "instructor", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("instructor list: status %d", resp.StatusCode)
	}
	instrList := decode[[]quiz.TestSummary](t, resp)
	if len(instrList) != 1 || instrList[0].Stats == nil {
		t.Fatalf("instructor list = %+v, want stats", instrList)
	}
	st := instrList[0].Stats
	if st.Attempts != 1 || st.Questions != 2 || st.AvgScore != 50.0 {
		t.Errorf("stats = %+v", st)
	}

	// unenrolled student cannot read the course's tests
	resp = e.do(t, "GET", fmt.Sprintf("/courses/%d/tests", e.course1), "s2", "student", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("unenrolled list: status %d, want 403", resp.StatusCode)
	}
}
