package http

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/campus-lms/campus/internal/rbac"
)

type Course struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	InstructorID string `json:"instructor_id"`
}

// POST /courses  { "name": "...", "description": "..." }
// The creating instructor owns the course.
func CreateCourseHandler(dbh *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub := rbac.SubjectFromContext(r.Context())
		var req struct {
			Name        string `json:"name"`
			Description string `json:"description"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Name) == "" {
			writeErr(w, http.StatusBadRequest, "name required")
			return
		}
		c := Course{Name: strings.TrimSpace(req.Name), Description: req.Description, InstructorID: sub}
		err := dbh.QueryRowContext(r.Context(),
			`INSERT INTO courses (name, description, instructor_id, created_at) VALUES ($1,$2,$3,$4) RETURNING id`,
			c.Name, c.Description, sub, time.Now().Unix()).Scan(&c.ID)
		if err != nil {
			writeErr(w, http.StatusInternalServerError, "db error")
			return
		}
		writeJSON(w, http.StatusCreated, c)
	}
}

// GET /courses
// Students see courses they are enrolled in, instructors the ones they own,
// admins everything.
func ListCoursesHandler(dbh *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub := rbac.SubjectFromContext(r.Context())
		role := rbac.RoleFromContext(r.Context())

		var (
			sqlStr string
			args   []any
		)
		switch role {
		case "admin":
			sqlStr = `SELECT id, name, description, instructor_id FROM courses ORDER BY created_at DESC, id DESC`
		case "instructor":
			sqlStr = `SELECT id, name, description, instructor_id FROM courses WHERE instructor_id=$1 ORDER BY created_at DESC, id DESC`
			args = append(args, sub)
		default:
			sqlStr = `SELECT c.id, c.name, c.description, c.instructor_id
			            FROM courses c
			            JOIN enrollments e ON e.course_id=c.id
			           WHERE e.student_id=$1
			           ORDER BY c.created_at DESC, c.id DESC`
			args = append(args, sub)
		}

		rows, err := dbh.QueryContext(r.Context(), sqlStr, args...)
		if err != nil {
			writeErr(w, http.StatusInternalServerError, "db error")
			return
		}
		defer rows.Close()

		out := []Course{}
		for rows.Next() {
			var c Course
			if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.InstructorID); err != nil {
				writeErr(w, http.StatusInternalServerError, "db error")
				return
			}
			out = append(out, c)
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// POST /courses/{courseID}/enroll
// Student self-enrollment; re-enrolling is a no-op.
func EnrollHandler(dbh *sql.DB) http.HandlerFunc {
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
		_, err := dbh.ExecContext(r.Context(),
			`INSERT INTO enrollments (course_id, student_id, enrolled_at) VALUES ($1,$2,$3)
			 ON CONFLICT (course_id, student_id) DO NOTHING`,
			courseID, sub, time.Now().Unix())
		if err != nil {
			writeErr(w, http.StatusInternalServerError, "db error")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
