package http

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/campus-lms/campus/internal/quiz"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeQuizErr maps the engine's error taxonomy onto HTTP statuses.
func writeQuizErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, quiz.ErrNotFound):
		writeErr(w, http.StatusNotFound, "not found")
	case errors.Is(err, quiz.ErrForbidden):
		writeErr(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, quiz.ErrValidation):
		writeErr(w, http.StatusBadRequest, err.Error())
	default:
		writeErr(w, http.StatusInternalServerError, "internal error")
	}
}

func urlID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}

func isCourseInstructor(dbh *sql.DB, userID string, courseID int64) bool {
	var ok bool
	_ = dbh.QueryRow(`SELECT EXISTS(SELECT 1 FROM courses WHERE id=$1 AND instructor_id=$2)`,
		courseID, userID).Scan(&ok)
	return ok
}

func isCourseStudent(dbh *sql.DB, userID string, courseID int64) bool {
	var ok bool
	_ = dbh.QueryRow(`SELECT EXISTS(SELECT 1 FROM enrollments WHERE course_id=$1 AND student_id=$2)`,
		courseID, userID).Scan(&ok)
	return ok
}

func courseExists(dbh *sql.DB, courseID int64) bool {
	var ok bool
	_ = dbh.QueryRow(`SELECT EXISTS(SELECT 1 FROM courses WHERE id=$1)`, courseID).Scan(&ok)
	return ok
}

// canReadCourse gates course-scoped reads: enrolled students, the owning
// instructor, or an admin.
func canReadCourse(dbh *sql.DB, role, userID string, courseID int64) bool {
	switch role {
	case "admin":
		return true
	case "instructor":
		return isCourseInstructor(dbh, userID, courseID)
	default:
		return isCourseStudent(dbh, userID, courseID)
	}
}
