package http

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/campus-lms/campus/internal/rbac"
)

type Announcement struct {
	ID        int64  `json:"id"`
	CourseID  int64  `json:"course_id"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	AuthorID  string `json:"author_id"`
	CreatedAt int64  `json:"created_at"`
}

// POST /courses/{courseID}/announcements
func CreateAnnouncementHandler(dbh *sql.DB) http.HandlerFunc {
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
			Title   string `json:"title"`
			Content string `json:"content"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Title) == "" {
			writeErr(w, http.StatusBadRequest, "title required")
			return
		}
		a := Announcement{CourseID: courseID, Title: req.Title, Content: req.Content, AuthorID: sub, CreatedAt: time.Now().Unix()}
		err := dbh.QueryRowContext(r.Context(),
			`INSERT INTO announcements (course_id, title, content, author_id, created_at) VALUES ($1,$2,$3,$4,$5) RETURNING id`,
			a.CourseID, a.Title, a.Content, a.AuthorID, a.CreatedAt).Scan(&a.ID)
		if err != nil {
			writeErr(w, http.StatusInternalServerError, "db error")
			return
		}
		writeJSON(w, http.StatusCreated, a)
	}
}

// GET /courses/{courseID}/announcements
func ListAnnouncementsHandler(dbh *sql.DB) http.HandlerFunc {
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
		rows, err := dbh.QueryContext(r.Context(),
			`SELECT id, course_id, title, content, author_id, created_at
			   FROM announcements WHERE course_id=$1 ORDER BY created_at DESC, id DESC`, courseID)
		if err != nil {
			writeErr(w, http.StatusInternalServerError, "db error")
			return
		}
		defer rows.Close()

		out := []Announcement{}
		for rows.Next() {
			var a Announcement
			if err := rows.Scan(&a.ID, &a.CourseID, &a.Title, &a.Content, &a.AuthorID, &a.CreatedAt); err != nil {
				writeErr(w, http.StatusInternalServerError, "db error")
				return
			}
			out = append(out, a)
		}
		writeJSON(w, http.StatusOK, out)
	}
}
