package http

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/campus-lms/campus/internal/rbac"
)

type Event struct {
	ID          int64  `json:"id"`
	CourseID    int64  `json:"course_id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	EventDate   string `json:"event_date"` // YYYY-MM-DD
	EventType   string `json:"event_type"`
	CreatedAt   int64  `json:"created_at"`
}

// POST /courses/{courseID}/events
func CreateEventHandler(dbh *sql.DB) http.HandlerFunc {
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
			Title       string `json:"title"`
			Description string `json:"description"`
			EventDate   string `json:"event_date"`
			EventType   string `json:"event_type"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Title) == "" {
			writeErr(w, http.StatusBadRequest, "title required")
			return
		}
		if _, err := time.Parse("2006-01-02", req.EventDate); err != nil {
			writeErr(w, http.StatusBadRequest, "event_date must be YYYY-MM-DD")
			return
		}
		typ := req.EventType
		if typ == "" {
			typ = "general"
		}
		e := Event{CourseID: courseID, Title: req.Title, Description: req.Description,
			EventDate: req.EventDate, EventType: typ, CreatedAt: time.Now().Unix()}
		err := dbh.QueryRowContext(r.Context(),
			`INSERT INTO events (course_id, title, description, event_date, event_type, created_at)
			 VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`,
			e.CourseID, e.Title, e.Description, e.EventDate, e.EventType, e.CreatedAt).Scan(&e.ID)
		if err != nil {
			writeErr(w, http.StatusInternalServerError, "db error")
			return
		}
		writeJSON(w, http.StatusCreated, e)
	}
}

// GET /courses/{courseID}/events
// The calendar feed: events in date order.
func ListEventsHandler(dbh *sql.DB) http.HandlerFunc {
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
			`SELECT id, course_id, title, description, event_date, event_type, created_at
			   FROM events WHERE course_id=$1 ORDER BY event_date, id`, courseID)
		if err != nil {
			writeErr(w, http.StatusInternalServerError, "db error")
			return
		}
		defer rows.Close()

		out := []Event{}
		for rows.Next() {
			var e Event
			if err := rows.Scan(&e.ID, &e.CourseID, &e.Title, &e.Description, &e.EventDate, &e.EventType, &e.CreatedAt); err != nil {
				writeErr(w, http.StatusInternalServerError, "db error")
				return
			}
			out = append(out, e)
		}
		writeJSON(w, http.StatusOK, out)
	}
}
