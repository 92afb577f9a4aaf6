package http

import (
	"database/sql"
	"net/http"
)

// GET /users?role=student  (admin only, routed behind users:list)
func ListUsersHandler(dbh *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role := r.URL.Query().Get("role")
		var rows *sql.Rows
		var err error
		if role == "" {
			rows, err = dbh.QueryContext(r.Context(), `SELECT id,username,role FROM users ORDER BY username`)
		} else {
			rows, err = dbh.QueryContext(r.Context(), `SELECT id,username,role FROM users WHERE role=$1 ORDER BY username`, role)
		}
		if err != nil {
			writeErr(w, http.StatusInternalServerError, "db error")
			return
		}
		defer rows.Close()
		out := []map[string]string{}
		for rows.Next() {
			var id, u, ro string
			if err := rows.Scan(&id, &u, &ro); err != nil {
				writeErr(w, http.StatusInternalServerError, "db error")
				return
			}
			out = append(out, map[string]string{"id": id, "username": u, "role": ro})
		}
		writeJSON(w, http.StatusOK, out)
	}
}
