package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	api "github.com/campus-lms/campus/internal/api/http"
	"github.com/campus-lms/campus/internal/auth"
	"github.com/campus-lms/campus/internal/config"
	"github.com/campus-lms/campus/internal/db"
	"github.com/campus-lms/campus/internal/quiz"
	"github.com/campus-lms/campus/internal/rbac"
)

func main() {
	cfg := config.FromEnv()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}
	if err := auth.EnsureAdmin(dbh, cfg.AdminUser, cfg.AdminPassHash); err != nil {
		log.Fatalf("seed admin: %v", err)
	}

	store := quiz.NewSQLStore(dbh)
	authSvc := auth.NewAuthService(cfg.AuthSecret)

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Post("/auth/login", auth.LoginHandler(authSvc, dbh))
	r.Post("/auth/register", auth.RegisterHandler(dbh))

	// Protected API (JWT → subject+role in context → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))

		pr.With(rbac.Require("course:create")).
			Post("/courses", api.CreateCourseHandler(dbh))
		pr.With(rbac.Require("course:view")).
			Get("/courses", api.ListCoursesHandler(dbh))
		pr.With(rbac.Require("course:enroll")).
			Post("/courses/{courseID}/enroll", api.EnrollHandler(dbh))

		pr.With(rbac.Require("test:create")).
			Post("/courses/{courseID}/tests", api.CreateTestHandler(store, dbh))
		pr.With(rbac.Require("test:view")).
			Get("/courses/{courseID}/tests", api.ListTestsHandler(store, dbh))

		// Test taking: the handlers check role after existence so a missing
		// test answers 404 for any caller, so no rbac gate here beyond
		// authentication.
		pr.Get("/tests/{testID}", api.OpenTestHandler(store))
		pr.Post("/tests/{testID}/submit", api.SubmitTestHandler(store))
		pr.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).
			Get("/attempts/{attemptID}", api.GetResultHandler(store, dbh))

		pr.With(rbac.Require("announcement:create")).
			Post("/courses/{courseID}/announcements", api.CreateAnnouncementHandler(dbh))
		pr.With(rbac.Require("announcement:view")).
			Get("/courses/{courseID}/announcements", api.ListAnnouncementsHandler(dbh))

		pr.With(rbac.Require("event:create")).
			Post("/courses/{courseID}/events", api.CreateEventHandler(dbh))
		pr.With(rbac.Require("event:view")).
			Get("/courses/{courseID}/events", api.ListEventsHandler(dbh))

		pr.With(rbac.Require("users:list")).
			Get("/users", api.ListUsersHandler(dbh))
		pr.With(rbac.Require("user:change_password")).
			Post("/users/change-password", auth.ChangePasswordHandler(dbh))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	log.Printf("listening on %s (db=%s)", cfg.HTTPAddr, cfg.DBDriver)
	log.Fatal(http.ListenAndServe(cfg.HTTPAddr, r))
}
