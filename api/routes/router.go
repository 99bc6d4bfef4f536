package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/davemarrero/learnhub-backend/api/controllers"
	"github.com/davemarrero/learnhub-backend/api/middleware"
	"github.com/davemarrero/learnhub-backend/internal/analytics"
	"github.com/davemarrero/learnhub-backend/internal/auth"
	"github.com/davemarrero/learnhub-backend/internal/content"
	"github.com/davemarrero/learnhub-backend/internal/courses"
	"github.com/davemarrero/learnhub-backend/internal/enrollments"
	"github.com/davemarrero/learnhub-backend/internal/notes"
	"github.com/davemarrero/learnhub-backend/internal/notifications"
	"github.com/davemarrero/learnhub-backend/internal/progress"
	"github.com/davemarrero/learnhub-backend/internal/realtime"
	"github.com/davemarrero/learnhub-backend/internal/search"
	"github.com/davemarrero/learnhub-backend/internal/users"
	"github.com/davemarrero/learnhub-backend/pkg/config"
	"github.com/davemarrero/learnhub-backend/pkg/logger"
	"github.com/davemarrero/learnhub-backend/pkg/queue"
	"github.com/davemarrero/learnhub-backend/pkg/redis"
	"github.com/davemarrero/learnhub-backend/pkg/storage/gcs"
)

const (
	roleInstructor = "instructor"
	roleAdmin      = "admin"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	readiness map[string]controllers.Pinger,
	redisClient *redis.Client,
	gcsClient *gcs.Client,
	enqueuer queue.Enqueuer,
	recorder *analytics.Recorder,
	authService auth.Service,
	userService users.Service,
	courseService courses.Service,
	contentService content.Service,
	enrollService enrollments.Service,
	progressService progress.Service,
	noteService notes.Service,
	notificationService notifications.Service,
	searchService search.Service,
	registry *realtime.Registry,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(registerPolicy, redisClient, logg)).Post("/register", controllers.AuthRegister(authService, logg))
		r.With(middleware.AuthRateLimit(loginPolicy, redisClient, logg)).Post("/login", controllers.AuthLogin(authService, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/users", func(r chi.Router) {
			r.Get("/me", controllers.Me(userService, logg))
			r.Patch("/me", controllers.UpdateMe(userService, logg))
		})

		r.Route("/courses", func(r chi.Router) {
			r.Get("/", controllers.ListCourses(courseService, logg))
			r.Get("/{courseID}", controllers.GetCourse(courseService, logg))
			r.Get("/{courseID}/contents", controllers.ListCourseContents(contentService, logg))
			r.Get("/{courseID}/progress", controllers.CourseProgressSummary(progressService, logg))
			r.Post("/{courseID}/enroll", controllers.Enroll(enrollService, recorder, logg))
			r.Delete("/{courseID}/enroll", controllers.Unenroll(enrollService, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAnyRole(logg, roleInstructor, roleAdmin))
				r.Post("/", controllers.CreateCourse(courseService, logg))
				r.Patch("/{courseID}", controllers.UpdateCourse(courseService, logg))
				r.Delete("/{courseID}", controllers.DeleteCourse(courseService, logg))
				r.Post("/{courseID}/publish", controllers.PublishCourse(courseService, logg))
				r.Post("/{courseID}/archive", controllers.ArchiveCourse(courseService, logg))
				r.Post("/{courseID}/contents", controllers.UploadContent(contentService, courseService, gcsClient, enqueuer, cfg.Upload, cfg.Queue, logg))
			})
		})

		r.Route("/contents/{contentID}", func(r chi.Router) {
			r.Get("/", controllers.GetContent(contentService, logg))
			r.With(middleware.RequireAnyRole(logg, roleInstructor, roleAdmin)).
				Delete("/", controllers.DeleteContent(contentService, courseService, logg))
			r.Get("/stream", controllers.StreamContent(contentService, enrollService, courseService, gcsClient, logg))
			r.Get("/manifest", controllers.ContentManifest(contentService, enrollService, courseService, logg))
			r.Get("/progress", controllers.GetContentProgress(progressService, logg))
			r.Put("/progress", controllers.UpdateContentProgress(progressService, recorder, logg))
			r.Route("/notes", func(r chi.Router) {
				r.Get("/", controllers.ListNotes(noteService, logg))
				r.Post("/", controllers.CreateNote(noteService, logg))
			})
		})

		r.Route("/notes/{noteID}", func(r chi.Router) {
			r.Patch("/", controllers.UpdateNote(noteService, logg))
			r.Delete("/", controllers.DeleteNote(noteService, logg))
		})

		r.Route("/enrollments", func(r chi.Router) {
			r.Get("/", controllers.MyEnrollments(enrollService, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(notificationService, logg))
			r.Post("/{notificationID}/read", controllers.MarkNotificationRead(notificationService, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(notificationService, logg))
		})

		r.Route("/search", func(r chi.Router) {
			r.Get("/courses", controllers.SearchCourses(searchService, logg))
			r.Get("/content", controllers.SearchContent(searchService, logg))
		})
	})

	// Websocket authenticates after the upgrade so browser clients can
	// observe the close code; it bypasses the Auth middleware group.
	r.Get("/ws", controllers.Websocket(registry, enrollService, progressService, cfg.JWT, logg))

	return r
}
