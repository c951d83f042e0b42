package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	api "eventscout-backend/cmd/api"
	authdomain "eventscout-backend/internal/auth/domain"
	authRepo "eventscout-backend/internal/auth/repository"
	authUsecase "eventscout-backend/internal/auth/usecase"
	eventdomain "eventscout-backend/internal/event/domain"
	eventRepo "eventscout-backend/internal/event/repository"
	interestdomain "eventscout-backend/internal/interest/domain"
	interestRepo "eventscout-backend/internal/interest/repository"
	"eventscout-backend/internal/notification"
	"eventscout-backend/internal/pipeline/extract"
	"eventscout-backend/internal/pipeline/filter"
	"eventscout-backend/internal/pipeline/queue"
	"eventscout-backend/internal/pipeline/usecase"
	"eventscout-backend/pkg/chroma"
	"eventscout-backend/pkg/config"
	"eventscout-backend/pkg/database"
	"eventscout-backend/pkg/gcal"
	"eventscout-backend/pkg/gemini"
	"eventscout-backend/pkg/gmail"

	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize database
	db, err := database.NewPostgresConnection(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Auto-migrate database schemas
	if err := db.AutoMigrate(
		&authdomain.User{},
		&interestdomain.Interest{},
		&interestdomain.UserInterest{},
		&interestdomain.CustomInterest{},
		&eventdomain.Event{},
		&eventdomain.UserEvent{},
		&eventdomain.SyncCursor{},
	); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	// Initialize repositories (dependency injection)
	userRepository := authRepo.NewUserRepository(db)
	interestRepository := interestRepo.NewInterestRepository(db)
	eventRepository := eventRepo.NewEventRepository(db)
	cursorRepository := eventRepo.NewSyncCursorRepository(db)

	// Google services
	gmailService := gmail.NewService(cfg.GoogleClientID, cfg.GoogleClientSecret)
	calendarService := gcal.NewService(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.CalendarReminderMinutes)

	// Stage 2 relevance filter is optional: without a Chroma host the
	// pipeline runs on keyword filtering alone.
	var relevance *filter.RelevanceFilter
	interestIndex, err := chroma.NewInterestIndex(cfg)
	if err != nil {
		log.Printf("[WARN] Interest index unavailable, relevance filtering disabled: %v", err)
	} else {
		relevance = filter.NewRelevanceFilter(interestIndex)
	}

	// One Gemini client per configured API key.
	if len(cfg.GeminiAPIKeys) == 0 {
		log.Fatal("No Gemini API keys configured")
	}
	pool := make([]extract.Generator, 0, len(cfg.GeminiAPIKeys))
	for _, key := range cfg.GeminiAPIKeys {
		pool = append(pool, gemini.NewClient(key, cfg.GeminiModel))
	}
	extractor := extract.NewExtractor(pool)

	// The pipeline usecase and the queue reference each other: sync
	// jobs chain extraction jobs. Build the queue first with a late
	// bound handler.
	var pipelineUc *usecase.PipelineUsecase
	jobQueue := queue.New(64, func(ctx context.Context, job queue.Job) error {
		return pipelineUc.HandleJob(ctx, job)
	})
	pipelineUc = usecase.NewPipelineUsecase(
		userRepository, interestRepository, eventRepository, cursorRepository,
		gmailService, calendarService, relevance, extractor, jobQueue,
		cfg.ExtractChunkSize,
	)
	jobQueue.Start()

	// Pub/Sub push trigger, only when a project is configured.
	if cfg.GoogleProjectID != "" {
		topicName := cfg.GooglePubSubTopic
		if parts := strings.Split(topicName, "/"); len(parts) > 1 {
			topicName = parts[len(parts)-1]
		}
		if topicName == "" {
			topicName = "gmail-updates"
		}

		notifService, err := notification.NewService(cfg.GoogleProjectID, topicName, cfg.GoogleCredentials, userRepository, jobQueue, cfg.SyncMaxResults)
		if err != nil {
			log.Printf("[ERROR] Failed to initialize notification service: %v", err)
		} else {
			go notifService.Start(context.Background())
		}
	} else {
		log.Printf("[WARN] GoogleProjectID not configured, push notifications disabled")
	}

	// HTTP surface
	authUc := authUsecase.NewAuthUsecase(userRepository, cfg)
	handler := api.NewHandler(cfg, jobQueue, gmailService, userRepository, eventRepository)

	// Periodic sync for every user already on record, through the same
	// registry the schedule endpoints manage. Users who sign up later
	// get a loop via POST /api/sync/schedule.
	if users, err := userRepository.List(); err != nil {
		log.Printf("[WARN] Could not list users for periodic sync: %v", err)
	} else {
		for _, u := range users {
			handler.ScheduleFor(u.ID)
		}
		log.Printf("Periodic sync scheduled for %d users every %s", len(users), cfg.SyncInterval)
	}

	r := gin.Default()
	api.SetupRoutes(r, authUc, handler)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.Port
	}

	srv := &http.Server{Addr: ":" + port, Handler: r}
	go func() {
		log.Printf("Server starting on port %s", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server:", err)
		}
	}()

	// Graceful shutdown: stop accepting requests, cancel the periodic
	// loops, then drain the job queue so an in-flight batch finishes.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown: %v", err)
	}

	handler.StopAllSchedules()
	jobQueue.Stop()
	log.Println("Pipeline drained, bye")
}
