package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/uide-dev/titulacion-api/internal/config"
	"github.com/uide-dev/titulacion-api/internal/database"
	"github.com/uide-dev/titulacion-api/internal/handler"
	"github.com/uide-dev/titulacion-api/internal/middleware"
	"github.com/uide-dev/titulacion-api/internal/models"
	"github.com/uide-dev/titulacion-api/internal/repository"
	"github.com/uide-dev/titulacion-api/internal/router"
	"github.com/uide-dev/titulacion-api/internal/service"
	cloud "github.com/uide-dev/titulacion-api/pkg/cloudinary"
	"github.com/uide-dev/titulacion-api/pkg/mail"
)

const notificationChannelBase = "titulacion"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.Proposal{},
		&models.Activity{},
		&models.Evidence{},
		&models.ReviewComment{},
		&models.PrerequisiteItem{},
		&models.PrerequisiteRecord{},
		&models.Deliverable{},
		&models.DefenseEvaluation{},
		&models.DefensePanelist{},
		&models.Notification{},
	); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
	} else {
		logger.Warn().Msg("redis url not configured, summary cache and notification fanout disabled")
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = nats.Connect(cfg.NATSURL, nats.Name(cfg.AppName))
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Close()
	}

	uploader, err := cloud.New(cloud.Config{
		CloudName: cfg.CloudinaryCloudName,
		APIKey:    cfg.CloudinaryAPIKey,
		APISecret: cfg.CloudinaryAPISecret,
		Folder:    cfg.CloudinaryUploadFolder,
	}, logger)
	if err != nil {
		log.Fatalf("failed to create cloudinary client: %v", err)
	}

	var mailer service.Mailer
	if cfg.SendgridAPIKey != "" {
		mailer, err = mail.New(mail.Config{
			APIKey:    cfg.SendgridAPIKey,
			FromName:  cfg.AppName,
			FromEmail: cfg.EmailFrom,
		}, logger)
		if err != nil {
			log.Fatalf("failed to create sendgrid client: %v", err)
		}
	} else {
		logger.Warn().Msg("sendgrid api key not configured, email channel disabled")
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	userRepo := repository.NewUserRepository(db)
	proposalRepo := repository.NewProposalRepository(db)
	activityRepo := repository.NewActivityRepository(db)
	evidenceRepo := repository.NewEvidenceRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	prerequisiteRepo := repository.NewPrerequisiteRepository(db)
	deliverableRepo := repository.NewDeliverableRepository(db)
	defenseRepo := repository.NewDefenseRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	notificationService := service.NewNotificationService(notificationRepo, redisClient, notificationChannelBase, natsConn, validate, logger)
	summaryService := service.NewSummaryService(proposalRepo, evidenceRepo, redisClient, cfg.SummaryCacheTTL, logger)
	evidenceService := service.NewEvidenceService(evidenceRepo, activityRepo, commentRepo, uploader, notificationService, summaryService, validate, cfg.TutorWeight, cfg.InstructorWeight, logger)
	activityService := service.NewActivityService(activityRepo, evidenceRepo, proposalRepo, summaryService, validate, cfg.TutorWeight, cfg.InstructorWeight, logger)
	progressionService := service.NewProgressionService(prerequisiteRepo, proposalRepo, evidenceRepo, deliverableRepo, uploader, notificationService, validate, logger)
	defenseService := service.NewDefenseService(defenseRepo, proposalRepo, userRepo, progressionService, notificationService, mailer, validate, logger)

	activityHandler := handler.NewActivityHandler(activityService, logger)
	evidenceHandler := handler.NewEvidenceHandler(evidenceService, summaryService, logger)
	progressionHandler := handler.NewProgressionHandler(progressionService, logger)
	defenseHandler := handler.NewDefenseHandler(defenseService, logger)
	notificationHandler := handler.NewNotificationHandler(notificationService, logger, 30*time.Second)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		ActivityHandler:     activityHandler,
		EvidenceHandler:     evidenceHandler,
		ProgressionHandler:  progressionHandler,
		DefenseHandler:      defenseHandler,
		NotificationHandler: notificationHandler,
		JWTMiddleware:       middleware.JWTProtected(cfg.JWTSecret),
	})

	runCtx, stopConsumers := context.WithCancel(context.Background())
	defer stopConsumers()
	notificationService.Start(runCtx)

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
