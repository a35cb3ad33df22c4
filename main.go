package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"

	"loancrm/config"
	"loancrm/consumer"
	"loancrm/handlers"
	"loancrm/intake"
	"loancrm/middleware"
	"loancrm/models"
	"loancrm/monitoring"
	"loancrm/utils"
)

func main() {
	logger := log.New(os.Stdout, "LOANCRM: ", log.LstdFlags|log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	if cfg.SentryDSN != "" {
		if err := utils.InitSentry(cfg.SentryDSN, cfg.AppEnv); err != nil {
			logger.Printf("Sentry disabled: %v", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	monitoring.Init()

	// Postgres and Redis are hard dependencies; retry so the service
	// survives compose-style startup ordering.
	maxRetries := 5
	retryDelay := 3 * time.Second

	var repo *models.PostgresRepository
	for i := 0; i < maxRetries; i++ {
		repo, err = models.NewPostgresRepository(cfg.DSN())
		if err == nil {
			break
		}
		logger.Printf("Attempt %d: Failed to connect to Postgres: %v", i+1, err)
		if i < maxRetries-1 {
			time.Sleep(retryDelay)
		}
	}
	if err != nil {
		logger.Fatalf("Failed to initialize Postgres after %d attempts: %v", maxRetries, err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			logger.Printf("Error closing Postgres connection: %v", err)
		}
	}()

	var redisClient utils.RedisClient
	for i := 0; i < maxRetries; i++ {
		redisClient, err = utils.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword)
		if err == nil {
			break
		}
		logger.Printf("Attempt %d: Failed to connect to Redis: %v", i+1, err)
		if i < maxRetries-1 {
			time.Sleep(retryDelay)
		}
	}
	if err != nil {
		logger.Fatalf("Failed to initialize Redis after %d attempts: %v", maxRetries, err)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Printf("Error closing Redis connection: %v", err)
		}
	}()

	// Kafka and Elasticsearch are optional: without them the service
	// runs with eventing and search degraded.
	var kafkaProducer utils.KafkaProducer
	if cfg.KafkaBroker != "" {
		kafkaProducer, err = utils.NewKafkaProducer(cfg.KafkaBroker)
		if err != nil {
			logger.Printf("Kafka disabled: %v", err)
			kafkaProducer = nil
		} else {
			defer kafkaProducer.Close()
		}
	}

	var esClient utils.ElasticsearchClient
	if cfg.ElasticsearchURL != "" {
		esClient, err = utils.NewElasticsearchClient(cfg.ElasticsearchURL)
		if err != nil {
			logger.Printf("Elasticsearch disabled: %v", err)
			esClient = nil
		}
	}

	processor := intake.NewProcessor(repo, cfg.IdentitySectionMarker)

	clientHandler := handlers.NewClientHandler(repo, kafkaProducer, esClient)
	questionnaireHandler := handlers.NewQuestionnaireHandler(repo, processor, redisClient, kafkaProducer)
	responseHandler := handlers.NewResponseHandler(repo)
	authHandler := handlers.NewAuthHandler(repo, redisClient)

	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	router.Use(middleware.SentryMiddleware())
	router.Use(middleware.PrometheusMetrics())
	router.Use(middleware.ErrorHandler())

	router.GET("/metrics", gin.WrapH(monitoring.Handler()))

	api := router.Group("/api/v1")
	{
		api.GET("/health", func(c *gin.Context) {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()

			details := gin.H{"postgres": "available", "redis": "available"}
			status := http.StatusOK

			if err := repo.Ping(ctx); err != nil {
				details["postgres"] = "unavailable"
				status = http.StatusServiceUnavailable
			}
			if err := redisClient.SetToCache(ctx, "healthcheck", "ping", 10*time.Second); err != nil {
				details["redis"] = "unavailable"
				status = http.StatusServiceUnavailable
			}

			if status != http.StatusOK {
				c.JSON(status, gin.H{"status": "degraded", "details": details})
				return
			}
			c.JSON(http.StatusOK, gin.H{"status": "ok", "details": details})
		})

		auth := api.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.POST("/logout", authHandler.Logout)
		}

		// Anonymous intake surface.
		public := api.Group("/public/questionnaires")
		{
			public.GET("/:publicId", questionnaireHandler.GetPublicQuestionnaire)
			public.POST("/:publicId/submit", questionnaireHandler.SubmitQuestionnaire)
		}

		// Advisor surface, session-gated.
		advisor := api.Group("")
		advisor.Use(middleware.RequireSession(redisClient))
		{
			clients := advisor.Group("/clients")
			{
				clients.GET("", clientHandler.ListClients)
				clients.POST("", middleware.RequireRole(models.RoleAdmin), clientHandler.CreateClient)
				clients.GET("/search", clientHandler.SearchClients)
				clients.GET("/:id", clientHandler.GetClient)
				clients.PUT("/:id", clientHandler.UpdateClient)
				clients.DELETE("/:id", clientHandler.DeleteClient)
			}

			questionnaires := advisor.Group("/questionnaires")
			{
				questionnaires.POST("", questionnaireHandler.CreateQuestionnaire)
				questionnaires.GET("", questionnaireHandler.ListQuestionnaires)
				questionnaires.GET("/:id", questionnaireHandler.GetQuestionnaire)
				questionnaires.POST("/:id/publish", questionnaireHandler.PublishQuestionnaire)
				questionnaires.GET("/:id/responses", responseHandler.ListResponses)
			}

			advisor.GET("/users", middleware.RequireRole(models.RoleAdmin), authHandler.ListUsers)
		}
	}

	if kafkaProducer != nil && cfg.KafkaBroker != "" {
		eventConsumer := consumer.NewIntakeConsumer(cfg.KafkaBroker, repo, redisClient, esClient)
		consumerCtx, cancelConsumer := context.WithCancel(context.Background())
		defer cancelConsumer()
		eventConsumer.Start(consumerCtx)
		defer eventConsumer.Stop()
	}

	logger.Printf("Server is running on port %s", cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, router); err != nil {
		logger.Fatalf("Server error: %v", err)
	}
}
