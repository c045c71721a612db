// cmd/server/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/streadway/amqp"

	"github.com/wablast/wablast-backend/internal/controller"
	"github.com/wablast/wablast-backend/internal/db"
	"github.com/wablast/wablast-backend/internal/progress"
	"github.com/wablast/wablast-backend/internal/queue"
	"github.com/wablast/wablast-backend/internal/repository"
	"github.com/wablast/wablast-backend/internal/retry"
	"github.com/wablast/wablast-backend/internal/rewrite"
	"github.com/wablast/wablast-backend/internal/scheduler"
	"github.com/wablast/wablast-backend/internal/service"
	"github.com/wablast/wablast-backend/internal/transport"
)

func main() {
	// Load .env
	if err := godotenv.Load(); err != nil {
		log.Info().Msg("⚠️ No .env file found, relying on OS environment variables")
	}
	setupLogging()

	conn, err := db.Open()
	if err != nil {
		log.Fatal().Err(err).Msg("database unavailable")
	}

	campaignRepo := &repository.CampaignRepository{DB: conn}
	recipientRepo := &repository.RecipientRepository{DB: conn}
	variationRepo := &repository.VariationRepository{DB: conn}
	suppressionRepo := &repository.SuppressionRepository{DB: conn}

	rewriteClient := rewrite.NewClient(
		getenv("REWRITE_API_URL", "https://api.openai.com"),
		os.Getenv("REWRITE_API_KEY"),
		os.Getenv("REWRITE_MODEL"),
		30*time.Second,
	)
	whatsapp := transport.NewWhatsAppClient(
		os.Getenv("WHATSAPP_ACCESS_TOKEN"),
		os.Getenv("WHATSAPP_PHONE_NUMBER_ID"),
		30*time.Second,
	)

	variationService := service.NewVariationService(variationRepo, rewriteClient)
	campaignService := &service.CampaignService{
		Campaigns:  campaignRepo,
		Recipients: recipientRepo,
		Variations: variationRepo,
	}
	ingestService := &service.IngestService{
		Campaigns:  campaignRepo,
		Recipients: recipientRepo,
	}
	dispatcher := &service.Dispatcher{
		Campaigns:    campaignRepo,
		Recipients:   recipientRepo,
		Suppressions: suppressionRepo,
		Variations:   variationService,
		Transport:    whatsapp,
		Retry:        retry.DefaultConfig(),
		Config:       service.DispatchConfigFromEnv(),
	}

	var progressStore *progress.Store
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		progressStore = progress.NewStore(redis.NewClient(&redis.Options{Addr: addr}), 24*time.Hour)
		log.Info().Str("addr", addr).Msg("run progress store enabled")
	}

	// Async dispatch goes through RabbitMQ when configured; otherwise an
	// in-memory queue runs jobs in this process.
	var jobQueue queue.Queue
	if amqpURL := os.Getenv("AMQP_URL"); amqpURL != "" {
		amqpConn, err := amqp.Dial(amqpURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
		}
		defer amqpConn.Close()
		jobQueue, err = queue.NewAMQPQueue(amqpConn)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open RabbitMQ channel")
		}
		log.Info().Msg("dispatch jobs will be published to RabbitMQ")
	} else {
		memQueue := queue.NewInMemoryQueue()
		memQueue.Subscribe(queue.DispatchTopic, func(payload any) error {
			job, ok := payload.(queue.RunJob)
			if !ok {
				return nil
			}
			return runJob(dispatcher, progressStore, job)
		})
		jobQueue = memQueue
		log.Info().Msg("no AMQP_URL set, dispatch jobs run in-process")
	}

	campaignScheduler := scheduler.New(campaignRepo, jobQueue)
	if err := campaignScheduler.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start scheduler")
	}
	defer campaignScheduler.Stop()

	campaignController := &controller.CampaignController{
		CampaignService:  campaignService,
		IngestService:    ingestService,
		VariationService: variationService,
		Variations:       variationRepo,
	}
	dispatchController := &controller.DispatchController{
		Dispatcher: dispatcher,
		Queue:      jobQueue,
		Progress:   progressStore,
	}
	suppressionController := &controller.SuppressionController{
		Suppressions: suppressionRepo,
	}

	r := chi.NewRouter()

	// Campaign routes
	r.Post("/campaigns", campaignController.CreateCampaign)
	r.Get("/campaigns", campaignController.ListCampaigns)
	r.Get("/campaigns/{id}", campaignController.GetCampaign)
	r.Post("/campaigns/{id}/contacts", campaignController.IngestContacts)
	r.Post("/campaigns/{id}/preview", campaignController.Preview)
	r.Post("/campaigns/{id}/variations", campaignController.GenerateVariation)
	r.Get("/campaigns/{id}/variations", campaignController.ListVariations)
	r.Post("/campaigns/{id}/variations/prewarm", campaignController.PreWarmVariations)
	r.Post("/campaigns/{id}/variations/{number}/select", campaignController.SelectVariation)
	r.Post("/campaigns/{id}/dispatch", dispatchController.Dispatch)
	r.Get("/dispatch/runs/{runID}", dispatchController.RunProgress)

	// Suppression routes
	r.Post("/suppressions", suppressionController.Add)
	r.Get("/suppressions", suppressionController.List)
	r.Delete("/suppressions/{phone}", suppressionController.Remove)

	port := getenv("PORT", "8080")
	log.Info().Str("port", port).Msg("🚀 Server running")
	if err := http.ListenAndServe(":"+port, r); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func runJob(dispatcher *service.Dispatcher, store *progress.Store, job queue.RunJob) error {
	ctx := context.Background()
	outcomes := make(chan service.RecipientOutcome, 64)
	done := make(chan struct{})
	go func() {
		store.Consume(ctx, job.RunID, job.CampaignID, outcomes)
		close(done)
	}()

	_, err := dispatcher.RunStream(ctx, job.CampaignID, job.SeedText, outcomes)
	close(outcomes)
	<-done
	return err
}

func setupLogging() {
	level, err := zerolog.ParseLevel(getenv("LOG_LEVEL", "info"))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if getenv("LOG_FORMAT", "console") == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
