// cmd/worker/main.go
package main

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/streadway/amqp"

	"github.com/wablast/wablast-backend/internal/db"
	"github.com/wablast/wablast-backend/internal/progress"
	"github.com/wablast/wablast-backend/internal/queue"
	"github.com/wablast/wablast-backend/internal/repository"
	"github.com/wablast/wablast-backend/internal/retry"
	"github.com/wablast/wablast-backend/internal/rewrite"
	"github.com/wablast/wablast-backend/internal/service"
	"github.com/wablast/wablast-backend/internal/transport"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Info().Msg("⚠️ No .env file found, relying on OS environment variables")
	}
	if getenv("LOG_FORMAT", "console") == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

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

	dispatcher := &service.Dispatcher{
		Campaigns:    campaignRepo,
		Recipients:   recipientRepo,
		Suppressions: suppressionRepo,
		Variations:   service.NewVariationService(variationRepo, rewriteClient),
		Transport:    whatsapp,
		Retry:        retry.DefaultConfig(),
		Config:       service.DispatchConfigFromEnv(),
	}

	var progressStore *progress.Store
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		progressStore = progress.NewStore(redis.NewClient(&redis.Options{Addr: addr}), 24*time.Hour)
	}

	amqpURL := os.Getenv("AMQP_URL")
	if amqpURL == "" {
		log.Fatal().Msg("AMQP_URL is required for the dispatch worker")
	}
	amqpConn, err := amqp.Dial(amqpURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer amqpConn.Close()

	ch, err := amqpConn.Channel()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open channel")
	}
	defer ch.Close()

	declared, err := ch.QueueDeclare(
		queue.DispatchTopic,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to declare queue")
	}

	// One run at a time per worker; a dispatch run is long-lived and paced,
	// so parallelism comes from running more worker processes.
	if err := ch.Qos(1, 0, false); err != nil {
		log.Fatal().Err(err).Msg("failed to set QoS")
	}

	msgs, err := ch.Consume(
		declared.Name,
		"",
		false, // manual ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to register consumer")
	}

	log.Info().Msg("🚀 Dispatch worker started, waiting for jobs")

	forever := make(chan bool)
	go func() {
		for msg := range msgs {
			var job queue.RunJob
			if err := json.Unmarshal(msg.Body, &job); err != nil {
				log.Error().Err(err).Msg("discarding malformed job")
				msg.Nack(false, false)
				continue
			}

			log.Info().Str("run_id", job.RunID).Int("campaign_id", job.CampaignID).Msg("dispatch run picked up")
			if err := runJob(dispatcher, progressStore, job); err != nil {
				log.Error().Str("run_id", job.RunID).Err(err).Msg("dispatch run failed")
			}
			msg.Ack(false)
		}
	}()
	<-forever
}

func runJob(dispatcher *service.Dispatcher, store *progress.Store, job queue.RunJob) error {
	ctx := context.Background()
	outcomes := make(chan service.RecipientOutcome, 64)
	done := make(chan struct{})
	go func() {
		store.Consume(ctx, job.RunID, job.CampaignID, outcomes)
		close(done)
	}()

	result, err := dispatcher.RunStream(ctx, job.CampaignID, job.SeedText, outcomes)
	close(outcomes)
	<-done
	if err != nil {
		return err
	}
	log.Info().
		Str("run_id", job.RunID).
		Int("sent", result.Sent).
		Int("failed", result.Failed).
		Msg("dispatch run finished")
	return nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
