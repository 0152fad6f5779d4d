package main

import (
	"context"
	"inboxlens/internal/api"
	"inboxlens/internal/backends"
	"inboxlens/internal/cache"
	"inboxlens/internal/coalesce"
	"inboxlens/internal/config"
	"inboxlens/internal/corrections"
	"inboxlens/internal/pub"
	"inboxlens/internal/threaddata"
	"inboxlens/internal/types"
	"inboxlens/internal/upstream"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"inboxlens/internal/ports"
)

func main() {
	// Load environment variables
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	err := godotenv.Load(envFile)
	if err != nil {
		log.Info("The .env file not found.")
	}

	settings, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load settings: %v", err)
	}

	cacheStore, err := backends.CacheBackendFromEnv()
	if err != nil {
		log.Fatalf("Failed to initialize cache store: %v", err)
	}

	notifier, err := notifierFromSettings(settings)
	if err != nil {
		log.Fatalf("Failed to initialize notifier: %v", err)
	}

	client := upstream.NewClient(
		settings.Upstream.BaseURL,
		settings.Upstream.ClientID,
		settings.Upstream.ClientKey,
	)

	timed := cache.NewTimed(cacheStore, time.Duration(settings.CacheTTLSeconds)*time.Second)
	service := threaddata.NewService(timed, client, settings.RecordsFilter)
	coalescer := coalesce.New(
		time.Duration(settings.DebounceWindowMS)*time.Millisecond,
		settings.MaxPending,
		service.GetData,
	)
	batcher := corrections.NewBatcher(client, settings.CollapseEdits)

	handler := api.NewHandler(coalescer, service, batcher, notifier)
	stopChan, doneChan := api.RunServerInterruptible(settings.Port, handler)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	// Last chance for anything the host never flushed.
	if batcher.HasPendingCorrections() {
		batcher.SendBeaconBatch()
	}
	stopChan <- struct{}{}
	if err := <-doneChan; err != nil {
		log.WithError(err).Error("server exited with error")
	}
}

func notifierFromSettings(settings config.Settings) (ports.Notifier, error) {
	switch settings.Notifier.Kind {
	case "sns":
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background())
		if err != nil {
			return nil, err
		}
		return pub.NewSNS(sns.NewFromConfig(awsCfg), settings.Notifier.SNSArn), nil
	case "webhook":
		return pub.NewWebhook(settings.Notifier.WebhookURL), nil
	}
	return nil, types.Err(types.ErrInvalidBackend, nil, "unknown notifier kind %q", settings.Notifier.Kind)
}
