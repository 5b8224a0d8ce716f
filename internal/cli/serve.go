package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/local/pagepress/internal/dispatcher"
	"github.com/local/pagepress/internal/limiter"
	"github.com/local/pagepress/internal/metrics"
	"github.com/local/pagepress/internal/queue"
	"github.com/local/pagepress/internal/server"
	"github.com/local/pagepress/internal/storage"
	"github.com/local/pagepress/internal/store"
)

var serveNoWorker bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the compose job service (HTTP API + workers)",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveNoWorker, "no-worker", false, "serve the API without dispatcher workers")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	metrics.Init()

	rq, err := queue.NewRedisQueue(cfg.Queue.RedisURL, cfg.Queue.Stream, cfg.Queue.Group, cfg.Queue.PollInterval)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer rq.Close()

	rs, err := store.NewRedisStatus(cfg.Queue.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init redis status store")
	}
	defer rs.Close()

	reports, err := store.NewReportStore(cfg.Queue.RedisURL, cfg.Worker.ReportTTL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init report store")
	}
	defer reports.Close()

	srv := server.New(cfg, server.Dependencies{Queue: rq, Status: rs, Reports: reports})
	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)

	if !serveNoWorker {
		guard, err := limiter.New(limiter.Options{RedisURL: cfg.Queue.RedisURL})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to init limiter")
		}
		defer guard.Close()

		var uploader *storage.S3Client
		if cfg.Storage.Bucket != "" {
			uploader, err = storage.New(cmd.Context(), storage.Options{
				Bucket:    cfg.Storage.Bucket,
				Region:    cfg.Storage.Region,
				AccessKey: cfg.Storage.AccessKey,
				SecretKey: cfg.Storage.SecretKey,
			})
			if err != nil {
				log.Error().Err(err).Msg("s3 unavailable, uploads disabled")
				uploader = nil
			}
		}

		disp := dispatcher.New(cfg, dispatcher.Dependencies{
			Queue:    rq,
			Status:   rs,
			Reports:  reports,
			Guard:    guard,
			Uploader: uploader,
		})
		disp.Start()
		defer disp.Stop(context.Background())
	}

	httpSrv := &http.Server{Addr: ":" + cfg.Server.Port, Handler: mux}
	go func() {
		log.Info().Msgf("HTTP server listening on :%s", cfg.Server.Port)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(ctx)
	log.Info().Msg("shutdown complete")
	return nil
}
