package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"curestat/internal/logger"
	"curestat/internal/ocr"
	"curestat/internal/report"
	"curestat/internal/server"
	"curestat/internal/trends"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve report analysis and disease trends over HTTP",
	Long: `Start the HTTP API.

Routes:
  GET  /health               Liveness check
  GET  /metrics              Prometheus metrics
  GET  /api/disease-trends   Aggregated outbreak totals (?limit=n)
  POST /api/analyze-report   Multipart upload, field "file"
  POST /api/analyze-text     JSON body {"text": "..."}

Trend totals are refreshed in the background every TRENDS_REFRESH_INTERVAL
(0 fetches on every request). If the OCR backend cannot be created the server
still starts and report uploads answer 503.`,
	Example: `  # Listen on the configured address (default 127.0.0.1:5001)
  curestat serve

  # Listen on all interfaces
  curestat serve --address 0.0.0.0 --port 8080`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("address", "", "Listen address (default: SERVER_ADDRESS)")
	serveCmd.Flags().Int("port", 0, "Listen port (default: SERVER_PORT)")
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("serve")

	address, _ := cmd.Flags().GetString("address")
	port, _ := cmd.Flags().GetInt("port")

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}

	srvConfig := cfg.Server()
	if address != "" {
		srvConfig.Address = address
	}
	if port != 0 {
		srvConfig.Port = port
	}

	engine, err := newEngine(cfg.VocabularyFile, cfg.Vocabulary, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var ocrService ocr.OCRService
	if svc, err := createOCRService(ctx, cfg, log); err != nil {
		log.Warn().Err(err).Msg("OCR backend unavailable, report uploads are disabled")
	} else {
		defer svc.Close()
		ocrService = svc
	}

	breaker := trends.WithBreaker(trends.NewBreaker("trends-source", 3, time.Minute))
	trendService, err := newTrendService(cfg, breaker)
	if err != nil {
		return err
	}

	var snapshot server.TrendSnapshot
	if cfg.TrendsRefreshInterval > 0 {
		cache := trends.NewCache(trendService, cfg.TrendsRefreshInterval, cfg.HTTPTimeout)
		if err := cache.Start(); err != nil {
			return err
		}
		defer cache.Stop()
		snapshot = cache
	}

	srv := server.New(srvConfig, report.NewService(ocrService, engine), trendService, snapshot)
	return srv.Run(ctx)
}
