package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"curestat/internal/config"
	"curestat/internal/logger"
	"curestat/internal/sheets"
	"curestat/internal/trends"
)

var trendsCmd = &cobra.Command{
	Use:   "trends",
	Short: "Aggregate disease outbreak counts from the public dataset",
	Long: `Fetch the disease outbreak dataset, sum the outbreak counts per disease and
print the totals, highest first.

Any count that is not a number aborts the run with the offending record,
field and value; no partial totals are produced.

Environment variables:
  TRENDS_API_URL - Dataset endpoint (default: data.gov.in outbreak resource)
  TRENDS_API_KEY - data.gov.in API key
  TRENDS_KEY_FIELD, TRENDS_VALUE_FIELD - Field names to group by and sum
  GOOGLE_SHEET_URL - Spreadsheet for --export`,
	Example: `  # Print all diseases
  curestat trends

  # Top 10 diseases to a file
  curestat trends --limit 10 -o trends.json

  # Keep first-seen order for equal totals
  curestat trends --tie-break first-seen

  # Append the totals to a Google Sheet
  curestat trends --export --worksheet Weekly`,
	Args: cobra.NoArgs,
	RunE: runTrends,
}

func init() {
	rootCmd.AddCommand(trendsCmd)

	trendsCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	trendsCmd.Flags().Int("limit", 0, "Only output the top N diseases (0 = all)")
	trendsCmd.Flags().Int("timeout", 60, "Fetch timeout in seconds")
	trendsCmd.Flags().String("tie-break", "", "Order of equal totals: key or first-seen (default: TRENDS_TIE_BREAK)")
	trendsCmd.Flags().Bool("export", false, "Append the totals to a Google Sheet")
	trendsCmd.Flags().String("sheet-url", "", "Google Sheet URL (default: GOOGLE_SHEET_URL)")
	trendsCmd.Flags().String("worksheet", "", "Worksheet name (default: GOOGLE_SHEET_WORKSHEET)")
}

func runTrends(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("trends")

	outputPath, _ := cmd.Flags().GetString("output")
	limit, _ := cmd.Flags().GetInt("limit")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")
	tieBreak, _ := cmd.Flags().GetString("tie-break")
	export, _ := cmd.Flags().GetBool("export")
	sheetURL, _ := cmd.Flags().GetString("sheet-url")
	worksheet, _ := cmd.Flags().GetString("worksheet")

	if limit < 0 {
		return fmt.Errorf("--limit must not be negative")
	}

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}
	if tieBreak != "" {
		cfg.TrendsTieBreak = tieBreak
	}
	if sheetURL == "" {
		sheetURL = cfg.GoogleSheetURL
	} else {
		export = true
	}
	if worksheet == "" {
		worksheet = cfg.GoogleSheetWorksheet
	}
	if export && sheetURL == "" {
		return fmt.Errorf("--export needs --sheet-url or GOOGLE_SHEET_URL")
	}

	log.Info().
		Str("source", cfg.TrendsAPIURL).
		Int("limit", limit).
		Str("tie_break", cfg.TrendsTieBreak).
		Bool("export", export).
		Msg("Starting trend aggregation")

	svc, err := newTrendService(cfg, nil)
	if err != nil {
		return err
	}

	ctx, cancel := createContextWithTimeout(time.Duration(timeoutSecs)*time.Second, log)
	defer cancel()

	records, err := svc.Trends(ctx)
	if err != nil {
		return handleTrendsError(err, log)
	}
	records = trends.Top(records, limit)

	if export {
		exporter, err := sheets.NewTrendExporter(ctx, sheetURL)
		if err != nil {
			log.Error().Err(err).Msg("Failed to create Google Sheets exporter")
			return fmt.Errorf("failed to connect to Google Sheets: %w", err)
		}
		if err := exporter.WriteTrends(ctx, records, worksheet); err != nil {
			log.Error().Err(err).Str("worksheet", worksheet).Msg("Failed to export trends")
			return fmt.Errorf("failed to export trends to Google Sheets: %w", err)
		}
	}

	return writeJSON(cmd.OutOrStdout(), records, outputPath, log)
}

// newTrendService wires the HTTP source and aggregator from configuration. A nil
// breaker disables circuit breaking.
func newTrendService(cfg *config.Config, breaker trends.SourceOption) (*trends.Service, error) {
	aggregator, err := cfg.Aggregator()
	if err != nil {
		return nil, fmt.Errorf("invalid trend configuration: %w", err)
	}

	opts := []trends.SourceOption{
		trends.WithAPIKey(cfg.TrendsAPIKey),
		trends.WithLimit(cfg.TrendsLimit),
	}
	if breaker != nil {
		opts = append(opts, breaker)
	}

	client := &http.Client{Timeout: cfg.HTTPTimeout}
	source := trends.NewHTTPSource(client, cfg.TrendsAPIURL, opts...)
	return trends.NewService(source, aggregator), nil
}

// handleTrendsError provides user-friendly error messages for trend failures
func handleTrendsError(err error, log zerolog.Logger) error {
	log.Error().Err(err).Msg("Trend aggregation failed")

	var coercionErr *trends.CoercionError
	var fieldErr *trends.FieldError

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("trend source timed out. Try increasing --timeout")
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("trend aggregation was canceled")
	case errors.As(err, &coercionErr):
		return fmt.Errorf("record %d has a non-numeric %s value %q; no totals were produced",
			coercionErr.Index, coercionErr.Field, fmt.Sprint(coercionErr.Value))
	case errors.As(err, &fieldErr):
		return fmt.Errorf("record %d has no %s field; check TRENDS_KEY_FIELD", fieldErr.Index, fieldErr.Field)
	case errors.Is(err, trends.ErrSourceUnavailable):
		return fmt.Errorf("trend source unavailable. Check TRENDS_API_URL, TRENDS_API_KEY and your network connection: %w", err)
	case errors.Is(err, trends.ErrMalformedPayload):
		return fmt.Errorf("trend source returned an unexpected payload: %w", err)
	default:
		return fmt.Errorf("trend aggregation failed: %w", err)
	}
}
