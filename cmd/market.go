package main

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/pricing-engine/internal/db"
	"github.com/sells-group/pricing-engine/internal/model"
	"github.com/sells-group/pricing-engine/internal/store"
)

var marketCmd = &cobra.Command{
	Use:   "market",
	Short: "Manage market intelligence data",
}

var (
	marketContentType string
	marketSegment     string
	marketAvg         string
	marketMedian      string
	marketMin         string
	marketMax         string
	marketCurrency    string
	marketSamples     int
	marketDemand      string
	marketTrend       string
	marketConfidence  float64
)

var marketSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Record a market observation",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		md, err := buildMarketData([]string{
			marketContentType, marketSegment, marketAvg, marketMedian, marketMin, marketMax,
			marketCurrency, strconv.Itoa(marketSamples), marketDemand, marketTrend,
			strconv.FormatFloat(marketConfidence, 'f', -1, 64),
		})
		if err != nil {
			return err
		}

		if err := env.Store.UpsertMarketData(ctx, *md); err != nil {
			return err
		}
		zap.L().Info("market data stored",
			zap.String("content_type", md.ContentType),
			zap.String("segment", md.Segment),
		)
		return nil
	},
}

var marketImportPath string

// marketImportCmd bulk-loads observations from CSV. On Postgres the rows
// go through the COPY-based upsert path; on SQLite they are applied one
// at a time.
var marketImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import market observations from CSV",
	Long:  "CSV columns: content_type,segment,avg,median,min,max,currency,sample_size,demand,trend,confidence",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		f, err := os.Open(marketImportPath)
		if err != nil {
			return eris.Wrap(err, "open csv")
		}
		defer f.Close()

		records, err := readMarketCSV(f)
		if err != nil {
			return err
		}

		if pg, ok := env.Store.(*store.PostgresStore); ok {
			n, err := importMarketPostgres(ctx, pg, records)
			if err != nil {
				return err
			}
			zap.L().Info("market import complete", zap.Int64("rows", n), zap.String("path", marketImportPath))
			return nil
		}

		for _, md := range records {
			if err := env.Store.UpsertMarketData(ctx, *md); err != nil {
				return eris.Wrapf(err, "import row %s/%s", md.ContentType, md.Segment)
			}
		}
		zap.L().Info("market import complete", zap.Int("rows", len(records)), zap.String("path", marketImportPath))
		return nil
	},
}

func readMarketCSV(r io.Reader) ([]*model.MarketData, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 11

	var out []*model.MarketData
	header := true
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "read csv")
		}
		if header && rec[0] == "content_type" {
			header = false
			continue
		}
		header = false

		md, err := buildMarketData(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, md)
	}
	return out, nil
}

// buildMarketData parses the 11-column observation record shared by the
// set command flags and the CSV importer.
func buildMarketData(rec []string) (*model.MarketData, error) {
	if rec[0] == "" {
		return nil, eris.New("content_type is required")
	}
	segment := rec[1]
	if segment == "" {
		segment = "default"
	}

	prices := make([]model.Money, 4)
	for i, raw := range rec[2:6] {
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, eris.Wrapf(err, "parse price %q", raw)
		}
		prices[i] = model.Money{Amount: amount, Currency: rec[6]}
		if err := prices[i].Validate(); err != nil {
			return nil, err
		}
	}

	samples, err := strconv.Atoi(rec[7])
	if err != nil {
		return nil, eris.Wrapf(err, "parse sample_size %q", rec[7])
	}
	confidence, err := strconv.ParseFloat(rec[10], 64)
	if err != nil {
		return nil, eris.Wrapf(err, "parse confidence %q", rec[10])
	}

	return &model.MarketData{
		ContentType:  rec[0],
		Segment:      segment,
		AveragePrice: prices[0],
		MedianPrice:  prices[1],
		MinPrice:     prices[2],
		MaxPrice:     prices[3],
		SampleSize:   samples,
		Demand:       model.DemandLevel(rec[8]),
		Trend:        model.TrendDirection(rec[9]),
		Confidence:   confidence,
		CollectedAt:  time.Now().UTC(),
	}, nil
}

func importMarketPostgres(ctx context.Context, pg *store.PostgresStore, records []*model.MarketData) (int64, error) {
	rows := make([][]any, 0, len(records))
	for _, md := range records {
		rows = append(rows, []any{
			md.ContentType, md.Segment,
			md.AveragePrice.Amount.String(), md.MedianPrice.Amount.String(),
			md.MinPrice.Amount.String(), md.MaxPrice.Amount.String(),
			md.AveragePrice.Currency, md.SampleSize, string(md.Demand), string(md.Trend),
			md.Confidence, md.CollectedAt,
		})
	}

	return db.BulkUpsert(ctx, pg.Pool(), db.UpsertSpec{
		Table: "market_data",
		Columns: []string{
			"content_type", "segment", "avg_price", "median_price", "min_price", "max_price",
			"currency", "sample_size", "demand", "trend", "confidence", "collected_at",
		},
		ConflictKeys: []string{"content_type", "segment", "collected_at"},
	}, rows)
}

func init() {
	marketSetCmd.Flags().StringVar(&marketContentType, "content-type", "", "content type (required)")
	marketSetCmd.Flags().StringVar(&marketSegment, "segment", "default", "market segment")
	marketSetCmd.Flags().StringVar(&marketAvg, "avg", "", "average competitor price (required)")
	marketSetCmd.Flags().StringVar(&marketMedian, "median", "", "median competitor price (required)")
	marketSetCmd.Flags().StringVar(&marketMin, "min", "", "minimum competitor price (required)")
	marketSetCmd.Flags().StringVar(&marketMax, "max", "", "maximum competitor price (required)")
	marketSetCmd.Flags().StringVar(&marketCurrency, "currency", "USD", "ISO 4217 currency code")
	marketSetCmd.Flags().IntVar(&marketSamples, "samples", 0, "observation sample size")
	marketSetCmd.Flags().StringVar(&marketDemand, "demand", "moderate", "demand level (very_low|low|moderate|high|very_high)")
	marketSetCmd.Flags().StringVar(&marketTrend, "trend", "stable", "price trend (down|stable|up|volatile)")
	marketSetCmd.Flags().Float64Var(&marketConfidence, "confidence", 0.5, "observation confidence 0..1")
	_ = marketSetCmd.MarkFlagRequired("content-type")
	_ = marketSetCmd.MarkFlagRequired("avg")
	_ = marketSetCmd.MarkFlagRequired("median")
	_ = marketSetCmd.MarkFlagRequired("min")
	_ = marketSetCmd.MarkFlagRequired("max")

	marketImportCmd.Flags().StringVar(&marketImportPath, "csv", "", "path to CSV file (required)")
	_ = marketImportCmd.MarkFlagRequired("csv")

	marketCmd.AddCommand(marketSetCmd)
	marketCmd.AddCommand(marketImportCmd)
	rootCmd.AddCommand(marketCmd)
}
