package main

import (
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/pricing-engine/internal/model"
)

var seedFile string

// seedFixture is the YAML shape accepted by the seed command.
type seedFixture struct {
	Models []struct {
		ContentType string `yaml:"content_type"`
		BasePrice   string `yaml:"base_price"`
		Currency    string `yaml:"currency"`
		PerWord     bool   `yaml:"per_word"`
	} `yaml:"models"`
	MarketData []struct {
		ContentType string  `yaml:"content_type"`
		Segment     string  `yaml:"segment"`
		AvgPrice    string  `yaml:"avg_price"`
		MedianPrice string  `yaml:"median_price"`
		MinPrice    string  `yaml:"min_price"`
		MaxPrice    string  `yaml:"max_price"`
		Currency    string  `yaml:"currency"`
		SampleSize  int     `yaml:"sample_size"`
		Demand      string  `yaml:"demand"`
		Trend       string  `yaml:"trend"`
		Confidence  float64 `yaml:"confidence"`
	} `yaml:"market_data"`
	Clients []struct {
		ClientID           string  `yaml:"client_id"`
		Tier               string  `yaml:"tier"`
		Risk               string  `yaml:"risk"`
		Terms              string  `yaml:"terms"`
		LoyaltyDiscountPct float64 `yaml:"loyalty_discount_pct"`
		CreditLimit        string  `yaml:"credit_limit"`
		Currency           string  `yaml:"currency"`
	} `yaml:"clients"`
}

func seedMoney(raw, currency string) (model.Money, error) {
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return model.Money{}, eris.Wrapf(err, "parse amount %q", raw)
	}
	m := model.Money{Amount: amount, Currency: currency}
	return m, m.Validate()
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load pricing models, market data, and client profiles from a YAML fixture",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		raw, err := os.ReadFile(seedFile)
		if err != nil {
			return eris.Wrapf(err, "read fixture %s", seedFile)
		}
		var fx seedFixture
		if err := yaml.Unmarshal(raw, &fx); err != nil {
			return eris.Wrapf(err, "parse fixture %s", seedFile)
		}

		env, err := initEnv(ctx, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		now := time.Now().UTC()
		for _, m := range fx.Models {
			price, err := seedMoney(m.BasePrice, m.Currency)
			if err != nil {
				return eris.Wrapf(err, "model %s", m.ContentType)
			}
			if _, err := env.Store.CreatePricingModel(ctx, model.PricingModel{
				ID:          uuid.NewString(),
				ContentType: m.ContentType,
				BasePrice:   price,
				PerWord:     m.PerWord,
			}); err != nil {
				return eris.Wrapf(err, "seed model %s", m.ContentType)
			}
		}

		for _, md := range fx.MarketData {
			row := model.MarketData{
				ContentType: md.ContentType,
				Segment:     md.Segment,
				SampleSize:  md.SampleSize,
				Demand:      model.DemandLevel(md.Demand),
				Trend:       model.TrendDirection(md.Trend),
				Confidence:  md.Confidence,
				CollectedAt: now,
			}
			for _, p := range []struct {
				dst *model.Money
				raw string
			}{
				{&row.AveragePrice, md.AvgPrice}, {&row.MedianPrice, md.MedianPrice},
				{&row.MinPrice, md.MinPrice}, {&row.MaxPrice, md.MaxPrice},
			} {
				if *p.dst, err = seedMoney(p.raw, md.Currency); err != nil {
					return eris.Wrapf(err, "market data %s/%s", md.ContentType, md.Segment)
				}
			}
			if err := env.Store.UpsertMarketData(ctx, row); err != nil {
				return eris.Wrapf(err, "seed market data %s/%s", md.ContentType, md.Segment)
			}
		}

		for _, c := range fx.Clients {
			limit, err := seedMoney(c.CreditLimit, c.Currency)
			if err != nil {
				return eris.Wrapf(err, "client %s", c.ClientID)
			}
			if err := env.Store.UpsertClientProfile(ctx, model.ClientPricingProfile{
				ClientID:           c.ClientID,
				Tier:               model.ClientTier(c.Tier),
				Risk:               model.RiskLevel(c.Risk),
				Terms:              model.PaymentTerms(c.Terms),
				LoyaltyDiscountPct: c.LoyaltyDiscountPct,
				CreditLimit:        limit,
				UpdatedAt:          now,
			}); err != nil {
				return eris.Wrapf(err, "seed client %s", c.ClientID)
			}
		}

		zap.L().Info("fixture loaded",
			zap.String("file", seedFile),
			zap.Int("models", len(fx.Models)),
			zap.Int("market_rows", len(fx.MarketData)),
			zap.Int("clients", len(fx.Clients)),
		)
		return nil
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedFile, "file", "", "path to YAML fixture (required)")
	_ = seedCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(seedCmd)
}
