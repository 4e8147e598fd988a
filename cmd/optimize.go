package main

import (
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/sells-group/pricing-engine/internal/model"
	"github.com/sells-group/pricing-engine/internal/optimize"
)

var (
	optimizeContentType string
	optimizeSegment     string
	optimizePrice       string
	optimizeCurrency    string
)

var optimizeCmd = &cobra.Command{
	Use:       "optimize <revenue|conversion|market-share>",
	Short:     "Recommend an optimal price point for a strategy",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"revenue", "conversion", "market-share"},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		amount, err := decimal.NewFromString(optimizePrice)
		if err != nil {
			return eris.Wrap(err, "parse current price")
		}
		current := model.Money{Amount: amount, Currency: optimizeCurrency}
		if err := current.Validate(); err != nil {
			return err
		}

		var rec *optimize.Recommendation
		switch args[0] {
		case "revenue":
			rec, err = env.Optimizer.ForRevenue(ctx, optimizeContentType, current)
		case "conversion":
			rec, err = env.Optimizer.ForConversion(ctx, optimizeContentType, optimizeSegment, current)
		case "market-share":
			rec, err = env.Optimizer.ForMarketShare(ctx, optimizeContentType, current)
		default:
			return eris.Errorf("unknown strategy: %s", args[0])
		}
		if err != nil {
			return err
		}
		return printJSON(rec)
	},
}

func init() {
	optimizeCmd.Flags().StringVar(&optimizeContentType, "content-type", "", "content type (required)")
	optimizeCmd.Flags().StringVar(&optimizeSegment, "segment", "default", "market segment")
	optimizeCmd.Flags().StringVar(&optimizePrice, "current-price", "", "current price as decimal string (required)")
	optimizeCmd.Flags().StringVar(&optimizeCurrency, "currency", "USD", "ISO 4217 currency code")
	_ = optimizeCmd.MarkFlagRequired("content-type")
	_ = optimizeCmd.MarkFlagRequired("current-price")

	rootCmd.AddCommand(optimizeCmd)
}
