package main

import (
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/pricing-engine/internal/model"
)

var modelCmd = &cobra.Command{
	Use:   "model",
	Short: "Manage pricing models",
}

var (
	modelContentType string
	modelBasePrice   string
	modelCurrency    string
	modelPerWord     bool
)

var modelCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new pricing model version",
	Long:  "Creates a new active version for the content type and deactivates prior versions.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		amount, err := decimal.NewFromString(modelBasePrice)
		if err != nil {
			return eris.Wrap(err, "parse base price")
		}
		price := model.Money{Amount: amount, Currency: modelCurrency}
		if err := price.Validate(); err != nil {
			return err
		}

		created, err := env.Store.CreatePricingModel(ctx, model.PricingModel{
			ID:          uuid.NewString(),
			ContentType: modelContentType,
			BasePrice:   price,
			PerWord:     modelPerWord,
		})
		if err != nil {
			return err
		}

		zap.L().Info("pricing model created",
			zap.String("content_type", created.ContentType),
			zap.Int("version", created.Version),
		)
		return printJSON(created)
	},
}

func init() {
	modelCreateCmd.Flags().StringVar(&modelContentType, "content-type", "", "content type (required)")
	modelCreateCmd.Flags().StringVar(&modelBasePrice, "base-price", "", "base price as decimal string (required)")
	modelCreateCmd.Flags().StringVar(&modelCurrency, "currency", "USD", "ISO 4217 currency code")
	modelCreateCmd.Flags().BoolVar(&modelPerWord, "per-word", false, "base price is per word")
	_ = modelCreateCmd.MarkFlagRequired("content-type")
	_ = modelCreateCmd.MarkFlagRequired("base-price")

	modelCmd.AddCommand(modelCreateCmd)
	rootCmd.AddCommand(modelCmd)
}
