package main

import (
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/pricing-engine/internal/model"
)

var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "Manage client pricing profiles",
}

var (
	clientID          string
	clientTier        string
	clientRisk        string
	clientTerms       string
	clientLoyaltyPct  float64
	clientCreditLimit string
	clientCurrency    string
)

var clientSetCmd = &cobra.Command{
	Use:   "set-profile",
	Short: "Create or update a client pricing profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		credit, err := decimal.NewFromString(clientCreditLimit)
		if err != nil {
			return eris.Wrap(err, "parse credit limit")
		}
		limit := model.Money{Amount: credit, Currency: clientCurrency}
		if err := limit.Validate(); err != nil {
			return err
		}

		profile := model.ClientPricingProfile{
			ClientID:           clientID,
			Tier:               model.ClientTier(clientTier),
			Risk:               model.RiskLevel(clientRisk),
			Terms:              model.PaymentTerms(clientTerms),
			LoyaltyDiscountPct: clientLoyaltyPct,
			CreditLimit:        limit,
		}
		if err := env.Store.UpsertClientProfile(ctx, profile); err != nil {
			return err
		}

		zap.L().Info("client profile stored",
			zap.String("client_id", clientID),
			zap.String("tier", clientTier),
		)
		return nil
	},
}

func init() {
	clientSetCmd.Flags().StringVar(&clientID, "client", "", "client ID (required)")
	clientSetCmd.Flags().StringVar(&clientTier, "tier", "basic", "client tier (basic|premium|enterprise|vip)")
	clientSetCmd.Flags().StringVar(&clientRisk, "risk", "low", "risk level (low|medium|high)")
	clientSetCmd.Flags().StringVar(&clientTerms, "terms", "net30", "payment terms (prepaid|net15|net30|net60)")
	clientSetCmd.Flags().Float64Var(&clientLoyaltyPct, "loyalty-pct", 0, "loyalty discount as a fraction, e.g. 0.10")
	clientSetCmd.Flags().StringVar(&clientCreditLimit, "credit-limit", "0", "credit limit as decimal string")
	clientSetCmd.Flags().StringVar(&clientCurrency, "currency", "USD", "ISO 4217 currency code")
	_ = clientSetCmd.MarkFlagRequired("client")

	clientCmd.AddCommand(clientSetCmd)
	rootCmd.AddCommand(clientCmd)
}
