package main

import (
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/pricing-engine/internal/model"
	"github.com/sells-group/pricing-engine/internal/pricing"
	"github.com/sells-group/pricing-engine/internal/store"
)

var quoteCmd = &cobra.Command{
	Use:   "quote",
	Short: "Calculate and manage price quotes",
}

var (
	quoteClient        string
	quoteContentType   string
	quoteSegment       string
	quoteProjectRef    string
	quoteWords         int
	quoteComplexity    string
	quoteResearch      string
	quoteTechnical     string
	quoteRequirements  []string
	quoteDeliveryHours int
	quoteLoad          float64
)

var quoteCalcCmd = &cobra.Command{
	Use:   "calc",
	Short: "Calculate a price quote",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		var spec *model.ContentSpec
		if quoteWords > 0 || quoteComplexity != "" || quoteResearch != "" || quoteTechnical != "" || len(quoteRequirements) > 0 {
			spec = &model.ContentSpec{
				WordCount:           quoteWords,
				Complexity:          model.ComplexityLevel(quoteComplexity),
				Research:            model.ResearchDepth(quoteResearch),
				Technical:           model.TechnicalLevel(quoteTechnical),
				SpecialRequirements: quoteRequirements,
			}
		}

		load := quoteLoad
		if load < 0 {
			load = cfg.Pricing.SystemLoad
		}

		resp, err := env.Engine.CalculatePrice(ctx, pricing.PriceRequest{
			ClientID:    quoteClient,
			ContentType: quoteContentType,
			Segment:     quoteSegment,
			ProjectRef:  quoteProjectRef,
			Spec:        spec,
			Delivery:    time.Duration(quoteDeliveryHours) * time.Hour,
			SystemLoad:  load,
		})
		if err != nil {
			return err
		}
		return printJSON(resp)
	},
}

var quoteListStatus string

var quoteListCmd = &cobra.Command{
	Use:   "list",
	Short: "List quotes",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		quotes, err := env.Store.ListQuotes(ctx, store.QuoteFilter{
			ClientID: quoteClient,
			Status:   model.QuoteStatus(quoteListStatus),
		})
		if err != nil {
			return err
		}
		return printJSON(quotes)
	},
}

func quoteDecisionCmd(use string, to model.QuoteStatus) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <quote-id>",
		Short: use + " a pending quote",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			env, err := initEnv(ctx, "cli")
			if err != nil {
				return err
			}
			defer env.Close()

			if err := env.Store.TransitionQuote(ctx, args[0], model.QuotePending, to); err != nil {
				return err
			}
			zap.L().Info("quote updated", zap.String("quote_id", args[0]), zap.String("status", string(to)))
			return nil
		},
	}
}

var quoteExpireCmd = &cobra.Command{
	Use:   "expire",
	Short: "Expire pending quotes past their validity window",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		n, err := env.Store.ExpireStaleQuotes(ctx)
		if err != nil {
			return err
		}
		zap.L().Info("expiry sweep complete", zap.Int("expired", n))
		return nil
	},
}

func init() {
	quoteCalcCmd.Flags().StringVar(&quoteClient, "client", "", "client ID (required)")
	quoteCalcCmd.Flags().StringVar(&quoteContentType, "content-type", "", "content type (required)")
	quoteCalcCmd.Flags().StringVar(&quoteSegment, "segment", "", "market segment (default from config)")
	quoteCalcCmd.Flags().StringVar(&quoteProjectRef, "project", "", "project reference")
	quoteCalcCmd.Flags().IntVar(&quoteWords, "words", 0, "word count")
	quoteCalcCmd.Flags().StringVar(&quoteComplexity, "complexity", "", "complexity level (basic|standard|advanced|expert)")
	quoteCalcCmd.Flags().StringVar(&quoteResearch, "research", "", "research depth (none|light|moderate|deep)")
	quoteCalcCmd.Flags().StringVar(&quoteTechnical, "technical", "", "technical level (general|intermediate|specialist|expert)")
	quoteCalcCmd.Flags().StringSliceVar(&quoteRequirements, "requirement", nil, "special requirement (repeatable)")
	quoteCalcCmd.Flags().IntVar(&quoteDeliveryHours, "delivery-hours", 0, "requested delivery in hours (0 = standard)")
	quoteCalcCmd.Flags().Float64Var(&quoteLoad, "load", -1, "current system load 0..1 (default from config)")
	_ = quoteCalcCmd.MarkFlagRequired("client")
	_ = quoteCalcCmd.MarkFlagRequired("content-type")

	quoteListCmd.Flags().StringVar(&quoteClient, "client", "", "filter by client ID")
	quoteListCmd.Flags().StringVar(&quoteListStatus, "status", "", "filter by status")

	quoteCmd.AddCommand(quoteCalcCmd)
	quoteCmd.AddCommand(quoteListCmd)
	quoteCmd.AddCommand(quoteDecisionCmd("accept", model.QuoteAccepted))
	quoteCmd.AddCommand(quoteDecisionCmd("reject", model.QuoteRejected))
	quoteCmd.AddCommand(quoteExpireCmd)
	rootCmd.AddCommand(quoteCmd)
}
