package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/pricing-engine/internal/model"
)

var experimentCmd = &cobra.Command{
	Use:     "experiment",
	Aliases: []string{"exp"},
	Short:   "Design and run pricing experiments",
}

// experimentDesignFile is the YAML shape accepted by `experiment design`.
type experimentDesignFile struct {
	Name               string  `yaml:"name"`
	Hypothesis         string  `yaml:"hypothesis"`
	Metric             string  `yaml:"metric"`
	RequiredSampleSize int     `yaml:"required_sample_size"`
	SignificanceLevel  float64 `yaml:"significance_level"`
	Variants           []struct {
		Name         string  `yaml:"name"`
		TrafficShare float64 `yaml:"traffic_share"`
		IsControl    bool    `yaml:"is_control"`
		Overrides    struct {
			BasePriceFactor  float64 `yaml:"base_price_factor"`
			SurgeCap         float64 `yaml:"surge_cap"`
			DisableLoyalty   bool    `yaml:"disable_loyalty"`
			DisableMarketAdj bool    `yaml:"disable_market_adj"`
			FlatDiscountPct  float64 `yaml:"flat_discount_pct"`
		} `yaml:"overrides"`
	} `yaml:"variants"`
}

var experimentDesignPath string

var experimentDesignCmd = &cobra.Command{
	Use:   "design",
	Short: "Design a new experiment from a YAML file",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		data, err := os.ReadFile(experimentDesignPath)
		if err != nil {
			return eris.Wrap(err, "read design file")
		}
		var file experimentDesignFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return eris.Wrap(err, "parse design file")
		}

		exp := model.PricingExperiment{
			Name:               file.Name,
			Hypothesis:         file.Hypothesis,
			Metric:             model.TargetMetric(file.Metric),
			RequiredSampleSize: file.RequiredSampleSize,
			SignificanceLevel:  file.SignificanceLevel,
		}
		if exp.RequiredSampleSize == 0 {
			exp.RequiredSampleSize = cfg.Experiment.DefaultSampleSize
		}
		if exp.SignificanceLevel == 0 {
			exp.SignificanceLevel = cfg.Experiment.DefaultSignificance
		}
		for _, v := range file.Variants {
			exp.Variants = append(exp.Variants, model.PricingVariant{
				Name:         v.Name,
				TrafficShare: v.TrafficShare,
				IsControl:    v.IsControl,
				Overrides: model.VariantOverrides{
					BasePriceFactor:  v.Overrides.BasePriceFactor,
					SurgeCap:         v.Overrides.SurgeCap,
					DisableLoyalty:   v.Overrides.DisableLoyalty,
					DisableMarketAdj: v.Overrides.DisableMarketAdj,
					FlatDiscountPct:  v.Overrides.FlatDiscountPct,
				},
			})
		}

		created, err := env.Experiments.Design(ctx, exp)
		if err != nil {
			return err
		}
		return printJSON(created)
	},
}

func experimentTransitionCmd(use, short string, run func(ctx commandContext, id string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <experiment-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			env, err := initEnv(ctx, "cli")
			if err != nil {
				return err
			}
			defer env.Close()

			return run(commandContext{ctx: ctx, env: env}, args[0])
		},
	}
}

var experimentAssignClient string

var experimentAssignCmd = &cobra.Command{
	Use:   "assign <experiment-id>",
	Short: "Resolve a client's variant assignment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		a, err := env.Experiments.Assign(ctx, args[0], experimentAssignClient)
		if err != nil {
			return err
		}
		if a == nil {
			return printJSON(map[string]any{"assigned": false})
		}
		return printJSON(map[string]any{"assigned": true, "assignment": a})
	},
}

var (
	experimentEventVariant string
	experimentEventClient  string
	experimentEventType    string
	experimentEventValue   float64
)

var experimentRecordCmd = &cobra.Command{
	Use:   "record <experiment-id>",
	Short: "Record an experiment event",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		err = env.Experiments.RecordEvent(ctx, model.ExperimentEvent{
			ExperimentID: args[0],
			VariantID:    experimentEventVariant,
			ClientID:     experimentEventClient,
			Type:         model.EventType(experimentEventType),
			Value:        experimentEventValue,
		})
		if err != nil {
			return err
		}
		zap.L().Info("event recorded",
			zap.String("experiment_id", args[0]),
			zap.String("variant_id", experimentEventVariant),
			zap.String("type", experimentEventType),
		)
		return nil
	},
}

func init() {
	experimentDesignCmd.Flags().StringVar(&experimentDesignPath, "file", "", "path to design YAML (required)")
	_ = experimentDesignCmd.MarkFlagRequired("file")

	experimentAssignCmd.Flags().StringVar(&experimentAssignClient, "client", "", "client ID (required)")
	_ = experimentAssignCmd.MarkFlagRequired("client")

	experimentRecordCmd.Flags().StringVar(&experimentEventVariant, "variant", "", "variant ID (required)")
	experimentRecordCmd.Flags().StringVar(&experimentEventClient, "client", "", "client ID")
	experimentRecordCmd.Flags().StringVar(&experimentEventType, "type", "impression", "event type (impression|conversion|revenue)")
	experimentRecordCmd.Flags().Float64Var(&experimentEventValue, "value", 0, "metric value")
	_ = experimentRecordCmd.MarkFlagRequired("variant")

	experimentCmd.AddCommand(experimentDesignCmd)
	experimentCmd.AddCommand(experimentTransitionCmd("start", "Start a draft experiment", func(c commandContext, id string) error {
		return c.env.Experiments.Start(c.ctx, id)
	}))
	experimentCmd.AddCommand(experimentTransitionCmd("stop", "Stop a running experiment", func(c commandContext, id string) error {
		return c.env.Experiments.Stop(c.ctx, id)
	}))
	experimentCmd.AddCommand(experimentTransitionCmd("analyze", "Compute statistical significance per variant", func(c commandContext, id string) error {
		analysis, err := c.env.Experiments.Analyze(c.ctx, id)
		if err != nil {
			return err
		}
		return printJSON(analysis)
	}))
	experimentCmd.AddCommand(experimentTransitionCmd("winner", "Recommend the winning variant", func(c commandContext, id string) error {
		rec, err := c.env.Experiments.RecommendWinner(c.ctx, id)
		if err != nil {
			return err
		}
		return printJSON(rec)
	}))
	experimentCmd.AddCommand(experimentAssignCmd)
	experimentCmd.AddCommand(experimentRecordCmd)
	rootCmd.AddCommand(experimentCmd)
}
