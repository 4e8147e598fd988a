package main

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/pricing-engine/internal/db"
	"github.com/sells-group/pricing-engine/internal/model"
	"github.com/sells-group/pricing-engine/internal/store"
)

var experimentImportPath string

var experimentImportCmd = &cobra.Command{
	Use:   "import-events <experiment-id>",
	Short: "Backfill experiment events from a CSV file",
	Long:  "CSV columns: variant_id,client_id,type,value. Intended for backfilling events collected out of band; lifecycle checks are skipped.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		experimentID := args[0]

		env, err := initEnv(ctx, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		exp, err := env.Store.GetExperiment(ctx, experimentID)
		if err != nil {
			return err
		}
		known := make(map[string]bool, len(exp.Variants))
		for _, v := range exp.Variants {
			known[v.ID] = true
		}

		f, err := os.Open(experimentImportPath)
		if err != nil {
			return eris.Wrap(err, "open csv")
		}
		defer f.Close()

		events, err := readEventCSV(f, experimentID, known)
		if err != nil {
			return err
		}

		if pg, ok := env.Store.(*store.PostgresStore); ok {
			n, err := importEventsPostgres(ctx, pg, events)
			if err != nil {
				return err
			}
			zap.L().Info("event import complete", zap.Int64("rows", n), zap.String("experiment_id", experimentID))
			return nil
		}

		for _, ev := range events {
			if err := env.Store.AppendEvent(ctx, *ev); err != nil {
				return eris.Wrapf(err, "import event for variant %s", ev.VariantID)
			}
		}
		zap.L().Info("event import complete", zap.Int("rows", len(events)), zap.String("experiment_id", experimentID))
		return nil
	},
}

func readEventCSV(r io.Reader, experimentID string, knownVariants map[string]bool) ([]*model.ExperimentEvent, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 4

	now := time.Now().UTC()
	var out []*model.ExperimentEvent
	header := true
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "read csv")
		}
		if header && rec[0] == "variant_id" {
			header = false
			continue
		}
		header = false

		if !knownVariants[rec[0]] {
			return nil, eris.Errorf("unknown variant %q", rec[0])
		}
		typ := model.EventType(rec[2])
		if !typ.Valid() {
			return nil, eris.Errorf("unknown event type %q", rec[2])
		}
		value := 0.0
		if rec[3] != "" {
			if value, err = strconv.ParseFloat(rec[3], 64); err != nil {
				return nil, eris.Wrapf(err, "parse value %q", rec[3])
			}
		}

		out = append(out, &model.ExperimentEvent{
			ID:           uuid.NewString(),
			ExperimentID: experimentID,
			VariantID:    rec[0],
			ClientID:     rec[1],
			Type:         typ,
			Value:        value,
			OccurredAt:   now,
		})
	}
	return out, nil
}

func importEventsPostgres(ctx context.Context, pg *store.PostgresStore, events []*model.ExperimentEvent) (int64, error) {
	rows := make([][]any, 0, len(events))
	for _, ev := range events {
		rows = append(rows, []any{
			ev.ID, ev.ExperimentID, ev.VariantID, ev.ClientID,
			string(ev.Type), ev.Value, ev.OccurredAt,
		})
	}
	return db.CopyRows(ctx, pg.Pool(), "experiment_events",
		[]string{"id", "experiment_id", "variant_id", "client_id", "type", "value", "occurred_at"},
		rows)
}

func init() {
	experimentImportCmd.Flags().StringVar(&experimentImportPath, "csv", "", "path to CSV file (required)")
	_ = experimentImportCmd.MarkFlagRequired("csv")
	experimentCmd.AddCommand(experimentImportCmd)
}
