// Package experiment designs, runs, and statistically evaluates pricing
// A/B experiments, and assigns clients to stable variants.
package experiment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/pricing-engine/internal/model"
	"github.com/sells-group/pricing-engine/internal/store"
)

// Manager runs the experiment lifecycle against a Store.
type Manager struct {
	store store.Store
}

// NewManager creates a Manager. Returns nil if st is nil.
func NewManager(st store.Store) *Manager {
	if st == nil {
		return nil
	}
	return &Manager{store: st}
}

// Design validates and persists a new experiment in draft status.
// Variant IDs are assigned here; callers supply names and shares.
func (m *Manager) Design(ctx context.Context, exp model.PricingExperiment) (*model.PricingExperiment, error) {
	if err := Validate(exp); err != nil {
		return nil, err
	}

	exp.ID = uuid.New().String()
	exp.Status = model.ExperimentDraft
	exp.CreatedAt = time.Now().UTC()
	for i := range exp.Variants {
		exp.Variants[i].ID = uuid.New().String()
	}

	created, err := m.store.CreateExperiment(ctx, exp)
	if err != nil {
		return nil, eris.Wrapf(err, "experiment: create %s", exp.Name)
	}

	zap.L().Info("experiment designed",
		zap.String("experiment_id", created.ID),
		zap.String("name", created.Name),
		zap.Int("variants", len(created.Variants)),
	)
	return created, nil
}

// Start transitions a draft experiment to running. The design is
// re-validated so a draft edited in storage cannot start in a bad state,
// and the transition itself is atomic against the current status.
func (m *Manager) Start(ctx context.Context, id string) error {
	exp, err := m.store.GetExperiment(ctx, id)
	if err != nil {
		return eris.Wrapf(err, "experiment: load %s", id)
	}
	if err := Validate(*exp); err != nil {
		return err
	}

	if err := m.store.TransitionExperiment(ctx, id, model.ExperimentDraft, model.ExperimentRunning); err != nil {
		return eris.Wrapf(err, "experiment: start %s", id)
	}
	zap.L().Info("experiment started", zap.String("experiment_id", id))
	return nil
}

// Stop transitions a running experiment to stopped. Stopped is terminal.
func (m *Manager) Stop(ctx context.Context, id string) error {
	if err := m.store.TransitionExperiment(ctx, id, model.ExperimentRunning, model.ExperimentStopped); err != nil {
		return eris.Wrapf(err, "experiment: stop %s", id)
	}
	zap.L().Info("experiment stopped", zap.String("experiment_id", id))
	return nil
}

// Assign resolves the stable variant for a client in a running
// experiment. The variant is a pure function of (experiment, client);
// the persisted row exists for auditability, and the unique constraint
// makes concurrent first-time assignment converge on one row. A nil
// assignment (with nil error) means the client is in the holdout.
func (m *Manager) Assign(ctx context.Context, experimentID, clientID string) (*model.ExperimentAssignment, error) {
	exp, err := m.store.GetExperiment(ctx, experimentID)
	if err != nil {
		return nil, eris.Wrapf(err, "experiment: load %s", experimentID)
	}
	if exp.Status != model.ExperimentRunning {
		return nil, eris.Wrapf(store.ErrConflict, "experiment: assign on %s experiment %s", exp.Status, experimentID)
	}

	v := ChooseVariant(exp, clientID)
	if v == nil {
		return nil, nil
	}

	a, err := m.store.GetOrCreateAssignment(ctx, model.ExperimentAssignment{
		ExperimentID: experimentID,
		ClientID:     clientID,
		VariantID:    v.ID,
		AssignedAt:   time.Now().UTC(),
	})
	if err != nil {
		return nil, eris.Wrapf(err, "experiment: persist assignment %s/%s", experimentID, clientID)
	}
	return a, nil
}

// RecordEvent appends an observation to a running experiment. Events
// outside the active window, for unknown variants, or on non-running
// experiments are rejected.
func (m *Manager) RecordEvent(ctx context.Context, ev model.ExperimentEvent) error {
	exp, err := m.store.GetExperiment(ctx, ev.ExperimentID)
	if err != nil {
		return eris.Wrapf(err, "experiment: load %s", ev.ExperimentID)
	}
	if exp.Status != model.ExperimentRunning {
		return eris.Wrapf(store.ErrConflict, "experiment: record event on %s experiment %s", exp.Status, ev.ExperimentID)
	}
	if exp.Variant(ev.VariantID) == nil {
		return eris.Errorf("experiment: unknown variant %s in experiment %s", ev.VariantID, ev.ExperimentID)
	}
	if !ev.Type.Valid() {
		return eris.Errorf("experiment: unknown event type %q for %s", ev.Type, ev.ExperimentID)
	}

	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	if !exp.ActiveWindow(ev.OccurredAt) {
		return eris.Errorf("experiment: event at %s outside active window of %s",
			ev.OccurredAt.Format(time.RFC3339), ev.ExperimentID)
	}

	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	return eris.Wrapf(m.store.AppendEvent(ctx, ev), "experiment: append event for %s", ev.ExperimentID)
}
