package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/sells-group/pricing-engine/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. It backs local
// development and the CLI's offline mode; production runs on Postgres.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS pricing_models (
	id           TEXT PRIMARY KEY,
	content_type TEXT NOT NULL,
	base_price   TEXT NOT NULL,
	currency     TEXT NOT NULL,
	per_word     INTEGER NOT NULL DEFAULT 0,
	version      INTEGER NOT NULL,
	active       INTEGER NOT NULL DEFAULT 1,
	created_at   DATETIME NOT NULL,
	UNIQUE (content_type, version)
);

CREATE TABLE IF NOT EXISTS market_data (
	content_type TEXT NOT NULL,
	segment      TEXT NOT NULL,
	avg_price    TEXT NOT NULL,
	median_price TEXT NOT NULL,
	min_price    TEXT NOT NULL,
	max_price    TEXT NOT NULL,
	currency     TEXT NOT NULL,
	sample_size  INTEGER NOT NULL DEFAULT 0,
	demand       TEXT NOT NULL,
	trend        TEXT NOT NULL,
	confidence   REAL NOT NULL DEFAULT 0,
	collected_at DATETIME NOT NULL,
	PRIMARY KEY (content_type, segment, collected_at)
);

CREATE TABLE IF NOT EXISTS client_profiles (
	client_id    TEXT PRIMARY KEY,
	tier         TEXT NOT NULL,
	risk         TEXT NOT NULL,
	terms        TEXT NOT NULL,
	loyalty_pct  REAL NOT NULL DEFAULT 0,
	credit_limit TEXT NOT NULL DEFAULT '0',
	currency     TEXT NOT NULL,
	updated_at   DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS quotes (
	id           TEXT PRIMARY KEY,
	client_id    TEXT NOT NULL,
	content_type TEXT NOT NULL,
	project_ref  TEXT,
	price        TEXT NOT NULL,
	currency     TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'pending',
	valid_until  DATETIME NOT NULL,
	created_at   DATETIME NOT NULL,
	updated_at   DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS experiments (
	id                   TEXT PRIMARY KEY,
	name                 TEXT NOT NULL,
	hypothesis           TEXT,
	metric               TEXT NOT NULL,
	variants             TEXT NOT NULL,
	status               TEXT NOT NULL DEFAULT 'draft',
	required_sample_size INTEGER NOT NULL,
	significance_level   REAL NOT NULL,
	started_at           DATETIME,
	ended_at             DATETIME,
	created_at           DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS experiment_assignments (
	experiment_id TEXT NOT NULL REFERENCES experiments(id),
	client_id     TEXT NOT NULL,
	variant_id    TEXT NOT NULL,
	assigned_at   DATETIME NOT NULL,
	PRIMARY KEY (experiment_id, client_id)
);

CREATE TABLE IF NOT EXISTS experiment_events (
	id            TEXT PRIMARY KEY,
	experiment_id TEXT NOT NULL REFERENCES experiments(id),
	variant_id    TEXT NOT NULL,
	client_id     TEXT,
	type          TEXT NOT NULL,
	value         REAL NOT NULL DEFAULT 0,
	occurred_at   DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS elasticity_estimates (
	content_type TEXT NOT NULL,
	score        REAL NOT NULL,
	confidence   REAL NOT NULL DEFAULT 0,
	window_start DATETIME NOT NULL,
	window_end   DATETIME NOT NULL,
	PRIMARY KEY (content_type, window_end)
);

CREATE TABLE IF NOT EXISTS competitor_analysis (
	content_type TEXT PRIMARY KEY,
	avg_price    TEXT NOT NULL,
	currency     TEXT NOT NULL,
	competitors  INTEGER NOT NULL DEFAULT 0,
	collected_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_models_type ON pricing_models(content_type);
CREATE INDEX IF NOT EXISTS idx_quotes_client ON quotes(client_id);
CREATE INDEX IF NOT EXISTS idx_quotes_status ON quotes(status);
CREATE INDEX IF NOT EXISTS idx_events_experiment ON experiment_events(experiment_id, variant_id);
CREATE INDEX IF NOT EXISTS idx_experiments_status ON experiments(status);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Pricing models

func (s *SQLiteStore) CreatePricingModel(ctx context.Context, m model.PricingModel) (*model.PricingModel, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin model tx")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE pricing_models SET active = 0 WHERE content_type = ? AND active = 1`,
		m.ContentType,
	); err != nil {
		return nil, eris.Wrapf(err, "sqlite: deactivate prior models for %s", m.ContentType)
	}

	var version int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) + 1 FROM pricing_models WHERE content_type = ?`,
		m.ContentType,
	).Scan(&version); err != nil {
		return nil, eris.Wrapf(err, "sqlite: next version for %s", m.ContentType)
	}

	m.Version = version
	m.Active = true
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO pricing_models (id, content_type, base_price, currency, per_word, version, active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.ContentType, m.BasePrice.Amount.String(), m.BasePrice.Currency, m.PerWord, m.Version, m.Active, m.CreatedAt,
	); err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert model for %s", m.ContentType)
	}

	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit model tx")
	}
	return &m, nil
}

func (s *SQLiteStore) GetActivePricingModel(ctx context.Context, contentType string) (*model.PricingModel, error) {
	var m model.PricingModel
	var amount string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, content_type, base_price, currency, per_word, version, active, created_at
		 FROM pricing_models WHERE content_type = ? AND active = 1 ORDER BY version DESC LIMIT 1`,
		contentType,
	).Scan(&m.ID, &m.ContentType, &amount, &m.BasePrice.Currency, &m.PerWord, &m.Version, &m.Active, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "pricing model for %s", contentType)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get model for %s", contentType)
	}
	if m.BasePrice.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, eris.Wrapf(err, "sqlite: parse base price for %s", contentType)
	}
	return &m, nil
}

// Market data

func (s *SQLiteStore) UpsertMarketData(ctx context.Context, md model.MarketData) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO market_data (content_type, segment, avg_price, median_price, min_price, max_price, currency, sample_size, demand, trend, confidence, collected_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (content_type, segment, collected_at) DO UPDATE SET
		   avg_price = excluded.avg_price, median_price = excluded.median_price,
		   min_price = excluded.min_price, max_price = excluded.max_price,
		   currency = excluded.currency, sample_size = excluded.sample_size,
		   demand = excluded.demand, trend = excluded.trend, confidence = excluded.confidence`,
		md.ContentType, md.Segment,
		md.AveragePrice.Amount.String(), md.MedianPrice.Amount.String(),
		md.MinPrice.Amount.String(), md.MaxPrice.Amount.String(),
		md.AveragePrice.Currency, md.SampleSize, string(md.Demand), string(md.Trend),
		md.Confidence, md.CollectedAt,
	)
	return eris.Wrapf(err, "sqlite: upsert market data %s/%s", md.ContentType, md.Segment)
}

func (s *SQLiteStore) GetLatestMarketData(ctx context.Context, contentType, segment string) (*model.MarketData, error) {
	var md model.MarketData
	var avg, median, minP, maxP, currency, demand, trend string
	err := s.db.QueryRowContext(ctx,
		`SELECT content_type, segment, avg_price, median_price, min_price, max_price, currency, sample_size, demand, trend, confidence, collected_at
		 FROM market_data WHERE content_type = ? AND segment = ? ORDER BY collected_at DESC LIMIT 1`,
		contentType, segment,
	).Scan(&md.ContentType, &md.Segment, &avg, &median, &minP, &maxP, &currency,
		&md.SampleSize, &demand, &trend, &md.Confidence, &md.CollectedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "market data for %s/%s", contentType, segment)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get market data %s/%s", contentType, segment)
	}

	md.Demand = model.DemandLevel(demand)
	md.Trend = model.TrendDirection(trend)
	for _, p := range []struct {
		dst *model.Money
		raw string
	}{
		{&md.AveragePrice, avg}, {&md.MedianPrice, median}, {&md.MinPrice, minP}, {&md.MaxPrice, maxP},
	} {
		amt, err := decimal.NewFromString(p.raw)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: parse market price for %s/%s", contentType, segment)
		}
		*p.dst = model.Money{Amount: amt, Currency: currency}
	}
	return &md, nil
}

// Client profiles

func (s *SQLiteStore) UpsertClientProfile(ctx context.Context, p model.ClientPricingProfile) error {
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO client_profiles (client_id, tier, risk, terms, loyalty_pct, credit_limit, currency, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (client_id) DO UPDATE SET
		   tier = excluded.tier, risk = excluded.risk, terms = excluded.terms,
		   loyalty_pct = excluded.loyalty_pct, credit_limit = excluded.credit_limit,
		   currency = excluded.currency, updated_at = excluded.updated_at`,
		p.ClientID, string(p.Tier), string(p.Risk), string(p.Terms),
		p.LoyaltyDiscountPct, p.CreditLimit.Amount.String(), p.CreditLimit.Currency, p.UpdatedAt,
	)
	return eris.Wrapf(err, "sqlite: upsert profile %s", p.ClientID)
}

func (s *SQLiteStore) GetClientProfile(ctx context.Context, clientID string) (*model.ClientPricingProfile, error) {
	var p model.ClientPricingProfile
	var tier, risk, terms, credit, currency string
	err := s.db.QueryRowContext(ctx,
		`SELECT client_id, tier, risk, terms, loyalty_pct, credit_limit, currency, updated_at
		 FROM client_profiles WHERE client_id = ?`,
		clientID,
	).Scan(&p.ClientID, &tier, &risk, &terms, &p.LoyaltyDiscountPct, &credit, &currency, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "client profile %s", clientID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get profile %s", clientID)
	}
	p.Tier = model.ClientTier(tier)
	p.Risk = model.RiskLevel(risk)
	p.Terms = model.PaymentTerms(terms)
	amt, err := decimal.NewFromString(credit)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: parse credit limit for %s", clientID)
	}
	p.CreditLimit = model.Money{Amount: amt, Currency: currency}
	return &p, nil
}

// Quotes

func (s *SQLiteStore) CreateQuote(ctx context.Context, q model.PriceQuote) (*model.PriceQuote, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO quotes (id, client_id, content_type, project_ref, price, currency, status, valid_until, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		q.ID, q.ClientID, q.ContentType, q.ProjectRef,
		q.Price.Amount.String(), q.Price.Currency, string(q.Status),
		q.ValidUntil, q.CreatedAt, q.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert quote for %s", q.ClientID)
	}
	return &q, nil
}

func (s *SQLiteStore) GetQuote(ctx context.Context, id string) (*model.PriceQuote, error) {
	q, err := scanQuote(s.db.QueryRowContext(ctx,
		`SELECT id, client_id, content_type, project_ref, price, currency, status, valid_until, created_at, updated_at
		 FROM quotes WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "quote %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get quote %s", id)
	}
	return q, nil
}

func (s *SQLiteStore) ListQuotes(ctx context.Context, filter QuoteFilter) ([]model.PriceQuote, error) {
	query := `SELECT id, client_id, content_type, project_ref, price, currency, status, valid_until, created_at, updated_at FROM quotes WHERE 1=1`
	var args []any
	if filter.ClientID != "" {
		query += ` AND client_id = ?`
		args = append(args, filter.ClientID)
	}
	if filter.ContentType != "" {
		query += ` AND content_type = ?`
		args = append(args, filter.ContentType)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if !filter.CreatedAfter.IsZero() {
		query += ` AND created_at > ?`
		args = append(args, filter.CreatedAfter)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list quotes")
	}
	defer rows.Close()

	var quotes []model.PriceQuote
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan quote")
		}
		quotes = append(quotes, *q)
	}
	return quotes, eris.Wrap(rows.Err(), "sqlite: list quotes iterate")
}

func (s *SQLiteStore) TransitionQuote(ctx context.Context, id string, from, to model.QuoteStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE quotes SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(to), time.Now().UTC(), id, string(from),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: transition quote %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrapf(err, "sqlite: transition quote %s rows", id)
	}
	if n == 0 {
		return s.transitionConflict(ctx, `SELECT status FROM quotes WHERE id = ?`, id, string(from))
	}
	return nil
}

func (s *SQLiteStore) ExpireStaleQuotes(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE quotes SET status = ?, updated_at = ? WHERE status = ? AND valid_until <= ?`,
		string(model.QuoteExpired), time.Now().UTC(), string(model.QuotePending), time.Now().UTC(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: expire stale quotes")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: expire stale quotes rows")
	}
	return int(n), nil
}

// Experiments

func (s *SQLiteStore) CreateExperiment(ctx context.Context, e model.PricingExperiment) (*model.PricingExperiment, error) {
	variants, err := json.Marshal(e.Variants)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal variants")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO experiments (id, name, hypothesis, metric, variants, status, required_sample_size, significance_level, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Name, e.Hypothesis, string(e.Metric), string(variants), string(e.Status),
		e.RequiredSampleSize, e.SignificanceLevel, e.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert experiment %s", e.Name)
	}
	return &e, nil
}

func (s *SQLiteStore) GetExperiment(ctx context.Context, id string) (*model.PricingExperiment, error) {
	e, err := scanExperiment(s.db.QueryRowContext(ctx,
		`SELECT id, name, hypothesis, metric, variants, status, required_sample_size, significance_level, started_at, ended_at, created_at
		 FROM experiments WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "experiment %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get experiment %s", id)
	}
	return e, nil
}

func (s *SQLiteStore) ListExperiments(ctx context.Context, filter ExperimentFilter) ([]model.PricingExperiment, error) {
	query := `SELECT id, name, hypothesis, metric, variants, status, required_sample_size, significance_level, started_at, ended_at, created_at FROM experiments WHERE 1=1`
	var args []any
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list experiments")
	}
	defer rows.Close()

	var exps []model.PricingExperiment
	for rows.Next() {
		e, err := scanExperiment(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan experiment")
		}
		exps = append(exps, *e)
	}
	return exps, eris.Wrap(rows.Err(), "sqlite: list experiments iterate")
}

func (s *SQLiteStore) TransitionExperiment(ctx context.Context, id string, from, to model.ExperimentStatus) error {
	now := time.Now().UTC()
	var startedAt, endedAt any
	if to == model.ExperimentRunning {
		startedAt = now
	}
	if to == model.ExperimentStopped || to == model.ExperimentAnalyzed {
		endedAt = now
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE experiments SET status = ?,
		   started_at = COALESCE(?, started_at),
		   ended_at   = COALESCE(?, ended_at)
		 WHERE id = ? AND status = ?`,
		string(to), startedAt, endedAt, id, string(from),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: transition experiment %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrapf(err, "sqlite: transition experiment %s rows", id)
	}
	if n == 0 {
		return s.transitionConflict(ctx, `SELECT status FROM experiments WHERE id = ?`, id, string(from))
	}
	return nil
}

// Assignments

func (s *SQLiteStore) GetOrCreateAssignment(ctx context.Context, a model.ExperimentAssignment) (*model.ExperimentAssignment, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO experiment_assignments (experiment_id, client_id, variant_id, assigned_at)
		 VALUES (?, ?, ?, ?)`,
		a.ExperimentID, a.ClientID, a.VariantID, a.AssignedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert assignment %s/%s", a.ExperimentID, a.ClientID)
	}
	return s.GetAssignment(ctx, a.ExperimentID, a.ClientID)
}

func (s *SQLiteStore) GetAssignment(ctx context.Context, experimentID, clientID string) (*model.ExperimentAssignment, error) {
	var a model.ExperimentAssignment
	err := s.db.QueryRowContext(ctx,
		`SELECT experiment_id, client_id, variant_id, assigned_at
		 FROM experiment_assignments WHERE experiment_id = ? AND client_id = ?`,
		experimentID, clientID,
	).Scan(&a.ExperimentID, &a.ClientID, &a.VariantID, &a.AssignedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "assignment %s/%s", experimentID, clientID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get assignment %s/%s", experimentID, clientID)
	}
	return &a, nil
}

// Events

func (s *SQLiteStore) AppendEvent(ctx context.Context, ev model.ExperimentEvent) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO experiment_events (id, experiment_id, variant_id, client_id, type, value, occurred_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.ExperimentID, ev.VariantID, ev.ClientID, string(ev.Type), ev.Value, ev.OccurredAt,
	)
	return eris.Wrapf(err, "sqlite: append event for %s", ev.ExperimentID)
}

func (s *SQLiteStore) VariantStats(ctx context.Context, experimentID string) (map[string]model.VariantStats, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT variant_id,
		   SUM(CASE WHEN type = 'impression' THEN 1 ELSE 0 END),
		   SUM(CASE WHEN type <> 'impression' THEN 1 ELSE 0 END),
		   COALESCE(SUM(CASE WHEN type <> 'impression' THEN value ELSE 0 END), 0),
		   COALESCE(SUM(CASE WHEN type <> 'impression' THEN value * value ELSE 0 END), 0)
		 FROM experiment_events WHERE experiment_id = ? GROUP BY variant_id`,
		experimentID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: variant stats for %s", experimentID)
	}
	defer rows.Close()

	stats := make(map[string]model.VariantStats)
	for rows.Next() {
		var vs model.VariantStats
		if err := rows.Scan(&vs.VariantID, &vs.Impressions, &vs.Conversions, &vs.ValueSum, &vs.ValueSumSq); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan variant stats")
		}
		stats[vs.VariantID] = vs
	}
	return stats, eris.Wrapf(rows.Err(), "sqlite: variant stats iterate for %s", experimentID)
}

// Optimizer reads

func (s *SQLiteStore) GetPriceElasticity(ctx context.Context, contentType string, window time.Duration) (*model.ElasticityEstimate, error) {
	cutoff := time.Now().UTC().Add(-window)
	var e model.ElasticityEstimate
	err := s.db.QueryRowContext(ctx,
		`SELECT content_type, score, confidence, window_start, window_end
		 FROM elasticity_estimates WHERE content_type = ? AND window_end > ?
		 ORDER BY window_end DESC LIMIT 1`,
		contentType, cutoff,
	).Scan(&e.ContentType, &e.Score, &e.Confidence, &e.WindowStart, &e.WindowEnd)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "elasticity for %s", contentType)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get elasticity for %s", contentType)
	}
	return &e, nil
}

func (s *SQLiteStore) GetCompetitorAnalysis(ctx context.Context, contentType string) (*model.CompetitorAnalysis, error) {
	var ca model.CompetitorAnalysis
	var avg, currency string
	err := s.db.QueryRowContext(ctx,
		`SELECT content_type, avg_price, currency, competitors, collected_at
		 FROM competitor_analysis WHERE content_type = ?`,
		contentType,
	).Scan(&ca.ContentType, &avg, &currency, &ca.Competitors, &ca.CollectedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "competitor analysis for %s", contentType)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get competitor analysis for %s", contentType)
	}
	amt, err := decimal.NewFromString(avg)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: parse competitor average for %s", contentType)
	}
	ca.AveragePrice = model.Money{Amount: amt, Currency: currency}
	return &ca, nil
}

func (s *SQLiteStore) transitionConflict(ctx context.Context, statusQuery, id, expected string) error {
	var current string
	err := s.db.QueryRowContext(ctx, statusQuery, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return eris.Wrapf(ErrNotFound, "%s", id)
	}
	if err != nil {
		return eris.Wrapf(err, "sqlite: check status of %s", id)
	}
	return eris.Wrapf(ErrConflict, "%s is %s, expected %s", id, current, expected)
}
