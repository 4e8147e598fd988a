package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/sells-group/pricing-engine/internal/db"
	"github.com/sells-group/pricing-engine/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists the hot-path queries prepared on each new
// connection: every price calculation runs the first three.
var preparedStatements = map[string]string{
	"get_active_model":   `SELECT id, content_type, base_price, currency, per_word, version, active, created_at FROM pricing_models WHERE content_type = $1 AND active ORDER BY version DESC LIMIT 1`,
	"get_latest_market":  `SELECT content_type, segment, avg_price, median_price, min_price, max_price, currency, sample_size, demand, trend, confidence, collected_at FROM market_data WHERE content_type = $1 AND segment = $2 ORDER BY collected_at DESC LIMIT 1`,
	"get_client_profile": `SELECT client_id, tier, risk, terms, loyalty_pct, credit_limit, currency, updated_at FROM client_profiles WHERE client_id = $1`,
	"insert_quote":       `INSERT INTO quotes (id, client_id, content_type, project_ref, price, currency, status, valid_until, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
	"insert_event":       `INSERT INTO experiment_events (id, experiment_id, variant_id, client_id, type, value, occurred_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool. Tests hand in a pgxmock
// pool here.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, closeFn: pool.Close}
}

// Pool exposes the underlying pool for bulk-load helpers.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS pricing_models (
	id           TEXT PRIMARY KEY,
	content_type TEXT NOT NULL,
	base_price   TEXT NOT NULL,
	currency     TEXT NOT NULL,
	per_word     BOOLEAN NOT NULL DEFAULT FALSE,
	version      INT NOT NULL,
	active       BOOLEAN NOT NULL DEFAULT TRUE,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
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
	sample_size  INT NOT NULL DEFAULT 0,
	demand       TEXT NOT NULL,
	trend        TEXT NOT NULL,
	confidence   DOUBLE PRECISION NOT NULL DEFAULT 0,
	collected_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (content_type, segment, collected_at)
);

CREATE TABLE IF NOT EXISTS client_profiles (
	client_id    TEXT PRIMARY KEY,
	tier         TEXT NOT NULL,
	risk         TEXT NOT NULL,
	terms        TEXT NOT NULL,
	loyalty_pct  DOUBLE PRECISION NOT NULL DEFAULT 0,
	credit_limit TEXT NOT NULL DEFAULT '0',
	currency     TEXT NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS quotes (
	id           TEXT PRIMARY KEY,
	client_id    TEXT NOT NULL,
	content_type TEXT NOT NULL,
	project_ref  TEXT,
	price        TEXT NOT NULL,
	currency     TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'pending',
	valid_until  TIMESTAMPTZ NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS experiments (
	id                   TEXT PRIMARY KEY,
	name                 TEXT NOT NULL,
	hypothesis           TEXT,
	metric               TEXT NOT NULL,
	variants             JSONB NOT NULL,
	status               TEXT NOT NULL DEFAULT 'draft',
	required_sample_size INT NOT NULL,
	significance_level   DOUBLE PRECISION NOT NULL,
	started_at           TIMESTAMPTZ,
	ended_at             TIMESTAMPTZ,
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS experiment_assignments (
	experiment_id TEXT NOT NULL REFERENCES experiments(id),
	client_id     TEXT NOT NULL,
	variant_id    TEXT NOT NULL,
	assigned_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (experiment_id, client_id)
);

CREATE TABLE IF NOT EXISTS experiment_events (
	id            TEXT PRIMARY KEY,
	experiment_id TEXT NOT NULL REFERENCES experiments(id),
	variant_id    TEXT NOT NULL,
	client_id     TEXT,
	type          TEXT NOT NULL,
	value         DOUBLE PRECISION NOT NULL DEFAULT 0,
	occurred_at   TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS elasticity_estimates (
	content_type TEXT NOT NULL,
	score        DOUBLE PRECISION NOT NULL,
	confidence   DOUBLE PRECISION NOT NULL DEFAULT 0,
	window_start TIMESTAMPTZ NOT NULL,
	window_end   TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (content_type, window_end)
);

CREATE TABLE IF NOT EXISTS competitor_analysis (
	content_type TEXT PRIMARY KEY,
	avg_price    TEXT NOT NULL,
	currency     TEXT NOT NULL,
	competitors  INT NOT NULL DEFAULT 0,
	collected_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_models_active ON pricing_models(content_type) WHERE active;
CREATE INDEX IF NOT EXISTS idx_quotes_client ON quotes(client_id);
CREATE INDEX IF NOT EXISTS idx_quotes_status ON quotes(status);
CREATE INDEX IF NOT EXISTS idx_events_experiment ON experiment_events(experiment_id, variant_id);
CREATE INDEX IF NOT EXISTS idx_experiments_status ON experiments(status);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// Pricing models

func (s *PostgresStore) CreatePricingModel(ctx context.Context, m model.PricingModel) (*model.PricingModel, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: begin model tx")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`UPDATE pricing_models SET active = FALSE WHERE content_type = $1 AND active`,
		m.ContentType,
	); err != nil {
		return nil, eris.Wrapf(err, "postgres: deactivate prior models for %s", m.ContentType)
	}

	var version int
	if err := tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(version), 0) + 1 FROM pricing_models WHERE content_type = $1`,
		m.ContentType,
	).Scan(&version); err != nil {
		return nil, eris.Wrapf(err, "postgres: next version for %s", m.ContentType)
	}

	m.Version = version
	m.Active = true
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO pricing_models (id, content_type, base_price, currency, per_word, version, active, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		m.ID, m.ContentType, m.BasePrice.Amount.String(), m.BasePrice.Currency, m.PerWord, m.Version, m.Active, m.CreatedAt,
	); err != nil {
		return nil, eris.Wrapf(err, "postgres: insert model for %s", m.ContentType)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "postgres: commit model tx")
	}
	return &m, nil
}

func (s *PostgresStore) GetActivePricingModel(ctx context.Context, contentType string) (*model.PricingModel, error) {
	var m model.PricingModel
	var amount string
	err := s.pool.QueryRow(ctx,
		`SELECT id, content_type, base_price, currency, per_word, version, active, created_at
		 FROM pricing_models WHERE content_type = $1 AND active ORDER BY version DESC LIMIT 1`,
		contentType,
	).Scan(&m.ID, &m.ContentType, &amount, &m.BasePrice.Currency, &m.PerWord, &m.Version, &m.Active, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "pricing model for %s", contentType)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get model for %s", contentType)
	}
	if m.BasePrice.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, eris.Wrapf(err, "postgres: parse base price for %s", contentType)
	}
	return &m, nil
}

// Market data

func (s *PostgresStore) UpsertMarketData(ctx context.Context, md model.MarketData) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO market_data (content_type, segment, avg_price, median_price, min_price, max_price, currency, sample_size, demand, trend, confidence, collected_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (content_type, segment, collected_at) DO UPDATE SET
		   avg_price = EXCLUDED.avg_price, median_price = EXCLUDED.median_price,
		   min_price = EXCLUDED.min_price, max_price = EXCLUDED.max_price,
		   currency = EXCLUDED.currency, sample_size = EXCLUDED.sample_size,
		   demand = EXCLUDED.demand, trend = EXCLUDED.trend, confidence = EXCLUDED.confidence`,
		md.ContentType, md.Segment,
		md.AveragePrice.Amount.String(), md.MedianPrice.Amount.String(),
		md.MinPrice.Amount.String(), md.MaxPrice.Amount.String(),
		md.AveragePrice.Currency, md.SampleSize, string(md.Demand), string(md.Trend),
		md.Confidence, md.CollectedAt,
	)
	return eris.Wrapf(err, "postgres: upsert market data %s/%s", md.ContentType, md.Segment)
}

func (s *PostgresStore) GetLatestMarketData(ctx context.Context, contentType, segment string) (*model.MarketData, error) {
	var md model.MarketData
	var avg, median, minP, maxP, currency string
	var demand, trend string
	err := s.pool.QueryRow(ctx,
		`SELECT content_type, segment, avg_price, median_price, min_price, max_price, currency, sample_size, demand, trend, confidence, collected_at
		 FROM market_data WHERE content_type = $1 AND segment = $2 ORDER BY collected_at DESC LIMIT 1`,
		contentType, segment,
	).Scan(&md.ContentType, &md.Segment, &avg, &median, &minP, &maxP, &currency,
		&md.SampleSize, &demand, &trend, &md.Confidence, &md.CollectedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "market data for %s/%s", contentType, segment)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get market data %s/%s", contentType, segment)
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
			return nil, eris.Wrapf(err, "postgres: parse market price for %s/%s", contentType, segment)
		}
		*p.dst = model.Money{Amount: amt, Currency: currency}
	}
	return &md, nil
}

// Client profiles

func (s *PostgresStore) UpsertClientProfile(ctx context.Context, p model.ClientPricingProfile) error {
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO client_profiles (client_id, tier, risk, terms, loyalty_pct, credit_limit, currency, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (client_id) DO UPDATE SET
		   tier = EXCLUDED.tier, risk = EXCLUDED.risk, terms = EXCLUDED.terms,
		   loyalty_pct = EXCLUDED.loyalty_pct, credit_limit = EXCLUDED.credit_limit,
		   currency = EXCLUDED.currency, updated_at = EXCLUDED.updated_at`,
		p.ClientID, string(p.Tier), string(p.Risk), string(p.Terms),
		p.LoyaltyDiscountPct, p.CreditLimit.Amount.String(), p.CreditLimit.Currency, p.UpdatedAt,
	)
	return eris.Wrapf(err, "postgres: upsert profile %s", p.ClientID)
}

func (s *PostgresStore) GetClientProfile(ctx context.Context, clientID string) (*model.ClientPricingProfile, error) {
	var p model.ClientPricingProfile
	var tier, risk, terms, credit, currency string
	err := s.pool.QueryRow(ctx,
		`SELECT client_id, tier, risk, terms, loyalty_pct, credit_limit, currency, updated_at
		 FROM client_profiles WHERE client_id = $1`,
		clientID,
	).Scan(&p.ClientID, &tier, &risk, &terms, &p.LoyaltyDiscountPct, &credit, &currency, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "client profile %s", clientID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get profile %s", clientID)
	}
	p.Tier = model.ClientTier(tier)
	p.Risk = model.RiskLevel(risk)
	p.Terms = model.PaymentTerms(terms)
	amt, err := decimal.NewFromString(credit)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: parse credit limit for %s", clientID)
	}
	p.CreditLimit = model.Money{Amount: amt, Currency: currency}
	return &p, nil
}

// Quotes

func (s *PostgresStore) CreateQuote(ctx context.Context, q model.PriceQuote) (*model.PriceQuote, error) {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO quotes (id, client_id, content_type, project_ref, price, currency, status, valid_until, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		q.ID, q.ClientID, q.ContentType, q.ProjectRef,
		q.Price.Amount.String(), q.Price.Currency, string(q.Status),
		q.ValidUntil, q.CreatedAt, q.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert quote for %s", q.ClientID)
	}
	return &q, nil
}

func (s *PostgresStore) GetQuote(ctx context.Context, id string) (*model.PriceQuote, error) {
	q, err := scanQuote(s.pool.QueryRow(ctx,
		`SELECT id, client_id, content_type, project_ref, price, currency, status, valid_until, created_at, updated_at
		 FROM quotes WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "quote %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get quote %s", id)
	}
	return q, nil
}

func (s *PostgresStore) ListQuotes(ctx context.Context, filter QuoteFilter) ([]model.PriceQuote, error) {
	query := `SELECT id, client_id, content_type, project_ref, price, currency, status, valid_until, created_at, updated_at FROM quotes WHERE 1=1`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return "$" + itoa(len(args))
	}

	if filter.ClientID != "" {
		query += ` AND client_id = ` + arg(filter.ClientID)
	}
	if filter.ContentType != "" {
		query += ` AND content_type = ` + arg(filter.ContentType)
	}
	if filter.Status != "" {
		query += ` AND status = ` + arg(string(filter.Status))
	}
	if !filter.CreatedAfter.IsZero() {
		query += ` AND created_at > ` + arg(filter.CreatedAfter)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ` + arg(limit)
	if filter.Offset > 0 {
		query += ` OFFSET ` + arg(filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list quotes")
	}
	defer rows.Close()

	var quotes []model.PriceQuote
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan quote")
		}
		quotes = append(quotes, *q)
	}
	return quotes, eris.Wrap(rows.Err(), "postgres: list quotes iterate")
}

func (s *PostgresStore) TransitionQuote(ctx context.Context, id string, from, to model.QuoteStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE quotes SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`,
		string(to), time.Now().UTC(), id, string(from),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: transition quote %s", id)
	}
	if tag.RowsAffected() == 0 {
		return s.transitionConflict(ctx, `SELECT status FROM quotes WHERE id = $1`, id, string(from))
	}
	return nil
}

func (s *PostgresStore) ExpireStaleQuotes(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE quotes SET status = $1, updated_at = now() WHERE status = $2 AND valid_until <= now()`,
		string(model.QuoteExpired), string(model.QuotePending),
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: expire stale quotes")
	}
	return int(tag.RowsAffected()), nil
}

// Experiments

func (s *PostgresStore) CreateExperiment(ctx context.Context, e model.PricingExperiment) (*model.PricingExperiment, error) {
	variants, err := json.Marshal(e.Variants)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal variants")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO experiments (id, name, hypothesis, metric, variants, status, required_sample_size, significance_level, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.ID, e.Name, e.Hypothesis, string(e.Metric), variants, string(e.Status),
		e.RequiredSampleSize, e.SignificanceLevel, e.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert experiment %s", e.Name)
	}
	return &e, nil
}

func (s *PostgresStore) GetExperiment(ctx context.Context, id string) (*model.PricingExperiment, error) {
	e, err := scanExperiment(s.pool.QueryRow(ctx,
		`SELECT id, name, hypothesis, metric, variants, status, required_sample_size, significance_level, started_at, ended_at, created_at
		 FROM experiments WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "experiment %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get experiment %s", id)
	}
	return e, nil
}

func (s *PostgresStore) ListExperiments(ctx context.Context, filter ExperimentFilter) ([]model.PricingExperiment, error) {
	query := `SELECT id, name, hypothesis, metric, variants, status, required_sample_size, significance_level, started_at, ended_at, created_at FROM experiments WHERE 1=1`
	var args []any
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += ` AND status = $1`
	}
	query += ` ORDER BY created_at DESC`
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += ` LIMIT $` + itoa(len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list experiments")
	}
	defer rows.Close()

	var exps []model.PricingExperiment
	for rows.Next() {
		e, err := scanExperiment(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan experiment")
		}
		exps = append(exps, *e)
	}
	return exps, eris.Wrap(rows.Err(), "postgres: list experiments iterate")
}

func (s *PostgresStore) TransitionExperiment(ctx context.Context, id string, from, to model.ExperimentStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE experiments SET status = $1,
		   started_at = CASE WHEN $1 = 'running' THEN now() ELSE started_at END,
		   ended_at   = CASE WHEN $1 IN ('stopped', 'analyzed') THEN now() ELSE ended_at END
		 WHERE id = $2 AND status = $3`,
		string(to), id, string(from),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: transition experiment %s", id)
	}
	if tag.RowsAffected() == 0 {
		return s.transitionConflict(ctx, `SELECT status FROM experiments WHERE id = $1`, id, string(from))
	}
	return nil
}

// Assignments

func (s *PostgresStore) GetOrCreateAssignment(ctx context.Context, a model.ExperimentAssignment) (*model.ExperimentAssignment, error) {
	// Unique-constraint insert: concurrent first-time assignment for the
	// same client collapses to one row, and the subsequent read returns
	// whichever row won.
	_, err := s.pool.Exec(ctx,
		`INSERT INTO experiment_assignments (experiment_id, client_id, variant_id, assigned_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (experiment_id, client_id) DO NOTHING`,
		a.ExperimentID, a.ClientID, a.VariantID, a.AssignedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert assignment %s/%s", a.ExperimentID, a.ClientID)
	}
	return s.GetAssignment(ctx, a.ExperimentID, a.ClientID)
}

func (s *PostgresStore) GetAssignment(ctx context.Context, experimentID, clientID string) (*model.ExperimentAssignment, error) {
	var a model.ExperimentAssignment
	err := s.pool.QueryRow(ctx,
		`SELECT experiment_id, client_id, variant_id, assigned_at
		 FROM experiment_assignments WHERE experiment_id = $1 AND client_id = $2`,
		experimentID, clientID,
	).Scan(&a.ExperimentID, &a.ClientID, &a.VariantID, &a.AssignedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "assignment %s/%s", experimentID, clientID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get assignment %s/%s", experimentID, clientID)
	}
	return &a, nil
}

// Events

func (s *PostgresStore) AppendEvent(ctx context.Context, ev model.ExperimentEvent) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO experiment_events (id, experiment_id, variant_id, client_id, type, value, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		ev.ID, ev.ExperimentID, ev.VariantID, ev.ClientID, string(ev.Type), ev.Value, ev.OccurredAt,
	)
	return eris.Wrapf(err, "postgres: append event for %s", ev.ExperimentID)
}

func (s *PostgresStore) VariantStats(ctx context.Context, experimentID string) (map[string]model.VariantStats, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT variant_id,
		   SUM(CASE WHEN type = 'impression' THEN 1 ELSE 0 END),
		   SUM(CASE WHEN type <> 'impression' THEN 1 ELSE 0 END),
		   COALESCE(SUM(CASE WHEN type <> 'impression' THEN value ELSE 0 END), 0),
		   COALESCE(SUM(CASE WHEN type <> 'impression' THEN value * value ELSE 0 END), 0)
		 FROM experiment_events WHERE experiment_id = $1 GROUP BY variant_id`,
		experimentID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: variant stats for %s", experimentID)
	}
	defer rows.Close()

	stats := make(map[string]model.VariantStats)
	for rows.Next() {
		var s model.VariantStats
		if err := rows.Scan(&s.VariantID, &s.Impressions, &s.Conversions, &s.ValueSum, &s.ValueSumSq); err != nil {
			return nil, eris.Wrap(err, "postgres: scan variant stats")
		}
		stats[s.VariantID] = s
	}
	return stats, eris.Wrapf(rows.Err(), "postgres: variant stats iterate for %s", experimentID)
}

// Optimizer reads

func (s *PostgresStore) GetPriceElasticity(ctx context.Context, contentType string, window time.Duration) (*model.ElasticityEstimate, error) {
	cutoff := time.Now().UTC().Add(-window)
	var e model.ElasticityEstimate
	err := s.pool.QueryRow(ctx,
		`SELECT content_type, score, confidence, window_start, window_end
		 FROM elasticity_estimates WHERE content_type = $1 AND window_end > $2
		 ORDER BY window_end DESC LIMIT 1`,
		contentType, cutoff,
	).Scan(&e.ContentType, &e.Score, &e.Confidence, &e.WindowStart, &e.WindowEnd)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "elasticity for %s", contentType)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get elasticity for %s", contentType)
	}
	return &e, nil
}

func (s *PostgresStore) GetCompetitorAnalysis(ctx context.Context, contentType string) (*model.CompetitorAnalysis, error) {
	var ca model.CompetitorAnalysis
	var avg, currency string
	err := s.pool.QueryRow(ctx,
		`SELECT content_type, avg_price, currency, competitors, collected_at
		 FROM competitor_analysis WHERE content_type = $1`,
		contentType,
	).Scan(&ca.ContentType, &avg, &currency, &ca.Competitors, &ca.CollectedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "competitor analysis for %s", contentType)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get competitor analysis for %s", contentType)
	}
	amt, err := decimal.NewFromString(avg)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: parse competitor average for %s", contentType)
	}
	ca.AveragePrice = model.Money{Amount: amt, Currency: currency}
	return &ca, nil
}

// helpers

// transitionConflict distinguishes a missing row from a status conflict
// after a conditional UPDATE touched nothing.
func (s *PostgresStore) transitionConflict(ctx context.Context, statusQuery, id, expected string) error {
	var current string
	err := s.pool.QueryRow(ctx, statusQuery, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return eris.Wrapf(ErrNotFound, "%s", id)
	}
	if err != nil {
		return eris.Wrapf(err, "postgres: check status of %s", id)
	}
	return eris.Wrapf(ErrConflict, "%s is %s, expected %s", id, current, expected)
}

type scannable interface {
	Scan(dest ...any) error
}

func scanQuote(row scannable) (*model.PriceQuote, error) {
	var q model.PriceQuote
	var price, currency, status string
	var projectRef *string
	err := row.Scan(&q.ID, &q.ClientID, &q.ContentType, &projectRef,
		&price, &currency, &status, &q.ValidUntil, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if projectRef != nil {
		q.ProjectRef = *projectRef
	}
	amt, err := decimal.NewFromString(price)
	if err != nil {
		return nil, eris.Wrap(err, "parse quote price")
	}
	q.Price = model.Money{Amount: amt, Currency: currency}
	q.Status = model.QuoteStatus(status)
	return &q, nil
}

func scanExperiment(row scannable) (*model.PricingExperiment, error) {
	var e model.PricingExperiment
	var metric, status string
	var hypothesis *string
	var variants []byte
	err := row.Scan(&e.ID, &e.Name, &hypothesis, &metric, &variants, &status,
		&e.RequiredSampleSize, &e.SignificanceLevel, &e.StartedAt, &e.EndedAt, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	if hypothesis != nil {
		e.Hypothesis = *hypothesis
	}
	e.Metric = model.TargetMetric(metric)
	e.Status = model.ExperimentStatus(status)
	if err := json.Unmarshal(variants, &e.Variants); err != nil {
		return nil, eris.Wrap(err, "unmarshal variants")
	}
	return &e, nil
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
