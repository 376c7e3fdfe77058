package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"FinFusion/internal/domain/models"
	"FinFusion/internal/domain/repository"
	applogger "FinFusion/pkg/logger"
)

const decisionsTable = "decisions"

// DecisionSchema creates the audit table. Rows keep the full decision as
// JSON next to the columns used for filtering.
func DecisionSchema(table string) []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
            ts           DateTime64(3, 'UTC'),
            decision_id  String,
            symbol       LowCardinality(String),
            action       LowCardinality(String),
            confidence   Float64,
            quantity     Float64,
            price_target Float64,
            risk_score   Float64,
            sharpe       Float64,
            payload      String
        ) ENGINE = MergeTree
        ORDER BY (symbol, ts)`, table),
	}
}

type schemaInitializer interface {
	InitSchema(ctx context.Context, stmts []string) error
}

// CHDecisionStore implements DecisionStore backed by ClickHouse.
type CHDecisionStore struct {
	db     *sql.DB
	schema schemaInitializer
	table  string
	l      *applogger.Logger
}

var _ repository.DecisionStore = (*CHDecisionStore)(nil)

func NewCHDecisionStore(db *sql.DB, schema schemaInitializer, l *applogger.Logger) *CHDecisionStore {
	if l == nil {
		l = applogger.NewNop()
	}
	return &CHDecisionStore{db: db, schema: schema, table: decisionsTable, l: l}
}

func (s *CHDecisionStore) Init(ctx context.Context) error {
	return s.schema.InitSchema(ctx, DecisionSchema(s.table))
}

func (s *CHDecisionStore) Store(ctx context.Context, d *models.TradingDecision) error {
	row, err := newDecisionRow(d)
	if err != nil {
		return err
	}

	q := fmt.Sprintf(`INSERT INTO %s
        (ts, decision_id, symbol, action, confidence, quantity, price_target, risk_score, sharpe, payload)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.table)
	if _, err := s.db.ExecContext(ctx, q, row.args()...); err != nil {
		s.l.Error("clickhouse store decision error",
			applogger.String("decision_id", d.DecisionID),
			applogger.String("symbol", d.Symbol),
			applogger.Error(err),
		)
		return fmt.Errorf("store decision: %w", err)
	}
	return nil
}

// Recent returns the newest decisions first. An empty symbol matches all.
func (s *CHDecisionStore) Recent(ctx context.Context, symbol string, limit int) ([]*models.TradingDecision, error) {
	start := time.Now()
	q := fmt.Sprintf(`SELECT payload FROM %s
        WHERE (? = '' OR symbol = ?)
        ORDER BY ts DESC
        LIMIT ?`, s.table)
	rows, err := s.db.QueryContext(ctx, q, symbol, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("recent decisions: %w", err)
	}
	defer rows.Close()

	out := make([]*models.TradingDecision, 0, limit)
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		var d models.TradingDecision
		if err := json.Unmarshal([]byte(payload), &d); err != nil {
			return nil, fmt.Errorf("decode decision: %w", err)
		}
		out = append(out, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	s.l.Debug("clickhouse recent decisions ok",
		applogger.String("symbol", symbol),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}

func (s *CHDecisionStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *CHDecisionStore) Name() string { return "clickhouse" }

func (s *CHDecisionStore) Ping(ctx context.Context) error { return s.Health(ctx) }

// Close is a no-op; the pool belongs to pkg/clickhouse.Client.
func (s *CHDecisionStore) Close() error { return nil }

type decisionRow struct {
	ts          time.Time
	decisionID  string
	symbol      string
	action      string
	confidence  float64
	quantity    float64
	priceTarget float64
	riskScore   float64
	sharpe      float64
	payload     string
}

func newDecisionRow(d *models.TradingDecision) (decisionRow, error) {
	if d == nil {
		return decisionRow{}, fmt.Errorf("store decision: nil decision")
	}
	payload, err := json.Marshal(d)
	if err != nil {
		return decisionRow{}, fmt.Errorf("encode decision: %w", err)
	}
	return decisionRow{
		ts:          d.Timestamp.UTC(),
		decisionID:  d.DecisionID,
		symbol:      d.Symbol,
		action:      string(d.Action),
		confidence:  d.Confidence,
		quantity:    d.Quantity,
		priceTarget: d.PriceTarget,
		riskScore:   d.RiskAssessment.RiskScore,
		sharpe:      d.RiskAssessment.SharpeEstimate,
		payload:     string(payload),
	}, nil
}

func (r decisionRow) args() []interface{} {
	return []interface{}{
		r.ts, r.decisionID, r.symbol, r.action, r.confidence,
		r.quantity, r.priceTarget, r.riskScore, r.sharpe, r.payload,
	}
}
