// Package store is the Event Store: a single SQLite database holding the
// cache, append-only intelligence events, SOL-flow edges, cartel edges,
// operator mappings, alert subscriptions, and bundle reports. Grounded on
// the teacher's pkg/db/store.go — same WAL-mode DSN suffix, same
// schema-as-string-constant pattern, same ON CONFLICT ... DO UPDATE
// upsert idiom (including the "keep the max" pattern the teacher uses for
// tracked_wallets.confidence, reused here for cartel edge strength).
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/lineage-agent/forensics/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS cache_entries (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	expires_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS intelligence_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	event_type TEXT NOT NULL,
	mint TEXT NOT NULL,
	deployer TEXT NOT NULL,
	name TEXT,
	symbol TEXT,
	narrative TEXT,
	mcap_usd REAL,
	liq_usd REAL,
	created_at DATETIME,
	rugged_at DATETIME,
	recorded_at DATETIME NOT NULL,
	extra TEXT
);
CREATE INDEX IF NOT EXISTS idx_events_mint ON intelligence_events(mint);
CREATE INDEX IF NOT EXISTS idx_events_deployer ON intelligence_events(deployer);
CREATE INDEX IF NOT EXISTS idx_events_type ON intelligence_events(event_type);

CREATE TABLE IF NOT EXISTS sol_flows (
	mint TEXT NOT NULL,
	from_address TEXT NOT NULL,
	to_address TEXT NOT NULL,
	amount_lamports INTEGER NOT NULL,
	signature TEXT NOT NULL,
	slot INTEGER NOT NULL,
	block_time DATETIME,
	hop INTEGER NOT NULL,
	PRIMARY KEY (mint, signature, from_address, to_address)
);
CREATE INDEX IF NOT EXISTS idx_sol_flows_mint ON sol_flows(mint);

CREATE TABLE IF NOT EXISTS cartel_edges (
	wallet_a TEXT NOT NULL,
	wallet_b TEXT NOT NULL,
	signal_type TEXT NOT NULL,
	signal_strength REAL NOT NULL,
	evidence TEXT,
	updated_at DATETIME NOT NULL,
	PRIMARY KEY (wallet_a, wallet_b, signal_type)
);

CREATE TABLE IF NOT EXISTS operator_mappings (
	fingerprint TEXT NOT NULL,
	wallet TEXT NOT NULL,
	PRIMARY KEY (fingerprint, wallet)
);

CREATE TABLE IF NOT EXISTS alert_subscriptions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	chat_id INTEGER NOT NULL,
	sub_type TEXT NOT NULL,
	value TEXT NOT NULL,
	UNIQUE(chat_id, sub_type, value)
);

CREATE TABLE IF NOT EXISTS bundle_reports (
	mint TEXT PRIMARY KEY,
	report_json TEXT NOT NULL,
	computed_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS sol_flow_reports (
	mint TEXT PRIMARY KEY,
	report_json TEXT NOT NULL,
	computed_at DATETIME NOT NULL
);
`

// Store wraps the forensic pipeline's single SQLite database.
type Store struct {
	db *sql.DB
}

// New opens (creating if needed) the SQLite database at dbPath in WAL mode
// and applies the schema.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", dbPath, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// Cache (§3 CacheEntry / §4.1)
// ---------------------------------------------------------------------------

// CacheGet returns the cached JSON value for key, or ok=false if the key is
// missing or expired.
func (s *Store) CacheGet(key string) (value string, ok bool, err error) {
	row := s.db.QueryRow(`SELECT value FROM cache_entries WHERE key = ? AND expires_at > ?`, key, time.Now().UTC())
	if err := row.Scan(&value); err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, fmt.Errorf("store: cache get %s: %w", key, err)
	}
	return value, true, nil
}

// CacheSet writes key=value with a TTL, overwriting any prior entry.
func (s *Store) CacheSet(key, value string, ttl time.Duration) error {
	_, err := s.db.Exec(`
		INSERT INTO cache_entries (key, value, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		key, value, time.Now().UTC().Add(ttl))
	if err != nil {
		return fmt.Errorf("store: cache set %s: %w", key, err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Intelligence events (append-only, §3 TokenEvent)
// ---------------------------------------------------------------------------

// RecordEvent appends a TokenEvent to the event log.
func (s *Store) RecordEvent(ev models.TokenEvent) error {
	extra, err := json.Marshal(ev.Extra)
	if err != nil {
		return fmt.Errorf("store: marshal event extra: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO intelligence_events
			(event_type, mint, deployer, name, symbol, narrative, mcap_usd, liq_usd, created_at, rugged_at, recorded_at, extra)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.EventType, ev.Mint, ev.Deployer, ev.Name, ev.Symbol, ev.Narrative,
		ev.McapUSD, ev.LiqUSD, ev.CreatedAt, ev.RuggedAt, time.Now().UTC(), string(extra))
	if err != nil {
		return fmt.Errorf("store: record event: %w", err)
	}
	return nil
}

// EventsByDeployer returns all events recorded for a deployer, ordered by
// creation time, used by the Death Clock / Factory Rhythm derivations.
func (s *Store) EventsByDeployer(deployer string) ([]models.TokenEvent, error) {
	rows, err := s.db.Query(`
		SELECT id, event_type, mint, deployer, name, symbol, narrative, mcap_usd, liq_usd, created_at, rugged_at, recorded_at, extra
		FROM intelligence_events WHERE deployer = ? ORDER BY created_at ASC`, deployer)
	if err != nil {
		return nil, fmt.Errorf("store: events by deployer: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// EventsByMint returns all events recorded for a mint.
func (s *Store) EventsByMint(mint string) ([]models.TokenEvent, error) {
	rows, err := s.db.Query(`
		SELECT id, event_type, mint, deployer, name, symbol, narrative, mcap_usd, liq_usd, created_at, rugged_at, recorded_at, extra
		FROM intelligence_events WHERE mint = ? ORDER BY created_at ASC`, mint)
	if err != nil {
		return nil, fmt.Errorf("store: events by mint: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]models.TokenEvent, error) {
	var out []models.TokenEvent
	for rows.Next() {
		var ev models.TokenEvent
		var extra sql.NullString
		var createdAt, ruggedAt sql.NullTime
		if err := rows.Scan(&ev.ID, &ev.EventType, &ev.Mint, &ev.Deployer, &ev.Name, &ev.Symbol,
			&ev.Narrative, &ev.McapUSD, &ev.LiqUSD, &createdAt, &ruggedAt, &ev.RecordedAt, &extra); err != nil {
			return nil, fmt.Errorf("store: scan event: %w", err)
		}
		if createdAt.Valid {
			ev.CreatedAt = createdAt.Time
		}
		if ruggedAt.Valid {
			t := ruggedAt.Time
			ev.RuggedAt = &t
		}
		if extra.Valid && extra.String != "" {
			_ = json.Unmarshal([]byte(extra.String), &ev.Extra)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// ---------------------------------------------------------------------------
// SOL flow edges (§3 SolFlowEdge)
// ---------------------------------------------------------------------------

// InsertSolFlowBatch idempotently persists a batch of SOL-flow edges for one
// hop, tolerating re-traces of the same signature/destination pair.
func (s *Store) InsertSolFlowBatch(edges []models.SolFlowEdge) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("store: begin sol flow batch: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO sol_flows (mint, from_address, to_address, amount_lamports, signature, slot, block_time, hop)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(mint, signature, from_address, to_address) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("store: prepare sol flow insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range edges {
		if _, err := stmt.Exec(e.Mint, e.FromAddress, e.ToAddress, e.AmountLamports, e.Signature, e.Slot, e.BlockTime, e.Hop); err != nil {
			return fmt.Errorf("store: insert sol flow edge: %w", err)
		}
	}
	return tx.Commit()
}

// SolFlowEdgesByMint returns every persisted SOL-flow edge for a mint.
func (s *Store) SolFlowEdgesByMint(mint string) ([]models.SolFlowEdge, error) {
	rows, err := s.db.Query(`
		SELECT mint, from_address, to_address, amount_lamports, signature, slot, block_time, hop
		FROM sol_flows WHERE mint = ? ORDER BY hop ASC, slot ASC`, mint)
	if err != nil {
		return nil, fmt.Errorf("store: sol flow edges by mint: %w", err)
	}
	defer rows.Close()

	var out []models.SolFlowEdge
	for rows.Next() {
		var e models.SolFlowEdge
		var blockTime sql.NullTime
		if err := rows.Scan(&e.Mint, &e.FromAddress, &e.ToAddress, &e.AmountLamports, &e.Signature, &e.Slot, &blockTime, &e.Hop); err != nil {
			return nil, fmt.Errorf("store: scan sol flow edge: %w", err)
		}
		if blockTime.Valid {
			t := blockTime.Time
			e.BlockTime = &t
		}
		e.AmountSOL = float64(e.AmountLamports) / 1_000_000_000
		out = append(out, e)
	}
	return out, rows.Err()
}

// ---------------------------------------------------------------------------
// Cartel edges (§3 CartelEdge) — upsert keeps the max observed strength,
// mirroring the teacher's tracked_wallets.confidence = MAX(...) pattern.
// ---------------------------------------------------------------------------

// UpsertCartelEdge writes an edge, keeping the stronger of the old/new
// signal strength when the (wallet_a, wallet_b, signal_type) key repeats.
func (s *Store) UpsertCartelEdge(e models.CartelEdge) error {
	a, b := e.WalletA, e.WalletB
	if a > b {
		a, b = b, a
	}
	evidence, err := json.Marshal(e.Evidence)
	if err != nil {
		return fmt.Errorf("store: marshal cartel evidence: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO cartel_edges (wallet_a, wallet_b, signal_type, signal_strength, evidence, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(wallet_a, wallet_b, signal_type) DO UPDATE SET
			signal_strength = MAX(cartel_edges.signal_strength, excluded.signal_strength),
			evidence = CASE WHEN excluded.signal_strength > cartel_edges.signal_strength THEN excluded.evidence ELSE cartel_edges.evidence END,
			updated_at = excluded.updated_at`,
		a, b, string(e.SignalType), e.SignalStrength, string(evidence), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("store: upsert cartel edge: %w", err)
	}
	return nil
}

// CartelEdgesForWallets returns every persisted edge touching any of wallets.
func (s *Store) CartelEdgesForWallets(wallets []string) ([]models.CartelEdge, error) {
	if len(wallets) == 0 {
		return nil, nil
	}
	set := make(map[string]bool, len(wallets))
	for _, w := range wallets {
		set[w] = true
	}
	rows, err := s.db.Query(`SELECT wallet_a, wallet_b, signal_type, signal_strength, evidence FROM cartel_edges`)
	if err != nil {
		return nil, fmt.Errorf("store: cartel edges query: %w", err)
	}
	defer rows.Close()

	var out []models.CartelEdge
	for rows.Next() {
		var e models.CartelEdge
		var evidence sql.NullString
		var signalType string
		if err := rows.Scan(&e.WalletA, &e.WalletB, &signalType, &e.SignalStrength, &evidence); err != nil {
			return nil, fmt.Errorf("store: scan cartel edge: %w", err)
		}
		if !set[e.WalletA] && !set[e.WalletB] {
			continue
		}
		e.SignalType = models.CartelSignalType(signalType)
		if evidence.Valid && evidence.String != "" {
			_ = json.Unmarshal([]byte(evidence.String), &e.Evidence)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ---------------------------------------------------------------------------
// Operator mappings (§3 OperatorMapping)
// ---------------------------------------------------------------------------

// UpsertOperatorMapping links wallet to fingerprint, idempotently.
func (s *Store) UpsertOperatorMapping(fingerprint, wallet string) error {
	_, err := s.db.Exec(`
		INSERT INTO operator_mappings (fingerprint, wallet) VALUES (?, ?)
		ON CONFLICT(fingerprint, wallet) DO NOTHING`, fingerprint, wallet)
	if err != nil {
		return fmt.Errorf("store: upsert operator mapping: %w", err)
	}
	return nil
}

// WalletsForFingerprint returns every wallet sharing a fingerprint.
func (s *Store) WalletsForFingerprint(fingerprint string) ([]string, error) {
	rows, err := s.db.Query(`SELECT wallet FROM operator_mappings WHERE fingerprint = ?`, fingerprint)
	if err != nil {
		return nil, fmt.Errorf("store: wallets for fingerprint: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var w string
		if err := rows.Scan(&w); err != nil {
			return nil, fmt.Errorf("store: scan wallet: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// ---------------------------------------------------------------------------
// Alert subscriptions (§3 AlertSubscription)
// ---------------------------------------------------------------------------

// Subscribe registers a chat for alerts matching subType/value.
func (s *Store) Subscribe(chatID int64, subType, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO alert_subscriptions (chat_id, sub_type, value) VALUES (?, ?, ?)
		ON CONFLICT(chat_id, sub_type, value) DO NOTHING`, chatID, subType, value)
	if err != nil {
		return fmt.Errorf("store: subscribe: %w", err)
	}
	return nil
}

// Unsubscribe removes a chat's subscription.
func (s *Store) Unsubscribe(chatID int64, subType, value string) error {
	_, err := s.db.Exec(`
		DELETE FROM alert_subscriptions WHERE chat_id = ? AND sub_type = ? AND value = ?`, chatID, subType, value)
	if err != nil {
		return fmt.Errorf("store: unsubscribe: %w", err)
	}
	return nil
}

// ListSubscriptions returns every subscription of subType, used by sweeps
// to find who to notify.
func (s *Store) ListSubscriptions(subType string) ([]models.AlertSubscription, error) {
	rows, err := s.db.Query(`SELECT id, chat_id, sub_type, value FROM alert_subscriptions WHERE sub_type = ?`, subType)
	if err != nil {
		return nil, fmt.Errorf("store: list subscriptions: %w", err)
	}
	defer rows.Close()
	var out []models.AlertSubscription
	for rows.Next() {
		var sub models.AlertSubscription
		if err := rows.Scan(&sub.ID, &sub.ChatID, &sub.SubType, &sub.Value); err != nil {
			return nil, fmt.Errorf("store: scan subscription: %w", err)
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

// ---------------------------------------------------------------------------
// Bundle / SOL-flow report cache (24h TTL, per original_source)
// ---------------------------------------------------------------------------

const reportTTL = 24 * time.Hour

// BundleReportGet returns a cached BundleExtractionReport if computed within
// the last 24 hours.
func (s *Store) BundleReportGet(mint string) (*models.BundleExtractionReport, bool, error) {
	row := s.db.QueryRow(`SELECT report_json, computed_at FROM bundle_reports WHERE mint = ?`, mint)
	var raw string
	var computedAt time.Time
	if err := row.Scan(&raw, &computedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("store: bundle report get: %w", err)
	}
	if time.Since(computedAt) > reportTTL {
		return nil, false, nil
	}
	var report models.BundleExtractionReport
	if err := json.Unmarshal([]byte(raw), &report); err != nil {
		return nil, false, fmt.Errorf("store: unmarshal bundle report: %w", err)
	}
	return &report, true, nil
}

// BundleReportPut persists a freshly computed bundle report.
func (s *Store) BundleReportPut(report models.BundleExtractionReport) error {
	raw, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("store: marshal bundle report: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO bundle_reports (mint, report_json, computed_at) VALUES (?, ?, ?)
		ON CONFLICT(mint) DO UPDATE SET report_json = excluded.report_json, computed_at = excluded.computed_at`,
		report.Mint, string(raw), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("store: put bundle report: %w", err)
	}
	return nil
}

// SolFlowReportGet returns a persisted SOL-flow report regardless of age
// (callers re-trace explicitly; this is a read-through cache, not a TTL).
func (s *Store) SolFlowReportGet(mint string) (*models.SolFlowReport, bool, error) {
	row := s.db.QueryRow(`SELECT report_json FROM sol_flow_reports WHERE mint = ?`, mint)
	var raw string
	if err := row.Scan(&raw); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("store: sol flow report get: %w", err)
	}
	var report models.SolFlowReport
	if err := json.Unmarshal([]byte(raw), &report); err != nil {
		return nil, false, fmt.Errorf("store: unmarshal sol flow report: %w", err)
	}
	return &report, true, nil
}

// SolFlowReportPut persists a freshly computed SOL-flow report.
func (s *Store) SolFlowReportPut(report models.SolFlowReport) error {
	raw, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("store: marshal sol flow report: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO sol_flow_reports (mint, report_json, computed_at) VALUES (?, ?, ?)
		ON CONFLICT(mint) DO UPDATE SET report_json = excluded.report_json, computed_at = excluded.computed_at`,
		report.Mint, string(raw), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("store: put sol flow report: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Sweep support queries, grounded on rug_detector.py / cartel_service.py /
// alert_service.py / db_maintenance.py's event_query call sites.
// ---------------------------------------------------------------------------

// RugSweepCandidate is a token_created row eligible for rug re-check.
type RugSweepCandidate struct {
	Mint      string
	Deployer  string
	LiqUSD    float64
	CreatedAt time.Time
}

// RugSweepCandidates returns token_created events with liq_usd above
// minRecordedLiq, recorded within lookback of now, that have no matching
// token_rugged event yet — mirroring rug_detector.py's _run_rug_sweep query.
func (s *Store) RugSweepCandidates(minRecordedLiq float64, lookback time.Duration, limit int) ([]RugSweepCandidate, error) {
	cutoff := time.Now().UTC().Add(-lookback)
	rows, err := s.db.Query(`
		SELECT mint, deployer, liq_usd, created_at FROM intelligence_events
		WHERE event_type = 'token_created' AND liq_usd > ? AND recorded_at > ?
		AND mint NOT IN (SELECT mint FROM intelligence_events WHERE event_type = 'token_rugged')
		LIMIT ?`, minRecordedLiq, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("store: rug sweep candidates: %w", err)
	}
	defer rows.Close()

	var out []RugSweepCandidate
	for rows.Next() {
		var c RugSweepCandidate
		var createdAt sql.NullTime
		if err := rows.Scan(&c.Mint, &c.Deployer, &c.LiqUSD, &createdAt); err != nil {
			return nil, fmt.Errorf("store: scan rug sweep candidate: %w", err)
		}
		if createdAt.Valid {
			c.CreatedAt = createdAt.Time
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DeployersWithAtLeastTokens returns every deployer with at least min
// token_created events, used to bound the cartel sweep's working set.
func (s *Store) DeployersWithAtLeastTokens(min int) ([]string, error) {
	rows, err := s.db.Query(`
		SELECT deployer FROM intelligence_events WHERE event_type = 'token_created'
		GROUP BY deployer HAVING COUNT(*) >= ?`, min)
	if err != nil {
		return nil, fmt.Errorf("store: deployers with min tokens: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("store: scan deployer: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// EventsSince returns token_created events of the given narrative or
// deployer (whichever is non-empty) recorded after cutoff, used by the
// alert sweep to find new matches for a subscription.
func (s *Store) EventsSince(deployer, narrative string, cutoff time.Time, limit int) ([]models.TokenEvent, error) {
	var rows *sql.Rows
	var err error
	switch {
	case deployer != "":
		rows, err = s.db.Query(`
			SELECT id, event_type, mint, deployer, name, symbol, narrative, mcap_usd, liq_usd, created_at, rugged_at, recorded_at, extra
			FROM intelligence_events WHERE event_type = 'token_created' AND deployer = ? AND recorded_at > ? LIMIT ?`,
			deployer, cutoff, limit)
	case narrative != "":
		rows, err = s.db.Query(`
			SELECT id, event_type, mint, deployer, name, symbol, narrative, mcap_usd, liq_usd, created_at, rugged_at, recorded_at, extra
			FROM intelligence_events WHERE event_type = 'token_created' AND narrative = ? AND recorded_at > ? LIMIT ?`,
			narrative, cutoff, limit)
	default:
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: events since: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// EventsByNarrative returns every token_created event for narrative created
// after cutoff, ordered oldest-first, used by Narrative Timing.
func (s *Store) EventsByNarrative(narrative string, cutoff time.Time) ([]models.TokenEvent, error) {
	rows, err := s.db.Query(`
		SELECT id, event_type, mint, deployer, name, symbol, narrative, mcap_usd, liq_usd, created_at, rugged_at, recorded_at, extra
		FROM intelligence_events
		WHERE event_type = 'token_created' AND narrative = ? AND recorded_at > ? AND created_at IS NOT NULL
		ORDER BY created_at ASC`, narrative, cutoff)
	if err != nil {
		return nil, fmt.Errorf("store: events by narrative: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// EventsForMints returns every event of eventType whose mint is in mints.
func (s *Store) EventsForMints(eventType string, mints []string) ([]models.TokenEvent, error) {
	if len(mints) == 0 {
		return nil, nil
	}
	placeholders := make([]byte, 0, len(mints)*2)
	args := make([]interface{}, 0, len(mints)+1)
	args = append(args, eventType)
	for i, m := range mints {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
		args = append(args, m)
	}
	query := fmt.Sprintf(`
		SELECT id, event_type, mint, deployer, name, symbol, narrative, mcap_usd, liq_usd, created_at, rugged_at, recorded_at, extra
		FROM intelligence_events WHERE event_type = ? AND mint IN (%s)`, string(placeholders))
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: events for mints: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// AllSubscriptions returns every registered alert subscription.
func (s *Store) AllSubscriptions() ([]models.AlertSubscription, error) {
	rows, err := s.db.Query(`SELECT id, chat_id, sub_type, value FROM alert_subscriptions`)
	if err != nil {
		return nil, fmt.Errorf("store: all subscriptions: %w", err)
	}
	defer rows.Close()
	var out []models.AlertSubscription
	for rows.Next() {
		var sub models.AlertSubscription
		if err := rows.Scan(&sub.ID, &sub.ChatID, &sub.SubType, &sub.Value); err != nil {
			return nil, fmt.Errorf("store: scan subscription: %w", err)
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

// AllOperatorMappings returns every (fingerprint, wallet) pair, used by the
// cartel sweep's global DNA-match signal.
func (s *Store) AllOperatorMappings() ([]models.OperatorMapping, error) {
	rows, err := s.db.Query(`SELECT fingerprint, wallet FROM operator_mappings`)
	if err != nil {
		return nil, fmt.Errorf("store: all operator mappings: %w", err)
	}
	defer rows.Close()
	var out []models.OperatorMapping
	for rows.Next() {
		var m models.OperatorMapping
		if err := rows.Scan(&m.Fingerprint, &m.Wallet); err != nil {
			return nil, fmt.Errorf("store: scan operator mapping: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// UpdateEventExtra merges extra into the first matching token_created event's
// JSON blob for (mint, deployer), used to cache per-token LP-provider/early-
// buyer sets so the cartel financial signals skip redundant RPC work.
func (s *Store) UpdateEventExtra(mint, deployer string, extra map[string]interface{}) error {
	raw, err := json.Marshal(extra)
	if err != nil {
		return fmt.Errorf("store: marshal event extra update: %w", err)
	}
	_, err = s.db.Exec(`
		UPDATE intelligence_events SET extra = ?
		WHERE event_type = 'token_created' AND mint = ? AND deployer = ?`, string(raw), mint, deployer)
	if err != nil {
		return fmt.Errorf("store: update event extra: %w", err)
	}
	return nil
}

// SolFlowEdgesFromAddress returns every persisted SOL-flow edge whose
// from_address matches wallet, across all mints, used by the cartel sweep's
// sol_transfer signal.
func (s *Store) SolFlowEdgesFromAddress(wallet string) ([]models.SolFlowEdge, error) {
	rows, err := s.db.Query(`
		SELECT mint, from_address, to_address, amount_lamports, signature, slot, block_time, hop
		FROM sol_flows WHERE from_address = ?`, wallet)
	if err != nil {
		return nil, fmt.Errorf("store: sol flow edges from address: %w", err)
	}
	defer rows.Close()
	var out []models.SolFlowEdge
	for rows.Next() {
		var e models.SolFlowEdge
		var blockTime sql.NullTime
		if err := rows.Scan(&e.Mint, &e.FromAddress, &e.ToAddress, &e.AmountLamports, &e.Signature, &e.Slot, &blockTime, &e.Hop); err != nil {
			return nil, fmt.Errorf("store: scan sol flow edge: %w", err)
		}
		if blockTime.Valid {
			t := blockTime.Time
			e.BlockTime = &t
		}
		e.AmountSOL = float64(e.AmountLamports) / 1_000_000_000
		out = append(out, e)
	}
	return out, rows.Err()
}

// ---------------------------------------------------------------------------
// Maintenance (db_maintenance.py: TTL purge + WAL checkpoint + vacuum)
// ---------------------------------------------------------------------------

// PurgeExpiredCache deletes cache rows past their expiry, returning the
// number removed.
func (s *Store) PurgeExpiredCache() (int64, error) {
	res, err := s.db.Exec(`DELETE FROM cache_entries WHERE expires_at < ?`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("store: purge expired cache: %w", err)
	}
	return res.RowsAffected()
}

// PurgeOldSolFlows deletes sol_flows rows older than maxAge.
func (s *Store) PurgeOldSolFlows(maxAge time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-maxAge)
	res, err := s.db.Exec(`DELETE FROM sol_flows WHERE block_time IS NOT NULL AND block_time < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("store: purge old sol flows: %w", err)
	}
	return res.RowsAffected()
}

// PurgeOldEvents deletes intelligence_events rows older than maxAge.
func (s *Store) PurgeOldEvents(maxAge time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-maxAge)
	res, err := s.db.Exec(`DELETE FROM intelligence_events WHERE recorded_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("store: purge old events: %w", err)
	}
	return res.RowsAffected()
}

// Checkpoint forces a WAL checkpoint to keep the WAL file bounded.
func (s *Store) Checkpoint() error {
	_, err := s.db.Exec(`PRAGMA wal_checkpoint(TRUNCATE)`)
	if err != nil {
		return fmt.Errorf("store: wal checkpoint: %w", err)
	}
	return nil
}

// IncrementalVacuum reclaims free pages without a full VACUUM rebuild.
func (s *Store) IncrementalVacuum() error {
	if _, err := s.db.Exec(`PRAGMA auto_vacuum = INCREMENTAL`); err != nil {
		return fmt.Errorf("store: set auto_vacuum: %w", err)
	}
	if _, err := s.db.Exec(`PRAGMA incremental_vacuum(500)`); err != nil {
		return fmt.Errorf("store: incremental vacuum: %w", err)
	}
	return nil
}
