package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/vulbsti/loanmatchmaker/model"
	_ "modernc.org/sqlite"
)

// SQLiteStore is a SQLite implementation of SessionStore. It stores the five
// session-scoped relations named in spec §6: sessions, loan_parameters,
// parameter_tracking, conversation_history, match_results (the lender
// catalogue is not stored here). ChatMessage.Seq is assigned as one more
// than the session's current MAX(seq). JSON columns hold nested structures that
// have no stable query shape (e.g. match reasons/warnings).
type SQLiteStore struct {
	db   *sql.DB
	mu   sync.RWMutex
	path string

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewSQLiteStore opens (creating if necessary) a SQLite-backed store at
// dbPath. An empty dbPath opens an in-memory database.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = ":memory:"
	}

	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create directory for database: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLiteStore{
		db:    db,
		path:  dbPath,
		locks: make(map[string]*sync.Mutex),
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		session_id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		user_agent TEXT,
		client_ip TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		expires_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at);

	CREATE TABLE IF NOT EXISTS loan_parameters (
		session_id TEXT PRIMARY KEY REFERENCES sessions(session_id),
		data TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS parameter_tracking (
		session_id TEXT PRIMARY KEY REFERENCES sessions(session_id),
		has_loan_amount INTEGER NOT NULL DEFAULT 0,
		has_annual_income INTEGER NOT NULL DEFAULT 0,
		has_employment_status INTEGER NOT NULL DEFAULT 0,
		has_credit_score INTEGER NOT NULL DEFAULT 0,
		has_loan_purpose INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS conversation_history (
		message_id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL REFERENCES sessions(session_id),
		seq INTEGER NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		agent_type TEXT NOT NULL DEFAULT '',
		metadata TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_history_session_created ON conversation_history(session_id, created_at);

	CREATE TABLE IF NOT EXISTS match_results (
		session_id TEXT NOT NULL REFERENCES sessions(session_id),
		lender_id TEXT NOT NULL,
		lender_name TEXT NOT NULL,
		eligibility_score INTEGER NOT NULL,
		affordability_score INTEGER NOT NULL,
		specialization_score INTEGER NOT NULL,
		final_score INTEGER NOT NULL,
		confidence INTEGER NOT NULL,
		reasons TEXT,
		warnings TEXT,
		rank INTEGER NOT NULL,
		path TEXT NOT NULL,
		calculated_at INTEGER NOT NULL,
		PRIMARY KEY (session_id, lender_id)
	);
	CREATE INDEX IF NOT EXISTS idx_match_results_session_score ON match_results(session_id, final_score DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) Shutdown() error {
	return s.db.Close()
}

// Ping verifies the underlying connection is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) sessionLock(sessionID string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[sessionID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[sessionID] = l
	}
	return l
}

// WithSessionLock serialises mutations for one session (spec §5).
func (s *SQLiteStore) WithSessionLock(sessionID string, fn func() error) error {
	l := s.sessionLock(sessionID)
	l.Lock()
	defer l.Unlock()
	return fn()
}

func (s *SQLiteStore) Open(fp *model.Fingerprint) (*model.Session, error) {
	sess := model.NewSession(fp)

	var userAgent, clientIP sql.NullString
	if fp != nil {
		userAgent = sql.NullString{String: fp.UserAgent, Valid: fp.UserAgent != ""}
		clientIP = sql.NullString{String: fp.IP, Valid: fp.IP != ""}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO sessions (session_id, status, user_agent, client_ip, created_at, updated_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sess.SessionID, string(sess.Status), userAgent, clientIP,
		sess.CreatedAt.Unix(), sess.UpdatedAt.Unix(), sess.ExpiresAt.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	params, _ := json.Marshal(model.LoanParameters{})
	if _, err := s.db.Exec(`INSERT INTO loan_parameters (session_id, data) VALUES (?, ?)`, sess.SessionID, string(params)); err != nil {
		return nil, fmt.Errorf("failed to seed parameters: %w", err)
	}
	if _, err := s.db.Exec(`INSERT INTO parameter_tracking (session_id) VALUES (?)`, sess.SessionID); err != nil {
		return nil, fmt.Errorf("failed to seed tracking: %w", err)
	}

	return sess, nil
}

func (s *SQLiteStore) loadSessionUnsafe(sessionID string) (*model.Session, error) {
	var status string
	var userAgent, clientIP sql.NullString
	var createdAt, updatedAt, expiresAt int64

	err := s.db.QueryRow(
		`SELECT status, user_agent, client_ip, created_at, updated_at, expires_at FROM sessions WHERE session_id = ?`,
		sessionID,
	).Scan(&status, &userAgent, &clientIP, &createdAt, &updatedAt, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, model.NewNotFoundError("session not found: " + sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query session: %w", err)
	}

	sess := &model.Session{
		SessionID: sessionID,
		Status:    model.SessionStatus(status),
		CreatedAt: time.Unix(createdAt, 0),
		UpdatedAt: time.Unix(updatedAt, 0),
		ExpiresAt: time.Unix(expiresAt, 0),
	}
	if userAgent.Valid || clientIP.Valid {
		sess.Fingerprint = &model.Fingerprint{UserAgent: userAgent.String, IP: clientIP.String}
	}
	return sess, nil
}

func (s *SQLiteStore) Load(sessionID string) (*model.SessionSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.loadSessionUnsafe(sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status == model.SessionExpired || time.Now().After(sess.ExpiresAt) {
		return nil, model.NewExpiredError("session expired: " + sessionID)
	}

	params, tracking, err := s.getParametersUnsafe(sessionID)
	if err != nil {
		return nil, err
	}

	history, err := s.getHistoryUnsafe(sessionID)
	if err != nil {
		return nil, err
	}

	return &model.SessionSnapshot{
		Session:    sess,
		Parameters: params,
		Tracking:   tracking,
		History:    history,
	}, nil
}

func (s *SQLiteStore) getHistoryUnsafe(sessionID string) ([]model.ChatMessage, error) {
	rows, err := s.db.Query(
		`SELECT message_id, seq, role, content, agent_type, metadata, created_at
		 FROM conversation_history WHERE session_id = ? ORDER BY seq ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var out []model.ChatMessage
	for rows.Next() {
		var m model.ChatMessage
		var agentType string
		var metadata sql.NullString
		var createdAt int64
		if err := rows.Scan(&m.ID, &m.Seq, &m.Role, &m.Content, &agentType, &metadata, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m.SessionID = sessionID
		m.AgentType = model.AgentType(agentType)
		m.CreatedAt = time.Unix(createdAt, 0)
		if metadata.Valid && metadata.String != "" {
			_ = json.Unmarshal([]byte(metadata.String), &m.Metadata)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) AppendMessage(sessionID string, msg model.ChatMessage) (model.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.loadSessionUnsafe(sessionID); err != nil {
		return model.ChatMessage{}, err
	}

	var maxSeq sql.NullInt64
	if err := s.db.QueryRow(`SELECT MAX(seq) FROM conversation_history WHERE session_id = ?`, sessionID).Scan(&maxSeq); err != nil {
		return model.ChatMessage{}, fmt.Errorf("failed to read sequence: %w", err)
	}
	msg.Seq = int(maxSeq.Int64) + 1
	msg.SessionID = sessionID
	msg.CreatedAt = time.Now()
	if msg.ID == "" {
		msg.ID = sessionID + "-m" + strconv.Itoa(msg.Seq)
	}

	var metadata []byte
	if len(msg.Metadata) > 0 {
		var err error
		metadata, err = json.Marshal(msg.Metadata)
		if err != nil {
			return model.ChatMessage{}, fmt.Errorf("failed to marshal metadata: %w", err)
		}
	}

	_, err := s.db.Exec(
		`INSERT INTO conversation_history (message_id, session_id, seq, role, content, agent_type, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.SessionID, msg.Seq, string(msg.Role), msg.Content, string(msg.AgentType), string(metadata), msg.CreatedAt.Unix(),
	)
	if err != nil {
		return model.ChatMessage{}, fmt.Errorf("failed to append message: %w", err)
	}
	return msg, nil
}

func (s *SQLiteStore) Touch(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`UPDATE sessions SET updated_at = ? WHERE session_id = ?`, time.Now().Unix(), sessionID)
	if err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return model.NewNotFoundError("session not found: " + sessionID)
	}
	return nil
}

func (s *SQLiteStore) Close(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		`UPDATE sessions SET status = ?, updated_at = ? WHERE session_id = ?`,
		string(model.SessionCompleted), time.Now().Unix(), sessionID,
	)
	if err != nil {
		return fmt.Errorf("failed to close session: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return model.NewNotFoundError("session not found: " + sessionID)
	}
	return nil
}

func (s *SQLiteStore) SweepExpired() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		`UPDATE sessions SET status = ? WHERE status = ? AND expires_at < ?`,
		string(model.SessionExpired), string(model.SessionActive), time.Now().Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep expired sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *SQLiteStore) getParametersUnsafe(sessionID string) (model.LoanParameters, model.ParameterTracking, error) {
	var data string
	err := s.db.QueryRow(`SELECT data FROM loan_parameters WHERE session_id = ?`, sessionID).Scan(&data)
	if err == sql.ErrNoRows {
		return model.LoanParameters{}, model.ParameterTracking{}, model.NewNotFoundError("session not found: " + sessionID)
	}
	if err != nil {
		return model.LoanParameters{}, model.ParameterTracking{}, fmt.Errorf("failed to query parameters: %w", err)
	}
	var params model.LoanParameters
	if err := json.Unmarshal([]byte(data), &params); err != nil {
		return model.LoanParameters{}, model.ParameterTracking{}, fmt.Errorf("failed to unmarshal parameters: %w", err)
	}

	var t model.ParameterTracking
	var hla, hai, hes, hcs, hlp int
	err = s.db.QueryRow(
		`SELECT has_loan_amount, has_annual_income, has_employment_status, has_credit_score, has_loan_purpose
		 FROM parameter_tracking WHERE session_id = ?`, sessionID,
	).Scan(&hla, &hai, &hes, &hcs, &hlp)
	if err != nil && err != sql.ErrNoRows {
		return model.LoanParameters{}, model.ParameterTracking{}, fmt.Errorf("failed to query tracking: %w", err)
	}
	t.HasLoanAmount = hla != 0
	t.HasAnnualIncome = hai != 0
	t.HasEmploymentStatus = hes != 0
	t.HasCreditScore = hcs != 0
	t.HasLoanPurpose = hlp != 0

	return params, t, nil
}

func (s *SQLiteStore) GetParameters(sessionID string) (model.LoanParameters, model.ParameterTracking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getParametersUnsafe(sessionID)
}

func (s *SQLiteStore) SaveParameters(sessionID string, params model.LoanParameters, tracking model.ParameterTracking) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("failed to marshal parameters: %w", err)
	}

	if _, err := s.db.Exec(`INSERT OR REPLACE INTO loan_parameters (session_id, data) VALUES (?, ?)`, sessionID, string(data)); err != nil {
		return fmt.Errorf("failed to store parameters: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO parameter_tracking
		 (session_id, has_loan_amount, has_annual_income, has_employment_status, has_credit_score, has_loan_purpose)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sessionID, boolToInt(tracking.HasLoanAmount), boolToInt(tracking.HasAnnualIncome),
		boolToInt(tracking.HasEmploymentStatus), boolToInt(tracking.HasCreditScore), boolToInt(tracking.HasLoanPurpose),
	)
	if err != nil {
		return fmt.Errorf("failed to store tracking: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ReplaceMatches(sessionID string, matches []model.LenderMatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM match_results WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("failed to clear matches: %w", err)
	}

	for _, m := range matches {
		reasons, _ := json.Marshal(m.Reasons)
		warnings, _ := json.Marshal(m.Warnings)
		_, err := tx.Exec(
			`INSERT INTO match_results
			 (session_id, lender_id, lender_name, eligibility_score, affordability_score, specialization_score,
			  final_score, confidence, reasons, warnings, rank, path, calculated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sessionID, m.LenderID, m.LenderName, m.EligibilityScore, m.AffordabilityScore, m.SpecializationScore,
			m.FinalScore, m.Confidence, string(reasons), string(warnings), m.Rank, m.Path, m.CalculatedAt.Unix(),
		)
		if err != nil {
			return fmt.Errorf("failed to store match: %w", err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) GetMatches(sessionID string) ([]model.LenderMatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT lender_id, lender_name, eligibility_score, affordability_score, specialization_score,
		        final_score, confidence, reasons, warnings, rank, path, calculated_at
		 FROM match_results WHERE session_id = ? ORDER BY final_score DESC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches: %w", err)
	}
	defer rows.Close()

	var out []model.LenderMatch
	for rows.Next() {
		var m model.LenderMatch
		var reasons, warnings sql.NullString
		var calculatedAt int64
		m.SessionID = sessionID
		err := rows.Scan(
			&m.LenderID, &m.LenderName, &m.EligibilityScore, &m.AffordabilityScore, &m.SpecializationScore,
			&m.FinalScore, &m.Confidence, &reasons, &warnings, &m.Rank, &m.Path, &calculatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		if reasons.Valid {
			_ = json.Unmarshal([]byte(reasons.String), &m.Reasons)
		}
		if warnings.Valid {
			_ = json.Unmarshal([]byte(warnings.String), &m.Warnings)
		}
		m.CalculatedAt = time.Unix(calculatedAt, 0)
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].FinalScore > out[j].FinalScore })
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ SessionStore = (*SQLiteStore)(nil)
