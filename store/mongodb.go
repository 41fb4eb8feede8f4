package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/vulbsti/loanmatchmaker/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoDBStore is a MongoDB-backed SessionStore, an alternate durability
// backend to SQLiteStore (spec §4.2). Collections mirror the five
// session-scoped relations: sessions, loan_parameters, parameter_tracking,
// conversation_history, match_results.
type MongoDBStore struct {
	client   *mongo.Client
	database *mongo.Database

	sessions    *mongo.Collection
	parameters  *mongo.Collection
	tracking    *mongo.Collection
	history     *mongo.Collection
	matches     *mongo.Collection

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// MongoDBStoreConfig holds connection settings for MongoDBStore.
type MongoDBStoreConfig struct {
	URI      string
	Database string
}

// DefaultMongoDBStoreConfig returns the development default configuration.
func DefaultMongoDBStoreConfig() MongoDBStoreConfig {
	return MongoDBStoreConfig{
		URI:      "mongodb://localhost:27017",
		Database: "loanmatchmaker",
	}
}

// NewMongoDBStore connects to MongoDB and prepares the loanmatchmaker
// collections and indexes.
func NewMongoDBStore(config MongoDBStoreConfig) (*MongoDBStore, error) {
	if config.URI == "" {
		config.URI = "mongodb://localhost:27017"
	}
	if config.Database == "" {
		config.Database = "loanmatchmaker"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(config.URI).
		SetMaxPoolSize(100).
		SetMinPoolSize(10).
		SetMaxConnIdleTime(30 * time.Minute).
		SetRetryWrites(true).
		SetRetryReads(true).
		SetServerSelectionTimeout(5 * time.Second)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	database := client.Database(config.Database)
	store := &MongoDBStore{
		client:     client,
		database:   database,
		sessions:   database.Collection("sessions"),
		parameters: database.Collection("loan_parameters"),
		tracking:   database.Collection("parameter_tracking"),
		history:    database.Collection("conversation_history"),
		matches:    database.Collection("match_results"),
		locks:      make(map[string]*sync.Mutex),
	}

	if err := store.initIndexes(ctx); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}

	return store, nil
}

func (s *MongoDBStore) initIndexes(ctx context.Context) error {
	if _, err := s.sessions.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "expires_at", Value: 1}},
	}); err != nil {
		return fmt.Errorf("failed to create sessions expires_at index: %w", err)
	}

	if _, err := s.history.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "session_id", Value: 1}, {Key: "created_at", Value: 1}},
	}); err != nil {
		return fmt.Errorf("failed to create history index: %w", err)
	}

	if _, err := s.matches.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "session_id", Value: 1}, {Key: "final_score", Value: -1}},
	}); err != nil {
		return fmt.Errorf("failed to create match_results index: %w", err)
	}

	return nil
}

func (s *MongoDBStore) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// Ping verifies the underlying connection is reachable.
func (s *MongoDBStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *MongoDBStore) sessionLock(sessionID string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[sessionID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[sessionID] = l
	}
	return l
}

// WithSessionLock serialises mutations for one session (spec §5). MongoDB
// itself is safe for concurrent use; this lock exists so multi-step
// read-modify-write sequences issued by the orchestrator stay atomic from
// the application's point of view.
func (s *MongoDBStore) WithSessionLock(sessionID string, fn func() error) error {
	l := s.sessionLock(sessionID)
	l.Lock()
	defer l.Unlock()
	return fn()
}

type sessionDocument struct {
	SessionID string    `bson:"_id"`
	Status    string    `bson:"status"`
	UserAgent string    `bson:"user_agent,omitempty"`
	ClientIP  string    `bson:"client_ip,omitempty"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
	ExpiresAt time.Time `bson:"expires_at"`
}

type parametersDocument struct {
	SessionID string `bson:"_id"`
	Data      string `bson:"data"`
}

type trackingDocument struct {
	SessionID           string `bson:"_id"`
	HasLoanAmount       bool   `bson:"has_loan_amount"`
	HasAnnualIncome     bool   `bson:"has_annual_income"`
	HasEmploymentStatus bool   `bson:"has_employment_status"`
	HasCreditScore      bool   `bson:"has_credit_score"`
	HasLoanPurpose      bool   `bson:"has_loan_purpose"`
}

type historyDocument struct {
	MessageID string    `bson:"_id"`
	SessionID string    `bson:"session_id"`
	Seq       int       `bson:"seq"`
	Role      string    `bson:"role"`
	Content   string    `bson:"content"`
	AgentType string    `bson:"agent_type"`
	Metadata  string    `bson:"metadata,omitempty"`
	CreatedAt time.Time `bson:"created_at"`
}

type matchDocument struct {
	SessionID           string    `bson:"session_id"`
	LenderID            string    `bson:"lender_id"`
	LenderName          string    `bson:"lender_name"`
	EligibilityScore    int       `bson:"eligibility_score"`
	AffordabilityScore  int       `bson:"affordability_score"`
	SpecializationScore int       `bson:"specialization_score"`
	FinalScore          int       `bson:"final_score"`
	Confidence          int       `bson:"confidence"`
	Reasons             []string  `bson:"reasons,omitempty"`
	Warnings            []string  `bson:"warnings,omitempty"`
	Rank                int       `bson:"rank"`
	Path                string    `bson:"path"`
	CalculatedAt        time.Time `bson:"calculated_at"`
}

func (s *MongoDBStore) Open(fp *model.Fingerprint) (*model.Session, error) {
	sess := model.NewSession(fp)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	doc := sessionDocument{
		SessionID: sess.SessionID,
		Status:    string(sess.Status),
		CreatedAt: sess.CreatedAt,
		UpdatedAt: sess.UpdatedAt,
		ExpiresAt: sess.ExpiresAt,
	}
	if fp != nil {
		doc.UserAgent = fp.UserAgent
		doc.ClientIP = fp.IP
	}

	if _, err := s.sessions.InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	params, _ := json.Marshal(model.LoanParameters{})
	if _, err := s.parameters.InsertOne(ctx, parametersDocument{SessionID: sess.SessionID, Data: string(params)}); err != nil {
		return nil, fmt.Errorf("failed to seed parameters: %w", err)
	}
	if _, err := s.tracking.InsertOne(ctx, trackingDocument{SessionID: sess.SessionID}); err != nil {
		return nil, fmt.Errorf("failed to seed tracking: %w", err)
	}

	return sess, nil
}

func (s *MongoDBStore) loadSession(ctx context.Context, sessionID string) (*model.Session, error) {
	var doc sessionDocument
	err := s.sessions.FindOne(ctx, bson.M{"_id": sessionID}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, model.NewNotFoundError("session not found: " + sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query session: %w", err)
	}

	sess := &model.Session{
		SessionID: doc.SessionID,
		Status:    model.SessionStatus(doc.Status),
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
		ExpiresAt: doc.ExpiresAt,
	}
	if doc.UserAgent != "" || doc.ClientIP != "" {
		sess.Fingerprint = &model.Fingerprint{UserAgent: doc.UserAgent, IP: doc.ClientIP}
	}
	return sess, nil
}

func (s *MongoDBStore) Load(sessionID string) (*model.SessionSnapshot, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 12*time.Second)
	defer cancel()

	sess, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status == model.SessionExpired || time.Now().After(sess.ExpiresAt) {
		return nil, model.NewExpiredError("session expired: " + sessionID)
	}

	params, tracking, err := s.getParameters(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	history, err := s.getHistory(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	return &model.SessionSnapshot{Session: sess, Parameters: params, Tracking: tracking, History: history}, nil
}

func (s *MongoDBStore) getHistory(ctx context.Context, sessionID string) ([]model.ChatMessage, error) {
	cursor, err := s.history.Find(ctx, bson.M{"session_id": sessionID}, options.Find().SetSort(bson.D{{Key: "seq", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer cursor.Close(ctx)

	var out []model.ChatMessage
	for cursor.Next(ctx) {
		var doc historyDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode message: %w", err)
		}
		m := model.ChatMessage{
			ID:        doc.MessageID,
			SessionID: doc.SessionID,
			Seq:       doc.Seq,
			Role:      model.Role(doc.Role),
			Content:   doc.Content,
			AgentType: model.AgentType(doc.AgentType),
			CreatedAt: doc.CreatedAt,
		}
		if doc.Metadata != "" {
			_ = json.Unmarshal([]byte(doc.Metadata), &m.Metadata)
		}
		out = append(out, m)
	}
	return out, cursor.Err()
}

func (s *MongoDBStore) AppendMessage(sessionID string, msg model.ChatMessage) (model.ChatMessage, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := s.loadSession(ctx, sessionID); err != nil {
		return model.ChatMessage{}, err
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"session_id": sessionID}}},
		{{Key: "$group", Value: bson.M{"_id": nil, "maxSeq": bson.M{"$max": "$seq"}}}},
	}
	cursor, err := s.history.Aggregate(ctx, pipeline)
	if err != nil {
		return model.ChatMessage{}, fmt.Errorf("failed to read sequence: %w", err)
	}
	maxSeq := 0
	if cursor.Next(ctx) {
		var result struct {
			MaxSeq int `bson:"maxSeq"`
		}
		if err := cursor.Decode(&result); err == nil {
			maxSeq = result.MaxSeq
		}
	}
	cursor.Close(ctx)

	msg.Seq = maxSeq + 1
	msg.SessionID = sessionID
	msg.CreatedAt = time.Now()
	if msg.ID == "" {
		msg.ID = fmt.Sprintf("%s-m%d", sessionID, msg.Seq)
	}

	var metadata string
	if len(msg.Metadata) > 0 {
		b, err := json.Marshal(msg.Metadata)
		if err != nil {
			return model.ChatMessage{}, fmt.Errorf("failed to marshal metadata: %w", err)
		}
		metadata = string(b)
	}

	doc := historyDocument{
		MessageID: msg.ID,
		SessionID: msg.SessionID,
		Seq:       msg.Seq,
		Role:      string(msg.Role),
		Content:   msg.Content,
		AgentType: string(msg.AgentType),
		Metadata:  metadata,
		CreatedAt: msg.CreatedAt,
	}
	if _, err := s.history.InsertOne(ctx, doc); err != nil {
		return model.ChatMessage{}, fmt.Errorf("failed to append message: %w", err)
	}

	return msg, nil
}

func (s *MongoDBStore) Touch(sessionID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	res, err := s.sessions.UpdateByID(ctx, sessionID, bson.M{"$set": bson.M{"updated_at": time.Now()}})
	if err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}
	if res.MatchedCount == 0 {
		return model.NewNotFoundError("session not found: " + sessionID)
	}
	return nil
}

func (s *MongoDBStore) Close(sessionID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	res, err := s.sessions.UpdateByID(ctx, sessionID, bson.M{
		"$set": bson.M{"status": string(model.SessionCompleted), "updated_at": time.Now()},
	})
	if err != nil {
		return fmt.Errorf("failed to close session: %w", err)
	}
	if res.MatchedCount == 0 {
		return model.NewNotFoundError("session not found: " + sessionID)
	}
	return nil
}

func (s *MongoDBStore) SweepExpired() (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	res, err := s.sessions.UpdateMany(ctx,
		bson.M{"status": string(model.SessionActive), "expires_at": bson.M{"$lt": time.Now()}},
		bson.M{"$set": bson.M{"status": string(model.SessionExpired)}},
	)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep expired sessions: %w", err)
	}
	return int(res.ModifiedCount), nil
}

func (s *MongoDBStore) getParameters(ctx context.Context, sessionID string) (model.LoanParameters, model.ParameterTracking, error) {
	var pdoc parametersDocument
	err := s.parameters.FindOne(ctx, bson.M{"_id": sessionID}).Decode(&pdoc)
	if err == mongo.ErrNoDocuments {
		return model.LoanParameters{}, model.ParameterTracking{}, model.NewNotFoundError("session not found: " + sessionID)
	}
	if err != nil {
		return model.LoanParameters{}, model.ParameterTracking{}, fmt.Errorf("failed to query parameters: %w", err)
	}
	var params model.LoanParameters
	if err := json.Unmarshal([]byte(pdoc.Data), &params); err != nil {
		return model.LoanParameters{}, model.ParameterTracking{}, fmt.Errorf("failed to unmarshal parameters: %w", err)
	}

	var tdoc trackingDocument
	err = s.tracking.FindOne(ctx, bson.M{"_id": sessionID}).Decode(&tdoc)
	if err != nil && err != mongo.ErrNoDocuments {
		return model.LoanParameters{}, model.ParameterTracking{}, fmt.Errorf("failed to query tracking: %w", err)
	}

	return params, model.ParameterTracking{
		HasLoanAmount:       tdoc.HasLoanAmount,
		HasAnnualIncome:     tdoc.HasAnnualIncome,
		HasEmploymentStatus: tdoc.HasEmploymentStatus,
		HasCreditScore:      tdoc.HasCreditScore,
		HasLoanPurpose:      tdoc.HasLoanPurpose,
	}, nil
}

func (s *MongoDBStore) GetParameters(sessionID string) (model.LoanParameters, model.ParameterTracking, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.getParameters(ctx, sessionID)
}

func (s *MongoDBStore) SaveParameters(sessionID string, params model.LoanParameters, tracking model.ParameterTracking) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	data, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("failed to marshal parameters: %w", err)
	}

	opts := options.Replace().SetUpsert(true)
	if _, err := s.parameters.ReplaceOne(ctx, bson.M{"_id": sessionID}, parametersDocument{SessionID: sessionID, Data: string(data)}, opts); err != nil {
		return fmt.Errorf("failed to store parameters: %w", err)
	}

	tdoc := trackingDocument{
		SessionID:           sessionID,
		HasLoanAmount:       tracking.HasLoanAmount,
		HasAnnualIncome:     tracking.HasAnnualIncome,
		HasEmploymentStatus: tracking.HasEmploymentStatus,
		HasCreditScore:      tracking.HasCreditScore,
		HasLoanPurpose:      tracking.HasLoanPurpose,
	}
	if _, err := s.tracking.ReplaceOne(ctx, bson.M{"_id": sessionID}, tdoc, opts); err != nil {
		return fmt.Errorf("failed to store tracking: %w", err)
	}
	return nil
}

func (s *MongoDBStore) ReplaceMatches(sessionID string, matches []model.LenderMatch) error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if _, err := s.matches.DeleteMany(ctx, bson.M{"session_id": sessionID}); err != nil {
		return fmt.Errorf("failed to clear matches: %w", err)
	}
	if len(matches) == 0 {
		return nil
	}

	docs := make([]interface{}, 0, len(matches))
	for _, m := range matches {
		docs = append(docs, matchDocument{
			SessionID: sessionID, LenderID: m.LenderID, LenderName: m.LenderName,
			EligibilityScore: m.EligibilityScore, AffordabilityScore: m.AffordabilityScore,
			SpecializationScore: m.SpecializationScore, FinalScore: m.FinalScore,
			Confidence: m.Confidence, Reasons: m.Reasons, Warnings: m.Warnings,
			Rank: m.Rank, Path: m.Path, CalculatedAt: m.CalculatedAt,
		})
	}
	if _, err := s.matches.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("failed to store matches: %w", err)
	}
	return nil
}

func (s *MongoDBStore) GetMatches(sessionID string) ([]model.LenderMatch, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cursor, err := s.matches.Find(ctx, bson.M{"session_id": sessionID}, options.Find().SetSort(bson.D{{Key: "final_score", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to query matches: %w", err)
	}
	defer cursor.Close(ctx)

	var out []model.LenderMatch
	for cursor.Next(ctx) {
		var doc matchDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode match: %w", err)
		}
		out = append(out, model.LenderMatch{
			SessionID: sessionID, LenderID: doc.LenderID, LenderName: doc.LenderName,
			EligibilityScore: doc.EligibilityScore, AffordabilityScore: doc.AffordabilityScore,
			SpecializationScore: doc.SpecializationScore, FinalScore: doc.FinalScore,
			Confidence: doc.Confidence, Reasons: doc.Reasons, Warnings: doc.Warnings,
			Rank: doc.Rank, Path: doc.Path, CalculatedAt: doc.CalculatedAt,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].FinalScore > out[j].FinalScore })
	return out, cursor.Err()
}

var _ SessionStore = (*MongoDBStore)(nil)
