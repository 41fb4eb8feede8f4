// Command loanadvisor is the wiring entrypoint, grounded on the teacher's
// cmd/agentize/main.go: flag parsing, config load, component construction
// in dependency order, then conditional HTTP start.
package main

import (
	"flag"
	"os"
	"time"

	"github.com/vulbsti/loanmatchmaker/catalogue"
	"github.com/vulbsti/loanmatchmaker/config"
	"github.com/vulbsti/loanmatchmaker/httpserver"
	"github.com/vulbsti/loanmatchmaker/llmgateway"
	"github.com/vulbsti/loanmatchmaker/log"
	"github.com/vulbsti/loanmatchmaker/model"
	"github.com/vulbsti/loanmatchmaker/orchestrator"
	"github.com/vulbsti/loanmatchmaker/ratelimiter"
	"github.com/vulbsti/loanmatchmaker/scoring"
	"github.com/vulbsti/loanmatchmaker/store"
	"github.com/vulbsti/loanmatchmaker/tracker"
)

func main() {
	cataloguePath := flag.String("catalogue", "", "Path to lender catalogue YAML (default: ./configs/lenders.yaml or LOANADVISOR_CATALOGUE_PATH)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Log.Errorf("[loanadvisor] failed to load configuration: %v", err)
		os.Exit(1)
	}
	log.SetLevel(cfg.LogLevel)

	if *cataloguePath != "" {
		cfg.Scoring.CataloguePath = *cataloguePath
	}

	log.Log.Infof("[loanadvisor] starting, store backend=%s, neural scoring=%v", cfg.Store.Backend, cfg.Scoring.NeuralEnabled)

	cat, err := catalogue.Load(cfg.Scoring.CataloguePath)
	if err != nil {
		log.Log.Errorf("[loanadvisor] failed to load lender catalogue: %v", err)
		os.Exit(1)
	}
	log.Log.Infof("[loanadvisor] loaded %d lenders from %s", cat.Len(), cfg.Scoring.CataloguePath)

	sessionStore, err := newStore(cfg.Store)
	if err != nil {
		log.Log.Errorf("[loanadvisor] failed to initialise session store: %v", err)
		os.Exit(1)
	}

	gw := llmgateway.New(llmgateway.Config{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
	})

	ruleScorer := scoring.NewRuleScorer(model.DefaultRateRange)
	var neuralScorer *scoring.NeuralScorer
	if cfg.Scoring.NeuralEnabled {
		neuralScorer, err = scoring.LoadNeuralScorer(cfg.Scoring.NeuralStandardizePath, cfg.Scoring.NeuralModelPath)
		if err != nil {
			log.Log.Warnf("[loanadvisor] neural scoring requested but unavailable, falling back to rule-based: %v", err)
		}
	}
	scoringEngine := scoring.NewEngine(ruleScorer, neuralScorer, cfg.Scoring.NeuralEnabled && neuralScorer != nil)

	orch := orchestrator.New(sessionStore, gw, scoringEngine, cat)
	limiter := ratelimiter.New()
	go runExpirySweeper(sessionStore)

	srv := httpserver.New(httpserver.Deps{
		Store:        sessionStore,
		Orchestrator: orch,
		Tracker:      tracker.New(sessionStore),
		Scoring:      scoringEngine,
		Catalogue:    cat,
		Limiter:      limiter,
		Gateway:      gw,
		CORSOrigins:  cfg.HTTP.CORSOrigins,
		MaxBodyBytes: cfg.HTTP.MaxBodyBytes,
		MatchTopK:    cfg.Scoring.MatchTopK,
	})

	if err := srv.Start(cfg.HTTP.Address()); err != nil {
		log.Log.Errorf("[loanadvisor] http server exited: %v", err)
		os.Exit(1)
	}
}

// runExpirySweeper periodically flips active-but-past-expiry sessions to
// expired (spec §7: "background expiry sweeps log and continue").
func runExpirySweeper(s store.SessionStore) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		n, err := s.SweepExpired()
		if err != nil {
			log.Log.Warnf("[loanadvisor] expiry sweep failed: %v", err)
			continue
		}
		if n > 0 {
			log.Log.Infof("[loanadvisor] expiry sweep: %d session(s) marked expired", n)
		}
	}
}

func newStore(cfg config.StoreConfig) (store.SessionStore, error) {
	switch cfg.Backend {
	case config.StoreBackendSQLite:
		return store.NewSQLiteStore(cfg.DSN)
	case config.StoreBackendMongoDB:
		return store.NewMongoDBStore(store.MongoDBStoreConfig{URI: cfg.DSN, Database: cfg.Database})
	default:
		return store.NewMemoryStore(), nil
	}
}
