package server

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	arenadb "github.com/playforge/arena-core"
	"github.com/playforge/arena-core/anticheat"
	"github.com/playforge/arena-core/config"
	"github.com/playforge/arena-core/economy"
	"github.com/playforge/arena-core/ledger"
	"github.com/playforge/arena-core/notify"
	"github.com/playforge/arena-core/pgstore"
	"github.com/playforge/arena-core/rating"
	"github.com/playforge/arena-core/session"
	"github.com/playforge/arena-core/wallet"
)

// Players whose trust falls below this are kept out of ranked matchmaking
// until the flags driving it age out.
const minMatchmakingTrust = 40

type Server struct {
	cfg       *config.Config
	wallet    *wallet.Client
	ledger    *ledger.Store
	validator *anticheat.Validator
	engine    *rating.Engine
	manager   *session.Manager
	economics *economy.Table
}

func New(cfg *config.Config) *Server {
	walletClient := wallet.NewClient(cfg.WalletURL)
	ledgerStore := ledger.NewStore(cfg.DataDir)
	economics := economy.NewTable()

	// Postgres when configured, JSON file stores otherwise. Both sides
	// implement the same store interfaces so nothing downstream cares.
	var flagStore anticheat.FlagStore
	var historyStore anticheat.HistoryStore
	var ratingStore rating.Store
	if cfg.DatabaseURL != "" {
		db, err := arenadb.GetDB()
		if err != nil || db == nil {
			log.Printf("arena: postgres unavailable, falling back to file stores: %v", err)
		} else {
			flagStore = pgstore.NewFlagStore(db)
			historyStore = pgstore.NewHistoryStore(db)
			ratingStore = pgstore.NewRatingStore(db)
		}
	}
	if flagStore == nil {
		flagStore = anticheat.NewFileFlagStore(cfg.DataDir)
		historyStore = anticheat.NewFileHistoryStore(cfg.DataDir)
		ratingStore = rating.NewFileStore(cfg.DataDir)
	}

	validator := anticheat.NewValidator(flagStore, historyStore, anticheat.NewLimitsTable())
	engine := rating.NewEngine(ratingStore, cfg.SeasonID)
	engine.Restricted = func(playerID string) bool {
		trust, err := validator.TrustScore(playerID)
		if err != nil {
			log.Printf("arena: trust lookup failed for %s: %v", playerID, err)
			return false
		}
		return trust < minMatchmakingTrust
	}

	manager := session.NewManager(
		session.NewStore(cfg.DataDir),
		walletClient,
		ledgerStore,
		validator,
		economics,
		engine,
		notify.LogPublisher{},
	)
	return &Server{
		cfg:       cfg,
		wallet:    walletClient,
		ledger:    ledgerStore,
		validator: validator,
		engine:    engine,
		manager:   manager,
		economics: economics,
	}
}

func (s *Server) Run() error {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.health)
	mux.HandleFunc("POST /arena/session/start", s.sessionStart)
	mux.HandleFunc("POST /arena/session/end", s.sessionEnd)
	mux.HandleFunc("POST /arena/session/abandon", s.sessionAbandon)
	mux.HandleFunc("GET /arena/session", s.sessionGet)
	mux.HandleFunc("GET /arena/player/stats", s.playerStats)
	mux.HandleFunc("GET /arena/player/rank", s.playerRank)
	mux.HandleFunc("GET /arena/player/trust", s.playerTrust)
	mux.HandleFunc("GET /arena/player/ledger", s.playerLedger)
	mux.HandleFunc("GET /arena/wallet/balance", s.walletBalance)
	mux.HandleFunc("GET /arena/leaderboard", s.leaderboard)
	mux.HandleFunc("GET /arena/matchmaking/opponent", s.matchmakingOpponent)
	mux.HandleFunc("POST /arena/admin/season/reset", s.seasonReset)

	port := s.cfg.ArenaPort
	if port <= 0 {
		port = 8082
	}
	addr := ":" + strconv.Itoa(port)
	log.Printf("arena listening on %s (wallet: %s, season: %s)", addr, s.cfg.WalletURL, s.cfg.SeasonID)
	return http.ListenAndServe(addr, cors(requestLogger(mux)))
}

func cors(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.ServeHTTP(w, r)
	})
}

// requestLogger logs method and path for each request (no body or secrets).
func requestLogger(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Printf("arena %s %s", r.Method, r.URL.Path)
		h.ServeHTTP(w, r)
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok", "service": "arena"})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
