package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"fortis/internal/audit"
	"fortis/internal/audit/analyzer"
	auditmetrics "fortis/internal/audit/metrics"
	"fortis/internal/audit/publisher/kafka"
	auditmemory "fortis/internal/audit/store/memory"
	auditpostgres "fortis/internal/audit/store/postgres"
	"fortis/internal/auth"
	"fortis/internal/auth/biometric"
	"fortis/internal/auth/certificate"
	"fortis/internal/auth/lockout"
	authmetrics "fortis/internal/auth/metrics"
	"fortis/internal/auth/roll"
	jwttoken "fortis/internal/jwt_token"
	"fortis/internal/nullifier"
	nullifiermemory "fortis/internal/nullifier/store/memory"
	nullifierpostgres "fortis/internal/nullifier/store/postgres"
	nullifierredis "fortis/internal/nullifier/store/redis"
	"fortis/internal/platform/config"
	"fortis/internal/platform/httpserver"
	"fortis/internal/platform/logger"
	"fortis/internal/platform/metrics"
	"fortis/internal/platform/postgres"
	"fortis/internal/platform/redis"
	httptransport "fortis/internal/transport/http"
	"fortis/internal/votesync"
	syncmetrics "fortis/internal/votesync/metrics"
	votememory "fortis/internal/votesync/store/memory"
	votepostgres "fortis/internal/votesync/store/postgres"
	"fortis/internal/votesync/transport/httplog"
	"fortis/internal/votesync/transport/memlog"
	"fortis/internal/votesync/transport/node"
	"fortis/internal/voting"
	"fortis/pkg/platform/circuit"
)

const maintenanceInterval = time.Hour

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("fortis stopped with error", "error", err)
		os.Exit(1)
	}
}

type stores struct {
	audit      audit.Store
	votes      votesync.Store
	nullifiers nullifier.Store
	lockout    lockout.Store
	revoked    certificate.RevocationList
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	db, err := postgres.Open(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
		if err := postgres.Migrate(ctx, db); err != nil {
			return err
		}
	}
	rdb, err := redis.New(cfg.Redis)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
	}
	st := buildStores(db, rdb, log)

	sinks := []analyzer.Sink{analyzer.NewLogSink(log)}
	if len(cfg.Kafka.Brokers) > 0 {
		sink, err := kafka.New(cfg.Kafka.Brokers, cfg.Kafka.AlertTopic, kafka.WithLogger(log))
		if err != nil {
			return err
		}
		defer sink.Close()
		if err := sink.EnsureTopic(ctx, 1, 1); err != nil {
			log.WarnContext(ctx, "could not ensure alert topic", "topic", cfg.Kafka.AlertTopic, "error", err)
		}
		sinks = append(sinks, sink)
	}

	ledger, err := audit.New(ctx, st.audit,
		audit.WithLogger(log),
		audit.WithMetrics(auditmetrics.New()),
		audit.WithAnalyzer(analyzer.New(analyzer.WithSinks(sinks...), analyzer.WithLogger(log))),
		audit.WithGenesis(cfg.Audit.Genesis),
		audit.WithBufferSize(cfg.Audit.BufferSize),
	)
	if err != nil {
		return fmt.Errorf("open audit ledger: %w", err)
	}

	engine, err := buildEngine(cfg, st.votes, ledger, log)
	if err != nil {
		return err
	}

	if _, err := engine.Recover(ctx); err != nil {
		return fmt.Errorf("recover sync state: %w", err)
	}

	lock, err := lockout.New(st.lockout,
		lockout.WithLogger(log),
		lockout.WithConfig(lockout.Config{MaxAttempts: cfg.Auth.LockoutMaxAttempts, Duration: cfg.Auth.LockoutDuration}),
	)
	if err != nil {
		return err
	}
	certs := certificate.NewValidator(cfg.Auth.TrustedIssuers,
		certificate.WithRevocationList(st.revoked),
		certificate.WithLogger(log),
	)

	authOpts := []auth.Option{
		auth.WithLogger(log),
		auth.WithAuditLogger(ledger),
		auth.WithMetrics(authmetrics.New()),
		auth.WithBiometricThreshold(cfg.Auth.BiometricThreshold),
	}
	votingOpts := []voting.Option{voting.WithLogger(log), voting.WithAuditLogger(ledger)}
	if cfg.RollServiceURL != "" {
		authOpts = append(authOpts, auth.WithVoterRoll(roll.NewHTTPClient(cfg.RollServiceURL,
			roll.WithLogger(log),
			roll.WithBreaker(circuit.New("voter-roll")),
		)))
	} else {
		log.WarnContext(ctx, "ROLL_SERVICE_URL not set, using an empty in-memory voter roll")
		local := roll.NewMemory()
		authOpts = append(authOpts, auth.WithVoterRoll(local))
		votingOpts = append(votingOpts, voting.WithVoteRecorder(local))
	}
	authenticator, err := auth.New(biometric.NewTemplateMatcher(), certs, lock, authOpts...)
	if err != nil {
		return err
	}

	zk, err := nullifier.NewCommitmentCircuit(nullifier.DefaultCircuitParams)
	if err != nil {
		return err
	}
	guard := nullifier.NewGuard(st.nullifiers, zk,
		nullifier.WithLogger(log),
		nullifier.WithAuditLogger(ledger),
	)

	votes, err := voting.New(authenticator, guard, engine, votingOpts...)
	if err != nil {
		return err
	}

	sessions := jwttoken.NewValidatorAdapter(jwttoken.NewValidator(cfg.SessionSigningKey))
	handler, err := httptransport.New(votes, engine, guard, ledger, sessions,
		httptransport.WithLogger(log),
		httptransport.WithMetrics(metrics.New()),
		httptransport.WithAdminToken(cfg.AdminToken),
		httptransport.WithCleanupRetention(cfg.Sync.CleanupRetention),
		httptransport.WithRequestTimeout(cfg.RequestTimeout),
	)
	if err != nil {
		return err
	}
	if cfg.AdminToken == "" {
		log.WarnContext(ctx, "ADMIN_TOKEN not set, operator routes are disabled")
	}
	srv := httpserver.New(cfg.Addr, handler.Router())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.InfoContext(gctx, "starting fortis", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := ledger.Run(gctx, cfg.Audit.FlushInterval); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		maintain(gctx, cfg, engine, ledger, log)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		if err := engine.Shutdown(shutdownCtx); err != nil {
			log.Error("sync workers did not stop in time", "error", err)
		}
		return nil
	})
	return g.Wait()
}

// buildStores picks Postgres for durable state when configured, Redis for the
// nullifier set and revocation list when configured, and memory otherwise.
func buildStores(db *sql.DB, rdb *redis.Client, log *slog.Logger) stores {
	st := stores{
		audit:      auditmemory.New(),
		votes:      votememory.New(),
		nullifiers: nullifiermemory.New(),
		lockout:    lockout.NewInMemoryStore(),
		revoked:    certificate.NewInMemoryRevocationList(),
	}
	if db != nil {
		st.audit = auditpostgres.New(db)
		st.votes = votepostgres.New(db)
		st.nullifiers = nullifierpostgres.New(db)
		st.lockout = lockout.NewPostgresStore(db)
	} else {
		log.Warn("DATABASE_URL not set, state is kept in memory")
	}
	if rdb != nil {
		st.nullifiers = nullifierredis.New(rdb.Client)
		st.revoked = certificate.NewRedisRevocationList(rdb.Client)
	}
	return st
}

func buildEngine(cfg config.Server, store votesync.Store, ledger *audit.Ledger, log *slog.Logger) (*votesync.Engine, error) {
	var tlog votesync.TransparencyLog
	if cfg.Sync.TransparencyLogURL != "" {
		tlog = httplog.New(cfg.Sync.TransparencyLogURL,
			httplog.WithLogger(log),
			httplog.WithBreaker(circuit.New("transparency-log")),
		)
	} else {
		log.Warn("TRANSPARENCY_LOG_URL not set, using an in-process log")
		mem, err := memlog.New(cfg.Sync.MerkleTreeDepth)
		if err != nil {
			return nil, err
		}
		tlog = mem
	}

	nodes, err := verificationNodes(cfg, log)
	if err != nil {
		return nil, err
	}

	syncCfg := votesync.DefaultConfig()
	syncCfg.ThresholdRequired = cfg.Sync.ThresholdRequired
	syncCfg.SignatureTimeout = cfg.Sync.SignatureTimeout
	syncCfg.MaxRetryAttempts = cfg.Sync.MaxRetryAttempts
	syncCfg.QueueCapacity = cfg.Sync.QueueCapacity
	syncCfg.JobDeadline = cfg.Sync.JobDeadline
	syncCfg.StaleAfter = cfg.Sync.StaleAfter

	return votesync.New(store, tlog, nodes,
		votesync.WithLogger(log),
		votesync.WithConfig(syncCfg),
		votesync.WithAuditLogger(ledger),
		votesync.WithLedgerState(ledger),
		votesync.WithMetrics(syncmetrics.New()),
	)
}

// verificationNodes dials the configured nodes. Without any, it runs enough
// in-process signers to meet the threshold, which only suits development.
func verificationNodes(cfg config.Server, log *slog.Logger) ([]votesync.VerificationNode, error) {
	nodes := make([]votesync.VerificationNode, 0, len(cfg.Sync.Nodes))
	for _, n := range cfg.Sync.Nodes {
		if !common.IsHexAddress(n.Address) {
			return nil, fmt.Errorf("verification node %s has invalid address %q", n.URL, n.Address)
		}
		nodes = append(nodes, node.NewClient(n.URL, common.HexToAddress(n.Address),
			node.WithLogger(log),
			node.WithBreaker(circuit.New("node-"+n.Address)),
		))
	}
	if len(nodes) > 0 {
		return nodes, nil
	}

	log.Warn("VERIFICATION_NODES not set, signing acknowledgements in-process")
	for _, hexKey := range cfg.Sync.LocalSignerKeys {
		local, err := node.LocalFromHex(hexKey)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, local)
	}
	for len(nodes) < cfg.Sync.ThresholdRequired {
		local, err := node.GenerateLocal()
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, local)
	}
	for _, n := range nodes {
		log.Info("in-process verification node", "address", n.Address().Hex())
	}
	return nodes, nil
}

// maintain prunes finished sync state and expired audit entries until ctx is
// cancelled.
func maintain(ctx context.Context, cfg config.Server, engine *votesync.Engine, ledger *audit.Ledger, log *slog.Logger) {
	ticker := time.NewTicker(maintenanceInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := engine.CleanupCompletedSyncs(ctx, cfg.Sync.CleanupRetention); err != nil {
				log.WarnContext(ctx, "sync cleanup failed", "error", err)
			} else if n > 0 {
				log.InfoContext(ctx, "sync cleanup", "removed", n)
			}
			if ledger.Halted() {
				continue
			}
			if n, err := ledger.CleanupOldLogs(ctx, cfg.Audit.RetentionDays); err != nil {
				log.WarnContext(ctx, "audit retention failed", "error", err)
			} else if n > 0 {
				log.InfoContext(ctx, "audit retention", "removed", n)
			}
		}
	}
}
