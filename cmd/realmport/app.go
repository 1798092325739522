package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/dropDatabas3/realmport/internal/config"
	"github.com/dropDatabas3/realmport/internal/domain/repository"
	"github.com/dropDatabas3/realmport/internal/domain/types"
	"github.com/dropDatabas3/realmport/internal/lock"
	"github.com/dropDatabas3/realmport/internal/observability/logger"
	"github.com/dropDatabas3/realmport/internal/realm/bundle"
	"github.com/dropDatabas3/realmport/internal/realm/credential"
	"github.com/dropDatabas3/realmport/internal/realm/exporter"
	"github.com/dropDatabas3/realmport/internal/realm/importer"
	"github.com/dropDatabas3/realmport/internal/realm/requiredaction"
	"github.com/dropDatabas3/realmport/internal/security/password"
	"github.com/dropDatabas3/realmport/internal/security/secretbox"
	"github.com/dropDatabas3/realmport/internal/store"
)

// app agrupa lo que comparten los subcomandos.
type app struct {
	cfg      *config.Config
	log      *zap.Logger
	dir      repository.Directory
	importer *importer.Orchestrator
	exporter *exporter.Assembler
	cache    *bundle.Cache
	strategy types.Strategy

	closers []func()
}

// loadConfig carga la config e inicializa el logger global.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	logger.Init(logger.Config{
		Env:         cfg.App.Env,
		Level:       cfg.Log.Level,
		ServiceName: "realmport",
		Version:     version,
	})
	return cfg, nil
}

// newApp abre el Directory Store y arma importer y exporter.
func newApp(ctx context.Context, configPath string) (*app, context.Context, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, ctx, err
	}
	log := logger.L()
	ctx = logger.ToContext(ctx, log)

	a := &app{cfg: cfg, log: log}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	strategy, err := types.ParseStrategy(cfg.Import.Strategy)
	if err != nil {
		return nil, ctx, err
	}
	a.strategy = strategy

	var bl *password.Blacklist
	if cfg.Security.PasswordBlacklistPath != "" {
		if bl, err = password.LoadBlacklist(cfg.Security.PasswordBlacklistPath); err != nil {
			return nil, ctx, fmt.Errorf("password blacklist: %w", err)
		}
	}
	enforcer := password.NewEnforcer(bl, password.Default)

	var box *secretbox.Box
	if cfg.Security.SecretboxMasterKey != "" {
		if box, err = secretbox.New(cfg.Security.SecretboxMasterKey); err != nil {
			return nil, ctx, fmt.Errorf("secretbox: %w", err)
		}
	}

	dir, err := store.Open(ctx, store.Config{
		Driver:     cfg.Storage.Driver,
		DSN:        cfg.Storage.DSN,
		MaxConns:   cfg.Storage.MaxConns,
		AdminRealm: cfg.Realms.AdminRealm,
		Passwords:  enforcer,
		Secrets:    box,
	})
	if err != nil {
		return nil, ctx, err
	}
	a.dir = dir
	a.closers = append(a.closers, dir.Close)

	locker, err := lock.New(lock.Config{
		Kind:      cfg.Import.Lock.Kind,
		RedisAddr: cfg.Redis.Addr,
		RedisDB:   cfg.Redis.DB,
		Prefix:    cfg.Redis.Prefix + "lock:",
	})
	if err != nil {
		return nil, ctx, err
	}
	if r, isRedis := locker.(*lock.Redis); isRedis {
		a.closers = append(a.closers, func() { _ = r.Close() })
	}

	casePolicy, err := requiredaction.ParseCasePolicy(cfg.Import.RequiredActionCase)
	if err != nil {
		return nil, ctx, err
	}

	a.importer = importer.New(dir, importer.Options{
		AdminRealm: cfg.Realms.AdminRealm,
		Codec:      credential.New(credential.Options{PasswordAlgorithm: cfg.Credentials.PasswordAlgorithm}),
		Actions:    requiredaction.New(casePolicy),
		Locker:     locker,
		LockTTL:    cfg.Import.Lock.TTL,
	})
	a.exporter = exporter.New(dir)
	a.cache = bundle.NewCache(cfg.Import.CacheTTL)

	log.Debug("app wired",
		logger.Component("cmd"),
		logger.String("storage", cfg.Storage.Driver),
		logger.String("lock", cfg.Import.Lock.Kind),
		logger.Strategy(strategy.String()),
	)
	ok = true
	return a, ctx, nil
}

// Close libera recursos en orden inverso.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// strategyOr parsea la flag --strategy; vacía usa la de la config.
func (a *app) strategyOr(flag string) (types.Strategy, error) {
	if flag == "" {
		return a.strategy, nil
	}
	return types.ParseStrategy(flag)
}
