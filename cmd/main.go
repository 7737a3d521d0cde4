package main

import (
	"context"

	"go.uber.org/zap"

	"github.com/slotbook/slotbook/internal/api"
	"github.com/slotbook/slotbook/internal/controller"
	"github.com/slotbook/slotbook/internal/migrations"
	"github.com/slotbook/slotbook/internal/service"
	"github.com/slotbook/slotbook/internal/storage/postgres"
	redisstore "github.com/slotbook/slotbook/internal/storage/redis"
	"github.com/slotbook/slotbook/internal/util"

	_ "github.com/lib/pq"
)

func main() {
	ctx := context.Background()
	logger := util.NewZapLogger()

	db, dbCleanup, err := util.NewDBConnection(logger)
	if err != nil {
		logger.Fatal(zap.Error(err))
	}
	if err := migrations.RunMigrations(db, logger, "./internal/migrations"); err != nil {
		logger.Fatal(zap.Error(err))
	}

	redisClient, redisCleanup, err := util.NewRedisClient(logger, util.NewRedisConfig())
	if err != nil {
		logger.Fatal(zap.Error(err))
	}

	storage := postgres.NewStorage(db)
	cleanupFuncs := []func(){dbCleanup, redisCleanup}

	tokenCfg := util.NewTokenConfig()
	tokenService, err := service.NewTokenService(tokenCfg)
	if err != nil {
		// No verifying key means no trustworthy tokens; refuse to start.
		logger.Fatal(zap.Error(err))
	}

	passwordService := service.NewPasswordService(util.NewPasswordConfig())
	refreshService := service.NewRefreshService(storage, tokenCfg, logger)
	mailerService := service.NewMailerService(logger, util.GetMailerURL())

	resetCfg := util.NewResetConfig()
	resetThrottle := redisstore.NewResetThrottle(redisClient, resetCfg.ThrottleTTL)
	resetService := service.NewResetService(
		tokenService,
		passwordService,
		refreshService,
		storage,
		resetThrottle,
		mailerService,
		tokenCfg,
		resetCfg,
		logger,
	)

	authService := service.NewAuthService(passwordService, tokenService, refreshService, storage, logger)

	cleanupService := service.NewCleanupService(storage, util.NewCleanupConfig(), logger)
	cleanupService.Start(ctx)
	cleanupFuncs = append(cleanupFuncs, cleanupService.Stop)

	ctrl := controller.NewController(logger, authService, resetService, refreshService, tokenCfg)

	apiServer := api.NewAPI(ctrl, tokenService, util.NewServerConfig(), logger, cleanupFuncs)
	apiServer.Run(ctx)
}
