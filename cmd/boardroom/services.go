package main

import (
	"database/sql"

	"github.com/driftlab/boardroom/internal/auth"
	"github.com/driftlab/boardroom/internal/boards"
	"github.com/driftlab/boardroom/internal/config"
	"github.com/driftlab/boardroom/internal/images"
	"github.com/driftlab/boardroom/internal/jobs"
	"github.com/driftlab/boardroom/internal/realtime"
	"github.com/driftlab/boardroom/internal/reconcile"
	"github.com/driftlab/boardroom/internal/users"

	boardsdb "github.com/driftlab/boardroom/internal/boards/db"
	imagesdb "github.com/driftlab/boardroom/internal/images/db"
	usersdb "github.com/driftlab/boardroom/internal/users/db"
)

type Services struct {
	Users     *users.Service
	Boards    *boards.Service
	Images    *images.Service
	Jobs      *jobs.Service
	WebSocket *realtime.WebSocketHandler
	Manager   *realtime.Manager
	Runner    *jobs.Runner
}

func setupServices(database *sql.DB, cfg config.Config, tokens *auth.HMACTokenService, manager *realtime.Manager, publisher jobs.Publisher) *Services {
	// Wire up dependency injection chain
	// Database layer → Repository layer → App layer → Service layer

	// Users
	userQueries := usersdb.New(database)
	userRepo := users.NewRepository(userQueries)
	userApp := users.NewApp(userRepo, tokens)
	userService := users.NewService(userApp)

	// Boards
	boardQueries := boardsdb.New(database)
	boardRepo := boards.NewRepository(boardQueries, database)
	boardApp := boards.NewApp(boardRepo, manager)

	// Images and the position reconciler
	imageQueries := imagesdb.New(database)
	imageRepo := images.NewRepository(imageQueries)
	reconciler := reconcile.NewReconciler(imageRepo, boardRepo, manager)
	imageApp := images.NewApp(imageRepo, boardRepo, manager, reconciler)
	imageService := images.NewService(imageApp, reconciler, tokens)
	boardService := boards.NewService(boardApp, imageApp, tokens)

	// Combine jobs
	runnerCfg := jobs.DefaultRunnerConfig()
	runnerCfg.Workers = cfg.Jobs.Workers
	runnerCfg.QueueDepth = cfg.Jobs.QueueDepth
	runner := jobs.NewRunner(publisher, imageApp, imageApp, boardRepo, runnerCfg, nil)
	jobService := jobs.NewService(runner, tokens)

	// WebSocket transport
	wsHandler := realtime.NewWebSocketHandler(manager, tokens, boardRepo, reconciler)

	return &Services{
		Users:     userService,
		Boards:    boardService,
		Images:    imageService,
		Jobs:      jobService,
		WebSocket: wsHandler,
		Manager:   manager,
		Runner:    runner,
	}
}
