package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	httpapi "github.com/immxrtalbeast/jamroom/internal/api/http"
	"github.com/immxrtalbeast/jamroom/internal/auth"
	"github.com/immxrtalbeast/jamroom/internal/bus"
	"github.com/immxrtalbeast/jamroom/internal/catalog"
	"github.com/immxrtalbeast/jamroom/internal/config"
	"github.com/immxrtalbeast/jamroom/internal/repository"
	"github.com/immxrtalbeast/jamroom/internal/repository/model"
	"github.com/immxrtalbeast/jamroom/internal/service"
	"github.com/immxrtalbeast/jamroom/lib/logger/slogpretty"
)

func main() {
	_ = godotenv.Load(".env")

	cfg := config.MustLoad()
	log := setupLogger(cfg.Env)

	var (
		roomRepo   repository.RoomRepository
		memberRepo repository.MemberRepository
		userRepo   repository.UserRepository
	)

	if cfg.Database.DSN != "" {
		db, err := connectDatabase(cfg.Database)
		if err != nil {
			log.Error("failed to connect database", slog.Any("error", err))
			os.Exit(1)
		}
		roomRepo = repository.NewPostgresRoomRepository(db)
		memberRepo = repository.NewPostgresMemberRepository(db)
		userRepo = repository.NewPostgresUserRepository(db)
		log.Info("using postgres registry")
	} else {
		roomRepo = repository.NewInMemoryRoomRepository()
		memberRepo = repository.NewInMemoryMemberRepository()
		userRepo = repository.NewInMemoryUserRepository()
		log.Warn("no database dsn, using in-memory registry")
	}

	hub := bus.NewHub(log)
	tokens := auth.NewManager(cfg.Auth.Secret, cfg.Auth.TokenTTL)

	roomService := service.NewRoomService(roomRepo, memberRepo, hub, log)
	userService := service.NewUserService(userRepo, log)

	roomController := httpapi.NewRoomController(roomService, hub, log)
	userController := httpapi.NewUserController(userService, tokens)

	var songController *httpapi.SongController
	if cfg.Catalog.BaseURL != "" {
		songController = httpapi.NewSongController(catalog.NewClient(cfg.Catalog.BaseURL, cfg.Catalog.Timeout))
	}

	router := httpapi.SetupRouter(tokens, roomController, userController, songController, cfg.HTTP.AllowedOrigins)

	log.Info("starting application",
		slog.String("env", cfg.Env),
		slog.String("addr", cfg.HTTP.Address),
	)
	if err := router.Run(cfg.HTTP.Address); err != nil {
		log.Error("http server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = setupPrettySlog()
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = setupPrettySlog()
	}

	return log
}

func setupPrettySlog() *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}

	handler := opts.NewPrettyHandler(os.Stdout)

	return slog.New(handler)
}

func connectDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&model.Room{}, &model.Member{}, &model.User{}); err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return db, nil
}
