package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	api "github.com/mind-engage/mindengage-headlessquiz/internal/api/http"
	auth "github.com/mind-engage/mindengage-headlessquiz/internal/auth/middleware"
	"github.com/mind-engage/mindengage-headlessquiz/internal/config"
	"github.com/mind-engage/mindengage-headlessquiz/internal/db"
	"github.com/mind-engage/mindengage-headlessquiz/internal/engine"
	"github.com/mind-engage/mindengage-headlessquiz/internal/logger"
	"github.com/mind-engage/mindengage-headlessquiz/internal/quiz"
)

func main() {
	cfg := config.FromEnv()
	logger.Init(cfg.LogLevel, cfg.LogFormat)

	closeState, err := quiz.ParseCloseState(cfg.ForceNewCloseState)
	if err != nil {
		log.Fatal().Err(err).Msg("bad FORCE_NEW_CLOSE_STATE")
	}
	driver, err := db.ParseDriver(cfg.DBDriver)
	if err != nil {
		log.Fatal().Err(err).Msg("bad DB_DRIVER")
	}

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	dbh, err := db.Open(ctx, driver, cfg.DBDSN)
	cancel()
	if err != nil {
		log.Fatal().Err(err).Msg("db open failed")
	}
	defer dbh.Close()

	store := engine.New(dbh)
	router := api.NewRouter(api.RouterConfig{
		DB:          dbh,
		Store:       store,
		API:         quiz.NewAPI(store.Deps(engine.NewHTMLRenderer()), quiz.WithCloseState(closeState)),
		Auth:        auth.NewAuthService(cfg.AuthHMACSecret, cfg.TokenTTL),
		CORSOrigins: cfg.CORSOrigins,
		DefaultLang: cfg.DefaultLang,
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	stop, cancelSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancelSignals()

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Str("db", string(driver)).
			Str("force_new_close_state", string(closeState)).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-stop.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}
}
