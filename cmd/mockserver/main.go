package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"

	"github.com/lawflow/streamchat/internal/server"
	"github.com/lawflow/streamchat/internal/session"
)

type config struct {
	Addr string `envconfig:"MOCKSERVER_ADDR" default:":8080"`
}

func main() {
	var cfg config
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("Failed to read environment: %v", err)
	}

	addr := flag.String("addr", cfg.Addr, "Address to listen on (e.g. :8080)")
	delay := flag.Duration("delay", 30*time.Millisecond, "Pause between token frames")
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	srv := server.New(server.Config{
		Addr:        *addr,
		Welcome:     session.DefaultWelcome,
		StreamDelay: *delay,
		Logger:      logger,
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case err := <-errChan:
		if err != nil {
			log.Fatalf("Server error: %v", err)
		}
	case sig := <-sigChan:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
		srv.Stop()
	}
}
