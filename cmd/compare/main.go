package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"

	"github.com/lawflow/streamchat/internal/client"
	"github.com/lawflow/streamchat/pkg/protocol"
)

type config struct {
	ServerURL string `envconfig:"CHAT_SERVER_URL" default:"ws://127.0.0.1:8080"`
}

func main() {
	var cfg config
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("Failed to read environment: %v", err)
	}

	serverURL := flag.String("server", cfg.ServerURL, "Server base URL (e.g. ws://localhost:8080)")
	rag := flag.Bool("rag", false, "Compare retrieval-augmented vs. plain instead of context vs. plain")
	verbose := flag.Bool("verbose", false, "Log connection internals")
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	if *verbose {
		logger = logger.Level(zerolog.DebugLevel)
	} else {
		logger = logger.Level(zerolog.WarnLevel)
	}

	mode := client.ModeComparison
	if *rag {
		mode = client.ModeRagComparison
	}

	c := client.NewCompare(client.CompareConfig{
		BaseURL: *serverURL,
		Mode:    mode,
		Logger:  logger,
	})
	c.Start(context.Background())
	defer c.Stop()

	go printEvents(c.Events())

	fmt.Println("Each question is answered twice, side by side.")
	fmt.Println("Type your messages ('/reset' to start over, 'quit' to exit):")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
		case "quit":
			return
		case "/reset":
			c.Reset()
		default:
			c.Submit(line)
		}
	}
}

func printEvents(events <-chan client.Event) {
	for ev := range events {
		switch ev.Kind {
		case client.EventState:
			fmt.Printf("*** connection %s ***\n", strings.ToLower(ev.State.String()))
		case client.EventMessage:
			if ev.Message.SpeakerID != protocol.SpeakerAssistant {
				continue
			}
			fmt.Printf("[%s]: %s\n", ev.Stream, ev.Message.Text)
		case client.EventNotice:
			fmt.Printf("*** server error: %s ***\n", ev.Notice)
		}
	}
}
