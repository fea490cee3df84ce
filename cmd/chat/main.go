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
	"github.com/lawflow/streamchat/internal/session"
	"github.com/lawflow/streamchat/pkg/protocol"
)

type config struct {
	ServerURL      string `envconfig:"CHAT_SERVER_URL" default:"ws://127.0.0.1:8080"`
	Token          string `envconfig:"CHAT_TOKEN"`
	ConversationID string `envconfig:"CHAT_CONVERSATION_ID"`
	Genre          string `envconfig:"CHAT_GENRE"`
}

func main() {
	var cfg config
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("Failed to read environment: %v", err)
	}

	serverURL := flag.String("server", cfg.ServerURL, "Server base URL (e.g. ws://localhost:8080)")
	token := flag.String("token", cfg.Token, "Bearer token; empty means guest mode")
	conversationID := flag.String("conversation", cfg.ConversationID, "Conversation ID to resume")
	genre := flag.String("genre", cfg.Genre, "Topic tag attached to each turn")
	verbose := flag.Bool("verbose", false, "Log connection internals")
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	if *verbose {
		logger = logger.Level(zerolog.DebugLevel)
	} else {
		logger = logger.Level(zerolog.WarnLevel)
	}

	var tokens client.TokenStore
	if *token != "" {
		tokens = client.NewMemoryTokenStore(*token)
	}

	c := client.NewChat(client.ChatConfig{
		BaseURL:        *serverURL,
		Tokens:         tokens,
		ConversationID: *conversationID,
		Genre:          *genre,
		Intro:          session.DefaultIntro,
		Welcome:        session.DefaultWelcome,
		Logger:         logger,
	})
	c.Start(context.Background())
	defer c.Stop()

	go printEvents(c.Events())

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
	streaming := false
	for ev := range events {
		switch ev.Kind {
		case client.EventState:
			fmt.Printf("*** connection %s ***\n", strings.ToLower(ev.State.String()))
		case client.EventPartial:
			fmt.Print(ev.Fragment)
			streaming = true
		case client.EventMessage:
			if ev.Message.SpeakerID != protocol.SpeakerAssistant {
				continue
			}
			if streaming {
				fmt.Println()
				streaming = false
			} else {
				fmt.Printf("[assistant]: %s\n", ev.Message.Text)
			}
		case client.EventLog:
			fmt.Println("*** conversation ***")
			for _, msg := range ev.Messages {
				fmt.Printf("[%s]: %s\n", strings.ToLower(msg.SpeakerID.String()), msg.Text)
			}
		case client.EventNotice:
			fmt.Printf("*** server error: %s ***\n", ev.Notice)
		case client.EventConversation:
			fmt.Printf("*** conversation id: %s ***\n", ev.ConversationID)
		}
	}
}
