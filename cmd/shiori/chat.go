package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/hyperjump/shiori/internal/chat"
	"github.com/hyperjump/shiori/internal/cli"
	"github.com/hyperjump/shiori/internal/models"
	"go.uber.org/zap"
)

const exitCommand = "exit"

func runChat() {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	k := fs.Int("k", 0, "chunks per turn (default: retrieval.top_k)")
	showContext := fs.Bool("show-context", false, "print retrieved chunks before each answer")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, logger := setup(*configPath, *debug)
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger, true)
	if err != nil {
		fail("Failed to initialize", err)
	}
	defer components.Close()

	completer, err := chat.NewOpenAICompleter(cfg.LLM.BaseURL, cfg.LLM.APIKey(), cfg.LLM.Model, cfg.LLM.MaxTokens)
	if err != nil {
		fail("Failed to initialize LLM client", err)
	}
	topK := cfg.Retrieval.TopK
	if *k > 0 {
		topK = *k
	}
	session := chat.NewSession(components.Retriever, components.Assembler, completer,
		chat.WithTopK(topK),
		chat.WithLogger(logger))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	color.Cyan("Chatting with %s over %s. Type %q to quit.", cfg.LLM.Model, cfg.Storage.IndexPath, exitCommand)
	runChatLoop(ctx, session, bufio.NewScanner(os.Stdin), *showContext, logger)
}

// runChatLoop reads one question per line until exit, EOF or ctx is done. A failed turn is
// reported and the conversation continues without it.
func runChatLoop(ctx context.Context, session *chat.Session, in *bufio.Scanner, showContext bool, logger *zap.Logger) {
	conv := chat.NewConversation()
	youPrompt := color.New(color.FgGreen, color.Bold).PrintfFunc()
	botPrompt := color.New(color.FgBlue, color.Bold).PrintfFunc()
	for {
		youPrompt("\nYou: ")
		if !in.Scan() {
			fmt.Println()
			return
		}
		query := strings.TrimSpace(in.Text())
		if query == "" {
			continue
		}
		if strings.EqualFold(query, exitCommand) {
			return
		}

		botPrompt("Assistant: ")
		reply, err := session.Turn(ctx, conv, query, func(fragment string) {
			fmt.Print(fragment)
		})
		fmt.Println()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			color.Red("error: %v", err)
			logger.Debug("chat turn failed", zap.Error(err), zap.Int("history", conv.Len()))
			continue
		}
		if showContext {
			printContext(reply.Hits)
		}
	}
}

func printContext(hits models.RetrievalResult) {
	faint := color.New(color.Faint)
	for _, h := range hits {
		faint.Printf("  [%d] %s (%.4f)\n", h.Rank, cli.SourceLabel(h.Chunk.Metadata), h.Distance)
	}
}
