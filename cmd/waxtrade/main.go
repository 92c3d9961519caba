// Command waxtrade is a terminal client for the marketplace: it logs in,
// watches the unread badge, and optionally tails one conversation, printing
// messages and trade-state changes as they become visible.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"waxtrade/internal/app/dto"
	"waxtrade/internal/app/inbox"
	"waxtrade/internal/app/notify"
	"waxtrade/internal/app/session"
	"waxtrade/internal/infra/api"
	"waxtrade/internal/infra/config"
	"waxtrade/internal/infra/obs"
	"waxtrade/internal/infra/stream"
)

func main() {
	email := flag.String("email", "", "login email")
	password := flag.String("password", "", "login password")
	conversationID := flag.String("conversation", "", "conversation id to tail (optional)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	logger := obs.NewLogger(cfg.Env)

	if *email == "" || *password == "" {
		fmt.Fprintln(os.Stderr, "usage: waxtrade -email you@example.com -password secret [-conversation id]")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := api.NewClient(api.Config{
		BaseURL:   cfg.APIBaseURL,
		Timeout:   cfg.HTTPTimeout,
		UserAgent: cfg.UserAgent,
	}, logger)
	if err != nil {
		logger.Error("client init failed", "error", err)
		os.Exit(1)
	}

	user, err := client.Login(ctx, *email, *password)
	if err != nil {
		logger.Error("login failed", "error", err)
		os.Exit(1)
	}
	logger.Info("logged in", "user_id", user.ID, "username", user.Username)

	watcher := inbox.NewWatcher(client, cfg.BadgePollInterval, logger)
	go func() {
		if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("badge watcher stopped", "error", err)
			stop()
		}
	}()
	go func() {
		for count := range watcher.Updates() {
			fmt.Printf("== unread messages: %d\n", count)
		}
	}()

	listView := inbox.NewListView(client, logger)
	if err := listView.Load(ctx); err == nil {
		for _, row := range listView.Summaries() {
			marker := " "
			if row.TotalNotifications > 0 {
				marker = "*"
			}
			fmt.Printf("%s %s — %s with %s (%d new)\n",
				marker, row.ConversationID, row.Record.Title, row.Other.Username, row.TotalNotifications)
		}
	}

	if *conversationID == "" {
		<-ctx.Done()
		return
	}

	var hints <-chan string
	if cfg.StreamURL != "" {
		sub, err := stream.NewSubscriber(cfg.StreamURL, client.Credential().Token, logger)
		if err == nil {
			go sub.Run(ctx)
			hints = sub.Hints()
		}
	}

	sess, err := session.New(client, session.Config{
		ConversationID: *conversationID,
		PollInterval:   cfg.PollInterval,
		Hints:          hints,
	}, logger)
	if err != nil {
		logger.Error("session init failed", "error", err)
		os.Exit(1)
	}
	defer sess.Close()

	go func() {
		for range sess.TradeConfirmed() {
			watcher.Poke()
		}
	}()

	go tail(ctx, sess)
	sess.Run(ctx)
}

// tail prints newly visible messages and trade-state transitions.
func tail(ctx context.Context, sess *session.Session) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	seen := make(map[string]bool)
	var lastStatus dto.TradeStatus
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		conv, ok := sess.Conversation()
		if !ok {
			continue
		}
		for _, msg := range conv.Messages {
			if seen[msg.ID] {
				continue
			}
			seen[msg.ID] = true
			fmt.Printf("[%s] %s: %s\n", msg.Timestamp.Format("15:04:05"), msg.Sender.Username, msg.Text)
		}
		printTransitions(lastStatus, conv, sess.UserID())
		lastStatus = conv.TradeStatus
		if sess.FeedbackPromptOpen() {
			fmt.Println("== trade completed: leave feedback with the web client")
			sess.DismissFeedbackPrompt()
		}
	}
}

func printTransitions(prev dto.TradeStatus, conv dto.Conversation, userID string) {
	cur := conv.TradeStatus
	if prev.InitiatedBy == "" && cur.InitiatedBy != "" && !cur.IsCompleted {
		if notify.HasPendingConfirmation(cur, userID) {
			fmt.Printf("== %s initiated trade completion, awaiting your confirmation\n", conv.Other(userID).Username)
		} else {
			fmt.Println("== you initiated trade completion, awaiting confirmation")
		}
	}
	if !prev.IsCompleted && cur.IsCompleted {
		fmt.Println("== trade completed")
	}
}
