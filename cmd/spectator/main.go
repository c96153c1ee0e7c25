package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/livescore/livescore-backend/internal/syncclient"
	"github.com/livescore/livescore-backend/pkg/logger"
)

func main() {
	server := flag.String("server", "http://localhost:8080", "live score server base URL")
	matches := flag.String("matches", "", "comma separated match ids to watch")
	userID := flag.Int64("user", 0, "user id sent in IDENTIFY (0 to stay anonymous)")
	token := flag.String("token", "", "JWT for scoring privileges")
	reconnect := flag.Duration("reconnect", syncclient.DefaultReconnectDelay, "reconnect delay")
	level := flag.String("log-level", "info", "log level")
	flag.Parse()

	logger.Init(*level, "development")
	defer logger.Sync()

	ids, err := parseIDs(*matches)
	if err != nil {
		log.Fatalf("Invalid -matches: %v", err)
	}
	if len(ids) == 0 {
		log.Fatal("At least one match id is required (-matches 1,2)")
	}

	agent, err := syncclient.New(syncclient.Config{
		ServerURL:      *server,
		UserID:         *userID,
		Token:          *token,
		ReconnectDelay: *reconnect,
		Logger:         logger.Named("sync"),
	})
	if err != nil {
		log.Fatalf("Failed to create agent: %v", err)
	}

	out := logger.Named("spectator")
	agent.OnUpdate(func(v syncclient.MatchView) {
		out.Info("Match update",
			zap.Int64("matchId", v.MatchID),
			zap.String("score", formatScore(v)),
			zap.Int("frame", v.FrameNumber),
			zap.String("status", string(v.Status)),
			zap.Bool("optimistic", v.Optimistic))
	})

	for _, id := range ids {
		agent.Watch(id)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := agent.Start(ctx); err != nil {
		log.Fatalf("Failed to start agent: %v", err)
	}

	<-ctx.Done()

	done := make(chan struct{})
	go func() {
		agent.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		out.Warn("Agent did not stop in time")
	}
}

func parseIDs(s string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func formatScore(v syncclient.MatchView) string {
	side := func(s *int) string {
		if s == nil {
			return "-"
		}
		return strconv.Itoa(*s)
	}
	return side(v.Score1) + ":" + side(v.Score2)
}
