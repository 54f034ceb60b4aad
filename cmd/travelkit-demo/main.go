package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"time"

	"travelkit/api/httpapi"
	"travelkit/core"
	"travelkit/engine"
	"travelkit/realtime"
	"travelkit/travel"
)

// eventLogger prints every engine event.
type eventLogger struct{ logger *slog.Logger }

func (l eventLogger) OnEvent(e core.Event) {
	attrs := []any{"type", e.Type, "user", e.UserID}
	switch {
	case e.Achievement != nil:
		attrs = append(attrs, "achievement", e.Achievement.ID)
	case e.Level != "":
		attrs = append(attrs, "level", e.Level)
	default:
		attrs = append(attrs, "delta", e.Delta, "total", e.Total)
	}
	l.logger.Info("event", attrs...)
}

// seed gives the demo a few travelers at different levels.
var seed = []struct {
	user       core.UserID
	activities []engine.Activity
}{
	{"rafi", []engine.Activity{
		{Kind: engine.ActivityDestinationVisited, DestinationID: "coxs-bazar-beach"},
		{Kind: engine.ActivityDestinationVisited, DestinationID: "inani-beach"},
		{Kind: engine.ActivityPlanCreated},
	}},
	{"nadia", []engine.Activity{
		{Kind: engine.ActivityDestinationVisited, DestinationID: "nilgiri"},
		{Kind: engine.ActivityDestinationVisited, DestinationID: "boga-lake"},
		{Kind: engine.ActivityStoryShared, Count: 6},
		{Kind: engine.ActivityPlanCreated, Count: 4},
		{Kind: engine.ActivityReviewWritten, Count: 10},
	}},
	{"tanvir", []engine.Activity{
		{Kind: engine.ActivityReviewWritten, Count: 3},
	}},
}

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	flag.Parse()

	// Use readable text logging for development/demo
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	ctx := context.Background()
	hub := realtime.NewHub()
	svc := travel.New(
		travel.WithRealtime(hub),
		travel.WithDispatchMode(engine.DispatchSync),
		travel.WithHooks(eventLogger{logger: logger}),
		travel.WithLogger(logger),
	)
	defer svc.Close()

	for _, s := range seed {
		for _, act := range s.activities {
			if _, err := svc.RecordActivity(ctx, s.user, act); err != nil {
				logger.Error("seed failed", "user", s.user, "activity", act.Kind, "error", err)
				os.Exit(1)
			}
		}
	}
	for _, e := range svc.Leaderboard(10) {
		logger.Info("leaderboard", "rank", e.Rank, "user", e.User, "score", e.Score, "level", e.Level)
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           httpapi.NewMux(svc, hub, httpapi.Options{CORSOrigins: []string{"*"}, Logger: logger}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	logger.Info("starting demo server", "address", *addr)
	if err := srv.ListenAndServe(); err != nil {
		logger.Error("demo server crashed", "error", err)
		os.Exit(1)
	}
}
