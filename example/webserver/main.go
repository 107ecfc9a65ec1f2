package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gleipnir-Technology/bounce/video"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}).With().Timestamp().Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bind := os.Getenv("BIND")
	if bind == "" {
		bind = ":8080"
	}
	logger := log.Logger.With().Str("workspace", os.Getenv("BOUNCE_USER_ID")).Logger()
	s := newServer(ctx, video.NewCatalog(sampleVideos()...), logger, 2*time.Second, clockwork.NewRealClock())
	server := &http.Server{
		Addr:              bind,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	logger.Info().Str("bind", bind).Int("videos", s.catalog.Len()).Msg("Server starting")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("listen")
	}
}

func sampleVideos() []video.Video {
	published := func(s string) time.Time {
		t, _ := time.Parse(time.DateOnly, s)
		return t
	}
	return []video.Video{
		{
			ID:           "f6kdp27TYZs",
			Title:        "Go Concurrency Patterns",
			Description:  "Concurrency is the key to designing high performance network services.",
			ChannelTitle: "Google for Developers",
			PublishedAt:  published("2012-07-02"),
			Duration:     "PT51M27S",
			ViewCount:    1104322,
		},
		{
			ID:           "QDDwwePbDtw",
			Title:        "Advanced Go Concurrency Patterns",
			Description:  "Timers, select loops and cancellation.",
			ChannelTitle: "Google for Developers",
			PublishedAt:  published("2013-05-23"),
			Duration:     "PT34M11S",
			ViewCount:    402117,
		},
		{
			ID:           "cN_DpYBzKso",
			Title:        "Rob Pike - Concurrency Is Not Parallelism",
			Description:  "The difference between concurrency and parallelism.",
			ChannelTitle: "gnbitcom",
			PublishedAt:  published("2013-01-16"),
			Duration:     "PT31M22S",
			ViewCount:    851240,
		},
		{
			ID:           "UYp1QoSyzYI",
			Title:        "Debouncing and throttling explained",
			Description:  "Why a search box should wait for the user to stop typing.",
			ChannelTitle: "Frontend Weekly",
			PublishedAt:  published("2021-09-14"),
			Duration:     "PT12M05S",
			ViewCount:    98311,
		},
	}
}
