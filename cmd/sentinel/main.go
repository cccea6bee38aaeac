package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robalyx/sentinel/internal/engine/types"
	"github.com/robalyx/sentinel/internal/engine/types/enum"
	"github.com/robalyx/sentinel/internal/setup"
	"github.com/robalyx/sentinel/internal/storage/redis"
	"github.com/robalyx/sentinel/internal/worker/ingest"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

// SentinelLogDir specifies where log files are stored.
const SentinelLogDir = "logs/sentinel_logs"

func main() {
	if err := run(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	app := &cli.Command{
		Name:  "sentinel",
		Usage: "Behavioral detection and progressive enforcement for chat communities",
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Drain the pending event queue through the detection engine",
				Action: func(ctx context.Context, _ *cli.Command) error {
					return runServe(ctx)
				},
			},
			{
				Name:  "simulate",
				Usage: "Feed a synthetic raid and spam burst through the engine",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "community",
						Value: "simulated",
						Usage: "Community ID for the synthetic events",
					},
					&cli.IntFlag{
						Name:  "actors",
						Value: 8,
						Usage: "Number of synthetic accounts to join",
					},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					return runSimulate(ctx, c.String("community"), int(c.Int("actors")))
				},
			},
		},
	}

	return app.Run(context.Background(), os.Args)
}

// runServe blocks on the Redis event queue until interrupted.
func runServe(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := setup.InitializeApp(ctx, SentinelLogDir)
	if err != nil {
		return err
	}
	defer app.Cleanup(ctx)

	if app.EventQueue == nil {
		return fmt.Errorf("serve requires redis to be enabled in the configuration")
	}

	worker := ingest.New(app.Engine, app.Rules.Rules, app.Dispatcher, app.Config.Ingest.Workers, app.Logger)
	source := &queueSource{
		queue:   app.EventQueue,
		timeout: time.Duration(app.Config.Ingest.PopTimeoutSecs) * time.Second,
	}

	app.Logger.Info("Draining pending events",
		zap.Int("workers", app.Config.Ingest.Workers))

	if err := worker.Run(ctx, source); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// queueSource adapts the Redis event queue to the ingest worker's source.
type queueSource struct {
	queue   *redis.EventQueue
	timeout time.Duration
}

func (s *queueSource) Next(ctx context.Context) (*types.Event, error) {
	return s.queue.Pop(ctx, s.timeout)
}

// runSimulate pushes a burst of suspicious joins and repeated messages
// through the engine directly, printing every directive it produces.
func runSimulate(ctx context.Context, community string, actors int) error {
	app, err := setup.InitializeApp(ctx, SentinelLogDir)
	if err != nil {
		return err
	}
	defer app.Cleanup(ctx)

	worker := ingest.New(app.Engine, app.Rules.Rules, app.Dispatcher, app.Config.Ingest.Workers, app.Logger)
	now := time.Now()

	for i := range actors {
		actorID := fmt.Sprintf("sim-%04d", i)
		created := now.Add(-30 * time.Minute)

		worker.Process(ctx, &types.Event{
			Kind:      enum.EventKindJoin,
			Community: community,
			ActorID:   actorID,
			Timestamp: now.Add(time.Duration(i) * time.Second),
			Profile: &types.Profile{
				DisplayName: fmt.Sprintf("user%04dbot", i),
				CreatedAt:   created,
				JoinedAt:    now,
			},
		})
	}

	rs := app.Rules.Rules(community)
	lock := app.Engine.LockState(community, rs, now.Add(time.Duration(actors)*time.Second))
	fmt.Printf("community %s lock status after joins: %s (joins in window: %d)\n",
		community, lock.Status, lock.TriggerCount)

	for i := range 6 {
		worker.Process(ctx, &types.Event{
			Kind:      enum.EventKindMessage,
			Community: community,
			ActorID:   "sim-0000",
			Timestamp: now.Add(time.Duration(actors+i) * time.Second),
			Profile: &types.Profile{
				DisplayName: "user0000bot",
				CreatedAt:   now.Add(-30 * time.Minute),
				JoinedAt:    now,
			},
			Message: &types.Message{
				Text:         "FREE NITRO click here http://sketchy.example.com",
				MentionCount: 6,
				Links:        []string{"http://sketchy.example.com"},
			},
		})
	}

	state := app.Engine.ActorState(community, "sim-0000")
	fmt.Printf("actor sim-0000 ended at stage %s with score %.2f\n", state.Stage, state.Score)
	return nil
}
