package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"go.uber.org/zap"

	"github.com/markis/difychat/internal/args"
	"github.com/markis/difychat/internal/client"
	"github.com/markis/difychat/internal/config"
	"github.com/markis/difychat/internal/logger"
	"github.com/markis/difychat/internal/render"
)

// main function to parse arguments and initiate the chat request.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx); err != nil {
		render.Failure(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.LoadConfig(ctx)
	if err != nil {
		return err
	}

	a, err := args.ParseArgs(ctx, *cfg, os.Args[1:], args.PipedStdin())
	if errors.Is(err, args.ErrHelpShown) {
		return nil
	}
	if err != nil {
		return err
	}
	applyArgs(cfg, a)

	log := logger.NewLogger(a.Debug)
	defer func() { _ = log.Sync() }()

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	c, err := client.New(*cfg, client.WithLogger(log))
	if err != nil {
		return err
	}
	log.Debug("starting", zap.String("base_url", cfg.BaseURL), zap.String("app_id", cfg.AppID), zap.String("mode", cfg.Mode))

	switch a.Action {
	case args.ActionHealth:
		return health(ctx, c)
	case args.ActionStop:
		if err := c.Stop(ctx, a.TaskID); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "stopped task %s\n", a.TaskID)
		return nil
	case args.ActionOutline:
		return outline(ctx, c, a.Outline)
	default:
		return chat(ctx, c, cfg, a)
	}
}

// applyArgs folds command line overrides into the loaded configuration.
func applyArgs(cfg *config.Config, a args.Arguments) {
	cfg.AppID = a.AppID
	cfg.User = a.User
	cfg.BaseURL = a.BaseURL
	cfg.Mode = a.Mode
	cfg.Timeout = a.Timeout
	if a.UsePlainText {
		cfg.Render.Format = "plain"
	}
}

func chat(ctx context.Context, c *client.Client, cfg *config.Config, a args.Arguments) error {
	req := client.ChatRequest{Query: a.Query(), ConversationID: a.ConversationID}
	renderer := render.NewTerminalRenderer(os.Stdout, cfg.Render.Format == "plain", cfg.Render.Wrap)

	if cfg.Mode == "block" {
		res, err := c.AskBlock(ctx, req)
		if err != nil {
			return err
		}
		if err := renderer.RenderResult(res); err != nil {
			return err
		}
		renderer.Footer(res)
		return nil
	}

	p, err := c.AskStream(ctx, req)
	if err != nil {
		return err
	}
	res, err := renderer.Render(p.Chunks())
	if err != nil {
		return err
	}
	renderer.Footer(res)
	return nil
}

func health(ctx context.Context, c *client.Client) error {
	status := c.Health(ctx)
	out, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode health status: %w", err)
	}
	fmt.Fprintln(os.Stdout, string(out))
	if !status.Available {
		return errors.New(status.Error)
	}
	return nil
}

func outline(ctx context.Context, c *client.Client, o args.Outline) error {
	lines, err := c.GenerateOutline(ctx, client.OutlineRequest{
		Title:       o.Title,
		Keywords:    o.Keywords,
		Field:       o.Field,
		OutlineType: o.Type,
		Language:    o.Language,
	})
	if err != nil {
		return err
	}
	for _, line := range lines {
		fmt.Fprintln(os.Stdout, line)
	}
	return nil
}
