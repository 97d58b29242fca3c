package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"lifehub/internal/cli"
	"lifehub/internal/log"
	"lifehub/internal/services"
)

// app holds the services a command runs against.
type app struct {
	accounting *services.AccountingService
	board      *services.BoardService
	close      func() error
}

type opener func(ctx context.Context) (*app, error)

// openApp builds the services from the process configuration, the same way
// the API server does. Events are published when AMQP is configured so the
// worker sees CLI writes too.
func openApp(ctx context.Context) (*app, error) {
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		return nil, err
	}

	// Logs go to stderr so that stdout stays machine readable.
	logger := log.New(log.Config{
		Level:     log.ParseLevel(cfg.LogLevel),
		Component: log.ComponentCLI,
		Output:    os.Stderr,
	})
	log.SetDefault(logger)

	res, err := cli.OpenBackend(ctx, logger.WithComponent(log.ComponentBackend), cfg, false)
	if err != nil {
		return nil, fmt.Errorf("open backend: %w", err)
	}

	var publisher services.EventPublisher
	if res.Events != nil {
		publisher = res.Events
	}

	return &app{
		accounting: services.NewAccountingService(res.Store, publisher, services.AccountingOptions{
			AllowOverdraft: cfg.AllowOverdraft,
		}),
		board: services.NewBoardService(res.Store, nil),
		close: res.Cleanup,
	}, nil
}

func withApp(ctx context.Context, open opener, fn func(a *app) error) error {
	a, err := open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if a.close != nil {
			_ = a.close()
		}
	}()
	return fn(a)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
