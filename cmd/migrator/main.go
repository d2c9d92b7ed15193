package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/boletaje/internal/buildinfo"
	"github.com/dmitrijs2005/boletaje/internal/common"
	"github.com/dmitrijs2005/boletaje/internal/migrator"
	"github.com/dmitrijs2005/boletaje/internal/migrator/config"
	"github.com/dmitrijs2005/boletaje/internal/migrator/pipeline"
)

const (
	exitOK      = 0
	exitFailed  = 1
	exitStartup = 2
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stderr))
}

func run(ctx context.Context, args []string, stderr io.Writer) int {
	buildinfo.PrintBuildData(stderr)

	cfg, err := config.LoadConfig(args)
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return startupCode(err)
	}

	app, err := migrator.NewApp(ctx, cfg)
	if err != nil {
		fmt.Fprintf(stderr, "startup: %v\n", err)
		return startupCode(err)
	}

	sum := app.Run(ctx)
	if err := app.Close(); err != nil {
		fmt.Fprintf(stderr, "shutdown: %v\n", err)
	}
	return summaryCode(sum)
}

// startupCode maps errors raised before any item is touched. Configuration,
// credential and lock problems need an operator; anything else may be
// transient.
func startupCode(err error) int {
	switch {
	case errors.Is(err, common.ErrInvalidConfig),
		errors.Is(err, common.ErrAuthentication),
		errors.Is(err, common.ErrLocked):
		return exitStartup
	default:
		return exitFailed
	}
}

func summaryCode(sum pipeline.RunSummary) int {
	if sum.OK() {
		return exitOK
	}
	return exitFailed
}
