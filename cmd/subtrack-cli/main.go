package main

import (
	"context"
	"fmt"
	"os"
	_ "time/tzdata"

	"subtrack/internal/cli"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cli.SetVersionInfo(version, commit, date)

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	if err := cli.ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, cli.Error("error: "+err.Error()))
		stop()
		os.Exit(1)
	}
}
