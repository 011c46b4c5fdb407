package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/themebuilder/cmd/themebuilder/commands"
	ferrors "git.home.luguber.info/inful/themebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/themebuilder/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	var cli commands.CLI
	parser := kong.Parse(&cli,
		kong.Name("themebuilder"),
		kong.Description("Front-end asset builder for WordPress themes."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
		kong.Bind(&cli),
		kong.BindTo(ctx, (*context.Context)(nil)),
	)

	err := parser.Run()
	stop()
	if err != nil {
		os.Exit(ferrors.NewCLIErrorAdapter(cli.Verbose, slog.Default()).Report(err))
	}
}
