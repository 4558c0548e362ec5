package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/alecthomas/kong"
	"github.com/funnelhq/funnel360/cmd/funnelctl/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Clients  commands.ClientsCmd  `cmd:"" help:"Manage clients"`
		Projects commands.ProjectsCmd `cmd:"" help:"Manage projects"`
		Login    commands.LoginCmd    `cmd:"" help:"Store a server profile"`
		Logout   commands.LogoutCmd   `cmd:"" help:"Remove a server profile"`
		Profiles commands.ProfilesCmd `cmd:"" help:"Inspect stored profiles"`
		Debug    bool                 `help:"Enable debug mode."`
		Version  kong.VersionFlag
	}
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cmd := kong.Parse(&cli,
		kong.Name("funnelctl"),
		kong.Description("Command line client for FunnelHQ 360."),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{Debug: cli.Debug, Version: version})
	cmd.FatalIfErrorf(err)
}
