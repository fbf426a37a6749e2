package main

import (
	"context"
	"log"
	"os"

	"github.com/alexkarev/homekeeper/internal/buildinfo"
	"github.com/alexkarev/homekeeper/internal/cli"
	"github.com/alexkarev/homekeeper/internal/config"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	ctx := context.Background()
	cfg := config.LoadConfig()

	cli.AppVersion = buildinfo.Version

	app, err := cli.NewApp(ctx, cfg)
	if err != nil {
		log.Fatalf("%v", err)
		return
	}
	defer app.Close()

	// Usage is "homekeeper <command> [flags]"; everything after the first
	// flag belongs to the config layer.
	var command []string
	if len(os.Args) > 1 && os.Args[1][0] != '-' {
		command = os.Args[1:2]
	}

	if err := app.Run(ctx, command); err != nil {
		log.Fatalf("%v", err)
	}
}
