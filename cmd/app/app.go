package app

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/riftstats/backend-next/cmd/app/server"
	"github.com/riftstats/backend-next/internal/pkg/bininfo"
)

func Run() {
	app := &cli.App{
		Name:        "rsbackend",
		Description: "The RiftStats Analytics Backend. Built with Go, fiber, bun and go.uber.org/fx. Serves match analytics, baselines and recommendations.",
		Version:     bininfo.Version,
		Commands: []*cli.Command{
			server.Command(),
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("failed to run app")
	}
}
