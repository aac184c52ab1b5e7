package server

import (
	"context"
	"net"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"go.uber.org/fx"

	"github.com/riftstats/backend-next/internal/app"
	"github.com/riftstats/backend-next/internal/app/appconfig"
	"github.com/riftstats/backend-next/internal/app/appcontext"
)

func Run() {
	fxApp := app.New(appcontext.Declare(appcontext.EnvServer), fx.Invoke(serve))
	fxApp.Run()
}

func serve(fiberApp *fiber.App, conf *appconfig.Config, lc fx.Lifecycle) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", conf.ServiceAddress)
			if err != nil {
				return err
			}

			go func() {
				if err := fiberApp.Listener(ln); err != nil {
					log.Error().Err(err).Msg("server terminated unexpectedly")
				}
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			if conf.DevMode {
				return nil
			}
			return fiberApp.Shutdown()
		},
	})
}
