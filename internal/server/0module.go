package server

import (
	"go.uber.org/fx"

	"github.com/riftstats/backend-next/internal/server/httpserver"
	"github.com/riftstats/backend-next/internal/server/svr"
)

func Module() fx.Option {
	return fx.Module("server",
		fx.Provide(httpserver.Create),
		fx.Provide(svr.CreateEndpointGroups))
}
