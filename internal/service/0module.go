package service

import (
	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("service", fx.Provide(
		NewStat,
		NewHealth,
		NewBaseline,
		NewAnalytics,
		NewRecommend,
		NewComposition,
		func() MetaSource { return NoopMeta{} },
	))
}
