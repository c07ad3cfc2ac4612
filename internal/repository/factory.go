package repository

import (
	"go.uber.org/fx"
)

// Module provides all repository implementations
func Module() fx.Option {
	return fx.Options(
		fx.Provide(
			NewPaymentRepository,
			NewRideRepository,
			NewTenantRepository,
			NewNumberingRepository,
		),
	)
}
