package repositories_fx

import (
	"go.uber.org/fx"

	"spreadchecker/internal/repositories"
)

var Module = fx.Provide(
	repositories.NewCompanyRepository,
	repositories.NewMemberRepository,
	repositories.NewAddonRepository,
	repositories.NewChargeRepository,
	repositories.NewWebhookEventRepository,
)
