package member_fx

import (
	"go.uber.org/fx"

	"spreadchecker/internal/services"
	mem "spreadchecker/pkg/memcache"
)

var Module = fx.Options(
	fx.Provide(provideInviteTokens),
	fx.Provide(services.NewMemberService),
)

func provideInviteTokens() mem.InviteTokenStore {
	return mem.NewInviteTokens()
}
