package service

import (
	"context"
	"errors"

	"fastpay/internal/infrastructure/cache"
	"fastpay/internal/repository"
)

var (
	ErrAccountFrozen = errors.New("账户已冻结，请联系客服")
)

// frozenGate 冻结门禁
//
// 所有准入/校验/设备注册操作的第一道检查。冻结是单向迁移，
// 缓存命中"已冻结"可以直接拒绝；未命中时回源数据库并回填。
// 未注册账户默认放行（视为未冻结），require_registered 开启后拒绝。
type frozenGate struct {
	accountRepo       *repository.AccountRepository
	frozenCache       *cache.FrozenCache
	requireRegistered bool
}

func (g *frozenGate) ensureNotFrozen(ctx context.Context, accountID string) error {
	if frozen, hit := g.frozenCache.Get(ctx, accountID); hit {
		if frozen {
			return ErrAccountFrozen
		}
		return nil
	}

	var frozen bool
	if g.requireRegistered {
		account, err := g.accountRepo.GetByAccountID(ctx, accountID)
		if err != nil {
			return err // 含 ErrAccountNotFound
		}
		frozen = account.Frozen
	} else {
		var err error
		frozen, err = g.accountRepo.IsFrozen(ctx, accountID)
		if err != nil {
			return err
		}
	}

	g.frozenCache.Set(ctx, accountID, frozen)
	if frozen {
		return ErrAccountFrozen
	}
	return nil
}

// markFrozen 冻结动作后的缓存回写，保证门禁立即生效
func (g *frozenGate) markFrozen(ctx context.Context, accountID string) {
	g.frozenCache.Set(ctx, accountID, true)
}
