package service

import (
	"context"
	"testing"

	"fastpay/internal/model"
	"fastpay/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountRegisterAndStatus(t *testing.T) {
	db := newTestDB(t)
	svc := NewAccountService(db, nil, testConfig())
	ctx := context.Background()

	frozen, exists, err := svc.Status(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, frozen)
	assert.False(t, exists)

	require.NoError(t, svc.Register(ctx, &RegisterRequest{
		AccountID: "alice", PhoneNumber: "13800000001", PINHash: "h",
	}))

	err = svc.Register(ctx, &RegisterRequest{
		AccountID: "alice", PhoneNumber: "13800000002", PINHash: "h",
	})
	assert.ErrorIs(t, err, repository.ErrAccountExists)

	frozen, exists, err = svc.Status(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, frozen)
	assert.True(t, exists)
}

func TestAccountFreezeReport(t *testing.T) {
	db := newTestDB(t)
	svc := NewAccountService(db, nil, testConfig())
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, &RegisterRequest{
		AccountID: "alice", PhoneNumber: "13800000001", PINHash: "h",
	}))

	// reason 缺省时落默认值
	require.NoError(t, svc.Freeze(ctx, "alice", "", "device lost"))

	account, err := repository.NewAccountRepository(db).GetByAccountID(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, account.Frozen)
	assert.Equal(t, model.FreezeReasonVerificationFailed, account.FrozenReason)

	// 幂等：重复冻结不报错
	require.NoError(t, svc.Freeze(ctx, "alice", model.FreezeReasonManualReport, ""))
}

func TestRegisterDeviceTokenFrozenGate(t *testing.T) {
	db := newTestDB(t)
	svc := NewAccountService(db, nil, testConfig())
	ctx := context.Background()

	require.NoError(t, svc.RegisterDeviceToken(ctx, "alice", "token-1", ""))

	got, err := repository.NewDeviceTokenRepository(db).GetByAccountID(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.PlatformAndroid, got.Platform) // 平台缺省 android

	require.NoError(t, svc.Register(ctx, &RegisterRequest{
		AccountID: "bob", PhoneNumber: "13800000002", PINHash: "h",
	}))
	require.NoError(t, svc.Freeze(ctx, "bob", model.FreezeReasonManualReport, ""))

	err = svc.RegisterDeviceToken(ctx, "bob", "token-2", "ios")
	assert.ErrorIs(t, err, ErrAccountFrozen)
}
