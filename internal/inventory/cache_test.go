package inventory

import (
	"context"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type countingRepo struct {
	*memoryRepo
	voucherLoads int
}

func (r *countingRepo) ListVouchers(ctx context.Context, owner string, filter Filter) ([]Voucher, error) {
	r.voucherLoads++
	return r.memoryRepo.ListVouchers(ctx, owner, filter)
}

func newCachedService(t *testing.T) (*Service, *countingRepo, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	repo := &countingRepo{memoryRepo: newMemoryRepo()}
	return NewService(repo, NewCache(client, time.Minute, nil), nil, ServiceConfig{}), repo, mr
}

func TestSnapshotServedFromCacheUntilMutation(t *testing.T) {
	svc, repo, _ := newCachedService(t)
	ctx := context.Background()
	purchase(t, svc, "Gula", 100, 10)

	first, err := svc.Snapshot(ctx, owner)
	require.NoError(t, err)
	require.Equal(t, 1, repo.voucherLoads)

	second, err := svc.Snapshot(ctx, owner)
	require.NoError(t, err)
	require.Equal(t, 1, repo.voucherLoads)
	require.Equal(t, first.RawMaterials, second.RawMaterials)

	purchase(t, svc, "Gula", 50, 13)
	third, err := svc.Snapshot(ctx, owner)
	require.NoError(t, err)
	require.Equal(t, 2, repo.voucherLoads)
	require.Len(t, third.RawMaterials, 1)
	require.InDelta(t, 150, third.RawMaterials[0].AvailableStock, 0.0001)
}

func TestFailedMutationKeepsCacheVersion(t *testing.T) {
	svc, _, _ := newCachedService(t)
	ctx := context.Background()
	cache := svc.cache.(*Cache)

	_, err := svc.Snapshot(ctx, owner)
	require.NoError(t, err)
	before, err := cache.Version(ctx, owner)
	require.NoError(t, err)

	_, err = svc.CreateSale(ctx, SaleInput{Owner: owner, Date: day(1), ProductName: "Sirup", ClientCode: "C-01", Quantity: 1})
	require.Error(t, err)
	after, err := cache.Version(ctx, owner)
	require.NoError(t, err)
	require.Equal(t, before, after)
}

func TestInvalidateFromColdVersionSkipsFirstVersion(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := NewCache(client, time.Minute, nil)
	ctx := context.Background()

	require.NoError(t, cache.Invalidate(ctx, owner))
	ver, err := cache.Version(ctx, owner)
	require.NoError(t, err)
	require.Equal(t, int64(2), ver)
}

func TestReconcileWarmsCache(t *testing.T) {
	svc, repo, mr := newCachedService(t)
	ctx := context.Background()
	purchase(t, svc, "Gula", 100, 10)

	snap, err := svc.Reconcile(ctx, owner)
	require.NoError(t, err)
	require.Equal(t, 1, repo.voucherLoads)
	require.True(t, mr.Exists("inventory:snapshot:"+owner+":2"))

	cached, err := svc.Snapshot(ctx, owner)
	require.NoError(t, err)
	require.Equal(t, 1, repo.voucherLoads)
	require.Equal(t, snap.RawMaterials, cached.RawMaterials)
}

// interleavingRepo commits a purchase while the snapshot load is in flight.
type interleavingRepo struct {
	*memoryRepo
	once   sync.Once
	during func()
}

func (r *interleavingRepo) ListSales(ctx context.Context, owner string, filter Filter) ([]Sale, error) {
	if r.during != nil {
		r.once.Do(r.during)
	}
	return r.memoryRepo.ListSales(ctx, owner, filter)
}

func TestReconcileDoesNotShadowConcurrentMutation(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	ctx := context.Background()

	repo := &interleavingRepo{memoryRepo: newMemoryRepo()}
	svc := NewService(repo, NewCache(client, time.Minute, nil), nil, ServiceConfig{})
	purchase(t, svc, "Gula", 100, 10)

	var duringErr error
	repo.during = func() {
		_, duringErr = svc.CreateVoucher(ctx, VoucherInput{
			Owner: owner, Date: day(2), MaterialName: "Gula", Quantity: 50, UnitType: "kg", PricePerUnit: 10,
		})
	}

	_, err := svc.Reconcile(ctx, owner)
	require.NoError(t, err)
	require.NoError(t, duringErr)

	snap, err := svc.Snapshot(ctx, owner)
	require.NoError(t, err)
	require.Len(t, snap.RawMaterials, 1)
	require.InDelta(t, 150, snap.RawMaterials[0].AvailableStock, 0.0001)
}

func TestSnapshotFallsBackWhenRedisFails(t *testing.T) {
	svc, repo, mr := newCachedService(t)
	ctx := context.Background()
	purchase(t, svc, "Gula", 100, 10)

	mr.SetError("ERR cache unavailable")
	snap, err := svc.Snapshot(ctx, owner)
	require.NoError(t, err)
	require.Equal(t, 1, repo.voucherLoads)
	require.Len(t, snap.RawMaterials, 1)
	require.InDelta(t, 100, snap.RawMaterials[0].AvailableStock, 0.0001)

	mr.SetError("")
	snap, err = svc.Snapshot(ctx, owner)
	require.NoError(t, err)
	require.InDelta(t, 100, snap.RawMaterials[0].AvailableStock, 0.0001)
}
