package stock

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"omnistock/backend/internal/domain"
)

func TestSplitFloorsOnlineShare(t *testing.T) {
	cases := []struct {
		qty     int
		ratio   float64
		online  int
		offline int
	}{
		{100, 0.8, 80, 20},
		{7, 0.5, 3, 4},
		{10, 0.29, 2, 8},
		{100, 0.29, 29, 71},
		{0, 0.8, 0, 0},
		{9, 0, 0, 9},
		{9, 1, 9, 0},
	}
	for _, tc := range cases {
		online, offline, err := Split(tc.qty, tc.ratio)
		require.NoError(t, err)
		assert.Equal(t, tc.online, online, "online for q=%d r=%v", tc.qty, tc.ratio)
		assert.Equal(t, tc.offline, offline, "offline for q=%d r=%v", tc.qty, tc.ratio)
	}
}

func TestSplitConservesQuantity(t *testing.T) {
	ratios := []float64{0, 0.1, 0.25, 0.33, 0.5, 0.66, 0.8, 0.99, 1}
	for qty := 0; qty <= 250; qty++ {
		for _, ratio := range ratios {
			online, offline, err := Split(qty, ratio)
			require.NoError(t, err)
			require.Equal(t, qty, online+offline)
			require.GreaterOrEqual(t, online, 0)
			require.GreaterOrEqual(t, offline, 0)
			require.LessOrEqual(t, online, qty)
		}
	}
}

func TestSplitRejectsBadInput(t *testing.T) {
	for _, ratio := range []float64{-0.01, 1.01, math.NaN(), math.Inf(1)} {
		_, _, err := Split(10, ratio)
		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr, "ratio %v", ratio)
		assert.Equal(t, "stock_ratio", vErr.Field)
	}

	_, _, err := Split(-1, 0.5)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
}

func newItem(t *testing.T, l *Ledger, qty int, ratio float64) domain.Item {
	t.Helper()
	item, err := l.Build("Rice", "Groceries", &ratio, []domain.BrandInput{{Name: "X", PriceCents: 1000, Quantity: qty}})
	require.NoError(t, err)
	item.ID = "itm_test"
	return item
}

func TestBuildUsesDefaultsAndRecomputes(t *testing.T) {
	l := NewLedger(OversellClamp, domain.DefaultStockRatio)
	item, err := l.Build(" Rice ", "Groceries", nil, []domain.BrandInput{{Name: "X", PriceCents: 1000, Quantity: 100}})
	require.NoError(t, err)

	assert.Equal(t, "Rice", item.Name)
	assert.Equal(t, 0.8, item.StockRatio)
	assert.Equal(t, domain.BrandStock{
		PriceCents:   1000,
		Quantity:     100,
		OnlineStock:  80,
		OfflineStock: 20,
		OnlineLimit:  50,
		OfflineLimit: 10,
	}, item.Brands["X"])
}

func TestBuildRejectsInvalidInput(t *testing.T) {
	l := NewLedger(OversellClamp, 0.8)
	bad := 1.5

	_, err := l.Build("", "", nil, nil)
	require.Error(t, err)
	_, err = l.Build("Rice", "", &bad, nil)
	require.Error(t, err)
	_, err = l.Build("Rice", "", nil, []domain.BrandInput{{Name: "X", Quantity: -1}})
	require.Error(t, err)
	_, err = l.Build("Rice", "", nil, []domain.BrandInput{{Name: " ", Quantity: 1}})
	require.Error(t, err)
}

func TestSetRatioRecomputesEveryBrand(t *testing.T) {
	l := NewLedger(OversellClamp, 0.8)
	item := newItem(t, l, 100, 0.8)
	require.NoError(t, l.AddBrand(&item, "Y", 500, 11))

	require.NoError(t, l.SetRatio(&item, 0.5))
	assert.Equal(t, 50, item.Brands["X"].OnlineStock)
	assert.Equal(t, 50, item.Brands["X"].OfflineStock)
	assert.Equal(t, 5, item.Brands["Y"].OnlineStock)
	assert.Equal(t, 6, item.Brands["Y"].OfflineStock)

	before := item.Clone()
	require.Error(t, l.SetRatio(&item, 2))
	assert.Equal(t, before, item, "rejected ratio must not mutate the item")
}

func TestAddBrandKeepsExistingLimits(t *testing.T) {
	l := NewLedger(OversellClamp, 0.8)
	item := newItem(t, l, 100, 0.8)
	online := 5
	require.NoError(t, l.SetLimits(&item, "X", &online, nil))

	require.NoError(t, l.AddBrand(&item, "X", 1200, 40))
	got := item.Brands["X"]
	assert.Equal(t, int64(1200), got.PriceCents)
	assert.Equal(t, 40, got.Quantity)
	assert.Equal(t, 32, got.OnlineStock)
	assert.Equal(t, 8, got.OfflineStock)
	assert.Equal(t, 5, got.OnlineLimit)
	assert.Equal(t, domain.DefaultOfflineLimit, got.OfflineLimit)
}

func TestSetQuantityAndRemoveBrand(t *testing.T) {
	l := NewLedger(OversellClamp, 0.8)
	item := newItem(t, l, 100, 0.8)

	require.NoError(t, l.SetQuantity(&item, "X", 10))
	assert.Equal(t, 8, item.Brands["X"].OnlineStock)
	assert.Equal(t, 2, item.Brands["X"].OfflineStock)

	require.Error(t, l.SetQuantity(&item, "Z", 10))
	require.NoError(t, l.RemoveBrand(&item, "X"))
	assert.Empty(t, item.Brands)
	require.Error(t, l.RemoveBrand(&item, "X"))
}

func TestDecrementTouchesOnlySaleChannel(t *testing.T) {
	l := NewLedger(OversellClamp, 0.8)
	item := newItem(t, l, 100, 0.8)

	mv, err := l.Decrement(&item, "X", domain.ChannelOnline, 5)
	require.NoError(t, err)
	assert.False(t, mv.Oversold)
	got := item.Brands["X"]
	assert.Equal(t, 95, got.Quantity)
	assert.Equal(t, 75, got.OnlineStock)
	assert.Equal(t, 20, got.OfflineStock)

	mv, err = l.Decrement(&item, "X", domain.ChannelOffline, 25)
	require.NoError(t, err)
	assert.True(t, mv.Oversold)
	got = item.Brands["X"]
	assert.Equal(t, 70, got.Quantity)
	assert.Equal(t, 75, got.OnlineStock)
	assert.Equal(t, 0, got.OfflineStock)
	assert.Equal(t, 20, mv.Before.OfflineStock)
}

func TestDecrementClampsAtZero(t *testing.T) {
	l := NewLedger(OversellClamp, 0.8)
	item := newItem(t, l, 3, 1)

	mv, err := l.Decrement(&item, "X", domain.ChannelOnline, 10)
	require.NoError(t, err)
	assert.True(t, mv.Oversold)
	assert.Equal(t, 0, item.Brands["X"].Quantity)
	assert.Equal(t, 0, item.Brands["X"].OnlineStock)
	assert.Equal(t, 0, item.Brands["X"].OfflineStock)
}

func TestDecrementRejectPolicyLeavesItemUntouched(t *testing.T) {
	l := NewLedger(OversellReject, 0.8)
	item := newItem(t, l, 100, 0.8)
	before := item.Clone()

	mv, err := l.Decrement(&item, "X", domain.ChannelOffline, 21)
	require.True(t, errors.Is(err, ErrOversell))
	assert.True(t, mv.Oversold)
	assert.Equal(t, before, item)

	_, err = l.Decrement(&item, "X", domain.ChannelOffline, 20)
	require.NoError(t, err)
	assert.Equal(t, 0, item.Brands["X"].OfflineStock)
}

func TestDecrementValidation(t *testing.T) {
	l := NewLedger(OversellClamp, 0.8)
	item := newItem(t, l, 100, 0.8)

	_, err := l.Decrement(&item, "X", domain.Channel("phone"), 1)
	require.Error(t, err)
	_, err = l.Decrement(&item, "X", domain.ChannelOnline, 0)
	require.Error(t, err)
	_, err = l.Decrement(&item, "missing", domain.ChannelOnline, 1)
	require.Error(t, err)
	assert.Equal(t, 100, item.Brands["X"].Quantity)
}

func TestCheckLimitsFiresPerSide(t *testing.T) {
	l := NewLedger(OversellClamp, 0.8)
	item := newItem(t, l, 100, 0.8)

	assert.Empty(t, CheckLimits(item, "X"))

	_, err := l.Decrement(&item, "X", domain.ChannelOnline, 31)
	require.NoError(t, err)
	alerts := CheckLimits(item, "X")
	require.Len(t, alerts, 1)
	assert.Equal(t, domain.ChannelOnline, alerts[0].Channel)
	assert.Equal(t, 49, alerts[0].Stock)
	assert.Equal(t, 50, alerts[0].Limit)
	assert.Equal(t, "Rice", alerts[0].ItemName)

	_, err = l.Decrement(&item, "X", domain.ChannelOffline, 11)
	require.NoError(t, err)
	alerts = CheckLimits(item, "X")
	require.Len(t, alerts, 2)
	assert.Equal(t, domain.ChannelOffline, alerts[0].Channel)
	assert.Equal(t, domain.ChannelOnline, alerts[1].Channel)
}

func TestCheckLimitsStrictlyBelow(t *testing.T) {
	l := NewLedger(OversellClamp, 0.8)
	item := newItem(t, l, 100, 0.8)
	_, err := l.Decrement(&item, "X", domain.ChannelOffline, 10)
	require.NoError(t, err)
	assert.Empty(t, CheckLimits(item, "X"), "stock equal to limit is not low")
	assert.Nil(t, CheckLimits(item, "missing"))
}

func TestNeedsRecompute(t *testing.T) {
	l := NewLedger(OversellClamp, 0.8)
	item := newItem(t, l, 100, 0.8)
	stale, err := l.NeedsRecompute(item)
	require.NoError(t, err)
	assert.False(t, stale)

	_, err = l.Decrement(&item, "X", domain.ChannelOnline, 5)
	require.NoError(t, err)
	stale, err = l.NeedsRecompute(item)
	require.NoError(t, err)
	assert.True(t, stale)
}

func TestParseOversellPolicy(t *testing.T) {
	assert.Equal(t, OversellReject, ParseOversellPolicy(" Reject "))
	assert.Equal(t, OversellClamp, ParseOversellPolicy(""))
	assert.Equal(t, OversellClamp, ParseOversellPolicy("whatever"))
}
