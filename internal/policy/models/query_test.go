package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"corretaje/pkg/domain"
)

var today = domain.NewDate(2025, time.June, 15)

func ptr[T any](v T) *T { return &v }

func TestResolveUpcomingExpiry(t *testing.T) {
	for _, n := range []int{0, 366, -3} {
		_, err := Filter{UpcomingDays: ptr(n)}.Resolve(today)
		assert.Equal(t, "proximo_vencimiento", fieldOf(t, err), "days=%d", n)
	}

	for _, n := range []int{1, 365} {
		q, err := Filter{UpcomingDays: ptr(n)}.Resolve(today)
		require.NoError(t, err)
		assert.Equal(t, today, *q.ExpiryFrom)
		assert.Equal(t, today.AddDays(n), *q.ExpiryTo)
		assert.True(t, q.ExcludeExpired)
	}

	t.Run("overrides explicit range and include_expired", func(t *testing.T) {
		q, err := Filter{
			UpcomingDays:   ptr(30),
			IncludeExpired: ptr(true),
			ExpiryFrom:     ptr(domain.NewDate(2020, time.January, 1)),
			ExpiryTo:       ptr(domain.NewDate(2030, time.January, 1)),
		}.Resolve(today)
		require.NoError(t, err)
		assert.True(t, q.ExcludeExpired)
		assert.Equal(t, today, *q.ExpiryFrom)
		assert.Equal(t, today.AddDays(30), *q.ExpiryTo)
	})
}

func TestResolveRanges(t *testing.T) {
	later, earlier := ptr(today.AddDays(5)), ptr(today)

	_, err := Filter{ExpiryFrom: later, ExpiryTo: earlier}.Resolve(today)
	assert.Equal(t, "vencimiento_hasta", fieldOf(t, err))

	_, err = Filter{StartFrom: later, StartTo: earlier}.Resolve(today)
	assert.Equal(t, "fecha_fin", fieldOf(t, err))

	_, err = Filter{PremiumMin: ptr(decimal.NewFromInt(10)), PremiumMax: ptr(decimal.NewFromInt(9))}.Resolve(today)
	assert.Equal(t, "prima_max", fieldOf(t, err))

	_, err = Filter{ExpiryFrom: earlier, ExpiryTo: earlier}.Resolve(today)
	assert.NoError(t, err, "equal bounds are a one-day range")
}

func TestResolveDefaults(t *testing.T) {
	q, err := Filter{}.Resolve(today)
	require.NoError(t, err)
	assert.False(t, q.ExcludeExpired, "expired rows are included unless asked otherwise")
	assert.Equal(t, SortID, q.Sort)
	assert.False(t, q.Desc)

	q, err = Filter{IncludeExpired: ptr(false)}.Resolve(today)
	require.NoError(t, err)
	assert.True(t, q.ExcludeExpired)

	_, err = Filter{SortBy: "created_at"}.Resolve(today)
	assert.Equal(t, "ordenar_por", fieldOf(t, err))

	_, err = Filter{SortDir: "up"}.Resolve(today)
	assert.Equal(t, "orden", fieldOf(t, err))

	_, err = Filter{DurationClass: ptr(DurationClass("biennial"))}.Resolve(today)
	assert.Equal(t, "tipo_duracion", fieldOf(t, err))
}

func view(id int64, policy, given string, end domain.Date, premium int64) *View {
	return &View{
		Movement: Movement{
			ID:            id,
			PolicyNumber:  policy,
			StartDate:     end.AddDays(-30),
			EndDate:       end,
			Status:        StatusActive,
			Premium:       decimal.NewFromInt(premium),
			InsuredAmount: decimal.NewFromInt(premium * 10),
			DurationClass: Monthly,
		},
		Client: ClientSummary{GivenNames: given},
	}
}

func TestMatches(t *testing.T) {
	expired := view(1, "AUTO-001", "María", today.AddDays(-1), 50)
	current := view(2, "hogar-777", "José", today.AddDays(10), 80)

	q, _ := Filter{IncludeExpired: ptr(false)}.Resolve(today)
	assert.False(t, q.Matches(expired))
	assert.True(t, q.Matches(current))

	q, _ = Filter{PolicyNumber: ptr("HOGAR")}.Resolve(today)
	assert.False(t, q.Matches(expired))
	assert.True(t, q.Matches(current), "policy number match ignores case")

	q, _ = Filter{ClientGivenName: ptr("marí")}.Resolve(today)
	assert.True(t, q.Matches(expired))
	assert.False(t, q.Matches(current))

	q, _ = Filter{PremiumMin: ptr(decimal.NewFromInt(60))}.Resolve(today)
	assert.False(t, q.Matches(expired))
	assert.True(t, q.Matches(current))

	broker := domain.BrokerNumber(4554)
	q, _ = Filter{BrokerNumber: &broker}.Resolve(today)
	assert.False(t, q.Matches(current), "unassigned movements never match a broker filter")
}

func TestSortViews(t *testing.T) {
	views := []*View{
		view(3, "C", "Ana", today, 100),
		view(1, "A", "Ana", today, 100),
		view(2, "B", "Bea", today, 50),
	}

	q, _ := Filter{SortBy: "premium", SortDir: "desc"}.Resolve(today)
	q.SortViews(views)
	assert.Equal(t, []int64{1, 3, 2}, ids(views), "ties break by ascending id even when descending")

	q, _ = Filter{SortBy: "given_names"}.Resolve(today)
	q.SortViews(views)
	assert.Equal(t, []int64{1, 3, 2}, ids(views))

	q, _ = Filter{SortBy: "policy_number", SortDir: "desc", Skip: 1, Limit: 1}.Resolve(today)
	q.SortViews(views)
	assert.Equal(t, []int64{2}, ids(q.Page(views)))
	assert.Empty(t, (&Query{Skip: 5}).Page(views))
}

func ids(views []*View) []int64 {
	out := make([]int64, 0, len(views))
	for _, v := range views {
		out = append(out, v.ID)
	}
	return out
}
