package prometrics

import (
	"testing"

	"github.com/Zhima-Mochi/storefront/internal/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_CatalogRegistersAll(t *testing.T) {
	reg := prometheus.NewRegistry()
	r, err := New("storefront", "", reg, observability.Catalog()...)
	require.NoError(t, err)

	r.Counter(observability.MUsecaseRequests).Add(1,
		observability.L("use_case", "create_order"),
		observability.L("outcome", "success"),
	)
	r.Histogram(observability.MUsecaseDuration).Observe(0.2, observability.L("use_case", "create_order"))

	count, err := testutil.GatherAndCount(reg, "storefront_usecase_requests_total", "storefront_usecase_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestRegistry_UnknownKeyIsNop(t *testing.T) {
	r, err := New("", "", prometheus.NewRegistry())
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		r.Counter("missing").Add(1)
		r.Histogram("missing").Observe(1)
	})
}

func TestRegistry_WrongLabelsDropped(t *testing.T) {
	reg := prometheus.NewRegistry()
	r, err := New("", "", reg, observability.Catalog()...)
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		r.Counter(observability.MHTTPRequests).Add(1, observability.L("bogus", "x"))
	})
}
