package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveCacheLookup(t *testing.T) {
	before := testutil.ToFloat64(QueryCacheLookups.WithLabelValues("products", "hit"))

	ObserveCacheLookup("products", "hit")
	ObserveCacheLookup("products", "hit")

	assert.Equal(t, before+2, testutil.ToFloat64(QueryCacheLookups.WithLabelValues("products", "hit")))
}
