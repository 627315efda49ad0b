package hybrid

import (
	"fmt"
	"io"

	"github.com/VictoriaMetrics/metrics"
)

// indexMetrics groups the observability counters of one composite instance.
// These are reporting-only: the adaptive controller reads its own atomic
// workload counters so that a metrics scrape can never perturb the control
// loop.
type indexMetrics struct {
	set *metrics.Set

	lookupsLIT   *metrics.Counter
	lookupsDPI   *metrics.Counter
	lookupMisses *metrics.Counter
	insertsDPI   *metrics.Counter
	insertsLIT   *metrics.Counter

	migrations   *metrics.Counter
	migratedKeys *metrics.Counter
	rollbacks    *metrics.Counter
	statsAged    *metrics.Counter

	migrationDuration *metrics.Histogram
}

// newIndexMetrics creates the metric set for a named instance.
func newIndexMetrics(name string) *indexMetrics {
	s := metrics.NewSet()

	counter := func(metric, tier string) *metrics.Counter {
		if tier == "" {
			return s.NewCounter(fmt.Sprintf(`hindex_%s_total{index=%q}`, metric, name))
		}
		return s.NewCounter(fmt.Sprintf(`hindex_%s_total{index=%q,tier=%q}`, metric, name, tier))
	}

	return &indexMetrics{
		set: s,

		lookupsLIT:   counter("lookups", "lit"),
		lookupsDPI:   counter("lookups", "dpi"),
		lookupMisses: counter("lookup_misses", ""),
		insertsDPI:   counter("inserts", "dpi"),
		insertsLIT:   counter("inserts", "lit"),

		migrations:   counter("migrations", ""),
		migratedKeys: counter("migrated_keys", ""),
		rollbacks:    counter("migration_rollbacks", ""),
		statsAged:    counter("stats_aged", ""),

		migrationDuration: s.NewHistogram(
			fmt.Sprintf(`hindex_migration_duration_seconds{index=%q}`, name)),
	}
}

// WritePrometheus dumps the instance metrics in Prometheus text format.
func (m *indexMetrics) WritePrometheus(w io.Writer) {
	m.set.WritePrometheus(w)
}
