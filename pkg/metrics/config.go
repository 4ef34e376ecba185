package metrics

import "github.com/prometheus/client_golang/prometheus"

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "stageflow"

// Config selects where the pipeline instruments are registered and how
// they are named.
type Config struct {
	// Enabled false makes NewRegistryWithConfig return nil, which turns
	// every Collector hook into a no-op.
	Enabled bool

	// Registry defaults to prometheus.DefaultRegisterer.
	Registry prometheus.Registerer

	// Namespace defaults to DefaultNamespace.
	Namespace string

	// ConstLabels are attached to every instrument, e.g. to tell two
	// pipelines in one process apart.
	ConstLabels prometheus.Labels
}

// DefaultConfig registers with the default registerer.
func DefaultConfig() Config {
	return Config{
		Enabled:   true,
		Registry:  prometheus.DefaultRegisterer,
		Namespace: DefaultNamespace,
	}
}
