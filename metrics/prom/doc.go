// Package prom exports vecindex operation metrics to Prometheus.
//
//	reg := prometheus.NewRegistry()
//	c, err := prom.NewCollector(reg, prom.WithNamespace("search"))
//	idx, err := vecindex.Open(ctx, dev, vecindex.WithMetricsCollector(c))
package prom
