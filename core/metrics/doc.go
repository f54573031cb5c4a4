// Package metrics defines the sinks that record scheduling activity.
// Implementations such as PromSink and InfluxSink live in infra/metrics and
// register themselves with the factory; NewMetricsSink returns a MultiSink
// when several sinks are configured.
package metrics
