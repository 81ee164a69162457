// Package prometheus writes engine counters and the validate latency
// histogram in Prometheus text exposition format. Nothing is registered
// globally; callers mount Handler or call WriteTo.
package prometheus
