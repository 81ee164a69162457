// Package series names what the exporters publish. Counters are grouped by
// flow and named deepblue_<flow>_<outcome>_total; the validate latency
// histogram keeps the engine's fixed bucket edges.
package series
