// Package channel holds the transports a publisher can hand events to: a
// local log, an HTTP readings collector, a Kafka topic and a Timescale
// readings table.
package channel
