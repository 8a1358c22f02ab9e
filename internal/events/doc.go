// Package events provides typed publish/subscribe brokers and a
// single-goroutine presentation sink.
//
// A Broker without a sink dispatches on the publishing goroutine. A Broker
// bound to a Sink hands every delivery to the sink's goroutine so listeners
// observe events in publish order and never run concurrently.
package events
