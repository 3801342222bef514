// Package dispatch implements the campaign send pipeline: resolving segment
// membership into a deduplicated recipient list, rendering and tagging each
// message with tracking, handing batches to the delivery provider, and the
// scheduler loop that drives due campaigns through the lifecycle.
package dispatch
