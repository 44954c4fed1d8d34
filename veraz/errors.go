// CLAUDE:SUMMARY Sentinel errors for the veraz facade.
package veraz

import "errors"

var (
	// ErrNoSources means the configuration names no sources to collect from.
	ErrNoSources = errors.New("veraz: no sources configured")

	// ErrUnknownPolicy means OnEmptySource is neither "substitute" nor "error".
	ErrUnknownPolicy = errors.New("veraz: unknown on_empty_source policy")

	// ErrNoCollector means a source has no usable collector: no API endpoint,
	// no injected collector, and no built-in demo for its name.
	ErrNoCollector = errors.New("veraz: no collector for source")

	// ErrAllSourcesFailed means every configured source errored in one cycle.
	ErrAllSourcesFailed = errors.New("veraz: all sources failed")
)

// errInvalidOffer marks offers that fail validation. Such offers are skipped;
// every other ingest error aborts the cycle.
var errInvalidOffer = errors.New("invalid offer")
