// CLAUDE:SUMMARY Public aliases for the row and query types embedders consume.
package veraz

import (
	"github.com/hazyhaar/veraz/veraz/internal/scoring"
	"github.com/hazyhaar/veraz/veraz/internal/store"
)

// DefaultScoringVersion is the engine's current formula version.
const DefaultScoringVersion = scoring.Version

// Authenticity labels, from most to least trustworthy.
const (
	LabelReal       = string(scoring.LabelReal)
	LabelLikelyReal = string(scoring.LabelLikelyReal)
	LabelSuspicious = string(scoring.LabelSuspicious)
	LabelLikelyFake = string(scoring.LabelLikelyFake)
)

// Row and query types, re-exported so embedders never import internal
// packages.
type (
	Retailer    = store.Retailer
	PipelineRun = store.PipelineRun
	RunSource   = store.RunSource
	Deal        = store.Deal
	DealFilter  = store.DealFilter
	Stats       = store.Stats
)
