package policy

import (
	"github.com/shopspring/decimal"
)

// Defaults used when no level sets a field
const (
	DefaultAllowPartial = true
	DefaultAllowSplit   = true
)

// DefaultMinPartialUSD is the smallest partial payment accepted by default
var DefaultMinPartialUSD = decimal.NewFromInt(10)

// Source names the level a resolved value came from
type Source string

const (
	SourceLease    Source = "lease"
	SourceProperty Source = "property"
	SourceGlobal   Source = "global"
	SourceDefault  Source = "default"
)

// Sources records where each effective field was taken from
type Sources struct {
	AllowPartial  Source
	AllowSplit    Source
	MinPartialUSD Source
}

// EffectivePolicy is the fully resolved policy for a lease
type EffectivePolicy struct {
	AllowPartial  bool
	AllowSplit    bool
	MinPartialUSD decimal.Decimal
	Sources       Sources
}

// DefaultPolicy returns the built-in policy
func DefaultPolicy() EffectivePolicy {
	return EffectivePolicy{
		AllowPartial:  DefaultAllowPartial,
		AllowSplit:    DefaultAllowSplit,
		MinPartialUSD: DefaultMinPartialUSD,
		Sources: Sources{
			AllowPartial:  SourceDefault,
			AllowSplit:    SourceDefault,
			MinPartialUSD: SourceDefault,
		},
	}
}

type level struct {
	source   Source
	settings Settings
}

// Resolve computes the effective policy. For every field the first level
// that sets it wins, in the order lease, property, global. Nil rows are
// treated as levels with nothing set.
func Resolve(lease Settings, property, global *PaymentPolicy) EffectivePolicy {
	levels := []level{{source: SourceLease, settings: lease}}
	if property != nil {
		levels = append(levels, level{source: SourceProperty, settings: property.Settings})
	}
	if global != nil {
		levels = append(levels, level{source: SourceGlobal, settings: global.Settings})
	}

	eff := DefaultPolicy()

	for _, l := range levels {
		if l.settings.AllowPartial != nil {
			eff.AllowPartial = *l.settings.AllowPartial
			eff.Sources.AllowPartial = l.source
			break
		}
	}
	for _, l := range levels {
		if l.settings.AllowSplit != nil {
			eff.AllowSplit = *l.settings.AllowSplit
			eff.Sources.AllowSplit = l.source
			break
		}
	}
	for _, l := range levels {
		if l.settings.MinPartialUSD != nil {
			eff.MinPartialUSD = *l.settings.MinPartialUSD
			eff.Sources.MinPartialUSD = l.source
			break
		}
	}

	return eff
}
