package policy

import (
	"time"

	"github.com/google/uuid"
	"github.com/leasepay/backend/internal/domain/policy"
	"github.com/shopspring/decimal"
)

// SettingsRequest sets policy fields at one level. Omitted fields are not
// set at that level and fall through to the next one.
type SettingsRequest struct {
	AllowPartial  *bool            `json:"allow_partial"`
	AllowSplit    *bool            `json:"allow_split"`
	MinPartialUSD *decimal.Decimal `json:"min_partial_usd"`
}

// ToSettings converts the request to domain settings
func (r SettingsRequest) ToSettings() policy.Settings {
	return policy.Settings{
		AllowPartial:  r.AllowPartial,
		AllowSplit:    r.AllowSplit,
		MinPartialUSD: r.MinPartialUSD,
	}
}

// SettingsResponse is the set fields of one level
type SettingsResponse struct {
	AllowPartial  *bool            `json:"allow_partial"`
	AllowSplit    *bool            `json:"allow_split"`
	MinPartialUSD *decimal.Decimal `json:"min_partial_usd"`
}

// ToSettingsResponse converts domain settings
func ToSettingsResponse(s policy.Settings) SettingsResponse {
	return SettingsResponse{
		AllowPartial:  s.AllowPartial,
		AllowSplit:    s.AllowSplit,
		MinPartialUSD: s.MinPartialUSD,
	}
}

// PolicyResponse is a stored global or property policy row
type PolicyResponse struct {
	ID         uuid.UUID        `json:"id"`
	Scope      string           `json:"scope"`
	PropertyID *uuid.UUID       `json:"property_id,omitempty"`
	Settings   SettingsResponse `json:"settings"`
	Version    int              `json:"version"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// ToPolicyResponse converts a domain policy row
func ToPolicyResponse(p *policy.PaymentPolicy) PolicyResponse {
	return PolicyResponse{
		ID:         p.ID,
		Scope:      p.Scope.String(),
		PropertyID: p.PropertyID,
		Settings:   ToSettingsResponse(p.Settings),
		Version:    p.Version,
		UpdatedAt:  p.UpdatedAt,
	}
}

// SourcesResponse names the level each effective field came from
type SourcesResponse struct {
	AllowPartial  string `json:"allow_partial"`
	AllowSplit    string `json:"allow_split"`
	MinPartialUSD string `json:"min_partial_usd"`
}

// EffectivePolicyResponse is the resolved policy of a lease
type EffectivePolicyResponse struct {
	AllowPartial  bool            `json:"allow_partial"`
	AllowSplit    bool            `json:"allow_split"`
	MinPartialUSD decimal.Decimal `json:"min_partial_usd"`
	Sources       SourcesResponse `json:"sources"`
}

// ToEffectivePolicyResponse converts a resolved policy
func ToEffectivePolicyResponse(eff policy.EffectivePolicy) EffectivePolicyResponse {
	return EffectivePolicyResponse{
		AllowPartial:  eff.AllowPartial,
		AllowSplit:    eff.AllowSplit,
		MinPartialUSD: eff.MinPartialUSD,
		Sources: SourcesResponse{
			AllowPartial:  string(eff.Sources.AllowPartial),
			AllowSplit:    string(eff.Sources.AllowSplit),
			MinPartialUSD: string(eff.Sources.MinPartialUSD),
		},
	}
}

// LeasePolicyResponse explains the policy in effect for a lease
type LeasePolicyResponse struct {
	LeaseID    uuid.UUID               `json:"lease_id"`
	PropertyID uuid.UUID               `json:"property_id"`
	Override   SettingsResponse        `json:"override"`
	Property   *SettingsResponse       `json:"property,omitempty"`
	Global     *SettingsResponse       `json:"global,omitempty"`
	Effective  EffectivePolicyResponse `json:"effective"`
}
