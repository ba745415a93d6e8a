package authz

import (
	"log/slog"

	masker "github.com/ggwhite/go-masker/v2"

	"github.com/meridian-ip/meridian/internal/authz/catalog"
)

// FieldPolicy controls read and write access for one field of a resource.
// Read and Write are ANY-of sets; an empty set means unrestricted. When read
// is denied the field is either removed (Mask false) or replaced with
// MaskValue (Mask true). MaskStyle, when set, derives the replacement from
// the real value instead of using the fixed MaskValue.
type FieldPolicy struct {
	Read      []catalog.Permission
	Write     []catalog.Permission
	Mask      bool
	MaskValue any
	MaskStyle masker.MaskerType
}

// FieldPolicySet maps field name to its policy for one resource type.
// Fields without a policy pass through unchanged.
type FieldPolicySet map[string]FieldPolicy

// FieldFilter applies per-field read filtering and write validation.
type FieldFilter struct {
	policies map[string]FieldPolicySet
	masker   *masker.MaskerMarshaler
	logger   *slog.Logger
}

// NewFieldFilter constructs a FieldFilter over the given policy tables.
func NewFieldFilter(policies map[string]FieldPolicySet, logger *slog.Logger) *FieldFilter {
	return &FieldFilter{
		policies: policies,
		masker:   masker.NewMaskerMarshaler(),
		logger:   logger,
	}
}

// DefaultFieldPolicies returns the platform policy tables.
func DefaultFieldPolicies() map[string]FieldPolicySet {
	return map[string]FieldPolicySet{
		ResourcePayouts: {
			"amount": {
				Read:  []catalog.Permission{catalog.PermPayoutsViewAll, catalog.PermPayoutsViewOwn},
				Write: []catalog.Permission{catalog.PermPayoutsInitiate},
			},
			"bank_account": {
				Read:      []catalog.Permission{catalog.PermPayoutsViewAll},
				Write:     []catalog.Permission{catalog.PermPayoutsInitiate},
				Mask:      true,
				MaskStyle: masker.MaskerTypePassword,
			},
			"tax_id": {
				Read:      []catalog.Permission{catalog.PermPayoutsViewAll},
				Write:     []catalog.Permission{catalog.PermUsersEdit},
				Mask:      true,
				MaskValue: nil,
			},
		},
		ResourceLicenses: {
			"royalty_rate": {
				Read:  []catalog.Permission{catalog.PermRoyaltiesViewAll, catalog.PermRoyaltiesViewOwn},
				Write: []catalog.Permission{catalog.PermRoyaltiesConfigure},
			},
			"termination_clause": {
				Read:  []catalog.Permission{catalog.PermLicensesViewAll},
				Write: []catalog.Permission{catalog.PermLicensesTerminate},
			},
			"internal_notes": {
				Read:  []catalog.Permission{catalog.PermLicensesViewAll},
				Write: []catalog.Permission{catalog.PermLicensesEditAll},
				Mask:  true,
				// Fixed sentinel rather than removal so list layouts stay stable.
				MaskValue: "[restricted]",
			},
		},
		ResourceIPAssets: {
			"valuation": {
				Read:  []catalog.Permission{catalog.PermIPAssetsViewAll},
				Write: []catalog.Permission{catalog.PermIPAssetsEditAll},
			},
			"owner_contact": {
				Read:      []catalog.Permission{catalog.PermUsersView},
				Write:     []catalog.Permission{catalog.PermUsersEdit},
				Mask:      true,
				MaskStyle: masker.MaskerTypeEmail,
			},
		},
	}
}

// FilterReadable returns a copy of obj with denied fields removed or masked
// per policy. The caller's held permissions decide; fields without a policy
// pass through. Unknown resource types are a configuration failure, never
// treated as unrestricted.
func (f *FieldFilter) FilterReadable(resourceType string, obj map[string]any, held []catalog.Permission) (map[string]any, error) {
	policySet, ok := f.policies[resourceType]
	if !ok {
		return nil, &MisconfiguredError{Subject: "no field policy table for resource type " + resourceType}
	}
	out := make(map[string]any, len(obj))
	for k, v := range obj {
		out[k] = v
	}
	for field, policy := range policySet {
		if _, present := out[field]; !present {
			continue
		}
		if len(policy.Read) == 0 || holdsAnyOf(held, policy.Read) {
			continue
		}
		if !policy.Mask {
			delete(out, field)
			continue
		}
		out[field] = f.maskValue(policy, out[field])
	}
	return out, nil
}

// ValidateWrites returns the payload fields the actor may not write. An
// empty result permits the whole write; a non-empty result must reject the
// entire operation, no partial application.
func (f *FieldFilter) ValidateWrites(resourceType string, payload map[string]any, held []catalog.Permission) ([]string, error) {
	policySet, ok := f.policies[resourceType]
	if !ok {
		return nil, &MisconfiguredError{Subject: "no field policy table for resource type " + resourceType}
	}
	var violations []string
	for field := range payload {
		policy, ok := policySet[field]
		if !ok || len(policy.Write) == 0 {
			continue
		}
		if !holdsAnyOf(held, policy.Write) {
			violations = append(violations, field)
		}
	}
	return violations, nil
}

func (f *FieldFilter) maskValue(policy FieldPolicy, original any) any {
	if policy.MaskStyle != "" {
		if s, ok := original.(string); ok {
			masked, err := f.masker.Marshal(policy.MaskStyle, s)
			if err == nil {
				return masked
			}
			if f.logger != nil {
				f.logger.Warn("field mask fallback", slog.Any("error", err))
			}
		}
	}
	return policy.MaskValue
}

func holdsAnyOf(held []catalog.Permission, required []catalog.Permission) bool {
	for _, p := range required {
		if holds(held, p) {
			return true
		}
	}
	return false
}
