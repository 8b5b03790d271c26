package credaudit

import "fmt"

// InactiveSpec is the policy input for one audit run: how long a
// credential may go unused before it is disabled or deleted, and which
// credentials are exempt.
type InactiveSpec struct {
	// DisableThresholdDays is the number of days of inactivity after
	// which a credential is disabled. Comparisons are strict: a
	// credential used exactly DisableThresholdDays ago is kept.
	DisableThresholdDays int

	// DeleteThresholdDays is the number of days of inactivity after
	// which a credential is deleted. Must be greater than
	// DisableThresholdDays.
	DeleteThresholdDays int

	// Whitelist holds canonical whitelist keys ("{service}:{kind}:{id}")
	// of credentials that are never acted on.
	Whitelist map[string]struct{}
}

// NewInactiveSpec builds a validated InactiveSpec from thresholds and a
// list of canonical whitelist keys.
func NewInactiveSpec(disableDays, deleteDays int, whitelist []string) (InactiveSpec, error) {
	spec := InactiveSpec{
		DisableThresholdDays: disableDays,
		DeleteThresholdDays:  deleteDays,
		Whitelist:            make(map[string]struct{}, len(whitelist)),
	}
	for _, key := range whitelist {
		spec.Whitelist[key] = struct{}{}
	}
	if err := spec.Validate(); err != nil {
		return InactiveSpec{}, err
	}
	return spec, nil
}

// Validate checks the threshold invariant: delete > disable >= 0.
// Misconfiguration is rejected here, before any classification runs.
func (s InactiveSpec) Validate() error {
	if s.DisableThresholdDays < 0 {
		return ErrValidation(fmt.Sprintf("disable threshold must be >= 0 days, got %d", s.DisableThresholdDays))
	}
	if s.DeleteThresholdDays <= s.DisableThresholdDays {
		return ErrValidation(fmt.Sprintf("delete threshold (%d days) must be greater than disable threshold (%d days)",
			s.DeleteThresholdDays, s.DisableThresholdDays))
	}
	return nil
}

// IsWhitelisted reports whether the credential's canonical key is in the
// whitelist.
func (s InactiveSpec) IsWhitelisted(c Credential) bool {
	_, ok := s.Whitelist[c.WhitelistKey()]
	return ok
}
