package credaudit

import "time"

// Classify maps a credential's last-used time to a raw lifecycle action
// under the given thresholds. It is pure and total.
//
// A credential never observed in use is kept: absence of data is never
// escalated to a destructive action. Threshold comparisons are strict,
// so a credential used exactly at a threshold day stays on the lenient
// side of it.
func Classify(c Credential, spec InactiveSpec, now time.Time) Action {
	if c.LastUsed == nil {
		return ActionKeep
	}
	since := int(now.Sub(*c.LastUsed).Hours() / 24)
	switch {
	case since > spec.DeleteThresholdDays:
		return ActionDelete
	case since > spec.DisableThresholdDays:
		return ActionDisable
	default:
		return ActionKeep
	}
}

// IdentifyInactive resolves one action per credential and returns the
// credentials whose resolved action is not Keep. Order of the result is
// unspecified (it follows the input batch).
//
// Duo two-factor enrollments and AWS api keys are classified
// independently. Each api key's raw action is additionally recorded
// against the identity it links to; a password credential's final action
// is the more lenient of its own classification and the most lenient
// action among the keys linking to it. An account that is actively used
// through an api key is therefore kept even when its password looks
// stale, and a stale key never escalates a password beyond what the
// password's own inactivity warrants.
func IdentifyInactive(credentials []Credential, spec InactiveSpec, now time.Time) []InactiveCredential {
	raw := make(map[string]Action, len(credentials))
	// linked holds, per identity id, the most lenient raw action among
	// all credentials linking to that identity.
	linked := make(map[string]Action)

	for _, c := range credentials {
		action := Classify(c, spec, now)
		raw[c.ID] = action
		if c.LinkedID == "" {
			continue
		}
		if current, ok := linked[c.LinkedID]; !ok || action < current {
			linked[c.LinkedID] = action
		}
	}

	var inactive []InactiveCredential
	for _, c := range credentials {
		action := raw[c.ID]
		if c.IsPassword() {
			if linkedAction, ok := linked[c.ID]; ok && linkedAction < action {
				action = linkedAction
			}
		}
		if action == ActionKeep {
			continue
		}
		inactive = append(inactive, InactiveCredential{Credential: c, Action: action})
	}
	return inactive
}
