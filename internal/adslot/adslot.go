// Package adslot decides whether the optional ad slot may load.
package adslot

// Gate combines the operator switch with the user's consent.
type Gate struct {
	Enabled bool
	Consent bool
}

// Allowed reports whether the slot may load. Both flags must be set.
func (g Gate) Allowed() bool {
	return g.Enabled && g.Consent
}

// Reason describes the decision for logs.
func (g Gate) Reason() string {
	switch {
	case !g.Enabled:
		return "disabled"
	case !g.Consent:
		return "no consent"
	default:
		return "allowed"
	}
}
