package model

// Classification is the immutable result of analyzing request text.
// It drives which capability stages a workflow run executes and whether
// the run is gated behind human approval.
type Classification struct {
	Category             Category     `json:"category"`
	RequiredCapabilities []Capability `json:"required_capabilities"`
	RequiresApproval     bool         `json:"requires_approval"`
	Complexity           Level        `json:"complexity"`
	RiskLevel            Level        `json:"risk_level"`
}

// Requires reports whether the given capability is in the required set
func (c Classification) Requires(capability Capability) bool {
	for _, required := range c.RequiredCapabilities {
		if required == capability {
			return true
		}
	}
	return false
}
