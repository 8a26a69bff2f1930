package permissions

import "strings"

// Capability groups display-name roles into the three actor classes that
// gate field editability and workflow actions.
type Capability int

const (
	// CapabilityUnknown is the fail-closed default for unrecognised roles.
	CapabilityUnknown Capability = iota
	// CapabilityRequestor covers staff who raise purchase requests.
	CapabilityRequestor
	// CapabilityApprover covers managers in the approval pipeline.
	CapabilityApprover
	// CapabilityPurchaser covers purchasing staff handling vendor pricing.
	CapabilityPurchaser
)

// String returns a stable name for logging.
func (c Capability) String() string {
	switch c {
	case CapabilityRequestor:
		return "requestor"
	case CapabilityApprover:
		return "approver"
	case CapabilityPurchaser:
		return "purchaser"
	default:
		return "unknown"
	}
}

var roleCapabilities = map[string]Capability{
	"requestor":          CapabilityRequestor,
	"requester":          CapabilityRequestor,
	"staff":              CapabilityRequestor,
	"department manager": CapabilityApprover,
	"financial manager":  CapabilityApprover,
	"general manager":    CapabilityApprover,
	"purchasing staff":   CapabilityPurchaser,
	"purchasing manager": CapabilityPurchaser,
}

// FromDisplayName maps a role display name to its capability. The mapping
// happens once at the boundary; rule functions only ever see capabilities.
// Unrecognised names resolve to CapabilityUnknown.
func FromDisplayName(name string) Capability {
	cap, ok := roleCapabilities[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return CapabilityUnknown
	}
	return cap
}
