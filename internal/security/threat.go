// Package security screens inbound user text for prompt-injection attempts and
// outbound agent replies for prompt leaks, role breaking and PII.
package security

// ThreatLevel grades an inbound message. Levels are ordered None < Low < Medium < High.
type ThreatLevel int

const (
	ThreatNone ThreatLevel = iota
	ThreatLow
	ThreatMedium
	ThreatHigh
)

func (l ThreatLevel) String() string {
	switch l {
	case ThreatLow:
		return "Low"
	case ThreatMedium:
		return "Medium"
	case ThreatHigh:
		return "High"
	default:
		return "None"
	}
}
