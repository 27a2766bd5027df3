package security

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// GenericRejection is the only text a blocked user ever sees. It never
// reflects the message or the rule that fired.
const GenericRejection = "Solo puedo ayudarle con la gestión de citas y consultas sobre nuestros servicios. ¿Desea agendar una cita o tiene alguna consulta?"

// GuardResult is the verdict on one inbound message.
type GuardResult struct {
	Allowed         bool
	RejectionReason string // user-facing, always GenericRejection when blocked
	Level           ThreatLevel
	// Rule is the internal reason of the rule that fired. For logs and audit only.
	Rule string
}

// InputRule pairs a pattern with the internal reason logged when it fires.
type InputRule struct {
	Pattern *regexp.Regexp
	Reason  string
	Level   ThreatLevel
}

func rule(level ThreatLevel, reason, pattern string) InputRule {
	return InputRule{Pattern: regexp.MustCompile(`(?i)` + pattern), Reason: reason, Level: level}
}

// DefaultInputRules is the bilingual (ES/EN) rule table. Order matters only
// within a level; higher levels are always evaluated first.
var DefaultInputRules = []InputRule{
	// role override
	rule(ThreatHigh, "override:ignore_instructions_es", `ignor[ae]\s+(todas\s+)?(las\s+)?(instrucciones|reglas|restricciones)`),
	rule(ThreatHigh, "override:ignore_instructions_en", `ignore\s+(all\s+)?(previous|prior|above|your)\s+(instructions|rules|prompts)`),
	rule(ThreatHigh, "override:discard_directives", `(olvida|ignora|descarta)\s+(todas?\s+)?(los\s+|las\s+|tus\s+)?(instrucciones|reglas|directivas|indicaciones)`),
	rule(ThreatHigh, "override:disregard_en", `(disregard|forget)\s+(all\s+)?(previous|prior|above|your)\s+(instructions|rules|prompts|guidelines)`),
	rule(ThreatHigh, "override:role_change_es", `(act[uú]a|comp[oó]rtate|finge|pretende)\s+(como|ser|que\s+eres)\s+`),
	rule(ThreatHigh, "override:role_change_en", `(you\s+are\s+now|from\s+now\s+on\s+you\s+are|new\s+role|switch\s+to)`),
	rule(ThreatHigh, "override:bypass", `bypass\s+(your\s+)?(safety|filters?|restrictions?|guidelines?|rules?)`),

	// system prompt extraction
	rule(ThreatHigh, "extraction:prompt_es", `(mu[eé]stra(me)?|dime|revela|comparte|repite|copia)\s+(tu|el|las?)\s+(prompt|instrucciones|system\s*prompt|configuraci[oó]n)`),
	rule(ThreatHigh, "extraction:prompt_en", `(show|reveal|display|print|repeat|share)\s+(your\s+)?(the\s+)?(system\s*)?(prompt|instructions|config)`),
	rule(ThreatHigh, "extraction:rules_es", `cu[aá]les\s+son\s+tus\s+(instrucciones|reglas|directivas)`),

	// bulk data exfiltration
	rule(ThreatHigh, "exfiltration:bulk_es", `(lista|muestra|dame|dime)\s+(todos?\s+)?(los\s+)?(nombres|pacientes|clientes|citas|datos)`),
	rule(ThreatHigh, "exfiltration:bulk_en", `(list|show|give|tell)\s+(me\s+)?(all\s+)?(patients|clients|names|appointments|bookings|data)`),

	// jailbreak tokens
	rule(ThreatHigh, "jailbreak:dan", `(?-i:\bDAN\b)|do\s+anything\s+now|jailbreak`),
	rule(ThreatHigh, "jailbreak:special_tokens", `\[/?INST\]|\[/?SYS\]|<\|im_start\|>|<\|im_end\|>|<\|system\|>`),

	// capability probing and framing
	rule(ThreatMedium, "probe:limits", `(qu[eé]\s+puedes\s+hacer\s+realmente|cu[aá]les\s+son\s+tus\s+l[ií]mites|what\s+are\s+your\s+limits)`),
	rule(ThreatMedium, "probe:data_access", `(tienes\s+acceso\s+a|puedes\s+ver|puedes\s+acceder|do\s+you\s+have\s+access\s+to)`),
	rule(ThreatMedium, "probe:special_mode", `(modo\s+desarrollo|modo\s+debug|developer\s+mode|debug\s+mode|test\s+mode|admin\s+mode)`),
	rule(ThreatMedium, "probe:hypothetical", `(sim[uú]la|hypothetically|hipot[eé]ticamente|imagina\s+que|imagine\s+that)`),
}

// sequencing markers counted by the long-message heuristic
var sequencingMarkers = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bstep\s*\d+\b`),
	regexp.MustCompile(`(?i)\bpaso\s*\d+\b`),
	regexp.MustCompile(`(?i)\b(primero|segundo|tercero|luego|despu[eé]s)\b`),
	regexp.MustCompile(`(?i)\b(first|second|third|then|next|finally)\b`),
}

const (
	longMessageThreshold = 1000
	minSequencingMarkers = 3
)

var evaluationOrder = []ThreatLevel{ThreatHigh, ThreatMedium, ThreatLow}

// InputGuard classifies inbound messages. It is stateless beyond its rule
// table and safe for concurrent use. Go's regexp engine runs in linear time,
// so evaluation is bounded regardless of the input.
type InputGuard struct {
	rules []InputRule
}

// NewInputGuard returns a guard over DefaultInputRules.
func NewInputGuard() *InputGuard {
	return NewInputGuardWithRules(DefaultInputRules)
}

// NewInputGuardWithRules returns a guard over a custom rule table.
func NewInputGuardWithRules(rules []InputRule) *InputGuard {
	return &InputGuard{rules: append([]InputRule(nil), rules...)}
}

// Analyze classifies a message. It never fails.
func (g *InputGuard) Analyze(message string) GuardResult {
	normalized := strings.TrimSpace(message)
	if normalized == "" {
		return GuardResult{Allowed: true, Level: ThreatNone}
	}

	for _, level := range evaluationOrder {
		for _, r := range g.rules {
			if r.Level == level && r.Pattern.MatchString(normalized) {
				return blocked(level, r.Reason)
			}
		}
	}

	if utf8.RuneCountInString(normalized) > longMessageThreshold && countSequencingMarkers(normalized) >= minSequencingMarkers {
		return blocked(ThreatMedium, "heuristic:long_multi_step")
	}
	return GuardResult{Allowed: true, Level: ThreatNone}
}

func blocked(level ThreatLevel, reason string) GuardResult {
	return GuardResult{Allowed: false, RejectionReason: GenericRejection, Level: level, Rule: reason}
}

func countSequencingMarkers(text string) int {
	count := 0
	for _, re := range sequencingMarkers {
		count += len(re.FindAllStringIndex(text, -1))
		if count >= minSequencingMarkers {
			return count
		}
	}
	return count
}
