package security

import (
	"regexp"
	"strings"
)

// SafeReply replaces any reply that leaks internals or breaks role.
const SafeReply = "Disculpe, ¿puedo ayudarle con alguna consulta sobre nuestros servicios o desea agendar una cita?"

// Redaction labels.
const (
	LabelPromptLeak    = "prompt_leak"
	LabelRoleViolation = "role_violation"
	LabelEmail         = "email"
	LabelPhone         = "phone"
	LabelDocumentID    = "document_id"
)

// FilterResult is the outcome of screening one reply.
type FilterResult struct {
	Content       string
	WasModified   bool
	RedactedItems []string
}

// OutputRule is one entry of the output table. Structural rules replace the
// whole reply with SafeReply and stop evaluation; masking rules substitute
// Replacement for every match and continue.
type OutputRule struct {
	Pattern     *regexp.Regexp
	Label       string
	Structural  bool
	Replacement string
}

func structural(label, pattern string) OutputRule {
	return OutputRule{Pattern: regexp.MustCompile(`(?i)` + pattern), Label: label, Structural: true}
}

// DefaultOutputRules runs prompt-leak checks, then role checks, then PII
// masks. Document ids precede phones so their digits are not taken as a phone.
var DefaultOutputRules = []OutputRule{
	structural(LabelPromptLeak, `# IDENTIDAD Y CONTEXTO`),
	structural(LabelPromptLeak, `RESTRICCI[OÓ]N PROFESIONAL ABSOLUTA`),
	structural(LabelPromptLeak, `PROTOCOLO DE SEGURIDAD`),
	structural(LabelPromptLeak, `INSTRUCCIONES DE SEGURIDAD INMUTABLES`),
	structural(LabelPromptLeak, `BookingTools-\w+|BusinessInfoTools-\w+`),
	structural(LabelPromptLeak, `\b(get_booking_info|cancel_booking|book_appointment|find_slots|function_call|tool_call)\b`),
	structural(LabelPromptLeak, `(api[_\s]?key|secret[_\s]?key|access[_\s]?token|bearer\s+token)\s*[:=]\s*\S+`),
	structural(LabelPromptLeak, `(postgres|postgresql|redis)://\S+`),

	structural(LabelRoleViolation, `como\s+(modelo|inteligencia\s+artificial|IA|AI)\b`),
	structural(LabelRoleViolation, `(as\s+an?\s+(AI|language\s+model)|I('m|\s+am)\s+an?\s+(AI|language\s+model))`),
	structural(LabelRoleViolation, `seg[uú]n\s+mi\s+entrenamiento`),

	{
		Pattern:     regexp.MustCompile(`(?i)\b((?:c[eé]dula|cc|documento|dni|identificaci[oó]n)[:\s#]*)\d{6,10}\b`),
		Label:       LabelDocumentID,
		Replacement: "${1}[DOCUMENTO PROTEGIDO]",
	},
	{
		Pattern:     regexp.MustCompile(`(?i)\b[A-Z0-9._%+-]+@[A-Z0-9.-]+\.[A-Z]{2,}\b`),
		Label:       LabelEmail,
		Replacement: "[EMAIL PROTEGIDO]",
	},
	{
		Pattern:     regexp.MustCompile(`(?:\+57[\s.-]?|\b(?:57[\s.-]?)?)\d{3}[\s.-]?\d{3}[\s.-]?\d{4}\b`),
		Label:       LabelPhone,
		Replacement: "[TELÉFONO PROTEGIDO]",
	},
}

// OutputFilter screens agent replies. It is stateless beyond its rule table
// and safe for concurrent use.
type OutputFilter struct {
	rules []OutputRule
}

// NewOutputFilter returns a filter over DefaultOutputRules.
func NewOutputFilter() *OutputFilter {
	return NewOutputFilterWithRules(DefaultOutputRules)
}

// NewOutputFilterWithRules returns a filter over a custom rule table.
func NewOutputFilterWithRules(rules []OutputRule) *OutputFilter {
	ordered := make([]OutputRule, 0, len(rules))
	for _, r := range rules {
		if r.Structural {
			ordered = append(ordered, r)
		}
	}
	for _, r := range rules {
		if !r.Structural {
			ordered = append(ordered, r)
		}
	}
	return &OutputFilter{rules: ordered}
}

// Filter screens a reply bound for tenantID. A structural match short-circuits:
// the whole reply becomes SafeReply and no PII masking is attempted.
func (f *OutputFilter) Filter(reply, tenantID string) FilterResult {
	if strings.TrimSpace(reply) == "" {
		return FilterResult{Content: reply, RedactedItems: []string{}}
	}

	content := reply
	labels := []string{}
	for _, r := range f.rules {
		if !r.Pattern.MatchString(content) {
			continue
		}
		if r.Structural {
			return FilterResult{Content: SafeReply, WasModified: SafeReply != reply, RedactedItems: []string{r.Label}}
		}
		content = r.Pattern.ReplaceAllString(content, r.Replacement)
		labels = appendUnique(labels, r.Label)
	}
	return FilterResult{Content: content, WasModified: content != reply, RedactedItems: labels}
}

func appendUnique(labels []string, label string) []string {
	for _, l := range labels {
		if l == label {
			return labels
		}
	}
	return append(labels, label)
}
