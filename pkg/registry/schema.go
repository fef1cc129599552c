// pkg/registry/schema.go
package registry

// TemplateRegistry is a versioned catalog of message templates used by the
// deterministic mock backend. Each template targets a (family, persona,
// selector) triplet; the selector is a CTA short code for offer campaigns or
// a handset brand for equipment campaigns.
type TemplateRegistry struct {
	Version     string     `json:"version"`
	LastUpdated string     `json:"lastUpdated"`
	Templates   []Template `json:"templates"`
}

// Template holds the rotation variants for one targeting triplet. Variants
// contain {placeholder} markers filled from the composed context; a variant
// must never carry literal numbers of its own.
type Template struct {
	ID       string   `json:"id"`
	Family   string   `json:"family"`
	Persona  string   `json:"persona"`
	Selector string   `json:"selector"`
	Variants []string `json:"variants"`
	Tags     []string `json:"tags,omitempty"`
}

// Wildcard values recognized in Family/Persona/Selector for cascade lookup.
const (
	AnyPersona      = "__ALL__"
	AnyFamily       = "__ALL__"
	DefaultSelector = "__DEFAULT__"
)
