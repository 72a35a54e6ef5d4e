package risk

// Outcome is the result of computing one component: either Ok with a
// measured or oracle-estimated value, or Fallback with the fixed default and
// the reason the better sources were unavailable. Callers inspect it rather
// than recovering from an error.
type Outcome struct {
	component Component
	fallback  bool
	reason    string
}

// Ok wraps a component computed from data.
func Ok(c Component) Outcome {
	return Outcome{component: c}
}

// Fallback wraps a default component. The component's provenance is forced
// to default-fallback and reason is recorded on it.
func Fallback(c Component, reason string) Outcome {
	c.Provenance = ProvenanceDefaultFallback
	if c.Reason == "" {
		c.Reason = reason
	}
	return Outcome{component: c, fallback: true, reason: reason}
}

// Component returns the wrapped component.
func (o Outcome) Component() Component { return o.component }

// IsFallback reports whether the default was used.
func (o Outcome) IsFallback() bool { return o.fallback }

// Reason is why the fallback was taken; empty for Ok.
func (o Outcome) Reason() string { return o.reason }

// Value is shorthand for Component().Value.
func (o Outcome) Value() float64 { return o.component.Value }

// Provenance is shorthand for Component().Provenance.
func (o Outcome) Provenance() Provenance { return o.component.Provenance }
