package addr

// A Translator maps a range to its image after a copy or relocation step.
// The image may be split into several ranges. Implementations must return at
// least one range.
type Translator interface {
	Translate(r Range) []Range
}

// IdentityTranslator maps every range onto itself.
type IdentityTranslator struct{}

// Translate returns r unchanged.
func (IdentityTranslator) Translate(r Range) []Range {
	return []Range{r}
}

// TranslatorFunc adapts a plain function to the Translator interface.
type TranslatorFunc func(r Range) []Range

// Translate calls f(r).
func (f TranslatorFunc) Translate(r Range) []Range {
	return f(r)
}
