package relabel

import "fmt"

// Declaration is one CSS property/value pair.
type Declaration struct {
	Property string
	Value    string
}

var overrideDeclarations = [...]Declaration{
	{"background-color", "rgb(220,220,220)"},
	{"background-image", "none"},
	{"font-weight", "900"},
	{"color", "black"},
	{"border", "none"},
	{"box-shadow", "none"},
	{"outline", "none"},
}

// OverrideDeclarations returns the declarations ApplyOverride sets.
func OverrideDeclarations() []Declaration {
	return append([]Declaration(nil), overrideDeclarations[:]...)
}

// ApplyOverride flattens el to a bold, borderless gray control. Every
// declaration is set at override precedence; a nil element is ignored.
func ApplyOverride(el Node) error {
	if el == nil {
		return nil
	}
	for _, d := range overrideDeclarations {
		if err := el.SetStyle(d.Property, d.Value); err != nil {
			return fmt.Errorf("relabel: set %s: %w", d.Property, err)
		}
	}
	return nil
}
