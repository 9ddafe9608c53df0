package domain

import "strings"

// NameSeparator joins name components of derived items.
const NameSeparator = "_"

// DeriveName computes a child's derived name from its parent's.
//
// An empty suffix leaves the name unchanged. Otherwise every trailing
// component listed in trims is stripped (repeatedly) before the suffix is
// appended; separators collapse when either side ends up empty.
//
//	DeriveName("foo_bar", []string{"bar"}, "baz") == "foo_baz"
//	DeriveName("bar", []string{"bar"}, "baz")     == "baz"
func DeriveName(parent string, trims []string, suffix string) string {
	suffix = strings.Trim(suffix, NameSeparator)
	if suffix == "" {
		return parent
	}

	name := stripTrims(parent, trims)
	if name == "" {
		return suffix
	}
	return name + NameSeparator + suffix
}

func stripTrims(name string, trims []string) string {
	name = strings.Trim(name, NameSeparator)
	for changed := true; changed && name != ""; {
		changed = false
		for _, t := range trims {
			t = strings.Trim(t, NameSeparator)
			if t == "" {
				continue
			}
			if name == t {
				name = ""
				changed = true
				break
			}
			if trimmed, ok := strings.CutSuffix(name, NameSeparator+t); ok {
				name = strings.TrimRight(trimmed, NameSeparator)
				changed = true
				break
			}
		}
	}
	return name
}
