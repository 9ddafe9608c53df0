package schema

// Schema is a map of field names to their expected types.
// Example: {"root": String(), "trim": Slice(String())}
type Schema map[string]Type

// Validate checks that every present field of data conforms to the schema
// and that data has no fields the schema does not define. All fields are
// optional. Paths are reported under prefix, e.g. "cache.root" or
// "naming.trim[1]" for a bad list element.
func Validate(prefix string, schema Schema, data map[string]any) []error {
	var errs []error
	for _, key := range sortedKeys(data) {
		value := data[key]
		fieldType, ok := schema[key]
		if !ok {
			errs = append(errs, &ValidationError{Path: qualify(prefix, key), Reason: "unknown field"})
			continue
		}
		if err := fieldType.Validate(value); err != nil {
			errs = append(errs, at(qualify(prefix, key), err, value))
		}
	}
	return errs
}

func qualify(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
