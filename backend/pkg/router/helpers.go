package router

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// validateRouteSpec validates a RouteSpec.
func validateRouteSpec(spec RouteSpec) error {
	if spec.OperationID == "" {
		return errors.New("field OperationID required")
	}

	if spec.Summary == "" {
		return errors.New("field Summary required")
	}

	if spec.Description == "" {
		return errors.New("field Description required")
	}

	if spec.Group == "" {
		return errors.New("field Group required")
	}

	if spec.Handler == nil {
		return errors.New("field Handler required")
	}

	return nil
}

// pathParams returns the {name} placeholders of a chi path. Regexp suffixes ({id:[0-9]+}) are stripped.
func pathParams(fullPath string) ([]string, error) {
	var names []string

	for section := range strings.SplitSeq(fullPath, "/") {
		open := strings.Count(section, "{")
		if open != strings.Count(section, "}") {
			return nil, fmt.Errorf("unbalanced braces in path %s", fullPath)
		}

		if open == 0 {
			continue
		}

		if open > 1 || !strings.HasPrefix(section, "{") || !strings.HasSuffix(section, "}") {
			return nil, fmt.Errorf("parameter must span the whole segment in path %s", fullPath)
		}

		name, _, _ := strings.Cut(section[1:len(section)-1], ":")
		if !isValidParameterName(name) {
			return nil, fmt.Errorf("invalid parameter name %s in path %s", name, fullPath)
		}

		names = append(names, name)
	}

	return names, nil
}

func isValidParameterName(name string) bool {
	if name == "" {
		return false
	}

	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && (r >= '0' && r <= '9' || r == '_'):
		default:
			return false
		}
	}

	return true
}

// validateParameters checks that every path parameter is documented and every documented
// parameter is well formed.
func validateParameters(spec RouteSpec) error {
	names, err := pathParams(spec.fullPath)
	if err != nil {
		return err
	}

	paramsInPath := map[string]struct{}{}
	for _, name := range names {
		paramsInPath[name] = struct{}{}
	}

	documentedPathParams := map[string]struct{}{}

	// For each documented parameter, validate it
	for name, paramSpec := range spec.Parameters {
		if name == "" {
			return fmt.Errorf("parameter name required for %s %s", spec.method, spec.fullPath)
		}

		if paramSpec.Description == "" {
			return fmt.Errorf("parameter Description required for %s %s", spec.method, spec.fullPath)
		}

		validInValues := []ParameterIn{ParameterInPath, ParameterInQuery, ParameterInHeader}
		if !slices.Contains(validInValues, paramSpec.In) {
			return fmt.Errorf("parameter In must be one of %v for %s %s", validInValues, spec.method, spec.fullPath)
		}

		if paramSpec.In == ParameterInPath {
			if _, exists := paramsInPath[name]; !exists {
				return fmt.Errorf("documented path parameter %s not found in path", name)
			}

			if !paramSpec.Required {
				return fmt.Errorf("path parameter %s must be required", name)
			}

			documentedPathParams[name] = struct{}{}
		}
	}

	// Now go over all discovered path parameters and validate that they are documented
	for name := range paramsInPath {
		if _, exists := documentedPathParams[name]; !exists {
			return fmt.Errorf("path parameter %s not documented", name)
		}
	}

	return nil
}
