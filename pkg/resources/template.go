package resources

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// ExpandTemplate replaces placeholders with concrete, path-escaped values.
func ExpandTemplate(tmpl string, vars map[string]string) (string, error) {
	res := tmpl
	for k, v := range vars {
		res = strings.ReplaceAll(res, "{"+k+"}", url.PathEscape(v))
	}
	if strings.Contains(res, "{") {
		return "", fmt.Errorf("not all variables provided for template %s", tmpl)
	}
	if _, err := url.Parse(res); err != nil {
		return "", fmt.Errorf("invalid uri after expansion: %w", err)
	}
	return res, nil
}

// templateVariables lists the names in curly braces, in order.
func templateVariables(tmpl string) []string {
	vars := []string{}
	parts := strings.Split(tmpl, "{")
	for i := 1; i < len(parts); i++ {
		if idx := strings.Index(parts[i], "}"); idx != -1 {
			vars = append(vars, parts[i][:idx])
		}
	}
	return vars
}

// matchTemplate tries to match a concrete uri against a template and returns
// the unescaped variable values.
func matchTemplate(tmpl, uri string) (map[string]string, error) {
	vars := templateVariables(tmpl)
	if len(vars) == 0 {
		return nil, fmt.Errorf("template contains no variables")
	}

	pattern := regexp.QuoteMeta(tmpl)
	for _, v := range vars {
		pattern = strings.Replace(pattern, regexp.QuoteMeta("{"+v+"}"), "([^/]+)", 1)
	}
	pattern = "^" + pattern + "$"

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	m := re.FindStringSubmatch(uri)
	if m == nil {
		return nil, fmt.Errorf("uri %q does not match template %s", uri, tmpl)
	}
	out := map[string]string{}
	for i, v := range vars {
		value, err := url.PathUnescape(m[i+1])
		if err != nil {
			return nil, err
		}
		out[v] = value
	}
	return out, nil
}
