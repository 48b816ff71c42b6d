// Package hallucination implements the final outbound stage: scraping a
// response's content for package references the model may have invented,
// checked against a configured dependency whitelist. An empty whitelist
// disables the stage entirely.
package hallucination

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/nilgai-labs/guardproxy/internal/result"
	"github.com/nilgai-labs/guardproxy/internal/types"
)

var importPattern = regexp.MustCompile(`import\s+[^'"]*from\s+['"]([^'"]+)['"]`)
var requirePattern = regexp.MustCompile(`require\(\s*['"]([^'"]+)['"]\s*\)`)

// Scrape checks resp's content for package references not present in
// whitelist. An empty whitelist passes unconditionally (scraping disabled).
func Scrape(resp *types.Response, whitelist []string) result.Carrier {
	if len(whitelist) == 0 {
		return result.Passed()
	}
	if resp.Content == nil {
		return result.Passed()
	}

	allowed := make(map[string]bool, len(whitelist))
	for _, w := range whitelist {
		allowed[w] = true
	}

	roots := make(map[string]bool)
	for _, spec := range extractSpecifiers(*resp.Content) {
		roots[packageRoot(spec)] = true
	}

	var violations []types.Violation
	for root := range roots {
		if !allowed[root] {
			violations = append(violations, types.Violation{
				Code:        types.CodeHallucinationDetected,
				Message:     fmt.Sprintf("package %q is not in the dependency whitelist", root),
				Interceptor: types.InterceptorHallucination,
				Payload:     map[string]any{"package": root},
			})
		}
	}

	if len(violations) > 0 {
		return result.Blocked(violations...)
	}
	return result.Passed()
}

// extractSpecifiers pulls every external import/require specifier out of
// content, excluding relative and absolute paths.
func extractSpecifiers(content string) []string {
	var specs []string
	for _, m := range importPattern.FindAllStringSubmatch(content, -1) {
		specs = append(specs, m[1])
	}
	for _, m := range requirePattern.FindAllStringSubmatch(content, -1) {
		specs = append(specs, m[1])
	}

	out := make([]string, 0, len(specs))
	for _, s := range specs {
		if isExternal(s) {
			out = append(out, s)
		}
	}
	return out
}

func isExternal(spec string) bool {
	return !strings.HasPrefix(spec, "/") && !strings.HasPrefix(spec, ".") && !strings.HasPrefix(spec, "./")
}

// packageRoot returns the whitelist-comparable root of a specifier: the
// first two slash-separated segments for scoped (@scope/name) packages,
// the first segment otherwise.
func packageRoot(spec string) string {
	parts := strings.Split(spec, "/")
	if strings.HasPrefix(spec, "@") && len(parts) >= 2 {
		return parts[0] + "/" + parts[1]
	}
	return parts[0]
}
