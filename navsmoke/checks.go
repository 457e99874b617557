package navsmoke

import "strings"

const (
	CheckHasTitle   = "has title"
	CheckHasContent = "has content"
	CheckHasEditor  = "has editor"
)

// Check is a named predicate over a page's serialized HTML.
type Check struct {
	Name string
	Eval func(html string) bool
}

type CheckResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
}

func DefaultChecks() []Check {
	return []Check{
		{Name: CheckHasTitle, Eval: func(html string) bool {
			return strings.Contains(html, "<h1") || strings.Contains(html, "<h2")
		}},
		{Name: CheckHasContent, Eval: func(html string) bool {
			return strings.Contains(html, "class=")
		}},
		{Name: CheckHasEditor, Eval: func(html string) bool {
			return strings.Contains(strings.ToLower(html), "editor")
		}},
	}
}

// ContainsCheck builds a substring check.
func ContainsCheck(name, substr string, ignoreCase bool) Check {
	if ignoreCase {
		needle := strings.ToLower(substr)
		return Check{Name: name, Eval: func(html string) bool {
			return strings.Contains(strings.ToLower(html), needle)
		}}
	}
	return Check{Name: name, Eval: func(html string) bool {
		return strings.Contains(html, substr)
	}}
}

func EvaluateChecks(checks []Check, html string) []CheckResult {
	results := make([]CheckResult, 0, len(checks))
	for _, check := range checks {
		results = append(results, CheckResult{Name: check.Name, Passed: check.Eval(html)})
	}
	return results
}
