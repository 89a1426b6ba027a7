package mapper

import (
	"regexp"
	"strings"
)

// taskPattern recognizes one executor id naming convention
type taskPattern struct {
	name string
	re   *regexp.Regexp
	// build assembles the logical name from the named submatches
	build func(groups map[string]string) string
}

// Executor ids carry a 13 digit millisecond start time followed by the
// instance number. Patterns are tried in order; the first match wins.
var taskPatterns = []taskPattern{
	{
		// request---env-<deploy...>-<ms>-<instance>-<host>-<rack>
		name: "separator",
		re:   regexp.MustCompile(`^(?P<request>.+?)---(?P<env>[^-]+)-.*-\d{13}-(?P<instance>\d{1,2})-.+$`),
		build: func(g map[string]string) string {
			return g["request"] + "-" + g["env"]
		},
	},
	{
		// request-teamcity_<deploy>-<ms>-<instance>-<host>-<rack>
		name: "teamcity",
		re:   regexp.MustCompile(`^(?P<request>.+?)-teamcity_[^-]+-\d{13}-(?P<instance>\d{1,2})-.+$`),
		build: func(g map[string]string) string {
			return g["request"]
		},
	},
	{
		// request-<deploy>-<ms>-<instance>-<host.domain.tld>-<rack>
		name: "host",
		re:   regexp.MustCompile(`^(?P<request>.+)-[^-]+-\d{13}-(?P<instance>\d{1,2})-[^-]+\.[A-Za-z]{2,}-[^-]+$`),
		build: func(g map[string]string) string {
			return g["request"]
		},
	},
}

func (p taskPattern) match(id string) (name, instance string, ok bool) {
	m := p.re.FindStringSubmatch(id)
	if m == nil {
		return "", "", false
	}
	groups := make(map[string]string, len(m))
	for i, n := range p.re.SubexpNames() {
		if n != "" {
			groups[n] = m[i]
		}
	}
	return p.build(groups), groups["instance"], true
}

// BestGuessRequestName reconstructs "name_N" from an executor id using the
// known naming conventions. Ids matching none of them are returned unchanged.
func BestGuessRequestName(executorID string) string {
	if name, instance, ok := guessTask(executorID); ok {
		return name + "_" + instance
	}
	return executorID
}

func guessTask(executorID string) (name, instance string, ok bool) {
	for _, p := range taskPatterns {
		if name, instance, ok := p.match(executorID); ok {
			return name, instance, true
		}
	}
	return "", "", false
}

// splitInstance splits "name_N" at its last underscore
func splitInstance(resolved string) (name, instance string, ok bool) {
	i := strings.LastIndex(resolved, "_")
	if i <= 0 || i == len(resolved)-1 {
		return "", "", false
	}
	instance = resolved[i+1:]
	for _, r := range instance {
		if r < '0' || r > '9' {
			return "", "", false
		}
	}
	return resolved[:i], instance, true
}

// ResolveTask names an executor: the active-task lookup wins, then the
// naming heuristics. ok is false when the id stays unresolved.
func ResolveTask(executorID string, lookup map[string]string) (name, instance string, ok bool) {
	if resolved, found := lookup[executorID]; found {
		if name, instance, ok := splitInstance(resolved); ok {
			return name, instance, true
		}
	}
	return guessTask(executorID)
}
