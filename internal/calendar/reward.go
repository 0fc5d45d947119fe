package calendar

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"islandbot/internal/model"
)

// Keys whose string values are reward names. "Item": {"Name": ...} wrappers
// are covered because the walk descends into every map.
var rewardNameKeys = map[string]struct{}{
	"Name":       {},
	"RewardName": {},
}

// Currency markers. The Korean token is matched as-is, the English one
// after case folding.
const (
	currencyKo = "골드"
	currencyEn = "gold"
)

// visitor receives every map entry met during a walk.
type visitor interface {
	visitField(key string, value any)
}

// walk traverses a decoded JSON tree depth first. Map keys are visited in
// sorted order so the traversal itself is deterministic.
func walk(node any, v visitor) {
	switch t := node.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			v.visitField(k, t[k])
			walk(t[k], v)
		}
	case []any:
		for _, x := range t {
			walk(x, v)
		}
	}
}

type nameCollector struct {
	names []string
}

func (c *nameCollector) visitField(key string, value any) {
	if _, ok := rewardNameKeys[key]; !ok {
		return
	}
	s, ok := value.(string)
	if !ok {
		return
	}
	s = strings.TrimSpace(norm.NFC.String(s))
	if s != "" {
		c.names = append(c.names, s)
	}
}

// IsCurrency reports whether a reward name belongs to the priority tier.
func IsCurrency(name string) bool {
	if strings.Contains(name, currencyKo) {
		return true
	}
	// Casers carry state and must not be shared across goroutines.
	return strings.Contains(cases.Fold().String(name), currencyEn)
}

// Classify extracts reward names from payload and splits them into the
// priority (currency) tier and everything else. It has no side effects.
func Classify(payload any) model.RewardSummary {
	if isEmpty(payload) {
		return model.RewardSummary{Status: model.RewardsAbsent}
	}

	var c nameCollector
	walk(payload, &c)
	if len(c.names) == 0 {
		return model.RewardSummary{Status: model.RewardsUnparseable}
	}

	priority := make(map[string]struct{})
	other := make(map[string]struct{})
	for _, n := range c.names {
		if IsCurrency(n) {
			priority[n] = struct{}{}
		} else {
			other[n] = struct{}{}
		}
	}

	return model.RewardSummary{
		Status:   model.RewardsFound,
		Priority: sortedKeys(priority),
		Other:    sortedKeys(other),
	}
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
