package calendar

import (
	"encoding/json"
	"fmt"
	"time"

	appLog "islandbot/internal/log"
	"islandbot/internal/model"
)

// Field aliases seen across revisions of the calendar API. The first
// non-empty value wins.
var (
	categoryKeys = []string{"CategoryName", "Category", "categoryName", "category"}
	nameKeys     = []string{"ContentsName", "contentsName"}
	noteKeys     = []string{"ContentsNote", "contentsNote"}
	startKeys    = []string{"StartTimes", "startTimes"}
	rewardKeys   = []string{"RewardItems", "Rewards", "rewardItems", "rewards"}
)

// Entry is one raw calendar record as delivered by the API.
type Entry struct {
	Category string
	Name     string
	Note     string

	// StartTimes holds the raw timestamp strings. A scalar StartTimes value
	// in the payload is normalized into a one-element slice.
	StartTimes []string

	// Rewards is the untouched reward tree (map[string]any / []any / scalar).
	Rewards any
}

// UnmarshalJSON decodes an entry while tolerating aliased field names.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*e = entryFromMap(raw)
	return nil
}

// Snapshot is the cached result of one calendar fetch. It is never mutated
// after construction; a refresh replaces the whole value.
type Snapshot struct {
	Date      model.Date
	Entries   []Entry
	FetchedAt time.Time
}

// decodeEntries turns a response body into entries. Anything other than a
// JSON array yields an empty list; array elements that are not objects are
// skipped.
func decodeEntries(body []byte) ([]Entry, error) {
	var root any
	if err := json.Unmarshal(body, &root); err != nil {
		return nil, fmt.Errorf("decode calendar payload: %w", err)
	}

	items, ok := root.([]any)
	if !ok {
		appLog.Info("calendar payload is not an array; treating as empty", "type", fmt.Sprintf("%T", root))
		return []Entry{}, nil
	}

	entries := make([]Entry, 0, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			appLog.Debug("calendar item skipped: not an object", "index", i)
			continue
		}
		entries = append(entries, entryFromMap(obj))
	}
	return entries, nil
}

func entryFromMap(raw map[string]any) Entry {
	return Entry{
		Category:   firstString(raw, categoryKeys),
		Name:       firstString(raw, nameKeys),
		Note:       firstString(raw, noteKeys),
		StartTimes: stringList(firstValue(raw, startKeys)),
		Rewards:    firstValue(raw, rewardKeys),
	}
}

func firstValue(raw map[string]any, keys []string) any {
	for _, k := range keys {
		if v, ok := raw[k]; ok && !isEmpty(v) {
			return v
		}
	}
	return nil
}

func firstString(raw map[string]any, keys []string) string {
	for _, k := range keys {
		if s, ok := raw[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// stringList normalizes a scalar-or-array JSON value into strings.
func stringList(v any) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		out := make([]string, 0, len(t))
		for _, x := range t {
			if x == nil {
				continue
			}
			out = append(out, scalarString(x))
		}
		return out
	default:
		return []string{scalarString(t)}
	}
}

func scalarString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	default:
		return false
	}
}
