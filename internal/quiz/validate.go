package quiz

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MalformedQuestionError names the 1-based position of a rejected entry and
// the rule it violated.
type MalformedQuestionError struct {
	Index int
	Rule  string
}

func (e *MalformedQuestionError) Error() string {
	return fmt.Sprintf("question %d: %s", e.Index, e.Rule)
}

func malformed(index int, format string, args ...any) error {
	return &MalformedQuestionError{Index: index, Rule: fmt.Sprintf(format, args...)}
}

var deaccent = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeDifficulty folds case and accents and maps the synonyms the
// upstream generator has been seen emitting. ok is false when the value does
// not resolve to one of the three canonical levels.
func NormalizeDifficulty(raw any) (Difficulty, bool) {
	var s string
	switch v := raw.(type) {
	case string:
		s = v
	case float64:
		s = fmt.Sprintf("%d", int(v))
	default:
		return "", false
	}
	folded, _, err := transform.String(deaccent, strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		folded = strings.ToLower(strings.TrimSpace(s))
	}
	switch folded {
	case "facile", "easy", "simple", "debutant", "1":
		return DifficultyFacile, true
	case "moyen", "medium", "intermediaire", "2":
		return DifficultyMoyen, true
	case "difficile", "hard", "avance", "3":
		return DifficultyDifficile, true
	}
	return "", false
}

var positionLabels = [5]string{"A ", "B ", "C ", "D ", "E "}

// relabel rewrites an option/item so it carries its positional A–E label.
// Only entries that already start with some single-letter label are
// re-lettered; anything else is left untouched so the caller's prefix check
// rejects the question instead of us inventing a label for free text.
func relabel(entry string, pos int) string {
	t := strings.TrimSpace(entry)
	if len(t) >= 2 && t[1] == ' ' {
		c := t[0]
		if (c >= 'A' && c <= 'E') || (c >= 'a' && c <= 'e') {
			return positionLabels[pos] + strings.TrimSpace(t[2:])
		}
	}
	return t
}

// reservedKeyRe matches tf item text that is really a fragment of the JSON
// envelope leaking through (a known failure mode of the generator).
var reservedKeyRe = regexp.MustCompile(`(?i)^(type|truth|explanation|evidence|answer_indices|options|items|difficulty|question|note)\s*["::=,\]}]`)

func looksLikeLeakage(stripped string) bool {
	return reservedKeyRe.MatchString(stripped)
}

func stringSlice(index int, raw any, field string) ([]string, error) {
	arr, ok := raw.([]any)
	if !ok {
		return nil, malformed(index, "%s must be an array", field)
	}
	if len(arr) != 5 {
		return nil, malformed(index, "%s must have exactly 5 entries, got %d", field, len(arr))
	}
	out := make([]string, 5)
	for i, v := range arr {
		s, ok := v.(string)
		if !ok {
			return nil, malformed(index, "%s[%d] is not a string", field, i)
		}
		out[i] = s
	}
	return out, nil
}

// ValidateQuestion checks one raw imported object against the two supported
// shapes, normalizing what is normalizable (labels, difficulty synonyms,
// missing explanation) and rejecting the rest. index is 1-based and only
// used for error reporting.
func ValidateQuestion(raw map[string]any, index int) (Question, error) {
	kindStr, _ := raw["type"].(string)
	if kindStr != string(KindMulti) && kindStr != string(KindTF) {
		return Question{}, malformed(index, "type must be %q or %q", KindMulti, KindTF)
	}
	kind := Kind(kindStr)

	text, _ := raw["question"].(string)
	if len([]rune(strings.TrimSpace(text))) < 5 {
		return Question{}, malformed(index, "question text too short")
	}

	difficulty, ok := NormalizeDifficulty(raw["difficulty"])
	if !ok {
		return Question{}, malformed(index, "unrecognized difficulty %v", raw["difficulty"])
	}

	explanation, _ := raw["explanation"].(string)

	evidence, err := validateEvidence(raw["evidence"], index)
	if err != nil {
		return Question{}, err
	}

	q := Question{
		Kind:        kind,
		Text:        strings.TrimSpace(text),
		Explanation: explanation,
		Difficulty:  difficulty,
		Evidence:    evidence,
	}

	switch kind {
	case KindMulti:
		options, err := stringSlice(index, raw["options"], "options")
		if err != nil {
			return Question{}, err
		}
		for i := range options {
			options[i] = relabel(options[i], i)
			if !strings.HasPrefix(options[i], positionLabels[i]) {
				return Question{}, malformed(index, "options[%d] does not carry label %q", i, strings.TrimSpace(positionLabels[i]))
			}
		}
		q.Options = options

		indices, err := answerIndices(raw["answer_indices"], index)
		if err != nil {
			return Question{}, err
		}
		q.AnswerIndices = indices

	case KindTF:
		items, err := stringSlice(index, raw["items"], "items")
		if err != nil {
			return Question{}, err
		}
		for i := range items {
			items[i] = relabel(items[i], i)
			if !strings.HasPrefix(items[i], positionLabels[i]) {
				return Question{}, malformed(index, "items[%d] does not carry label %q", i, strings.TrimSpace(positionLabels[i]))
			}
		}
		q.Items = items

		truth, err := truthArray(raw["truth"], index)
		if err != nil {
			return Question{}, err
		}
		q.Truth = truth

		if !q.IsSingleTF() {
			for i, it := range items {
				stripped := stripItemLabel(it)
				if stripped == "" {
					return Question{}, malformed(index, "items[%d] is empty after its label", i)
				}
				if looksLikeLeakage(stripped) {
					return Question{}, malformed(index, "items[%d] looks like structural leakage: %q", i, stripped)
				}
			}
		}
	}

	return q, nil
}

func validateEvidence(raw any, index int) ([]Evidence, error) {
	if raw == nil {
		return nil, nil
	}
	arr, ok := raw.([]any)
	if !ok {
		return nil, malformed(index, "evidence must be an array")
	}
	out := make([]Evidence, 0, len(arr))
	for i, v := range arr {
		rec, ok := v.(map[string]any)
		if !ok {
			return nil, malformed(index, "evidence[%d] is not an object", i)
		}
		page, ok := rec["page"].(float64)
		if !ok {
			return nil, malformed(index, "evidence[%d].page is not a number", i)
		}
		excerpt, ok := rec["excerpt"].(string)
		if !ok {
			return nil, malformed(index, "evidence[%d].excerpt is not a string", i)
		}
		out = append(out, Evidence{Page: int(page), Excerpt: excerpt})
	}
	// Three citations is the most the generator is asked for; anything past
	// that is noise, not grounds for rejection.
	if len(out) > 3 {
		out = out[:3]
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

func answerIndices(raw any, index int) ([]int, error) {
	arr, ok := raw.([]any)
	if !ok {
		return nil, malformed(index, "answer_indices must be an array")
	}
	if len(arr) < 1 || len(arr) > 5 {
		return nil, malformed(index, "answer_indices must have 1 to 5 entries, got %d", len(arr))
	}
	seen := map[int]bool{}
	out := make([]int, 0, len(arr))
	for i, v := range arr {
		f, ok := v.(float64)
		if !ok || f != float64(int(f)) {
			return nil, malformed(index, "answer_indices[%d] is not an integer", i)
		}
		n := int(f)
		if n < 0 || n > 4 {
			return nil, malformed(index, "answer_indices[%d] out of range [0,4]", i)
		}
		if seen[n] {
			return nil, malformed(index, "answer_indices contains duplicate %d", n)
		}
		seen[n] = true
		out = append(out, n)
	}
	return out, nil
}

func truthArray(raw any, index int) ([]bool, error) {
	arr, ok := raw.([]any)
	if !ok {
		return nil, malformed(index, "truth must be an array")
	}
	if len(arr) != 5 {
		return nil, malformed(index, "truth must have exactly 5 entries, got %d", len(arr))
	}
	out := make([]bool, 5)
	for i, v := range arr {
		b, ok := v.(bool)
		if !ok {
			return nil, malformed(index, "truth[%d] is not a boolean", i)
		}
		out[i] = b
	}
	return out, nil
}

// LoadStrict validates a whole batch, aborting on the first bad entry. Used
// for user-supplied imports where a silent drop would be surprising.
func LoadStrict(list []map[string]any) ([]Question, error) {
	out := make([]Question, 0, len(list))
	for i, raw := range list {
		q, err := ValidateQuestion(raw, i+1)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, nil
}

// LoadLenient validates each entry independently and drops failures. Used
// for machine-generated batches where partial acceptance beats rejecting
// the whole delivery.
func LoadLenient(list []map[string]any) (kept []Question, dropped int) {
	kept = make([]Question, 0, len(list))
	for i, raw := range list {
		q, err := ValidateQuestion(raw, i+1)
		if err != nil {
			dropped++
			continue
		}
		kept = append(kept, q)
	}
	return kept, dropped
}

// ParseImport accepts the two envelope shapes the import boundary allows: a
// bare array of raw questions, or {title, questions}. Anything else is a
// hard failure before validation even starts.
func ParseImport(data []byte) (title string, raws []map[string]any, err error) {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal(data, &raws); err != nil {
			return "", nil, fmt.Errorf("import: %w", err)
		}
		return "", raws, nil
	}
	var envelope struct {
		Title     string           `json:"title"`
		Questions []map[string]any `json:"questions"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return "", nil, fmt.Errorf("import: %w", err)
	}
	if envelope.Questions == nil {
		return "", nil, fmt.Errorf("import: expected an array or an object with a questions field")
	}
	return envelope.Title, envelope.Questions, nil
}
