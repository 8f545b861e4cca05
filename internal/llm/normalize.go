package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"postflow/internal/model"
)

const (
	NoCaptionPlaceholder = "No caption generated"
	NoTagsPlaceholder    = "No tags generated"
)

// Result is the canonical shape of a caption generation.
type Result struct {
	Caption     string
	Tags        []string
	Description string

	// CaptionGenerated and TagsGenerated are false when a placeholder was substituted.
	CaptionGenerated bool
	TagsGenerated    bool
}

var fenceRe = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*(.*?)\\s*```")

// Normalize reconciles whatever a provider returned into a Result. It never
// fails: unrecoverable fields fall back to placeholders.
func Normalize(raw any) Result {
	var caption, description string
	var tags []string

	switch v := raw.(type) {
	case map[string]any:
		caption, tags, description = fromObject(v)
	case string:
		caption, tags, description = fromText(v)
	case []byte:
		caption, tags, description = fromText(string(v))
	case json.RawMessage:
		caption, tags, description = fromText(string(v))
	}

	res := Result{
		Caption:     truncateRunes(strings.TrimSpace(caption), model.MaxCaptionLength),
		Tags:        tags,
		Description: strings.TrimSpace(description),
	}
	res.CaptionGenerated = res.Caption != ""
	res.TagsGenerated = len(res.Tags) > 0
	if !res.CaptionGenerated {
		res.Caption = NoCaptionPlaceholder
	}
	if !res.TagsGenerated {
		res.Tags = []string{NoTagsPlaceholder}
	}
	return res
}

func fromObject(obj map[string]any) (caption string, tags []string, description string) {
	caption = stringField(lookup(obj, "caption"))
	description = stringField(lookup(obj, "description"))

	switch t := lookup(obj, "tags").(type) {
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok {
				tags = append(tags, NormalizeTags([]string{s})...)
			}
		}
	case []string:
		tags = NormalizeTags(t)
	case string:
		tags = NormalizeTags(splitTags(t))
	}
	return caption, tags, description
}

// lookup prefers an exact key and falls back to a case-insensitive match.
func lookup(obj map[string]any, key string) any {
	if v, ok := obj[key]; ok {
		return v
	}
	for k, v := range obj {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return nil
}

func stringField(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case float64, bool:
		return fmt.Sprint(s)
	}
	return ""
}

func fromText(text string) (string, []string, string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", nil, ""
	}

	candidates := []string{text}
	if m := fenceRe.FindStringSubmatch(text); m != nil {
		candidates = append([]string{m[1]}, candidates...)
	}
	if open, end := strings.Index(text, "{"), strings.LastIndex(text, "}"); open >= 0 && end > open {
		candidates = append(candidates, text[open:end+1])
	}

	for _, c := range candidates {
		var obj map[string]any
		if err := json.Unmarshal([]byte(c), &obj); err == nil && obj != nil {
			return fromObject(obj)
		}
	}

	return fromLines(text)
}

// fromLines scans "caption:", "tags:" and "description:" markers, case-insensitively.
func fromLines(text string) (caption string, tags []string, description string) {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimLeft(strings.TrimSpace(line), "*-# ")
		lower := strings.ToLower(line)

		switch {
		case strings.HasPrefix(lower, "caption:"):
			caption = markerValue(line, len("caption:"))
		case strings.HasPrefix(lower, "tags:"):
			tags = NormalizeTags(splitTags(markerValue(line, len("tags:"))))
		case strings.HasPrefix(lower, "description:"):
			description = markerValue(line, len("description:"))
		}
	}
	return caption, tags, description
}

func markerValue(line string, n int) string {
	v := strings.TrimSpace(line[n:])
	v = strings.TrimLeft(v, "* ")
	return strings.Trim(v, `"'`)
}

func splitTags(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
}

// NormalizeTags trims entries, gives each exactly one leading '#', drops
// empties and caps length. Applying it twice yields the same output.
func NormalizeTags(in []string) []string {
	out := make([]string, 0, len(in))
	for _, t := range in {
		t = strings.Trim(strings.TrimSpace(t), `"'[]`)
		t = strings.TrimLeftFunc(t, func(r rune) bool { return r == '#' || unicode.IsSpace(r) })
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		out = append(out, strings.TrimSpace(truncateRunes("#"+t, model.MaxTagLength)))
	}
	return out
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	return string(r[:limit])
}
