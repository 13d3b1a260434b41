package llm

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"

	"triagebot/internal/domain"
)

var thinkBlockRegex = regexp.MustCompile(`(?s)<think>.*?</think>`)

// Greedy on purpose: spans from the first '{' to the last '}' so nested
// objects stay intact.
var jsonObjectRegex = regexp.MustCompile(`(?s)\{.*\}`)

// extractJSONObject strips reasoning traces from a model response and parses
// the first JSON object it contains.
func extractJSONObject(responseText string) (map[string]any, error) {
	text := thinkBlockRegex.ReplaceAllString(responseText, "")

	span := jsonObjectRegex.FindString(text)
	if span == "" {
		return nil, ErrNoJSONObject
	}

	dec := json.NewDecoder(strings.NewReader(span))
	dec.UseNumber()
	var parsed map[string]any
	if err := dec.Decode(&parsed); err != nil {
		return nil, fmt.Errorf("invalid JSON object: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("invalid JSON object: trailing data after object")
	}
	return parsed, nil
}

// decodeTriageFields maps the parsed object onto a record. Only confidence is
// validated; every other field is passed through as the model produced it.
func decodeTriageFields(parsed map[string]any) (domain.TicketRecord, error) {
	confidence, err := clampConfidence(parsed["confidence"])
	if err != nil {
		return domain.TicketRecord{}, err
	}
	return domain.TicketRecord{
		Issue:            stringField(parsed["issue"]),
		Category:         stringField(parsed["category"]),
		Urgency:          stringField(parsed["urgency"]),
		SuggestedActions: parseSuggestedActions(parsed["suggested_actions"]),
		Explanation:      stringField(parsed["explanation"]),
		Confidence:       confidence,
	}, nil
}

// clampConfidence coerces the reported confidence to a float in [0, 1].
// Absent or null values default to domain.DefaultConfidence.
func clampConfidence(raw any) (float64, error) {
	var v float64
	switch x := raw.(type) {
	case nil:
		v = domain.DefaultConfidence
	case json.Number:
		f, err := parseConfidence(x.String())
		if err != nil {
			return 0, err
		}
		v = f
	case float64:
		v = x
	case string:
		f, err := parseConfidence(x)
		if err != nil {
			return 0, err
		}
		v = f
	case bool:
		if x {
			v = 1
		}
	default:
		return 0, fmt.Errorf("confidence has unsupported type %T", raw)
	}
	if math.IsNaN(v) {
		v = domain.DefaultConfidence
	}
	return math.Max(0, math.Min(1, v)), nil
}

// parseConfidence keeps the ±Inf that ParseFloat returns for out-of-range
// values so the caller clamps them to 0 or 1.
func parseConfidence(s string) (float64, error) {
	s = strings.TrimSpace(s)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, fmt.Errorf("confidence %q is not a number: %w", s, err)
	}
	return f, nil
}

func stringField(raw any) string {
	switch x := raw.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	default:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(x); err != nil {
			return fmt.Sprint(x)
		}
		return strings.TrimSpace(buf.String())
	}
}

// parseSuggestedActions accepts the expected array of strings as well as a
// bare string or a mixed array.
func parseSuggestedActions(raw any) []string {
	out := []string{}
	switch x := raw.(type) {
	case nil:
	case string:
		if s := strings.TrimSpace(x); s != "" {
			out = append(out, s)
		}
	case []any:
		for _, v := range x {
			if s := strings.TrimSpace(stringField(v)); s != "" {
				out = append(out, s)
			}
		}
	default:
		if s := strings.TrimSpace(stringField(x)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
