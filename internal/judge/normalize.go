package judge

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/letsee/debate-backend/internal/models"
)

// NormalizePayload maps a loosely shaped oracle response onto Payload. Known
// alternate key spellings are accepted; anything missing or malformed becomes
// an empty value. transcript is used to recover the role of entries that only
// carry a turn number.
func NormalizePayload(raw map[string]any, transcript []models.Argument) *Payload {
	p := &Payload{Overall: make(map[models.Role]float64), Source: "oracle"}

	for _, item := range asSlice(first(raw, "per_argument", "perArgument", "arguments")) {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		score, ok := normalizeEntry(entry, transcript)
		if ok {
			p.PerArgument = append(p.PerArgument, score)
		}
	}

	if overall, ok := first(raw, "overall", "totals", "overall_score").(map[string]any); ok {
		for k, v := range overall {
			role, err := models.ParseRole(strings.ToLower(strings.TrimSpace(k)))
			if err != nil {
				continue
			}
			if f, ok := asFloat(v); ok {
				p.Overall[role] = round2(f)
			}
		}
	}

	switch w := strings.ToLower(strings.TrimSpace(asString(raw["winner"]))); w {
	case "tie", "draw":
		p.Winner = "tie"
	default:
		if role, err := models.ParseRole(w); err == nil {
			p.Winner = role.String()
		}
	}

	p.Summary = asString(first(raw, "summary", "rationale"))

	review, _ := raw["review"].(map[string]any)
	for _, role := range models.Roles {
		rr := p.Review.For(role)
		block, _ := first(review, role.String(), strings.ToUpper(role.String()), longRoleName(role)).(map[string]any)
		rr.Strengths = ensureList(first(block, "strengths", "positives", "good"))
		rr.Improvements = ensureList(first(block, "improvements", "development", "weaknesses", "bad"))
		rr.Summary = asString(first(block, "summary", "overall"))
	}
	p.Review.Overall = asString(first(review, "overall", "summary"))
	if p.Review.Overall == "" {
		p.Review.Overall = p.Summary
	}
	p.Review.Highlights = ensureList(first(review, "highlights", "overall_highlights"))
	p.Review.Growth = ensureList(first(review, "growth", "overall_growth", "growth_areas"))
	return p
}

func normalizeEntry(entry map[string]any, transcript []models.Argument) (models.ArgumentScore, bool) {
	var out models.ArgumentScore
	turn, hasTurn := asInt(entry["turn"])
	out.Turn = turn

	role, err := models.ParseRole(strings.ToLower(strings.TrimSpace(asString(entry["role"]))))
	switch {
	case err == nil:
		out.Role = role
	case hasTurn && turn >= 0 && turn < len(transcript):
		out.Role = transcript[turn].SpeakerRole
	default:
		return out, false
	}

	score, _ := asFloat(entry["score"])
	out.Score = round2(clamp(nonNegative(score), 0, maxScore))
	out.Rating = asString(first(entry, "rating", "rating_label", "ratingLabel", "score_label", "assessment"))
	if out.Rating == "" {
		out.Rating = LabelFor(out.Score)
	}
	out.Feedback = asString(first(entry, "feedback", "comment"))
	out.Strengths = ensureList(first(entry, "strengths", "positives", "good"))
	out.Improvements = ensureList(first(entry, "improvements", "development", "weaknesses", "bad"))
	return out, true
}

// first returns the first non-empty value stored under any of keys.
func first(m map[string]any, keys ...string) any {
	for _, k := range keys {
		v, ok := m[k]
		if !ok || v == nil {
			continue
		}
		if s, isString := v.(string); isString && strings.TrimSpace(s) == "" {
			continue
		}
		return v
	}
	return nil
}

func longRoleName(r models.Role) string {
	if r == models.Opponent {
		return "opponent"
	}
	return "proponent"
}

func asSlice(v any) []any {
	s, _ := v.([]any)
	return s
}

func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64, bool, int:
		return fmt.Sprint(t)
	}
	return ""
}

func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	}
	return 0, false
}

func asInt(v any) (int, bool) {
	f, ok := asFloat(v)
	if !ok {
		return 0, false
	}
	return int(f), true
}

func ensureList(v any) []string {
	switch t := v.(type) {
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s := asString(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	case []string:
		out := make([]string, 0, len(t))
		for _, s := range t {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if s := strings.TrimSpace(t); s != "" {
			return []string{s}
		}
	}
	return []string{}
}
