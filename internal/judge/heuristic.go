package judge

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/letsee/debate-backend/internal/models"
)

const (
	baseScore    = 5.0
	minScore     = 1.0
	maxScore     = 10.0
	defaultPace  = 30
	idealLength  = 20.0
	heuristicTag = "heuristic"
)

var evidenceWords = map[string]bool{
	"evidence": true, "data": true, "study": true, "studies": true, "research": true,
	"statistics": true, "percent": true, "according": true, "survey": true, "report": true,
	"source": true, "example": true, "shows": true, "measured": true, "findings": true,
}

var connectorWords = map[string]bool{
	"because": true, "therefore": true, "however": true, "thus": true, "consequently": true,
	"moreover": true, "furthermore": true, "although": true, "hence": true, "whereas": true,
	"nevertheless": true, "additionally": true,
}

var connectorPhrases = []string{"for example", "as a result", "in contrast", "on the other hand", "this means"}

var fallacyPhrases = []string{
	"everyone knows", "everybody knows", "obviously", "slippery slope", "idiot", "stupid",
	"ridiculous", "common sense", "so-called", "you always", "they always", "nobody believes",
}

// Breakdown is the itemised heuristic score of one argument.
type Breakdown struct {
	Words       int
	Sentences   int
	Development float64
	Evidence    float64
	Logic       float64
	Clarity     float64
	Relevance   float64
	Fallacy     float64
	Pace        float64
	Score       float64
}

// Heuristic is the deterministic local scorer used when no oracle is configured.
type Heuristic struct{}

// NewHeuristic returns the fallback scorer.
func NewHeuristic() *Heuristic { return &Heuristic{} }

// ScoreArgument scores one argument for topic. pace is the expected turn
// duration in seconds; 0 means 30. Judging always passes 30, whatever the
// session's turn limit.
func (h *Heuristic) ScoreArgument(arg models.Argument, topic string, pace int) (models.ArgumentScore, Breakdown) {
	if pace <= 0 {
		pace = defaultPace
	}
	lower := strings.ToLower(arg.Content)
	words := tokenize(lower)
	padded := " " + strings.Join(words, " ") + " "
	b := Breakdown{Words: len(words), Sentences: countSentences(arg.Content, len(words))}

	b.Development = math.Min(float64(b.Words)/40, 1.5)

	evidence := 0
	for _, w := range words {
		if evidenceWords[w] || hasDigit(w) {
			evidence++
		}
	}
	b.Evidence = math.Min(float64(evidence)*0.3, 1.5)

	connectors := 0
	for _, w := range words {
		if connectorWords[w] {
			connectors++
		}
	}
	for _, p := range connectorPhrases {
		connectors += strings.Count(padded, " "+p+" ")
	}
	b.Logic = math.Min(float64(connectors)*0.25, 1.0)

	if b.Sentences > 0 {
		avg := float64(b.Words) / float64(b.Sentences)
		b.Clarity = math.Max(0, 1-math.Abs(avg-idealLength)/idealLength)
	}

	_, vocab := classifyTopic(topic)
	seen := make(map[string]bool)
	for _, w := range words {
		if vocab[w] {
			seen[w] = true
		}
	}
	b.Relevance = math.Min(float64(len(seen))*0.25, 1.0)

	fallacies := 0
	for _, p := range fallacyPhrases {
		fallacies += strings.Count(padded, " "+p+" ")
	}
	b.Fallacy = math.Min(float64(fallacies)*0.5, 2.0)

	deviation := math.Abs(float64(arg.TimeTakenSeconds-pace)) / float64(pace)
	b.Pace = math.Min(deviation*0.5, 1.0)

	raw := baseScore + b.Development + b.Evidence + b.Logic + b.Clarity + b.Relevance - b.Fallacy - b.Pace
	b.Score = round2(clamp(raw, minScore, maxScore))

	strengths, improvements := notes(b)
	return models.ArgumentScore{
		Turn:         arg.TurnIndex,
		Role:         arg.SpeakerRole,
		Score:        b.Score,
		Rating:       LabelFor(b.Score),
		Feedback:     feedback(b),
		Strengths:    strengths,
		Improvements: improvements,
	}, b
}

// Score implements Scorer over the whole transcript.
func (h *Heuristic) Score(_ context.Context, req ScoreRequest) (*Payload, error) {
	p := &Payload{
		Overall: make(map[models.Role]float64),
		Source:  heuristicTag,
	}
	type agg struct {
		strengths    map[string]int
		improvements map[string]int
		best         *models.ArgumentScore
		count        int
	}
	per := map[models.Role]*agg{}
	for _, arg := range req.Transcript {
		score, _ := h.ScoreArgument(arg, req.Topic, req.Pace)
		p.PerArgument = append(p.PerArgument, score)
		p.Overall[score.Role] += score.Score

		a := per[score.Role]
		if a == nil {
			a = &agg{strengths: map[string]int{}, improvements: map[string]int{}}
			per[score.Role] = a
		}
		a.count++
		for _, s := range score.Strengths {
			a.strengths[s]++
		}
		for _, s := range score.Improvements {
			a.improvements[s]++
		}
		if a.best == nil || score.Score > a.best.Score {
			cp := score
			a.best = &cp
		}
	}
	for r, v := range p.Overall {
		p.Overall[r] = round2(v)
	}
	p.Winner = leader(p.Overall)

	for _, role := range models.Roles {
		a := per[role]
		rr := p.Review.For(role)
		if a == nil {
			rr.Summary = fmt.Sprintf("The %s side made no scored arguments.", roleName(role))
			rr.Improvements = []string{"Take every turn to build a case."}
			continue
		}
		rr.Strengths = topNotes(a.strengths, 3)
		rr.Improvements = topNotes(a.improvements, 3)
		rr.Summary = fmt.Sprintf("The %s side averaged %.2f over %d arguments.",
			roleName(role), round2(p.Overall[role]/float64(a.count)), a.count)
		p.Review.Highlights = append(p.Review.Highlights,
			fmt.Sprintf("Turn %d (%s) scored %.2f: %s.", a.best.Turn+1, role, a.best.Score, a.best.Rating))
		if len(rr.Improvements) > 0 {
			p.Review.Growth = append(p.Review.Growth, fmt.Sprintf("%s: %s", role, rr.Improvements[0]))
		}
	}
	if p.Winner == "tie" {
		p.Summary = "Heuristic scoring found the debate evenly matched."
	} else {
		p.Summary = fmt.Sprintf("Heuristic scoring favours the %s side.", p.Winner)
	}
	p.Review.Overall = p.Summary
	return p, nil
}

// LabelFor maps a 1-10 score to its rating label.
func LabelFor(score float64) string {
	switch {
	case score >= 8.5:
		return "Outstanding"
	case score >= 7:
		return "Strong"
	case score >= 5.5:
		return "Competent"
	case score >= 4:
		return "Developing"
	default:
		return "Needs Improvement"
	}
}

func notes(b Breakdown) (strengths, improvements []string) {
	if b.Development >= 1.0 {
		strengths = append(strengths, "Well developed argument.")
	} else {
		improvements = append(improvements, "Develop the argument in more depth.")
	}
	if b.Evidence >= 0.6 {
		strengths = append(strengths, "Supports claims with evidence.")
	} else {
		improvements = append(improvements, "Incorporate more evidence to reinforce claims.")
	}
	if b.Logic >= 0.5 {
		strengths = append(strengths, "Clear logical structure.")
	} else {
		improvements = append(improvements, "Connect points with explicit reasoning.")
	}
	if b.Relevance >= 0.5 {
		strengths = append(strengths, "Stays on topic.")
	} else {
		improvements = append(improvements, "Tie points back to the topic.")
	}
	if b.Fallacy > 0 {
		improvements = append(improvements, "Avoid sweeping generalisations and personal attacks.")
	}
	if b.Pace >= 0.5 {
		improvements = append(improvements, "Use the turn time more evenly.")
	}
	return strengths, improvements
}

func feedback(b Breakdown) string {
	if b.Words == 0 {
		return "No content was submitted for this turn."
	}
	return fmt.Sprintf("%d words in %d sentences; evidence %.2f, logic %.2f, relevance %.2f, penalties %.2f.",
		b.Words, b.Sentences, b.Evidence, b.Logic, b.Relevance, b.Fallacy+b.Pace)
}

func topNotes(counts map[string]int, n int) []string {
	out := make([]string, 0, len(counts))
	for k := range counts {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		if counts[out[i]] != counts[out[j]] {
			return counts[out[i]] > counts[out[j]]
		}
		return out[i] < out[j]
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func roleName(r models.Role) string {
	if r == models.Opponent {
		return "opposing"
	}
	return "proposing"
}

// leader returns the role with the strictly highest total, or "tie".
func leader(totals map[models.Role]float64) string {
	pro, hasPro := totals[models.Proponent]
	con, hasCon := totals[models.Opponent]
	switch {
	case !hasPro && !hasCon:
		return "tie"
	case hasPro && !hasCon:
		return models.Proponent.String()
	case hasCon && !hasPro:
		return models.Opponent.String()
	case pro > con:
		return models.Proponent.String()
	case con > pro:
		return models.Opponent.String()
	}
	return "tie"
}

func tokenize(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'' || r == '-')
	})
}

func countSentences(text string, words int) int {
	if words == 0 {
		return 0
	}
	n := 0
	for _, part := range strings.FieldsFunc(text, func(r rune) bool { return r == '.' || r == '!' || r == '?' }) {
		if strings.TrimSpace(part) != "" {
			n++
		}
	}
	if n == 0 {
		n = 1
	}
	return n
}

func hasDigit(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
