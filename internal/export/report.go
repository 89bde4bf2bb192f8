// Package export renders finished debates as plain-text reports and archives
// them to object storage.
package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/letsee/debate-backend/internal/models"
)

const wrapWidth = 100

// ContentType is the MIME type of a rendered report.
const ContentType = "text/plain; charset=utf-8"

// Filename is the download name of a session's report.
func Filename(sessionID string) string {
	return "debate-" + sessionID + ".txt"
}

// Report renders the session snapshot, briefing, transcript and judging
// sections. A nil result renders the judging section as pending.
func Report(s *models.Session) string {
	var b strings.Builder
	topic := s.ChosenTopic
	if topic == "" {
		topic = "Awaiting topic"
	}

	heading(&b, "DEBATE CLUB REPORT")
	fmt.Fprintf(&b, "Topic: %s\n", topic)
	fmt.Fprintf(&b, "Session %s · Invite code %s\n\n", s.ID, s.InviteCode)

	heading(&b, "Session snapshot")
	mode := string(s.Metadata.Mode)
	if mode == "" {
		mode = string(models.ModeInvite)
	}
	fmt.Fprintf(&b, "Mode: %s | Topic refreshes: %d\n", mode, s.TopicRefreshes)
	fmt.Fprintf(&b, "Created: %s\n", s.CreatedAt.UTC().Format("January 02, 2006 15:04 UTC"))
	fmt.Fprintf(&b, "Max turns: %d · Per-turn limit: %ds\n", s.MaxTurns, s.PerTurnLimit)
	fmt.Fprintf(&b, "Total elapsed: %ds\n", s.TotalElapsedSeconds)
	if s.Metadata.EndReason != "" {
		fmt.Fprintf(&b, "Ended: %s\n", s.Metadata.EndReason)
	}
	b.WriteString("\n")

	heading(&b, "Participants")
	for _, r := range models.Roles {
		p := s.Participants[r]
		if p == nil {
			fmt.Fprintf(&b, "%s: -\n", roleLabel(r))
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n", roleLabel(r), p.Name)
		fmt.Fprintf(&b, "    Time active: %ds | Warnings: %d\n", p.TimeSpentSeconds, p.Warnings)
	}
	b.WriteString("\n")

	heading(&b, "Transcript")
	if len(s.Transcript) == 0 {
		b.WriteString("No turns were recorded for this session.\n")
	}
	for _, a := range s.Transcript {
		fmt.Fprintf(&b, "Turn %d - %s (%s)\n", a.TurnIndex+1, roleLabel(a.SpeakerRole), a.SpeakerName)
		paragraph(&b, a.Content, "    ")
		if a.TimeTakenSeconds > 0 {
			fmt.Fprintf(&b, "    Time used: %ds\n", a.TimeTakenSeconds)
		}
		b.WriteString("\n")
	}

	heading(&b, "Judging")
	writeResult(&b, s)
	return b.String()
}

func writeResult(b *strings.Builder, s *models.Session) {
	res := s.Result
	if res == nil {
		b.WriteString("Judging has not completed for this session.\n")
		return
	}
	winner := "Tie"
	if res.WinnerRole != nil {
		winner = roleLabel(*res.WinnerRole)
	}
	fmt.Fprintf(b, "Winner: %s\n", winner)
	fmt.Fprintf(b, "Flagged for review: %s\n", yesNo(res.FlaggedForReview))
	if res.Rationale != "" {
		paragraph(b, res.Rationale, "")
	}

	if len(res.OverallScore) > 0 {
		b.WriteString("\nOverall scores\n")
		for _, r := range models.Roles {
			score, ok := res.OverallScore[r]
			if !ok {
				continue
			}
			name := roleLabel(r)
			if p := s.Participants[r]; p != nil {
				name = p.Name
			}
			fmt.Fprintf(b, "    %s - %.2f\n", name, score)
		}
	}

	if len(res.PerArgumentScores) > 0 {
		b.WriteString("\nPer-turn assessment\n")
		for _, sc := range res.PerArgumentScores {
			fmt.Fprintf(b, "    Turn %d · %s · Score %.2f (%s)\n", sc.Turn+1, sc.Role, sc.Score, sc.Rating)
			if sc.Feedback != "" {
				paragraph(b, sc.Feedback, "        ")
			}
		}
	}

	b.WriteString("\nJudge review\n")
	for _, r := range models.Roles {
		rr := res.Review.For(r)
		if len(rr.Strengths) == 0 && len(rr.Improvements) == 0 && rr.Summary == "" {
			continue
		}
		name := roleLabel(r)
		if p := s.Participants[r]; p != nil {
			name = p.Name
		}
		fmt.Fprintf(b, "    %s - %s\n", roleLabel(r), name)
		bullets(b, "Strengths", rr.Strengths)
		bullets(b, "Improvements", rr.Improvements)
		if rr.Summary != "" {
			paragraph(b, "Summary: "+rr.Summary, "        ")
		}
	}
	if res.Review.Overall != "" {
		b.WriteString("    Overall assessment:\n")
		paragraph(b, res.Review.Overall, "        ")
	}
	bullets(b, "Highlights", res.Review.Highlights)
	bullets(b, "Growth areas", res.Review.Growth)
}

// Stamp is the trailer appended to archived copies.
func Stamp(at time.Time) string {
	return fmt.Sprintf("\nGenerated %s\n", at.UTC().Format(time.RFC3339))
}

func heading(b *strings.Builder, title string) {
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", len([]rune(title))))
	b.WriteString("\n")
}

func bullets(b *strings.Builder, label string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "        %s:\n", label)
	for _, item := range items {
		paragraph(b, "- "+item, "          ")
	}
}

// paragraph writes text word-wrapped at wrapWidth with every line indented.
func paragraph(b *strings.Builder, text, indent string) {
	for _, line := range wrap(text, wrapWidth-len(indent)) {
		b.WriteString(indent)
		b.WriteString(line)
		b.WriteString("\n")
	}
}

func wrap(text string, width int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	var lines []string
	line := words[0]
	for _, w := range words[1:] {
		if len([]rune(line))+1+len([]rune(w)) > width {
			lines = append(lines, line)
			line = w
			continue
		}
		line += " " + w
	}
	return append(lines, line)
}

func roleLabel(r models.Role) string {
	if r == models.Opponent {
		return "Opponent"
	}
	return "Proponent"
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}
