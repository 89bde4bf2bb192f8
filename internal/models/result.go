package models

// ArgumentScore is the judged score and feedback for one transcript turn.
type ArgumentScore struct {
	Turn         int      `json:"turn"`
	Role         Role     `json:"role"`
	Score        float64  `json:"score"`
	Rating       string   `json:"rating"`
	Feedback     string   `json:"feedback"`
	Strengths    []string `json:"strengths"`
	Improvements []string `json:"improvements"`
}

// RoleReview is the qualitative review of one debater.
type RoleReview struct {
	Strengths    []string `json:"strengths"`
	Improvements []string `json:"improvements"`
	Summary      string   `json:"summary"`
}

// Review is the structured qualitative review attached to a result.
type Review struct {
	Pro        RoleReview `json:"pro"`
	Con        RoleReview `json:"con"`
	Overall    string     `json:"overall"`
	Highlights []string   `json:"highlights"`
	Growth     []string   `json:"growth"`
}

// For returns the review of role.
func (r *Review) For(role Role) *RoleReview {
	if role == Opponent {
		return &r.Con
	}
	return &r.Pro
}

// SessionResult is produced once per session when it finishes.
// WinnerRole is nil for a tie.
type SessionResult struct {
	WinnerRole        *Role            `json:"winner_role"`
	OverallScore      map[Role]float64 `json:"overall"`
	PerArgumentScores []ArgumentScore  `json:"per_argument"`
	Rationale         string           `json:"rationale"`
	FlaggedForReview  bool             `json:"flagged_for_review"`
	Review            Review           `json:"review"`
}

// Winner returns "pro", "con" or "tie".
func (r *SessionResult) Winner() string {
	if r == nil || r.WinnerRole == nil {
		return "tie"
	}
	return r.WinnerRole.String()
}

// Clone returns a deep copy.
func (r *SessionResult) Clone() *SessionResult {
	if r == nil {
		return nil
	}
	out := *r
	if r.WinnerRole != nil {
		w := *r.WinnerRole
		out.WinnerRole = &w
	}
	if r.OverallScore != nil {
		out.OverallScore = make(map[Role]float64, len(r.OverallScore))
		for k, v := range r.OverallScore {
			out.OverallScore[k] = v
		}
	}
	out.PerArgumentScores = make([]ArgumentScore, len(r.PerArgumentScores))
	for i, s := range r.PerArgumentScores {
		s.Strengths = append([]string(nil), s.Strengths...)
		s.Improvements = append([]string(nil), s.Improvements...)
		out.PerArgumentScores[i] = s
	}
	out.Review = r.Review.clone()
	return &out
}

func (r Review) clone() Review {
	out := r
	out.Pro = r.Pro.clone()
	out.Con = r.Con.clone()
	out.Highlights = append([]string(nil), r.Highlights...)
	out.Growth = append([]string(nil), r.Growth...)
	return out
}

func (r RoleReview) clone() RoleReview {
	out := r
	out.Strengths = append([]string(nil), r.Strengths...)
	out.Improvements = append([]string(nil), r.Improvements...)
	return out
}
