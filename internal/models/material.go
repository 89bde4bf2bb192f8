package models

// Material is a prior argument retrieved as related context for judging.
type Material struct {
	SessionID  string  `json:"session_id"`
	Turn       int     `json:"turn"`
	Role       Role    `json:"role"`
	Speaker    string  `json:"speaker"`
	Content    string  `json:"content"`
	Similarity float64 `json:"similarity"`
}
