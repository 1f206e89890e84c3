package queue

const (
	TypeAffectAnalyze = "affect:analyze"
)

// AffectAnalyzePayload identifies the user whose recent messages the
// worker should re-score.
type AffectAnalyzePayload struct {
	TenantID string `json:"tenant_id"`
	UserID   string `json:"user_id"`
}
