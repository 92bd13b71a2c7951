package domain

// Outcome is the terminal state of a routed query.
type Outcome string

const (
	// OutcomeAnswered means one of the stores met the confidence threshold.
	OutcomeAnswered Outcome = "answered"
	// OutcomeEscalated means neither store met the threshold. This is a normal
	// result, not a failure: the caller must surface a low-confidence outcome.
	OutcomeEscalated Outcome = "escalated"
)

// RoutingDecision records how a query was routed between the two stores.
type RoutingDecision struct {
	Outcome           Outcome `json:"outcome"`
	Source            Source  `json:"source,omitempty"` // empty when escalated
	FallbackTriggered bool    `json:"fallback_triggered"`
	PrimaryTopScore   float64 `json:"primary_top_score"`
	SecondaryTopScore float64 `json:"secondary_top_score,omitempty"`
	SecondarySearched bool    `json:"secondary_searched"`
}

// Confidence is the top similarity of the chosen store, or the best score seen
// when the query escalated.
func (d RoutingDecision) Confidence() float64 {
	switch d.Source {
	case SourcePrimary:
		return d.PrimaryTopScore
	case SourceSecondary:
		return d.SecondaryTopScore
	}
	if d.SecondaryTopScore > d.PrimaryTopScore {
		return d.SecondaryTopScore
	}
	return d.PrimaryTopScore
}
