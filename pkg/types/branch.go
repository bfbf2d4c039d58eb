package types

// DefaultBranchID is the id of the synthetic fallback branch appended to
// audience splits for users that match no crowd.
const DefaultBranchID = "default"

// Branch is one output of a split node. Branches are derived from the node
// configuration on every configuration pass; Order and ColorIndex are stable
// for a given configuration and drive preview line color and hint index.
type Branch struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	SourceCrowdID string  `json:"crowdId,omitempty"`
	Order         int     `json:"order"`
	ColorIndex    int     `json:"colorIndex"`
	Condition     string  `json:"condition,omitempty"`
	Ratio         float64 `json:"ratio,omitempty"`
}

// BranchIDs returns the ids of bs in order.
func BranchIDs(bs []Branch) []string {
	ids := make([]string, len(bs))
	for i, b := range bs {
		ids[i] = b.ID
	}
	return ids
}
