// Package results turns a revealed result set into a display-ready ranking.
package results

import (
	"sort"

	"github.com/dkeye/pocketscrum/internal/domain"
)

// Group is one card value with everyone who picked it.
type Group struct {
	Value   int
	Count   int
	Users   []string
	Winning bool
}

// Summary is the ranked view of one revealed round.
type Summary struct {
	Groups   []Group
	MaxCount int
	Total    int
}

// Aggregate groups selections by card value and orders the groups by
// descending count; ties keep first-encountered order from the original
// selection sequence. Every group tied for the maximum count is flagged
// winning, so a split round highlights all modal estimates equally.
func Aggregate(rs domain.ResultSet) Summary {
	index := make(map[int]int)
	groups := make([]Group, 0, len(rs.Selections))
	for _, sel := range rs.Selections {
		i, ok := index[sel.Card]
		if !ok {
			i = len(groups)
			index[sel.Card] = i
			groups = append(groups, Group{Value: sel.Card})
		}
		groups[i].Count++
		groups[i].Users = append(groups[i].Users, sel.UserName)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Count > groups[j].Count
	})

	maxCount := 0
	if len(groups) > 0 {
		maxCount = groups[0].Count
	}
	for i := range groups {
		groups[i].Winning = groups[i].Count == maxCount && maxCount > 0
	}
	return Summary{Groups: groups, MaxCount: maxCount, Total: rs.TotalVotes}
}
