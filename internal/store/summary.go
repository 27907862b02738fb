package store

import "context"

// Summary aggregates what a device has collected.
type Summary struct {
	HistoryCount      int            `json:"historyCount"`
	FavoritesCount    int            `json:"favoritesCount"`
	DanglingFavorites int            `json:"danglingFavorites"`
	Orders            map[string]int `json:"orders"`
	LatestTimestamp   int64          `json:"latestTimestamp,omitempty"`
}

// Summary counts history entries per taxonomic order and reports favorites
// whose id is no longer present in history.
func (s *Store) Summary(ctx context.Context) Summary {
	history := s.GetHistory(ctx)
	favorites := s.GetFavorites(ctx)

	summary := Summary{
		HistoryCount:   len(history),
		FavoritesCount: len(favorites),
		Orders:         make(map[string]int),
	}

	ids := make(map[string]struct{}, len(history))
	for _, r := range history {
		ids[r.ID] = struct{}{}
		summary.Orders[r.Order]++
		if r.Timestamp > summary.LatestTimestamp {
			summary.LatestTimestamp = r.Timestamp
		}
	}
	for _, f := range favorites {
		if _, ok := ids[f.ID]; !ok {
			summary.DanglingFavorites++
		}
	}
	return summary
}
