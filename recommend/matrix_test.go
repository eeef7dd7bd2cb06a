package recommend

import (
	"testing"

	"github.com/rushteam/recserve/core"
)

func TestBuild(t *testing.T) {
	tests := []struct {
		name      string
		ratings   []core.Rating
		wantUsers []string
		wantItems []string
		wantCell  map[[2]string]float64 // (user, item) -> rating
	}{
		{
			name:      "empty input builds zero-dimension matrix",
			ratings:   nil,
			wantUsers: nil,
			wantItems: nil,
		},
		{
			name: "indexes assigned in first-seen order",
			ratings: []core.Rating{
				{UserID: "A", ItemID: "x", Rating: 5},
				{UserID: "A", ItemID: "y", Rating: 3},
				{UserID: "B", ItemID: "x", Rating: 4},
			},
			wantUsers: []string{"A", "B"},
			wantItems: []string{"x", "y"},
			wantCell: map[[2]string]float64{
				{"A", "x"}: 5,
				{"A", "y"}: 3,
				{"B", "x"}: 4,
				{"B", "y"}: 0,
			},
		},
		{
			name: "duplicate rating last write wins",
			ratings: []core.Rating{
				{UserID: "A", ItemID: "x", Rating: 2},
				{UserID: "A", ItemID: "x", Rating: 5},
			},
			wantUsers: []string{"A"},
			wantItems: []string{"x"},
			wantCell: map[[2]string]float64{
				{"A", "x"}: 5,
			},
		},
		{
			name: "non-positive ratings are skipped",
			ratings: []core.Rating{
				{UserID: "A", ItemID: "x", Rating: 0},
				{UserID: "B", ItemID: "y", Rating: -1},
				{UserID: "C", ItemID: "z", Rating: 4},
			},
			wantUsers: []string{"C"},
			wantItems: []string{"z"},
			wantCell: map[[2]string]float64{
				{"C", "z"}: 4,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Build(tt.ratings)

			if len(m.UserIDs) != len(tt.wantUsers) {
				t.Fatalf("users = %v, want %v", m.UserIDs, tt.wantUsers)
			}
			for i, u := range tt.wantUsers {
				if m.UserIDs[i] != u || m.Users[u] != i {
					t.Errorf("user index mismatch: got %v / %v", m.UserIDs, m.Users)
				}
			}
			if len(m.ItemIDs) != len(tt.wantItems) {
				t.Fatalf("items = %v, want %v", m.ItemIDs, tt.wantItems)
			}
			for i, it := range tt.wantItems {
				if m.ItemIDs[i] != it || m.Items[it] != i {
					t.Errorf("item index mismatch: got %v / %v", m.ItemIDs, m.Items)
				}
			}
			for cell, want := range tt.wantCell {
				got := m.Rows[m.Users[cell[0]]][m.Items[cell[1]]]
				if got != want {
					t.Errorf("cell (%s,%s) = %v, want %v", cell[0], cell[1], got, want)
				}
			}
		})
	}
}
