package extractor

import (
	"strings"
	"testing"
)

func chunk(field, content string, conf float64) Chunk {
	return Chunk{
		Content:       content,
		TargetSection: "organization", TargetSubsection: "fundamentals", TargetField: field,
		Summary: field, Confidence: conf,
	}
}

func kinds(changes []Change) []ChangeKind {
	out := make([]ChangeKind, len(changes))
	for i, c := range changes {
		out[i] = c.Kind
	}
	return out
}

func TestSummarizeChanges(t *testing.T) {
	base := strings.Repeat("x", 100)

	tests := []struct {
		name  string
		first []Chunk
		final []Chunk
		want  []ChangeKind
	}{
		{
			name:  "identical",
			first: []Chunk{chunk("stage", base, 0.8)},
			final: []Chunk{chunk("stage", base, 0.8)},
			want:  []ChangeKind{},
		},
		{
			name:  "added",
			first: []Chunk{chunk("stage", base, 0.8)},
			final: []Chunk{chunk("stage", base, 0.8), chunk("team_size", base, 0.8)},
			want:  []ChangeKind{ChangeAdded},
		},
		{
			name:  "20 percent growth is not improved",
			first: []Chunk{chunk("stage", base, 0.8)},
			final: []Chunk{chunk("stage", strings.Repeat("x", 120), 0.8)},
			want:  []ChangeKind{},
		},
		{
			name:  "over 20 percent growth is improved",
			first: []Chunk{chunk("stage", base, 0.8)},
			final: []Chunk{chunk("stage", strings.Repeat("x", 121), 0.8)},
			want:  []ChangeKind{ChangeImproved},
		},
		{
			name:  "small confidence move ignored",
			first: []Chunk{chunk("stage", base, 0.8)},
			final: []Chunk{chunk("stage", base, 0.89)},
			want:  []ChangeKind{},
		},
		{
			name:  "confidence adjusted down",
			first: []Chunk{chunk("stage", base, 0.8)},
			final: []Chunk{chunk("stage", base, 0.5)},
			want:  []ChangeKind{ChangeConfidenceAdjusted},
		},
		{
			name:  "improved and adjusted",
			first: []Chunk{chunk("stage", base, 0.5)},
			final: []Chunk{chunk("stage", base+base, 0.9)},
			want:  []ChangeKind{ChangeImproved, ChangeConfidenceAdjusted},
		},
		{
			name:  "two chunks merged into one",
			first: []Chunk{chunk("stage", base, 0.8), chunk("stage", base, 0.6)},
			final: []Chunk{chunk("stage", base+base, 0.8)},
			want:  []ChangeKind{ChangeConsolidated},
		},
		{
			name:  "removed chunk counts as consolidated",
			first: []Chunk{chunk("stage", base, 0.8), chunk("founded", base, 0.8)},
			final: []Chunk{chunk("stage", base, 0.8)},
			want:  []ChangeKind{ChangeConsolidated},
		},
		{
			name:  "key matching ignores case and padding",
			first: []Chunk{chunk("Stage ", base, 0.8)},
			final: []Chunk{chunk("stage", base, 0.8)},
			want:  []ChangeKind{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := kinds(SummarizeChanges(tt.first, tt.final))
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("got %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestSummarizeChanges_ConsolidatedCount(t *testing.T) {
	base := strings.Repeat("x", 50)
	first := []Chunk{chunk("stage", base, 0.8), chunk("stage", base, 0.8), chunk("stage", base, 0.8)}
	final := []Chunk{chunk("stage", base+base+base, 0.8), chunk("founded", base, 0.7)}

	changes := SummarizeChanges(first, final)

	// 3 first + 1 added - 2 final = 2 merged
	last := changes[len(changes)-1]
	if last.Kind != ChangeConsolidated || last.Count != 2 {
		t.Errorf("expected consolidated count 2, got %+v", last)
	}
}

func TestSummarizeChanges_DeterministicOrder(t *testing.T) {
	base := strings.Repeat("x", 10)
	final := []Chunk{chunk("team_size", base, 0.5), chunk("founded", base, 0.5), chunk("stage", base, 0.5)}

	for i := 0; i < 10; i++ {
		changes := SummarizeChanges(nil, final)
		if changes[0].Field != "founded" || changes[1].Field != "stage" || changes[2].Field != "team_size" {
			t.Fatalf("unexpected order: %+v", changes)
		}
	}
}
