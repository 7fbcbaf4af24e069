package permission

import "testing"

func BenchmarkMatchesAll(b *testing.B) {
	set := Set{
		UserIDs:      IDList{1, 2, 3, 4, 5, 6, 7, 8},
		GroupClauses: Clauses{{10, 11, 12}, nil, {20, 21, 22, 23}, {Wildcard}},
	}
	groups := []int64{4, 12, 23}
	m := Matcher{Mode: ModeAll}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if !m.Matches(set, 7, groups) {
			b.Fatal("expected match")
		}
	}
}
