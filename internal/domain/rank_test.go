package domain

import (
	"math"
	"testing"
)

func TestRankFor(t *testing.T) {
	tests := []struct {
		score int
		want  Rank
	}{
		{math.MinInt, RankE},
		{-25, RankE},
		{0, RankE},
		{100, RankE},
		{499, RankE},
		{500, RankD},
		{999, RankD},
		{1000, RankC},
		{2499, RankC},
		{2500, RankB},
		{4999, RankB},
		{5000, RankA},
		{9999, RankA},
		{10000, RankS},
		{math.MaxInt, RankS},
	}

	for _, tt := range tests {
		if got := RankFor(tt.score); got != tt.want {
			t.Errorf("RankFor(%d) = %q, want %q", tt.score, got, tt.want)
		}
	}
}

func TestRankFor_Monotonic(t *testing.T) {
	prev := RankFor(-1000)
	for s := -1000; s <= 12000; s += 7 {
		got := RankFor(s)
		if got.Less(prev) {
			t.Fatalf("RankFor(%d) = %q is lower than RankFor(%d) = %q", s, got, s-7, prev)
		}
		prev = got
	}
}

func TestRank_Level(t *testing.T) {
	for i, r := range Ranks() {
		if r.Level() != i {
			t.Errorf("%q.Level() = %d, want %d", r, r.Level(), i)
		}
		if !r.IsValid() {
			t.Errorf("%q.IsValid() = false", r)
		}
	}

	if Rank("Z").IsValid() {
		t.Error("Rank(Z) should be invalid")
	}
	if !RankE.Less(RankS) {
		t.Error("E should be less than S")
	}
	if RankA.Less(RankA) {
		t.Error("A should not be less than itself")
	}
}

func TestNextRank(t *testing.T) {
	tests := []struct {
		score     int
		wantRank  Rank
		wantScore int
		wantOK    bool
	}{
		{-10, RankD, 500, true},
		{0, RankD, 500, true},
		{499, RankD, 500, true},
		{500, RankC, 1000, true},
		{2500, RankA, 5000, true},
		{9999, RankS, 10000, true},
		{10000, "", 0, false},
	}

	for _, tt := range tests {
		next, threshold, ok := NextRank(tt.score)
		if next != tt.wantRank || threshold != tt.wantScore || ok != tt.wantOK {
			t.Errorf("NextRank(%d) = %q, %d, %v; want %q, %d, %v",
				tt.score, next, threshold, ok, tt.wantRank, tt.wantScore, tt.wantOK)
		}
	}
}
