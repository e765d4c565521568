package entities

import "testing"

func TestCanTransitionTo(t *testing.T) {
	cases := []struct {
		from    ElectionStatus
		to      ElectionStatus
		allowed bool
	}{
		{ElectionStatusSetup, ElectionStatusActive, true},
		{ElectionStatusActive, ElectionStatusClosed, true},
		{ElectionStatusSetup, ElectionStatusClosed, false},
		{ElectionStatusActive, ElectionStatusSetup, false},
		{ElectionStatusClosed, ElectionStatusActive, false},
		{ElectionStatusClosed, ElectionStatusSetup, false},
	}
	for _, tc := range cases {
		election := Election{Status: tc.from}
		if got := election.CanTransitionTo(tc.to); got != tc.allowed {
			t.Fatalf("%s -> %s: expected %v, got %v", tc.from, tc.to, tc.allowed, got)
		}
	}
}

func TestContests(t *testing.T) {
	election := Election{Positions: []Position{"President", "Secretary"}}
	if !election.Contests("President") {
		t.Fatalf("expected President to be contested")
	}
	if election.Contests("Chancellor") {
		t.Fatalf("expected Chancellor to be uncontested")
	}
}

func TestHasVoted(t *testing.T) {
	voter := Voter{VoterID: "voter-1", VotedPositions: []Position{"President"}}
	if !voter.HasVoted("President") {
		t.Fatalf("expected President to be spent")
	}
	if voter.HasVoted("Secretary") {
		t.Fatalf("expected Secretary to be available")
	}
}
