package utils

import "testing"

func TestMatchDigest_StableAcrossOrder(t *testing.T) {
	a := []MatchDigestTuple{
		{ParticipantID: "p1", Score1: 2, Score2: 1, State: "complete", WinnerID: "p1"},
		{ParticipantID: "p2", Score1: 0, Score2: 0, State: "open"},
	}
	b := []MatchDigestTuple{
		{ParticipantID: "p2", Score1: 0, Score2: 0, State: "open"},
		{ParticipantID: "p1", Score1: 2, Score2: 1, State: "complete", WinnerID: "p1"},
	}

	da := MatchDigest(a)
	db := MatchDigest(b)
	if da != db {
		t.Fatalf("digest depends on input order: %s != %s", da, db)
	}
}

func TestMatchDigest_ChangesOnScoreUpdate(t *testing.T) {
	before := []MatchDigestTuple{
		{ParticipantID: "p1", Score1: 1, Score2: 0, State: "open"},
	}
	after := []MatchDigestTuple{
		{ParticipantID: "p1", Score1: 2, Score2: 0, State: "complete", WinnerID: "p1"},
	}

	if MatchDigest(before) == MatchDigest(after) {
		t.Fatal("expected digest to change when match state changes")
	}
}

func TestMatchDigest_EmptyIsStable(t *testing.T) {
	if MatchDigest(nil) != MatchDigest([]MatchDigestTuple{}) {
		t.Fatal("expected nil and empty slices to digest identically")
	}
}

func TestHashString_Deterministic(t *testing.T) {
	if HashString("abc") != HashString("abc") {
		t.Fatal("expected deterministic hash for same input")
	}
	if HashString("abc") == HashString("abd") {
		t.Fatal("expected different hashes for different input")
	}
}
