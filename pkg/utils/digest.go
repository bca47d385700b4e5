// Package utils provides hashing helpers shared across the tournament data
// access core.
//
// This file implements the deterministic match digest the poller (C5) uses
// to decide whether a broadcast is warranted (spec.md §4.5, §8 "Digest
// stability"). It adapts the teacher's FNV-1a consistent-hash-ring hashing
// primitive (pkg/utils/hash.go in the source distributed-cache project) into
// a plain canonical-tuple digest: this core is single-process (spec.md §5),
// so there is no ring to shard across, only a need for a stable fingerprint
// over match state.
package utils

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strconv"
	"strings"
)

// MatchDigestTuple is the canonical projection of one match used for digest
// computation (spec.md §4.5 step 3).
type MatchDigestTuple struct {
	ParticipantID string
	Score1        int
	Score2        int
	State         string
	WinnerID      string
	StationID     string
	UnderwayAt    int64 // unix seconds, 0 if unset
}

// MatchDigest computes a stable hash over a set of match tuples. Tuples are
// sorted by ParticipantID first, then by the remaining fields, so that
// digest equality depends only on
// match content, never on fetch/iteration order (spec.md §8: "the same match
// set produces the same digest across runs").
//
// Complexity: O(n log n) for the sort, O(n) for hashing.
func MatchDigest(tuples []MatchDigestTuple) string {
	sorted := make([]MatchDigestTuple, len(tuples))
	copy(sorted, tuples)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.ParticipantID != b.ParticipantID {
			return a.ParticipantID < b.ParticipantID
		}
		if a.Score1 != b.Score1 {
			return a.Score1 < b.Score1
		}
		if a.Score2 != b.Score2 {
			return a.Score2 < b.Score2
		}
		if a.State != b.State {
			return a.State < b.State
		}
		if a.WinnerID != b.WinnerID {
			return a.WinnerID < b.WinnerID
		}
		if a.StationID != b.StationID {
			return a.StationID < b.StationID
		}
		return a.UnderwayAt < b.UnderwayAt
	})

	h := fnv.New64a()
	for _, tup := range sorted {
		h.Write([]byte(tup.ParticipantID))
		h.Write([]byte{0})
		h.Write([]byte(strconv.Itoa(tup.Score1)))
		h.Write([]byte{0})
		h.Write([]byte(strconv.Itoa(tup.Score2)))
		h.Write([]byte{0})
		h.Write([]byte(tup.State))
		h.Write([]byte{0})
		h.Write([]byte(tup.WinnerID))
		h.Write([]byte{0})
		h.Write([]byte(tup.StationID))
		h.Write([]byte{0})
		h.Write([]byte(strconv.FormatInt(tup.UnderwayAt, 10)))
		h.Write([]byte{1}) // tuple separator
	}

	return fmt.Sprintf("%016x", h.Sum64())
}

// HashString computes the FNV-1a 64-bit hash of a single string, a short
// fixed-width fingerprint of a key.
func HashString(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}

// JoinKey builds a composite cache/digest key from parts, using a separator
// that cannot appear unescaped in a tournament/match identifier.
func JoinKey(parts ...string) string {
	return strings.Join(parts, "\x1f")
}
