// Package cache implements the content cache store (spec component C1):
// a typed key/blob cache with TTL, hit/miss statistics, and invalidation
// primitives, backed by an embedded relational store.
//
// Grounded on the teacher's cache-manager/service.go (L1Cache + RequestCoalescer
// shape) and invalidation/audit.go (sqldb-backed persistent store pattern),
// generalized from a generic byte-blob KV cache into a typed, tournament-scoped
// one with version extraction and stale-while-revalidate semantics.
package cache

import (
	"encoding/json"
	"time"
)

// ExtractVersion derives a version identifier from a decoded payload so
// mutating callers can detect concurrent changes.
//
// Order of attempts:
//  1. top-level "updated_at" or "updatedAt" string field.
//  2. "timestamps.updated_at" nested field.
//  3. if payload is an array, the maximum of the above across elements.
//  4. otherwise, the current time (caller-supplied "now").
func ExtractVersion(payload json.RawMessage, now time.Time) string {
	if v := versionFromObject(payload); v != "" {
		return v
	}
	if v := versionFromArray(payload, now); v != "" {
		return v
	}
	return now.UTC().Format(time.RFC3339Nano)
}

func versionFromObject(payload json.RawMessage) string {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(payload, &obj); err != nil {
		return ""
	}
	if v := stringField(obj, "updated_at"); v != "" {
		return v
	}
	if v := stringField(obj, "updatedAt"); v != "" {
		return v
	}
	if raw, ok := obj["timestamps"]; ok {
		var nested map[string]json.RawMessage
		if err := json.Unmarshal(raw, &nested); err == nil {
			if v := stringField(nested, "updated_at"); v != "" {
				return v
			}
		}
	}
	return ""
}

func versionFromArray(payload json.RawMessage, now time.Time) string {
	var items []json.RawMessage
	if err := json.Unmarshal(payload, &items); err != nil || len(items) == 0 {
		return ""
	}
	var max time.Time
	found := false
	for _, item := range items {
		v := versionFromObject(item)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			continue
		}
		if !found || t.After(max) {
			max = t
			found = true
		}
	}
	if !found {
		return ""
	}
	return max.UTC().Format(time.RFC3339Nano)
}

func stringField(obj map[string]json.RawMessage, key string) string {
	raw, ok := obj[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}
