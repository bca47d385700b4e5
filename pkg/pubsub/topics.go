// Package pubsub provides topic names and event type definitions for the
// in-process event flow between the match poller (C5) and the broadcast hub
// (C6). The core assumes a single authoritative process (spec.md §5), so
// these topics exist to decouple "a delta was detected" from "fan it out to
// clients", not to coordinate across replicas.
//
// Topic Naming Convention:
//   - matches.updated: a poller tick detected a new match digest
//   - tournament.lifecycle: a mutation dispatcher lifecycle action completed
//
// Design Notes:
//   - Topics are defined as constants to avoid typos and enable compile-time checks.
//   - Version field in events enables schema evolution without breaking consumers.
package pubsub

// Topic name constants. No Encore pubsub.Topic is declared for them: each
// event is handed over by a direct call that appcore wires up, and these
// names are not referenced outside this package.
const (
	// TopicMatchesUpdated names the event the match poller emits when it
	// detects a digest change for a tournament's matches.
	// Event type: MatchesUpdatedEvent
	// Producer: poller (its Publisher hook)
	// Consumer: broadcast.Service.Publish
	TopicMatchesUpdated = "matches.updated"

	// TopicTournamentLifecycle names the event emitted when a lifecycle
	// mutation (start/reset/complete/delete) completes successfully.
	// Event type: TournamentLifecycleEvent
	// Producer: mutation
	// Consumer: broadcast.Service.PublishLifecycle (the ratecontrol
	// re-check is a separate ScheduleRecheck call by mutation)
	TopicTournamentLifecycle = "tournament.lifecycle"
)

// AllTopics returns all defined topic names. Useful for validation, testing,
// and administrative tools.
func AllTopics() []string {
	return []string{
		TopicMatchesUpdated,
		TopicTournamentLifecycle,
	}
}

// IsValidTopic checks if the given topic name is recognized.
func IsValidTopic(topic string) bool {
	for _, t := range AllTopics() {
		if t == topic {
			return true
		}
	}
	return false
}
