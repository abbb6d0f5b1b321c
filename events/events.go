package events

import (
	"github.com/ethereum/go-ethereum/event"
	"github.com/halocircle/guardd/reward"
	"github.com/halocircle/guardd/types/fix"
	"github.com/halocircle/guardd/types/motion"
)

// SamplePublished is emitted for every motion sample successfully merged
// into a user's current-location record. Circle watchers (websocket
// broadcast) ride this feed.
type SamplePublished struct {
	User   fix.UserID
	Sample motion.Sample
}

var SamplePublishedFeed = event.FeedOf[SamplePublished]{}

// RewardUpdated is emitted after a reward observation persists. The state is
// a copy; subscribers must not write through it.
type RewardUpdated struct {
	User  fix.UserID
	State reward.State
}

var RewardUpdatedFeed = event.FeedOf[RewardUpdated]{}
