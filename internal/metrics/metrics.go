package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RepliesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "evforum_replies_created_total",
		Help: "Replies accepted by the reply engine.",
	})
	VotesCast = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "evforum_votes_cast_total",
		Help: "Votes cast, by votable type and vote type.",
	}, []string{"votable_type", "vote_type"})
	ModerationActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "evforum_moderation_actions_total",
		Help: "Moderation actions attempted, by action and outcome.",
	}, []string{"action", "outcome"})
	PresenceOnline = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "evforum_presence_online",
		Help: "Users currently considered online by the presence tracker.",
	})
	CounterDrift = promauto.NewCounter(prometheus.CounterOpts{
		Name: "evforum_counter_drift_total",
		Help: "Cached vote counters found out of sync during reconciliation.",
	})
)
