package services

import (
	"testing"

	"evforum/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQualityOf(t *testing.T) {
	cases := []struct {
		up, down int
		want     string
	}{
		{0, 0, QualityUnrated},
		{9, 1, QualityExcellent},
		{5, 0, QualityGood}, // 100% but under ten votes
		{7, 3, QualityGood},
		{5, 5, QualityMixed}, // even split but too few votes for controversial
		{10, 10, QualityControversial},
		{11, 9, QualityControversial},
		{14, 6, QualityGood}, // 70%, clear of the controversial band
		{12, 8, QualityMixed},
		{3, 7, QualityPoor},
		{0, 5, QualityPoor},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, QualityOf(tc.up, tc.down), "QualityOf(%d, %d)", tc.up, tc.down)
	}
}

func TestCastVoteSwitchKeepsSingleRow(t *testing.T) {
	g := testDB(t)
	f := seedForum(t, g)
	replies := NewReplyService(g)
	votes := NewVoteService(g)

	reply, err := replies.CreateReply(f.thread.ID, f.member.ID, "spark", nil)
	require.NoError(t, err)

	require.NoError(t, votes.CastVote(models.VotableReply, reply.ID, f.other.ID, models.VoteUp))
	require.NoError(t, votes.CastVote(models.VotableReply, reply.ID, f.other.ID, models.VoteDown))

	var stored models.Reply
	require.NoError(t, g.First(&stored, reply.ID).Error)
	assert.Equal(t, 0, stored.Upvotes)
	assert.Equal(t, 1, stored.Downvotes)

	var rows int64
	require.NoError(t, g.Model(&models.Vote{}).
		Where("voter_id = ? AND votable_type = ? AND votable_id = ?", f.other.ID, models.VotableReply, reply.ID).
		Count(&rows).Error)
	assert.Equal(t, int64(1), rows)
}

func TestCastVoteSwitchBackSwapsBothBuckets(t *testing.T) {
	g := testDB(t)
	f := seedForum(t, g)
	votes := NewVoteService(g)

	require.NoError(t, votes.CastVote(models.VotableThread, f.thread.ID, f.other.ID, models.VoteUp))
	require.NoError(t, votes.CastVote(models.VotableThread, f.thread.ID, f.other.ID, models.VoteDown))

	thread := f.reloadThread(t)
	assert.Equal(t, 0, thread.Upvotes)
	assert.Equal(t, 1, thread.Downvotes)

	// And back again; each switch must drain the old bucket, not the new.
	require.NoError(t, votes.CastVote(models.VotableThread, f.thread.ID, f.other.ID, models.VoteUp))

	thread = f.reloadThread(t)
	assert.Equal(t, 1, thread.Upvotes)
	assert.Equal(t, 0, thread.Downvotes)
}

func TestCastVoteIdempotentRepeat(t *testing.T) {
	g := testDB(t)
	f := seedForum(t, g)
	votes := NewVoteService(g)

	for i := 0; i < 3; i++ {
		require.NoError(t, votes.CastVote(models.VotableThread, f.thread.ID, f.other.ID, models.VoteUp))
	}

	thread := f.reloadThread(t)
	assert.Equal(t, 1, thread.Upvotes)
	assert.Equal(t, 0, thread.Downvotes)
}

func TestRetractVote(t *testing.T) {
	g := testDB(t)
	f := seedForum(t, g)
	votes := NewVoteService(g)

	require.NoError(t, votes.CastVote(models.VotableThread, f.thread.ID, f.other.ID, models.VoteUp))
	require.NoError(t, votes.RetractVote(models.VotableThread, f.thread.ID, f.other.ID))

	thread := f.reloadThread(t)
	assert.Equal(t, 0, thread.Upvotes)

	// Retracting a vote that does not exist is a no-op.
	require.NoError(t, votes.RetractVote(models.VotableThread, f.thread.ID, f.other.ID))
	assert.Equal(t, 0, f.reloadThread(t).Upvotes)
}

func TestCastVoteOnMissingOrDeletedTarget(t *testing.T) {
	g := testDB(t)
	f := seedForum(t, g)
	votes := NewVoteService(g)

	err := votes.CastVote(models.VotableThread, 99999, f.member.ID, models.VoteUp)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, g.Model(&f.thread).Update("is_deleted", true).Error)
	err = votes.CastVote(models.VotableThread, f.thread.ID, f.member.ID, models.VoteUp)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReconcileMatchesRowsAfterAnySequence(t *testing.T) {
	g := testDB(t)
	f := seedForum(t, g)
	votes := NewVoteService(g)

	voters := make([]models.User, 6)
	for i := range voters {
		voters[i] = models.User{
			Username: "voter" + string(rune('a'+i)),
			Email:    "voter" + string(rune('a'+i)) + "@example.com",
			Password: "x",
		}
		require.NoError(t, g.Create(&voters[i]).Error)
	}

	// A messy sequence: casts, repeats, switches, retractions.
	require.NoError(t, votes.CastVote(models.VotableThread, f.thread.ID, voters[0].ID, models.VoteUp))
	require.NoError(t, votes.CastVote(models.VotableThread, f.thread.ID, voters[1].ID, models.VoteUp))
	require.NoError(t, votes.CastVote(models.VotableThread, f.thread.ID, voters[1].ID, models.VoteUp))
	require.NoError(t, votes.CastVote(models.VotableThread, f.thread.ID, voters[2].ID, models.VoteDown))
	require.NoError(t, votes.CastVote(models.VotableThread, f.thread.ID, voters[2].ID, models.VoteUp))
	require.NoError(t, votes.CastVote(models.VotableThread, f.thread.ID, voters[3].ID, models.VoteDown))
	require.NoError(t, votes.RetractVote(models.VotableThread, f.thread.ID, voters[0].ID))
	require.NoError(t, votes.CastVote(models.VotableThread, f.thread.ID, voters[4].ID, models.VoteDown))
	require.NoError(t, votes.CastVote(models.VotableThread, f.thread.ID, voters[5].ID, models.VoteUp))
	require.NoError(t, votes.RetractVote(models.VotableThread, f.thread.ID, voters[5].ID))

	report, err := votes.Reconcile(models.VotableThread, f.thread.ID)
	require.NoError(t, err)
	assert.False(t, report.Drifted, "cached counters drifted from the vote rows")
	assert.Equal(t, 2, report.CountedUpvotes)   // voters 1 and 2
	assert.Equal(t, 2, report.CountedDownvotes) // voters 3 and 4
}

func TestReconcileRepairsDrift(t *testing.T) {
	g := testDB(t)
	f := seedForum(t, g)
	votes := NewVoteService(g)

	require.NoError(t, votes.CastVote(models.VotableThread, f.thread.ID, f.other.ID, models.VoteUp))
	// Corrupt the cached counter behind the aggregator's back.
	require.NoError(t, g.Model(&f.thread).Update("upvotes", 7).Error)

	report, err := votes.Reconcile(models.VotableThread, f.thread.ID)
	require.NoError(t, err)
	assert.True(t, report.Drifted)
	assert.Equal(t, 1, f.reloadThread(t).Upvotes)
}
