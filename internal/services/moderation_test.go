package services

import (
	"testing"

	"evforum/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newModeration(g *fixture) (*ModerationService, *ReplyService) {
	replies := NewReplyService(g.db)
	return NewModerationService(g.db, replies), replies
}

func TestApplyFlagRequiresModerator(t *testing.T) {
	g := testDB(t)
	f := seedForum(t, g)
	moderation, _ := newModeration(f)

	_, err := moderation.ApplyFlag(models.VotableThread, f.thread.ID, FlagPinned, true, &f.member, "")
	assert.ErrorIs(t, err, ErrForbidden)

	// The denied attempt still lands in the audit log.
	var entries []models.ModerationLogEntry
	require.NoError(t, g.Find(&entries).Error)
	require.Len(t, entries, 1)
	assert.Equal(t, models.ActionPin, entries[0].ActionType)
	assert.False(t, entries[0].Succeeded)
}

func TestApplyFlagPinAndAudit(t *testing.T) {
	g := testDB(t)
	f := seedForum(t, g)
	moderation, _ := newModeration(f)

	summary, err := moderation.ApplyFlag(models.VotableThread, f.thread.ID, FlagPinned, true, &f.moderator, "sticky for the week")
	require.NoError(t, err)
	assert.True(t, summary.IsPinned)
	assert.True(t, f.reloadThread(t).IsPinned)

	var entry models.ModerationLogEntry
	require.NoError(t, g.First(&entry).Error)
	assert.Equal(t, models.ActionPin, entry.ActionType)
	assert.Equal(t, f.moderator.ID, entry.AdminID)
	assert.Equal(t, "sticky for the week", entry.Reason)
	assert.True(t, entry.Succeeded)
	assert.NotEmpty(t, entry.ID)
}

func TestFlagsAreIndependentBooleans(t *testing.T) {
	g := testDB(t)
	f := seedForum(t, g)
	moderation, _ := newModeration(f)

	for _, flag := range []string{FlagPinned, FlagLocked, FlagDeleted} {
		_, err := moderation.ApplyFlag(models.VotableThread, f.thread.ID, flag, true, &f.moderator, "")
		require.NoError(t, err)
	}

	thread := f.reloadThread(t)
	assert.True(t, thread.IsPinned)
	assert.True(t, thread.IsLocked)
	assert.True(t, thread.IsDeleted)
}

func TestDeleteThreadCascadesVisibilityNotStorage(t *testing.T) {
	g := testDB(t)
	f := seedForum(t, g)
	moderation, replies := newModeration(f)
	threads := NewThreadService(g)

	reply, err := replies.CreateReply(f.thread.ID, f.other.ID, "still here underneath", nil)
	require.NoError(t, err)

	_, err = moderation.ApplyFlag(models.VotableThread, f.thread.ID, FlagDeleted, true, &f.moderator, "spam wave")
	require.NoError(t, err)

	// Members can no longer reach the thread or its replies.
	_, err = threads.GetThread(f.thread.Pid, &f.member)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = replies.ListReplies(f.thread.ID, 0, 0, 0)
	assert.ErrorIs(t, err, ErrThreadNotFound)

	// Storage keeps everything for restore.
	var stored models.Reply
	require.NoError(t, g.First(&stored, reply.ID).Error)
	assert.True(t, stored.IsActive)

	_, err = moderation.ApplyFlag(models.VotableThread, f.thread.ID, FlagDeleted, false, &f.moderator, "false positive")
	require.NoError(t, err)

	nodes, err := replies.ListReplies(f.thread.ID, 0, 0, 0)
	require.NoError(t, err)
	assert.Len(t, nodes, 1)
}

func TestModerationReplyDeleteUsesReplyEngine(t *testing.T) {
	g := testDB(t)
	f := seedForum(t, g)
	moderation, replies := newModeration(f)

	reply, err := replies.CreateReply(f.thread.ID, f.other.ID, "deleteme", nil)
	require.NoError(t, err)
	require.Equal(t, 1, f.reloadThread(t).ReplyCount)

	summary, err := moderation.ApplyFlag(models.VotableReply, reply.ID, FlagDeleted, true, &f.moderator, "off topic")
	require.NoError(t, err)
	assert.True(t, summary.IsDeleted)
	assert.Equal(t, 0, f.reloadThread(t).ReplyCount)

	_, err = moderation.ApplyFlag(models.VotableReply, reply.ID, FlagDeleted, false, &f.moderator, "")
	require.NoError(t, err)
	assert.Equal(t, 1, f.reloadThread(t).ReplyCount)

	// Pin and lock make no sense on replies.
	_, err = moderation.ApplyFlag(models.VotableReply, reply.ID, FlagPinned, true, &f.moderator, "")
	assert.True(t, IsValidation(err))
}

func TestApplyFlagTargetNotFound(t *testing.T) {
	g := testDB(t)
	f := seedForum(t, g)
	moderation, _ := newModeration(f)

	_, err := moderation.ApplyFlag(models.VotableThread, 99999, FlagLocked, true, &f.moderator, "")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = moderation.ApplyFlag("garage", 1, FlagLocked, true, &f.moderator, "")
	assert.True(t, IsValidation(err))
}

func TestListLogPagination(t *testing.T) {
	g := testDB(t)
	f := seedForum(t, g)
	moderation, _ := newModeration(f)

	for i := 0; i < 3; i++ {
		_, err := moderation.ApplyFlag(models.VotableThread, f.thread.ID, FlagLocked, i%2 == 0, &f.moderator, "")
		require.NoError(t, err)
	}

	entries, total, err := moderation.ListLog(1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, entries, 2)
}
