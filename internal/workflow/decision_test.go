package workflow

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meridian-procure/meridian-procure/internal/permissions"
)

func TestEvaluateHomogeneous(t *testing.T) {
	cases := []struct {
		status ItemStatus
		want   Action
	}{
		{ItemDraft, ActionApprove},
		{ItemApproved, ActionReject},
		{ItemInProgress, ActionReturn},
		{ItemCancelled, ActionApprove},
	}
	for _, tc := range cases {
		items := []Item{{ID: 1, Status: tc.status}, {ID: 2, Status: tc.status}}
		d := Evaluate(items, permissions.CapabilityApprover)
		require.False(t, d.MixedStatus, "status %s", tc.status)
		require.Equal(t, tc.want, d.Action, "status %s", tc.status)
		require.Equal(t, 2, d.Breakdown[tc.status])
	}
}

func TestEvaluateMixedStatusDefers(t *testing.T) {
	items := []Item{{ID: 1, Status: ItemDraft}, {ID: 2, Status: ItemApproved}}
	d := Evaluate(items, permissions.CapabilityApprover)
	require.True(t, d.MixedStatus)
	require.Equal(t, ActionNone, d.Action)
	require.Equal(t, 1, d.Breakdown[ItemDraft])
	require.Equal(t, 1, d.Breakdown[ItemApproved])
}

func TestEvaluateBlocksNonApprovers(t *testing.T) {
	items := []Item{{ID: 1, Status: ItemDraft}}
	require.Equal(t, ActionBlocked, Evaluate(items, permissions.CapabilityRequestor).Action)
	require.Equal(t, ActionBlocked, Evaluate(items, permissions.CapabilityUnknown).Action)
	require.Equal(t, ActionApprove, Evaluate(items, permissions.CapabilityPurchaser).Action)
}

func TestEvaluateEmptySelection(t *testing.T) {
	d := Evaluate(nil, permissions.CapabilityApprover)
	require.Equal(t, ActionBlocked, d.Action)
	require.False(t, d.MixedStatus)
}

func TestSelectTargets(t *testing.T) {
	items := []Item{
		{ID: 1, Status: ItemDraft},
		{ID: 2, Status: ItemApproved},
		{ID: 3, Status: ItemInProgress},
		{ID: 4, Status: ItemCancelled},
	}
	pending := SelectTargets(items, ScopePendingOnly)
	require.Len(t, pending, 2)
	require.Equal(t, int64(1), pending[0].ID)
	require.Equal(t, int64(3), pending[1].ID)

	all := SelectTargets(items, ScopeAll)
	require.Len(t, all, 4)
}

func TestCanTransition(t *testing.T) {
	require.True(t, CanTransition(ItemDraft, ItemInProgress))
	require.True(t, CanTransition(ItemInProgress, ItemApproved))
	require.True(t, CanTransition(ItemInProgress, ItemDraft))
	require.True(t, CanTransition(ItemCancelled, ItemInProgress))
	require.True(t, CanTransition(ItemApproved, ItemCancelled))
	require.False(t, CanTransition(ItemApproved, ItemDraft))
	require.False(t, CanTransition(ItemDraft, ItemApproved))
}

func TestNextStatusForAction(t *testing.T) {
	next, ok := NextStatusForAction(ActionApprove, ItemDraft)
	require.True(t, ok)
	require.Equal(t, ItemInProgress, next)

	next, ok = NextStatusForAction(ActionApprove, ItemInProgress)
	require.True(t, ok)
	require.Equal(t, ItemApproved, next)

	next, ok = NextStatusForAction(ActionApprove, ItemCancelled)
	require.True(t, ok)
	require.Equal(t, ItemInProgress, next)

	next, ok = NextStatusForAction(ActionReject, ItemApproved)
	require.True(t, ok)
	require.Equal(t, ItemCancelled, next)

	next, ok = NextStatusForAction(ActionReturn, ItemInProgress)
	require.True(t, ok)
	require.Equal(t, ItemDraft, next)

	_, ok = NextStatusForAction(ActionReturn, ItemApproved)
	require.False(t, ok)

	_, ok = NextStatusForAction(ActionBlocked, ItemDraft)
	require.False(t, ok)
}
