package workflow

import (
	"github.com/meridian-procure/meridian-procure/internal/permissions"
)

// ItemStatus is the lifecycle status of a single purchase request line.
// Draft -> InProgress -> {Approved | Cancelled}; InProgress may be sent
// back to Draft by a return carrying a mandatory comment.
type ItemStatus string

const (
	ItemDraft      ItemStatus = "Draft"
	ItemInProgress ItemStatus = "InProgress"
	ItemApproved   ItemStatus = "Approved"
	ItemCancelled  ItemStatus = "Cancelled"
)

// Terminal reports whether no further transitions are expected.
func (s ItemStatus) Terminal() bool {
	return s == ItemApproved || s == ItemCancelled
}

// Action is the aggregate bulk action offered to the current actor.
type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
	ActionReturn  Action = "return"
	ActionBlocked Action = "blocked"
	// ActionNone is reported alongside MixedStatus when the engine defers
	// to an explicit scope choice instead of auto-resolving.
	ActionNone Action = ""
)

// Item is the minimal view of a line the engine needs.
type Item struct {
	ID     int64
	Status ItemStatus
}

// Decision is the engine output. It carries no side effects; the caller
// applies it to entity state.
type Decision struct {
	Action      Action
	MixedStatus bool
	Breakdown   map[ItemStatus]int
}

// statusActions is the fixed mapping used for status-homogeneous sets.
// Cancelled maps to approve: a cancelled set is reopenable.
var statusActions = map[ItemStatus]Action{
	ItemDraft:      ActionApprove,
	ItemApproved:   ActionReject,
	ItemInProgress: ActionReturn,
	ItemCancelled:  ActionApprove,
}

// Evaluate aggregates the statuses of the selected items into a single
// actionable decision for the actor. Actors outside the approver and
// purchaser capabilities are blocked regardless of status. A mixed-status
// selection is reported as such and never auto-resolved.
func Evaluate(items []Item, cap permissions.Capability) Decision {
	breakdown := make(map[ItemStatus]int, 4)
	for _, it := range items {
		breakdown[it.Status]++
	}
	d := Decision{Breakdown: breakdown}

	if cap != permissions.CapabilityApprover && cap != permissions.CapabilityPurchaser {
		d.Action = ActionBlocked
		return d
	}
	if len(breakdown) == 0 {
		d.Action = ActionBlocked
		return d
	}
	if len(breakdown) > 1 {
		d.MixedStatus = true
		d.Action = ActionNone
		return d
	}
	for status := range breakdown {
		d.Action = statusActions[status]
	}
	return d
}

// Scope disambiguates which items a bulk action applies to when the
// selection spans more than one status.
type Scope string

const (
	// ScopePendingOnly limits the action to items that are not terminal.
	ScopePendingOnly Scope = "pending-only"
	// ScopeAll applies the action to every selected item.
	ScopeAll Scope = "all"
)

// SelectTargets resolves the disambiguation scope to the concrete items a
// bulk action should touch. Called after Evaluate reported MixedStatus and
// the user made an explicit choice.
func SelectTargets(items []Item, scope Scope) []Item {
	if scope == ScopeAll {
		out := make([]Item, len(items))
		copy(out, items)
		return out
	}
	var out []Item
	for _, it := range items {
		if !it.Status.Terminal() {
			out = append(out, it)
		}
	}
	return out
}

// CanTransition reports whether a single item may move to the target status.
// The terminal statuses still allow the explicit undo paths the action table
// exposes: reject on an approved line and reopen on a cancelled one.
func CanTransition(from, to ItemStatus) bool {
	switch from {
	case ItemDraft:
		return to == ItemInProgress || to == ItemCancelled
	case ItemInProgress:
		return to == ItemApproved || to == ItemCancelled || to == ItemDraft
	case ItemApproved:
		return to == ItemCancelled
	case ItemCancelled:
		return to == ItemInProgress
	default:
		return false
	}
}

// NextStatusForAction maps a bulk action to the target status for one item,
// honouring the per-item state machine. The second return value is false
// when the action does not apply to the item's current status.
func NextStatusForAction(action Action, current ItemStatus) (ItemStatus, bool) {
	var target ItemStatus
	switch action {
	case ActionApprove:
		switch current {
		case ItemDraft, ItemCancelled:
			target = ItemInProgress
		case ItemInProgress:
			target = ItemApproved
		default:
			return "", false
		}
	case ActionReject:
		target = ItemCancelled
	case ActionReturn:
		target = ItemDraft
	default:
		return "", false
	}
	if !CanTransition(current, target) {
		return "", false
	}
	return target, true
}
