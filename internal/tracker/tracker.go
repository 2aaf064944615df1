package tracker

import (
	"errors"
	"fmt"
	"time"

	"gardenshop-tracker/internal/model"
	"gardenshop-tracker/internal/parse"
)

// TransitionKind distinguishes the two ways a tracked shop can change per poll.
type TransitionKind string

const (
	Restock TransitionKind = "restock"
	Tick    TransitionKind = "tick"
)

// Transition records what happened to one shop during Apply.
type Transition struct {
	Key   model.ShopKey
	Kind  TransitionKind
	First bool // the shop had never been seen before
}

// Options configures a Tracker.
type Options struct {
	Interval time.Duration
	Mode     parse.Mode
	// ClampOnTick floors the stored countdown at zero. When false the stored
	// value may drift below zero and only rendering clamps it.
	ClampOnTick bool
}

// Tracker applies upstream payloads to a State.
type Tracker struct {
	opts Options
}

// New creates a Tracker.
func New(opts Options) *Tracker {
	return &Tracker{opts: opts}
}

// State holds the tracked shops. It is owned by a single poll loop and is not
// safe for concurrent use.
type State struct {
	shops map[model.ShopKey]*model.TrackedShop
}

// NewState returns an empty State.
func NewState() *State {
	return &State{shops: make(map[model.ShopKey]*model.TrackedShop, len(model.TrackedShops))}
}

// Shop returns a copy of the tracked shop for key.
func (s *State) Shop(key model.ShopKey) (model.TrackedShop, bool) {
	shop, ok := s.shops[key]
	if !ok {
		return model.TrackedShop{}, false
	}
	return *shop, true
}

// Shops returns copies of all tracked shops in display order.
func (s *State) Shops() []model.TrackedShop {
	out := make([]model.TrackedShop, 0, len(s.shops))
	for _, key := range model.TrackedShops {
		if shop, ok := s.shops[key]; ok {
			out = append(out, *shop)
		}
	}
	return out
}

// Len returns the number of tracked shops.
func (s *State) Len() int {
	return len(s.shops)
}

// Apply folds one payload into state. Shops missing from the payload and
// untracked keys are left alone. A section that cannot be decoded or whose
// countdown is rejected keeps its previous state; the per-shop errors are
// joined into the returned error while the remaining shops are still applied.
func (t *Tracker) Apply(state *State, payload *model.Payload, now time.Time) ([]Transition, error) {
	var (
		transitions []Transition
		errs        []error
	)

	for _, key := range model.TrackedShops {
		section, present, err := payload.Section(key)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !present {
			continue
		}

		current, seen := state.shops[key]
		if seen && model.SameItems(current.Items, section.Items) {
			current.Remaining -= t.opts.Interval
			if t.opts.ClampOnTick && current.Remaining < 0 {
				current.Remaining = 0
			}
			current.ObservedAt = now
			transitions = append(transitions, Transition{Key: key, Kind: Tick})
			continue
		}

		remaining, err := parse.ParseCountdown(section.CountdownText(), t.opts.Mode)
		if err != nil {
			errs = append(errs, fmt.Errorf("shop %s: %w", key, err))
			continue
		}

		state.shops[key] = &model.TrackedShop{
			Key:         key,
			Items:       section.Items,
			Remaining:   remaining,
			RestockedAt: now,
			ObservedAt:  now,
		}
		transitions = append(transitions, Transition{Key: key, Kind: Restock, First: !seen})
	}

	return transitions, errors.Join(errs...)
}
