package services

import (
	"fmt"
	"strings"

	"fintrack/internal/core"
)

// SubscriptionMatcher is the strategy interface for deciding whether a new
// expense belongs to an existing subscription.
type SubscriptionMatcher interface {
	// Matches reports whether the expense looks like a charge for the
	// subscription.
	Matches(e core.Expense, sub core.Subscription) bool
}

// SubstringMatcher matches when the subscription name appears inside the
// expense title (case-insensitive) and the amount is within Tolerance of the
// subscription amount. The tolerance bound is strict: a deviation of exactly
// Tolerance does not match.
type SubstringMatcher struct {
	Tolerance float64 // fraction of the subscription amount, e.g. 0.10
}

// DefaultMatchTolerance absorbs small price changes and taxes.
const DefaultMatchTolerance = 0.10

func (m SubstringMatcher) Matches(e core.Expense, sub core.Subscription) bool {
	if !strings.Contains(strings.ToLower(e.Title), strings.ToLower(sub.Name)) {
		return false
	}
	diff := e.Amount.Cents - sub.Amount.Cents
	if diff < 0 {
		diff = -diff
	}
	return float64(diff) < m.Tolerance*float64(sub.Amount.Cents)
}

// matcherFactories maps strategy names to constructors, so hosts can select
// a matcher from configuration and new strategies can be registered without
// touching the linker.
var matcherFactories = map[string]func(tolerance float64) SubscriptionMatcher{
	"substring": func(tolerance float64) SubscriptionMatcher {
		return SubstringMatcher{Tolerance: tolerance}
	},
}

// GetMatcher returns the matcher registered under the given name.
func GetMatcher(name string, tolerance float64) (SubscriptionMatcher, error) {
	factory, ok := matcherFactories[name]
	if !ok {
		return nil, fmt.Errorf("unknown matcher strategy: %s", name)
	}
	return factory(tolerance), nil
}

// RegisterMatcher registers a custom matcher strategy under a name.
func RegisterMatcher(name string, factory func(tolerance float64) SubscriptionMatcher) {
	matcherFactories[name] = factory
}
