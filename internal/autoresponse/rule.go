// Package autoresponse matches inbound text against operator-managed
// trigger→reply rules. Rules are independent of flows and intents and are
// consulted only when neither applies.
package autoresponse

import "time"

// TriggerKind selects how a rule trigger is compared against the input.
type TriggerKind string

const (
	TriggerExact   TriggerKind = "exact"
	TriggerKeyword TriggerKind = "keyword"
	TriggerPrefix  TriggerKind = "prefix"
	TriggerPattern TriggerKind = "pattern"
)

// Rule is a trigger→reply entry managed outside this service and reloaded on
// a fixed cache interval.
type Rule struct {
	ID        string
	Trigger   string
	Kind      TriggerKind
	Response  string
	Category  string
	Priority  int
	Active    bool
	UpdatedAt time.Time
}

// Match is a successful rule lookup.
type Match struct {
	Response string
	Category string
}
