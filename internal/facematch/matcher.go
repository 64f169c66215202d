package facematch

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Policy selects which roster entry wins when several clear the threshold.
type Policy string

const (
	// PolicyFirst returns the first entry in roster order that clears the threshold.
	PolicyFirst Policy = "first"
	// PolicyBest returns the entry with the highest similarity. Ties keep roster order.
	PolicyBest Policy = "best"
)

// ParsePolicy validates a policy name. An empty name selects PolicyFirst.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicyFirst:
		return PolicyFirst, nil
	case PolicyBest:
		return PolicyBest, nil
	default:
		return "", fmt.Errorf("unknown match policy %q (expected first or best)", s)
	}
}

// RosterEntry is one enrolled identity as the matcher sees it. Signature holds the
// stored text form and is parsed on every match.
type RosterEntry struct {
	ID        string
	Label     string
	Signature string
}

// Match is an accepted roster entry.
type Match struct {
	Index      int
	Entry      RosterEntry
	Similarity float64
}

// Matcher compares a query signature against a roster snapshot.
type Matcher struct {
	threshold float64
	policy    Policy
	log       logrus.FieldLogger
}

// NewMatcher creates a matcher accepting similarities >= threshold.
func NewMatcher(threshold float64, policy Policy, log logrus.FieldLogger) *Matcher {
	if policy == "" {
		policy = PolicyFirst
	}
	return &Matcher{threshold: threshold, policy: policy, log: log}
}

// Threshold returns the acceptance threshold.
func (m *Matcher) Threshold() float64 {
	return m.threshold
}

// Policy returns the tie-break policy.
func (m *Matcher) Policy() Policy {
	return m.policy
}

// Match scans roster in order. Entries whose signature cannot be parsed, or whose
// dimension differs from the query, are logged and skipped. ok is false when no entry
// clears the threshold, including for an empty roster.
func (m *Matcher) Match(query Signature, roster []RosterEntry) (Match, bool) {
	var best Match
	found := false

	for i, entry := range roster {
		stored, err := ParseSignature(entry.Signature)
		if err != nil {
			m.log.WithError(err).WithFields(logrus.Fields{
				"agent_id": entry.ID,
				"agent":    entry.Label,
			}).Warn("skipping roster entry with unreadable signature")
			continue
		}
		if len(stored) != len(query) {
			m.log.WithFields(logrus.Fields{
				"agent_id": entry.ID,
				"agent":    entry.Label,
				"stored":   len(stored),
				"query":    len(query),
			}).Warn("skipping roster entry: " + ErrDimensionMismatch.Error())
			continue
		}

		similarity := CosineSimilarity(query, stored)
		m.log.WithFields(logrus.Fields{
			"agent_id":   entry.ID,
			"agent":      entry.Label,
			"similarity": similarity,
		}).Debug("compared roster entry")

		if similarity < m.threshold {
			continue
		}

		candidate := Match{Index: i, Entry: entry, Similarity: similarity}
		if m.policy == PolicyFirst {
			return candidate, true
		}
		if !found || similarity > best.Similarity {
			best = candidate
			found = true
		}
	}

	return best, found
}
