// Package consensus implements the per-replica epoch state machine of the
// OptRand randomness beacon: status collection, erasure-coded proposal
// delivery, the sync and responsive voting paths, the commit rule with
// accountable leader removal, and beacon reconstruction.
package consensus

import "github.com/sirupsen/logrus"

var log = logrus.WithField("prefix", "consensus")
