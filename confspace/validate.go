package confspace

import (
	"fmt"

	"github.com/LynnColeArt/confecalc/real3"
)

// ValidateConf checks an assignment vector against cs: one entry per
// position, each either negative (unassigned) or a valid conformation
// index. Assignment construction trusts its input, so vectors from
// outside the search should pass through here first.
func ValidateConf[T real3.Float](cs *ConfSpace[T], conf []int32) error {
	if len(conf) != cs.NumPos {
		return invalidArg("ValidateConf", fmt.Sprintf("assignment has %d entries for %d positions", len(conf), cs.NumPos), ErrInvalidAssignment)
	}
	for posi, confi := range conf {
		if confi < 0 {
			continue
		}
		if n := cs.Positions[posi].NumConfs(); int(confi) >= n {
			return invalidArg("ValidateConf", fmt.Sprintf("position %d has %d conformations, assignment selects %d", posi, n, confi), ErrInvalidAssignment)
		}
	}
	return nil
}

// Unassign returns an assignment vector with every position unassigned.
func Unassign(numPos int) []int32 {
	conf := make([]int32, numPos)
	for i := range conf {
		conf[i] = Unassigned
	}
	return conf
}

// NumAssigned counts the assigned positions of conf.
func NumAssigned(conf []int32) int {
	n := 0
	for _, confi := range conf {
		if confi >= 0 {
			n++
		}
	}
	return n
}
