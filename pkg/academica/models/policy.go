package models

import "fmt"

// Policy selects how the upsert engine resolves natural-key collisions.
type Policy string

const (
	// PolicyInsertOrIgnore keeps existing rows; colliding rows are skipped.
	PolicyInsertOrIgnore Policy = "insert_or_ignore"
	// PolicyInsertOrReplace overwrites colliding rows entirely.
	PolicyInsertOrReplace Policy = "insert_or_replace"
	// PolicyReplacePartition deletes the batch's partition before inserting.
	PolicyReplacePartition Policy = "replace_partition"
	// PolicyEvolveAndReplace adds unseen columns, then behaves like PolicyInsertOrReplace.
	PolicyEvolveAndReplace Policy = "evolve_and_replace"
)

// ParsePolicy validates s as a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(s); p {
	case PolicyInsertOrIgnore, PolicyInsertOrReplace, PolicyReplacePartition, PolicyEvolveAndReplace:
		return p, nil
	default:
		return "", fmt.Errorf("invalid policy: %s (must be insert_or_ignore, insert_or_replace, replace_partition or evolve_and_replace)", s)
	}
}
