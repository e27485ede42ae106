// Package dataframe implements the engine's role-partitioned, in-memory
// relational table (spec.md §3 "DataFrame", §4.B) plus its join-key and
// time-stamp indexes and the immutable DataFrameView. Grounded on the
// teacher's internal/core.Table (role-partitioned column collections) and
// internal/introspect registry idiom for the index's concurrent-read
// guarantees.
package dataframe

// Role names the partition a Column belongs to within a DataFrame.
type Role string

const (
	RoleCategorical Role = "categorical"
	RoleDiscrete    Role = "discrete"
	RoleNumerical   Role = "numerical"
	RoleJoinKey     Role = "join_key"
	RoleTimeStamp   Role = "time_stamp"
	RoleText        Role = "text"
	RoleTarget      Role = "target"
)

// Roles lists every role in a stable order, for callers that need to
// iterate roles deterministically.
func Roles() []Role {
	return []Role{
		RoleCategorical, RoleDiscrete, RoleNumerical,
		RoleJoinKey, RoleTimeStamp, RoleText, RoleTarget,
	}
}
