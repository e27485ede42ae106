package schema

import (
	"encoding/json"
	"io"

	"relfit/internal/engineerr"
)

// NodeJSON is the wire shape of a schema tree: a table name and the
// peripheral edges joined to it. Shared by the command server's
// `Pipeline.fit`/`launch_hyperopt` commands and the CLI's --root flag,
// so both entry points build identical Placeholder trees from the same
// JSON shape.
type NodeJSON struct {
	Table    string     `json:"table"`
	Children []EdgeJSON `json:"children,omitempty"`
}

// EdgeJSON is the wire shape of one Child join edge.
type EdgeJSON struct {
	Table                NodeJSON `json:"table"`
	PopulationJoinKey    string   `json:"population_join_key"`
	PeripheralJoinKey    string   `json:"peripheral_join_key"`
	PopulationTimeStamp  string   `json:"population_time_stamp"`
	PeripheralTimeStamp  string   `json:"peripheral_time_stamp"`
	UpperTimeStamp       string   `json:"upper_time_stamp,omitempty"`
	AllowLaggedTargets   bool     `json:"allow_lagged_targets,omitempty"`
	Propositionalization bool     `json:"propositionalization,omitempty"`
}

// FromJSON builds a Placeholder tree from its wire shape.
func FromJSON(node NodeJSON) *Placeholder {
	root := New(node.Table)
	for _, e := range node.Children {
		child := root.AddChild(e.Table.Table, Child{
			PopulationJoinKey:    e.PopulationJoinKey,
			PeripheralJoinKey:    e.PeripheralJoinKey,
			PopulationTimeStamp:  e.PopulationTimeStamp,
			PeripheralTimeStamp:  e.PeripheralTimeStamp,
			UpperTimeStamp:       e.UpperTimeStamp,
			AllowLaggedTargets:   e.AllowLaggedTargets,
			Propositionalization: e.Propositionalization,
		})
		child.Table = FromJSON(e.Table)
	}
	return root
}

// ParseJSON decodes r as a NodeJSON tree and builds the corresponding
// Placeholder.
func ParseJSON(r io.Reader) (*Placeholder, error) {
	var node NodeJSON
	if err := json.NewDecoder(r).Decode(&node); err != nil {
		return nil, engineerr.Newf(engineerr.InvalidArgument, "schema: decode json: %v", err)
	}
	return FromJSON(node), nil
}
