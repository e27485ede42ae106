// Package split describes the testable condition at a Decision Tree
// Node (spec.md §3 "Split", §4.F): which data group it reads, which
// column(s), and the critical value / category set / word set that
// separates the "greater" branch from the "smaller" one.
//
// Grounded on the teacher's core.Constraint / core.Index idiom: plain
// data structs paired with a closed string enum, rather than a
// polymorphic condition hierarchy.
package split

// DataUsed is the closed enumeration of data groups a Split can read
// (spec.md §3). Declaration order is the tie-break order used when two
// candidate splits reduce loss equally (spec.md §4.F).
type DataUsed string

const (
	NotApplicable DataUsed = "not_applicable"

	NumericalInput        DataUsed = "numerical_input"
	NumericalInputIsNaN   DataUsed = "numerical_input_is_nan"
	NumericalOutput       DataUsed = "numerical_output"
	NumericalOutputIsNaN  DataUsed = "numerical_output_is_nan"
	DiscreteInput         DataUsed = "discrete_input"
	DiscreteInputIsNaN    DataUsed = "discrete_input_is_nan"
	DiscreteOutput        DataUsed = "discrete_output"
	DiscreteOutputIsNaN   DataUsed = "discrete_output_is_nan"
	CategoricalInput      DataUsed = "categorical_input"
	CategoricalOutput     DataUsed = "categorical_output"
	SameUnitsCategorical  DataUsed = "same_units_categorical"
	SameUnitsDiscrete     DataUsed = "same_units_discrete"
	SameUnitsNumerical    DataUsed = "same_units_numerical"
	SameUnitsCategoricalTS DataUsed = "same_units_categorical_ts"
	SameUnitsDiscreteTS   DataUsed = "same_units_discrete_ts"
	SameUnitsNumericalTS  DataUsed = "same_units_numerical_ts"
	TimeStampsDiff        DataUsed = "time_stamps_diff"
	TimeStampsWindow      DataUsed = "time_stamps_window"
	TextInput             DataUsed = "text_input"
	TextOutput            DataUsed = "text_output"
	Subfeatures           DataUsed = "subfeatures"
)

// order lists every DataUsed in tie-break precedence (spec.md §4.F:
// "prefer the lower-indexed data_used").
var order = []DataUsed{
	NotApplicable,
	NumericalInput, NumericalInputIsNaN, NumericalOutput, NumericalOutputIsNaN,
	DiscreteInput, DiscreteInputIsNaN, DiscreteOutput, DiscreteOutputIsNaN,
	CategoricalInput, CategoricalOutput,
	SameUnitsCategorical, SameUnitsDiscrete, SameUnitsNumerical,
	SameUnitsCategoricalTS, SameUnitsDiscreteTS, SameUnitsNumericalTS,
	TimeStampsDiff, TimeStampsWindow,
	TextInput, TextOutput,
	Subfeatures,
}

var rank = func() map[DataUsed]int {
	m := make(map[DataUsed]int, len(order))
	for i, d := range order {
		m[d] = i
	}
	return m
}()

// Rank returns d's tie-break precedence (lower sorts first). Unknown
// values rank after every known one.
func (d DataUsed) Rank() int {
	if r, ok := rank[d]; ok {
		return r
	}
	return len(order)
}

// Split is one testable condition at a tree node. Exactly one of
// CriticalValue, CategoryIDs, or WordIDs is meaningful, selected by
// DataUsed; OtherColumnIndex is used only by the same_units_* kinds.
type Split struct {
	DataUsed         DataUsed
	ColumnIndex      int
	OtherColumnIndex int // -1 when unused

	CriticalValue    float64
	HasCriticalValue bool

	CategoryIDs map[int64]struct{}
	WordIDs     map[int64]struct{}
}

// EvaluateNumerical reports whether v belongs to the "greater" branch
// for a numerical/discrete/same-units/time-stamp-diff split (v >=
// critical value).
func (s *Split) EvaluateNumerical(v float64) bool {
	return v >= s.CriticalValue
}

// EvaluateIsNaN reports whether isNaN belongs to the "greater" branch
// of an `_is_nan` split (missing values route to "greater").
func (s *Split) EvaluateIsNaN(isNaN bool) bool {
	return isNaN
}

// EvaluateCategory reports whether id belongs to the "greater" branch
// of a categorical split (membership in the split's category set).
func (s *Split) EvaluateCategory(id int64) bool {
	_, ok := s.CategoryIDs[id]
	return ok
}

// EvaluateWords reports whether any of ids is present in the split's
// word set (text splits: single-word and multi-word unions alike).
func (s *Split) EvaluateWords(ids []int64) bool {
	for _, id := range ids {
		if _, ok := s.WordIDs[id]; ok {
			return true
		}
	}
	return false
}

// Less implements the deterministic tie-break between two candidate
// splits with equal loss reduction (spec.md §4.F): lower DataUsed rank
// first, then lower column index.
func Less(a, b Split) bool {
	if a.DataUsed.Rank() != b.DataUsed.Rank() {
		return a.DataUsed.Rank() < b.DataUsed.Rank()
	}
	return a.ColumnIndex < b.ColumnIndex
}
