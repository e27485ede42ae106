package dataframe

import (
	"sort"
	"strings"
	"sync"

	"relfit/internal/column"
	"relfit/internal/encoding"
	"relfit/internal/engineerr"
)

// DataFrame is a named bundle of Columns partitioned by Role. All
// columns sharing a role are stored alongside an order slice so
// iteration is deterministic (Go maps are not ordered). Mutation is
// append-only; the join-key index is maintained incrementally as rows
// are appended. Time-stamp ordering is not stored: SortedRowsByTimeStamp
// computes it on each call.
type DataFrame struct {
	Name string

	mu sync.RWMutex

	numerical   map[string]*column.Column[float64]
	numOrder    []string
	discrete    map[string]*column.Column[int64]
	discOrder   []string
	categorical map[string]*column.Column[int64]
	catOrder    []string
	joinKeys    map[string]*column.Column[int64]
	jkOrder     []string
	timeStamps  map[string]*column.Column[float64]
	tsOrder     []string
	text        map[string]*column.Column[string]
	textOrder   []string
	target      map[string]*column.Column[float64]
	targetOrder []string

	nrows int

	// CatEncoding interns categorical values; JKEncoding interns
	// join-key values; WordEncoding interns text terms for the word
	// index. All three may be shared across DataFrames in the same
	// Engine (spec.md §5 "the two Encodings").
	CatEncoding  *encoding.Encoding
	JKEncoding   *encoding.Encoding
	WordEncoding *encoding.Encoding

	joinIndex map[string]map[int64][]int // join-key column name -> value -> ascending row positions
	wordIndex map[string]map[int64][]int // text column name -> word id -> ascending row positions
}

// New creates an empty, named DataFrame. Pass nil for any encoding to
// have a fresh process-local one created (convenient for tests); share
// encodings across DataFrames that must agree on interned ids.
func New(name string, catEnc, jkEnc, wordEnc *encoding.Encoding) *DataFrame {
	if catEnc == nil {
		catEnc = encoding.New()
	}
	if jkEnc == nil {
		jkEnc = encoding.New()
	}
	if wordEnc == nil {
		wordEnc = encoding.New()
	}
	return &DataFrame{
		Name:         name,
		numerical:    map[string]*column.Column[float64]{},
		discrete:     map[string]*column.Column[int64]{},
		categorical:  map[string]*column.Column[int64]{},
		joinKeys:     map[string]*column.Column[int64]{},
		timeStamps:   map[string]*column.Column[float64]{},
		text:         map[string]*column.Column[string]{},
		target:       map[string]*column.Column[float64]{},
		CatEncoding:  catEnc,
		JKEncoding:   jkEnc,
		WordEncoding: wordEnc,
		joinIndex:    map[string]map[int64][]int{},
		wordIndex:    map[string]map[int64][]int{},
	}
}

// NRows returns the DataFrame's row cardinality.
func (df *DataFrame) NRows() int {
	df.mu.RLock()
	defer df.mu.RUnlock()
	return df.nrows
}

// NumericalNames, DiscreteNames, CategoricalNames, JoinKeyNames,
// TimeStampNames, TextNames, and TargetNames return each role's column
// names in insertion order.
func (df *DataFrame) NumericalNames() []string { return append([]string(nil), df.numOrder...) }
func (df *DataFrame) DiscreteNames() []string  { return append([]string(nil), df.discOrder...) }
func (df *DataFrame) CategoricalNames() []string {
	return append([]string(nil), df.catOrder...)
}
func (df *DataFrame) JoinKeyNames() []string   { return append([]string(nil), df.jkOrder...) }
func (df *DataFrame) TimeStampNames() []string { return append([]string(nil), df.tsOrder...) }
func (df *DataFrame) TextNames() []string      { return append([]string(nil), df.textOrder...) }
func (df *DataFrame) TargetNames() []string    { return append([]string(nil), df.targetOrder...) }

// Numerical returns the named numerical column. get(column_name) in
// spec.md §4.B is case-sensitive.
func (df *DataFrame) Numerical(name string) (*column.Column[float64], error) {
	return lookup(df.numerical, name, "numerical")
}

// Discrete returns the named discrete column.
func (df *DataFrame) Discrete(name string) (*column.Column[int64], error) {
	return lookup(df.discrete, name, "discrete")
}

// Categorical returns the named categorical column (interned ids).
func (df *DataFrame) Categorical(name string) (*column.Column[int64], error) {
	return lookup(df.categorical, name, "categorical")
}

// JoinKey returns the named join-key column (interned ids).
func (df *DataFrame) JoinKey(name string) (*column.Column[int64], error) {
	return lookup(df.joinKeys, name, "join_key")
}

// TimeStamp returns the named time-stamp column.
func (df *DataFrame) TimeStamp(name string) (*column.Column[float64], error) {
	return lookup(df.timeStamps, name, "time_stamp")
}

// Text returns the named text column.
func (df *DataFrame) Text(name string) (*column.Column[string], error) {
	return lookup(df.text, name, "text")
}

// Target returns the named target column.
func (df *DataFrame) Target(name string) (*column.Column[float64], error) {
	return lookup(df.target, name, "target")
}

func lookup[T column.Type](m map[string]*column.Column[T], name, role string) (*column.Column[T], error) {
	c, ok := m[name]
	if !ok {
		return nil, engineerr.Newf(engineerr.InvalidArgument, "%s column %q not found", role, name)
	}
	return c, nil
}

// AddNumerical registers a numerical column; its length must equal the
// DataFrame's current row cardinality (or the DataFrame must be empty).
func (df *DataFrame) AddNumerical(c *column.Column[float64]) error {
	return addColumn(df, &df.numerical, &df.numOrder, c)
}

// AddDiscrete registers a discrete (ordinal integer) column.
func (df *DataFrame) AddDiscrete(c *column.Column[int64]) error {
	return addColumn(df, &df.discrete, &df.discOrder, c)
}

// AddCategorical registers a categorical column (values already interned
// via df.CatEncoding) and indexes nothing extra — categorical columns
// are not join keys.
func (df *DataFrame) AddCategorical(c *column.Column[int64]) error {
	return addColumn(df, &df.categorical, &df.catOrder, c)
}

// AddTimeStamp registers a time-stamp column.
func (df *DataFrame) AddTimeStamp(c *column.Column[float64]) error {
	return addColumn(df, &df.timeStamps, &df.tsOrder, c)
}

// AddText registers a text column and builds its sparse word index.
func (df *DataFrame) AddText(c *column.Column[string]) error {
	if err := addColumn(df, &df.text, &df.textOrder, c); err != nil {
		return err
	}
	df.indexWordColumn(c)
	return nil
}

// AddTarget registers a target column.
func (df *DataFrame) AddTarget(c *column.Column[float64]) error {
	return addColumn(df, &df.target, &df.targetOrder, c)
}

// AddJoinKey registers a join-key column (values already interned via
// df.JKEncoding) and builds its join index.
func (df *DataFrame) AddJoinKey(c *column.Column[int64]) error {
	if err := addColumn(df, &df.joinKeys, &df.jkOrder, c); err != nil {
		return err
	}
	df.indexJoinKeyColumn(c)
	return nil
}

func addColumn[T column.Type](df *DataFrame, m *map[string]*column.Column[T], order *[]string, c *column.Column[T]) error {
	df.mu.Lock()
	defer df.mu.Unlock()
	if _, exists := (*m)[c.Name()]; exists {
		return engineerr.Newf(engineerr.InvalidArgument, "column %q already exists", c.Name())
	}
	if df.nrows == 0 && df.totalColumnsLocked() == 0 {
		df.nrows = c.Len()
	} else if c.Len() != df.nrows {
		return engineerr.Newf(engineerr.InvalidArgument, "column %q has length %d, expected %d", c.Name(), c.Len(), df.nrows)
	}
	(*m)[c.Name()] = c
	*order = append(*order, c.Name())
	return nil
}

func (df *DataFrame) totalColumnsLocked() int {
	return len(df.numerical) + len(df.discrete) + len(df.categorical) + len(df.joinKeys) + len(df.timeStamps) + len(df.text) + len(df.target)
}

func (df *DataFrame) indexJoinKeyColumn(c *column.Column[int64]) {
	df.mu.Lock()
	defer df.mu.Unlock()
	idx := make(map[int64][]int)
	for i, v := range c.Raw() {
		idx[v] = append(idx[v], i)
	}
	df.joinIndex[c.Name()] = idx
}

func (df *DataFrame) indexWordColumn(c *column.Column[string]) {
	df.mu.Lock()
	defer df.mu.Unlock()
	idx := make(map[int64][]int)
	for i, v := range c.Raw() {
		for _, word := range strings.Fields(v) {
			id := df.WordEncoding.Intern(word)
			idx[id] = append(idx[id], i)
		}
	}
	df.wordIndex[c.Name()] = idx
}

// HasJK reports whether jk is a registered join-key column name.
func (df *DataFrame) HasJK(jk string) bool {
	df.mu.RLock()
	defer df.mu.RUnlock()
	_, ok := df.joinKeys[jk]
	return ok
}

// FindJK returns the ascending row positions holding value val in
// join-key column jk. Deviation from spec.md §4.B's literal "(iter,
// iter)" signature: a single ascending slice captures the same
// information a begin/end iterator pair would, without exposing an
// iterator protocol Go doesn't have; ok is false if jk is unknown.
func (df *DataFrame) FindJK(jk string, val int64) (rows []int, ok bool) {
	df.mu.RLock()
	defer df.mu.RUnlock()
	idx, known := df.joinIndex[jk]
	if !known {
		return nil, false
	}
	rows, ok = idx[val]
	return rows, ok
}

// WordRows returns the ascending row positions of column textCol whose
// tokens include the interned word id.
func (df *DataFrame) WordRows(textCol string, wordID int64) []int {
	df.mu.RLock()
	defer df.mu.RUnlock()
	return df.wordIndex[textCol][wordID]
}

// Append appends other's rows onto df. Per spec.md §4.B, it requires
// identical role-wise column counts and identical join-key/time-stamp
// counts; columns are matched by name.
func (df *DataFrame) Append(other *DataFrame) error {
	df.mu.Lock()
	defer df.mu.Unlock()
	other.mu.RLock()
	defer other.mu.RUnlock()

	if len(df.numOrder) != len(other.numOrder) || len(df.discOrder) != len(other.discOrder) ||
		len(df.catOrder) != len(other.catOrder) || len(df.jkOrder) != len(other.jkOrder) ||
		len(df.tsOrder) != len(other.tsOrder) || len(df.textOrder) != len(other.textOrder) ||
		len(df.targetOrder) != len(other.targetOrder) {
		return engineerr.New(engineerr.InvalidArgument, "append: role-wise column counts differ")
	}

	if err := appendRole(df.numerical, other.numerical); err != nil {
		return err
	}
	if err := appendRole(df.discrete, other.discrete); err != nil {
		return err
	}
	if err := appendRole(df.categorical, other.categorical); err != nil {
		return err
	}
	if err := appendRole(df.timeStamps, other.timeStamps); err != nil {
		return err
	}
	if err := appendRole(df.target, other.target); err != nil {
		return err
	}
	base := df.nrows
	if err := appendRole(df.text, other.text); err != nil {
		return err
	}
	if err := appendRole(df.joinKeys, other.joinKeys); err != nil {
		return err
	}
	df.nrows += other.nrows

	// Rebuild incremental indexes over the newly appended range only.
	for name, c := range df.joinKeys {
		idx := df.joinIndex[name]
		if idx == nil {
			idx = make(map[int64][]int)
			df.joinIndex[name] = idx
		}
		for i := base; i < c.Len(); i++ {
			idx[c.MustAt(i)] = append(idx[c.MustAt(i)], i)
		}
	}
	for name, c := range df.text {
		idx := df.wordIndex[name]
		if idx == nil {
			idx = make(map[int64][]int)
			df.wordIndex[name] = idx
		}
		for i := base; i < c.Len(); i++ {
			for _, word := range strings.Fields(c.MustAt(i)) {
				id := df.WordEncoding.Intern(word)
				idx[id] = append(idx[id], i)
			}
		}
	}
	return nil
}

func appendRole[T column.Type](dst, src map[string]*column.Column[T]) error {
	for name, d := range dst {
		s, ok := src[name]
		if !ok {
			return engineerr.Newf(engineerr.InvalidArgument, "append: column %q missing from source", name)
		}
		if err := d.AppendColumn(s); err != nil {
			return err
		}
	}
	return nil
}

// SortedRowsByTimeStamp returns all row indices ordered ascending by the
// named time-stamp column, using a stable sort (ties keep original row
// order) — the ordering the Matchmaker relies on for deterministic
// candidate emission.
func (df *DataFrame) SortedRowsByTimeStamp(tsCol string) ([]int, error) {
	c, err := df.TimeStamp(tsCol)
	if err != nil {
		return nil, err
	}
	rows := make([]int, c.Len())
	for i := range rows {
		rows[i] = i
	}
	sort.SliceStable(rows, func(a, b int) bool { return c.MustAt(rows[a]) < c.MustAt(rows[b]) })
	return rows, nil
}
