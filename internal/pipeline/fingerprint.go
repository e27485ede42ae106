package pipeline

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash"
	"math"
	"sort"

	"relfit/internal/candidates"
	"relfit/internal/dataframe"
	"relfit/internal/schema"
)

// Fingerprint is a content hash of (schema, data, hyperparameters),
// used as the FE/Pred cache key (spec.md §4.K step 1). Two fits of the
// same schema shape, the same column contents, and the same
// hyperparameters produce the same Fingerprint regardless of process
// or machine, so a cached feature learner can be reused instead of
// refit.
type Fingerprint string

// Compute produces the Fingerprint for one Fit call: schema shape,
// every table's column contents, and the hyperparameters that affect
// what gets fit (spec.md §4.K step 1). Two calls with identical inputs
// always hash to the same value.
func Compute(root *schema.Placeholder, tables map[string]*dataframe.DataFrame, params HyperParams) Fingerprint {
	h := sha256.New()
	fingerprintSchema(h, root)
	fingerprintData(h, tables)
	writeString(h, fmt.Sprintf("hp:agg=%v,subf=%d,share=%v,rr=%t,fi=%d,seed=%d,probe=%d,full=%d,reg=%g,lambda=%g,grid=%g,numtrees=%d,rounds=%d,mindf=%d",
		params.Candidates.Aggregations, params.Candidates.NumSubfeatures, params.Candidates.ShareAggregations,
		params.Candidates.RoundRobin, params.Candidates.FeatureIndex, params.Candidates.Seed,
		params.Boosting.Fitter.MaxLengthProbe, params.Boosting.Fitter.MaxLength, params.Boosting.Fitter.Regularization, params.Boosting.Fitter.Lambda,
		params.Boosting.Fitter.GridFactor, params.Boosting.Fitter.NumTrees, params.Boosting.MaxRounds, params.MinDF))
	return Fingerprint(hex.EncodeToString(h.Sum(nil)))
}

func fingerprintSchema(h hash.Hash, p *schema.Placeholder) {
	writeString(h, "table:"+p.Name)
	children := append([]*schema.Child(nil), p.Children...)
	sort.Slice(children, func(i, j int) bool { return children[i].Table.Name < children[j].Table.Name })
	for _, c := range children {
		writeString(h, fmt.Sprintf("child:%s:%s:%s:%s:%s:%s:%t:%t",
			c.Table.Name, c.PopulationJoinKey, c.PeripheralJoinKey,
			c.PopulationTimeStamp, c.PeripheralTimeStamp, c.UpperTimeStamp,
			c.AllowLaggedTargets, c.Propositionalization))
		fingerprintSchema(h, c.Table)
	}
}

// fingerprintData hashes every column's name and raw bytes, per table,
// in a stable order, so the fingerprint changes whenever the data
// changes but is insensitive to unrelated table-map ordering.
func fingerprintData(h hash.Hash, tables map[string]*dataframe.DataFrame) {
	names := make([]string, 0, len(tables))
	for name := range tables {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		df := tables[name]
		writeString(h, "df:"+name)
		for _, col := range df.NumericalNames() {
			c, _ := df.Numerical(col)
			writeString(h, "num:"+col)
			writeFloats(h, c.Raw())
		}
		for _, col := range df.DiscreteNames() {
			c, _ := df.Discrete(col)
			writeString(h, "disc:"+col)
			writeInts(h, c.Raw())
		}
		for _, col := range df.CategoricalNames() {
			c, _ := df.Categorical(col)
			writeString(h, "cat:"+col)
			writeInts(h, c.Raw())
		}
		for _, col := range df.JoinKeyNames() {
			c, _ := df.JoinKey(col)
			writeString(h, "jk:"+col)
			writeInts(h, c.Raw())
		}
		for _, col := range df.TimeStampNames() {
			c, _ := df.TimeStamp(col)
			writeString(h, "ts:"+col)
			writeFloats(h, c.Raw())
		}
		for _, col := range df.TextNames() {
			c, _ := df.Text(col)
			writeString(h, "text:"+col)
			for _, v := range c.Raw() {
				writeString(h, v)
			}
		}
		for _, col := range df.TargetNames() {
			c, _ := df.Target(col)
			writeString(h, "target:"+col)
			writeFloats(h, c.Raw())
		}
	}
}

func writeString(h hash.Hash, s string) {
	_, _ = h.Write([]byte(s))
	_, _ = h.Write([]byte{0})
}

func writeFloats(h hash.Hash, vs []float64) {
	var buf [8]byte
	for _, v := range vs {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		_, _ = h.Write(buf[:])
	}
}

func writeInts(h hash.Hash, vs []int64) {
	var buf [8]byte
	for _, v := range vs {
		binary.LittleEndian.PutUint64(buf[:], uint64(v))
		_, _ = h.Write(buf[:])
	}
}
