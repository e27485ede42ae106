// Package loss implements the engine's second-order loss function
// (spec.md §4.G): per-sample gradient/hessian, running sums, the
// closed-form two- and three-partition weight solves, and the
// commit/revert snapshot bookkeeping that keeps the boosting loop's
// state consistent across discarded candidate trees.
//
// Grounded on the teacher's multi-step validation pipeline idiom
// (validateRequiredFields -> ... -> return err): each solve method here
// is a short sequence of named steps with early returns on numerical
// failure, the same shape as the teacher's chained Validate helpers.
// No pack repo performs numerical linear algebra, so the 3x3 solve uses
// stdlib math only (see DESIGN.md).
package loss

import (
	"math"

	"relfit/internal/engineerr"
)

// Task selects the gradient/hessian formula (spec.md §4.G).
type Task int

const (
	Regression Task = iota
	Classification
)

// Function tracks per-row gradients, hessians, and predictions for one
// boosting target, plus the running sums used by the weight solves.
type Function struct {
	task Task

	y    []float64
	yhat []float64
	g    []float64
	h    []float64

	lambda float64

	committedYhat []float64
	commitCount   int
}

// New creates a Function over target y with initial predictions yhat0
// (typically the intercept-only prediction before any tree is fit).
// lambda is the L2 regularization coefficient applied in every weight
// solve.
func New(task Task, y []float64, yhat0 []float64, lambda float64) (*Function, error) {
	if len(y) != len(yhat0) {
		return nil, engineerr.Newf(engineerr.InvalidArgument, "loss: len(y)=%d != len(yhat0)=%d", len(y), len(yhat0))
	}
	f := &Function{
		task:   task,
		y:      append([]float64(nil), y...),
		yhat:   append([]float64(nil), yhat0...),
		lambda: lambda,
	}
	f.g = make([]float64, len(y))
	f.h = make([]float64, len(y))
	f.recompute()
	f.committedYhat = append([]float64(nil), f.yhat...)
	return f, nil
}

func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

func (f *Function) recompute() {
	for i, yi := range f.y {
		switch f.task {
		case Classification:
			p := sigmoid(f.yhat[i])
			f.g[i] = p - yi
			f.h[i] = p * (1 - p)
		default:
			f.g[i] = f.yhat[i] - yi
			f.h[i] = 1
		}
	}
}

// Gradient, Hessian and YHat return the current g, h and yhat value
// for a single row, not a copy of the whole vector.
func (f *Function) Gradient(row int) float64 { return f.g[row] }
func (f *Function) Hessian(row int) float64  { return f.h[row] }
func (f *Function) YHat(row int) float64     { return f.yhat[row] }

// Len returns the number of rows (population-table rows) this Function
// tracks predictions for.
func (f *Function) Len() int { return len(f.y) }

// Lambda returns the L2 regularization coefficient every weight solve
// applies.
func (f *Function) Lambda() float64 { return f.lambda }

// sums accumulates Sigma(g), Sigma(h) over an index set.
func (f *Function) sums(rows []int) (sumG, sumH float64) {
	for _, r := range rows {
		sumG += f.g[r]
		sumH += f.h[r]
	}
	return sumG, sumH
}

// TwoPartitionWeights solves the closed-form weight for a single
// partition: w = -Sigma(g) / (Sigma(h) + lambda) (spec.md §4.G sign
// convention: the weight reduces loss, so it is the negative of the
// gradient-over-hessian ratio).
func (f *Function) TwoPartitionWeights(rows []int) float64 {
	sumG, sumH := f.sums(rows)
	return -sumG / (sumH + f.lambda)
}

// Reduction returns the loss reduction from applying weight w over
// rows, net of the L2 regularization term scaled by lambda (spec.md
// §4.F step 2: "include an L2 regularization term scaled by lambda").
func (f *Function) Reduction(rows []int, w float64) float64 {
	sumG, sumH := f.sums(rows)
	gain := -(sumG*w + 0.5*(sumH+f.lambda)*w*w)
	return gain
}

// ThreePartitionWeights solves the 3x3 system for (wIntercept, wGreater,
// wSmaller) arising from a split with an explicit "inside window"
// middle partition (spec.md §4.G). rows partitions pre, inside, post.
// avgFirstNull/avgSecondNull force the corresponding non-intercept
// weight to NaN and fall back to a 2x2 solve, per the spec's
// avg_first_null/avg_second_null corner case.
func (f *Function) ThreePartitionWeights(pre, inside, post []int, avgFirstNull, avgSecondNull bool) (wIntercept, wGreater, wSmaller float64, err error) {
	gPre, hPre := f.sums(pre)
	gIn, hIn := f.sums(inside)
	gPost, hPost := f.sums(post)

	if avgFirstNull && avgSecondNull {
		return 0, math.NaN(), math.NaN(), nil
	}
	if avgFirstNull {
		// Solve the 2x2 system over (intercept, post) only; "greater"
		// (pre) is forced to NaN.
		wIntercept, wSmaller, err = solve2x2(gIn+gPre, hIn+hPre, gPost, hPost, f.lambda)
		return wIntercept, math.NaN(), wSmaller, err
	}
	if avgSecondNull {
		wIntercept, wGreater, err = solve2x2(gIn+gPost, hIn+hPost, gPre, hPre, f.lambda)
		return wIntercept, wGreater, math.NaN(), err
	}

	// Full 3x3 symmetric positive-definite system: the intercept
	// partition is "inside", and the two flanking partitions each get
	// their own weight added on top of the intercept.
	a := [3][3]float64{
		{hIn + hPre + hPost + f.lambda, hPre, hPost},
		{hPre, hPre + f.lambda, 0},
		{hPost, 0, hPost + f.lambda},
	}
	b := [3]float64{-(gIn + gPre + gPost), -gPre, -gPost}

	x, residual, solveErr := solveLU3(a, b)
	if solveErr != nil {
		return 0, 0, 0, solveErr
	}
	if residual > 1e-10 {
		return 0, 0, 0, engineerr.Newf(engineerr.NumericalFailure, "loss: three-partition solve residual %.3e exceeds tolerance", residual)
	}
	return x[0], x[1], x[2], nil
}

// solve2x2 solves the symmetric 2x2 system arising when one
// three-partition weight is forced to NaN:
//
//	[h0+lambda   0      ] [wIntercept]   [-g0]
//	[0           h1+lambda] [w]          = [-g1]
func solve2x2(g0, h0, g1, h1, lambda float64) (wIntercept, w float64, err error) {
	d0 := h0 + lambda
	d1 := h1 + lambda
	if d0 == 0 || d1 == 0 {
		return 0, 0, engineerr.New(engineerr.NumericalFailure, "loss: singular 2x2 system (zero diagonal)")
	}
	return -g0 / d0, -g1 / d1, nil
}

// solveLU3 solves a x = b for a 3x3 matrix via LU decomposition with
// partial pivoting, returning the relative residual |a*x - b| / |b|.
func solveLU3(a [3][3]float64, b [3]float64) (x [3]float64, residual float64, err error) {
	const n = 3
	lu := a
	bb := b
	piv := [n]int{0, 1, 2}

	for k := 0; k < n; k++ {
		maxRow, maxVal := k, math.Abs(lu[k][k])
		for i := k + 1; i < n; i++ {
			if v := math.Abs(lu[i][k]); v > maxVal {
				maxRow, maxVal = i, v
			}
		}
		if maxVal < 1e-15 {
			return x, 0, engineerr.New(engineerr.NumericalFailure, "loss: singular 3x3 system")
		}
		if maxRow != k {
			lu[k], lu[maxRow] = lu[maxRow], lu[k]
			bb[k], bb[maxRow] = bb[maxRow], bb[k]
			piv[k], piv[maxRow] = piv[maxRow], piv[k]
		}
		for i := k + 1; i < n; i++ {
			factor := lu[i][k] / lu[k][k]
			lu[i][k] = factor
			for j := k + 1; j < n; j++ {
				lu[i][j] -= factor * lu[k][j]
			}
			bb[i] -= factor * bb[k]
		}
	}

	for i := n - 1; i >= 0; i-- {
		sum := bb[i]
		for j := i + 1; j < n; j++ {
			sum -= lu[i][j] * x[j]
		}
		x[i] = sum / lu[i][i]
	}

	var residualNum, residualDen float64
	for i := 0; i < n; i++ {
		var rowSum float64
		for j := 0; j < n; j++ {
			rowSum += a[i][j] * x[j]
		}
		residualNum += (rowSum - b[i]) * (rowSum - b[i])
		residualDen += b[i] * b[i]
	}
	if residualDen == 0 {
		residual = math.Sqrt(residualNum)
	} else {
		residual = math.Sqrt(residualNum / residualDen)
	}
	return x, residual, nil
}

// Commit snapshots the current prediction vector. A later RevertToCommit
// restores this exact snapshot.
func (f *Function) Commit() {
	f.committedYhat = append(f.committedYhat[:0], f.yhat...)
	f.commitCount++
}

// RevertToCommit restores yhat (and the derived g/h) to the last
// Commit snapshot, discarding any updates made since.
func (f *Function) RevertToCommit() {
	copy(f.yhat, f.committedYhat)
	f.recompute()
}

// ApplyUpdate adds delta to yhat[row] for every row in rows and
// recomputes g/h. Used when a candidate tree's leaf weight is applied
// to its matched rows before a Commit or RevertToCommit decision.
func (f *Function) ApplyUpdate(rows []int, delta float64) {
	for _, r := range rows {
		f.yhat[r] += delta
	}
	f.recompute()
}

// ApplyUpdateVector adds a per-row delta (already scaled by the update
// rate) to yhat and recomputes g/h once. Used by internal/boosting,
// where a committed tree's contribution varies row to row.
func (f *Function) ApplyUpdateVector(delta []float64) {
	for r, d := range delta {
		f.yhat[r] += d
	}
	f.recompute()
}

// UpdateRate computes eta = -Sigma(g*deltaYHat) / Sigma(h*deltaYHat^2)
// for a candidate tree's raw per-row contribution deltaYHat (spec.md
// §4.G "update rate"), used to scale the tree before adding it to the
// ensemble.
func (f *Function) UpdateRate(deltaYHat []float64) (float64, error) {
	if len(deltaYHat) != len(f.g) {
		return 0, engineerr.Newf(engineerr.InvalidArgument, "loss: update rate: len(deltaYHat)=%d != %d", len(deltaYHat), len(f.g))
	}
	var num, den float64
	for i, d := range deltaYHat {
		num += f.g[i] * d
		den += f.h[i] * d * d
	}
	if den == 0 {
		return 0, engineerr.New(engineerr.NumericalFailure, "loss: update rate: zero denominator")
	}
	return -num / den, nil
}
