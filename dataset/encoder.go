package dataset

import (
	"sort"
	"strconv"

	"github.com/samber/lo"

	"github.com/YuminosukeSato/modeltrainer/pkg/errors"
)

// LabelEncoder maps string values to consecutive integers in sorted order.
// Values that all parse as numbers sort numerically, otherwise lexically,
// so "0"/"1" labels keep their meaning and "no"/"yes" become 0/1.
type LabelEncoder struct {
	Classes []string
	index   map[string]int
}

// NewLabelEncoder returns an unfitted encoder.
func NewLabelEncoder() *LabelEncoder {
	return &LabelEncoder{}
}

// Fit learns the distinct values.
func (le *LabelEncoder) Fit(values []string) {
	classes := lo.Uniq(values)
	sortValues(classes)

	le.Classes = classes
	le.index = make(map[string]int, len(classes))
	for i, c := range classes {
		le.index[c] = i
	}
}

// Transform encodes values. Unknown values are an error.
func (le *LabelEncoder) Transform(values []string) ([]int, error) {
	if le.index == nil {
		return nil, errors.NewNotFittedError("LabelEncoder", "Transform")
	}
	out := make([]int, len(values))
	for i, v := range values {
		code, ok := le.index[v]
		if !ok {
			return nil, errors.NewValueError("LabelEncoder.Transform", "unknown label "+strconv.Quote(v))
		}
		out[i] = code
	}
	return out, nil
}

// FitTransform fits on values and encodes them.
func (le *LabelEncoder) FitTransform(values []string) ([]int, error) {
	le.Fit(values)
	return le.Transform(values)
}

// InverseTransform maps codes back to the original values.
func (le *LabelEncoder) InverseTransform(codes []int) ([]string, error) {
	out := make([]string, len(codes))
	for i, c := range codes {
		if c < 0 || c >= len(le.Classes) {
			return nil, errors.NewValueError("LabelEncoder.InverseTransform", "unknown code "+strconv.Itoa(c))
		}
		out[i] = le.Classes[c]
	}
	return out, nil
}

func sortValues(values []string) {
	nums := lo.Map(values, func(v string, _ int) float64 {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0
		}
		return f
	})
	numeric := lo.EveryBy(values, func(v string) bool {
		_, err := strconv.ParseFloat(v, 64)
		return err == nil
	})
	if !numeric {
		sort.Strings(values)
		return
	}
	order := make([]int, len(values))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return nums[order[a]] < nums[order[b]] })
	sorted := lo.Map(order, func(i int, _ int) string { return values[i] })
	copy(values, sorted)
}
