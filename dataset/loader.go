// Package dataset loads tabular binary-classification data and partitions it
// into reproducible training and test subsets.
package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/samber/lo"
	"github.com/xuri/excelize/v2"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/modeltrainer/pkg/errors"
	"github.com/YuminosukeSato/modeltrainer/pkg/log"
)

// Dataset is a loaded table with the identifier column removed.
type Dataset struct {
	// FeatureNames are the header names of the feature columns, in order.
	FeatureNames []string
	LabelName    string

	// X is the n×d feature matrix.
	X *mat.Dense
	// Y holds the encoded label of each row: the index into ClassNames.
	Y *mat.VecDense

	// ClassNames are the two distinct label values in sorted order. Index 1
	// is the positive class.
	ClassNames []string

	// Encoders holds the ordinal encoder of every non-numeric feature column.
	Encoders map[string]*LabelEncoder
}

// NSamples returns the number of rows.
func (d *Dataset) NSamples() int {
	r, _ := d.X.Dims()
	return r
}

// NFeatures returns the number of feature columns.
func (d *Dataset) NFeatures() int {
	_, c := d.X.Dims()
	return c
}

// Load reads a .csv or .xlsx file with a header row, drops its first column
// and splits the rest into features (all but the last column) and a binary
// label (the last column).
func Load(path string) (*Dataset, error) {
	logger := log.GetLoggerWithName("dataset")

	var (
		df  dataframe.DataFrame
		err error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		df, err = readCSV(path)
	case ".xlsx", ".xlsm":
		df, err = readExcel(path)
	default:
		return nil, errors.NewDataFormatError(path, fmt.Sprintf("unsupported file extension %q", ext), nil)
	}
	if err != nil {
		return nil, err
	}

	ds, err := FromDataFrame(df)
	if err != nil {
		var dfe *errors.DataFormatError
		if errors.As(err, &dfe) && dfe.Path == "" {
			dfe.Path = path
		}
		return nil, err
	}

	logger.Info("dataset loaded",
		log.OperationKey, log.OperationLoad,
		log.PathKey, path,
		log.SamplesKey, ds.NSamples(),
		log.FeaturesKey, ds.NFeatures(),
		log.ClassesKey, ds.ClassNames,
	)
	return ds, nil
}

func readCSV(path string) (dataframe.DataFrame, error) {
	f, err := os.Open(path)
	if err != nil {
		return dataframe.DataFrame{}, errors.NewDataFormatError(path, "cannot open file", err)
	}
	defer f.Close()

	df := dataframe.ReadCSV(f, dataframe.HasHeader(true), dataframe.DetectTypes(true))
	if df.Err != nil {
		return df, errors.NewDataFormatError(path, "cannot parse csv", df.Err)
	}
	return df, nil
}

func readExcel(path string) (dataframe.DataFrame, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return dataframe.DataFrame{}, errors.NewDataFormatError(path, "cannot open workbook", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return dataframe.DataFrame{}, errors.NewDataFormatError(path, "workbook has no sheets", nil)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return dataframe.DataFrame{}, errors.NewDataFormatError(path, "cannot read sheet "+sheets[0], err)
	}
	// GetRows trims trailing empty cells and may return blank rows.
	rows = lo.Filter(rows, func(row []string, _ int) bool {
		return lo.SomeBy(row, func(cell string) bool { return strings.TrimSpace(cell) != "" })
	})
	if len(rows) == 0 {
		return dataframe.DataFrame{}, errors.NewDataFormatError(path, "sheet is empty", nil)
	}
	width := len(rows[0])
	for i, row := range rows {
		if len(row) > width {
			return dataframe.DataFrame{}, errors.NewDataFormatError(path,
				fmt.Sprintf("row %d has %d cells, header has %d", i+1, len(row), width), nil)
		}
		for len(row) < width {
			row = append(row, "")
		}
		rows[i] = row
	}

	df := dataframe.LoadRecords(rows, dataframe.HasHeader(true), dataframe.DetectTypes(true))
	if df.Err != nil {
		return df, errors.NewDataFormatError(path, "cannot build table", df.Err)
	}
	return df, nil
}

// FromDataFrame builds a Dataset from a frame whose first column is an
// identifier and whose last column is the label.
func FromDataFrame(df dataframe.DataFrame) (*Dataset, error) {
	if df.Err != nil {
		return nil, errors.NewDataFormatError("", "invalid table", df.Err)
	}
	if df.Ncol() == 0 {
		return nil, errors.NewDataFormatError("", "table has no columns", nil)
	}
	df = df.Drop(0)
	if df.Err != nil {
		return nil, errors.NewDataFormatError("", "cannot drop identifier column", df.Err)
	}

	names := df.Names()
	if len(names) < 2 {
		return nil, errors.NewDataFormatError("",
			fmt.Sprintf("need at least 2 columns after dropping the identifier, got %d", len(names)), nil)
	}
	n := df.Nrow()
	if n < 2 {
		return nil, errors.NewDataFormatError("", fmt.Sprintf("need at least 2 rows, got %d", n), nil)
	}

	featureNames := names[:len(names)-1]
	labelName := names[len(names)-1]

	ds := &Dataset{
		FeatureNames: featureNames,
		LabelName:    labelName,
		X:            mat.NewDense(n, len(featureNames), nil),
		Encoders:     map[string]*LabelEncoder{},
	}

	for j, name := range featureNames {
		col := df.Col(name)
		values, err := featureValues(name, col)
		if err != nil {
			return nil, err
		}
		if enc, ok := values.encoder(); ok {
			ds.Encoders[name] = enc
		}
		ds.X.SetCol(j, values.data)
	}

	labels := df.Col(labelName).Records()
	if lo.Contains(labels, "") || lo.Contains(labels, "NaN") {
		return nil, errors.NewDataFormatError("", fmt.Sprintf("label column %q has missing values", labelName), nil)
	}
	enc := NewLabelEncoder()
	codes, err := enc.FitTransform(labels)
	if err != nil {
		return nil, errors.NewDataFormatError("", "cannot encode labels", err)
	}
	if len(enc.Classes) != 2 {
		return nil, errors.NewDataFormatError("",
			fmt.Sprintf("label column %q must be binary, found %d distinct values", labelName, len(enc.Classes)), nil)
	}
	ds.ClassNames = enc.Classes
	ds.Y = mat.NewVecDense(n, lo.Map(codes, func(c int, _ int) float64 { return float64(c) }))
	return ds, nil
}

type columnValues struct {
	data []float64
	enc  *LabelEncoder
}

func (c columnValues) encoder() (*LabelEncoder, bool) { return c.enc, c.enc != nil }

func featureValues(name string, col series.Series) (columnValues, error) {
	switch col.Type() {
	case series.Int, series.Float:
		if col.HasNaN() {
			return columnValues{}, errors.NewDataFormatError("",
				fmt.Sprintf("feature column %q has missing values", name), nil)
		}
		return columnValues{data: col.Float()}, nil
	default:
		records := col.Records()
		if lo.Contains(records, "") || lo.Contains(records, "NaN") {
			return columnValues{}, errors.NewDataFormatError("",
				fmt.Sprintf("feature column %q has missing values", name), nil)
		}
		enc := NewLabelEncoder()
		codes, err := enc.FitTransform(records)
		if err != nil {
			return columnValues{}, errors.NewDataFormatError("", "cannot encode column "+name, err)
		}
		return columnValues{
			data: lo.Map(codes, func(c int, _ int) float64 { return float64(c) }),
			enc:  enc,
		}, nil
	}
}
