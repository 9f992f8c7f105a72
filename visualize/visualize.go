// Package visualize renders evaluation plots to image files.
//
// The output format follows the file extension: .png, .svg or .pdf.
package visualize

import (
	"fmt"
	"image/color"
	"path/filepath"
	"strings"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/palette/brewer"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/text"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/modeltrainer/pkg/errors"
	"github.com/YuminosukeSato/modeltrainer/pkg/log"
)

// SupportedFormats lists the file extensions Save can write.
var SupportedFormats = []string{"png", "svg", "pdf"}

type options struct {
	width, height vg.Length
	title         string
}

// Option configures a rendered plot.
type Option func(*options)

// WithSize sets the canvas size in inches.
func WithSize(width, height float64) Option {
	return func(o *options) {
		o.width = vg.Length(width) * vg.Inch
		o.height = vg.Length(height) * vg.Inch
	}
}

// WithTitle overrides the default title.
func WithTitle(title string) Option {
	return func(o *options) { o.title = title }
}

func newOptions(title string, opts []Option) *options {
	o := &options{width: 6 * vg.Inch, height: 5 * vg.Inch, title: title}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Format returns the lower-case extension of path without the dot, or an
// error when the extension is not one of SupportedFormats.
func Format(path string) (string, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if !lo.Contains(SupportedFormats, ext) {
		return "", errors.NewValidationError("path",
			fmt.Sprintf("unsupported plot format %q (want one of %s)", ext, strings.Join(SupportedFormats, ", ")), path)
	}
	return ext, nil
}

// confusionGrid adapts a confusion matrix to plotter.GridXYZ. Columns are
// predicted classes, rows are true classes with the first class drawn on top.
type confusionGrid struct {
	cm *mat.Dense
}

func (g confusionGrid) Dims() (c, r int) {
	r, c = g.cm.Dims()
	return c, r
}

func (g confusionGrid) Z(c, r int) float64 {
	n, _ := g.cm.Dims()
	return g.cm.At(n-1-r, c)
}

func (g confusionGrid) X(c int) float64 { return float64(c) }
func (g confusionGrid) Y(r int) float64 { return float64(r) }

// ConfusionMatrix draws cm (rows true, columns predicted) as an annotated
// heatmap and saves it to path.
func ConfusionMatrix(cm *mat.Dense, classNames []string, path string, opts ...Option) error {
	if cm == nil {
		return errors.NewValueError("visualize.ConfusionMatrix", "confusion matrix is nil")
	}
	r, c := cm.Dims()
	if r != c || r != len(classNames) {
		return errors.NewDimensionError("visualize.ConfusionMatrix", len(classNames), r, 0)
	}
	if _, err := Format(path); err != nil {
		return err
	}
	o := newOptions("Confusion Matrix", opts)

	var pal palette.Palette
	pal, err := brewer.GetPalette(brewer.TypeSequential, "Blues", 9)
	if err != nil {
		return errors.Wrap(err, "visualize: palette")
	}

	grid := confusionGrid{cm: cm}
	hm := plotter.NewHeatMap(grid, pal)
	if hm.Min == hm.Max {
		hm.Max = hm.Min + 1
	}
	mid := (hm.Min + hm.Max) / 2

	p := plot.New()
	p.Title.Text = o.title
	p.X.Label.Text = "Predicted label"
	p.Y.Label.Text = "True label"
	p.Add(hm)

	// cell annotations
	n := r
	xys := make(plotter.XYs, 0, n*n)
	labels := make([]string, 0, n*n)
	light := make([]bool, 0, n*n)
	for row := 0; row < n; row++ {
		for col := 0; col < n; col++ {
			v := cm.At(row, col)
			xys = append(xys, plotter.XY{X: float64(col), Y: float64(n - 1 - row)})
			labels = append(labels, fmt.Sprintf("%d", int(v)))
			light = append(light, v > mid)
		}
	}
	annot, err := plotter.NewLabels(plotter.XYLabels{XYs: xys, Labels: labels})
	if err != nil {
		return errors.Wrap(err, "visualize: annotations")
	}
	for i := range annot.TextStyle {
		annot.TextStyle[i].XAlign = text.XCenter
		annot.TextStyle[i].YAlign = text.YCenter
		if light[i] {
			annot.TextStyle[i].Color = color.White
		}
	}
	p.Add(annot)

	xTicks := make([]plot.Tick, n)
	yTicks := make([]plot.Tick, n)
	for i, name := range classNames {
		xTicks[i] = plot.Tick{Value: float64(i), Label: name}
		yTicks[i] = plot.Tick{Value: float64(n - 1 - i), Label: name}
	}
	p.X.Tick.Marker = plot.ConstantTicks(xTicks)
	p.Y.Tick.Marker = plot.ConstantTicks(yTicks)
	p.X.Min, p.X.Max = -0.5, float64(n)-0.5
	p.Y.Min, p.Y.Max = -0.5, float64(n)-0.5

	return save(p, o, path)
}

// ROCCurve draws the ROC curve given by (fpr, tpr) against the no-skill
// diagonal and saves it to path.
func ROCCurve(fpr, tpr []float64, auc float64, path string, opts ...Option) error {
	if len(fpr) != len(tpr) {
		return errors.NewDimensionError("visualize.ROCCurve", len(fpr), len(tpr), 0)
	}
	if len(fpr) < 2 {
		return errors.NewValueError("visualize.ROCCurve", "need at least two points")
	}
	if err := errors.CheckScalar("visualize.ROCCurve", auc); err != nil {
		return err
	}
	if _, err := Format(path); err != nil {
		return err
	}
	o := newOptions("ROC Curve", opts)

	pts := make(plotter.XYs, len(fpr))
	for i := range fpr {
		pts[i] = plotter.XY{X: fpr[i], Y: tpr[i]}
	}
	curve, err := plotter.NewLine(pts)
	if err != nil {
		return errors.Wrap(err, "visualize: roc line")
	}
	curve.LineStyle.Width = vg.Points(2)
	curve.LineStyle.Color = color.RGBA{R: 255, G: 140, A: 255}

	diag, err := plotter.NewLine(plotter.XYs{{X: 0, Y: 0}, {X: 1, Y: 1}})
	if err != nil {
		return errors.Wrap(err, "visualize: baseline")
	}
	diag.LineStyle.Width = vg.Points(2)
	diag.LineStyle.Color = color.RGBA{B: 128, A: 255}
	diag.LineStyle.Dashes = []vg.Length{vg.Points(6), vg.Points(4)}

	p := plot.New()
	p.Title.Text = o.title
	p.X.Label.Text = "False Positive Rate"
	p.Y.Label.Text = "True Positive Rate"
	p.X.Min, p.X.Max = -0.05, 1.05
	p.Y.Min, p.Y.Max = -0.05, 1.05
	p.Add(plotter.NewGrid(), curve, diag)
	p.Legend.Add(fmt.Sprintf("ROC curve (area = %0.2f)", auc), curve)
	p.Legend.Top = false
	p.Legend.Left = false

	return save(p, o, path)
}

func save(p *plot.Plot, o *options, path string) error {
	if err := p.Save(o.width, o.height, path); err != nil {
		return errors.Wrapf(err, "visualize: save %s", path)
	}
	log.GetLoggerWithName("visualize").Info("plot saved",
		log.OperationKey, log.OperationPlot,
		log.PathKey, path,
	)
	return nil
}
