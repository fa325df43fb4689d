package pipeline

import (
	"image/color"
	"math"
	"os"

	"car-sales-pipeline/internal/config"
	"car-sales-pipeline/internal/model"
	"car-sales-pipeline/pkg/log"
	"car-sales-pipeline/pkg/utils"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"github.com/pkg/errors"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
)

var (
	chartBackground = color.White
	chartInk        = color.RGBA{R: 0x33, G: 0x33, B: 0x33, A: 0xff}
	chartGrid       = color.RGBA{R: 0xdd, G: 0xdd, B: 0xdd, A: 0xff}
	chartPalette    = []color.RGBA{
		{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff},
		{R: 0xff, G: 0x7f, B: 0x0e, A: 0xff},
		{R: 0x2c, G: 0xa0, B: 0x2c, A: 0xff},
		{R: 0xd6, G: 0x27, B: 0x28, A: 0xff},
		{R: 0x94, G: 0x67, B: 0xbd, A: 0xff},
		{R: 0x8c, G: 0x56, B: 0x4b, A: 0xff},
		{R: 0xe3, G: 0x77, B: 0xc2, A: 0xff},
		{R: 0x7f, G: 0x7f, B: 0x7f, A: 0xff},
		{R: 0xbc, G: 0xbd, B: 0x22, A: 0xff},
		{R: 0x17, G: 0xbe, B: 0xcf, A: 0xff},
	}
)

const chartMargin = 60.0

// ChartRenderer draws the three summary charts as PNG files.
type ChartRenderer struct {
	width  int
	height int
	face   font.Face
	om     *utils.OutputManager
	log    log.Logger
}

// NewChartRenderer builds a renderer. Without a font path the built-in
// 7x13 bitmap face is used.
func NewChartRenderer(cfg config.Charts, logger log.Logger) (*ChartRenderer, error) {
	face := font.Face(basicfont.Face7x13)
	if cfg.FontPath != "" {
		f, err := loadFontFace(cfg.FontPath, cfg.FontSize)
		if err != nil {
			return nil, err
		}
		face = f
	}
	return &ChartRenderer{
		width:  cfg.Width,
		height: cfg.Height,
		face:   face,
		om:     utils.NewOutputManager(),
		log:    logger,
	}, nil
}

func loadFontFace(fontPath string, size float64) (font.Face, error) {
	fontBytes, err := os.ReadFile(fontPath)
	if err != nil {
		return nil, errors.Wrap(err, "read font file")
	}
	parsed, err := truetype.Parse(fontBytes)
	if err != nil {
		return nil, errors.Wrap(err, "parse ttf")
	}
	return truetype.NewFace(parsed, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	}), nil
}

// RenderAll draws the region bar chart from the KPI rows, the monthly line
// chart and the model pie chart.
func (r *ChartRenderer) RenderAll(cfg *config.Config, kpis []model.RegionSummary, s model.Summaries) error {
	labels := make([]string, len(kpis))
	values := make([]float64, len(kpis))
	for i, k := range kpis {
		labels[i], values[i] = k.Region, k.TotalSales
	}
	if err := r.BarChart(cfg.RegionChartPath(), "Total Sales by Region", labels, values); err != nil {
		return err
	}

	labels = make([]string, len(s.ByMonth))
	values = make([]float64, len(s.ByMonth))
	for i, m := range s.ByMonth {
		labels[i], values[i] = m.Label(), m.TotalSales
	}
	if err := r.LineChart(cfg.TrendsChartPath(), "Monthly Sales Trends", labels, values); err != nil {
		return err
	}

	labels = make([]string, len(s.ByModel))
	values = make([]float64, len(s.ByModel))
	for i, m := range s.ByModel {
		labels[i], values[i] = m.Model, m.TotalSales
	}
	return r.PieChart(cfg.ModelChartPath(), "Sales Share by Model", labels, values)
}

// BarChart draws one vertical bar per label.
func (r *ChartRenderer) BarChart(path, title string, labels []string, values []float64) error {
	dc := r.canvas(title)
	if len(values) == 0 {
		r.noData(dc)
		return r.save(dc, path)
	}

	lo, hi := valueRange(values)
	plotW := float64(r.width) - 2*chartMargin
	plotH := float64(r.height) - 2*chartMargin
	y := func(v float64) float64 {
		return chartMargin + plotH*(hi-v)/(hi-lo)
	}
	r.axes(dc, y(0))

	slot := plotW / float64(len(values))
	barW := slot * 0.7
	for i, v := range values {
		x := chartMargin + slot*float64(i) + (slot-barW)/2
		top, bottom := y(v), y(0)
		if top > bottom {
			top, bottom = bottom, top
		}
		dc.SetColor(chartPalette[0])
		dc.DrawRectangle(x, top, barW, bottom-top)
		dc.Fill()

		dc.SetColor(chartInk)
		dc.DrawStringAnchored(utils.FormatFloat(v), x+barW/2, top-8, 0.5, 0)
		dc.DrawStringAnchored(labels[i], x+barW/2, float64(r.height)-chartMargin+16, 0.5, 0.5)
	}
	return r.save(dc, path)
}

// LineChart draws values as a polyline with a marker per point.
func (r *ChartRenderer) LineChart(path, title string, labels []string, values []float64) error {
	dc := r.canvas(title)
	if len(values) == 0 {
		r.noData(dc)
		return r.save(dc, path)
	}

	lo, hi := valueRange(values)
	plotW := float64(r.width) - 2*chartMargin
	plotH := float64(r.height) - 2*chartMargin
	y := func(v float64) float64 {
		return chartMargin + plotH*(hi-v)/(hi-lo)
	}
	x := func(i int) float64 {
		if len(values) == 1 {
			return chartMargin + plotW/2
		}
		return chartMargin + plotW*float64(i)/float64(len(values)-1)
	}
	r.axes(dc, y(0))

	dc.SetColor(chartPalette[0])
	dc.SetLineWidth(2)
	for i, v := range values {
		if i == 0 {
			dc.MoveTo(x(i), y(v))
		} else {
			dc.LineTo(x(i), y(v))
		}
	}
	dc.Stroke()

	for i, v := range values {
		dc.SetColor(chartPalette[0])
		dc.DrawCircle(x(i), y(v), 4)
		dc.Fill()

		dc.SetColor(chartInk)
		dc.DrawStringAnchored(utils.FormatFloat(v), x(i), y(v)-10, 0.5, 0)
		dc.DrawStringAnchored(labels[i], x(i), float64(r.height)-chartMargin+16, 0.5, 0.5)
	}
	return r.save(dc, path)
}

// PieChart draws each positive value as a slice of the whole, with a legend.
func (r *ChartRenderer) PieChart(path, title string, labels []string, values []float64) error {
	dc := r.canvas(title)

	var total float64
	for _, v := range values {
		if v > 0 {
			total += v
		}
	}
	if total == 0 {
		r.noData(dc)
		return r.save(dc, path)
	}

	radius := math.Min(float64(r.width)*0.6, float64(r.height)-2*chartMargin) / 2
	cx := chartMargin + radius
	cy := float64(r.height) / 2
	legendX := cx + radius + 40

	angle := -math.Pi / 2
	slot := 0
	for i, v := range values {
		if v <= 0 {
			continue
		}
		sweep := 2 * math.Pi * v / total
		c := chartPalette[slot%len(chartPalette)]

		dc.SetColor(c)
		dc.MoveTo(cx, cy)
		dc.DrawArc(cx, cy, radius, angle, angle+sweep)
		dc.ClosePath()
		dc.Fill()

		ly := chartMargin + float64(slot)*22
		dc.DrawRectangle(legendX, ly, 14, 14)
		dc.Fill()
		dc.SetColor(chartInk)
		share := utils.FormatFloat(math.Round(1000*v/total) / 10)
		dc.DrawStringAnchored(labels[i]+" ("+share+"%)", legendX+22, ly+7, 0, 0.5)

		angle += sweep
		slot++
	}
	return r.save(dc, path)
}

func (r *ChartRenderer) canvas(title string) *gg.Context {
	dc := gg.NewContext(r.width, r.height)
	dc.SetColor(chartBackground)
	dc.Clear()
	dc.SetFontFace(r.face)
	dc.SetColor(chartInk)
	dc.DrawStringAnchored(title, float64(r.width)/2, chartMargin/2, 0.5, 0.5)
	return dc
}

func (r *ChartRenderer) axes(dc *gg.Context, baseline float64) {
	left, right := chartMargin, float64(r.width)-chartMargin
	dc.SetColor(chartGrid)
	dc.SetLineWidth(1)
	dc.DrawLine(left, chartMargin, left, float64(r.height)-chartMargin)
	dc.DrawLine(left, baseline, right, baseline)
	dc.Stroke()
}

func (r *ChartRenderer) noData(dc *gg.Context) {
	dc.SetColor(chartInk)
	dc.DrawStringAnchored("no data", float64(r.width)/2, float64(r.height)/2, 0.5, 0.5)
}

func (r *ChartRenderer) save(dc *gg.Context, path string) error {
	file, err := r.om.Create(path)
	if err != nil {
		return newStageError(StageCharts, path, ErrUnwritableOutput, err)
	}
	defer file.Close()

	if err := dc.EncodePNG(file); err != nil {
		return newStageError(StageCharts, path, ErrUnwritableOutput, errors.Wrap(err, "encode png"))
	}
	if err := file.Close(); err != nil {
		return newStageError(StageCharts, path, ErrUnwritableOutput, errors.Wrap(err, "close png"))
	}
	logWritten(r.log, r.om, path, "chart written", nil)
	return nil
}

// valueRange returns the plotted range, always including zero and never empty.
func valueRange(values []float64) (lo, hi float64) {
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if hi == lo {
		hi = lo + 1
	}
	// headroom for value labels
	hi += (hi - lo) * 0.1
	return lo, hi
}
