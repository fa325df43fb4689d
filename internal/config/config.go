// Package config loads the pipeline configuration: file-system paths, the
// column lists that drive cleaning, and the ambient settings for logging,
// charts and metrics.
//
// Values come from built-in defaults, an optional YAML file, an optional
// .env file and CARSALES_* environment variables, in increasing priority.
package config

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// CARSALES_PATHS_RAW_DATA.
const EnvPrefix = "CARSALES"

// Output file names inside the export and chart directories.
const (
	SalesByRegionFile      = "sales_by_region.csv"
	SalesByModelFile       = "sales_by_model.csv"
	MonthlySalesTrendsFile = "monthly_sales_trends.csv"

	RegionChartFile = "sales_by_region.png"
	TrendsChartFile = "sales_trends.png"
	ModelChartFile  = "sales_by_model.png"
)

// Config holds every setting of a pipeline run.
type Config struct {
	Paths    Paths    `mapstructure:"paths"`
	Database Database `mapstructure:"database"`
	Cleaning Cleaning `mapstructure:"cleaning"`
	Export   Export   `mapstructure:"export"`
	Charts   Charts   `mapstructure:"charts"`
	Logging  Logging  `mapstructure:"logging"`
	Metrics  Metrics  `mapstructure:"metrics"`
}

// Paths locates the raw input and the fixed output files.
type Paths struct {
	RawData     string `mapstructure:"raw_data"`
	CleanedData string `mapstructure:"cleaned_data"`
	KPIOutput   string `mapstructure:"kpi_output"`
	ExportDir   string `mapstructure:"export_dir"`
	ChartsDir   string `mapstructure:"charts_dir"`
}

// Database names the SQLite file and the table the cleaned rows go to.
type Database struct {
	Path  string `mapstructure:"path"`
	Table string `mapstructure:"table"`
}

// Cleaning controls which rows survive and how cells are coerced.
type Cleaning struct {
	CriticalColumns []string `mapstructure:"critical_columns"`
	NumericColumns  []string `mapstructure:"numeric_columns"`
	// DateLayouts overrides the built-in date layouts when non-empty.
	DateLayouts []string `mapstructure:"date_layouts"`
	// DropUncoercibleNumeric drops rows whose numeric cells became NULL
	// during coercion. Off by default.
	DropUncoercibleNumeric bool `mapstructure:"drop_uncoercible_numeric"`
	// Sheet selects the worksheet when the raw input is an xlsx workbook.
	Sheet string `mapstructure:"sheet"`
}

// Export holds optional extra outputs.
type Export struct {
	// WorkbookPath, when set, receives an xlsx copy of the aggregates.
	WorkbookPath string `mapstructure:"workbook_path"`
}

// Charts sizes the rendered PNGs. FontPath, when set, points at a TrueType
// font used instead of the built-in face.
type Charts struct {
	Width    int     `mapstructure:"width"`
	Height   int     `mapstructure:"height"`
	FontPath string  `mapstructure:"font_path"`
	FontSize float64 `mapstructure:"font_size"`
}

// Logging selects the logrus level and the text or json formatter.
type Logging struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Metrics configures the Prometheus textfile written after each run.
type Metrics struct {
	TextfilePath string `mapstructure:"textfile_path"`
}

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func setDefaults(v *viper.Viper) {
	v.SetDefault("paths.raw_data", "data/raw_sales.csv")
	v.SetDefault("paths.cleaned_data", "data/cleaned_sales.csv")
	v.SetDefault("paths.kpi_output", "data/kpi_results.csv")
	v.SetDefault("paths.export_dir", "data/tableau_datasets")
	v.SetDefault("paths.charts_dir", "data/visualizations")

	v.SetDefault("database.path", "data/sales_database.db")
	v.SetDefault("database.table", "sales_data")

	v.SetDefault("cleaning.critical_columns", []string{"region", "model", "sales", "revenue", "date"})
	v.SetDefault("cleaning.numeric_columns", []string{"sales", "revenue"})
	v.SetDefault("cleaning.date_layouts", []string{})
	v.SetDefault("cleaning.drop_uncoercible_numeric", false)
	v.SetDefault("cleaning.sheet", "")

	v.SetDefault("export.workbook_path", "")

	v.SetDefault("charts.width", 1000)
	v.SetDefault("charts.height", 600)
	v.SetDefault("charts.font_path", "")
	v.SetDefault("charts.font_size", 14)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	v.SetDefault("metrics.textfile_path", "")
}

// Load builds a Config. configFile may be empty; envFile is loaded when it
// exists and ignored otherwise.
func Load(configFile, envFile string) (*Config, error) {
	if envFile != "" {
		// A missing .env is the normal case outside development.
		_ = godotenv.Load(envFile)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	cfg := &Config{}
	err := v.Unmarshal(cfg, viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	))
	if err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration without consulting files or
// the environment.
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	cfg := &Config{}
	// Defaults are static and always decode.
	_ = v.Unmarshal(cfg)
	cfg.normalize()
	return cfg
}

// normalize lower-cases and trims column names so the cleaner can match
// them against normalized headers.
func (c *Config) normalize() {
	c.Cleaning.CriticalColumns = normalizeColumns(c.Cleaning.CriticalColumns)
	c.Cleaning.NumericColumns = normalizeColumns(c.Cleaning.NumericColumns)
}

func normalizeColumns(cols []string) []string {
	out := make([]string, 0, len(cols))
	for _, c := range cols {
		c = strings.ToLower(strings.TrimSpace(c))
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}

// Validate checks that every required setting is usable.
func (c *Config) Validate() error {
	required := map[string]string{
		"paths.raw_data":     c.Paths.RawData,
		"paths.cleaned_data": c.Paths.CleanedData,
		"paths.kpi_output":   c.Paths.KPIOutput,
		"paths.export_dir":   c.Paths.ExportDir,
		"paths.charts_dir":   c.Paths.ChartsDir,
		"database.path":      c.Database.Path,
	}
	for key, val := range required {
		if strings.TrimSpace(val) == "" {
			return fmt.Errorf("%s must not be empty", key)
		}
	}

	if !tableNamePattern.MatchString(c.Database.Table) {
		return fmt.Errorf("database.table %q is not a valid identifier", c.Database.Table)
	}

	if len(c.Cleaning.CriticalColumns) == 0 {
		return fmt.Errorf("cleaning.critical_columns must not be empty")
	}
	for _, col := range []string{"region", "model", "sales", "revenue", "date"} {
		if !contains(c.Cleaning.CriticalColumns, col) {
			return fmt.Errorf("cleaning.critical_columns must include %q", col)
		}
	}

	if c.Charts.Width <= 0 || c.Charts.Height <= 0 {
		return fmt.Errorf("charts.width and charts.height must be positive")
	}

	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// SalesByRegionPath is the region aggregate export.
func (c *Config) SalesByRegionPath() string {
	return filepath.Join(c.Paths.ExportDir, SalesByRegionFile)
}

// SalesByModelPath is the model aggregate export.
func (c *Config) SalesByModelPath() string {
	return filepath.Join(c.Paths.ExportDir, SalesByModelFile)
}

// MonthlySalesTrendsPath is the month aggregate export.
func (c *Config) MonthlySalesTrendsPath() string {
	return filepath.Join(c.Paths.ExportDir, MonthlySalesTrendsFile)
}

// RegionChartPath is the region bar chart.
func (c *Config) RegionChartPath() string {
	return filepath.Join(c.Paths.ChartsDir, RegionChartFile)
}

// TrendsChartPath is the monthly sales line chart.
func (c *Config) TrendsChartPath() string {
	return filepath.Join(c.Paths.ChartsDir, TrendsChartFile)
}

// ModelChartPath is the model share pie chart.
func (c *Config) ModelChartPath() string {
	return filepath.Join(c.Paths.ChartsDir, ModelChartFile)
}

// UnderDir returns a copy of the config with every relative output and
// input path rooted at dir. Absolute paths are left alone.
func (c *Config) UnderDir(dir string) *Config {
	out := *c
	root := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}
	out.Paths.RawData = root(c.Paths.RawData)
	out.Paths.CleanedData = root(c.Paths.CleanedData)
	out.Paths.KPIOutput = root(c.Paths.KPIOutput)
	out.Paths.ExportDir = root(c.Paths.ExportDir)
	out.Paths.ChartsDir = root(c.Paths.ChartsDir)
	out.Database.Path = root(c.Database.Path)
	out.Export.WorkbookPath = root(c.Export.WorkbookPath)
	out.Metrics.TextfilePath = root(c.Metrics.TextfilePath)
	return &out
}
