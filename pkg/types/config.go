// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures and per-stage configuration
// for the scholarextractor pipeline. Configuration values are plain structs
// built once by the CLI and passed into each component constructor.
package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the custom User-Agent mixed into the browser rotation
	// (e.g. "scholarextractor/0.1 (mailto:you@example.org)").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`

	// RequestDelay is the pause before every request after the first.
	RequestDelay time.Duration `json:"request_delay" yaml:"request_delay" mapstructure:"request_delay"`

	// Jitter is the upper bound of the random extra delay added to RequestDelay.
	Jitter time.Duration `json:"jitter" yaml:"jitter" mapstructure:"jitter"`

	// MaxRetries bounds retries on 429 and 5xx responses.
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`
}

// DefaultHTTPConfig returns the polite scraping defaults.
func DefaultHTTPConfig() HTTPConfig {
	return HTTPConfig{
		Timeout:      30 * time.Second,
		UserAgent:    "scholarextractor/0.1",
		RequestDelay: 8 * time.Second,
		Jitter:       500 * time.Millisecond,
		MaxRetries:   3,
	}
}

// ScholarConfig holds settings for the result-page traversal.
type ScholarConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// BaseURL is the search endpoint used by BuildURL.
	BaseURL string `json:"base_url" yaml:"base_url" mapstructure:"base_url"`

	// MaxPages caps the number of result pages followed per search.
	MaxPages int `json:"max_pages" yaml:"max_pages" mapstructure:"max_pages"`

	// SaveEvery checkpoints the working set after this many pages.
	SaveEvery int `json:"save_every" yaml:"save_every" mapstructure:"save_every"`

	// Language is the hl parameter.
	Language string `json:"language" yaml:"language" mapstructure:"language"`
}

// DefaultScholarConfig returns the traversal defaults.
func DefaultScholarConfig() ScholarConfig {
	return ScholarConfig{
		HTTPConfig: DefaultHTTPConfig(),
		BaseURL:    "https://scholar.google.com/scholar",
		MaxPages:   10,
		SaveEvery:  2,
		Language:   "en",
	}
}

// SemanticScholarConfig holds settings for the bulk search API.
type SemanticScholarConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// APIKey raises the rate limit from 1 to 10 requests per second.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// PapersPerQuery is the default result cap per query.
	PapersPerQuery int `json:"papers_per_query" yaml:"papers_per_query" mapstructure:"papers_per_query"`

	// Sort is one of citationCount, publicationDate or paperId.
	Sort string `json:"sort" yaml:"sort" mapstructure:"sort"`

	// MinCitations filters out papers below this count when positive.
	MinCitations int `json:"min_citations" yaml:"min_citations" mapstructure:"min_citations"`
}

// DefaultSemanticScholarConfig returns the bulk search defaults.
func DefaultSemanticScholarConfig() SemanticScholarConfig {
	return SemanticScholarConfig{
		HTTPConfig: HTTPConfig{
			Timeout:    30 * time.Second,
			UserAgent:  "scholarextractor/0.1",
			MaxRetries: 3,
		},
		PapersPerQuery: 100,
		Sort:           "citationCount",
	}
}

// RankingConfig holds the scoring and selection policy.
type RankingConfig struct {
	// ReferenceYear anchors recency scoring. It is a fixed value so that a
	// run is reproducible regardless of the wall clock.
	ReferenceYear int `json:"reference_year" yaml:"reference_year" mapstructure:"reference_year" validate:"min=1900"`

	// RelevanceThreshold is the first-pass relevance filter.
	RelevanceThreshold float64 `json:"relevance_threshold" yaml:"relevance_threshold" mapstructure:"relevance_threshold" validate:"min=0,max=1"`

	// FallbackThreshold is used once when the first pass falls short.
	FallbackThreshold float64 `json:"fallback_threshold" yaml:"fallback_threshold" mapstructure:"fallback_threshold" validate:"min=0,max=1"`

	// Target is the number of papers to select.
	Target int `json:"target" yaml:"target" mapstructure:"target" validate:"min=1"`

	// QualityVenues are case-insensitive venue name fragments worth a bonus.
	QualityVenues []string `json:"quality_venues" yaml:"quality_venues" mapstructure:"quality_venues"`
}

// DefaultQualityVenues is the venue allow-list used for ranking and
// manual-hunt prioritization.
var DefaultQualityVenues = []string{
	"Computers & Education",
	"Computers and Education",
	"IEEE",
	"ACM",
	"SIGCSE",
	"Journal of Educational Technology",
	"Educational Technology & Society",
	"British Journal of Educational Technology",
	"Interactive Learning Environments",
}

// DefaultRankingConfig returns the ranking defaults.
func DefaultRankingConfig() RankingConfig {
	return RankingConfig{
		ReferenceYear:      2025,
		RelevanceThreshold: 0.8,
		FallbackThreshold:  0.5,
		Target:             64,
		QualityVenues:      append([]string(nil), DefaultQualityVenues...),
	}
}

// HuntConfig holds settings for the PDF source hunter.
type HuntConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// Email identifies the caller to Unpaywall (required by its terms).
	Email string `json:"email" yaml:"email" mapstructure:"email"`

	// COREAPIKey is optional; CORE is queried anonymously without it.
	COREAPIKey string `json:"core_api_key,omitempty" yaml:"core_api_key,omitempty" mapstructure:"core_api_key"`

	// SourceDelay separates source lookups for one paper.
	SourceDelay time.Duration `json:"source_delay" yaml:"source_delay" mapstructure:"source_delay"`

	// PaperDelay separates papers in a batch.
	PaperDelay time.Duration `json:"paper_delay" yaml:"paper_delay" mapstructure:"paper_delay"`
}

// DefaultHuntConfig returns the hunter defaults.
func DefaultHuntConfig() HuntConfig {
	return HuntConfig{
		HTTPConfig: HTTPConfig{
			Timeout:   10 * time.Second,
			UserAgent: "scholarextractor/0.1",
		},
		Email:       "researcher@example.com",
		SourceDelay: 500 * time.Millisecond,
		PaperDelay:  1 * time.Second,
	}
}

// DownloadConfig holds settings for fetch-and-verify.
type DownloadConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// PapersDir receives verified PDFs and the download log.
	PapersDir string `json:"papers_dir" yaml:"papers_dir" mapstructure:"papers_dir"`

	// MaxSize is the largest accepted payload in bytes.
	MaxSize int64 `json:"max_size" yaml:"max_size" mapstructure:"max_size"`

	// Strict additionally requires the file to parse as a PDF document.
	Strict bool `json:"strict" yaml:"strict" mapstructure:"strict"`

	// SaveEvery flushes the download log after this many attempts.
	SaveEvery int `json:"save_every" yaml:"save_every" mapstructure:"save_every"`

	// RetryWait is the base pause between retries of server errors.
	RetryWait time.Duration `json:"retry_wait" yaml:"retry_wait" mapstructure:"retry_wait"`
}

// DefaultDownloadConfig returns the download defaults.
func DefaultDownloadConfig() DownloadConfig {
	return DownloadConfig{
		HTTPConfig: HTTPConfig{
			Timeout:      60 * time.Second,
			UserAgent:    "scholarextractor/0.1",
			RequestDelay: 1 * time.Second,
			MaxRetries:   3,
		},
		PapersDir: "data/papers",
		MaxSize:   50 * 1024 * 1024,
		SaveEvery: 10,
		RetryWait: 5 * time.Second,
	}
}

// StorageConfig names the on-disk layout for exports and checkpoints.
type StorageConfig struct {
	// DataDir is the root for everything the pipeline writes.
	DataDir string `json:"data_dir" yaml:"data_dir" mapstructure:"data_dir"`

	// MetadataDir receives JSON/CSV exports.
	MetadataDir string `json:"metadata_dir" yaml:"metadata_dir" mapstructure:"metadata_dir"`

	// LogsDir receives state checkpoints and reports.
	LogsDir string `json:"logs_dir" yaml:"logs_dir" mapstructure:"logs_dir"`

	// BaseName is the export file stem (metadata.json, metadata.csv).
	BaseName string `json:"base_name" yaml:"base_name" mapstructure:"base_name"`

	// IndexPath is the SQLite paper index.
	IndexPath string `json:"index_path" yaml:"index_path" mapstructure:"index_path"`
}

// DefaultStorageConfig returns the default data layout.
func DefaultStorageConfig() StorageConfig {
	return StorageConfig{
		DataDir:     "data",
		MetadataDir: "data/metadata",
		LogsDir:     "data/logs",
		BaseName:    "metadata",
		IndexPath:   "data/index/papers.db",
	}
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	// Level is the minimum level (trace, debug, info, warn, error).
	Level string `json:"level" yaml:"level" mapstructure:"level"`

	// Format is json or console.
	Format string `json:"format" yaml:"format" mapstructure:"format"`

	// Output is stdout or stderr.
	Output string `json:"output" yaml:"output" mapstructure:"output"`
}

// DefaultLoggingConfig returns console logging on stderr at info level.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{Level: "info", Format: "console", Output: "stderr"}
}

// RunConfig holds the query plan for a full pipeline run.
type RunConfig struct {
	Queries []string `json:"queries" yaml:"queries" mapstructure:"queries" validate:"min=1,dive,required"`
	YearMin int      `json:"year_min" yaml:"year_min" mapstructure:"year_min"`
	YearMax int      `json:"year_max" yaml:"year_max" mapstructure:"year_max" validate:"gtefield=YearMin"`

	// UseScholar adds the result-page traversal as a second producer.
	UseScholar bool `json:"use_scholar" yaml:"use_scholar" mapstructure:"use_scholar"`

	// Hunt and Download toggle the acquisition phases.
	Hunt     bool `json:"hunt" yaml:"hunt" mapstructure:"hunt"`
	Download bool `json:"download" yaml:"download" mapstructure:"download"`
}

// DefaultRunConfig returns the query plan for web-design education papers.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		Queries: []string{
			`student "web design"`,
			`student "web programming"`,
			`student "web development"`,
			`student HTML learning OR education`,
		},
		YearMin:  2007,
		YearMax:  2025,
		Hunt:     true,
		Download: true,
	}
}

// PipelineConfig groups all stage configurations for the pipeline.
type PipelineConfig struct {
	Run      RunConfig             `json:"run" yaml:"run" mapstructure:"run"`
	Scholar  ScholarConfig         `json:"scholar" yaml:"scholar" mapstructure:"scholar"`
	Semantic SemanticScholarConfig `json:"semantic_scholar" yaml:"semantic_scholar" mapstructure:"semantic_scholar"`
	Ranking  RankingConfig         `json:"ranking" yaml:"ranking" mapstructure:"ranking"`
	Hunt     HuntConfig            `json:"hunt" yaml:"hunt" mapstructure:"hunt"`
	Download DownloadConfig        `json:"download" yaml:"download" mapstructure:"download"`
	Storage  StorageConfig         `json:"storage" yaml:"storage" mapstructure:"storage"`
	Logging  LoggingConfig         `json:"logging" yaml:"logging" mapstructure:"logging"`
}

// DefaultPipelineConfig returns every stage's defaults.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Run:      DefaultRunConfig(),
		Scholar:  DefaultScholarConfig(),
		Semantic: DefaultSemanticScholarConfig(),
		Ranking:  DefaultRankingConfig(),
		Hunt:     DefaultHuntConfig(),
		Download: DefaultDownloadConfig(),
		Storage:  DefaultStorageConfig(),
		Logging:  DefaultLoggingConfig(),
	}
}

// Validate checks the numeric bounds of the configuration.
func (c PipelineConfig) Validate() error {
	if err := recordValidator().Struct(c.Ranking); err != nil {
		return err
	}
	return recordValidator().Struct(c.Run)
}
