package log

import (
	"fmt"
	"slices"

	"github.com/spf13/pflag"
	"go.uber.org/zap/zapcore"
)

// FileOptions configures rotated log files.
type FileOptions struct {
	// Filename is the file to write logs to.
	Filename string `json:"filename,omitempty" mapstructure:"filename"`
	// MaxSize is the maximum size in megabytes before the file is rotated.
	MaxSize int `json:"max-size,omitempty" mapstructure:"max-size"`
	// MaxBackups is the maximum number of rotated files to keep.
	MaxBackups int `json:"max-backups,omitempty" mapstructure:"max-backups"`
	// MaxAge is the maximum number of days to keep rotated files.
	MaxAge int `json:"max-age,omitempty" mapstructure:"max-age"`
	// Compress gzips rotated files.
	Compress bool `json:"is-compression,omitempty" mapstructure:"is-compression"`
	// LocalTime uses local time in rotated file names.
	LocalTime bool `json:"local-time,omitempty" mapstructure:"local-time"`
}

// FileOption set a FileOptions field.
type FileOption func(*FileOptions)

// NewFileOptions returns file options with default values.
func NewFileOptions() *FileOptions {
	return &FileOptions{
		Filename:   "tradectl.log",
		MaxSize:    10,
		MaxBackups: 5,
		MaxAge:     7,
		Compress:   false,
		LocalTime:  true,
	}
}

// WithFileName set file name
func WithFileName(name string) FileOption {
	return func(o *FileOptions) { o.Filename = name }
}

// WithFileMaxSize set max size in MB
func WithFileMaxSize(size int) FileOption {
	return func(o *FileOptions) { o.MaxSize = size }
}

// WithFileMaxBackups set max backups
func WithFileMaxBackups(n int) FileOption {
	return func(o *FileOptions) { o.MaxBackups = n }
}

// WithFileMaxAge set max age in days
func WithFileMaxAge(days int) FileOption {
	return func(o *FileOptions) { o.MaxAge = days }
}

// WithFileCompress set compress
func WithFileCompress(compress bool) FileOption {
	return func(o *FileOptions) { o.Compress = compress }
}

// WithFileLocalTime set local time
func WithFileLocalTime(local bool) FileOption {
	return func(o *FileOptions) { o.LocalTime = local }
}

// Options contains configuration options for logging.
type Options struct {
	// Level is the minimum enabled level: debug, info, warn, error, dpanic, panic, fatal.
	Level string `json:"level,omitempty" mapstructure:"level"`
	// Format specifies the log output format. Valid values are: console and json.
	Format string `json:"format,omitempty" mapstructure:"format"`
	// EnableColor colors levels in console format. Ignored for json.
	EnableColor bool `json:"enable-color"       mapstructure:"enable-color"`
	// DisableCaller specifies whether to include caller information in the log.
	DisableCaller bool `json:"disable-caller,omitempty" mapstructure:"disable-caller"`
	// DisableStacktrace specifies whether to record a stack trace for all messages at or above panic level.
	DisableStacktrace bool `json:"disable-stacktrace,omitempty" mapstructure:"disable-stacktrace"`
	// EnableFileStorage specifies whether to enable file storage.
	EnableFileStorage bool `json:"enable-file-storage,omitempty" mapstructure:"enable-file-storage"`
	// FileConfig configures file storage.
	FileConfig *FileOptions `json:"file-config,omitempty" mapstructure:"file-config"`
	// OutputPaths specifies the output paths for the logs.
	OutputPaths []string `json:"output-paths,omitempty" mapstructure:"output-paths"`
}

// NewOptions creates a new Options object with default values.
func NewOptions() *Options {
	return &Options{
		Level:             zapcore.InfoLevel.String(),
		Format:            "console",
		EnableColor:       true,
		OutputPaths:       []string{"stderr"},
		EnableFileStorage: false,
		FileConfig:        NewFileOptions(),
	}
}

// Validate verifies flags passed to LogsOptions.
func (o *Options) Validate() []error {
	errs := []error{}

	if _, err := zapcore.ParseLevel(o.Level); err != nil {
		errs = append(errs, fmt.Errorf("invalid log level %q: %w", o.Level, err))
	}
	if !slices.Contains([]string{"console", "json"}, o.Format) {
		errs = append(errs, fmt.Errorf("invalid log format %q, must be console or json", o.Format))
	}
	if o.EnableFileStorage && (o.FileConfig == nil || o.FileConfig.Filename == "") {
		errs = append(errs, fmt.Errorf("log file storage enabled without a file name"))
	}

	return errs
}

// AddFlags adds command line flags for the configuration.
func (o *Options) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Level, "log.level", o.Level, "Minimum log output `LEVEL`.")
	fs.BoolVar(&o.DisableCaller, "log.disable-caller", o.DisableCaller, "Disable output of caller information in the log.")
	fs.BoolVar(&o.DisableStacktrace, "log.disable-stacktrace", o.DisableStacktrace, ""+
		"Disable the log to record a stack trace for all messages at or above panic level.")
	fs.BoolVar(&o.EnableColor, "log.enable-color", o.EnableColor, "Enable output ansi colors in plain format logs.")
	fs.StringVar(&o.Format, "log.format", o.Format, "Log output `FORMAT`, support console or json format.")
	fs.StringSliceVar(&o.OutputPaths, "log.output-paths", o.OutputPaths, "Output paths of log.")
	fs.BoolVar(&o.EnableFileStorage, "log.enable-file-storage", o.EnableFileStorage, "Enable log file storage.")

	if o.FileConfig != nil {
		fs.StringVar(&o.FileConfig.Filename, "log.file-config.filename", o.FileConfig.Filename, "Log file name.")
		fs.IntVar(&o.FileConfig.MaxSize, "log.file-config.max-size", o.FileConfig.MaxSize, "Maximum log file size in MB.")
		fs.IntVar(&o.FileConfig.MaxBackups, "log.file-config.max-backups", o.FileConfig.MaxBackups, "Maximum number of old log files to retain.")
		fs.IntVar(&o.FileConfig.MaxAge, "log.file-config.max-age", o.FileConfig.MaxAge, "Maximum number of days to retain old log files.")
		fs.BoolVar(&o.FileConfig.Compress, "log.file-config.is-compression", o.FileConfig.Compress, "Whether to compress old log files.")
		fs.BoolVar(&o.FileConfig.LocalTime, "log.file-config.local-time", o.FileConfig.LocalTime, "Whether to use local time for log file rotation.")
	}
}
