package config

import (
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. PHOTOMAP_DB_PATH
const EnvPrefix = "PHOTOMAP"

// Config holds the application settings
type Config struct {
	Port      string
	DBPath    string
	JWTSecret string
	MaxMemory int64 // bytes accepted for multipart uploads

	DataPath      string // default CSV for runs that do not name one
	RunConfigPath string // optional YAML with RunConfig overrides
	MapPath       string
	ChartDir      string
	StopwordFile  string
	OpenViewer    bool

	RateLimit   int // requests per minute per client
	LogLevel    string
	Development bool
}

// Load reads the configuration from the environment with defaults
func Load() *Config {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("port", ":8080")
	v.SetDefault("db_path", "./data/photomap.db")
	v.SetDefault("jwt_secret", "your-secret-key-change-in-production")
	v.SetDefault("max_memory", int64(64<<20))
	v.SetDefault("data_path", "./data/flickr_data_cleaned.csv")
	v.SetDefault("run_config", "")
	v.SetDefault("map_path", "./output/map.html")
	v.SetDefault("chart_dir", "./output/charts")
	v.SetDefault("stopword_file", "")
	v.SetDefault("open_viewer", false)
	v.SetDefault("rate_limit", 60)
	v.SetDefault("log_level", "info")
	v.SetDefault("development", false)

	// plain PORT still works for container platforms that inject it
	_ = v.BindEnv("port", EnvPrefix+"_PORT", "PORT")

	port := v.GetString("port")
	if port != "" && !strings.Contains(port, ":") {
		port = ":" + port
	}

	return &Config{
		Port:          port,
		DBPath:        v.GetString("db_path"),
		JWTSecret:     v.GetString("jwt_secret"),
		MaxMemory:     v.GetInt64("max_memory"),
		DataPath:      v.GetString("data_path"),
		RunConfigPath: v.GetString("run_config"),
		MapPath:       v.GetString("map_path"),
		ChartDir:      v.GetString("chart_dir"),
		StopwordFile:  v.GetString("stopword_file"),
		OpenViewer:    v.GetBool("open_viewer"),
		RateLimit:     v.GetInt("rate_limit"),
		LogLevel:      v.GetString("log_level"),
		Development:   v.GetBool("development"),
	}
}
