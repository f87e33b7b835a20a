package configs

import (
	"log"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config struct
type Config struct {
	App      `mapstructure:"app"`
	Remote   `mapstructure:"remote"`
	Storage  `mapstructure:"storage"`
	Postgres `mapstructure:"postgres"`
	Line     `mapstructure:"line"`
	Log      `mapstructure:"log"`
}

// App struct
type App struct {
	Debug bool   `mapstructure:"debug"`
	Env   string `mapstructure:"env"`
	Port  string `mapstructure:"port"`
}

// Remote struct - Backend chat and analysis service
type Remote struct {
	BaseURL      string `mapstructure:"base_url"`
	ChatPath     string `mapstructure:"chat_path"`
	UploadPath   string `mapstructure:"upload_path"`
	DownloadPath string `mapstructure:"download_path"`
	UploadField  string `mapstructure:"upload_field"`
	Timeout      int    `mapstructure:"timeout"` // seconds
}

// Storage struct - Where the console state is persisted
type Storage struct {
	Driver string `mapstructure:"driver"` // file or postgres
	Key    string `mapstructure:"key"`
	Path   string `mapstructure:"path"`
}

// Postgres struct
type Postgres struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DbName   string `mapstructure:"database"`
	SSLMode  bool   `mapstructure:"sslmode"`
}

// Line struct
type Line struct {
	Enabled       bool   `mapstructure:"enabled"`
	ChannelSecret string `mapstructure:"channel_secret"`
	ChannelToken  string `mapstructure:"channel_token"`
}

// Log struct
type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

var config Config

// InitViper func
func InitViper(path, env string) {
	getConfig(path, env)
}

// GetViper func
func GetViper() *Config {
	return &config
}

func setDefaults() {
	viper.SetDefault("app.debug", false)
	viper.SetDefault("app.env", "local")
	viper.SetDefault("app.port", "9089")

	viper.SetDefault("remote.base_url", "http://127.0.0.1:5000")
	viper.SetDefault("remote.chat_path", "/chat")
	viper.SetDefault("remote.upload_path", "/upload")
	viper.SetDefault("remote.download_path", "/download")
	viper.SetDefault("remote.upload_field", "file")
	viper.SetDefault("remote.timeout", 30)

	viper.SetDefault("storage.driver", "file")
	viper.SetDefault("storage.key", "chatSessions")
	viper.SetDefault("storage.path", "./data")

	viper.SetDefault("postgres.host", "")
	viper.SetDefault("postgres.port", "5432")
	viper.SetDefault("postgres.username", "")
	viper.SetDefault("postgres.password", "")
	viper.SetDefault("postgres.database", "")
	viper.SetDefault("postgres.sslmode", false)

	viper.SetDefault("line.enabled", false)
	viper.SetDefault("line.channel_secret", "")
	viper.SetDefault("line.channel_token", "")

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")
}

func getConfig(path, env string) {
	viper.Reset()
	viper.SetConfigName("config")
	viper.AddConfigPath(path)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	setDefaults()
	if env != "" {
		viper.Set("app.env", env)
	}
	err := viper.ReadInConfig()
	if err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			panic(err)
		}
		log.Println("No config file found, using defaults and environment")
	} else {
		viper.WatchConfig()
		viper.OnConfigChange(func(e fsnotify.Event) {
			log.Println("Config file has changed: ", e.Name)
		})
	}
	err = viper.Unmarshal(&config)
	if err != nil {
		log.Fatalln(err)
	}
}
