package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.mau.fi/whatsmeow/proto/waCompanionReg"
)

// Config holds all application configuration in a structured way.
type Config struct {
	App        AppConfig
	Paths      PathsConfig
	Database   DatabaseConfig
	Whatsapp   WhatsappConfig
	Media      MediaConfig
	LazyLoad   LazyLoadConfig
	WorkerPool WorkerPoolConfig
}

type AppConfig struct {
	Version            string
	Port               string
	Debug              bool
	Environment        string
	OS                 string
	Platform           waCompanionReg.DeviceProps_PlatformType
	BasePath           string
	BaseUrl            string
	CorsAllowedOrigins []string
	ServerID           string
	BasicAuth          []string
	TrustedProxies     []string
}

type PathsConfig struct {
	BaseDir    string
	Statics    string
	MediaCache string
	Storages   string
}

type DatabaseConfig struct {
	Driver          string
	Host            string
	Port            int
	User            string
	Password        string
	Name            string // File path for SQLite, DB Name for Postgres
	ValkeyEnabled   bool
	ValkeyAddress   string
	ValkeyPassword  string
	ValkeyDB        int
	ValkeyKeyPrefix string
	// ChatStore names the message store albums and replies are read from.
	ChatStore string
	// WhatsApp device store
	URI string
}

type WhatsappConfig struct {
	Enabled         bool
	LogLevel        string
	MaxDownloadSize int64
}

// MediaConfig is the sizing policy shared by every renderer.
type MediaConfig struct {
	RegularWidth    int
	RegularHeight   int
	StickerSize     int
	AlbumWidth      int
	AlbumMinWidth   int
	AlbumSpacing    int
	AlbumPreviewBox int
	ReplyThumbSize  int
	// NativeWebP is false for hosts that cannot draw WebP; sticker thumbs are converted first.
	NativeWebP   bool
	FetchTimeout int // seconds, 0 disables
}

type LazyLoadConfig struct {
	ParallelLimit  int
	ViewportHeight float64
	PreloadMargin  float64
}

type WorkerPoolConfig struct {
	Size      int
	QueueSize int
}

// Global provides access to the loaded configuration globally
var Global *Config

func init() {
	Global = Defaults()
}

// Defaults returns the configuration used when no environment is set.
func Defaults() *Config {
	return &Config{
		App: AppConfig{
			Version:     "v0.1.0",
			Port:        "3000",
			Environment: "development",
			OS:          "AzWrap",
			Platform:    waCompanionReg.DeviceProps_PlatformType(1),
			BaseUrl:     "http://localhost:3000",
		},
		Paths: PathsConfig{
			BaseDir:    "storages",
			Statics:    "statics",
			MediaCache: filepath.Join("statics", "media"),
			Storages:   "storages",
		},
		Database: DatabaseConfig{
			Driver:          "sqlite",
			Name:            filepath.Join("storages", "app.db"),
			ChatStore:       "default",
			ValkeyAddress:   "localhost:6379",
			ValkeyKeyPrefix: "azwrap:",
		},
		Whatsapp: WhatsappConfig{LogLevel: "ERROR", MaxDownloadSize: 50000000},
		Media: MediaConfig{
			RegularWidth:    400,
			RegularHeight:   320,
			StickerSize:     200,
			AlbumWidth:      420,
			AlbumMinWidth:   100,
			AlbumSpacing:    2,
			AlbumPreviewBox: 480,
			ReplyThumbSize:  32,
			NativeWebP:      true,
		},
		LazyLoad:   LazyLoadConfig{ParallelLimit: 5, ViewportHeight: 800, PreloadMargin: 200},
		WorkerPool: WorkerPoolConfig{Size: 4, QueueSize: 250},
	}
}

// LoadConfig loads configuration from Environment Variables or defaults.
func LoadConfig() (*Config, error) {
	def := Defaults()

	baseDir := getEnv("APP_BASE_DIR", def.Paths.BaseDir)

	debug := false
	if v := os.Getenv("APP_DEBUG"); v == "true" || v == "1" || v == "on" {
		debug = true
	} else if v := os.Getenv("DEBUG"); v == "true" || v == "1" {
		debug = true
	}

	corsOrigins := []string{"http://localhost:3000", "http://localhost:5173"}
	if v := os.Getenv("APP_CORS_ALLOWED_ORIGINS"); v != "" {
		corsOrigins = strings.Split(v, ",")
	}

	appCfg := def.App
	appCfg.Port = getEnv("APP_PORT", appCfg.Port)
	appCfg.Debug = debug
	appCfg.Environment = getEnv("APP_ENV", appCfg.Environment)
	appCfg.OS = getEnv("APP_OS", appCfg.OS)
	appCfg.BasePath = getEnv("APP_BASE_PATH", "")
	appCfg.BaseUrl = getEnv("APP_BASE_URL", appCfg.BaseUrl)
	appCfg.CorsAllowedOrigins = corsOrigins
	appCfg.ServerID = getEnv("SERVER_ID", "")
	if v := os.Getenv("APP_BASIC_AUTH"); v != "" {
		appCfg.BasicAuth = strings.Split(v, ",")
	}
	if v := os.Getenv("APP_TRUSTED_PROXIES"); v != "" {
		appCfg.TrustedProxies = strings.Split(v, ",")
	}

	statics := getEnv("PATH_STATICS", def.Paths.Statics)
	pathsCfg := PathsConfig{
		BaseDir:    baseDir,
		Statics:    statics,
		MediaCache: getEnv("PATH_MEDIA_CACHE", filepath.Join(statics, "media")),
		Storages:   baseDir,
	}

	dbCfg := DatabaseConfig{
		Driver:          getEnv("DB_DRIVER", def.Database.Driver),
		Name:            getEnv("DB_NAME", filepath.Join(pathsCfg.Storages, "app.db")),
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            getEnvInt("DB_PORT", 5432),
		User:            getEnv("DB_USER", "postgres"),
		Password:        getEnv("DB_PASSWORD", ""),
		ValkeyEnabled:   getEnvBool("VALKEY_ENABLED", false),
		ValkeyAddress:   getEnv("VALKEY_ADDRESS", def.Database.ValkeyAddress),
		ValkeyPassword:  getEnv("VALKEY_PASSWORD", ""),
		ValkeyDB:        getEnvInt("VALKEY_DB", 0),
		ValkeyKeyPrefix: getEnv("VALKEY_KEY_PREFIX", def.Database.ValkeyKeyPrefix),
		ChatStore:       getEnv("CHAT_STORE", def.Database.ChatStore),
		URI:             getEnv("DB_URI", fmt.Sprintf("file:%s?_foreign_keys=on", filepath.Join(pathsCfg.Storages, "whatsapp.db"))),
	}

	waCfg := WhatsappConfig{
		Enabled:         getEnvBool("WHATSAPP_ENABLED", false),
		LogLevel:        getEnv("WHATSAPP_LOG_LEVEL", def.Whatsapp.LogLevel),
		MaxDownloadSize: getEnvInt64("WHATSAPP_MAX_DOWNLOAD_SIZE", def.Whatsapp.MaxDownloadSize),
	}

	m := def.Media
	mediaCfg := MediaConfig{
		RegularWidth:    getEnvInt("MEDIA_REGULAR_WIDTH", m.RegularWidth),
		RegularHeight:   getEnvInt("MEDIA_REGULAR_HEIGHT", m.RegularHeight),
		StickerSize:     getEnvInt("MEDIA_STICKER_SIZE", m.StickerSize),
		AlbumWidth:      getEnvInt("MEDIA_ALBUM_WIDTH", m.AlbumWidth),
		AlbumMinWidth:   getEnvInt("MEDIA_ALBUM_MIN_WIDTH", m.AlbumMinWidth),
		AlbumSpacing:    getEnvInt("MEDIA_ALBUM_SPACING", m.AlbumSpacing),
		AlbumPreviewBox: getEnvInt("MEDIA_ALBUM_PREVIEW_BOX", m.AlbumPreviewBox),
		ReplyThumbSize:  getEnvInt("MEDIA_REPLY_THUMB_SIZE", m.ReplyThumbSize),
		NativeWebP:      getEnvBool("MEDIA_NATIVE_WEBP", m.NativeWebP),
		FetchTimeout:    getEnvInt("MEDIA_FETCH_TIMEOUT", m.FetchTimeout),
	}

	lazyCfg := LazyLoadConfig{
		ParallelLimit:  getEnvInt("LAZYLOAD_PARALLEL_LIMIT", def.LazyLoad.ParallelLimit),
		ViewportHeight: getEnvFloat("LAZYLOAD_VIEWPORT_HEIGHT", def.LazyLoad.ViewportHeight),
		PreloadMargin:  getEnvFloat("LAZYLOAD_PRELOAD_MARGIN", def.LazyLoad.PreloadMargin),
	}

	cfg := &Config{
		App:        appCfg,
		Paths:      pathsCfg,
		Database:   dbCfg,
		Whatsapp:   waCfg,
		Media:      mediaCfg,
		LazyLoad:   lazyCfg,
		WorkerPool: WorkerPoolConfig{Size: getEnvInt("DECODE_WORKER_POOL_SIZE", def.WorkerPool.Size), QueueSize: getEnvInt("DECODE_WORKER_QUEUE_SIZE", def.WorkerPool.QueueSize)},
	}

	Global = cfg
	return cfg, nil
}
