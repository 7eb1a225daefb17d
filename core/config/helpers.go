package config

import (
	"os"
	"strconv"
	"strings"
)

// GetAllSettings returns a map of the settings exposed to the preview UI.
func GetAllSettings() map[string]any {
	if Global == nil {
		return map[string]any{}
	}
	return map[string]any{
		"media_regular_width":     Global.Media.RegularWidth,
		"media_regular_height":    Global.Media.RegularHeight,
		"media_sticker_size":      Global.Media.StickerSize,
		"media_album_width":       Global.Media.AlbumWidth,
		"media_album_min_width":   Global.Media.AlbumMinWidth,
		"media_album_spacing":     Global.Media.AlbumSpacing,
		"media_native_webp":       Global.Media.NativeWebP,
		"lazyload_parallel_limit": Global.LazyLoad.ParallelLimit,
		"decode_worker_pool_size": Global.WorkerPool.Size,
		"app_debug":               Global.App.Debug,
		"app_version":             Global.App.Version,
	}
}

// Helpers
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		vLower := strings.ToLower(v)
		return vLower == "1" || vLower == "true" || vLower == "yes" || vLower == "on"
	}
	return fallback
}
