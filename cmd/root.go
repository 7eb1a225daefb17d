package cmd

import (
	"context"
	"errors"
	"os"
	"time"

	coreconfig "github.com/AzielCF/az-wrap/core/config"
	domainAttachment "github.com/AzielCF/az-wrap/domains/attachment"
	"github.com/AzielCF/az-wrap/domains/media"
	"github.com/AzielCF/az-wrap/infrastructure/chatstorage"
	"github.com/AzielCF/az-wrap/infrastructure/mediastore"
	"github.com/AzielCF/az-wrap/infrastructure/valkey"
	"github.com/AzielCF/az-wrap/infrastructure/whatsapp"
	"github.com/AzielCF/az-wrap/pkg/chatmedia"
	"github.com/AzielCF/az-wrap/pkg/decodeworker"
	"github.com/AzielCF/az-wrap/pkg/uiloop"
	"github.com/AzielCF/az-wrap/pkg/utils"
	"github.com/AzielCF/az-wrap/ui/websocket"
	"github.com/AzielCF/az-wrap/usecase"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.mau.fi/whatsmeow"
)

const thumbTTL = 24 * time.Hour

var (
	// UI loop every render runs on
	uiLoop     *uiloop.Loop
	stopLoop   context.CancelFunc
	appStarted bool

	// Infrastructure
	vkClient    *valkey.Client
	whatsappCli *whatsmeow.Client
	chatRepo    *chatstorage.GormRepository
	registry    *mediastore.Registry
	serverID    string

	// Usecase
	attachmentUsecase domainAttachment.IAttachmentUsecase
	previewUsecase    domainAttachment.IPreviewUsecase
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "azwrap",
	Short: "Chat attachment rendering and lazy-load pipeline",
	Long: `Renders chat attachments (photos, videos, stickers, documents, albums, replies)
into render trees, loading media lazily as it scrolls into view.`,
}

func init() {
	// Load .env first so LoadConfig sees it
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logrus.Warnf("[CONFIG] failed to read .env: %v", err)
	}

	time.Local = time.UTC

	if _, err := coreconfig.LoadConfig(); err != nil {
		logrus.Fatalf("[CONFIG] %v", err)
	}

	rootCmd.CompletionOptions.DisableDefaultCmd = true

	// Initialize flags first, before any subcommands are added
	initFlags()

	cobra.OnInitialize(initEnvConfig)
}

// initEnvConfig applies an optional azwrap config file on top of the environment.
// Flags given on the command line always win.
func initEnvConfig() {
	viper.SetConfigName("azwrap")
	viper.AddConfigPath(".")
	viper.AddConfigPath(coreconfig.Global.Paths.Storages)
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			logrus.Warnf("[CONFIG] failed to read config file: %v", err)
		}
		return
	}
	logrus.Infof("[CONFIG] using %s", viper.ConfigFileUsed())

	cfg := coreconfig.Global
	flags := rootCmd.PersistentFlags()
	strs := map[string]*string{
		"app.port":          &cfg.App.Port,
		"app.base_path":     &cfg.App.BasePath,
		"database.uri":      &cfg.Database.URI,
		"database.chat":     &cfg.Database.ChatStore,
		"paths.media_cache": &cfg.Paths.MediaCache,
	}
	ints := map[string]*int{
		"media.regular_width":     &cfg.Media.RegularWidth,
		"media.regular_height":    &cfg.Media.RegularHeight,
		"media.sticker_size":      &cfg.Media.StickerSize,
		"media.album_width":       &cfg.Media.AlbumWidth,
		"media.album_min_width":   &cfg.Media.AlbumMinWidth,
		"media.album_spacing":     &cfg.Media.AlbumSpacing,
		"media.album_preview_box": &cfg.Media.AlbumPreviewBox,
		"media.reply_thumb_size":  &cfg.Media.ReplyThumbSize,
		"media.fetch_timeout":     &cfg.Media.FetchTimeout,
		"lazyload.parallel_limit": &cfg.LazyLoad.ParallelLimit,
		"workers.size":            &cfg.WorkerPool.Size,
		"workers.queue_size":      &cfg.WorkerPool.QueueSize,
	}
	bools := map[string]*bool{
		"app.debug":         &cfg.App.Debug,
		"media.native_webp": &cfg.Media.NativeWebP,
		"whatsapp.enabled":  &cfg.Whatsapp.Enabled,
		"database.valkey":   &cfg.Database.ValkeyEnabled,
	}

	for key, dst := range strs {
		if viper.IsSet(key) && !flagChanged(flags, key) {
			*dst = viper.GetString(key)
		}
	}
	for key, dst := range ints {
		if viper.IsSet(key) && !flagChanged(flags, key) {
			*dst = viper.GetInt(key)
		}
	}
	for key, dst := range bools {
		if viper.IsSet(key) && !flagChanged(flags, key) {
			*dst = viper.GetBool(key)
		}
	}
	if viper.IsSet("lazyload.viewport_height") {
		cfg.LazyLoad.ViewportHeight = viper.GetFloat64("lazyload.viewport_height")
	}
	if viper.IsSet("lazyload.preload_margin") {
		cfg.LazyLoad.PreloadMargin = viper.GetFloat64("lazyload.preload_margin")
	}
}

func initFlags() {
	cfg := coreconfig.Global

	// Application flags
	rootCmd.PersistentFlags().StringVarP(
		&cfg.App.Port,
		"port", "p",
		cfg.App.Port,
		"change port number with --port <number> | example: --port=8080",
	)
	rootCmd.PersistentFlags().BoolVarP(
		&cfg.App.Debug,
		"debug", "d",
		cfg.App.Debug,
		"hide or displaying log with --debug <true/false> | example: --debug=true",
	)
	rootCmd.PersistentFlags().StringVarP(
		&cfg.App.BasePath,
		"base-path", "",
		cfg.App.BasePath,
		`base path for subpath deployment --base-path <string> | example: --base-path="/azwrap"`,
	)
	rootCmd.PersistentFlags().StringSliceVarP(
		&cfg.App.BasicAuth,
		"basic-auth", "b",
		cfg.App.BasicAuth,
		"basic auth credential | -b=yourUsername:yourPassword",
	)
	rootCmd.PersistentFlags().StringSliceVarP(
		&cfg.App.TrustedProxies,
		"trusted-proxies", "",
		cfg.App.TrustedProxies,
		`trusted proxy IP ranges for reverse proxy deployments | example: --trusted-proxies="10.0.0.0/8"`,
	)

	// Database flags
	rootCmd.PersistentFlags().StringVarP(
		&cfg.Database.URI,
		"db-uri", "",
		cfg.Database.URI,
		`whatsapp device store uri | example: --db-uri="file:storages/whatsapp.db?_foreign_keys=on"`,
	)
	rootCmd.PersistentFlags().StringVarP(
		&cfg.Database.ChatStore,
		"chat-store", "",
		cfg.Database.ChatStore,
		`name of the message store albums and replies are read from | example: --chat-store=default`,
	)
	rootCmd.PersistentFlags().BoolVarP(
		&cfg.Database.ValkeyEnabled,
		"valkey", "",
		cfg.Database.ValkeyEnabled,
		`share media state and websocket events through valkey --valkey <true/false>`,
	)

	// WhatsApp flags
	rootCmd.PersistentFlags().BoolVarP(
		&cfg.Whatsapp.Enabled,
		"whatsapp", "",
		cfg.Whatsapp.Enabled,
		`fetch media through the paired whatsapp device --whatsapp <true/false>`,
	)

	// Decode worker pool flags
	rootCmd.PersistentFlags().IntVarP(
		&cfg.WorkerPool.Size,
		"decode-workers", "",
		cfg.WorkerPool.Size,
		`number of concurrent decode workers --decode-workers <number> | example: --decode-workers=8 (default: 4)`,
	)
	rootCmd.PersistentFlags().IntVarP(
		&cfg.WorkerPool.QueueSize,
		"decode-queue-size", "",
		cfg.WorkerPool.QueueSize,
		`queue size per decode worker --decode-queue-size <number> | example: --decode-queue-size=500 (default: 250)`,
	)
}

// initApp wires the render pipeline. Commands that need it call it from PreRun.
func initApp(_ *cobra.Command, _ []string) {
	if appStarted {
		return
	}
	appStarted = true

	cfg := coreconfig.Global
	if cfg.App.Debug {
		cfg.Whatsapp.LogLevel = "DEBUG"
		logrus.SetLevel(logrus.DebugLevel)
	}

	//preparing folder if not exist
	if err := os.MkdirAll(cfg.Paths.Storages, 0755); err != nil {
		logrus.Errorln(err)
	}
	kinds := []string{string(media.KindPhoto), string(media.KindVideo), string(media.KindGif), string(media.KindRound),
		string(media.KindSticker), string(media.KindDocument), string(media.KindAudio), string(media.KindVoice)}
	if err := utils.EnsureMediaDirectories(kinds...); err != nil {
		logrus.Errorln(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	stopLoop = cancel
	serverID = utils.GetPersistentServerID(cfg.App.ServerID, cfg.Paths.Storages)

	// 1. Storage
	var err error
	chatRepo, err = chatstorage.GetOrInitRepository(cfg.Database.ChatStore)
	if err != nil {
		logrus.Fatalf("[APP] failed to open chat store: %v", err)
	}

	var state media.IStateStore = chatmedia.NewCache(thumbTTL)
	if cfg.Database.ValkeyEnabled {
		vkClient, err = valkey.NewClient(valkey.ConfigFrom(cfg.Database))
		if err != nil {
			logrus.Warnf("[VALKEY] falling back to in-memory media state: %v", err)
		} else {
			state = valkey.NewMediaStateStore(vkClient, thumbTTL)
		}
	}

	// 2. Media registry
	fetchTimeout := time.Duration(cfg.Media.FetchTimeout) * time.Second
	registry = mediastore.NewRegistry(cfg.Paths.MediaCache, state, mediastore.NewHTTPFetcher(fetchTimeout, cfg.Whatsapp.MaxDownloadSize))

	if cfg.Whatsapp.Enabled {
		container := whatsapp.InitWaDB(ctx, cfg.Database.URI)
		whatsappCli, err = whatsapp.InitWaCLI(ctx, container, chatRepo)
		if err != nil {
			logrus.Warnf("[WHATSAPP] media fetching disabled: %v", err)
		} else {
			registry.AddFetcher(whatsapp.NewMediaFetcher(whatsappCli, cfg.Whatsapp.MaxDownloadSize))
			if err := whatsapp.Connect(whatsappCli); err != nil {
				logrus.Warnf("[WHATSAPP] %v", err)
			}
		}
	}

	// 3. UI loop and decode pool
	uiLoop = uiloop.New()
	go uiLoop.Run(ctx)
	decoder := decodeworker.GetGlobalDecoder(uiLoop)

	// 4. Usecases
	attachmentUsecase = usecase.NewAttachmentService(registry, decoder, chatRepo, uiLoop, cfg.Media,
		usecase.WithProgressHook(websocket.PublishProgress))
	previewUsecase = usecase.NewPreviewService(attachmentUsecase, chatRepo, uiLoop, cfg, registry, decoder)

	logrus.Infof("[APP] render pipeline ready (server %s)", serverID)
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// StopApp performs a clean shutdown of all database connections and services.
func StopApp() {
	logrus.Info("[APP] Stopping application...")

	if whatsappCli != nil {
		whatsappCli.Disconnect()
	}

	decodeworker.StopGlobalDecoder()
	if stopLoop != nil {
		stopLoop()
	}

	if err := chatstorage.CloseRepository(coreconfig.Global.Database.ChatStore); err != nil {
		logrus.Warnf("[APP] closing chat store: %v", err)
	}

	if vkClient != nil {
		vkClient.Close()
	}

	logrus.Info("[APP] Application stopped cleanly.")
}

func flagChanged(flags interface{ Changed(string) bool }, key string) bool {
	names := map[string]string{
		"app.port":           "port",
		"app.base_path":      "base-path",
		"app.debug":          "debug",
		"database.uri":       "db-uri",
		"database.chat":      "chat-store",
		"database.valkey":    "valkey",
		"whatsapp.enabled":   "whatsapp",
		"workers.size":       "decode-workers",
		"workers.queue_size": "decode-queue-size",
	}
	name, ok := names[key]
	return ok && flags.Changed(name)
}
