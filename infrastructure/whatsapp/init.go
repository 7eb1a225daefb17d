package whatsapp

import (
	"context"
	"fmt"
	"strings"

	"github.com/AzielCF/az-wrap/core/config"
	domainMessage "github.com/AzielCF/az-wrap/domains/message"
	pkgError "github.com/AzielCF/az-wrap/pkg/error"
	"github.com/sirupsen/logrus"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
)

// InitWaDB opens the whatsmeow device store.
func InitWaDB(ctx context.Context, dbURI string) *sqlstore.Container {
	container, err := initDatabase(ctx, waLog.Stdout("Database", config.Global.Whatsapp.LogLevel, true), dbURI)
	if err != nil {
		panic(pkgError.InternalServerError(fmt.Sprintf("Database initialization error: %v", err)))
	}
	return container
}

func initDatabase(ctx context.Context, dbLog waLog.Logger, dbURI string) (*sqlstore.Container, error) {
	if strings.HasPrefix(dbURI, "postgres:") {
		return sqlstore.New(ctx, "postgres", dbURI, dbLog)
	}
	return sqlstore.New(ctx, "sqlite3", dbURI, dbLog)
}

// InitWaCLI builds a client for the first paired device and stores incoming media
// messages in storage so albums and replies can be rendered from them.
func InitWaCLI(ctx context.Context, container *sqlstore.Container, storage domainMessage.IGroupedStorage) (*whatsmeow.Client, error) {
	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load device: %w", err)
	}
	if device == nil {
		return nil, fmt.Errorf("no device found")
	}

	configureDeviceProps()

	client := whatsmeow.NewClient(device, waLog.Stdout("Client", config.Global.Whatsapp.LogLevel, true))
	client.EnableAutoReconnect = true
	client.AddEventHandler(func(rawEvt any) { handler(ctx, rawEvt, storage) })

	return client, nil
}

// Connect connects a client that already has a paired session.
func Connect(client *whatsmeow.Client) error {
	if client.Store.ID == nil {
		return fmt.Errorf("device is not paired")
	}
	if err := client.Connect(); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	logrus.Infof("[WHATSAPP] connected as %s", client.Store.ID.String())
	return nil
}

func configureDeviceProps() {
	osName := fmt.Sprintf("%s %s", config.Global.App.OS, config.Global.App.Version)
	store.DeviceProps.PlatformType = &config.Global.App.Platform
	store.DeviceProps.Os = &osName
}

func handler(ctx context.Context, rawEvt any, storage domainMessage.IGroupedStorage) {
	switch evt := rawEvt.(type) {
	case *events.Message:
		handleMessage(ctx, evt, storage)
	case *events.Connected:
		logrus.Info("[WHATSAPP] connection established")
	case *events.LoggedOut:
		logrus.Warn("[WHATSAPP] session logged out")
	}
}

func handleMessage(ctx context.Context, evt *events.Message, storage domainMessage.IGroupedStorage) {
	msg, ok := MessageFromEvent(evt)
	if !ok || storage == nil {
		return
	}
	if err := storage.SaveMessage(ctx, msg); err != nil {
		logrus.WithError(err).Errorf("[WHATSAPP] failed to store message %s", evt.Info.ID)
		return
	}
	logrus.Debugf("[WHATSAPP] stored message %s as %d (group %q)", evt.Info.ID, msg.ID, msg.GroupID)
}
