package main

import (
	"context"
	"log"

	"github.com/spf13/viper"

	"github.com/treehillstudio/filedownload/code/go/fdl.net/fdlcore/aggregator"
	"github.com/treehillstudio/filedownload/code/go/fdl.net/fdlcore/config"
	"github.com/treehillstudio/filedownload/code/go/fdl.net/fdlcore/datastore"
	"github.com/treehillstudio/filedownload/code/go/fdl.net/fdlcore/handler"
	"github.com/treehillstudio/filedownload/code/go/fdl.net/fdlcore/hooks"
)

func main() {
	parseFlags()
	setupConfig()
	setupLogging()

	if err := setupDatabase(); err != nil {
		log.Fatalf("opening datastore: %v", err)
	}
	defer datastore.GetStore().Close()

	backend, err := setupMediaSource(context.Background())
	if err != nil {
		log.Fatalf("building media source: %v", err)
	}

	settings, err := config.DecodeSettings(viper.GetStringMap("settings"))
	if err != nil {
		log.Fatalf("decoding listing settings: %v", err)
	}
	if len(settings.GetDir) == 0 && len(settings.GetFile) == 0 {
		log.Fatal("no settings.getDir or settings.getFile configured, nothing to serve")
	}

	handler.SetupApp(&handler.App{
		Backend:      backend,
		Dispatcher:   hooks.NewDispatcher(),
		Settings:     settings,
		Descriptions: aggregator.ParseDescriptions(viper.GetString("descriptions")),
		Images:       viper.GetStringMapString("filetype_icons"),
	})

	startHTTPServer()
}
