package main

import (
	"github.com/treehillstudio/filedownload/code/go/fdl.net/core/logging"
	"github.com/treehillstudio/filedownload/code/go/fdl.net/fdlcore/config"
)

func setupLogging() {
	if config.Development() {
		logging.InitLogging("development", logDir, "filedownload.log")
	} else {
		logging.InitLogging("production", logDir, "filedownload.log")
	}
}
