package main

import (
	"github.com/treehillstudio/filedownload/code/go/fdl.net/fdlcore/config"
)

func setupConfig() {
	config.SetupDefaultConfig()
	config.SetupConfig(configDir)

	config.Configuration.DeploymentMode = deploymentMode
	if httpPort > 0 {
		config.Configuration.Port = httpPort
	}
	if logDir == "" {
		logDir = config.Configuration.LogDir
	}
	if config.Configuration.PageURL == "" {
		panic("Please specify page_url in the config file")
	}
}
