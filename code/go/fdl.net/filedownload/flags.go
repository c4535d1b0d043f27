package main

import (
	"flag"
)

var (
	deploymentMode int
	logDir         string
	httpPort       int
	configDir      string
)

func init() {
	flag.IntVar(&deploymentMode, "deployment_mode", 1, "deployment mode: 0=dev, 1=production")
	flag.StringVar(&logDir, "log_dir", "logs", "log_dir")
	flag.IntVar(&httpPort, "port", 0, "port")
	flag.StringVar(&configDir, "config_dir", "./config", "config_dir")
}

func parseFlags() {
	flag.Parse()
}
