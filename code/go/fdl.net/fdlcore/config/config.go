package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	DeploymentDevelopment = 0
	DeploymentProduction  = 1
)

// SetupDefaultConfig - setup the default config options that can be overridden via the config file
func SetupDefaultConfig() {
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.console", false)

	viper.SetDefault("port", 5050)
	viper.SetDefault("deployment_mode", DeploymentProduction)

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.name", "filedownload_meta")

	viper.SetDefault("salt_text", "FileDownloadR")
	viper.SetDefault("exclude_scan", ".,..,Thumbs.db,.htaccess,.htpasswd,.ftpquota,.DS_Store")

	viper.SetDefault("count_downloads", true)
	viper.SetDefault("use_geolocation", false)
	viper.SetDefault("geo_api_key", "")

	viper.SetDefault("upload.file_types", "image/gif,image/jpeg,image/png")
	viper.SetDefault("upload.max_size", 2097152)

	viper.SetDefault("rate_limiters.file_rps", 5)
	viper.SetDefault("rate_limiters.general_rps", 10)
	viper.SetDefault("rate_limiters.proxy", false)
}

/*SetupConfig - setup the configuration system */
func SetupConfig(configPath string) {
	replacer := strings.NewReplacer(".", "_")
	viper.SetEnvKeyReplacer(replacer)
	viper.AutomaticEnv()
	viper.SetConfigName("filedownload")

	if configPath == "" {
		viper.AddConfigPath("./config")
	} else {
		viper.AddConfigPath(configPath)
	}

	err := viper.ReadInConfig() // Find and read the config file
	if err != nil {             // Handle errors reading the config file
		panic(fmt.Errorf("fatal error config file: %s", err))
	}

	ReadConfig()
}

// ReadConfig populates the global Configuration from viper.
func ReadConfig() {
	Configuration.DeploymentMode = viper.GetInt("deployment_mode")
	Configuration.Port = viper.GetInt("port")
	Configuration.LogDir = viper.GetString("logging.log_dir")

	Configuration.DBHost = viper.GetString("db.host")
	Configuration.DBPort = viper.GetString("db.port")
	Configuration.DBName = viper.GetString("db.name")
	Configuration.DBUserName = viper.GetString("db.user")
	Configuration.DBPassword = viper.GetString("db.password")

	Configuration.SiteURL = strings.TrimRight(viper.GetString("site_url"), "/")
	Configuration.PageURL = viper.GetString("page_url")
	Configuration.BasePath = viper.GetString("paths.base")
	Configuration.CorePath = viper.GetString("paths.core")
	Configuration.ForbiddenPaths = viper.GetStringSlice("paths.forbidden")

	Configuration.SaltText = viper.GetString("salt_text")
	Configuration.ExcludeScan = splitTrimmed(viper.GetString("exclude_scan"))

	Configuration.CountDownloads = viper.GetBool("count_downloads")
	Configuration.UseGeolocation = viper.GetBool("use_geolocation")
	Configuration.GeoAPIKey = viper.GetString("geo_api_key")

	Configuration.UploadFileTypes = splitTrimmed(viper.GetString("upload.file_types"))
	Configuration.UploadMaxSize = viper.GetInt64("upload.max_size")

	Configuration.S3Bucket = viper.GetString("s3.bucket")
	Configuration.S3Region = viper.GetString("s3.region")
	Configuration.S3Endpoint = viper.GetString("s3.endpoint")
	Configuration.S3AccessKey = viper.GetString("s3.access_key")
	Configuration.S3SecretKey = viper.GetString("s3.secret_key")
	Configuration.S3KeyPrefix = viper.GetString("s3.key_prefix")
}

type Config struct {
	DeploymentMode int
	Port           int
	LogDir         string

	DBHost     string
	DBPort     string
	DBName     string
	DBUserName string
	DBPassword string

	// SiteURL is the public origin of the hosting site, scheme://host.
	SiteURL string
	// PageURL is the canonical URL of the page embedding the listing,
	// the reference for the referrer check.
	PageURL string
	// BasePath is the public web root on disk. Direct links are only
	// generated for files below it.
	BasePath string
	// CorePath is the platform's own installation directory, never exposed.
	CorePath string
	// ForbiddenPaths are additional directories requests must never resolve
	// into (processors, connectors, manager).
	ForbiddenPaths []string

	SaltText    string
	ExcludeScan []string

	CountDownloads bool
	UseGeolocation bool
	GeoAPIKey      string

	UploadFileTypes []string
	UploadMaxSize   int64

	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3KeyPrefix string
}

/*Configuration of the system */
var Configuration Config

/*Development - is the program running in development mode? */
func Development() bool {
	return Configuration.DeploymentMode == DeploymentDevelopment
}

func splitTrimmed(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
