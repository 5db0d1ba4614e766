package flags

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/ruteri/tee-secure-signer/common"
	"github.com/ruteri/tee-secure-signer/config"
	"github.com/urfave/cli/v2"
)

func SetupLogger(cCtx *cli.Context) (log *slog.Logger) {
	logJSON := cCtx.Bool(LogJsonFlag.Name)
	logDebug := cCtx.Bool(LogDebugFlag.Name)
	logUID := cCtx.Bool(LogUidFlag.Name)
	logService := cCtx.String(LogServiceFlag.Name)

	logger := common.SetupLogger(&common.LoggingOpts{
		Debug:   logDebug,
		JSON:    logJSON,
		Service: logService,
		Version: common.Version,
	})

	if logUID {
		id := uuid.Must(uuid.NewRandom())
		logger = logger.With("uid", id.String())
	}
	return logger
}

// ApplyOverrides copies explicitly set flags over file configuration.
func ApplyOverrides(cCtx *cli.Context, cfg *config.Config) {
	if cCtx.IsSet(ListenAddrFlag.Name) {
		cfg.Server.ListenAddr = cCtx.String(ListenAddrFlag.Name)
	}
	if cCtx.IsSet(MetricsAddrFlag.Name) {
		cfg.Server.MetricsAddr = cCtx.String(MetricsAddrFlag.Name)
	}
	if cCtx.IsSet(PprofFlag.Name) {
		cfg.Server.EnablePprof = cCtx.Bool(PprofFlag.Name)
	}
	if cCtx.IsSet(DrainSecondsFlag.Name) {
		cfg.Server.DrainDuration = time.Duration(cCtx.Int64(DrainSecondsFlag.Name)) * time.Second
	}
	if cCtx.IsSet(TargetOriginFlag.Name) {
		cfg.Messaging.TargetOrigin = cCtx.String(TargetOriginFlag.Name)
	}
	if cCtx.IsSet(TrustURLFlag.Name) {
		cfg.Trust.BaseURL = cCtx.String(TrustURLFlag.Name)
	}
	if cCtx.IsSet(StorageURIFlag.Name) {
		cfg.Storage.URI = cCtx.String(StorageURIFlag.Name)
	}
}

var ConfigFileFlag = &cli.StringFlag{
	Name:    "config",
	Usage:   "path to a YAML configuration file",
	EnvVars: []string{"SIGNER_CONFIG"},
}

var ListenAddrFlag = &cli.StringFlag{
	Name:  "listen-addr",
	Value: "127.0.0.1:8080",
	Usage: "address to listen on for the frame endpoint",
}

var TargetOriginFlag = &cli.StringFlag{
	Name:  "target-origin",
	Value: "*",
	Usage: "origin allowed to connect to the frame endpoint, '*' for any",
}

var TrustURLFlag = &cli.StringFlag{
	Name:    "trust-url",
	Usage:   "base URL of the trust service",
	EnvVars: []string{"SIGNER_TRUST_URL"},
}

var StorageURIFlag = &cli.StringFlag{
	Name:  "storage",
	Value: "memory://",
	Usage: "local key-value store: memory://, file:///path, vault://host/mount/path, s3://bucket/prefix",
}

var LogJsonFlag = &cli.BoolFlag{
	Name:  "log-json",
	Value: false,
	Usage: "log in JSON format",
}
var LogDebugFlag = &cli.BoolFlag{
	Name:  "log-debug",
	Value: false,
	Usage: "log debug messages",
}
var LogUidFlag = &cli.BoolFlag{
	Name:  "log-uid",
	Value: false,
	Usage: "generate a uuid and add to all log messages",
}
var LogServiceFlag = &cli.StringFlag{
	Name:  "log-service",
	Value: "tee-secure-signer",
	Usage: "add 'service' tag to logs",
}

var PprofFlag = &cli.BoolFlag{
	Name:  "pprof",
	Value: false,
	Usage: "enable pprof debug endpoint",
}
var DrainSecondsFlag = &cli.Int64Flag{
	Name:  "drain-seconds",
	Value: 45,
	Usage: "seconds to wait in drain HTTP request",
}
var MetricsAddrFlag = &cli.StringFlag{
	Name:  "metrics-addr",
	Value: "127.0.0.1:8090",
	Usage: "address to listen on for Prometheus metrics",
}

var CommonFlags = []cli.Flag{
	LogJsonFlag,
	LogDebugFlag,
	LogUidFlag,
	LogServiceFlag,
}

var ServerFlags = []cli.Flag{
	ConfigFileFlag,
	ListenAddrFlag,
	MetricsAddrFlag,
	PprofFlag,
	DrainSecondsFlag,
	TargetOriginFlag,
	TrustURLFlag,
	StorageURIFlag,
}
