package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sharetube/whiteboard/internal/app"
)

type configVar[T any] struct {
	envKey       string
	flagKey      string
	defaultValue T
	usage        string
}

// bind registers the flag, its env var and its default.
func bind[T any](v configVar[T], define func(name string, value T, usage string) *T) {
	define(v.flagKey, v.defaultValue, v.usage)
	viper.BindEnv(v.flagKey, v.envKey)
	viper.SetDefault(v.flagKey, v.defaultValue)
}

var (
	port = configVar[int]{
		envKey:       "SERVER_PORT",
		flagKey:      "port",
		defaultValue: 8080,
		usage:        "Server port",
	}
	host = configVar[string]{
		envKey:       "SERVER_HOST",
		flagKey:      "host",
		defaultValue: "0.0.0.0",
		usage:        "Server host",
	}
	logLevel = configVar[string]{
		envKey:       "SERVER_LOG_LEVEL",
		flagKey:      "log-level",
		defaultValue: "INFO",
		usage:        "Logging level",
	}
	allowedOrigins = configVar[[]string]{
		envKey:       "SERVER_ALLOWED_ORIGINS",
		flagKey:      "allowed-origins",
		defaultValue: nil,
		usage:        "Allowed CORS and websocket origins, any when empty",
	}
	maxMessageBytes = configVar[int64]{
		envKey:       "SERVER_MAX_MESSAGE_BYTES",
		flagKey:      "max-message-bytes",
		defaultValue: 16 << 20,
		usage:        "Maximum websocket message size",
	}
	maxSnapshotBytes = configVar[int]{
		envKey:       "SERVER_MAX_SNAPSHOT_BYTES",
		flagKey:      "max-snapshot-bytes",
		defaultValue: 8 << 20,
		usage:        "Maximum encoded snapshot size",
	}
	maxSnapshotSide = configVar[int]{
		envKey:       "SERVER_MAX_SNAPSHOT_SIDE",
		flagKey:      "max-snapshot-side",
		defaultValue: 8192,
		usage:        "Maximum snapshot width or height in pixels",
	}
	listLimit = configVar[int64]{
		envKey:       "SERVER_LIST_LIMIT",
		flagKey:      "list-limit",
		defaultValue: 100,
		usage:        "Maximum number of snapshots returned by the listing",
	}
	participantExp = configVar[time.Duration]{
		envKey:       "SERVER_PARTICIPANT_EXP",
		flagKey:      "participant-exp",
		defaultValue: 24 * time.Hour,
		usage:        "How long a disconnected participant can be resumed",
	}
	shutdownTimeout = configVar[time.Duration]{
		envKey:       "SERVER_SHUTDOWN_TIMEOUT",
		flagKey:      "shutdown-timeout",
		defaultValue: 30 * time.Second,
		usage:        "Graceful shutdown timeout",
	}
	mdnsEnabled = configVar[bool]{
		envKey:       "SERVER_MDNS",
		flagKey:      "mdns",
		defaultValue: false,
		usage:        "Advertise the server on the local network",
	}
	mdnsInstance = configVar[string]{
		envKey:       "SERVER_MDNS_INSTANCE",
		flagKey:      "mdns-instance",
		defaultValue: "",
		usage:        "mDNS instance name, hostname when empty",
	}
	redisPort = configVar[int]{
		envKey:       "REDIS_PORT",
		flagKey:      "redis-port",
		defaultValue: 6379,
		usage:        "Redis port",
	}
	redisHost = configVar[string]{
		envKey:       "REDIS_HOST",
		flagKey:      "redis-host",
		defaultValue: "localhost",
		usage:        "Redis host",
	}
	redisPassword = configVar[string]{
		envKey:       "REDIS_PASSWORD",
		flagKey:      "redis-password",
		defaultValue: "",
		usage:        "Redis password",
	}
	redisDB = configVar[int]{
		envKey:       "REDIS_DB",
		flagKey:      "redis-db",
		defaultValue: 0,
		usage:        "Redis database",
	}
	snapshotStore = configVar[string]{
		envKey:       "SNAPSHOT_STORE",
		flagKey:      "snapshot-store",
		defaultValue: app.SnapshotStoreRedis,
		usage:        "Where snapshot images are kept: redis or s3",
	}
	s3Bucket = configVar[string]{
		envKey:       "S3_BUCKET",
		flagKey:      "s3-bucket",
		defaultValue: "",
		usage:        "S3 bucket for snapshot images",
	}
	s3Prefix = configVar[string]{
		envKey:       "S3_PREFIX",
		flagKey:      "s3-prefix",
		defaultValue: "whiteboards",
		usage:        "S3 key prefix",
	}
	s3Region = configVar[string]{
		envKey:       "S3_REGION",
		flagKey:      "s3-region",
		defaultValue: "us-east-1",
		usage:        "S3 region",
	}
	s3Endpoint = configVar[string]{
		envKey:       "S3_ENDPOINT",
		flagKey:      "s3-endpoint",
		defaultValue: "",
		usage:        "S3 compatible endpoint, AWS when empty",
	}
	s3AccessKey = configVar[string]{
		envKey:       "S3_ACCESS_KEY",
		flagKey:      "s3-access-key",
		defaultValue: "",
		usage:        "S3 access key",
	}
	s3SecretKey = configVar[string]{
		envKey:       "S3_SECRET_KEY",
		flagKey:      "s3-secret-key",
		defaultValue: "",
		usage:        "S3 secret key",
	}
)

func loadAppConfig() (*app.AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	bind(port, pflag.Int)
	bind(host, pflag.String)
	bind(logLevel, pflag.String)
	bind(allowedOrigins, pflag.StringSlice)
	bind(maxMessageBytes, pflag.Int64)
	bind(maxSnapshotBytes, pflag.Int)
	bind(maxSnapshotSide, pflag.Int)
	bind(listLimit, pflag.Int64)
	bind(participantExp, pflag.Duration)
	bind(shutdownTimeout, pflag.Duration)
	bind(mdnsEnabled, pflag.Bool)
	bind(mdnsInstance, pflag.String)
	bind(redisPort, pflag.Int)
	bind(redisHost, pflag.String)
	bind(redisPassword, pflag.String)
	bind(redisDB, pflag.Int)
	bind(snapshotStore, pflag.String)
	bind(s3Bucket, pflag.String)
	bind(s3Prefix, pflag.String)
	bind(s3Region, pflag.String)
	bind(s3Endpoint, pflag.String)
	bind(s3AccessKey, pflag.String)
	bind(s3SecretKey, pflag.String)
	pflag.Parse()

	if err := viper.BindPFlags(pflag.CommandLine); err != nil {
		return nil, err
	}

	config := &app.AppConfig{
		Host:             viper.GetString(host.flagKey),
		Port:             viper.GetInt(port.flagKey),
		LogLevel:         viper.GetString(logLevel.flagKey),
		AllowedOrigins:   viper.GetStringSlice(allowedOrigins.flagKey),
		MaxMessageBytes:  viper.GetInt64(maxMessageBytes.flagKey),
		MaxSnapshotBytes: viper.GetInt(maxSnapshotBytes.flagKey),
		MaxSnapshotSide:  viper.GetInt(maxSnapshotSide.flagKey),
		ListLimit:        viper.GetInt64(listLimit.flagKey),
		ParticipantExp:   viper.GetDuration(participantExp.flagKey),
		ShutdownTimeout:  viper.GetDuration(shutdownTimeout.flagKey),
		MDNS:             viper.GetBool(mdnsEnabled.flagKey),
		MDNSInstance:     viper.GetString(mdnsInstance.flagKey),
		RedisPort:        viper.GetInt(redisPort.flagKey),
		RedisHost:        viper.GetString(redisHost.flagKey),
		RedisPassword:    viper.GetString(redisPassword.flagKey),
		RedisDB:          viper.GetInt(redisDB.flagKey),
		SnapshotStore:    viper.GetString(snapshotStore.flagKey),
		S3Bucket:         viper.GetString(s3Bucket.flagKey),
		S3Prefix:         viper.GetString(s3Prefix.flagKey),
		S3Region:         viper.GetString(s3Region.flagKey),
		S3Endpoint:       viper.GetString(s3Endpoint.flagKey),
		S3AccessKey:      viper.GetString(s3AccessKey.flagKey),
		S3SecretKey:      viper.GetString(s3SecretKey.flagKey),
	}

	return config, config.Validate()
}

func main() {
	ctx := context.Background()

	appConfig, err := loadAppConfig()
	if err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	jsonConfig, _ := json.MarshalIndent(appConfig, "", "  ")
	fmt.Printf("starting app with config: %s\n", jsonConfig)

	log.Fatal(app.Run(ctx, appConfig))
}
