package main

import (
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/chatflow/chatflow/agent"
	"github.com/chatflow/chatflow/config"
	"github.com/chatflow/chatflow/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type cfg struct {
	config.Config
}
type cli struct {
	cfg cfg
}

func setupFlags(cmd *cobra.Command) error {
	cmd.Flags().String("config-file", "", "Path to config file.")
	cmd.Flags().Int("http-port", 8080, "http port for rest endpoints")
	cmd.Flags().Bool("debug", false, "enable debug logging")
	cmd.Flags().String("redis-addr", "localhost:6379", "comma separated list of redis host:port")
	cmd.Flags().String("namespace", "chatflow", "namespace used in storage")
	cmd.Flags().String("sqlite-path", "chatflow.db", "path of the sqlite database file")
	cmd.Flags().String("storage-impl", "redis", "implementation of underline storage (redis, sqlite, memory)")
	cmd.Flags().String("session-store-impl", "redis", "implementation of the session snapshot store (redis, memory)")
	cmd.Flags().Duration("session-ttl", 24*time.Hour, "ttl of session snapshots")
	cmd.Flags().String("flow-dir", "./flows", "directory of flow definition seed files")
	cmd.Flags().String("classifier-primary-url", "", "base url of the primary intent model service")
	cmd.Flags().String("classifier-secondary-url", "", "base url of the secondary intent model service")
	cmd.Flags().Duration("classifier-timeout", 3*time.Second, "per request timeout of the model service")
	cmd.Flags().Duration("classifier-health-interval", 30*time.Second, "primary health probe interval while degraded")
	cmd.Flags().Float64("classifier-threshold", 0.5, "confidence below which the generative fallback runs")
	cmd.Flags().String("generative-base-url", "", "openai compatible base url of the generative fallback")
	cmd.Flags().String("generative-api-key", "", "api key of the generative fallback")
	cmd.Flags().String("generative-model", "gpt-4o-mini", "model of the generative fallback")
	cmd.Flags().Duration("generative-timeout", 8*time.Second, "per request timeout of the generative fallback")
	cmd.Flags().String("sampler-sink", "queue", "training sample sink (queue, logfile, none)")
	cmd.Flags().String("sampler-file", "training_samples.log", "file of the logfile sampler sink")
	cmd.Flags().Float64("sampler-min-confidence", 0.7, "minimum confidence of a queued training sample")
	cmd.Flags().Int("sampler-capacity", 128, "training sampler buffer capacity")
	cmd.Flags().Duration("dedup-window", 1500*time.Millisecond, "window during which identical repeated messages are ignored")
	cmd.Flags().Float64("interrupt-threshold", 0.75, "confidence required for an intent to interrupt an active flow")
	cmd.Flags().Int("engine-max-iterations", 10, "auto advance iteration cap per engine pass")
	return viper.BindPFlags(cmd.Flags())
}

func (c *cli) setupConfig(cmd *cobra.Command, args []string) error {
	var err error

	configFile, err := cmd.Flags().GetString("config-file")
	if err != nil {
		return err
	}
	viper.SetConfigFile(configFile)

	if err = viper.ReadInConfig(); err != nil {
		// it's ok if config file doesn't exist
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configFile != "" {
			return err
		}
	}

	c.cfg.HttpPort = viper.GetInt("http-port")
	c.cfg.Debug = viper.GetBool("debug")
	c.cfg.RedisConfig.Addrs = strings.Split(viper.GetString("redis-addr"), ",")
	c.cfg.RedisConfig.Namespace = viper.GetString("namespace")
	c.cfg.SqliteConfig.Path = viper.GetString("sqlite-path")
	c.cfg.StorageType = config.StorageType(viper.GetString("storage-impl"))
	c.cfg.SessionStoreType = config.SessionStoreType(viper.GetString("session-store-impl"))
	c.cfg.SessionTTL = viper.GetDuration("session-ttl")
	c.cfg.FlowDir = viper.GetString("flow-dir")
	c.cfg.Classifier.PrimaryURL = viper.GetString("classifier-primary-url")
	c.cfg.Classifier.SecondaryURL = viper.GetString("classifier-secondary-url")
	c.cfg.Classifier.RequestTimeout = viper.GetDuration("classifier-timeout")
	c.cfg.Classifier.HealthCheckInterval = viper.GetDuration("classifier-health-interval")
	c.cfg.Classifier.ConfidenceThreshold = viper.GetFloat64("classifier-threshold")
	c.cfg.Classifier.Generative.BaseURL = viper.GetString("generative-base-url")
	c.cfg.Classifier.Generative.APIKey = viper.GetString("generative-api-key")
	c.cfg.Classifier.Generative.Model = viper.GetString("generative-model")
	c.cfg.Classifier.Generative.Timeout = viper.GetDuration("generative-timeout")
	c.cfg.Classifier.Sampler.SinkType = config.SamplerSinkType(viper.GetString("sampler-sink"))
	c.cfg.Classifier.Sampler.FileName = viper.GetString("sampler-file")
	c.cfg.Classifier.Sampler.MinConfidence = viper.GetFloat64("sampler-min-confidence")
	c.cfg.Classifier.Sampler.Capacity = viper.GetInt("sampler-capacity")
	c.cfg.Gateway.DedupWindow = viper.GetDuration("dedup-window")
	c.cfg.Gateway.InterruptThreshold = viper.GetFloat64("interrupt-threshold")
	c.cfg.Engine.MaxIterations = viper.GetInt("engine-max-iterations")
	return nil
}

func (c *cli) run(cmd *cobra.Command, args []string) error {
	logger.InitLogger(c.cfg.Debug)
	agent, err := agent.New(c.cfg.Config)
	if err != nil {
		panic(err)
	}
	err = agent.Start()
	if err != nil {
		panic(err)
	}
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	return agent.Shutdown()
}

func main() {
	cli := &cli{}

	cmd := &cobra.Command{
		Use:     "chatflow",
		PreRunE: cli.setupConfig,
		RunE:    cli.run,
	}

	if err := setupFlags(cmd); err != nil {
		log.Fatal(err)
	}

	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
