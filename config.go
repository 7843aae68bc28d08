// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2015-2016 The Decred developers
// Copyright (C) 2015-2020 The Lightning Network Developers
package llmqd

import (
	"errors"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	flags "github.com/jessevdk/go-flags"
	"github.com/piratecash/llmqd/build"
	"github.com/piratecash/llmqd/lncfg"
	"github.com/piratecash/llmqd/llmq"
	"github.com/piratecash/llmqd/signal"
)

const (
	defaultConfigFilename = "llmqd.conf"
	defaultDataDirname    = "data"
	defaultLogLevel       = "info"
	defaultLogDirname     = "logs"
	defaultLogFilename    = "llmqd.log"
	defaultNetwork        = "regtest"
)

var (
	// DefaultLlmqdDir is the default directory where llmqd tries to find
	// its configuration file and store its data.
	DefaultLlmqdDir = btcutil.AppDataDir("llmqd", false)

	// DefaultConfigFile is the default full path of llmqd's configuration
	// file.
	DefaultConfigFile = filepath.Join(DefaultLlmqdDir, defaultConfigFilename)

	defaultDataDir = filepath.Join(DefaultLlmqdDir, defaultDataDirname)
	defaultLogDir  = filepath.Join(DefaultLlmqdDir, defaultLogDirname)
)

// Config defines the configuration options for llmqd.
//
// See LoadConfig for further details regarding the configuration
// loading+parsing process.
type Config struct {
	ShowVersion bool `short:"V" long:"version" description:"Display version information and exit"`

	LlmqdDir   string `long:"llmqddir" description:"The base directory that contains llmqd's data, logs, configuration file, etc."`
	ConfigFile string `short:"C" long:"configfile" description:"Path to configuration file"`
	DataDir    string `short:"b" long:"datadir" description:"The directory to store llmqd's data within"`
	LogDir     string `long:"logdir" description:"Directory to log output."`

	DebugLevel string `short:"d" long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <global-level>,<subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems -- Use show to list available subsystems"`

	Network string `long:"network" description:"The network whose quorum parameters are used." choice:"mainnet" choice:"testnet" choice:"devnet" choice:"regtest"`

	LogConfig *build.LogConfig `group:"logging" namespace:"logging"`

	LLMQ *lncfg.LLMQ `group:"llmq" namespace:"llmq"`

	Simnet *lncfg.Simnet `group:"simnet" namespace:"simnet"`

	DB *lncfg.DB `group:"db" namespace:"db"`

	Prometheus *lncfg.Prometheus `group:"prometheus" namespace:"prometheus"`

	HealthChecks *lncfg.HealthCheckConfig `group:"healthcheck" namespace:"healthcheck"`

	// NetParams are the quorum parameters of the selected network. They
	// are set by ValidateConfig.
	NetParams *llmq.NetParams

	// SubLogMgr is the root logger that all the daemon's subloggers are
	// hooked up to.
	SubLogMgr  *build.SubLoggerManager
	LogRotator *build.RotatingLogWriter
}

// DefaultConfig returns all default values for the Config struct.
func DefaultConfig() Config {
	prometheus := lncfg.DefaultPrometheus()

	return Config{
		LlmqdDir:     DefaultLlmqdDir,
		ConfigFile:   DefaultConfigFile,
		DataDir:      defaultDataDir,
		LogDir:       defaultLogDir,
		DebugLevel:   defaultLogLevel,
		Network:      defaultNetwork,
		LogConfig:    build.DefaultLogConfig(),
		LLMQ:         lncfg.DefaultLLMQ(),
		Simnet:       lncfg.DefaultSimnet(),
		DB:           lncfg.DefaultDB(),
		Prometheus:   &prometheus,
		HealthChecks: lncfg.DefaultHealthCheck(),
		LogRotator:   build.NewRotatingLogWriter(),
	}
}

// LoadConfig initializes and parses the config using a config file and command
// line options.
//
// The configuration proceeds as follows:
//  1. Start with a default config with sane settings
//  2. Pre-parse the command line to check for an alternative config file
//  3. Load configuration file overwriting defaults with any specified options
//  4. Parse CLI options and overwrite/add any specified options
func LoadConfig(interceptor signal.Interceptor) (*Config, error) {
	// Pre-parse the command line options to pick up an alternative config
	// file.
	preCfg := DefaultConfig()
	if _, err := flags.Parse(&preCfg); err != nil {
		return nil, err
	}

	// Show the version and exit if the version flag was specified.
	appName := filepath.Base(os.Args[0])
	appName = strings.TrimSuffix(appName, filepath.Ext(appName))
	if preCfg.ShowVersion {
		fmt.Println(appName, "version", build.Version(),
			"commit="+build.Commit)
		os.Exit(0)
	}

	// If the config file path has not been modified by the user, then we'll
	// use the default config file path. However, if the user has modified
	// their llmqddir, then we should assume they intend to use the config
	// file within it.
	configFileDir := CleanAndExpandPath(preCfg.LlmqdDir)
	configFilePath := CleanAndExpandPath(preCfg.ConfigFile)
	if configFileDir != DefaultLlmqdDir {
		if configFilePath == DefaultConfigFile {
			configFilePath = filepath.Join(
				configFileDir, defaultConfigFilename,
			)
		}
	}

	// Next, load any additional configuration options from the file.
	var configFileError error
	cfg := preCfg
	if err := flags.IniParse(configFilePath, &cfg); err != nil {
		// If it's a parsing related error, then we'll return
		// immediately, otherwise we can proceed as possibly the config
		// file doesn't exist which is OK.
		var iniErr *flags.IniError
		if errors.As(err, &iniErr) {
			return nil, err
		}

		configFileError = err
	}

	// Finally, parse the remaining command line options again to ensure
	// they take precedence.
	if _, err := flags.Parse(&cfg); err != nil {
		return nil, err
	}

	// Make sure everything we just loaded makes sense.
	cleanCfg, err := ValidateConfig(cfg, interceptor)
	if err != nil {
		return nil, err
	}

	// Warn about missing config file only after all other configuration is
	// done. This prevents the warning on help messages and invalid
	// options. Note this should go directly before the return.
	if configFileError != nil {
		ltndLog.Warnf("%v", configFileError)
	}

	return cleanCfg, nil
}

// ValidateConfig checks the given configuration to be sane. All file system
// paths are normalized and the loggers are set up. The cleaned up config is
// returned on success.
func ValidateConfig(cfg Config, interceptor signal.Interceptor) (*Config,
	error) {

	// If the provided llmqd directory is not the default, we'll modify the
	// path to all of the files and directories that will live within it.
	llmqdDir := CleanAndExpandPath(cfg.LlmqdDir)
	if llmqdDir != DefaultLlmqdDir {
		cfg.DataDir = filepath.Join(llmqdDir, defaultDataDirname)
		cfg.LogDir = filepath.Join(llmqdDir, defaultLogDirname)
	}

	// Create the llmqd directory and all other sub-directories if they
	// don't already exist. This makes sure that directory trees are also
	// created for files that point to outside the llmqd dir.
	dirs := []string{llmqdDir, cfg.DataDir}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create directory "+
				"%s: %w", dir, err)
		}
	}

	cfg.DataDir = CleanAndExpandPath(cfg.DataDir)
	cfg.LogDir = CleanAndExpandPath(cfg.LogDir)

	netParams, err := llmq.ParamsForNetwork(cfg.Network)
	if err != nil {
		return nil, err
	}
	cfg.NetParams = netParams

	if err := cfg.LLMQ.Parse(netParams); err != nil {
		return nil, err
	}

	err = lncfg.Validate(
		cfg.Simnet, cfg.DB, cfg.Prometheus, cfg.HealthChecks,
		cfg.LogConfig,
	)
	if err != nil {
		return nil, err
	}

	// Append the network type to the log directory so it is "namespaced"
	// per network in the same fashion as the data directory.
	cfg.LogDir = filepath.Join(cfg.LogDir, netParams.Name)

	// A log writer must be passed in, otherwise we can't function and would
	// run into a panic later on.
	if cfg.LogRotator == nil {
		return nil, errors.New("log rotator cannot be nil")
	}

	// Initialize logging at the default logging level.
	logHandlers := build.NewDefaultLogHandlers(cfg.LogConfig, cfg.LogRotator)
	cfg.SubLogMgr = build.NewSubLoggerManager(logHandlers...)
	SetupLoggers(cfg.SubLogMgr, interceptor)

	// Special show command to list supported subsystems and exit.
	if cfg.DebugLevel == "show" {
		fmt.Println("Supported subsystems",
			cfg.SubLogMgr.SupportedSubsystems())
		os.Exit(0)
	}

	err = cfg.LogRotator.InitLogRotator(
		cfg.LogConfig.File, filepath.Join(cfg.LogDir, defaultLogFilename),
	)
	if err != nil {
		return nil, err
	}

	// Parse, validate, and set debug log level(s).
	err = build.ParseAndSetDebugLevels(cfg.DebugLevel, cfg.SubLogMgr)
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}

// networkDir returns the directory holding the data of the selected network.
func (c *Config) networkDir() string {
	return filepath.Join(c.DataDir, c.NetParams.Name)
}

// CleanAndExpandPath expands environment variables and leading ~ in the
// passed path, cleans the result, and returns it.
// This function is taken from https://github.com/btcsuite/btcd
func CleanAndExpandPath(path string) string {
	if path == "" {
		return ""
	}

	// Expand initial ~ to OS specific home directory.
	if strings.HasPrefix(path, "~") {
		var homeDir string
		u, err := user.Current()
		if err == nil {
			homeDir = u.HomeDir
		} else {
			homeDir = os.Getenv("HOME")
		}

		path = strings.Replace(path, "~", homeDir, 1)
	}

	// NOTE: The os.ExpandEnv doesn't work with Windows-style %VARIABLE%,
	// but the variables can still be expanded via POSIX-style $VARIABLE.
	return filepath.Clean(os.ExpandEnv(path))
}
