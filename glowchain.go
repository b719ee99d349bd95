package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"gregoryjjb/glowchain/clock"
	"gregoryjjb/glowchain/device"
	"gregoryjjb/glowchain/gpio"
)

// Populated by ldflags
var (
	version            string
	buildUnixTimestamp string
	commitHash         string
)

type BuildInfo struct {
	Version string
	Time    time.Time
	Commit  string
}

func main() {
	InitializeLogger(zerolog.InfoLevel)

	ts, _ := strconv.ParseInt(buildUnixTimestamp, 10, 64)
	build := BuildInfo{
		Version: version,
		Time:    time.Unix(ts, 0),
		Commit:  commitHash,
	}

	var flags Flags
	flag.StringVar(&flags.ConfigPath, "config", "", "Path to "+ConfigFileName)
	flag.BoolVar(&flags.Serve, "serve", false, "Serve the control API")
	versionFlag := flag.Bool("version", false, "Print version")
	systemdFlag := flag.Bool("systemd", false, "Print systemd service file")
	flag.Parse()

	if *versionFlag {
		fmt.Println("Glowchain version:", build.Version)
		fmt.Println("Built on:", build.Time)
		fmt.Println("Commit hash:", build.Commit)
		return
	}

	if *systemdFlag {
		if err := SystemdServiceFile(os.Stdout, flags.ConfigPath); err != nil {
			log.Fatal().Err(err).Msg("Could not render service file")
		}
		return
	}

	config, err := NewConfig(NewGlowOSFS(), flags, os.Getenv)
	if err != nil {
		log.Fatal().Err(err).Msg("Config initialization failed")
	}
	InitializeLogger(config.LogLevel())

	log.Info().
		Str("version", build.Version).
		Str("build_timestamp", build.Time.Format(time.RFC3339)).
		Str("commit_hash", build.Commit).
		Str("config", config.Path()).
		Msg("Initializing Glowchain")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	board, err := gpio.Open(config.Pinout(), clock.Real{})
	if err != nil {
		log.Fatal().Err(err).Msg("GPIO initialization failed")
	}
	defer func() {
		if err := board.Close(); err != nil {
			log.Err(err).Msg("GPIO close failed")
		}
	}()

	dev := device.New(board, config.DeviceOptions(clock.Real{}))

	if config.Serve() {
		go func() {
			if err := StartServer(ctx, config, build, dev, board); err != nil {
				log.Err(err).Msg("Server closed with error")
			}
		}()
	}

	dev.Start(ctx)
}
