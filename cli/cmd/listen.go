package cmd

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/camrelay/cli/config"
	"github.com/justapithecus/camrelay/source"
)

// ListenCommand returns the listen command.
// Listen binds a UDP socket and reassembles images until interrupted,
// the read timeout elapses, or a sink write fails.
//
// Exit codes:
//   - 0: completed or interrupted
//   - 1: invalid flags or config
//   - 2: source error (bind or read failure)
//   - 3: sink error
func ListenCommand() *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:  "addr",
			Usage: "UDP address to bind",
			Value: "0.0.0.0:23333",
		},
		&cli.IntFlag{
			Name:  "max-datagram-size",
			Usage: "Receive buffer size in bytes",
			Value: source.DefaultMaxDatagramSize,
		},
		&cli.DurationFlag{
			Name:  "read-timeout",
			Usage: "End the session after this long without traffic (0 waits forever)",
		},
	}
	return &cli.Command{
		Name:   "listen",
		Usage:  "Receive fragments over UDP and write completed images",
		Flags:  append(flags, receiveFlags()...),
		Action: listenAction,
	}
}

func listenAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}
	opts, err := resolveReceiveOptions(c, cfg)
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}

	udpCfg := source.UDPConfig{
		Addr:            resolveString(c, "addr", configVal(cfg, func(c *config.Config) string { return c.Listen.Addr })),
		MaxDatagramSize: resolveInt(c, "max-datagram-size", configVal(cfg, func(c *config.Config) int { return c.Listen.MaxDatagramSize })),
		ReadTimeout:     resolveDuration(c, "read-timeout", configVal(cfg, func(c *config.Config) time.Duration { return c.Listen.ReadTimeout.Duration })),
	}
	src, err := source.ListenUDP(udpCfg)
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to listen: %v", err), exitSourceError)
	}

	return runReceiver(c, src, opts)
}
