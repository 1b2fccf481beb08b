package cmd

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/camrelay/source"
)

// inputFlags select a recorded input: a camrelay capture or a pcap file.
func inputFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "file",
			Usage: "Capture file written by camrelay record",
		},
		&cli.StringFlag{
			Name:  "pcap",
			Usage: "pcap or pcapng file (e.g. from tcpdump)",
		},
		&cli.UintFlag{
			Name:  "port",
			Usage: "With --pcap, only replay UDP datagrams to this port (0 for all)",
		},
	}
}

// openInput opens the recorded input named by --file or --pcap.
func openInput(c *cli.Context) (source.Source, error) {
	file, pcap := c.String("file"), c.String("pcap")
	switch {
	case file != "" && pcap != "":
		return nil, errors.New("--file and --pcap are mutually exclusive")
	case file != "":
		return source.OpenCapture(file)
	case pcap != "":
		port := c.Uint("port")
		if port > 65535 {
			return nil, fmt.Errorf("invalid --port %d", port)
		}
		return source.OpenPcap(pcap, uint16(port))
	default:
		return nil, errors.New("one of --file or --pcap is required")
	}
}

// ReplayCommand returns the replay command.
// Replay feeds a recorded input through the same session as listen.
// Exit codes match listen.
func ReplayCommand() *cli.Command {
	return &cli.Command{
		Name:   "replay",
		Usage:  "Reassemble images from a capture or pcap file",
		Flags:  append(inputFlags(), receiveFlags()...),
		Action: replayAction,
	}
}

func replayAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}
	opts, err := resolveReceiveOptions(c, cfg)
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}

	src, err := openInput(c)
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to open input: %v", err), exitSourceError)
	}
	return runReceiver(c, src, opts)
}
