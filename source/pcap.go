package source

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// pcapngMagic is the section header block type that opens a pcapng file.
var pcapngMagic = []byte{0x0a, 0x0d, 0x0d, 0x0a}

// Pcap replays UDP payloads from a pcap or pcapng file.
// Non-UDP packets, and UDP packets to other ports when Port is set, are skipped.
type Pcap struct {
	path    string
	file    *os.File
	packets *gopacket.PacketSource
	port    layers.UDPPort
}

// OpenPcap opens a capture file written by tcpdump or Wireshark.
// port filters on UDP destination port; zero accepts every port.
func OpenPcap(path string, port uint16) (*Pcap, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pcap: %w", err)
	}

	br := bufio.NewReader(f)
	magic, err := br.Peek(4)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("read pcap header: %w", err)
	}

	var packets *gopacket.PacketSource
	if bytes.Equal(magic, pcapngMagic) {
		r, err := pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("open pcapng %s: %w", path, err)
		}
		packets = gopacket.NewPacketSource(r, r.LinkType())
	} else {
		r, err := pcapgo.NewReader(br)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("open pcap %s: %w", path, err)
		}
		packets = gopacket.NewPacketSource(r, r.LinkType())
	}
	packets.DecodeOptions = gopacket.DecodeOptions{Lazy: true, NoCopy: true}

	return &Pcap{
		path:    path,
		file:    f,
		packets: packets,
		port:    layers.UDPPort(port),
	}, nil
}

// Next implements Source.
func (p *Pcap) Next(ctx context.Context) (Datagram, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Datagram{}, err
		}

		packet, err := p.packets.NextPacket()
		if err != nil {
			if err == io.EOF {
				return Datagram{}, io.EOF
			}
			return Datagram{}, fmt.Errorf("read pcap %s: %w", p.path, err)
		}

		udpLayer := packet.Layer(layers.LayerTypeUDP)
		if udpLayer == nil {
			continue
		}
		udp, ok := udpLayer.(*layers.UDP)
		if !ok {
			continue
		}
		if p.port != 0 && udp.DstPort != p.port {
			continue
		}

		dg := Datagram{
			Data: append([]byte(nil), udp.Payload...),
			Ts:   packet.Metadata().Timestamp,
		}
		if nl := packet.NetworkLayer(); nl != nil {
			dg.Addr = net.JoinHostPort(nl.NetworkFlow().Src().String(), strconv.Itoa(int(udp.SrcPort)))
		}
		return dg, nil
	}
}

// Close implements Source.
func (p *Pcap) Close() error {
	return p.file.Close()
}

// Describe implements Source.
func (p *Pcap) Describe() string {
	return "pcap://" + p.path
}

var _ Source = (*Pcap)(nil)
