package source

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/justapithecus/camrelay/capture"
)

func TestSlice_YieldsInOrderThenEOF(t *testing.T) {
	src := NewSlice([]byte("a"), []byte("bc"))
	ctx := t.Context()

	var got []string
	for {
		dg, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		got = append(got, string(dg.Data))
	}

	if diff := cmp.Diff([]string{"a", "bc"}, got); diff != "" {
		t.Errorf("datagrams mismatch (-want +got):\n%s", diff)
	}
}

func TestSlice_CopiesData(t *testing.T) {
	orig := []byte{1, 2, 3}
	src := NewSlice(orig)

	dg, err := src.Next(t.Context())
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	dg.Data[0] = 9
	if orig[0] != 1 {
		t.Error("Slice returned caller's backing array")
	}
}

func TestSlice_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := NewSlice([]byte("a")).Next(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestUDP_ReceivesDatagrams(t *testing.T) {
	src, err := ListenUDP(UDPConfig{Addr: "127.0.0.1:0"})
	if err != nil {
		t.Fatalf("ListenUDP: %v", err)
	}
	defer func() { _ = src.Close() }()

	conn, err := net.Dial("udp", src.LocalAddr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer func() { _ = conn.Close() }()

	want := [][]byte{{0x90, 0x60, 0, 0}, {0x80, 0xe0, 0, 1}}
	for _, b := range want {
		if _, err := conn.Write(b); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	for i, w := range want {
		dg, err := src.Next(ctx)
		if err != nil {
			t.Fatalf("Next %d: %v", i, err)
		}
		if diff := cmp.Diff(w, dg.Data); diff != "" {
			t.Errorf("datagram %d mismatch (-want +got):\n%s", i, diff)
		}
		if dg.Addr != conn.LocalAddr().String() {
			t.Errorf("Addr = %q, want %q", dg.Addr, conn.LocalAddr().String())
		}
	}
}

func TestUDP_TruncatesToBufferSize(t *testing.T) {
	src, err := ListenUDP(UDPConfig{Addr: "127.0.0.1:0", MaxDatagramSize: 4})
	if err != nil {
		t.Fatalf("ListenUDP: %v", err)
	}
	defer func() { _ = src.Close() }()

	conn, err := net.Dial("udp", src.LocalAddr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer func() { _ = conn.Close() }()

	if _, err := conn.Write([]byte{1, 2, 3, 4, 5, 6}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	dg, err := src.Next(ctx)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if len(dg.Data) != 4 {
		t.Errorf("len = %d, want 4", len(dg.Data))
	}
}

func TestUDP_CancelUnblocksNext(t *testing.T) {
	src, err := ListenUDP(UDPConfig{Addr: "127.0.0.1:0"})
	if err != nil {
		t.Fatalf("ListenUDP: %v", err)
	}
	defer func() { _ = src.Close() }()

	ctx, cancel := context.WithTimeout(t.Context(), 100*time.Millisecond)
	defer cancel()

	_, err = src.Next(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want context.DeadlineExceeded", err)
	}
}

func TestUDP_ReadTimeout(t *testing.T) {
	src, err := ListenUDP(UDPConfig{Addr: "127.0.0.1:0", ReadTimeout: 50 * time.Millisecond})
	if err != nil {
		t.Fatalf("ListenUDP: %v", err)
	}
	defer func() { _ = src.Close() }()

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	_, err = src.Next(ctx)
	if !errors.Is(err, ErrIdle) {
		t.Errorf("err = %v, want ErrIdle", err)
	}
}

func TestListenUDP_RejectsBadSize(t *testing.T) {
	if _, err := ListenUDP(UDPConfig{Addr: "127.0.0.1:0", MaxDatagramSize: 70000}); err == nil {
		t.Error("expected error for oversized buffer")
	}
}

func TestCapture_Replay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.cap")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	w := capture.NewWriter(f)
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for _, d := range [][]byte{{1}, {2, 3}} {
		if err := w.WriteDatagram(ts, "10.0.0.2:5000", d); err != nil {
			t.Fatalf("WriteDatagram: %v", err)
		}
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	src, err := OpenCapture(path)
	if err != nil {
		t.Fatalf("OpenCapture: %v", err)
	}
	defer func() { _ = src.Close() }()

	var got []Datagram
	for {
		dg, err := src.Next(t.Context())
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		got = append(got, dg)
	}

	want := []Datagram{
		{Data: []byte{1}, Addr: "10.0.0.2:5000", Ts: ts},
		{Data: []byte{2, 3}, Addr: "10.0.0.2:5000", Ts: ts},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("datagrams mismatch (-want +got):\n%s", diff)
	}
}

func TestOpenCapture_Missing(t *testing.T) {
	if _, err := OpenCapture(filepath.Join(t.TempDir(), "nope.cap")); err == nil {
		t.Error("expected error for missing file")
	}
}

// writePcap writes one Ethernet/IPv4/UDP packet per payload.
func writePcap(t *testing.T, path string, packets []struct {
	dstPort uint16
	payload []byte
}) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer func() { _ = f.Close() }()

	w := pcapgo.NewWriter(f)
	if err := w.WriteFileHeader(65536, layers.LinkTypeEthernet); err != nil {
		t.Fatalf("WriteFileHeader: %v", err)
	}

	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, p := range packets {
		eth := &layers.Ethernet{
			SrcMAC:       net.HardwareAddr{0, 1, 2, 3, 4, 5},
			DstMAC:       net.HardwareAddr{6, 7, 8, 9, 10, 11},
			EthernetType: layers.EthernetTypeIPv4,
		}
		ip := &layers.IPv4{
			Version:  4,
			TTL:      64,
			Protocol: layers.IPProtocolUDP,
			SrcIP:    net.IPv4(192, 168, 1, 20),
			DstIP:    net.IPv4(192, 168, 1, 10),
		}
		udp := &layers.UDP{SrcPort: 40000, DstPort: layers.UDPPort(p.dstPort)}
		if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
			t.Fatalf("SetNetworkLayerForChecksum: %v", err)
		}

		buf := gopacket.NewSerializeBuffer()
		opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
		if err := gopacket.SerializeLayers(buf, opts, eth, ip, udp, gopacket.Payload(p.payload)); err != nil {
			t.Fatalf("SerializeLayers: %v", err)
		}

		data := buf.Bytes()
		ci := gopacket.CaptureInfo{
			Timestamp:     ts.Add(time.Duration(i) * time.Millisecond),
			CaptureLength: len(data),
			Length:        len(data),
		}
		if err := w.WritePacket(ci, data); err != nil {
			t.Fatalf("WritePacket: %v", err)
		}
	}
}

func TestPcap_FiltersByPort(t *testing.T) {
	path := filepath.Join(t.TempDir(), "camera.pcap")
	writePcap(t, path, []struct {
		dstPort uint16
		payload []byte
	}{
		{23333, []byte("first")},
		{53, []byte("dns")},
		{23333, []byte("second")},
	})

	src, err := OpenPcap(path, 23333)
	if err != nil {
		t.Fatalf("OpenPcap: %v", err)
	}
	defer func() { _ = src.Close() }()

	var got []string
	for {
		dg, err := src.Next(t.Context())
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if dg.Addr != "192.168.1.20:40000" {
			t.Errorf("Addr = %q", dg.Addr)
		}
		got = append(got, string(dg.Data))
	}

	if diff := cmp.Diff([]string{"first", "second"}, got); diff != "" {
		t.Errorf("payloads mismatch (-want +got):\n%s", diff)
	}
}

func TestPcap_AllPorts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "camera.pcap")
	writePcap(t, path, []struct {
		dstPort uint16
		payload []byte
	}{
		{23333, []byte("a")},
		{9999, []byte("b")},
	})

	src, err := OpenPcap(path, 0)
	if err != nil {
		t.Fatalf("OpenPcap: %v", err)
	}
	defer func() { _ = src.Close() }()

	n := 0
	for {
		_, err := src.Next(t.Context())
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		n++
	}
	if n != 2 {
		t.Errorf("got %d datagrams, want 2", n)
	}
}

func TestOpenPcap_RejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.pcap")
	if err := os.WriteFile(path, []byte("not a pcap file at all, definitely"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := OpenPcap(path, 0); err == nil {
		t.Error("expected error for garbage input")
	}
}
