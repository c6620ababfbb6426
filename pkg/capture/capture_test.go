package capture

import (
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tcpPacket(t *testing.T, src, dst string, payload []byte) []byte {
	t.Helper()
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x02, 0, 0, 0, 0, 1},
		DstMAC:       net.HardwareAddr{0x02, 0, 0, 0, 0, 2},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{Version: 4, TTL: 64, Protocol: layers.IPProtocolTCP, SrcIP: net.ParseIP(src).To4(), DstIP: net.ParseIP(dst).To4()}
	tcp := &layers.TCP{SrcPort: 40000, DstPort: 80, PSH: true, ACK: true, Seq: 1, Window: 1024}
	require.NoError(t, tcp.SetNetworkLayerForChecksum(ip))

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, eth, ip, tcp, gopacket.Payload(payload)))
	return buf.Bytes()
}

func arpPacket(t *testing.T) []byte {
	t.Helper()
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x02, 0, 0, 0, 0, 3},
		DstMAC:       layers.EthernetBroadcast,
		EthernetType: layers.EthernetTypeARP,
	}
	arp := &layers.ARP{
		AddrType: layers.LinkTypeEthernet, Protocol: layers.EthernetTypeIPv4,
		HwAddressSize: 6, ProtAddressSize: 4, Operation: layers.ARPRequest,
		SourceHwAddress: []byte{0x02, 0, 0, 0, 0, 3}, SourceProtAddress: []byte{10, 0, 0, 3},
		DstHwAddress: []byte{0, 0, 0, 0, 0, 0}, DstProtAddress: []byte{10, 0, 0, 1},
	}
	buf := gopacket.NewSerializeBuffer()
	require.NoError(t, gopacket.SerializeLayers(buf, gopacket.SerializeOptions{FixLengths: true}, eth, arp))
	return buf.Bytes()
}

func writeCapture(t *testing.T, packets ...[]byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tcpdump.pcap")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := pcapgo.NewWriter(f)
	require.NoError(t, w.WriteFileHeader(65536, layers.LinkTypeEthernet))
	for _, p := range packets {
		ci := gopacket.CaptureInfo{Timestamp: time.Unix(1600000000, 0), CaptureLength: len(p), Length: len(p)}
		require.NoError(t, w.WritePacket(ci, p))
	}
	return path
}

func TestReadFile(t *testing.T) {
	request := []byte("GET / HTTP/1.1\r\nHost: sut\r\nRange: bytes=0-,5-0,5-1,5-2\r\nUser-Agent: KillApachePy (0.1c)\r\n\r\n")
	path := writeCapture(t,
		tcpPacket(t, "10.0.0.5", "10.0.0.1", request),
		tcpPacket(t, "10.0.0.1", "10.0.0.5", []byte("HTTP/1.1 206 Partial Content\r\n\r\n")),
		tcpPacket(t, "10.0.0.6", "10.0.0.1", nil),
		arpPacket(t),
	)

	records, err := ReadFile(path)
	require.NoError(t, err)
	require.Len(t, records, 4)

	tests := []struct {
		name     string
		record   Record
		source   string
		protocol string
	}{
		{"http request", records[0], "10.0.0.5", "HTTP"},
		{"http response", records[1], "10.0.0.1", "HTTP"},
		{"bare tcp", records[2], "10.0.0.6", "TCP"},
		{"arp uses the hardware address", records[3], "02:00:00:00:00:03", "ARP"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.source, tt.record.Source)
			assert.Equal(t, tt.protocol, tt.record.Protocol)
		})
	}

	assert.Equal(t, "bytes=0-,5-0,5-1,5-2", records[0].Range)
	assert.Equal(t, "KillApachePy (0.1c)", records[0].UserAgent)
	assert.Equal(t, "GET / HTTP/1.1", records[0].RequestLine)
	assert.Greater(t, records[0].Length, len(request))

	sources := SourceAddresses(records)
	assert.Len(t, sources, 4)
}

func TestReadFileRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tcpdump.pcap")
	require.NoError(t, os.WriteFile(path, []byte("not a capture"), 0644))

	_, err := ReadFile(path)
	assert.Error(t, err)
}
