package capture

import (
	"bufio"
	"bytes"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/pkg/errors"
	"github.com/twosixlabs/magicwand/pkg/log"
)

// Record is the per packet view used by the post-run verifications
type Record struct {
	Source      string
	Destination string
	Protocol    string
	Length      int
	UserAgent   string
	RequestLine string
	Range       string
}

// IsHTTP reports whether the record carries an HTTP message
func (r Record) IsHTTP() bool {
	return r.Protocol == "HTTP"
}

type packetReader interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
}

var httpMethods = []string{"GET ", "POST ", "HEAD ", "PUT ", "DELETE ", "OPTIONS ", "PATCH ", "CONNECT ", "TRACE "}

// ReadFile decodes every packet of a pcap or pcapng capture into records
func ReadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open capture %s", path)
	}
	defer f.Close()

	reader, err := newReader(f)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read capture %s", path)
	}

	var records []Record
	for {
		data, ci, err := reader.ReadPacketData()
		if err == io.EOF {
			break
		}
		if err != nil {
			// truncated captures are common when the sniffer is killed at teardown
			log.Warnf("[Capture]: stopped reading %s after %d packets, err: %v", path, len(records), err)
			break
		}
		packet := gopacket.NewPacket(data, reader.LinkType(), gopacket.DecodeOptions{Lazy: true, NoCopy: true})
		records = append(records, decode(packet, ci.Length))
	}
	return records, nil
}

func newReader(f *os.File) (packetReader, error) {
	r, err := pcapgo.NewReader(f)
	if err == nil {
		return r, nil
	}
	if _, serr := f.Seek(0, io.SeekStart); serr != nil {
		return nil, serr
	}
	ng, ngErr := pcapgo.NewNgReader(f, pcapgo.DefaultNgReaderOptions)
	if ngErr != nil {
		return nil, errors.Errorf("neither pcap (%v) nor pcapng (%v)", err, ngErr)
	}
	return ng, nil
}

func decode(packet gopacket.Packet, length int) Record {
	rec := Record{Length: length}

	switch {
	case packet.Layer(layers.LayerTypeIPv4) != nil:
		ip := packet.Layer(layers.LayerTypeIPv4).(*layers.IPv4)
		rec.Source, rec.Destination, rec.Protocol = ip.SrcIP.String(), ip.DstIP.String(), "IPv4"
	case packet.Layer(layers.LayerTypeIPv6) != nil:
		ip := packet.Layer(layers.LayerTypeIPv6).(*layers.IPv6)
		rec.Source, rec.Destination, rec.Protocol = ip.SrcIP.String(), ip.DstIP.String(), "IPv6"
	case packet.Layer(layers.LayerTypeEthernet) != nil:
		eth := packet.Layer(layers.LayerTypeEthernet).(*layers.Ethernet)
		rec.Source, rec.Destination, rec.Protocol = eth.SrcMAC.String(), eth.DstMAC.String(), eth.EthernetType.String()
	}

	if packet.Layer(layers.LayerTypeARP) != nil {
		rec.Protocol = "ARP"
	}
	if packet.Layer(layers.LayerTypeICMPv4) != nil {
		rec.Protocol = "ICMP"
	}
	if packet.Layer(layers.LayerTypeUDP) != nil {
		rec.Protocol = "UDP"
	}
	if tcpLayer := packet.Layer(layers.LayerTypeTCP); tcpLayer != nil {
		rec.Protocol = "TCP"
		tcp := tcpLayer.(*layers.TCP)
		parseHTTP(tcp.Payload, &rec)
	}
	return rec
}

func parseHTTP(payload []byte, rec *Record) {
	if len(payload) == 0 {
		return
	}
	if bytes.HasPrefix(payload, []byte("HTTP/1.")) {
		rec.Protocol = "HTTP"
		return
	}
	isRequest := false
	for _, m := range httpMethods {
		if bytes.HasPrefix(payload, []byte(m)) {
			isRequest = true
			break
		}
	}
	if !isRequest {
		return
	}
	rec.Protocol = "HTTP"

	req, err := http.ReadRequest(bufio.NewReader(bytes.NewReader(payload)))
	if err != nil {
		// headers split over several segments, keep what the first line says
		line, _, _ := bytes.Cut(payload, []byte("\r\n"))
		rec.RequestLine = string(line)
		for _, h := range strings.Split(string(payload), "\r\n") {
			if name, value, ok := strings.Cut(h, ":"); ok {
				switch strings.ToLower(strings.TrimSpace(name)) {
				case "range":
					rec.Range = strings.TrimSpace(value)
				case "user-agent":
					rec.UserAgent = strings.TrimSpace(value)
				}
			}
		}
		return
	}
	rec.RequestLine = req.Method + " " + req.RequestURI + " " + req.Proto
	rec.UserAgent = req.Header.Get("User-Agent")
	rec.Range = req.Header.Get("Range")
}

// SourceAddresses returns the distinct sources of the records
func SourceAddresses(records []Record) map[string]struct{} {
	out := map[string]struct{}{}
	for _, r := range records {
		if r.Source != "" {
			out[r.Source] = struct{}{}
		}
	}
	return out
}
