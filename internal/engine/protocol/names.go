package protocol

import "github.com/google/gopacket/layers"

// Unknown is the name given to protocol numbers outside the table below.
// It takes part in lookups like any other name.
const Unknown = "unknown"

// names is the closed subset of the IANA protocol-number registry seen in flow logs.
var names = map[layers.IPProtocol]string{
	layers.IPProtocolIPv6HopByHop: "hopopt",
	layers.IPProtocolICMPv4:       "icmp",
	layers.IPProtocolIGMP:         "igmp",
	layers.IPProtocolIPv4:         "ipv4",
	layers.IPProtocolTCP:          "tcp",
	layers.IPProtocolUDP:          "udp",
	layers.IPProtocolIPv6:         "ipv6",
	layers.IPProtocolGRE:          "gre",
	layers.IPProtocolESP:          "esp",
	layers.IPProtocolAH:           "ah",
	layers.IPProtocolICMPv6:       "ipv6-icmp",
	layers.IPProtocolOSPF:         "ospf",
	layers.IPProtocolVRRP:         "vrrp",
	layers.IPProtocolSCTP:         "sctp",
	layers.IPProtocolUDPLite:      "udplite",
}

// Name returns the canonical lowercase name of a transport protocol number.
func Name(number int) string {
	if number < 0 || number > 255 {
		return Unknown
	}
	if name, ok := names[layers.IPProtocol(number)]; ok {
		return name
	}
	return Unknown
}
