package rtc

import (
	"net"
	"strings"

	"github.com/pion/webrtc/v3"
)

// isPrivateTransport reports whether the selected candidate pair of the
// sender's transport stays within a private network
func isPrivateTransport(sender *webrtc.RTPSender) (bool, *webrtc.ICECandidatePair) {
	if sender == nil || sender.Transport() == nil {
		return false, nil
	}

	pair, err := sender.Transport().ICETransport().GetSelectedCandidatePair()
	if err != nil || pair == nil || pair.Remote == nil {
		return false, pair
	}

	return isPrivateAddress(pair.Remote.Address), pair
}

func isPrivateAddress(address string) bool {
	// mDNS candidates hide a LAN address
	if strings.HasSuffix(address, ".local") {
		return true
	}

	ip := net.ParseIP(address)
	if ip == nil {
		return false
	}
	return ip.IsPrivate() || ip.IsLoopback() || ip.IsLinkLocalUnicast()
}
