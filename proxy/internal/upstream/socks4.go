package upstream

import (
	"context"
	"fmt"
	"io"
	"net"
)

// dialSOCKS4 performs a SOCKS4/4a CONNECT handshake against proxyAddr and
// returns the established connection to host:port.
//
// Wire format, grounded on the classic SOCKS4 protocol (no RFC, widely
// documented as the de-facto spec):
//
//	request:  VER(1)=0x04 CMD(1)=0x01 DSTPORT(2) DSTIP(4) USERID(N) NUL(1) [DOMAIN(N) NUL(1)]
//	response: VER(1)=0x00 STATUS(1) DSTPORT(2) DSTIP(4)
//
// socks4a extends plain socks4 by allowing an unresolved hostname: DSTIP is
// set to 0.0.0.1 and the hostname follows the user ID, NUL-terminated.
func dialSOCKS4(ctx context.Context, proxyAddr, userID, host string, port int, socks4a bool) (net.Conn, error) {
	conn, err := (&net.Dialer{}).DialContext(ctx, "tcp", proxyAddr)
	if err != nil {
		return nil, fmt.Errorf("dial socks4 proxy %s: %w", proxyAddr, err)
	}

	req := []byte{0x04, 0x01, byte(port >> 8), byte(port)}

	var domainSuffix []byte
	if socks4a {
		req = append(req, 0, 0, 0, 1)
	} else {
		ip := net.ParseIP(host)
		ip4 := ip.To4()
		if ip4 == nil {
			ips, lookupErr := net.DefaultResolver.LookupIP(ctx, "ip4", host)
			if lookupErr != nil || len(ips) == 0 {
				conn.Close()
				return nil, fmt.Errorf("socks4 requires an IPv4 destination, resolve %s: %w", host, lookupErr)
			}
			ip4 = ips[0].To4()
		}
		req = append(req, ip4...)
	}

	req = append(req, []byte(userID)...)
	req = append(req, 0x00)
	if socks4a {
		domainSuffix = append([]byte(host), 0x00)
	}
	req = append(req, domainSuffix...)

	if _, err := conn.Write(req); err != nil {
		conn.Close()
		return nil, fmt.Errorf("write socks4 request: %w", err)
	}

	resp := make([]byte, 8)
	if _, err := io.ReadFull(conn, resp); err != nil {
		conn.Close()
		return nil, fmt.Errorf("read socks4 response: %w", err)
	}

	switch status := resp[1]; status {
	case 0x5A:
		return conn, nil
	case 0x5B:
		conn.Close()
		return nil, fmt.Errorf("socks4 request rejected or failed")
	case 0x5C:
		conn.Close()
		return nil, fmt.Errorf("socks4 request failed: identd not running on client")
	case 0x5D:
		conn.Close()
		return nil, fmt.Errorf("socks4 request failed: identd could not confirm user id")
	default:
		conn.Close()
		return nil, fmt.Errorf("socks4 unknown status code: 0x%02x", status)
	}
}
