package fingerprint

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"strings"

	utls "github.com/refraction-networking/utls"
)

// Profile names a TLS ClientHello fingerprint.
type Profile string

const (
	ProfileChrome  Profile = "chrome"
	ProfileFirefox Profile = "firefox"
	ProfileSafari  Profile = "safari"
	ProfileGo      Profile = "go"     // crypto/tls as shipped
	ProfileRandom  Profile = "random" // randomized uTLS hello
)

// Profiles lists every supported profile.
func Profiles() []Profile {
	return []Profile{ProfileChrome, ProfileFirefox, ProfileSafari, ProfileGo, ProfileRandom}
}

// ParseProfile maps a config string onto a Profile. Empty selects Chrome.
func ParseProfile(s string) (Profile, error) {
	if s == "" {
		return ProfileChrome, nil
	}
	p := Profile(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Profiles() {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("fingerprint: unknown profile %q", s)
}

// Options tune the transport built by Transport.
type Options struct {
	// InsecureSkipVerify disables certificate verification. Tests only.
	InsecureSkipVerify bool
}

// Transport returns an http.RoundTripper that presents the ClientHello of
// profile p. ProfileGo returns a plain clone of http.DefaultTransport.
// The uTLS profiles only offer http/1.1 over ALPN, since http.Transport
// cannot speak h2 over a custom DialTLSContext connection.
func Transport(p Profile, opts Options) (http.RoundTripper, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	if p == ProfileGo {
		if opts.InsecureSkipVerify {
			transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		}
		return transport, nil
	}

	var helloID utls.ClientHelloID
	switch p {
	case ProfileChrome:
		helloID = utls.HelloChrome_Auto
	case ProfileFirefox:
		helloID = utls.HelloFirefox_Auto
	case ProfileSafari:
		helloID = utls.HelloIOS_Auto
	case ProfileRandom:
		helloID = utls.HelloRandomizedNoALPN
	default:
		return nil, fmt.Errorf("fingerprint: unknown profile %q", p)
	}

	transport.ForceAttemptHTTP2 = false
	transport.DialTLSContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		tcpConn, err := transport.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}

		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			host = addr
		}

		uConn, err := handshake(ctx, tcpConn, host, helloID, opts)
		if err != nil {
			_ = tcpConn.Close()
			return nil, err
		}
		return uConn, nil
	}

	return transport, nil
}

func handshake(ctx context.Context, conn net.Conn, host string, id utls.ClientHelloID, opts Options) (*utls.UConn, error) {
	cfg := &utls.Config{
		ServerName:         host,
		InsecureSkipVerify: opts.InsecureSkipVerify,
	}

	var uConn *utls.UConn
	if id == utls.HelloRandomizedNoALPN {
		uConn = utls.UClient(conn, cfg, id)
	} else {
		spec, err := utls.UTLSIdToSpec(id)
		if err != nil {
			return nil, fmt.Errorf("fingerprint: building %s hello: %w", id.Str(), err)
		}
		for _, ext := range spec.Extensions {
			if alpn, ok := ext.(*utls.ALPNExtension); ok {
				alpn.AlpnProtocols = []string{"http/1.1"}
			}
		}
		uConn = utls.UClient(conn, cfg, utls.HelloCustom)
		if err := uConn.ApplyPreset(&spec); err != nil {
			return nil, fmt.Errorf("fingerprint: applying %s hello: %w", id.Str(), err)
		}
	}

	if err := uConn.HandshakeContext(ctx); err != nil {
		return nil, fmt.Errorf("fingerprint: utls handshake failed: %w", err)
	}
	return uConn, nil
}
