package modref

import (
	"strings"

	"github.com/bicep-lang/bicep-modreg/internal/bicepdiag"
)

// Parse parses a user-supplied module reference string into its Local or
// Oci variant, recognizing the "oci:" scheme prefix and otherwise
// treating the string as a local path.
func Parse(raw string) (Reference, error) {
	if raw == "" {
		return nil, bicepdiag.New(bicepdiag.Malformed, nil, "empty module reference")
	}
	if strings.HasPrefix(raw, "./") || strings.HasPrefix(raw, "../") {
		return Local{Path: raw}, nil
	}
	if idx := strings.Index(raw, ":"); idx >= 0 {
		scheme, rest := raw[:idx], raw[idx+1:]
		if looksLikeScheme(scheme) {
			if rest == "" {
				return nil, bicepdiag.New(bicepdiag.Malformed, nil, "malformed reference %q: nothing follows the %q scheme", raw, scheme)
			}
			if scheme != "oci" {
				return nil, bicepdiag.New(bicepdiag.UnsupportedTarget, nil, "unsupported reference scheme %q", scheme)
			}
			return parseOci(rest)
		}
	}
	// No recognized scheme: treat as a local path.
	return Local{Path: raw}, nil
}

// looksLikeScheme reports whether s is shaped like a URI scheme token: a
// letter followed by at least one letter, digit, '+', '-' or '.'. A
// single letter (a Windows drive letter such as "C") is not a scheme. A
// host name before a colon, as in "host:port/...", is scheme-shaped and
// is treated as a scheme.
func looksLikeScheme(s string) bool {
	if len(s) < 2 {
		return false
	}
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && (r >= '0' && r <= '9' || r == '+' || r == '-' || r == '.'):
		default:
			return false
		}
	}
	return true
}

func parseOci(rest string) (Reference, error) {
	lastColon := strings.LastIndex(rest, ":")
	if lastColon < 0 {
		return nil, bicepdiag.New(bicepdiag.Malformed, nil, "oci reference %q is missing a :tag", rest)
	}
	hostAndRepo, tag := rest[:lastColon], rest[lastColon+1:]
	if tag == "" {
		return nil, bicepdiag.New(bicepdiag.Malformed, nil, "oci reference %q has an empty tag", rest)
	}
	slash := strings.Index(hostAndRepo, "/")
	if slash < 0 {
		return nil, bicepdiag.New(bicepdiag.Malformed, nil, "oci reference %q is missing a repository path", rest)
	}
	host, repo := hostAndRepo[:slash], hostAndRepo[slash+1:]
	if repo == "" {
		return nil, bicepdiag.New(bicepdiag.Malformed, nil, "oci reference %q is missing a repository path", rest)
	}
	if !isValidDNSHost(host) {
		return nil, bicepdiag.New(bicepdiag.Malformed, nil, "oci reference %q has an invalid registry host %q", rest, host)
	}
	return Oci{Registry: host, Repository: repo, Tag: tag}, nil
}

// isValidDNSHost validates host as a DNS name, optionally with a
// trailing ":<port>", via explicit label validation rather than a
// single monolithic regexp.
func isValidDNSHost(host string) bool {
	if host == "" {
		return false
	}
	if h, _, ok := strings.Cut(host, ":"); ok {
		host = h
	}
	labels := strings.Split(host, ".")
	for _, label := range labels {
		if !isValidDNSLabel(label) {
			return false
		}
	}
	return true
}

func isValidDNSLabel(label string) bool {
	if label == "" || len(label) > 63 {
		return false
	}
	for i, r := range label {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-' && i != 0 && i != len(label)-1:
		default:
			return false
		}
	}
	return true
}

// ParseOciTarget parses raw the same way as Parse, but rejects anything
// that isn't an Oci reference with UnsupportedTarget. It's used by
// command contracts (e.g. publish) that only accept registry targets.
func ParseOciTarget(raw string) (Oci, error) {
	ref, err := Parse(raw)
	if err != nil {
		return Oci{}, err
	}
	oci, ok := ref.(Oci)
	if !ok {
		return Oci{}, bicepdiag.New(bicepdiag.UnsupportedTarget, nil, "target %q must be an OCI reference", raw)
	}
	return oci, nil
}
