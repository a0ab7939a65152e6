package source

import (
	"fmt"
	"net"
	"net/url"
	"path/filepath"
	"strings"

	"medparse/internal/domain"
)

// Policy restricts the references an API caller may submit. Local paths must
// stay under one of Roots. Remote URLs must name a host in Hosts; a host
// starting with "." matches its subdomains. With no Hosts, remote URLs are
// accepted unless they point at localhost or a loopback, private, link-local
// or unspecified address.
type Policy struct {
	Roots      []string
	StaticPath string
	Hosts      []string
}

// Check resolves ref the way the pipeline does and rejects it with
// domain.ErrInvalidSource when the policy does not allow it.
func (p Policy) Check(ref string) (Source, error) {
	if p.StaticPath != "" && len(p.Roots) > 0 {
		ref = MapStaticUpload(ref, p.StaticPath, p.Roots[0])
	}
	src, err := Resolve(ref)
	if err != nil {
		return Source{}, err
	}
	if src.IsRemote() {
		err = p.checkHost(src.location)
	} else {
		err = p.checkPath(src.location)
	}
	if err != nil {
		return Source{}, err
	}
	return src, nil
}

func (p Policy) checkPath(loc string) error {
	target, err := canonical(loc)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidSource, err)
	}
	for _, root := range p.Roots {
		base, err := canonical(root)
		if err != nil {
			continue
		}
		rel, err := filepath.Rel(base, target)
		if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		return nil
	}
	return fmt.Errorf("%w: %s is outside the upload directory", domain.ErrInvalidSource, loc)
}

func (p Policy) checkHost(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidSource, err)
	}
	host := strings.ToLower(u.Hostname())

	if len(p.Hosts) > 0 {
		for _, h := range p.Hosts {
			h = strings.ToLower(strings.TrimSpace(h))
			if host == h || (strings.HasPrefix(h, ".") && strings.HasSuffix(host, h)) {
				return nil
			}
		}
		return fmt.Errorf("%w: host %s is not allowed", domain.ErrInvalidSource, host)
	}

	if host == "" || host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return fmt.Errorf("%w: host %q is not allowed", domain.ErrInvalidSource, host)
	}
	if ip := net.ParseIP(host); ip != nil && (ip.IsLoopback() || ip.IsPrivate() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsUnspecified()) {
		return fmt.Errorf("%w: address %s is not allowed", domain.ErrInvalidSource, host)
	}
	return nil
}

// canonical returns the absolute, cleaned path with symlinks resolved when
// the path exists.
func canonical(p string) (string, error) {
	abs, err := filepath.Abs(filepath.Clean(p))
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	return abs, nil
}
