// Package sysinfo collects the host facts sent to the provider during sign-in
// and derives the hardware fingerprint from them.
package sysinfo

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/shirou/gopsutil/v3/host"
)

// Info describes the machine.
type Info struct {
	Platform      string
	SystemVersion string
	KernelVersion string
	Arch          string
	AppVersion    string
	Hostname      string
}

// Collect reads host facts from the operating system.
func Collect(ctx context.Context) (Info, error) {
	h, err := host.InfoWithContext(ctx)
	if err != nil {
		return Info{}, fmt.Errorf("host info: %w", err)
	}
	info := Info{
		Platform:      h.Platform,
		SystemVersion: h.PlatformVersion,
		KernelVersion: h.KernelVersion,
		Arch:          h.KernelArch,
		Hostname:      h.Hostname,
	}
	if info.Platform == "" {
		info.Platform = h.OS
	}
	if info.Arch == "" {
		info.Arch = runtime.GOARCH
	}
	if info.Hostname == "" {
		info.Hostname, _ = os.Hostname()
	}
	return info, nil
}

// ParseReport reads the backend's "Key: value" system report, e.g.
//
//	System Name: Windows
//	System Version: 10.0.22631
//	System kernel Version: 22631
//	System Arch: x86_64
//	Verge Version: 2.2.3
func ParseReport(report string) Info {
	var info Info
	sc := bufio.NewScanner(strings.NewReader(report))
	for sc.Scan() {
		key, val, ok := strings.Cut(sc.Text(), ":")
		if !ok {
			continue
		}
		val = strings.TrimSpace(val)
		switch strings.TrimSpace(key) {
		case "System Name":
			info.Platform = val
		case "System Version":
			info.SystemVersion = val
		case "System kernel Version":
			info.KernelVersion = val
		case "System Arch":
			info.Arch = val
		case "Verge Version":
			info.AppVersion = val
		}
	}
	return info
}

// Merge fills the empty fields of i from other.
func (i Info) Merge(other Info) Info {
	fill := func(dst *string, src string) {
		if *dst == "" {
			*dst = src
		}
	}
	fill(&i.Platform, other.Platform)
	fill(&i.SystemVersion, other.SystemVersion)
	fill(&i.KernelVersion, other.KernelVersion)
	fill(&i.Arch, other.Arch)
	fill(&i.AppVersion, other.AppVersion)
	fill(&i.Hostname, other.Hostname)
	return i
}

// Fingerprint is the hex SHA-256 of
// platform:systemVersion:kernelVersion:arch:hostname.
func (i Info) Fingerprint() string {
	sum := sha256.Sum256([]byte(strings.Join([]string{
		i.Platform, i.SystemVersion, i.KernelVersion, i.Arch, i.Hostname,
	}, ":")))
	return hex.EncodeToString(sum[:])
}
