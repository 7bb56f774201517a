// Package inventory enumerates which blend forecast files exist on the
// upstream FTP server for a run window, so the orchestrator can plan chunks
// around gaps instead of failing mid-run. GRIB decoding is not done here.
package inventory

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"

	"github.com/lox/gridverify/internal/temporal"
)

const (
	defaultHost = "ftp.ncep.noaa.gov:21"
	defaultRoot = "/pub/data/nccf/com/blend/prod"
)

type Client struct {
	host string
	root string
}

func NewClient(host, root string) *Client {
	if host == "" {
		host = defaultHost
	}
	if root == "" {
		root = defaultRoot
	}
	return &Client{host: host, root: root}
}

// CycleFile is one available forecast file.
type CycleFile struct {
	Cycle temporal.Cycle
	Path  string
	Size  uint64
}

// ListCycle lists the core blend files available for one init cycle.
func (c *Client) ListCycle(date time.Time, initHour int) ([]CycleFile, error) {
	conn, err := ftp.Dial(c.host, ftp.DialWithTimeout(30*time.Second))
	if err != nil {
		return nil, fmt.Errorf("ftp dial: %w", err)
	}
	defer conn.Quit()

	if err := conn.Login("anonymous", "anonymous"); err != nil {
		return nil, fmt.Errorf("ftp login: %w", err)
	}

	dir := fmt.Sprintf("%s/blend.%s/%02d/core", c.root, date.Format("20060102"), initHour)
	entries, err := conn.List(dir)
	if err != nil {
		return nil, fmt.Errorf("ftp list %s: %w", dir, err)
	}

	init := time.Date(date.Year(), date.Month(), date.Day(), initHour, 0, 0, 0, time.UTC)
	var files []CycleFile
	for _, e := range entries {
		hour, lead, ok := ParseBlendFile(e.Name)
		if !ok || hour != initHour {
			continue
		}
		files = append(files, CycleFile{
			Cycle: temporal.Cycle{Init: init, LeadHours: lead},
			Path:  dir + "/" + e.Name,
			Size:  e.Size,
		})
	}
	return files, nil
}

// ParseBlendFile extracts init hour and lead from a core blend file name of
// the form "blend.t12z.core.f036.co.grib2".
func ParseBlendFile(name string) (initHour, leadHours int, ok bool) {
	parts := strings.Split(name, ".")
	if len(parts) != 6 || parts[0] != "blend" || parts[2] != "core" || parts[5] != "grib2" {
		return 0, 0, false
	}

	t := parts[1]
	if len(t) != 4 || !strings.HasPrefix(t, "t") || !strings.HasSuffix(t, "z") {
		return 0, 0, false
	}
	initHour, err := strconv.Atoi(t[1:3])
	if err != nil || initHour < 0 || initHour > 23 {
		return 0, 0, false
	}

	f := parts[3]
	if len(f) != 4 || !strings.HasPrefix(f, "f") {
		return 0, 0, false
	}
	leadHours, err = strconv.Atoi(f[1:])
	if err != nil {
		return 0, 0, false
	}
	return initHour, leadHours, true
}

// MissingCycles reports which wanted cycles have no file in the listing.
func MissingCycles(files []CycleFile, want []temporal.Cycle) []temporal.Cycle {
	have := make(map[string]struct{}, len(files))
	for _, f := range files {
		have[f.Cycle.String()] = struct{}{}
	}
	var missing []temporal.Cycle
	for _, c := range want {
		if _, ok := have[c.String()]; !ok {
			missing = append(missing, c)
		}
	}
	return missing
}
