package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/samber/lo"
	"github.com/srg/blescan/internal/device"
	"github.com/srg/blescan/internal/identicon"
)

const (
	unknownName     = "(unknown)"
	maxNameWidth    = 24
	maxServiceWidth = 32
)

type renderOptions struct {
	format string
	badges bool
}

// renderDevices writes devs, already in display order, in the requested format.
func renderDevices(w io.Writer, devs []device.Record, opts renderOptions) error {
	if opts.format == "json" {
		return renderJSON(w, devs)
	}
	return renderTable(w, devs, opts.badges)
}

func renderTable(out io.Writer, devs []device.Record, badges bool) error {
	if len(devs) == 0 {
		_, err := fmt.Fprintln(out, "No devices discovered")
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	header := "NAME\tADDRESS\tRSSI\tVENDOR\tSERVICES"
	if badges {
		header = "BADGE\t" + header
	}
	fmt.Fprintln(w, header)

	for _, d := range devs {
		name := unknownName
		if d.HasName() {
			name = truncate(d.Name, maxNameWidth)
		}
		services := truncate(strings.Join(d.Services, ","), maxServiceWidth)

		row := fmt.Sprintf("%s\t%s\t%d dBm\t%s\t%s", name, d.Address, d.RSSI, d.Vendor, services)
		if badges {
			row = identicon.Badge(d.Address) + "\t" + row
		}
		fmt.Fprintln(w, row)
	}

	if err := w.Flush(); err != nil {
		return err
	}

	named := lo.CountBy(devs, func(d device.Record) bool { return d.HasName() })
	_, err := fmt.Fprintf(out, "\n%d devices (%d named)\n", len(devs), named)
	return err
}

func renderJSON(w io.Writer, devs []device.Record) error {
	if devs == nil {
		devs = []device.Record{}
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(devs)
}

func truncate(s string, width int) string {
	if len(s) <= width {
		return s
	}
	return s[:width-3] + "..."
}

func clearScreen(w io.Writer) {
	fmt.Fprint(w, "\033[2J\033[H")
}
