package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/loykin/prokill/internal/process"
	"github.com/loykin/prokill/pkg/client"
)

func printJSON(w io.Writer, v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	_, _ = fmt.Fprintln(w, string(b))
}

// printRecords writes the listing table the way the interactive view shows it.
func printRecords(w io.Writer, recs []process.Record) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	_, _ = fmt.Fprintln(tw, "PID\tNAME\tCPU%\tMEM\tSTATUS\tSYSTEM\t")
	for _, r := range recs {
		sys := ""
		if r.IsSystem {
			sys = "yes"
		}
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t\n",
			r.PID, r.Name, process.FormatCPU(r.CPUUsage), process.FormatMemory(r.Memory), r.Status, sys)
	}
	_ = tw.Flush()
	_, _ = fmt.Fprintf(w, "%d processes\n", len(recs))
}

// fromAPI converts API processes to records so local and remote output match.
func fromAPI(ps []client.Process) []process.Record {
	out := make([]process.Record, len(ps))
	for i, p := range ps {
		out[i] = process.Record{
			PID:      p.PID,
			Name:     p.Name,
			CPUUsage: p.CPUUsage,
			Memory:   p.Memory,
			Status:   p.Status,
			IsSystem: p.IsSystem,
		}
	}
	return out
}

// parsePID accepts a positive decimal pid.
func parsePID(s string) (uint32, error) {
	pid, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
	if err != nil || pid == 0 {
		return 0, fmt.Errorf("invalid pid %q", s)
	}
	return uint32(pid), nil
}

// confirm asks a y/N question. Anything but y or yes is a no.
func confirm(in io.Reader, out io.Writer, question string) bool {
	_, _ = fmt.Fprintf(out, "%s [y/N]: ", question)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}
