package main

import (
	"fmt"
	"io"

	"github.com/bytedance/sonic"
	"gopkg.in/yaml.v3"

	"tracesim/pkg/model"
	"tracesim/pkg/render"
)

// writeHops prints hops as json, yaml or dot. YAML keeps the JSON field names.
func writeHops(w io.Writer, format, name string, hops []model.Hop) error {
	switch format {
	case "", "json":
		b, err := sonic.ConfigStd.MarshalIndent(hops, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(b))
		return err
	case "yaml":
		b, err := sonic.Marshal(hops)
		if err != nil {
			return err
		}
		var generic []map[string]any
		if err := sonic.Unmarshal(b, &generic); err != nil {
			return err
		}
		out, err := yaml.Marshal(generic)
		if err != nil {
			return err
		}
		_, err = w.Write(out)
		return err
	case "dot":
		dot, err := render.DOT(name, hops)
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, dot)
		return err
	default:
		return fmt.Errorf("unknown output format %q (json, yaml, dot)", format)
	}
}

// writeTable prints a one-line summary per hop.
func writeTable(w io.Writer, hops []model.Hop) {
	fmt.Fprintf(w, "%-4s %-16s %-22s %-10s %s\n", "HOP", "ADDRESS", "ROLE", "VRF", "FIREWALL")
	for _, h := range hops {
		fw := ""
		if h.PassedFirewall {
			fw = "yes"
		}
		fmt.Fprintf(w, "%-4d %-16s %-22s %-10s %s\n", h.Sequence, h.Address, h.Role, h.VRF, fw)
	}
}

func emit(w io.Writer, format, name string, hops []model.Hop) error {
	if format == "table" {
		writeTable(w, hops)
		return nil
	}
	return writeHops(w, format, name, hops)
}
