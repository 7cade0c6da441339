package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/goccy/go-json"
	"github.com/openmined/assetsync/internal/syncer"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

type planView struct {
	Policy           string   `json:"policy" yaml:"policy"`
	LocalVersion     string   `json:"localVersion" yaml:"local_version"`
	RemoteVersion    string   `json:"remoteVersion" yaml:"remote_version"`
	Offline          bool     `json:"offline" yaml:"offline"`
	Fetch            []string `json:"fetch" yaml:"fetch"`
	FetchBytes       uint64   `json:"fetchBytes" yaml:"fetch_bytes"`
	DeleteDownloaded []string `json:"deleteDownloaded" yaml:"delete_downloaded"`
	DeleteBundled    []string `json:"deleteBundled" yaml:"delete_bundled"`
}

func newPlanView(res *syncer.Result) planView {
	v := planView{
		Policy:           res.Policy.String(),
		LocalVersion:     res.LocalVersion,
		RemoteVersion:    res.RemoteVersion,
		Offline:          res.Offline,
		Fetch:            []string{},
		DeleteDownloaded: []string{},
		DeleteBundled:    []string{},
	}
	if res.Plan != nil {
		v.Fetch = append(v.Fetch, res.Plan.Fetch...)
		v.FetchBytes = res.Plan.FetchBytes
		v.DeleteDownloaded = append(v.DeleteDownloaded, res.Plan.DeleteDownloaded...)
		v.DeleteBundled = append(v.DeleteBundled, res.Plan.DeleteBundled...)
	}
	return v
}

func init() {
	rootCmd.AddCommand(newPlanCmd())
}

func newPlanCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show what a sync would download and delete",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}

			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			res, err := c.Plan(cmd.Context())
			if err != nil {
				return err
			}
			return renderPlan(cmd.OutOrStdout(), newPlanView(res), format)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", formatText, "Output format: text, json or yaml")
	return cmd
}

func checkFormat(format string) error {
	switch format {
	case formatText, formatJSON, formatYAML:
		return nil
	}
	return fmt.Errorf("unknown format %q", format)
}

func renderPlan(w io.Writer, v planView, format string) error {
	switch format {
	case formatJSON:
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Policy:   %s\n", cyan.Render(v.Policy))
	fmt.Fprintf(&sb, "Version:  %s -> %s\n", versionLabel(v.LocalVersion), versionLabel(v.RemoteVersion))
	if v.Offline {
		fmt.Fprintf(&sb, "%s\n", yellow.Render("Remote unreachable, bundled files serve reads"))
	}
	fmt.Fprintf(&sb, "Fetch:    %d files (%s)\n", len(v.Fetch), humanize.Bytes(v.FetchBytes))
	for _, p := range v.Fetch {
		fmt.Fprintf(&sb, "  %s %s\n", green.Render("+"), p)
	}
	fmt.Fprintf(&sb, "Delete:   %d downloaded, %d bundled\n", len(v.DeleteDownloaded), len(v.DeleteBundled))
	for _, p := range v.DeleteDownloaded {
		fmt.Fprintf(&sb, "  %s %s\n", red.Render("-"), p)
	}
	for _, p := range v.DeleteBundled {
		fmt.Fprintf(&sb, "  %s %s %s\n", red.Render("-"), p, gray.Render("(bundled, no longer served)"))
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

func printResult(w io.Writer, res *syncer.Result) {
	fmt.Fprintf(w, "%s %s -> %s (%s)\n",
		green.Render("Synced"), versionLabel(res.LocalVersion), versionLabel(res.RemoteVersion), res.Policy)
	fmt.Fprintf(w, "Downloaded %d files\n", res.Downloaded)
	if n := len(res.Mismatches); n > 0 {
		fmt.Fprintf(w, "%s %d files did not match their manifest hash\n", yellow.Render("Warning:"), n)
	}
	if res.Offline {
		fmt.Fprintf(w, "%s remote unreachable, using bundled files\n", yellow.Render("Offline:"))
	}
}

func versionLabel(v string) string {
	if v == "" {
		return lightGray.Render("(none)")
	}
	return v
}
