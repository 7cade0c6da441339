package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/openmined/assetsync/internal/manifest"
	"github.com/openmined/assetsync/internal/storage"
	"github.com/openmined/assetsync/internal/utils"
	"github.com/spf13/cobra"
)

var errVerifyFailed = errors.New("manifest verify failed")

func init() {
	rootCmd.AddCommand(newManifestCmd())
}

func newManifestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "manifest",
		Short: "Build or verify a published asset manifest",
	}
	cmd.PersistentFlags().String("manifest-name", storage.DefaultManifestName, "Manifest file name")
	cmd.PersistentFlags().String("version-name", storage.DefaultVersionName, "Version marker file name")

	cmd.AddCommand(newManifestBuildCmd())
	cmd.AddCommand(newManifestVerifyCmd())
	return cmd
}

func newManifestBuildCmd() *cobra.Command {
	var assetVersion string
	var outDir string
	var ignore []string

	cmd := &cobra.Command{
		Use:   "build <dir>",
		Short: "Hash every file under dir and write the manifest and version marker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			manifestName, _ := cmd.Flags().GetString("manifest-name")
			versionName, _ := cmd.Flags().GetString("version-name")

			dir, err := utils.ResolvePath(args[0])
			if err != nil {
				return err
			}
			if outDir == "" {
				outDir = dir
			}

			store, err := storage.NewLocalStore(outDir)
			if err != nil {
				return err
			}
			tier := storage.NewTier("published", store, manifestName, versionName)

			if assetVersion == "" {
				// keep the version already published in the output dir
				if err := tier.Load(); err != nil {
					return err
				}
				assetVersion = tier.Manifest.Version
			}
			if assetVersion == "" {
				return fmt.Errorf("--version required, %s has no %s", outDir, versionName)
			}

			m, err := manifest.Build(dir, manifest.BuildOptions{
				Version:      assetVersion,
				ManifestName: manifestName,
				VersionName:  versionName,
				Ignore:       ignore,
			})
			if err != nil {
				return err
			}

			cmd.SilenceUsage = true
			tier.Manifest = m
			if err := tier.Save(); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s %s version %s: %d files, %s\n",
				green.Render("Wrote"), manifestName, cyan.Render(m.Version), m.Len(), humanize.Bytes(m.TotalSize()))
			return nil
		},
	}

	cmd.Flags().StringVar(&assetVersion, "version", "", "Version to publish (defaults to the existing marker)")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Where to write the manifest (defaults to dir)")
	cmd.Flags().StringSliceVar(&ignore, "ignore", nil, "Extra gitignore-style patterns to leave out")
	return cmd
}

func newManifestVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <dir>",
		Short: "Check every file listed in dir's manifest against its size and hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			manifestName, _ := cmd.Flags().GetString("manifest-name")

			store, err := storage.NewReadOnlyStore(args[0])
			if err != nil {
				return err
			}
			text, err := store.ReadTextFile(manifestName)
			if err != nil {
				return err
			}
			m, err := manifest.ParseAllStrict(text)
			if err != nil {
				return fmt.Errorf("%s: %w", manifestName, err)
			}

			cmd.SilenceUsage = true
			out := cmd.OutOrStdout()
			bad := 0
			for _, e := range m.Entries() {
				full, err := store.Path(e.Path)
				if err != nil {
					return err
				}
				hash, size, err := manifest.HashFile(full)
				switch {
				case errors.Is(err, os.ErrNotExist):
					bad++
					fmt.Fprintf(out, "%s %s\n", red.Render("missing "), e.Path)
				case err != nil:
					return err
				case size != e.Size || hash != e.Hash:
					bad++
					fmt.Fprintf(out, "%s %s\n", yellow.Render("mismatch"), e.Path)
				}
			}

			if bad > 0 {
				return fmt.Errorf("%w: %d of %d files", errVerifyFailed, bad, m.Len())
			}
			fmt.Fprintf(out, "%s %d files\n", green.Render("OK"), m.Len())
			return nil
		},
	}
}
