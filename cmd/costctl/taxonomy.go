package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"specsharp/internal/storage"
	"specsharp/internal/taxonomy"
)

const exportHeader = "# Generated by `costctl taxonomy export`. Consumed by the web tier.\n"

var (
	exportOut    string
	verifyRemote bool
)

var taxonomyCmd = &cobra.Command{
	Use:   "taxonomy",
	Short: "Validate, export and publish the building taxonomy",
}

var taxonomyValidateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Load a taxonomy document and report problems",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTaxonomyValidate,
}

var taxonomyExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the presentation-tier export of the taxonomy",
	RunE:  runTaxonomyExport,
}

var taxonomyVerifyCmd = &cobra.Command{
	Use:   "verify [export-file]",
	Short: "Check a stored export against the current taxonomy",
	Long: `Compares an export file (or, with --remote, the copy in the bucket) with the
export of the current taxonomy. Formatting and entry order are ignored.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTaxonomyVerify,
}

var taxonomyPublishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Upload the export to the configured bucket",
	RunE:  runTaxonomyPublish,
}

func init() {
	taxonomyExportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file (default stdout)")
	taxonomyVerifyCmd.Flags().BoolVar(&verifyRemote, "remote", false, "compare with the published copy instead of a file")

	taxonomyCmd.AddCommand(taxonomyValidateCmd, taxonomyExportCmd, taxonomyVerifyCmd, taxonomyPublishCmd)
}

func openTaxonomy(args []string) (*taxonomy.Registry, error) {
	path := cfg.Taxonomy.Path
	if len(args) > 0 {
		path = args[0]
	}
	return taxonomy.Open(path)
}

func renderExport(reg *taxonomy.Registry) ([]byte, error) {
	data, err := taxonomy.MarshalExport(reg.Export())
	if err != nil {
		return nil, err
	}
	return append([]byte(exportHeader), data...), nil
}

func runTaxonomyValidate(cmd *cobra.Command, args []string) error {
	reg, err := openTaxonomy(args)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "taxonomy version %d: %d profiles OK\n", reg.Version(), len(reg.Profiles()))
	return nil
}

func runTaxonomyExport(cmd *cobra.Command, args []string) error {
	reg, err := taxonomy.Open(cfg.Taxonomy.Path)
	if err != nil {
		return err
	}
	data, err := renderExport(reg)
	if err != nil {
		return err
	}

	if exportOut == "" {
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(exportOut, data, 0o644); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	logger.Info("taxonomy export written", zap.String("path", exportOut), zap.Int("entries", len(reg.Profiles())))
	return nil
}

func runTaxonomyVerify(cmd *cobra.Command, args []string) error {
	reg, err := taxonomy.Open(cfg.Taxonomy.Path)
	if err != nil {
		return err
	}
	local, err := renderExport(reg)
	if err != nil {
		return err
	}

	if verifyRemote {
		store, err := openBucket(cmd.Context())
		if err != nil {
			return err
		}
		if err := storage.VerifyPublished(cmd.Context(), store, cfg.Storage.TaxonomyKey, local); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s matches taxonomy version %d\n", store.URL(cfg.Storage.TaxonomyKey), reg.Version())
		return nil
	}

	if len(args) == 0 {
		return fmt.Errorf("an export file or --remote is required")
	}
	stored, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read export: %w", err)
	}
	if err := taxonomy.VerifyCopies(stored, local); err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s matches taxonomy version %d\n", args[0], reg.Version())
	return nil
}

func runTaxonomyPublish(cmd *cobra.Command, args []string) error {
	reg, err := taxonomy.Open(cfg.Taxonomy.Path)
	if err != nil {
		return err
	}
	store, err := openBucket(cmd.Context())
	if err != nil {
		return err
	}
	url, err := storage.PublishExport(cmd.Context(), store, cfg.Storage.TaxonomyKey, reg)
	if err != nil {
		return err
	}
	logger.Info("taxonomy published", zap.String("url", url), zap.Int("version", reg.Version()))
	fmt.Fprintln(cmd.OutOrStdout(), url)
	return nil
}

func openBucket(ctx context.Context) (*storage.R2Client, error) {
	if !cfg.Storage.Enabled() {
		return nil, fmt.Errorf("storage is not configured (set R2_ENDPOINT and R2_BUCKET_NAME)")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return storage.NewR2Client(ctx, storage.Options{
		Endpoint:      cfg.Storage.Endpoint,
		AccessKey:     cfg.Storage.AccessKey,
		SecretKey:     cfg.Storage.SecretKey,
		Bucket:        cfg.Storage.Bucket,
		PublicBaseURL: cfg.Storage.PublicBaseURL,
	})
}
