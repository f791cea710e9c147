package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	fetchSource string
	fetchFile   string
	fetchDir    string
	fetchForce  bool
	fetchQuiet  bool
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download the dataset into the local cache",
	Long: `Fetch downloads dataset_source into data_dir and extracts CSV files from
zip archives. Sources are kaggle://owner/dataset, http(s) URLs, s3://bucket/key
or a local path. A cached copy is reused unless --force is set.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if fetchSource != "" {
			cfg.DatasetSource = fetchSource
		}
		if fetchFile != "" {
			cfg.DatasetFile = fetchFile
		}
		if fetchDir != "" {
			cfg.DataDir = fetchDir
		}
		progress := cmd.ErrOrStderr()
		if fetchQuiet {
			progress = nil
		}
		res, err := fetchDataset(cmd.Context(), progress, fetchForce)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if res.Downloaded {
			fmt.Fprintf(out, "✓ Downloaded %s (%d bytes)\n", res.Source, res.Bytes)
		} else {
			fmt.Fprintf(out, "✓ Using cached copy of %s\n", res.Source)
		}
		for _, f := range res.Extracted {
			fmt.Fprintf(out, "  extracted %s\n", f)
		}
		fmt.Fprintf(out, "Dataset ready at %s\n", res.Path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(fetchCmd)
	fetchCmd.Flags().StringVar(&fetchSource, "source", "", "dataset source (overrides dataset_source)")
	fetchCmd.Flags().StringVar(&fetchFile, "file", "", "CSV to pick from the source (overrides dataset_file)")
	fetchCmd.Flags().StringVar(&fetchDir, "dir", "", "cache directory (overrides data_dir)")
	fetchCmd.Flags().BoolVar(&fetchForce, "force", false, "download again even if a cached copy exists")
	fetchCmd.Flags().BoolVarP(&fetchQuiet, "quiet", "q", false, "suppress the progress bar")
}
