package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fpang/sketchflow/internal/cli"
	"github.com/fpang/sketchflow/internal/conversion"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	fetchFormatFlag string
	fetchOutFlag    string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <job-id>",
	Short: "Fetch the diagram source of an earlier conversion",
	Long: `Fetch downloads the generated source for a job ID printed by convert.
Requires a signed-in session.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()
		a := newApp(ctx, "fetch")
		defer a.close()

		format, err := conversion.ParseFormat(fetchFormatFlag)
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid --format")
		}

		token, err := a.auth.GetAccessToken(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("No usable session")
		}
		code, err := a.client.FetchCode(ctx, args[0], token)
		if err != nil {
			fmt.Fprintln(os.Stderr, cli.DescribeError(err))
			os.Exit(1)
		}

		if fetchOutFlag == "" {
			fmt.Println(code)
			return
		}
		loc, err := a.exporter.Write(ctx, fetchOutFlag, args[0]+format.FileExtension(), []byte(code), contentType(format))
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to export diagram source")
		}
		fmt.Fprintf(os.Stderr, "Saved %s\n", loc)
	},
}

func init() {
	fetchCmd.Flags().StringVar(&fetchFormatFlag, "format", "mermaid", "Format of the job, used for the file extension")
	fetchCmd.Flags().StringVarP(&fetchOutFlag, "out", "o", "", "Write source to a file, directory, or s3://bucket/prefix")
}
