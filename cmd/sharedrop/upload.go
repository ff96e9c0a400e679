package main

import (
	"fmt"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"

	"github.com/stefando/shareDrop/internal/client"
)

func newUploadCmd(c *cli) *cobra.Command {
	var partSize int64

	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a file and print its share link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := client.OpenFile(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			u := &client.Uploader{
				API:          c.api,
				Threshold:    c.cfg.MultipartThreshold,
				Concurrency:  c.cfg.Concurrency,
				PartSize:     partSize,
				ShareBaseURL: c.cfg.ShareBaseURL,
				Progress:     newTerminalReporter(cmd.ErrOrStderr(), "Uploading"),
				Logger:       c.log,
			}

			res, err := u.Upload(cmd.Context(), f.Source)
			if err != nil {
				return err
			}

			mode := "single"
			if res.Multipart {
				mode = fmt.Sprintf("multipart, %d parts", res.Parts)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Uploaded %s (%s, %s) in %s\n",
				f.Name, units.BytesSize(float64(res.Size)), mode, formatDuration(res.Elapsed))
			fmt.Fprintln(cmd.OutOrStdout(), res.Link)
			return nil
		},
	}

	cmd.Flags().Int64Var(&partSize, "part-size", 0, "requested part size in bytes for multipart uploads")
	return cmd
}
