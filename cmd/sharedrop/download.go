package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"

	"github.com/stefando/shareDrop/internal/client"
)

func newDownloadCmd(c *cli) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "download <id>",
		Short: "Download a file by short id or key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d := &client.Downloader{
				API:      c.api,
				Progress: newTerminalReporter(cmd.ErrOrStderr(), "Downloading"),
			}

			info, err := d.Resolve(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			path := output
			if path == "" {
				path = filepath.Base(info.OriginalName)
			}

			f, err := os.Create(path)
			if err != nil {
				return err
			}

			size, err := saveTo(path, f, func(w io.Writer) error {
				return d.Fetch(cmd.Context(), info, w)
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Saved %s (%s)\n", path, units.BytesSize(float64(size)))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "destination path (defaults to the original file name)")
	return cmd
}

// saveTo runs write against f and closes it. The file at path is removed when
// either step fails, so a partial download never looks complete.
func saveTo(path string, f io.WriteCloser, write func(io.Writer) error) (int64, error) {
	cw := &countingWriter{w: f}
	if err := write(cw); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return 0, err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return 0, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return cw.n, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
