package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/templui/twinboard/internal/capture"
	"github.com/templui/twinboard/internal/model"
)

func newUploadCommand(ctx *commandContext) *cobra.Command {
	var mimeType string
	var showURL bool

	cmd := &cobra.Command{
		Use:   "upload <voice|video> <file>",
		Short: "Validate a recording and upload it with the chunked protocol",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := model.ParseMediaKind(args[0])
			if err != nil {
				return err
			}
			client, err := ctx.client()
			if err != nil {
				return err
			}

			policy, captureCfg, err := capturePolicy(cmd.Context(), client)
			if err != nil {
				return err
			}
			if kind == model.MediaKindVideo && !captureCfg.VideoStepEnabled {
				return fmt.Errorf("the server does not accept video samples")
			}

			file, err := readMediaFile(kind, args[1], mimeType)
			if err != nil {
				return err
			}
			ctrl := capture.NewController(kind, policy, nil, ctx.mediaProber())
			artifact, err := ctrl.AcceptFile(cmd.Context(), file)
			if err != nil {
				return err
			}

			coord := ctx.coordinator(client, progressPrinter(cmd.ErrOrStderr(), "uploading"))
			receipt, err := coord.Upload(cmd.Context(), artifact, kind)
			if err != nil {
				return err
			}

			rows := [][]string{{
				receipt.UploadID,
				receipt.Kind.String(),
				artifact.MimeType,
				formatSeconds(artifact.DurationSeconds),
				formatBytes(receipt.Size),
				strconv.Itoa(len(receipt.Parts)),
			}}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Upload", "Kind", "Type", "Duration", "Size", "Parts"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight},
			))

			if showURL {
				link, err := client.MediaURL(cmd.Context(), receipt.UploadID)
				if err != nil {
					return fmt.Errorf("fetch media url: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), link)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&mimeType, "mime", "", "MIME type of the file (default: from the extension)")
	cmd.Flags().BoolVar(&showURL, "url", false, "Print a playback link after the upload")
	return cmd
}
