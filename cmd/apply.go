package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/titlepatch/internal/memory"
	"github.com/papapumpkin/titlepatch/internal/ui"
)

var applyCmd = &cobra.Command{
	Use:   "apply <title_id>",
	Short: "Apply a title's enabled patches to a raw memory image",
	Args:  cobra.ExactArgs(1),
	RunE:  runApply,
}

func init() {
	applyCmd.Flags().String("image", "", "raw guest memory image to patch (required)")
	applyCmd.Flags().String("base", "0x82000000", "guest address of the first byte of the image")
	applyCmd.Flags().String("out", "", "write the patched image here instead of in place")
	_ = applyCmd.MarkFlagRequired("image")
	rootCmd.AddCommand(applyCmd)
}

func runApply(cmd *cobra.Command, args []string) error {
	titleID, err := parseTitleID(args[0])
	if err != nil {
		return err
	}
	imagePath, _ := cmd.Flags().GetString("image")
	baseArg, _ := cmd.Flags().GetString("base")
	outPath, _ := cmd.Flags().GetString("out")
	if outPath == "" {
		outPath = imagePath
	}
	base, err := parseUint32("base address", baseArg)
	if err != nil {
		return err
	}

	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	if _, err := s.load(cmd.Context(), nil); err != nil {
		return err
	}

	image, err := os.ReadFile(imagePath)
	if err != nil {
		return fmt.Errorf("reading image: %w", err)
	}
	mem := memory.New()
	if err := mem.Map(base, image); err != nil {
		return err
	}

	printer := ui.NewWriter(cmd.OutOrStdout())
	if len(s.sys.PatchesForTitle(titleID)) == 0 {
		printer.TitleShow(titleID, nil)
		return nil
	}

	writes, applyErr := s.sys.ApplyForTitle(mem, titleID)
	printer.ApplyResult(titleID, writes, applyErr)
	if s.sys.AnyApplied() {
		if err := os.WriteFile(outPath, image, 0o644); err != nil {
			return fmt.Errorf("writing image: %w", err)
		}
	}
	if applyErr != nil {
		return fmt.Errorf("patching %s: some edits failed", ui.TitleID(titleID))
	}
	return nil
}
