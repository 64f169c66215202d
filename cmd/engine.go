package cmd

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/agent-faceid/internal/constants"
)

var engineCmd = &cobra.Command{
	Use:   "engine",
	Short: "Face engine utilities",
}

var engineWarmupCmd = &cobra.Command{
	Use:   "warmup",
	Short: "Load the analysis model on the engine",
	Long: `Ask the face engine to load the configured model so the first enrollment
or login does not pay the model load time.`,
	Args: cobra.NoArgs,
	RunE: runEngineWarmup,
}

var engineMaskCmd = &cobra.Command{
	Use:   "mask <photo>",
	Short: "Crop and annotate the first face of a photo",
	Long: `Run the extraction step on a single photo and write the annotated face crop
as JPEG. Useful for checking a landmark overlay file.

Example:
  agent-faceid engine mask -o crop.jpg portrait.jpg
  LANDMARK_OVERLAY_PATH=overlay.yaml agent-faceid engine mask -o crop.jpg portrait.jpg`,
	Args: cobra.ExactArgs(1),
	RunE: runEngineMask,
}

func init() {
	rootCmd.AddCommand(engineCmd)
	engineCmd.AddCommand(engineWarmupCmd)
	engineCmd.AddCommand(engineMaskCmd)

	engineMaskCmd.Flags().StringP("output", "o", "face.jpg", "Output file for the annotated crop")
}

func runEngineWarmup(cmd *cobra.Command, args []string) error {
	a := loadApp()

	fmt.Printf("Preparing model %s on %s...\n", a.cfg.Engine.Model, a.cfg.Engine.URL)
	start := time.Now()
	if err := a.engine().Init(context.Background()); err != nil {
		return fmt.Errorf("engine warmup: %w", err)
	}
	fmt.Printf("Model %s ready in %s\n", a.client.Model(), time.Since(start).Round(time.Millisecond))
	return nil
}

func runEngineMask(cmd *cobra.Command, args []string) error {
	output := mustGetString(cmd, "output")

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading photo: %w", err)
	}

	a := loadApp()
	extractor, err := a.extractor()
	if err != nil {
		return err
	}

	ex, err := extractor.Extract(context.Background(), data)
	if err != nil {
		return err
	}
	if !ex.Detected {
		return fmt.Errorf("no face detected in %s", args[0])
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, ex.Crop, &jpeg.Options{Quality: constants.CropJPEGQuality}); err != nil {
		return fmt.Errorf("encoding crop: %w", err)
	}
	if err := os.WriteFile(output, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing crop: %w", err)
	}

	fmt.Printf("Faces detected:  %d\n", ex.FaceCount)
	fmt.Printf("Signature dims:  %d\n", len(ex.Signature))
	fmt.Printf("Overlay:         %s (%d polylines drawn)\n", ex.Annotation.Status, ex.Annotation.Drawn)
	if ex.Annotation.Err != nil {
		fmt.Printf("Overlay error:   %v\n", ex.Annotation.Err)
	}
	fmt.Printf("Crop written to %s\n", output)
	return nil
}
