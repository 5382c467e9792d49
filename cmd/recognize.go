package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/upashthiti/upashthiti/internal/config"
	"github.com/upashthiti/upashthiti/internal/recognizer"
)

var recognizeCmd = &cobra.Command{
	Use:   "recognize <image>...",
	Short: "Recognize faces in images and mark attendance",
	Long: `Recognize registered students in one or more images. Every face whose
best match clears the confidence threshold is printed and appended to the
attendance log, exactly as a camera frame posted to /api/v1/analyze would be.

Examples:
  # Mark attendance from a classroom photo
  upashthiti recognize classroom.jpg

  # Process a morning batch of camera frames
  upashthiti recognize frames/*.jpg`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRecognize,
}

func init() {
	rootCmd.AddCommand(recognizeCmd)
}

func printFace(face recognizer.FaceResult) {
	marker := " "
	if face.Matched {
		marker = "+"
	}
	fmt.Printf("  %s %-24s confidence %.3f  bbox [%d %d %d %d]\n",
		marker, face.Name, face.Confidence,
		face.BBox[0], face.BBox[1], face.BBox[2], face.BBox[3])
}

func runRecognize(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	cfg := config.Load()
	svc, reg, _ := buildService(ctx, cfg)

	if reg.Count() == 0 {
		fmt.Println("Warning: no students registered, every face will be Unknown")
	}

	var totalMatched int
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading image %s: %w", path, err)
		}

		result, err := svc.Analyze(ctx, data)
		if err != nil {
			return fmt.Errorf("analyzing %s: %w", path, err)
		}

		fmt.Printf("%s: %d face(s), %d recognized\n", path, result.TotalFaces, result.RecognizedFaces)
		for _, face := range result.Faces {
			printFace(face)
		}
		totalMatched += result.RecognizedFaces
	}

	fmt.Printf("\nMarked attendance for %d face(s) across %d image(s)\n", totalMatched, len(args))
	return nil
}
