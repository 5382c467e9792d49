package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "upashthiti",
	Short: "Face recognition attendance service",
	Long: `Upashthiti registers students from face photos and marks their
attendance by recognizing faces in classroom images. Face detection and
embedding extraction run on an external InsightFace analysis server;
recognition itself is a cosine similarity search over stored embeddings.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
