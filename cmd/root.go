package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "agent-faceid",
	Short: "Face enrollment and face login for field agents",
	Long: `Agent FaceID enrolls agents from one or more photos and identifies them
at login by comparing a face signature against every enrolled agent.

Face detection, landmarks and embeddings come from an external
face-analysis server (ENGINE_URL). Agents are stored in PostgreSQL
(DATABASE_URL) and their photos in local or Azure Blob storage.`,
	SilenceUsage: true,
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
