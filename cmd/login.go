package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/agent-faceid/internal/facematch"
)

var loginCmd = &cobra.Command{
	Use:   "login <photo> [photo...]",
	Short: "Identify an agent from one or more photos",
	Long: `Run a face login against the enrolled roster. The command exits with a
non-zero status when no agent is recognized.

Example:
  agent-faceid login selfie.jpg
  agent-faceid login --json a.jpg b.jpg`,
	Args: cobra.MinimumNArgs(1),
	RunE: runLogin,
}

func init() {
	rootCmd.AddCommand(loginCmd)

	loginCmd.Flags().Bool("json", false, "Output as JSON")
}

type loginOutput struct {
	Outcome    string  `json:"outcome"`
	EmployeeID string  `json:"employee_id,omitempty"`
	Name       string  `json:"name,omitempty"`
	Similarity float64 `json:"similarity,omitempty"`
	PhotosUsed int     `json:"photos_used"`
}

func runLogin(cmd *cobra.Command, args []string) error {
	photos, err := readPhotoFiles(args)
	if err != nil {
		return err
	}

	a := loadApp()
	defer a.close()

	ctx := context.Background()
	service, err := a.roster(ctx, false)
	if err != nil {
		return err
	}

	res, err := service.Login(ctx, photos)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	out := loginOutput{
		Outcome:    res.Decision.Outcome.String(),
		PhotosUsed: res.Decision.PhotosUsed,
	}
	if res.Agent != nil {
		out.EmployeeID = res.Agent.EmployeeID
		out.Name = res.Agent.DisplayName()
		out.Similarity = res.Decision.Match.Similarity
	}

	if mustGetBool(cmd, "json") {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(out); err != nil {
			return err
		}
	} else if res.Agent != nil {
		fmt.Printf("Welcome, %s (%s)\n", out.Name, out.EmployeeID)
		fmt.Printf("  Similarity:  %.3f\n", out.Similarity)
		fmt.Printf("  Photos used: %d\n", out.PhotosUsed)
	}

	if res.Decision.Outcome != facematch.OutcomeAccepted {
		return fmt.Errorf("login rejected: %s", out.Outcome)
	}
	return nil
}
