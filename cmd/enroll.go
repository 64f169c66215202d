package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/agent-faceid/internal/roster"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll <photo> [photo...]",
	Short: "Enroll an agent from one or more photos",
	Long: `Enroll a new agent. Every photo is analyzed, the first face of each one
is cropped and annotated, and the per-photo embeddings are averaged into the
agent's face signature. Photos without a face are skipped.

Example:
  agent-faceid enroll --last-name Novak --first-name Jana --employee-id E1001 \
    --department Sales front.jpg left.jpg`,
	Args: cobra.MinimumNArgs(1),
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)

	enrollCmd.Flags().String("last-name", "", "Agent last name (required)")
	enrollCmd.Flags().String("first-name", "", "Agent first name (required)")
	enrollCmd.Flags().String("employee-id", "", "Employee ID (required, unique)")
	enrollCmd.Flags().String("department", "", "Department (required)")
	enrollCmd.Flags().String("phone", "", "Phone number")
	enrollCmd.Flags().Bool("json", false, "Output as JSON")
}

func runEnroll(cmd *cobra.Command, args []string) error {
	id := roster.Identity{
		LastName:   mustGetString(cmd, "last-name"),
		FirstName:  mustGetString(cmd, "first-name"),
		EmployeeID: mustGetString(cmd, "employee-id"),
		Department: mustGetString(cmd, "department"),
		Phone:      mustGetString(cmd, "phone"),
	}
	if err := id.Validate(); err != nil {
		return err
	}

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

	res, err := service.Enroll(ctx, id, photos)
	if err != nil {
		return fmt.Errorf("enrollment failed: %w", err)
	}

	if mustGetBool(cmd, "json") {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(newAgentOutput(res.Agent))
	}

	printEnrollResult(res, args)
	return nil
}

func printEnrollResult(res *roster.EnrollResult, paths []string) {
	fmt.Printf("Enrolled %s (%s)\n", res.Agent.DisplayName(), res.Agent.EmployeeID)
	fmt.Printf("  Department:  %s\n", res.Agent.Department)
	fmt.Printf("  Status:      %s\n", res.Agent.Status)
	fmt.Printf("  Faces used:  %d of %d photos\n", len(res.Faces), len(paths))

	for i, f := range res.Faces {
		line := fmt.Sprintf("  - %s: overlay %s", paths[f.PhotoIndex], f.Annotation.Status)
		if f.Annotation.Err != nil {
			line += fmt.Sprintf(" (%v)", f.Annotation.Err)
		}
		if i < len(res.Agent.FaceCrops) {
			line += " -> " + res.Agent.FaceCrops[i]
		}
		fmt.Println(line)
	}

	if d := res.PossibleDuplicate; d != nil {
		fmt.Printf("\nWarning: resembles %s (%s) with similarity %.3f\n",
			d.Agent.DisplayName(), d.Agent.EmployeeID, d.Similarity)
	}
}
