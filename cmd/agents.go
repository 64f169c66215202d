package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/agent-faceid/internal/constants"
	"github.com/kozaktomas/agent-faceid/internal/database"
	"github.com/kozaktomas/agent-faceid/internal/roster"
)

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "Manage enrolled agents",
	Long:  `Commands for listing, inspecting, importing and removing enrolled agents.`,
}

var agentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List enrolled agents",
	Long: `List enrolled agents in enrollment order.

Example:
  agent-faceid agents list
  agent-faceid agents list --query novak --json`,
	Args: cobra.NoArgs,
	RunE: runAgentsList,
}

var agentsShowCmd = &cobra.Command{
	Use:   "show <employee-id>",
	Short: "Show one agent",
	Args:  cobra.ExactArgs(1),
	RunE:  runAgentsShow,
}

var agentsStatusCmd = &cobra.Command{
	Use:   "status <employee-id> <pending|active|disabled>",
	Short: "Change an agent's status",
	Args:  cobra.ExactArgs(2),
	RunE:  runAgentsStatus,
}

var agentsDeleteCmd = &cobra.Command{
	Use:   "delete <employee-id>",
	Short: "Delete an agent with its photos and face crops",
	Args:  cobra.ExactArgs(1),
	RunE:  runAgentsDelete,
}

var agentsImportCmd = &cobra.Command{
	Use:   "import <directory>",
	Short: "Enroll agents from a directory tree",
	Long: `Enroll every agent found under a directory. Each subdirectory holding an
agent.yaml file is one agent; the image files next to it are its photos.

agent.yaml:
  last_name: Novak
  first_name: Jana
  employee_id: E1001
  department: Sales
  phone: "+420 600 000 000"

Agents whose employee ID is already enrolled are skipped.

Example:
  agent-faceid agents import ./onboarding`,
	Args: cobra.ExactArgs(1),
	RunE: runAgentsImport,
}

func init() {
	rootCmd.AddCommand(agentsCmd)
	agentsCmd.AddCommand(agentsListCmd)
	agentsCmd.AddCommand(agentsShowCmd)
	agentsCmd.AddCommand(agentsStatusCmd)
	agentsCmd.AddCommand(agentsDeleteCmd)
	agentsCmd.AddCommand(agentsImportCmd)

	agentsListCmd.Flags().String("query", "", "Filter by name or employee ID")
	agentsListCmd.Flags().Bool("json", false, "Output as JSON")
	agentsShowCmd.Flags().Bool("json", false, "Output as JSON")
	agentsImportCmd.Flags().Bool("dry-run", false, "Only validate the directory tree")
}

// agentOutput is the CLI view of an agent; the signature is left out.
type agentOutput struct {
	EmployeeID string    `json:"employee_id"`
	LastName   string    `json:"last_name"`
	FirstName  string    `json:"first_name"`
	Department string    `json:"department"`
	Phone      string    `json:"phone,omitempty"`
	Status     string    `json:"status"`
	Photos     []string  `json:"photos"`
	FaceCrops  []string  `json:"face_crops"`
	Model      string    `json:"model,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func newAgentOutput(a *database.Agent) agentOutput {
	return agentOutput{
		EmployeeID: a.EmployeeID,
		LastName:   a.LastName,
		FirstName:  a.FirstName,
		Department: a.Department,
		Phone:      a.Phone,
		Status:     a.Status,
		Photos:     a.Photos,
		FaceCrops:  a.FaceCrops,
		Model:      a.Model,
		CreatedAt:  a.CreatedAt,
	}
}

func printJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func runAgentsList(cmd *cobra.Command, args []string) error {
	a := loadApp()
	defer a.close()

	ctx := context.Background()
	service, err := a.roster(ctx, false)
	if err != nil {
		return err
	}

	agents, err := service.List(ctx, mustGetString(cmd, "query"))
	if err != nil {
		return err
	}

	if mustGetBool(cmd, "json") {
		out := make([]agentOutput, len(agents))
		for i := range agents {
			out[i] = newAgentOutput(&agents[i])
		}
		return printJSON(out)
	}

	if len(agents) == 0 {
		fmt.Println("No agents enrolled.")
		return nil
	}

	fmt.Printf("%-12s %-30s %-20s %-10s %s\n", "EMPLOYEE ID", "NAME", "DEPARTMENT", "STATUS", "ENROLLED")
	for _, agent := range agents {
		fmt.Printf("%-12s %-30s %-20s %-10s %s\n",
			agent.EmployeeID, agent.DisplayName(), agent.Department, agent.Status,
			agent.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	fmt.Printf("\nTotal: %d agents\n", len(agents))
	return nil
}

func runAgentsShow(cmd *cobra.Command, args []string) error {
	a := loadApp()
	defer a.close()

	ctx := context.Background()
	service, err := a.roster(ctx, false)
	if err != nil {
		return err
	}

	agent, err := service.Get(ctx, args[0])
	if err != nil {
		return err
	}

	if mustGetBool(cmd, "json") {
		return printJSON(newAgentOutput(agent))
	}

	fmt.Printf("Agent: %s\n", agent.DisplayName())
	fmt.Println("────────────────────────────────────────")
	fmt.Printf("  Employee ID:  %s\n", agent.EmployeeID)
	fmt.Printf("  Department:   %s\n", agent.Department)
	if agent.Phone != "" {
		fmt.Printf("  Phone:        %s\n", agent.Phone)
	}
	fmt.Printf("  Status:       %s\n", agent.Status)
	fmt.Printf("  Model:        %s (%d dims)\n", agent.Model, len(agent.Embedding))
	fmt.Printf("  Enrolled:     %s\n", agent.CreatedAt.Local().Format(time.RFC3339))

	fmt.Println("\nPhotos:")
	for _, u := range agent.Photos {
		fmt.Printf("  %s\n", u)
	}
	fmt.Println("\nFace crops:")
	for _, u := range agent.FaceCrops {
		fmt.Printf("  %s\n", u)
	}
	return nil
}

func runAgentsStatus(cmd *cobra.Command, args []string) error {
	a := loadApp()
	defer a.close()

	ctx := context.Background()
	service, err := a.roster(ctx, false)
	if err != nil {
		return err
	}

	if err := service.SetStatus(ctx, args[0], args[1]); err != nil {
		return err
	}
	fmt.Printf("Agent %s is now %s\n", args[0], args[1])
	return nil
}

func runAgentsDelete(cmd *cobra.Command, args []string) error {
	a := loadApp()
	defer a.close()

	ctx := context.Background()
	service, err := a.roster(ctx, false)
	if err != nil {
		return err
	}

	if err := service.Delete(ctx, args[0]); err != nil {
		return err
	}
	fmt.Printf("Deleted agent %s\n", args[0])
	return nil
}

// importJob is one agent directory ready to enroll.
type importJob struct {
	dir    string
	id     roster.Identity
	photos []string
}

// collectImportJobs validates every agent directory under root. Directories
// with a broken agent.yaml or without photos are reported as errors. Only the
// first MaxPhotosPerRequest photos of a directory are used.
func collectImportJobs(root string) ([]importJob, []error, error) {
	dirs, err := importDirs(root)
	if err != nil {
		return nil, nil, err
	}

	var jobs []importJob
	var errs []error
	for _, dir := range dirs {
		id, err := loadIdentity(dir)
		if err == nil {
			err = id.Validate()
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", filepath.Base(dir), err))
			continue
		}

		photos, err := listImageFiles(dir)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", filepath.Base(dir), err))
			continue
		}
		if len(photos) == 0 {
			errs = append(errs, fmt.Errorf("%s: no photos", filepath.Base(dir)))
			continue
		}
		if len(photos) > constants.MaxPhotosPerRequest {
			photos = photos[:constants.MaxPhotosPerRequest]
		}
		jobs = append(jobs, importJob{dir: dir, id: id, photos: photos})
	}
	return jobs, errs, nil
}

func runAgentsImport(cmd *cobra.Command, args []string) error {
	jobs, errs, err := collectImportJobs(args[0])
	if err != nil {
		return err
	}

	if len(jobs) == 0 && len(errs) == 0 {
		fmt.Println("No agent directories found.")
		return nil
	}

	if mustGetBool(cmd, "dry-run") {
		for _, job := range jobs {
			fmt.Printf("  %s: %s %s (%s), %d photos\n", filepath.Base(job.dir),
				job.id.FirstName, job.id.LastName, job.id.EmployeeID, len(job.photos))
		}
		printImportErrors(errs)
		return nil
	}

	a := loadApp()
	defer a.close()

	ctx := context.Background()
	service, err := a.roster(ctx, false)
	if err != nil {
		return err
	}

	fmt.Printf("Importing %d agents...\n\n", len(jobs))

	bar := progressbar.NewOptions(len(jobs),
		progressbar.OptionSetDescription("Enrolling agents"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("agents"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	var enrolled, skipped int
	var duplicates []string
	for _, job := range jobs {
		res, err := importAgent(ctx, service, job)
		switch {
		case errors.Is(err, database.ErrAgentExists):
			skipped++
		case err != nil:
			errs = append(errs, fmt.Errorf("%s: %w", filepath.Base(job.dir), err))
		default:
			enrolled++
			if d := res.PossibleDuplicate; d != nil {
				duplicates = append(duplicates, fmt.Sprintf("%s resembles %s (%.3f)",
					res.Agent.EmployeeID, d.Agent.EmployeeID, d.Similarity))
			}
		}
		_ = bar.Add(1)
	}
	fmt.Println()

	fmt.Printf("\nEnrolled: %d\n", enrolled)
	fmt.Printf("Skipped (already enrolled): %d\n", skipped)
	if len(duplicates) > 0 {
		fmt.Printf("\nPossible duplicates: %d\n", len(duplicates))
		for _, d := range duplicates {
			fmt.Printf("  - %s\n", d)
		}
	}
	printImportErrors(errs)
	return nil
}

func importAgent(ctx context.Context, service *roster.Service, job importJob) (*roster.EnrollResult, error) {
	photos, err := readPhotoFiles(job.photos)
	if err != nil {
		return nil, err
	}
	return service.Enroll(ctx, job.id, photos)
}

func printImportErrors(errs []error) {
	if len(errs) == 0 {
		return
	}
	fmt.Printf("\nErrors: %d\n", len(errs))
	for _, e := range errs {
		fmt.Printf("  - %v\n", e)
	}
}
