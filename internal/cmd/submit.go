package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a task to a running server",
	Long: `Submit a task to a running server.

Examples:
  fleetcore submit --type simulate --priority 8
  fleetcore submit --type predict --payload '{"series":[1,2,3]}'`,
	Args: cobra.NoArgs,
	RunE: runSubmit,
}

func init() {
	rootCmd.AddCommand(submitCmd)

	submitCmd.Flags().String("type", "", "task type (required)")
	submitCmd.Flags().String("id", "", "task ID (generated when empty)")
	submitCmd.Flags().String("class", "", "task class (defaults to the type)")
	submitCmd.Flags().Int("priority", 0, "priority, higher runs first (server default when unset)")
	submitCmd.Flags().Int("credit-weight", 0, "credit weight (server default when unset)")
	submitCmd.Flags().String("payload", "", "JSON payload")
	submitCmd.Flags().Duration("timeout", 0, "per-task timeout (0 = none)")
	addServerFlag(submitCmd)
	_ = submitCmd.MarkFlagRequired("type")
}

// submitBody mirrors the server's submit request.
type submitBody struct {
	ID           string          `json:"id,omitempty"`
	Type         string          `json:"type"`
	Class        string          `json:"class,omitempty"`
	Priority     *int            `json:"priority,omitempty"`
	CreditWeight *int            `json:"creditWeight,omitempty"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	TimeoutMs    int64           `json:"timeoutMs,omitempty"`
}

func runSubmit(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	body := submitBody{}
	body.Type, _ = flags.GetString("type")
	body.ID, _ = flags.GetString("id")
	body.Class, _ = flags.GetString("class")

	if flags.Changed("priority") {
		p, _ := flags.GetInt("priority")
		body.Priority = &p
	}
	if flags.Changed("credit-weight") {
		w, _ := flags.GetInt("credit-weight")
		body.CreditWeight = &w
	}
	if payload, _ := flags.GetString("payload"); payload != "" {
		if !json.Valid([]byte(payload)) {
			return fmt.Errorf("--payload is not valid JSON")
		}
		body.Payload = json.RawMessage(payload)
	}
	if timeout, _ := flags.GetDuration("timeout"); timeout > 0 {
		body.TimeoutMs = timeout.Milliseconds()
	}

	var resp struct {
		TaskID string `json:"taskId"`
	}
	if err := doJSON(http.MethodPost, serverURL(cmd)+"/api/task", body, &resp); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Submitted %s (%s)\n", resp.TaskID, body.Type)
	return nil
}
