package cmd

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/videoforge/videoforge/pkg/models"
)

var (
	alertLimit   int
	alertAckUser string
)

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Manage monitoring alerts",
}

var alertsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent alerts",
	RunE:  runAlertsList,
}

var alertsAckCmd = &cobra.Command{
	Use:   "ack <alert-id>",
	Short: "Acknowledge an alert",
	Args:  cobra.ExactArgs(1),
	RunE:  runAlertsAck,
}

func init() {
	rootCmd.AddCommand(alertsCmd)
	alertsCmd.AddCommand(alertsListCmd)
	alertsCmd.AddCommand(alertsAckCmd)

	alertsListCmd.Flags().IntVar(&alertLimit, "limit", 20, "maximum alerts to list")
	alertsAckCmd.Flags().StringVar(&alertAckUser, "user", "operator", "acknowledging user")
}

func runAlertsList(cmd *cobra.Command, args []string) error {
	var alerts []models.Alert
	if err := apiGet(fmt.Sprintf("/alerts?limit=%d", alertLimit), &alerts); err != nil {
		return err
	}

	if isJSONOutput() {
		return printJSON(alerts)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("ID", "Time", "Type", "Level", "Message", "Acked")
	for _, a := range alerts {
		acked := "no"
		if a.Acknowledged {
			acked = "by " + a.AcknowledgedBy
		}
		table.Append(fmt.Sprintf("%d", a.ID), a.Timestamp.Format(time.RFC3339),
			a.Type, string(a.Level), a.Message, acked)
	}
	table.Render()
	return nil
}

func runAlertsAck(cmd *cobra.Command, args []string) error {
	payload := map[string]string{"user": alertAckUser}
	var resp map[string]interface{}
	if err := apiPost("/alerts/"+args[0]+"/ack", payload, &resp, http.StatusOK); err != nil {
		return err
	}
	if isJSONOutput() {
		return printJSON(resp)
	}
	fmt.Printf("Alert %s acknowledged\n", args[0])
	return nil
}
