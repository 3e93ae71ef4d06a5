package commands

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/tinrooster/tedecom-v1/internal/api/client"
	"github.com/tinrooster/tedecom-v1/internal/models"
)

func NewReportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "report",
		Short:   "Report management commands",
		Aliases: []string{"reports", "r"},
	}

	// Add subcommands
	cmd.AddCommand(newReportListCommand())
	cmd.AddCommand(newReportTypesCommand())
	cmd.AddCommand(newReportGetCommand())
	cmd.AddCommand(newReportCreateCommand())
	cmd.AddCommand(newReportStatusCommand())
	cmd.AddCommand(newReportDownloadCommand())
	cmd.AddCommand(newReportRetryCommand())
	cmd.AddCommand(newReportDeleteCommand())

	return cmd
}

func newReportListCommand() *cobra.Command {
	var (
		reportType string
		status     string
	)

	cmd := &cobra.Command{
		Use:     "list",
		Short:   "List reports, newest first",
		Aliases: []string{"ls"},
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.NewClient()
			if err != nil {
				return fmt.Errorf("failed to create client: %w", err)
			}

			reports, err := c.ListReports(reportType, status)
			if err != nil {
				return fmt.Errorf("failed to list reports: %w", err)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tTYPE\tFORMAT\tSTATUS\tCREATOR\tCREATED")
			for _, r := range reports {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					r.ID,
					r.Title,
					r.Type,
					r.Format,
					r.Status,
					r.CreatorName,
					r.CreatedAt.Format(time.RFC3339),
				)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&reportType, "type", "", "Filter by report type")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (pending/in_progress/completed/failed)")
	return cmd
}

func newReportTypesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List supported report types",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.NewClient()
			if err != nil {
				return fmt.Errorf("failed to create client: %w", err)
			}

			types, err := c.ListReportTypes()
			if err != nil {
				return fmt.Errorf("failed to list report types: %w", err)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "TYPE\tNAME\tDESCRIPTION")
			for _, t := range types {
				fmt.Fprintf(w, "%s\t%s\t%s\n", t.Type, t.Name, t.Description)
			}
			return w.Flush()
		},
	}
}

func newReportGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get [report_id]",
		Short: "Show a report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.NewClient()
			if err != nil {
				return fmt.Errorf("failed to create client: %w", err)
			}

			r, err := c.GetReport(args[0])
			if err != nil {
				return fmt.Errorf("failed to get report: %w", err)
			}
			printReport(r)
			return nil
		},
	}
}

func newReportCreateCommand() *cobra.Command {
	var (
		title      string
		reportType string
		format     string
		start      string
		end        string
		location   string
		equipment  []uint
		wait       bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a report and start generating it",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.NewClient()
			if err != nil {
				return fmt.Errorf("failed to create client: %w", err)
			}

			params := map[string]interface{}{}
			if start != "" {
				params["startDate"] = start
			}
			if end != "" {
				params["endDate"] = end
			}
			if location != "" {
				params["location"] = location
			}
			if len(equipment) > 0 {
				params["equipmentIds"] = equipment
			}

			r, err := c.CreateReport(client.CreateReportRequest{
				Title:      title,
				Type:       models.ReportType(reportType),
				Format:     models.ReportFormat(format),
				Parameters: params,
			})
			if err != nil {
				return fmt.Errorf("failed to create report: %w", err)
			}
			fmt.Printf("Report %s created (%s)\n", r.ID, r.Status)

			if !wait {
				return nil
			}
			return waitForReport(c, r.ID)
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Report title")
	cmd.Flags().StringVar(&reportType, "type", string(models.ReportTypeEquipmentStatus), "Report type (see 'report types')")
	cmd.Flags().StringVar(&format, "format", string(models.ReportFormatPDF), "Output format (pdf/excel/csv)")
	cmd.Flags().StringVar(&start, "start", "", "Start date (YYYY-MM-DD or RFC3339)")
	cmd.Flags().StringVar(&end, "end", "", "End date (YYYY-MM-DD or RFC3339)")
	cmd.Flags().StringVar(&location, "location", "", "Only include equipment at this location")
	cmd.Flags().UintSliceVar(&equipment, "equipment", nil, "Only include these equipment IDs")
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Wait until generation finishes")
	cmd.MarkFlagRequired("title")
	return cmd
}

func waitForReport(c *client.Client, id string) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		status, err := c.GetReportStatus(id)
		if err != nil {
			return fmt.Errorf("failed to get report status: %w", err)
		}
		switch status.Status {
		case models.ReportStatusCompleted:
			fmt.Printf("Report %s completed\n", id)
			return nil
		case models.ReportStatusFailed:
			return fmt.Errorf("report %s failed: %s", id, status.Error)
		}
		<-ticker.C
	}
}

func newReportStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status [report_id]",
		Short: "Show the generation status of a report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.NewClient()
			if err != nil {
				return fmt.Errorf("failed to create client: %w", err)
			}

			status, err := c.GetReportStatus(args[0])
			if err != nil {
				return fmt.Errorf("failed to get report status: %w", err)
			}

			fmt.Printf("Status: %s\n", status.Status)
			if status.GeneratedAt != nil {
				fmt.Printf("Generated: %s\n", status.GeneratedAt.Format(time.RFC3339))
			}
			if status.Error != "" {
				fmt.Printf("Error: %s\n", status.Error)
			}
			if status.LastErrorAt != nil {
				fmt.Printf("Failed at: %s\n", status.LastErrorAt.Format(time.RFC3339))
			}
			return nil
		},
	}
}

func newReportDownloadCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "download [report_id]",
		Short: "Download the generated report file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.NewClient()
			if err != nil {
				return fmt.Errorf("failed to create client: %w", err)
			}

			if output == "" {
				r, err := c.GetReport(args[0])
				if err != nil {
					return fmt.Errorf("failed to get report: %w", err)
				}
				output = fmt.Sprintf("%s.%s", r.ID, r.Format.Extension())
			}

			n, err := c.DownloadReport(args[0], output)
			if err != nil {
				return fmt.Errorf("failed to download report: %w", err)
			}
			fmt.Printf("Saved %d bytes to %s\n", n, output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default <id>.<ext>)")
	return cmd
}

func newReportRetryCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "retry [report_id]",
		Short: "Retry a failed report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.NewClient()
			if err != nil {
				return fmt.Errorf("failed to create client: %w", err)
			}

			r, err := c.RetryReport(args[0])
			if err != nil {
				return fmt.Errorf("failed to retry report: %w", err)
			}
			if r.Status == models.ReportStatusFailed {
				return fmt.Errorf("report %s failed again: %s", r.ID, r.ErrorMessage)
			}
			fmt.Printf("Report %s %s\n", r.ID, r.Status)
			return nil
		},
	}
}

func newReportDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "delete [report_id]",
		Short:   "Delete a report and its files",
		Aliases: []string{"rm"},
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.NewClient()
			if err != nil {
				return fmt.Errorf("failed to create client: %w", err)
			}

			if err := c.DeleteReport(args[0]); err != nil {
				return fmt.Errorf("failed to delete report: %w", err)
			}
			fmt.Printf("Report %s deleted\n", args[0])
			return nil
		},
	}
}

func printReport(r *models.Report) {
	fmt.Printf("ID:        %s\n", r.ID)
	fmt.Printf("Title:     %s\n", r.Title)
	fmt.Printf("Type:      %s\n", r.Type.DisplayName())
	fmt.Printf("Format:    %s\n", r.Format)
	fmt.Printf("Status:    %s\n", r.Status)
	fmt.Printf("Creator:   %s\n", r.CreatorName)
	fmt.Printf("Created:   %s\n", r.CreatedAt.Format(time.RFC3339))
	if r.GeneratedAt != nil {
		fmt.Printf("Generated: %s\n", r.GeneratedAt.Format(time.RFC3339))
	}
	if r.ErrorMessage != "" {
		fmt.Printf("Error:     %s\n", r.ErrorMessage)
	}
	if r.Schedule != nil {
		fmt.Printf("Schedule:  %s at %s\n", r.Schedule.Frequency, r.Schedule.Time)
	}
}
