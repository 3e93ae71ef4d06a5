package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/tinrooster/tedecom-v1/internal/api/client"
	"github.com/tinrooster/tedecom-v1/internal/models"
)

func NewScheduleCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Recurring report schedules",
	}

	cmd.AddCommand(newScheduleSetCommand())
	cmd.AddCommand(newScheduleShowCommand())
	cmd.AddCommand(newScheduleCancelCommand())

	return cmd
}

func newScheduleSetCommand() *cobra.Command {
	var (
		frequency  string
		at         string
		dayOfWeek  int
		dayOfMonth int
		recipients []string
	)

	cmd := &cobra.Command{
		Use:   "set [report_id]",
		Short: "Schedule a report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.NewClient()
			if err != nil {
				return fmt.Errorf("failed to create client: %w", err)
			}

			schedule := models.ReportSchedule{
				Frequency:  models.Frequency(frequency),
				Time:       at,
				Recipients: recipients,
			}
			if cmd.Flags().Changed("day-of-week") {
				schedule.DayOfWeek = &dayOfWeek
			}
			switch schedule.Frequency {
			case models.FrequencyMonthly, models.FrequencyQuarterly, models.FrequencyYearly:
				schedule.DayOfMonth = &dayOfMonth
			default:
				if cmd.Flags().Changed("day-of-month") {
					schedule.DayOfMonth = &dayOfMonth
				}
			}

			info, err := c.ScheduleReport(args[0], schedule)
			if err != nil {
				return fmt.Errorf("failed to schedule report: %w", err)
			}
			printSchedule(info)
			return nil
		},
	}

	cmd.Flags().StringVar(&frequency, "frequency", string(models.FrequencyDaily), "daily/weekly/monthly/quarterly/yearly")
	cmd.Flags().StringVar(&at, "time", "09:00", "Time of day (HH:MM)")
	cmd.Flags().IntVar(&dayOfWeek, "day-of-week", 1, "Day of week for weekly schedules (0=Sunday)")
	cmd.Flags().IntVar(&dayOfMonth, "day-of-month", 1, "Day of month for monthly, quarterly and yearly schedules")
	cmd.Flags().StringSliceVar(&recipients, "email", nil, "Email the report to these addresses")
	return cmd
}

func newScheduleShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show [report_id]",
		Short: "Show the schedule of a report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.NewClient()
			if err != nil {
				return fmt.Errorf("failed to create client: %w", err)
			}

			info, err := c.GetSchedule(args[0])
			if err != nil {
				return fmt.Errorf("failed to get schedule: %w", err)
			}
			printSchedule(info)
			return nil
		},
	}
}

func newScheduleCancelCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel [report_id]",
		Short: "Cancel the schedule of a report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.NewClient()
			if err != nil {
				return fmt.Errorf("failed to create client: %w", err)
			}

			if err := c.CancelSchedule(args[0]); err != nil {
				return fmt.Errorf("failed to cancel schedule: %w", err)
			}
			fmt.Printf("Schedule for report %s cancelled\n", args[0])
			return nil
		},
	}
}

func printSchedule(info *client.ScheduleInfo) {
	if info.Schedule == nil {
		fmt.Println("Not scheduled")
		return
	}

	s := info.Schedule
	fmt.Printf("Frequency:  %s\n", s.Frequency)
	fmt.Printf("Time:       %s\n", s.Time)
	if s.DayOfWeek != nil {
		fmt.Printf("Weekday:    %s\n", time.Weekday(*s.DayOfWeek))
	}
	if s.DayOfMonth != nil {
		fmt.Printf("Day:        %d\n", *s.DayOfMonth)
	}
	if len(s.Recipients) > 0 {
		fmt.Printf("Recipients: %v\n", s.Recipients)
	}
	if info.NextRun != nil {
		fmt.Printf("Next run:   %s\n", info.NextRun.Format(time.RFC3339))
	}
}
