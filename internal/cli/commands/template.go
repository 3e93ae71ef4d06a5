package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/tinrooster/tedecom-v1/internal/api/client"
)

func NewTemplateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "template",
		Short:   "Report template commands",
		Aliases: []string{"templates", "t"},
	}

	cmd.AddCommand(newTemplateListCommand())
	cmd.AddCommand(newTemplateSetDefaultCommand())

	return cmd
}

func newTemplateListCommand() *cobra.Command {
	var (
		reportType string
		format     string
	)

	cmd := &cobra.Command{
		Use:     "list",
		Short:   "List report templates",
		Aliases: []string{"ls"},
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.NewClient()
			if err != nil {
				return fmt.Errorf("failed to create client: %w", err)
			}

			list, err := c.ListTemplates(reportType, format)
			if err != nil {
				return fmt.Errorf("failed to list templates: %w", err)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tTYPE\tFORMAT\tDEFAULT")
			for _, t := range list {
				def := ""
				if t.IsDefault {
					def = "*"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", t.ID, t.Name, t.Type, t.Format, def)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&reportType, "type", "", "Filter by report type")
	cmd.Flags().StringVar(&format, "format", "", "Filter by format")
	return cmd
}

func newTemplateSetDefaultCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set-default [template_id]",
		Short: "Make a template the default for its type and format",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.NewClient()
			if err != nil {
				return fmt.Errorf("failed to create client: %w", err)
			}

			t, err := c.SetDefaultTemplate(args[0])
			if err != nil {
				return fmt.Errorf("failed to set default template: %w", err)
			}
			fmt.Printf("Template %q is now the default for %s/%s\n", t.Name, t.Type, t.Format)
			return nil
		},
	}
}
