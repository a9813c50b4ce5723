package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/treeflow/treeflow/internal/provider"
	"github.com/treeflow/treeflow/internal/types"
	"github.com/treeflow/treeflow/internal/ui"
)

var (
	issuesProvider string
	issuesState    string
	issuesLimit    int
	issuesAssignee string
	issuesLabels   []string
)

var issuesCmd = &cobra.Command{
	Use:     "issues",
	GroupID: "issues",
	Short:   "Work with the configured issue tracker",
}

// activeProvider builds the provider named by --provider, falling back to the
// configured default.
func activeProvider() (provider.IssueProvider, error) {
	name := issuesProvider
	if name == "" {
		name = settings.DefaultIssueProvider
	}
	return provider.New(name, settings.Provider(name))
}

var issuesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List issues from the tracker",
	RunE: func(cmd *cobra.Command, args []string) error {
		state := types.IssueState(issuesState)
		if state != "" && state != types.IssueOpen && state != types.IssueClosed {
			return fmt.Errorf("invalid state %q (open, closed)", issuesState)
		}

		p, err := activeProvider()
		if err != nil {
			return err
		}
		issues, err := p.ListIssues(rootCtx, provider.ListOptions{
			State:    state,
			Limit:    issuesLimit,
			Assignee: issuesAssignee,
			Labels:   issuesLabels,
		})
		if err != nil {
			return err
		}

		if jsonOutput {
			if issues == nil {
				issues = []*types.Issue{}
			}
			outputJSON(issues)
			return nil
		}
		if len(issues) == 0 {
			info("no issues")
			return nil
		}
		for _, is := range issues {
			marker := ui.ActiveStyle.Render("open  ")
			if is.State == types.IssueClosed {
				marker = ui.RenderMuted("closed")
			}
			fmt.Printf("%s %s %s\n", ui.AccentStyle.Render(fmt.Sprintf("#%-5d", is.Number)), marker, is.Title)
		}
		return nil
	},
}

var issuesShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one issue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := activeProvider()
		if err != nil {
			return err
		}
		issue, err := p.GetIssue(rootCtx, args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			outputJSON(issue)
			return nil
		}
		fmt.Println(ui.RenderHeader(fmt.Sprintf("#%d %s", issue.Number, issue.Title)))
		fmt.Printf("  state: %s\n", issue.State)
		if issue.URL != "" {
			fmt.Printf("  url:   %s\n", issue.URL)
		}
		if len(issue.Labels) > 0 {
			fmt.Printf("  labels: %v\n", issue.Labels)
		}
		if issue.Body != "" {
			fmt.Println()
			fmt.Println(issue.Body)
		}
		return nil
	},
}

var issuesCloseCmd = &cobra.Command{
	Use:   "close <id>",
	Short: "Close an issue in the tracker",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := activeProvider()
		if err != nil {
			return err
		}
		issue, err := p.CloseIssue(rootCtx, args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			outputJSON(issue)
			return nil
		}
		info("closed #%d %s", issue.Number, issue.Title)
		return nil
	},
}

func init() {
	issuesCmd.PersistentFlags().StringVar(&issuesProvider, "provider", "", "Issue provider override (linear, github)")
	issuesListCmd.Flags().StringVar(&issuesState, "state", "", "Filter by state (open, closed; default open)")
	issuesListCmd.Flags().IntVar(&issuesLimit, "limit", 0, "Maximum issues to return")
	issuesListCmd.Flags().StringVar(&issuesAssignee, "assignee", "", "Filter by assignee")
	issuesListCmd.Flags().StringSliceVar(&issuesLabels, "label", nil, "Filter by label (repeatable)")

	issuesCmd.AddCommand(issuesListCmd)
	issuesCmd.AddCommand(issuesShowCmd)
	issuesCmd.AddCommand(issuesCloseCmd)
	rootCmd.AddCommand(issuesCmd)
}
