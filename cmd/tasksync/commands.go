package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nhle/tasksync/internal/model"
	"github.com/nhle/tasksync/internal/source"
	"github.com/nhle/tasksync/internal/sync"
)

func importCmd(configPath func() string) *cobra.Command {
	var (
		target    source.Target
		workspace string
		user      string
	)

	cmd := &cobra.Command{
		Use:   "import <provider> <ref>",
		Short: "Import a remote issue as a new linked task",
		Long: `Import a remote issue as a new linked task.

Examples:
  tasksync import jira PROJ-12 --tenant <cloud-id> --workspace ws-1
  tasksync import github 42 --tenant acme/web --workspace ws-1
  tasksync import azure 314 --tenant acme --project web --workspace ws-1`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := parseProviderArg(args[0])
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), configPath(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			im := sync.NewImporter(a.store, a.trackers, a.creds, a.logger)
			task, err := im.Import(cmd.Context(), sync.ImportRequest{
				Provider:    provider,
				Target:      target,
				Ref:         args[1],
				WorkspaceID: workspace,
				UserID:      user,
			})
			if errors.Is(err, sync.ErrAlreadyImported) {
				fmt.Fprintf(cmd.ErrOrStderr(), "already imported as task %s\n", task.ID)
				return printJSON(cmd.OutOrStdout(), task)
			}
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), task)
		},
	}
	cmd.Flags().StringVar(&target.TenantID, "tenant", "", "Jira cloud id, GitHub owner/repo or Azure organization")
	cmd.Flags().StringVar(&target.Project, "project", "", "Azure project name")
	cmd.Flags().StringVar(&workspace, "workspace", "", "workspace to create the task in")
	cmd.Flags().StringVar(&user, "user", "", "user recorded on the activity entry")
	_ = cmd.MarkFlagRequired("tenant")
	_ = cmd.MarkFlagRequired("workspace")
	return cmd
}

func exportCmd(configPath func() string) *cobra.Command {
	var (
		target source.Target
		user   string
	)

	cmd := &cobra.Command{
		Use:   "export <task-id> <provider>",
		Short: "Create a remote issue from a task and link it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := parseProviderArg(args[1])
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), configPath(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			im := sync.NewImporter(a.store, a.trackers, a.creds, a.logger)
			task, key, err := im.Export(cmd.Context(), args[0], provider, target, user)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{"issueKey": key, "task": task})
		},
	}
	cmd.Flags().StringVar(&target.TenantID, "tenant", "", "Jira cloud id, GitHub owner/repo or Azure organization")
	cmd.Flags().StringVar(&target.Project, "project", "", "Jira project key or Azure project name")
	cmd.Flags().StringVar(&user, "user", "", "user recorded on the activity entry")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}

func pushCmd(configPath func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "push <task-id> [provider]",
		Short: "Push a task's fields to its linked issues",
		Long: `Push a task's fields to its linked issues. Without a provider the
task is pushed to every provider it is linked to.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var provider model.Provider
			if len(args) == 2 {
				p, err := parseProviderArg(args[1])
				if err != nil {
					return err
				}
				provider = p
			}

			a, err := newApp(cmd.Context(), configPath(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			pusher := sync.NewPusher(a.store, a.trackers, a.creds, a.logger)
			if provider == "" {
				results, err := pusher.PushAll(cmd.Context(), args[0])
				if results != nil {
					if perr := printJSON(cmd.OutOrStdout(), results); perr != nil {
						return perr
					}
				}
				return err
			}

			res, err := pusher.Push(cmd.Context(), args[0], provider)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
}

func tokenCmd(configPath func() string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage provider access tokens in the keyring",
	}

	set := &cobra.Command{
		Use:   "set <provider> [tenant]",
		Short: "Store an access token read from stdin",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := parseProviderArg(args[0])
			if err != nil {
				return err
			}
			token, err := readToken(cmd.InOrStdin())
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), configPath(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()
			return a.creds.SetToken(provider, tenantArg(args), token)
		},
	}

	del := &cobra.Command{
		Use:   "delete <provider> [tenant]",
		Short: "Remove a stored access token",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := parseProviderArg(args[0])
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), configPath(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()
			return a.creds.DeleteToken(provider, tenantArg(args))
		},
	}

	cmd.AddCommand(set, del)
	return cmd
}

func tenantArg(args []string) string {
	if len(args) > 1 {
		return args[1]
	}
	return ""
}

func readToken(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading token: %w", err)
	}
	token := strings.TrimSpace(line)
	if token == "" {
		return "", errors.New("empty token")
	}
	return token, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
