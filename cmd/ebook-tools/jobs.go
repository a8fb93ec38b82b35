package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fifosk/ebook-tools-sub003/internal/config"
	"github.com/fifosk/ebook-tools-sub003/internal/jobs"
	"github.com/fifosk/ebook-tools-sub003/internal/runtime"
)

type jobsOptions struct {
	configPath string
	user       string
	admin      bool
}

func newJobsCmd() *cobra.Command {
	opts := jobsOptions{}
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect pipeline jobs",
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", defaultConfigPath(), "config file path")
	pf.StringVar(&opts.user, "user", currentUser(), "acting user id")
	pf.BoolVar(&opts.admin, "admin", false, "act with admin visibility")

	cmd.AddCommand(newJobsListCmd(&opts), newJobsShowCmd(&opts))
	return cmd
}

func (o *jobsOptions) role() jobs.Role {
	if o.admin {
		return jobs.RoleAdmin
	}
	return jobs.RoleUser
}

func (o *jobsOptions) openStore() (*jobs.Store, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	rc, err := runtime.NewContext(cfg, runtime.Overrides{})
	if err != nil {
		return nil, err
	}
	return jobs.NewStore(jobsDir(cfg, rc), cfg.JobMaxWorkers)
}

func newJobsListCmd(opts *jobsOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List visible jobs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := opts.openStore()
			if err != nil {
				return err
			}
			list, err := store.List(opts.user, opts.role())
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Println("No jobs.")
				return nil
			}
			for _, job := range list {
				fmt.Printf("%s  %-10s  %-12s  %s\n",
					job.CreatedAt.Format("2006-01-02 15:04"), job.Status, job.Owner, job.ID)
			}
			return nil
		},
		SilenceUsage: true,
	}
}

func newJobsShowCmd(opts *jobsOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <job id>",
		Short: "Print one job's full envelope",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := opts.openStore()
			if err != nil {
				return err
			}
			job, err := store.Get(args[0], opts.user, opts.role())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(job)
		},
		SilenceUsage: true,
	}
}
