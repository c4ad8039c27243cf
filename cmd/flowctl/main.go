// flowctl is the operator CLI: it talks straight to the database and
// runs workflows in-process, without the flowd server.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/lyzr/flowd/common/bootstrap"
	"github.com/lyzr/flowd/executor"
	"github.com/lyzr/flowd/models"
	"github.com/lyzr/flowd/nodes"
	"github.com/lyzr/flowd/registry"
	"github.com/lyzr/flowd/repository"
	"github.com/lyzr/flowd/secrets"
	"github.com/lyzr/flowd/service"
)

func main() {
	root := &cobra.Command{
		Use:           "flowctl",
		Short:         "Manage and run workflows",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		initCmd(),
		importCmd(),
		listCmd(),
		executeCmd(),
		historyCmd(),
		showCmd(),
		nodeTypesCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "flowctl: %v\n", err)
		os.Exit(1)
	}
}

// runtime bundles the in-process engine and services for one command
type runtime struct {
	components *bootstrap.Components
	store      repository.Store
	engine     *executor.Engine
	workflows  *service.WorkflowService
}

func newRuntime(ctx context.Context) (*runtime, error) {
	components, err := bootstrap.Setup(ctx, "flowctl", bootstrap.WithoutRedis())
	if err != nil {
		return nil, err
	}

	store := repository.NewPostgres(components.DB, components.Logger)

	reg := registry.New()
	nodes.RegisterBuiltins(reg, nodes.Options{Logger: components.Logger})

	var encryptor *secrets.Encryptor
	if key := components.Config.Secrets.EncryptionKey; key != "" {
		encryptor, err = secrets.NewEncryptor(key)
		if err != nil {
			components.Shutdown(ctx)
			return nil, err
		}
	}

	engine := executor.New(executor.Options{
		Store:     store,
		Registry:  reg,
		Logger:    components.Logger,
		Encryptor: encryptor,
		Config:    components.Config.Engine,
	})

	return &runtime{
		components: components,
		store:      store,
		engine:     engine,
		workflows:  service.NewWorkflowService(store, engine, nil, encryptor, components.Logger),
	}, nil
}

func (r *runtime) close(ctx context.Context) {
	r.components.Shutdown(ctx)
}

// resolveWorkflow accepts either a workflow id or a unique name
func resolveWorkflow(ctx context.Context, store repository.Store, ref string) (*models.Workflow, error) {
	if id, err := uuid.Parse(ref); err == nil {
		return store.GetWorkflow(ctx, id)
	}
	return store.GetWorkflowByName(ctx, ref)
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.close(cmd.Context())

			if err := repository.Migrate(cmd.Context(), rt.components.DB); err != nil {
				return err
			}
			fmt.Println("schema up to date")
			return nil
		},
	}
}

func importCmd() *cobra.Command {
	var inactive bool
	cmd := &cobra.Command{
		Use:   "import <file.yaml> [more files...]",
		Short: "Import workflow definitions from YAML files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.close(cmd.Context())

			var activate *bool
			if inactive {
				off := false
				activate = &off
			}

			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				workflow, err := rt.workflows.ImportYAML(cmd.Context(), data, activate)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				fmt.Printf("%s\tversion %d\t%s\n", workflow.Name, workflow.Version, workflow.ID)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&inactive, "inactive", false, "import without activating")
	return cmd
}

func listCmd() *cobra.Command {
	var activeOnly bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored workflows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.close(cmd.Context())

			workflows, err := rt.workflows.List(cmd.Context(), activeOnly)
			if err != nil {
				return err
			}
			for _, w := range workflows {
				state := "inactive"
				if w.Active {
					state = "active"
				}
				fmt.Printf("%s\t%s\tv%d\t%s\n", w.ID, w.Name, w.Version, state)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&activeOnly, "active", false, "only active workflows")
	return cmd
}

func executeCmd() *cobra.Command {
	var inputJSON, triggerNode string
	cmd := &cobra.Command{
		Use:   "execute <name|id>",
		Short: "Run a workflow and wait for the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.close(cmd.Context())

			var input map[string]interface{}
			if inputJSON != "" {
				if err := json.Unmarshal([]byte(inputJSON), &input); err != nil {
					return fmt.Errorf("--input must be a JSON object: %w", err)
				}
			}

			workflow, err := resolveWorkflow(cmd.Context(), rt.store, args[0])
			if err != nil {
				return err
			}

			execution, err := rt.engine.ExecuteByID(cmd.Context(), workflow.ID, &executor.RunRequest{
				Input:       input,
				TriggerNode: triggerNode,
				TriggeredBy: "cli",
			})
			if err != nil {
				return err
			}

			printExecution(execution)
			if execution.Status != models.ExecutionSuccess {
				return fmt.Errorf("execution %s: %s", execution.Status, execution.Error)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&inputJSON, "input", "", "run input as a JSON object")
	cmd.Flags().StringVar(&triggerNode, "trigger", "", "start from a specific trigger node")
	return cmd
}

func historyCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history <name|id>",
		Short: "Show recent executions of a workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.close(cmd.Context())

			workflow, err := resolveWorkflow(cmd.Context(), rt.store, args[0])
			if err != nil {
				return err
			}
			executions, err := rt.store.ListExecutions(cmd.Context(), workflow.ID, limit)
			if err != nil {
				return err
			}
			for _, e := range executions {
				finished := "-"
				if e.FinishedAt != nil {
					finished = e.FinishedAt.Format("2006-01-02 15:04:05")
				}
				fmt.Printf("%s\t%s\t%s\t%s\n", e.ID, e.Status, e.StartedAt.Format("2006-01-02 15:04:05"), finished)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum executions to show")
	return cmd
}

func showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <execution-id>",
		Short: "Show one execution with its node records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid execution id: %w", err)
			}

			rt, err := newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.close(cmd.Context())

			execution, err := rt.store.GetExecution(cmd.Context(), id)
			if err != nil {
				return err
			}
			nodeExecutions, err := rt.store.ListNodeExecutions(cmd.Context(), id)
			if err != nil {
				return err
			}

			printExecution(execution)
			for _, n := range nodeExecutions {
				line := fmt.Sprintf("  %s\t%s\tattempt %d", n.NodeID, n.Status, n.Attempt)
				if n.Error != "" {
					line += "\t" + n.Error
				}
				fmt.Println(line)
			}
			return nil
		},
	}
}

func nodeTypesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "node-types",
		Short: "List registered node types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := registry.New()
			nodes.RegisterBuiltins(reg, nodes.Options{})
			for _, t := range reg.Types() {
				fmt.Println(t)
			}
			return nil
		},
	}
}

func printExecution(execution *models.WorkflowExecution) {
	fmt.Printf("execution %s\tstatus %s\n", execution.ID, execution.Status)
	if len(execution.OutputData) > 0 {
		fmt.Printf("output: %s\n", execution.OutputData)
	}
	if execution.Error != "" {
		fmt.Printf("error: %s\n", execution.Error)
	}
}
