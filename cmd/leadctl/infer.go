package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ashureev/leadintel/internal/inference"
)

var inferTask string

func newInferCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "infer [text...]",
		Short: "Run one inference task over the given text",
		Long: `Runs one inference task and prints the formatted result. Without
arguments the input is read from standard input.

Example:
  leadctl infer --task summarization "Acme Corp wants 200 seats by Q3..."
  cat notes.txt | leadctl infer --task question-answering`,
		RunE: runInfer,
	}
	cmd.Flags().StringVarP(&inferTask, "task", "t", string(inference.DefaultTask), "Task id (see 'leadctl tasks')")
	return cmd
}

func runInfer(cmd *cobra.Command, args []string) error {
	input := strings.Join(args, " ")
	if len(args) == 0 {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}
		input = string(data)
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	orch := inference.New(a.inference, a.creds, a.logger)
	snap, err := orch.Submit(cmd.Context(), inference.TaskID(inferTask), input)
	if err != nil && snap.Display == "" {
		return err
	}

	out := cmd.OutOrStdout()
	if err != nil {
		fmt.Fprintln(out, color.RedString("%s", snap.Display))
		return err
	}
	fmt.Fprintln(out, snap.Display)
	return nil
}

func newTasksCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tasks",
		Short: "List the inference task catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tMODEL")
			for _, t := range inference.Tasks() {
				id := string(t.ID)
				if t.ID == inference.DefaultTask {
					id += "*"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", id, t.Name, t.Model)
			}
			return w.Flush()
		},
	}
}
