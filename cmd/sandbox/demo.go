package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sakif/build-sandbox/internal/model"
)

const demoSource = `package com.sandbox.components;

/**
 * Sample component.
 */
public class TestComponent {
    public static void main(String[] args) {
        System.out.println("Hello from TestComponent!");
        System.out.println("Testing business logic...");

        processData();

        System.out.println("TestComponent executed successfully!");
    }

    public static void processData() {
        System.out.println("Processing data...");
        for (int i = 0; i < 5; i++) {
            System.out.println("Processing item: " + (i + 1));
        }
        System.out.println("Data processing completed.");
    }
}
`

var demoWorkdir string

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run the built-in TestComponent through the pipeline",
	Long: `Demo runs a sample TestComponent class through every stage and, on
success, writes jenkins-job.xml for job TestComponent-Job next to the
packaged jar.`,
	RunE: runDemo,
}

func init() {
	demoCmd.Flags().StringVar(&demoWorkdir, "workdir", "", "Workspace directory (default workspace.demo_dir, /tmp/java-sandbox-test)")
	rootCmd.AddCommand(demoCmd)
}

func runDemo(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	workdir := demoWorkdir
	if workdir == "" {
		workdir = cfg.Workspace.DemoDir
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "=== Java build sandbox demo ===")

	unit := model.SourceUnit{Name: "TestComponent", Package: "com.sandbox.components", Text: demoSource}
	err = runOnce(cmd, cfg, logger, unit, workdir, "text")

	if err == nil {
		fmt.Fprintln(out, "\n=== Pipeline succeeded: the job descriptor is ready for a `java -jar` build step ===")
	} else if errors.Is(err, errPipelineFailed) {
		fmt.Fprintln(out, "\n=== Pipeline failed ===")
	}
	return err
}
