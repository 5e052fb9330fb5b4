package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/sakif/build-sandbox/internal/apperror"
	"github.com/sakif/build-sandbox/internal/model"
	"github.com/sakif/build-sandbox/internal/service"
)

// maxToolOutput caps the text returned to the model.
const maxToolOutput = 4000

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the pipeline as an MCP tool over stdio",
	Long: `Mcp exposes the tool java_pipeline_run to MCP clients on stdin/stdout.
Runs are recorded in the same history as the HTTP API.`,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	svc, cleanup, err := newRunService(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	s := server.NewMCPServer("build-sandbox", "0.1.0")
	s.AddTool(mcp.Tool{
		Name: "java_pipeline_run",
		Description: "Compile and run one Java class, package it with Maven and run the packaged jar. " +
			"Stops at the first failing stage and returns its diagnostic.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"name": map[string]any{
					"type":        "string",
					"description": "Simple class name, e.g. TestComponent",
				},
				"code": map[string]any{
					"type":        "string",
					"description": "Full Java source of the class, including its package declaration",
				},
				"package": map[string]any{
					"type":        "string",
					"description": "Package of the class (optional, defaults to com.sandbox.components)",
				},
			},
			Required: []string{"name", "code"},
		},
	}, pipelineTool(svc))

	return server.ServeStdio(s)
}

func pipelineTool(svc *service.RunService) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, _ := request.Params.Arguments.(map[string]any)
		if args == nil {
			return errResult("error: invalid arguments"), nil
		}

		name, _ := args["name"].(string)
		code, _ := args["code"].(string)
		pkg, _ := args["package"].(string)

		run, err := svc.Submit(ctx, service.SubmitRequest{Name: name, Package: pkg, Code: code, SubmittedBy: "mcp"}, nil)
		if err != nil {
			var appErr *apperror.AppError
			if errors.As(err, &appErr) {
				return errResult("error: " + appErr.Message), nil
			}
			return errResult(fmt.Sprintf("error: %v", err)), nil
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{mcp.TextContent{Type: "text", Text: summarize(run)}},
			IsError: !run.Success,
		}, nil
	}
}

// summarize renders a run as the tool's text answer.
func summarize(run *model.Run) string {
	var b strings.Builder
	fmt.Fprintf(&b, "run %s\n", run.ID)
	for _, r := range run.Outcome.Results {
		fmt.Fprintf(&b, "%s: %s\n", r.Stage, r.Status)
	}

	if run.Success {
		fmt.Fprintf(&b, "artifact: %s\n", run.Outcome.Artifact())
		last := run.Outcome.Results[len(run.Outcome.Results)-1]
		if out := strings.TrimSpace(last.Diagnostic); out != "" {
			b.WriteString("\noutput:\n" + out + "\n")
		}
	} else if failed := run.Outcome.Failed(); failed != nil {
		b.WriteString("\n" + strings.TrimSpace(failed.Diagnostic) + "\n")
	}

	text := b.String()
	if len(text) > maxToolOutput {
		cut := maxToolOutput
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut] + "\n... (output truncated)"
	}
	return text
}

func errResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: text}},
		IsError: true,
	}
}
