package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sakif/build-sandbox/internal/model"
)

// report is what run and demo print.
type report struct {
	Workspace     string                 `json:"workspace"               yaml:"workspace"`
	Outcome       *model.PipelineOutcome `json:"outcome"                 yaml:"outcome"`
	JobDescriptor string                 `json:"jobDescriptor,omitempty" yaml:"jobDescriptor,omitempty"`
}

func writeReport(w io.Writer, format string, r report) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	case "text", "":
		return writeText(w, r)
	default:
		return fmt.Errorf("unknown output format %q (want text, json or yaml)", format)
	}
}

func writeText(w io.Writer, r report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STAGE\tSTATUS\tEXIT\tDURATION")
	for _, res := range r.Outcome.Results {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", res.Stage, res.Status, res.ExitCode, res.Duration.Round(time.Millisecond))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\nworkspace: %s\n", r.Workspace)
	if r.Outcome.Success {
		fmt.Fprintf(w, "artifact:  %s\n", r.Outcome.Artifact())
		if r.JobDescriptor != "" {
			fmt.Fprintf(w, "job:       %s\n", r.JobDescriptor)
		}
		last := r.Outcome.Results[len(r.Outcome.Results)-1]
		if out := strings.TrimSpace(last.Diagnostic); out != "" {
			fmt.Fprintf(w, "\n%s\n", out)
		}
		return nil
	}

	if failed := r.Outcome.Failed(); failed != nil {
		fmt.Fprintf(w, "failed at: %s (%s)\n\n%s\n", failed.Stage, failed.Status, strings.TrimSpace(failed.Diagnostic))
	}
	return nil
}
