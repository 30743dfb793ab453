package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"noema.dev/ledgerkit/cidutil"
	"noema.dev/ledgerkit/storage"
	"noema.dev/ledgerkit/storage/bundle"
)

var errNoEvidenceStore = errors.New("no evidence store: set --evidence-dir or evidence.dir")

func newEvidenceCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evidence",
		Short: "Inspect, export and import archived evidence",
	}
	cmd.AddCommand(
		newEvidenceShowCommand(opts),
		newEvidenceExportCommand(opts),
		newEvidenceImportCommand(opts),
	)
	return cmd
}

func evidenceStore(cmd *cobra.Command, opts *rootOptions) (*env, bundle.Source, error) {
	e, err := opts.base(cmd)
	if err != nil {
		return nil, nil, err
	}
	src, ok := e.evidence.(bundle.Source)
	if !ok {
		e.Close()
		return nil, nil, errNoEvidenceStore
	}
	return e, src, nil
}

func newEvidenceShowCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <cid>",
		Short: "Print one evidence record",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return usagef("evidence show: want exactly one CID")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := cidutil.Parse(args[0])
			if err != nil {
				return usageError{err}
			}
			e, src, err := evidenceStore(cmd, opts)
			if err != nil {
				return err
			}
			defer e.Close()
			ev, err := storage.Load(src, id)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if opts.format == "json" {
				return writeJSON(w, ev)
			}
			fmt.Fprintf(w, "kind: %s\nsubject: %s\nreason: %s\n", ev.Kind, ev.Subject, ev.Reason)
			if ev.Record != "" {
				fmt.Fprintf(w, "record: %s\n", ev.Record)
			}
			if ev.Detail != "" {
				fmt.Fprintf(w, "detail: %s\n", ev.Detail)
			}
			if ev.Attempt != "" {
				fmt.Fprintf(w, "attempt: %s\n", ev.Attempt)
			}
			fmt.Fprintf(w, "recorded_at: %s\n", time.Unix(ev.RecordedAt, 0).UTC().Format(time.RFC3339))
			for _, l := range ev.Logs {
				fmt.Fprintf(w, "  %s\n", l)
			}
			return nil
		},
	}
}

func newEvidenceExportCommand(opts *rootOptions) *cobra.Command {
	var (
		out   string
		f     bundle.Filter
		since string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write matching evidence to a deterministic TAR bundle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" {
				return usagef("--out is required")
			}
			if since != "" {
				t, err := time.Parse(time.RFC3339, since)
				if err != nil {
					return usagef("--since: %v", err)
				}
				f.Since = t.Unix()
			}
			e, src, err := evidenceStore(cmd, opts)
			if err != nil {
				return err
			}
			defer e.Close()
			file, err := os.Create(out)
			if err != nil {
				return err
			}
			ids, err := bundle.ExportEvidence(file, src, f, bundle.ExportOptions{IncludeIndex: true})
			if cerr := file.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d record(s) to %s\n", len(ids), out)
			return nil
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&out, "out", "", "bundle path")
	fl.StringVar(&f.Kind, "kind", "", "only this kind ("+storage.KindRejection+" or "+storage.KindDecodeFailure+")")
	fl.StringVar(&f.Subject, "subject", "", "only this subject")
	fl.StringVar(&since, "since", "", "only records at or after this RFC 3339 time")
	return cmd
}

func newEvidenceImportCommand(opts *rootOptions) *cobra.Command {
	var ignoreUnknown bool
	cmd := &cobra.Command{
		Use:   "import <bundle>",
		Short: "Import an evidence bundle",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return usagef("evidence import: want exactly one bundle path")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			e, src, err := evidenceStore(cmd, opts)
			if err != nil {
				return err
			}
			defer e.Close()
			file, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer file.Close()
			ids, err := bundle.ImportWithOptions(file, src, bundle.ImportOptions{IgnoreUnknown: ignoreUnknown, EvidenceOnly: true})
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&ignoreUnknown, "ignore-unknown", false, "skip unknown bundle entries")
	return cmd
}
