package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/efebarandurmaz/importgraph/internal/snapshot"
)

func (a *app) snapshotsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "snapshots",
		Aliases: []string{"snap"},
		Short:   "Manage stored scans",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List stored scans, newest first",
			RunE: func(cmd *cobra.Command, args []string) error {
				store, err := a.openStore()
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tTAG\tCREATED\tLANGUAGE\tFILES\tRECORDS\tROOT")
				for _, s := range store.List() {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
						s.ID, s.Tag, s.CreatedAt.Format("2006-01-02 15:04"), s.Language, s.FileCount, s.RecordCount, s.Root)
				}
				return tw.Flush()
			},
		},
		&cobra.Command{
			Use:   "show <snapshot>",
			Short: "Show a stored scan",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				_, snap, err := a.resolveSnapshot(args[0])
				if err != nil {
					return err
				}
				fmt.Printf("ID:          %s\n", snap.ID)
				if snap.Tag != "" {
					fmt.Printf("Tag:         %s\n", snap.Tag)
				}
				fmt.Printf("Created:     %s\n", snap.CreatedAt.Format("2006-01-02 15:04:05"))
				fmt.Printf("Root:        %s\n", snap.Root)
				fmt.Printf("Language:    %s\n", snap.Language)
				fmt.Printf("Files:       %d\n", snap.FileCount)
				fmt.Printf("Records:     %d\n", snap.RecordCount)
				fmt.Printf("Identifiers: %d\n", snap.IdentifierCount)
				if snap.FailureCount > 0 {
					fmt.Printf("Skipped:     %d\n", snap.FailureCount)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "diff <old> <new>",
			Short: "Compare two stored scans",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				store, oldSnap, err := a.resolveSnapshot(args[0])
				if err != nil {
					return err
				}
				_, newSnap, err := a.resolveSnapshot(args[1])
				if err != nil {
					return err
				}
				d, err := snapshot.Diff(oldSnap, newSnap, store)
				if err != nil {
					return err
				}
				fmt.Print(snapshot.FormatDiff(d))
				return nil
			},
		},
		&cobra.Command{
			Use:   "tag <snapshot> <tag>",
			Short: "Tag a stored scan",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				store, snap, err := a.resolveSnapshot(args[0])
				if err != nil {
					return err
				}
				if err := store.Tag(snap.ID, args[1]); err != nil {
					return err
				}
				fmt.Printf("Tagged %s as %s\n", snap.ID, args[1])
				return nil
			},
		},
		&cobra.Command{
			Use:   "delete <snapshot>",
			Short: "Delete a stored scan",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				store, snap, err := a.resolveSnapshot(args[0])
				if err != nil {
					return err
				}
				if err := store.Delete(snap.ID); err != nil {
					return err
				}
				fmt.Printf("Deleted %s\n", snap.ID)
				return nil
			},
		},
	)
	return cmd
}

func (a *app) resolveSnapshot(ref string) (*snapshot.Store, *snapshot.Snapshot, error) {
	store, err := a.openStore()
	if err != nil {
		return nil, nil, err
	}
	id, err := store.Resolve(ref)
	if err != nil {
		return nil, nil, err
	}
	snap, err := store.Load(id)
	if err != nil {
		return nil, nil, err
	}
	return store, snap, nil
}
