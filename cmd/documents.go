package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/theapemachine/docprovider/pkg/client"
	"github.com/theapemachine/docprovider/pkg/documents"
	"github.com/theapemachine/docprovider/pkg/notify"
)

var (
	jsonFlag   bool
	orderFlag  string
	limitFlag  int
	appendFlag bool
	typeFlag   string
	yesFlag    bool

	headerCell = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	bodyCell   = lipgloss.NewStyle().Padding(0, 1)
)

/*
withNamespace opens the namespace for the duration of fn and closes it
afterwards, so the index is persisted after local changes.
*/
func withNamespace(cmd *cobra.Command, fn func(ctx context.Context, ns namespace) error) error {
	ctx := cmd.Context()

	ns, err := openNamespace(ctx)
	if err != nil {
		return err
	}

	runErr := fn(ctx, ns)

	if err := ns.Close(ctx); err != nil {
		log.Warn("failed to close namespace", "error", err)
	}

	return runErr
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printDocuments(w io.Writer, docs []documents.Document) error {
	if jsonFlag {
		return printJSON(w, docs)
	}

	t := table.New().
		Border(lipgloss.HiddenBorder()).
		Headers("NAME", "SIZE", "MODIFIED", "TYPE", "ID").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerCell
			}
			return bodyCell
		})

	for _, doc := range docs {
		name, size := doc.DisplayName, humanize.IBytes(uint64(max(doc.Size, 0)))
		if doc.IsDir() {
			name, size = name+"/", "-"
		}

		t.Row(name, size, humanize.Time(doc.LastModified), doc.MimeType, doc.ID)
	}

	_, err := fmt.Fprintln(w, t.Render())
	return err
}

func printRoots(w io.Writer, roots []documents.Root) error {
	if jsonFlag {
		return printJSON(w, roots)
	}

	t := table.New().
		Border(lipgloss.HiddenBorder()).
		Headers("ROOT", "TITLE", "FREE", "FLAGS", "DOCUMENT").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerCell
			}
			return bodyCell
		})

	for _, root := range roots {
		flags, _ := json.Marshal(root.Flags)
		t.Row(root.ID, root.Title, humanize.IBytes(uint64(max(root.AvailableBytes, 0))), string(flags), root.DocumentID)
	}

	_, err := fmt.Fprintln(w, t.Render())
	return err
}

var (
	rootsCmd = &cobra.Command{
		Use:   "roots",
		Short: "List the document roots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withNamespace(cmd, func(ctx context.Context, ns namespace) error {
				roots, err := ns.Roots(ctx)
				if err != nil {
					return err
				}
				return printRoots(cmd.OutOrStdout(), roots)
			})
		},
	}

	lsCmd = &cobra.Command{
		Use:   "ls [REF]",
		Short: "List the children of a directory, or the roots without an argument",
		Long:  longRef,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withNamespace(cmd, func(ctx context.Context, ns namespace) error {
				if len(args) == 0 {
					roots, err := ns.Roots(ctx)
					if err != nil {
						return err
					}
					return printRoots(cmd.OutOrStdout(), roots)
				}

				dir, err := resolveArg(ctx, ns, args[0])
				if err != nil {
					return err
				}

				docs, err := ns.Children(ctx, dir.ID, orderFlag)
				if err != nil {
					return err
				}

				return printDocuments(cmd.OutOrStdout(), docs)
			})
		},
	}

	statCmd = &cobra.Command{
		Use:   "stat REF",
		Short: "Show a document's metadata",
		Long:  longRef,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withNamespace(cmd, func(ctx context.Context, ns namespace) error {
				doc, err := resolveArg(ctx, ns, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), doc)
			})
		},
	}

	catCmd = &cobra.Command{
		Use:   "cat REF",
		Short: "Write a document's content to stdout",
		Long:  longRef,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withNamespace(cmd, func(ctx context.Context, ns namespace) error {
				doc, err := resolveArg(ctx, ns, args[0])
				if err != nil {
					return err
				}
				_, err = ns.Read(ctx, doc.ID, cmd.OutOrStdout())
				return err
			})
		},
	}

	putCmd = &cobra.Command{
		Use:   "put REF [FILE]",
		Short: "Replace (or with --append extend) a document with FILE or stdin",
		Long:  longRef,
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var src io.Reader = cmd.InOrStdin()

			if len(args) == 2 {
				f, err := os.Open(args[1])
				if err != nil {
					return err
				}
				defer f.Close()
				src = f
			}

			return withNamespace(cmd, func(ctx context.Context, ns namespace) error {
				doc, err := resolveArg(ctx, ns, args[0])
				if err != nil {
					return err
				}

				doc, err = ns.Write(ctx, doc.ID, src, appendFlag)
				if err != nil {
					return err
				}

				log.Info("wrote document", "name", doc.DisplayName, "size", humanize.IBytes(uint64(doc.Size)))
				return nil
			})
		},
	}

	mkdirCmd = &cobra.Command{
		Use:   "mkdir PARENT NAME | mkdir ROOT:PATH/NAME",
		Short: "Create a directory",
		Long:  longRef,
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return create(cmd, args, documents.MimeTypeDir)
		},
	}

	touchCmd = &cobra.Command{
		Use:   "touch PARENT NAME | touch ROOT:PATH/NAME",
		Short: "Create an empty file",
		Long:  longRef,
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return create(cmd, args, typeFlag)
		},
	}

	rmCmd = &cobra.Command{
		Use:   "rm REF",
		Short: "Delete a document, recursively for directories",
		Long:  longRef,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withNamespace(cmd, func(ctx context.Context, ns namespace) error {
				doc, err := resolveArg(ctx, ns, args[0])
				if err != nil {
					return err
				}

				if !yesFlag {
					confirmed := false
					prompt := huh.NewConfirm().
						Title(fmt.Sprintf("Delete %s?", doc.DisplayName)).
						Description(doc.MimeType + " · " + doc.ID).
						Affirmative("Delete").
						Negative("Keep").
						Value(&confirmed)

					if err := prompt.Run(); err != nil {
						return err
					}

					if !confirmed {
						return nil
					}
				}

				if err := ns.Delete(ctx, doc.ID); err != nil {
					return err
				}

				log.Info("deleted", "name", doc.DisplayName)
				return nil
			})
		},
	}

	searchCmd = &cobra.Command{
		Use:   "search ROOT QUERY",
		Short: "Find documents in ROOT whose name contains QUERY",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withNamespace(cmd, func(ctx context.Context, ns namespace) error {
				docs, err := ns.Search(ctx, args[0], args[1], limitFlag)
				if err != nil {
					return err
				}
				return printDocuments(cmd.OutOrStdout(), docs)
			})
		},
	}

	recentCmd = &cobra.Command{
		Use:   "recent ROOT",
		Short: "List the most recently modified files in ROOT",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withNamespace(cmd, func(ctx context.Context, ns namespace) error {
				docs, err := ns.Recent(ctx, args[0], limitFlag)
				if err != nil {
					return err
				}
				return printDocuments(cmd.OutOrStdout(), docs)
			})
		},
	}

	isChildCmd = &cobra.Command{
		Use:   "is-child PARENT CHILD",
		Short: "Exit 0 when CHILD lives below PARENT, 1 otherwise",
		Long:  longRef,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withNamespace(cmd, func(ctx context.Context, ns namespace) error {
				parent, err := resolveArg(ctx, ns, args[0])
				if err != nil {
					return err
				}

				child, err := resolveArg(ctx, ns, args[1])
				if err != nil {
					return err
				}

				ok, err := ns.IsChild(ctx, parent.ID, child.ID)
				if err != nil {
					return err
				}

				fmt.Fprintln(cmd.OutOrStdout(), strconv.FormatBool(ok))
				if !ok {
					return errNotChild
				}
				return nil
			})
		},
	}

	watchCmd = &cobra.Command{
		Use:   "watch [DOCUMENT_ID]",
		Short: "Print changes from a remote server as they happen",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if remoteFlag == "" {
				return fmt.Errorf("watch needs --remote")
			}

			parent := ""
			if len(args) == 1 {
				parent = args[0]
			}

			c := client.NewDocumentClient(remoteFlag, remoteToken())
			out := cmd.OutOrStdout()

			return c.Watch(cmd.Context(), parent, func(change notify.Change) {
				if jsonFlag {
					_ = json.NewEncoder(out).Encode(change)
					return
				}
				fmt.Fprintf(out, "%s %-8s %s (parent %s)\n", change.At.Format(time.TimeOnly), change.Kind, change.DocumentID, change.ParentID)
			})
		},
	}
)

var errNotChild = fmt.Errorf("not a child")

func create(cmd *cobra.Command, args []string, mimeType string) error {
	parentRef, name := "", ""

	if len(args) == 2 {
		parentRef, name = args[0], args[1]
	} else {
		var err error
		if parentRef, name, err = splitParent(args[0]); err != nil {
			return err
		}
	}

	if mimeType == "" {
		mimeType = documents.MimeTypeFor(name, false)
	}

	return withNamespace(cmd, func(ctx context.Context, ns namespace) error {
		parent, err := resolveArg(ctx, ns, parentRef)
		if err != nil {
			return err
		}

		doc, err := ns.Create(ctx, parent.ID, mimeType, name)
		if err != nil {
			return err
		}

		if jsonFlag {
			return printJSON(cmd.OutOrStdout(), doc)
		}

		fmt.Fprintln(cmd.OutOrStdout(), doc.ID)
		return nil
	})
}

func init() {
	for _, c := range []*cobra.Command{
		rootsCmd, lsCmd, statCmd, catCmd, putCmd, mkdirCmd, touchCmd, rmCmd, searchCmd, recentCmd, isChildCmd, watchCmd,
	} {
		c.Flags().StringVar(&remoteFlag, "remote", "", "base URL of a docprovider server, instead of the local roots")
		c.Flags().StringVar(&tokenFlag, "token", "", "bearer token for --remote (default $DOCPROVIDER_TOKEN)")
		c.Flags().BoolVar(&jsonFlag, "json", false, "print JSON")
		rootCmd.AddCommand(c)
	}

	lsCmd.Flags().StringVar(&orderFlag, "order", "", "name, modified or size, prefix - for descending")
	putCmd.Flags().BoolVarP(&appendFlag, "append", "a", false, "append instead of replacing")
	touchCmd.Flags().StringVarP(&typeFlag, "type", "t", "", "MIME type (default from the extension)")
	rmCmd.Flags().BoolVarP(&yesFlag, "yes", "y", false, "do not ask for confirmation")
	searchCmd.Flags().IntVarP(&limitFlag, "limit", "n", 0, "maximum results")
	recentCmd.Flags().IntVarP(&limitFlag, "limit", "n", 0, "maximum results")
}

var longRef = `
REF is either an opaque document ID, or ROOT:PATH where PATH is walked by
display name from the root, for example "home:Documents/notes.txt". "home:"
alone is the root directory.
`
