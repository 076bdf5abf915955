package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"codexbridge/internal/appserver"
	"codexbridge/internal/store"
)

var errApprovalLogDisabled = errors.New("approval log is disabled: set [store] approvals_db or pass --db")

type ApprovalsCommand struct {
	wiring commandWiring
	now    func() time.Time
}

func NewApprovalsCommand(wiring commandWiring) *ApprovalsCommand {
	return &ApprovalsCommand{wiring: wiring, now: time.Now}
}

func (c *ApprovalsCommand) Run(args []string) error {
	return runCommand(c.Command(), c.wiring, args)
}

func (c *ApprovalsCommand) Command() *cobra.Command {
	var settings settingsFlags
	var dbPath, threadID, method string
	var limit int
	var pruneOlder time.Duration
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "approvals",
		Short: "List approval requests answered during generations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := settings.load()
			if err != nil {
				return err
			}
			path := strings.TrimSpace(dbPath)
			if path == "" {
				path, err = cfg.ApprovalsDBPath()
				if err != nil {
					return err
				}
			}
			if path == "" {
				return errApprovalLogDisabled
			}
			approvalLog, err := store.NewBoltApprovalLog(path, newLogger(c.wiring.stderr, cfg))
			if err != nil {
				return err
			}
			defer approvalLog.Close()

			ctx := cmd.Context()
			if pruneOlder > 0 {
				removed, err := approvalLog.Prune(ctx, c.now().Add(-pruneOlder))
				if err != nil {
					return err
				}
				fmt.Fprintf(c.wiring.stdout, "pruned %d approval(s)\n", removed)
				return nil
			}
			records, err := approvalLog.List(ctx, store.ApprovalQuery{
				ThreadID: threadID,
				Method:   method,
				Limit:    limit,
			})
			if err != nil {
				return err
			}
			if asJSON {
				return writeApprovalsJSON(c.wiring.stdout, records)
			}
			printApprovals(c.wiring.stdout, records)
			return nil
		},
	}
	settings.register(cmd)
	cmd.Flags().StringVar(&dbPath, "db", "", "approval log file (overrides [store] approvals_db)")
	cmd.Flags().StringVar(&threadID, "thread", "", "only approvals of this thread")
	cmd.Flags().StringVar(&method, "method", "", "only approvals of this request method")
	cmd.Flags().IntVar(&limit, "limit", 50, "newest entries to show (0 for all)")
	cmd.Flags().DurationVar(&pruneOlder, "prune-older-than", 0, "delete entries older than this age instead of listing")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print one JSON object per line")
	return cmd
}

func printApprovals(output io.Writer, records []appserver.ApprovalRecord) {
	writer := tabwriter.NewWriter(output, 0, 8, 2, ' ', 0)
	fmt.Fprintln(writer, "ANSWERED\tMETHOD\tTHREAD\tTURN\tDECISION")
	for _, record := range records {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\n",
			record.AnsweredAt.Local().Format(time.DateTime),
			record.Method,
			dashIfEmpty(record.ThreadID),
			dashIfEmpty(record.TurnID),
			dashIfEmpty(decisionLabel(record.Decision)),
		)
	}
	_ = writer.Flush()
}

func writeApprovalsJSON(out io.Writer, records []appserver.ApprovalRecord) error {
	encoder := json.NewEncoder(out)
	for _, record := range records {
		if err := encoder.Encode(record); err != nil {
			return err
		}
	}
	return nil
}

func decisionLabel(raw json.RawMessage) string {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}
	return strings.TrimSpace(string(raw))
}

func dashIfEmpty(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}
