package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"subgate-bot/internal/channels"
	"subgate-bot/internal/users"
)

const timeLayout = "2006-01-02 15:04:05"

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func (a *app) printRequirement(cmd *cobra.Command, r *channels.Requirement) error {
	w := cmd.OutOrStdout()
	if a.jsonOutput {
		return printJSON(w, r)
	}
	fmt.Fprintf(w, "ID:          %d\n", r.ID)
	fmt.Fprintf(w, "Name:        %s\n", r.Name)
	fmt.Fprintf(w, "Link:        %s\n", r.Link)
	fmt.Fprintf(w, "Chat ID:     %d\n", r.ExternalID)
	fmt.Fprintf(w, "Active:      %t\n", r.IsActive)
	fmt.Fprintf(w, "Expires At:  %s\n", r.ExpiresAt.Format(timeLayout))
	fmt.Fprintf(w, "Created At:  %s\n", r.CreatedAt.Format(timeLayout))
	fmt.Fprintf(w, "Updated At:  %s\n", r.UpdatedAt.Format(timeLayout))
	return nil
}

func (a *app) printRequirements(cmd *cobra.Command, reqs []channels.Requirement) error {
	out := cmd.OutOrStdout()
	if a.jsonOutput {
		if reqs == nil {
			reqs = []channels.Requirement{}
		}
		return printJSON(out, reqs)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCHAT ID\tACTIVE\tEXPIRES AT\tNAME\tLINK")
	for _, r := range reqs {
		name := r.Name
		if len(name) > 40 {
			name = name[:37] + "..."
		}
		fmt.Fprintf(w, "%d\t%d\t%t\t%s\t%s\t%s\n",
			r.ID,
			r.ExternalID,
			r.IsActive,
			r.ExpiresAt.Format(timeLayout),
			name,
			r.Link,
		)
	}
	w.Flush()
	fmt.Fprintf(out, "\n%d channels\n", len(reqs))
	return nil
}

func (a *app) printUsers(cmd *cobra.Command, list []users.User) error {
	out := cmd.OutOrStdout()
	if a.jsonOutput {
		if list == nil {
			list = []users.User{}
		}
		return printJSON(out, list)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TELEGRAM ID\tNAME\tPHONE\tSINCE")
	for _, u := range list {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n",
			u.TelegramID,
			u.FirstName,
			u.PhoneNumber,
			u.CreatedAt.Format(timeLayout),
		)
	}
	w.Flush()
	fmt.Fprintf(out, "\n%d admins\n", len(list))
	return nil
}
