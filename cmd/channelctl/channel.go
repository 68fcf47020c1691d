package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"subgate-bot/internal/channels"
)

func newChannelCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "channel",
		Short: "Manage required channels",
	}
	cmd.AddCommand(
		newChannelCreateCmd(a),
		newChannelGetCmd(a),
		newChannelListCmd(a),
		newChannelUpdateCmd(a),
		newChannelDeleteCmd(a),
		newChannelActiveCmd(a),
		newChannelLapsedCmd(a),
	)
	return cmd
}

// expiryFlags resolves --expires-at and --for into one expiry time
type expiryFlags struct {
	expiresAt string
	duration  time.Duration
}

func (f *expiryFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.expiresAt, "expires-at", "", "expiry time (RFC 3339)")
	cmd.Flags().DurationVar(&f.duration, "for", 0, "expire after this long, e.g. 720h")
	cmd.MarkFlagsMutuallyExclusive("expires-at", "for")
}

func (f *expiryFlags) resolve(cmd *cobra.Command, now time.Time) (*time.Time, error) {
	switch {
	case cmd.Flags().Changed("expires-at"):
		t, err := time.Parse(time.RFC3339, f.expiresAt)
		if err != nil {
			return nil, fmt.Errorf("invalid --expires-at: %w", err)
		}
		return &t, nil
	case cmd.Flags().Changed("for"):
		t := now.Add(f.duration)
		return &t, nil
	default:
		return nil, nil
	}
}

func newChannelCreateCmd(a *app) *cobra.Command {
	var (
		name, link string
		channelID  int64
		inactive   bool
		expiry     expiryFlags
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Require users to join a channel",
		Long: "Require users to join a channel.\n\n" +
			"--channel-id takes the channel id without its minus sign; it is negated before storage.\n" +
			"Without --expires-at or --for the requirement expires immediately.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			expiresAt, err := expiry.resolve(cmd, time.Now())
			if err != nil {
				return err
			}
			active := !inactive
			r, err := a.channels.Create(cmd.Context(), channels.CreateInput{
				Name:      name,
				Link:      link,
				ChannelID: channelID,
				IsActive:  &active,
				ExpiresAt: expiresAt,
			})
			if err != nil {
				return err
			}
			return a.printRequirement(cmd, r)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&link, "link", "", "join link shown to users")
	cmd.Flags().Int64Var(&channelID, "channel-id", 0, "Telegram channel id")
	cmd.Flags().BoolVar(&inactive, "inactive", false, "create the requirement switched off")
	expiry.register(cmd)
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("link")
	_ = cmd.MarkFlagRequired("channel-id")
	return cmd
}

func newChannelGetCmd(a *app) *cobra.Command {
	var byChatID bool
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show a requirement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			var r *channels.Requirement
			if byChatID {
				r, err = a.channels.GetByExternalID(cmd.Context(), id)
			} else {
				r, err = a.channels.Get(cmd.Context(), id)
			}
			if err != nil {
				return err
			}
			return a.printRequirement(cmd, r)
		},
	}
	cmd.Flags().BoolVar(&byChatID, "chat-id", false, "look up by stored chat id instead of row id")
	return cmd
}

func newChannelListCmd(a *app) *cobra.Command {
	var params channels.ListParams
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List requirements",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reqs, err := a.channels.List(cmd.Context(), params)
			if err != nil {
				return err
			}
			return a.printRequirements(cmd, reqs)
		},
	}
	cmd.Flags().IntVar(&params.Offset, "offset", 0, "rows to skip")
	cmd.Flags().IntVar(&params.Limit, "limit", 100, "maximum rows")
	cmd.Flags().StringVar(&params.Search, "search", "", "case-insensitive name search")
	cmd.Flags().StringVar(&params.Sort, "sort", "id", "sort column, prefix with - for descending")
	cmd.Flags().StringVar(&params.Filter, "filter", "", "is_active or -is_active")
	return cmd
}

func newChannelUpdateCmd(a *app) *cobra.Command {
	var (
		name, link string
		channelID  int64
		active     bool
		expiry     expiryFlags
	)
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change a requirement; only the given flags are applied",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			var in channels.UpdateInput
			flags := cmd.Flags()
			if flags.Changed("name") {
				in.Name = &name
			}
			if flags.Changed("link") {
				in.Link = &link
			}
			if flags.Changed("channel-id") {
				in.ChannelID = &channelID
			}
			if flags.Changed("active") {
				in.IsActive = &active
			}
			if in.ExpiresAt, err = expiry.resolve(cmd, time.Now()); err != nil {
				return err
			}

			r, err := a.channels.Update(cmd.Context(), id, in)
			if err != nil {
				return err
			}
			return a.printRequirement(cmd, r)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&link, "link", "", "join link shown to users")
	cmd.Flags().Int64Var(&channelID, "channel-id", 0, "Telegram channel id, negated before storage")
	cmd.Flags().BoolVar(&active, "active", true, "whether the requirement is enforced")
	expiry.register(cmd)
	return cmd
}

func newChannelDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>...",
		Short: "Delete one or more requirements",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, arg := range args {
				id, err := parseID(arg)
				if err != nil {
					return err
				}
				if err := a.channels.Delete(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d\n", id)
			}
			return nil
		},
	}
}

func newChannelActiveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "active",
		Short: "List requirements users must satisfy right now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reqs, err := a.channels.ActiveRequirements(cmd.Context(), time.Now())
			if err != nil {
				return err
			}
			return a.printRequirements(cmd, reqs)
		},
	}
}

func newChannelLapsedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "lapsed",
		Short: "List active requirements whose expiry has passed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reqs, err := a.channels.LapsedRequirements(cmd.Context(), time.Now())
			if err != nil {
				return err
			}
			return a.printRequirements(cmd, reqs)
		},
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}
