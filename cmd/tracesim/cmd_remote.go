package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tracesim/pkg/client"
	"tracesim/pkg/model"
	"tracesim/pkg/tracer"
)

type remoteOptions struct {
	url      string
	token    string
	username string
	password string
	output   string
	retries  int
}

// connect returns a client holding a token, logging in when none was given.
func (o *remoteOptions) connect(cmd *cobra.Command) (*client.Client, error) {
	opts := client.DefaultOptions()
	if o.retries > 0 {
		opts.RetryMax = o.retries
	}
	c := client.New(o.url, opts)
	if o.token != "" {
		c.SetToken(o.token)
		return c, nil
	}
	if o.username == "" {
		return nil, errors.New("--token or --username is required")
	}
	tok, err := c.Login(cmd.Context(), o.username, o.password)
	if err != nil {
		return nil, err
	}
	c.SetToken(tok)
	return c, nil
}

func newRemoteCmd() *cobra.Command {
	opts := &remoteOptions{}
	cmd := &cobra.Command{
		Use:   "remote",
		Short: "Call a running tracesim server",
	}
	cmd.PersistentFlags().StringVar(&opts.url, "url", "http://localhost:8000", "server base URL")
	cmd.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("TRACESIM_TOKEN"), "bearer token")
	cmd.PersistentFlags().StringVarP(&opts.username, "username", "u", "", "log in as this user")
	cmd.PersistentFlags().StringVarP(&opts.password, "password", "p", "", "password for --username")
	cmd.PersistentFlags().StringVarP(&opts.output, "output", "o", "table", "output format: table, json, yaml, dot")
	cmd.PersistentFlags().IntVar(&opts.retries, "retries", 0, "retries for simulated failures")

	var p tracer.PathParams
	route := &cobra.Command{
		Use:   "route",
		Short: "Request a network-layer trace",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.connect(cmd)
			if err != nil {
				return err
			}
			hops, err := c.RouteTrace(cmd.Context(), p)
			if err != nil {
				return err
			}
			return emit(cmd.OutOrStdout(), opts.output, "route", hops)
		},
	}
	bindPathFlags(route, &p)

	var ip, dg string
	mac := &cobra.Command{
		Use:   "mac",
		Short: "Request a link-layer trace",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.connect(cmd)
			if err != nil {
				return err
			}
			hops, err := c.MACTrace(cmd.Context(), ip, dg)
			if err != nil {
				return err
			}
			return emit(cmd.OutOrStdout(), opts.output, "mac", hops)
		},
	}
	mac.Flags().StringVar(&ip, "ip", "", "endpoint address")
	mac.Flags().StringVar(&dg, "dg", "", "endpoint gateway")

	var filter string
	var all bool
	history := &cobra.Command{
		Use:   "history",
		Short: "List recorded traces",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.connect(cmd)
			if err != nil {
				return err
			}
			list := c.UserRoutes
			if all {
				list = c.AllRoutes
			}
			entries, err := list(cmd.Context(), filter)
			if err != nil {
				return err
			}
			for _, e := range entries {
				fmt.Fprintf(cmd.OutOrStdout(), "%-5d %-8s %-16s %-16s %-12s %s\n", e.ID, e.TraceType, e.Source, e.Destination, e.Owner.Username, e.Timestamp.Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}
	history.Flags().StringVar(&filter, "filter", "", `filter expression, e.g. trace_type == "mac"`)
	history.Flags().BoolVar(&all, "all", false, "list every user's traces")

	var kind string
	stream := &cobra.Command{
		Use:   "stream",
		Short: "Stream a trace hop by hop over a websocket",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.connect(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			hops, err := c.StreamTrace(cmd.Context(), client.StreamRequest{Kind: kind, Path: p, IP: ip, DG: dg}, func(h model.Hop) {
				fmt.Fprintf(out, "%-4d %-16s %s\n", h.Sequence, h.Address, h.Role)
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%d hops\n", len(hops))
			return nil
		},
	}
	stream.Flags().StringVar(&kind, "kind", "route", "route or mac")
	bindPathFlags(stream, &p)
	stream.Flags().StringVar(&ip, "ip", "", "endpoint address (mac)")
	stream.Flags().StringVar(&dg, "dg", "", "endpoint gateway (mac)")

	cmd.AddCommand(route, mac, history, stream)
	return cmd
}
