package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"tracesim/pkg/config"
	"tracesim/pkg/model"
	"tracesim/pkg/store"
	"tracesim/pkg/topology"
	"tracesim/pkg/tracer"
)

type localOptions struct {
	output  string
	seed    uint64
	failure float64
	latency bool
}

func (o *localOptions) bind(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVarP(&o.output, "output", "o", "table", "output format: table, json, yaml, dot")
	cmd.PersistentFlags().Uint64Var(&o.seed, "seed", 0, "seed the generator for a reproducible path (0 = random)")
	cmd.PersistentFlags().Float64Var(&o.failure, "failure-rate", 0, "probability of a simulated backend failure")
	cmd.PersistentFlags().BoolVar(&o.latency, "latency", false, "apply the simulated latency")
}

func (o *localOptions) service() *tracer.Service {
	tables := topology.DefaultTables()
	tables.Failure = o.failure
	opts := []tracer.Option{tracer.WithDelays(tracer.DelaysFrom(config.Default().Trace))}
	if !o.latency {
		opts = append(opts, tracer.WithSleeper(func(time.Duration) {}))
	}
	if o.seed != 0 {
		seed := o.seed
		opts = append(opts, tracer.WithSourceFactory(func() topology.Source { return topology.Seeded(seed) }))
	}
	return tracer.New(topology.NewGenerator(tables), store.NewLedger(store.DefaultCapacity), opts...)
}

var cliIdentity = model.NewIdentity("cli", false)

func newTraceCmd() *cobra.Command {
	opts := &localOptions{}
	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Synthesize a trace locally without a server",
	}
	opts.bind(cmd)

	var p tracer.PathParams
	route := &cobra.Command{
		Use:   "route",
		Short: "Synthesize a network-layer path",
		RunE: func(cmd *cobra.Command, args []string) error {
			hops, err := opts.service().TracePath(context.Background(), p, cliIdentity)
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
		Short: "Synthesize a link-layer path",
		RunE: func(cmd *cobra.Command, args []string) error {
			hops, err := opts.service().TraceLinkLayer(context.Background(), ip, dg, cliIdentity)
			if err != nil {
				return err
			}
			return emit(cmd.OutOrStdout(), opts.output, "mac", hops)
		},
	}
	mac.Flags().StringVar(&ip, "ip", "", "endpoint address")
	mac.Flags().StringVar(&dg, "dg", "", "endpoint gateway")

	gateway := &cobra.Command{
		Use:   "gateway ADDRESS",
		Short: "Guess the default gateway for an address",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), opts.service().ResolveGateway(args[0]))
		},
	}

	cmd.AddCommand(route, mac, gateway)
	return cmd
}

func bindPathFlags(cmd *cobra.Command, p *tracer.PathParams) {
	cmd.Flags().StringVar(&p.SourceIP, "source-ip", "", "source address")
	cmd.Flags().StringVar(&p.DestinationIP, "destination-ip", "", "destination address")
	cmd.Flags().StringVar(&p.SourceDG, "source-dg", "", "source gateway")
	cmd.Flags().StringVar(&p.DestinationDG, "destination-dg", "", "destination gateway")
	cmd.Flags().StringVar(&p.VRF, "vrf", "", "VRF for a direct trace")
}
