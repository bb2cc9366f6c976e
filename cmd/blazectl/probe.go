package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/danmuck/blazectl/internal/client"
	"github.com/danmuck/blazectl/internal/components"
	"github.com/danmuck/blazectl/internal/protocol/tdf"
)

type probeOptions struct {
	configPath string
	addr       string
	sdk        string
	clientName string
	cfid       string
	timeout    time.Duration
}

func probeCmd() *cobra.Command {
	opts := probeOptions{}
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Ask a running server for its instance and ping it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts.configPath)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()
			return runProbe(ctx, cmd.OutOrStdout(), cfg.Client, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "TOML config supplying client settings")
	cmd.Flags().StringVarP(&opts.addr, "addr", "a", "127.0.0.1:42127", "server address")
	cmd.Flags().StringVar(&opts.sdk, "sdk", "blazectl", "BSDK value sent with getServerInstance")
	cmd.Flags().StringVar(&opts.clientName, "client", "probe", "CLNT value sent with getServerInstance")
	cmd.Flags().StringVar(&opts.cfid, "cfid", "", "also fetch this client config group")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "overall probe timeout")
	return cmd
}

func runProbe(ctx context.Context, w io.Writer, cfg client.Config, opts probeOptions) error {
	c, err := client.Dial(ctx, opts.addr, cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	reply, err := c.Call(ctx, components.RedirectorComponent, components.CmdGetServerInstance,
		tdf.NewString("BSDK", opts.sdk),
		tdf.NewString("CLNT", opts.clientName),
	)
	if err != nil {
		return fmt.Errorf("getServerInstance: %w", err)
	}
	body, err := reply.Body()
	if err != nil {
		_ = reply.Release()
		return err
	}
	inst, err := components.ParseInstance(body)
	_ = reply.Release()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "instance %s %s:%d secure=%t\n", inst.Host, components.FormatIPv4(inst.IP), inst.Port, inst.Secure)

	start := time.Now()
	reply, err = c.Call(ctx, components.UtilComponent, components.CmdPing)
	if err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	body, err = reply.Body()
	if err == nil {
		var stim uint64
		stim, err = body.Number("STIM")
		if err == nil {
			fmt.Fprintf(w, "ping rtt=%s server_time=%s\n", time.Since(start).Round(time.Microsecond),
				time.Unix(int64(stim), 0).UTC().Format(time.RFC3339))
		}
	}
	_ = reply.Release()
	if err != nil {
		return err
	}

	if opts.cfid == "" {
		return nil
	}
	reply, err = c.Call(ctx, components.UtilComponent, components.CmdFetchClientConfig, tdf.NewString("CFID", opts.cfid))
	if err != nil {
		return fmt.Errorf("fetchClientConfig: %w", err)
	}
	defer reply.Release()
	body, err = reply.Body()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "config %s\n", opts.cfid)
	return tdf.Format(w, body)
}
