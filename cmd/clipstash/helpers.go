package main

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"go.klb.dev/clipstash/internal/clip"
	"go.klb.dev/clipstash/internal/config"
	"go.klb.dev/clipstash/internal/ipc"
	"go.klb.dev/clipstash/internal/rpc"
)

// rpcTimeout bounds every unary call made by the CLI.
const rpcTimeout = 5 * time.Second

// conn is an open connection to the daemon.
type conn struct {
	*rpc.Client
	cc        *grpc.ClientConn
	transport string
}

func (c *conn) Close() error { return c.cc.Close() }

// addClientFlags adds the flags every client command uses to find the
// daemon.
func addClientFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("addr", net.JoinHostPort(config.DefaultHost, strconv.Itoa(config.DefaultPort)), "daemon address (used when the IPC socket is absent)")
	f.String("socket", ipc.DefaultSocketPath(), "daemon IPC socket")
}

// clientCmd builds a client subcommand whose flags are bound to v.
func clientCmd(cmd *cobra.Command, v *viper.Viper) *cobra.Command {
	addClientFlags(cmd)
	cmd.Flags().String("log-level", "", "log level for client diagnostics (default: warn)")
	cmd.PreRunE = func(cmd *cobra.Command, _ []string) error {
		setupLogging(cmd)
		v.SetEnvPrefix(config.EnvPrefix)
		v.AutomaticEnv()
		return v.BindPFlags(cmd.Flags())
	}
	return cmd
}

// dial connects over the IPC socket when the daemon is listening there
// and --addr was not given, and over TCP otherwise. The connection is
// verified with a health check.
func dial(cmd *cobra.Command, v *viper.Viper) (*conn, error) {
	var (
		target    string
		transport string
	)
	socket := v.GetString("socket")
	if !cmd.Flags().Changed("addr") && ipc.IsRunning(socket) {
		target = ipc.Target(socket)
		transport = fmt.Sprintf("ipc (%s)", socket)
	} else {
		target = v.GetString("addr")
		transport = fmt.Sprintf("tcp (%s)", target)
	}

	cc, err := grpc.NewClient(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := healthpb.NewHealthClient(cc).Check(ctx, &healthpb.HealthCheckRequest{Service: rpc.ServiceName}); err != nil {
		cc.Close()
		return nil, fmt.Errorf("no reachable clipstash daemon at %s: %w", target, err)
	}
	return &conn{Client: rpc.NewClient(cc), cc: cc, transport: transport}, nil
}

// withConn dials, runs fn with a bounded context, and closes.
func withConn(cmd *cobra.Command, v *viper.Viper, fn func(context.Context, *conn) error) error {
	c, err := dial(cmd, v)
	if err != nil {
		return err
	}
	defer c.Close()
	ctx, cancel := context.WithTimeout(cmd.Context(), rpcTimeout)
	defer cancel()
	return fn(ctx, c)
}

func addKindFlag(cmd *cobra.Command, def string) {
	cmd.Flags().String("kind", def, "selection: clipboard|primary")
}

func kindFlag(cmd *cobra.Command) (clip.Kind, error) {
	s, _ := cmd.Flags().GetString("kind")
	return clip.ParseKind(s)
}

func parseID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid clip id %q", s)
	}
	return id, nil
}

func fmtAge(t time.Time) string {
	age := time.Since(t).Round(time.Second)
	switch {
	case age < time.Minute:
		return fmt.Sprintf("%ds ago", int(age.Seconds()))
	case age < time.Hour:
		return fmt.Sprintf("%dm ago", int(age.Minutes()))
	case age < 24*time.Hour:
		return t.Format("15:04:05")
	default:
		return t.Format("2006-01-02")
	}
}
