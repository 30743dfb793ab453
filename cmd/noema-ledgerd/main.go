package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"noema.dev/ledgerkit/config"
	"noema.dev/ledgerkit/ledger"
	"noema.dev/ledgerkit/ledger/grpcledger"
	"noema.dev/ledgerkit/ledger/ledgerregistry"

	_ "noema.dev/ledgerkit/ledger/memledger"
	_ "noema.dev/ledgerkit/ledger/rpcledger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("noema-ledgerd", flag.ContinueOnError)
	fs.SetOutput(errOut)
	listen := fs.String("listen", "127.0.0.1:7878", "listen address")
	backend := fs.String("backend", "rpc", "ledger backend name")
	configPath := fs.String("config", "", "YAML config file (log settings and rpc defaults)")
	maxMsgBytes := fs.Int("max-msg-bytes", 0, "max gRPC message size in bytes (send+recv); 0 uses grpc defaults")
	listBackends := fs.Bool("list-backends", false, "List supported backends and exit")

	ledgerregistry.RegisterFlags(fs, ledgerregistry.UsageDaemon)

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *listBackends {
		for _, b := range ledgerregistry.List(ledgerregistry.UsageDaemon) {
			if b.Description == "" {
				_, _ = fmt.Fprintf(out, "%s\n", b.Name)
				continue
			}
			_, _ = fmt.Fprintf(out, "%s\t%s\n", b.Name, b.Description)
		}
		return 0
	}

	cfg, err := config.Default(config.ClusterDevnet)
	if *configPath != "" {
		cfg, err = config.LoadFile(*configPath)
	}
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}
	log := newLogger(cfg.Log, errOut)
	defer func() { _ = log.Sync() }()

	if *backend == "rpc" {
		set := map[string]bool{}
		fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
		if !set["rpc-endpoint"] {
			_ = fs.Set("rpc-endpoint", cfg.RPC.Endpoint)
		}
		if !set["rpc-commitment"] && cfg.RPC.Commitment != "" {
			_ = fs.Set("rpc-commitment", cfg.RPC.Commitment)
		}
		if !set["rpc-timeout"] {
			_ = fs.Set("rpc-timeout", cfg.RPC.Timeout.String())
		}
	}

	l, closeFn, err := ledgerregistry.Open(*backend, ledgerregistry.UsageDaemon)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}
	if closeFn != nil {
		defer closeFn()
	}

	lis, err := net.Listen("tcp", *listen)
	if err != nil {
		log.Error("listen failed", zap.String("addr", *listen), zap.Error(err))
		return 1
	}
	log.Info("listening", zap.String("addr", lis.Addr().String()), zap.String("backend", *backend))
	if err := serve(ctx, lis, l, log, *maxMsgBytes); err != nil {
		log.Error("serve failed", zap.Error(err))
		return 1
	}
	return 0
}

// serve runs the Ledger service on lis until ctx is done, then drains
// in-flight calls.
func serve(ctx context.Context, lis net.Listener, l ledger.Ledger, log *zap.Logger, maxMsgBytes int) error {
	opts := []grpc.ServerOption{grpc.UnaryInterceptor(grpcledger.LoggingInterceptor(log))}
	if maxMsgBytes > 0 {
		opts = append(opts, grpc.MaxRecvMsgSize(maxMsgBytes), grpc.MaxSendMsgSize(maxMsgBytes))
	}
	s := grpc.NewServer(opts...)
	grpcledger.RegisterLedgerServer(s, &grpcledger.Server{Ledger: l})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.Serve(lis)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		s.GracefulStop()
		return nil
	})
	return g.Wait()
}

func newLogger(c config.Log, w io.Writer) *zap.Logger {
	level := zapcore.InfoLevel
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		level = zapcore.InfoLevel
	}
	enc := zap.NewProductionEncoderConfig()
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewJSONEncoder(enc)
	if !c.JSON {
		encoder = zapcore.NewConsoleEncoder(enc)
	}
	return zap.New(zapcore.NewCore(encoder, zapcore.AddSync(w), level))
}
