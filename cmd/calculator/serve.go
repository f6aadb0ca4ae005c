package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lemonberrylabs/calculator/pkg/api"
	grpcapi "github.com/lemonberrylabs/calculator/pkg/api/grpc"
	"github.com/lemonberrylabs/calculator/pkg/runtime"
	"github.com/lemonberrylabs/calculator/pkg/store"
	"github.com/lemonberrylabs/calculator/web"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the REST API, the gRPC service and the web UI",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	cmd.Flags().Int("port", 0, "HTTP server port (default 8787, env PORT)")
	cmd.Flags().Int("grpc-port", 0, "gRPC server port (default 8788, env GRPC_PORT)")
	cmd.Flags().String("host", "", "Bind address (default 0.0.0.0, env HOST)")
	cmd.Flags().Bool("access-log", false, "Log every HTTP request")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if v, _ := cmd.Flags().GetInt("port"); v != 0 {
		cfg.Port = v
	}
	if v, _ := cmd.Flags().GetInt("grpc-port"); v != 0 {
		cfg.GRPCPort = v
	}
	if v, _ := cmd.Flags().GetString("host"); v != "" {
		cfg.Host = v
	}
	if v, _ := cmd.Flags().GetBool("access-log"); v {
		cfg.AccessLog = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	opts := api.Options{
		Level:               cfg.Level(),
		MaxExpressionLength: cfg.MaxExpressionLength,
		AccessLog:           cfg.AccessLog,
	}
	s := store.New(cfg.HistoryLimit)
	engine := runtime.NewEngine()
	server := api.New(s, engine, opts)

	// Register the web UI (non-fatal if template parsing fails)
	func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("Warning: web UI disabled due to template error: %v", r)
			}
		}()
		ui := web.New(s, engine, opts)
		ui.Register(server.App())
	}()

	// Start gRPC server
	grpcServer := grpcapi.New(s, engine, opts)
	go func() {
		log.Printf("gRPC server listening on %s", cfg.GRPCAddr())
		if err := grpcServer.Serve(cfg.GRPCAddr()); err != nil {
			log.Fatalf("gRPC server error: %v", err)
		}
	}()

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Println("Shutting down calculator...")
		grpcServer.GracefulStop()
		if err := server.Shutdown(); err != nil {
			log.Printf("Error during shutdown: %v", err)
		}
	}()

	log.Printf("Calculator listening on %s (level=%s, history=%d)", cfg.Addr(), cfg.OptimizationLevel, cfg.HistoryLimit)
	return server.Listen(cfg.Addr())
}
