// Package arkomp parses runtime flags and composes the server entrypoint.
package arkomp

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	entrypoint "github.com/louisbranch/arkomp/internal/platform/cmd"
	"github.com/louisbranch/arkomp/internal/platform/config"
	platformgrpc "github.com/louisbranch/arkomp/internal/platform/grpc"
	"github.com/louisbranch/arkomp/internal/platform/timeouts"
	server "github.com/louisbranch/arkomp/internal/services/runtime/app"
	"github.com/louisbranch/arkomp/internal/services/runtime/render"
)

// Config holds runtime command configuration.
type Config struct {
	HTTPAddr         string `env:"ARKOMP_HTTP_ADDR"         envDefault:"127.0.0.1:2887"`
	GRPCAddr         string `env:"ARKOMP_GRPC_ADDR"         envDefault:"127.0.0.1:2888"`
	JournalPath      string `env:"ARKOMP_JOURNAL_PATH"`
	AuthSecret       string `env:"ARKOMP_AUTH_SECRET"`
	AuthAudience     string `env:"ARKOMP_AUTH_AUDIENCE"`
	FrameRate        int    `env:"ARKOMP_FRAME_RATE"        envDefault:"60"`
	DefaultAnimation string `env:"ARKOMP_DEFAULT_ANIMATION" envDefault:"Relax"`
	LogDir           string `env:"ARKOMP_LOG_DIR"`

	// Probe checks a running runtime's health instead of starting one.
	Probe bool
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "websocket and MCP listen address")
	fs.StringVar(&cfg.GRPCAddr, "grpc-addr", cfg.GRPCAddr, "gRPC health listen address (empty disables)")
	fs.StringVar(&cfg.JournalPath, "journal-path", cfg.JournalPath, "SQLite delivery journal path (empty disables)")
	fs.StringVar(&cfg.AuthSecret, "auth-secret", cfg.AuthSecret, "HS256 token secret (empty disables auth)")
	fs.StringVar(&cfg.AuthAudience, "auth-audience", cfg.AuthAudience, "required token audience")
	fs.IntVar(&cfg.FrameRate, "frame-rate", cfg.FrameRate, "render frames per second, at most 1000 (0 disables)")
	fs.StringVar(&cfg.DefaultAnimation, "default-animation", cfg.DefaultAnimation, "animation started on spawn")
	fs.StringVar(&cfg.LogDir, "log-dir", cfg.LogDir, "directory for daily log files")
	fs.BoolVar(&cfg.Probe, "probe", false, "exit non-zero unless the runtime at -grpc-addr is serving")
	fs.Usage = func() {
		out := fs.Output()
		fmt.Fprintf(out, "Usage of %s:\n", fs.Name())
		fs.PrintDefaults()
		fmt.Fprintln(out, "\nEnvironment:")
		_ = config.WriteVars(out, &Config{})
	}
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	if cfg.FrameRate < 0 {
		return Config{}, fmt.Errorf("frame rate must not be negative: %d", cfg.FrameRate)
	}
	if cfg.FrameRate > render.MaxFrameRate {
		return Config{}, fmt.Errorf("frame rate must not exceed %d: %d", render.MaxFrameRate, cfg.FrameRate)
	}
	return cfg, nil
}

// Run starts the runtime and blocks until ctx is cancelled. With Probe set it
// only checks the health of a runtime already listening on GRPCAddr.
func Run(ctx context.Context, cfg Config) error {
	if cfg.Probe {
		return Probe(ctx, cfg)
	}
	sink, err := entrypoint.AttachLogFile(cfg.LogDir, time.Now())
	if err != nil {
		return err
	}
	defer func() {
		if err := sink.Close(); err != nil {
			log.Printf("arkomp: close log file: %v", err)
		}
	}()

	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceArkomp, func(ctx context.Context) error {
		if err := server.Run(ctx, server.Config{
			HTTPAddr:         cfg.HTTPAddr,
			GRPCAddr:         cfg.GRPCAddr,
			JournalPath:      cfg.JournalPath,
			AuthSecret:       cfg.AuthSecret,
			AuthAudience:     cfg.AuthAudience,
			FrameRate:        cfg.FrameRate,
			DefaultAnimation: cfg.DefaultAnimation,
		}); err != nil {
			return fmt.Errorf("serve arkomp: %w", err)
		}
		return nil
	})
}

// Probe waits for the runtime's gRPC health service to report SERVING.
func Probe(ctx context.Context, cfg Config) error {
	if err := platformgrpc.Probe(ctx, cfg.GRPCAddr, server.HealthService, timeouts.Probe, nil); err != nil {
		return fmt.Errorf("probe %s: %w", cfg.GRPCAddr, err)
	}
	return nil
}
