package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"workerd/internal/config"
	"workerd/internal/httpapi"
	"workerd/internal/manager"
	"workerd/internal/registry"
	"workerd/internal/worker"
	"workerd/pkg/types"
)

const shutdownGrace = 5 * time.Second

type serveOptions struct {
	withTokenizer bool
	requestLog    string
}

func applyHTTPConfig(cfg config.Config, opts serveOptions) {
	httpapi.SetMaxBodyBytes(cfg.MaxBodyBytes)
	httpapi.SetCORSOptions(cfg.CORS.Enabled, cfg.CORS.AllowedOrigins)
	if opts.requestLog != "" {
		httpapi.SetRequestLogLevel(opts.requestLog)
	}
}

func loadDescriptors(cfg config.Config) ([]types.Descriptor, error) {
	descs, err := registry.Load(cfg.DescriptorsPath)
	if err != nil {
		return nil, fmt.Errorf("load descriptors: %w", err)
	}
	log.Info().Str("path", cfg.DescriptorsPath).Int("models", len(descs)).Msg("descriptors loaded")
	return descs, nil
}

// dependencyFor returns the tokenizer client for a descriptor, or nil for
// models without a tokenizer.
func dependencyFor(cfg config.Config) func(types.Descriptor) worker.DependencyClient {
	return func(d types.Descriptor) worker.DependencyClient {
		base := d.TokenizerURL
		if base == "" {
			if d.TokenizerExecutable == "" {
				return nil
			}
			base = tokenizerURL(cfg.TokenizerAddr)
		}
		return httpapi.NewTokenizerClient(base, nil)
	}
}

func runServe(ctx context.Context, cfg config.Config, opts serveOptions) error {
	descs, err := loadDescriptors(cfg)
	if err != nil {
		return err
	}
	applyHTTPConfig(cfg, opts)
	httpapi.SetBaseContext(ctx)

	g, gctx := errgroup.WithContext(ctx)
	if opts.withTokenizer {
		tm := manager.NewTokenizerManager(manager.TokenizerManagerConfig{
			Descriptors: descs,
			SettleDelay: cfg.TokenizerSettle(),
		})
		defer tm.Close()
		// Bind before the LLM side can poll it.
		ln, err := listen("tokenizer", cfg.TokenizerAddr)
		if err != nil {
			return err
		}
		g.Go(func() error { return serve(gctx, "tokenizer", ln, httpapi.NewTokenizerMux(tm)) })
	}

	mgr := manager.NewWithConfig(manager.ManagerConfig{
		Descriptors:         descs,
		MetricsDir:          cfg.MetricsDir,
		ReadyTimeout:        cfg.ReadyTimeout(),
		StartupReadyTimeout: cfg.StartupReadyTimeout(),
		PromptTimeout:       cfg.PromptTimeout(),
		DependencyPoll:      cfg.DependencyPoll(),
		Dependency:          dependencyFor(cfg),
	})
	defer func() {
		if err := mgr.Close(); err != nil {
			log.Warn().Err(err).Msg("stopping llm workers")
		}
	}()
	ln, err := listen("llm", cfg.Addr)
	if err != nil {
		return err
	}
	g.Go(func() error { return serve(gctx, "llm", ln, httpapi.NewMux(mgr)) })
	mgr.StartDefaults()
	return g.Wait()
}

func runTokenizer(ctx context.Context, cfg config.Config, opts serveOptions) error {
	descs, err := loadDescriptors(cfg)
	if err != nil {
		return err
	}
	applyHTTPConfig(cfg, opts)
	httpapi.SetBaseContext(ctx)
	tm := manager.NewTokenizerManager(manager.TokenizerManagerConfig{
		Descriptors: descs,
		SettleDelay: cfg.TokenizerSettle(),
	})
	defer func() {
		if err := tm.Close(); err != nil {
			log.Warn().Err(err).Msg("stopping tokenizers")
		}
	}()
	ln, err := listen("tokenizer", cfg.TokenizerAddr)
	if err != nil {
		return err
	}
	return serve(ctx, "tokenizer", ln, httpapi.NewTokenizerMux(tm))
}

func listen(name, addr string) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%s listen %s: %w", name, addr, err)
	}
	return ln, nil
}

// serve serves h on ln until ctx ends, then shuts down gracefully.
func serve(ctx context.Context, name string, ln net.Listener, h http.Handler) error {
	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("service", name).Str("addr", ln.Addr().String()).Msg("listening")
		errCh <- srv.Serve(ln)
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Warn().Err(err).Str("service", name).Msg("graceful shutdown error")
	}
	log.Info().Str("service", name).Msg("stopped")
	return nil
}

func runCheck(w io.Writer, cfg config.Config) error {
	descs, err := registry.Load(cfg.DescriptorsPath)
	if err != nil {
		return err
	}
	reports := manager.SanityCheck(descs)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MODEL\tLLM\tTOKENIZER\tERROR")
	failed := 0
	for _, r := range reports {
		llm, tok := "missing", "-"
		if r.LLMFound {
			llm = r.LLMPath
		}
		switch {
		case r.TokenizerFound:
			tok = r.TokenizerPath
		case strings.HasPrefix(r.Error, "tokenizer:"):
			tok = "missing"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Model, llm, tok, r.Error)
		if r.Error != "" {
			failed++
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d models failed the check", failed, len(reports))
	}
	return nil
}
