package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/ghpkg/ghpkg/internal/cache"
	"github.com/ghpkg/ghpkg/internal/config"
	"github.com/ghpkg/ghpkg/internal/logging"
	"github.com/ghpkg/ghpkg/internal/metrics"
	"github.com/ghpkg/ghpkg/internal/proxy"
	"github.com/ghpkg/ghpkg/internal/registry"
	"github.com/ghpkg/ghpkg/internal/server"
	"github.com/ghpkg/ghpkg/internal/server/routes"
	"github.com/ghpkg/ghpkg/internal/version"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	showVersion bool
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

const shutdownTimeout = 10 * time.Second

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}

	logger, err := logging.InitLogger(cfg.Global)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["registries"] = len(cfg.Registries)
		fields["credentials"] = config.CredentialModes(cfg.Registries)
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 启动顺序：配置 → 缓存 → 指标 → Registry Manager → Fiber server，
	// 所有请求共享同一组 transport 与缓存实例。
	store, err := openStore(ctx, cfg)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化缓存失败: %v\n", err)
		return 1
	}

	recorder := metrics.NewRecorder()
	manager, err := server.BuildManager(cfg, logger, recorder)
	if err != nil {
		fmt.Fprintf(stdErr, "构建 Registry 失败: %v\n", err)
		return 1
	}
	if err := manager.Start(ctx); err != nil {
		fmt.Fprintf(stdErr, "启动 Registry 失败: %v\n", err)
		_ = manager.Stop()
		return 1
	}
	defer func() {
		if err := manager.Stop(); err != nil {
			logger.WithError(err).WithField("action", "shutdown").Warn("registry stop failed")
		}
	}()

	fields := logging.BaseFields("startup", opts.configPath)
	fields["registries"] = len(cfg.Registries)
	fields["listen_port"] = cfg.Global.ListenPort
	fields["storage_backend"] = cfg.Global.StorageBackend
	fields["credentials"] = config.CredentialModes(cfg.Registries)
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	if err := startHTTPServer(ctx, cfg, manager, store, recorder, logger); err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
		return 1
	}
	return 0
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := pflag.NewFlagSet("ghpkg", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)

	configFlag := fs.StringP("config", "c", "", "配置文件路径（默认 ./config.toml，可被 GHPKG_CONFIG 覆盖）")
	checkOnly := fs.Bool("check-config", false, "仅校验配置后退出")
	showVer := fs.BoolP("version", "v", false, "显示版本信息")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	path := os.Getenv("GHPKG_CONFIG")
	if *configFlag != "" {
		path = *configFlag
	}
	if path == "" {
		path = "config.toml"
	}

	return cliOptions{
		configPath:  path,
		checkOnly:   *checkOnly,
		showVersion: *showVer,
	}, nil
}

func openStore(ctx context.Context, cfg *config.Config) (cache.Store, error) {
	if cfg.Global.StorageBackend == config.StorageS3 {
		return cache.NewS3Store(ctx, cfg.Global.S3Bucket, cfg.Global.S3Prefix)
	}
	return cache.NewStore(cfg.Global.StoragePath)
}

func startHTTPServer(
	ctx context.Context,
	cfg *config.Config,
	manager *registry.Manager,
	store cache.Store,
	recorder *metrics.Recorder,
	logger *logrus.Logger,
) error {
	table, err := server.NewRouteTable(cfg)
	if err != nil {
		return err
	}

	port := cfg.Global.ListenPort
	app, err := server.NewApp(server.AppOptions{
		Logger:     logger,
		Routes:     table,
		Handler:    proxy.NewHandler(manager, store, logger, recorder),
		ListenPort: port,
	})
	if err != nil {
		return err
	}
	routes.RegisterRegistryRoutes(app, table, manager)
	routes.RegisterMetricsRoute(app, recorder.Handler())

	go func() {
		<-ctx.Done()
		logger.WithField("action", "shutdown").Info("Fiber 服务停止")
		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil && !errors.Is(err, context.Canceled) {
			logger.WithError(err).WithField("action", "shutdown").Warn("shutdown incomplete")
		}
	}()

	logger.WithFields(logrus.Fields{
		"action": "listen",
		"port":   port,
	}).Info("Fiber 服务启动")

	return app.Listen(fmt.Sprintf(":%d", port))
}
