package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mezonai/starchain/api"
	"github.com/mezonai/starchain/config"
	"github.com/mezonai/starchain/jsonrpc"
	"github.com/mezonai/starchain/logx"
	"github.com/mezonai/starchain/mempool"
	"github.com/mezonai/starchain/monitoring"
	"github.com/mezonai/starchain/security/auth"
	"github.com/mezonai/starchain/security/ratelimit"
)

var (
	nodeConfigPath string
	iniConfigPath  string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the star registry node",
	Run: func(cmd *cobra.Command, args []string) {
		if err := runNode(); err != nil {
			logx.Error("NODE", "Node stopped with error: ", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVarP(&nodeConfigPath, "config", "c", "config/node.yml", "Path to the node yaml config")
	runCmd.Flags().StringVar(&iniConfigPath, "ini", "config/config.ini", "Path to the ini tuning config")
}

type nodeConfigs struct {
	node      *config.NodeConfig
	mempool   *config.MempoolConfig
	rateLimit *config.RateLimitConfig
	api       *config.APIConfig
}

func loadConfiguration() (*nodeConfigs, error) {
	nodeCfg, err := config.LoadNodeConfig(nodeConfigPath)
	if err != nil {
		return nil, err
	}
	if cors, ok := config.CORSFromEnv(); ok {
		nodeCfg.CORS = cors
	}

	mempoolCfg, err := config.LoadMempoolConfig(iniConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load mempool config: %w", err)
	}
	rateLimitCfg, err := config.LoadRateLimitConfig(iniConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load rate limit config: %w", err)
	}
	apiCfg, err := config.LoadAPIConfig(iniConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load api config: %w", err)
	}

	return &nodeConfigs{node: nodeCfg, mempool: mempoolCfg, rateLimit: rateLimitCfg, api: apiCfg}, nil
}

func runNode() error {
	initializeFileLogger()
	monitoring.InitMetrics()

	cfgs, err := loadConfiguration()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(cfgs.node.DataDir, 0o755); err != nil {
		return err
	}
	manager, err := openChain(ctx, cfgs.node)
	if err != nil {
		return err
	}
	defer func() {
		if err := manager.Close(); err != nil {
			logx.Error("NODE", "Failed to close chain: ", err)
		}
	}()

	sessions := mempool.NewSessionStore(cfgs.mempool.SessionConfig())
	sessions.Start()
	defer sessions.Shutdown()

	verifier, err := auth.NewVerifier(cfgs.node.SignatureScheme)
	if err != nil {
		return err
	}
	authenticator := auth.NewAuthenticator(verifier)

	limiter := ratelimit.NewGlobalRateLimiter(cfgs.rateLimit.GlobalConfig())
	defer limiter.Stop()

	apiSrv := api.NewAPIServer(manager, sessions, authenticator, limiter, cfgs.node.ListenAddr)
	apiSrv.CORS = cfgs.node.CORS
	apiSrv.MaxBodyBytes = cfgs.api.MaxBodyBytes

	rpcSrv := jsonrpc.NewServer(cfgs.node.JSONRPCAddr, manager)
	rpcSrv.SetCORSConfig(cfgs.node.CORS)

	logx.Info("NODE", "Starting node with ", verifier.Scheme(), " signatures, store ", cfgs.node.Store.Type)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return apiSrv.ListenAndServe(gctx) })
	g.Go(func() error { return rpcSrv.ListenAndServe(gctx) })

	err = g.Wait()
	logx.Info("NODE", "Node shut down")
	return err
}
