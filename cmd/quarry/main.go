package main

import (
	"flag"
	"os"
	"path/filepath"

	"quarrychain/config"
	"quarrychain/core"
	"quarrychain/observability/logging"
	"quarrychain/rpc"
	"quarrychain/storage"
	"quarrychain/vm"
)

func main() {
	configPath := flag.String("config", "./config.toml", "path to the node configuration file")
	env := flag.String("env", "", "deployment environment label for log lines")
	flag.Parse()

	logger := logging.Setup("quarry", *env)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "path", *configPath, "err", err)
		os.Exit(1)
	}

	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "chain"))
	if err != nil {
		logger.Error("failed to open database", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	// The contract interpreter is an external collaborator; until one is
	// linked in, read-only calls report an execution failure cause.
	node, err := core.NewNode(db, cfg, vm.NullEngine{}, logger)
	if err != nil {
		logger.Error("failed to start node", "err", err)
		os.Exit(1)
	}

	server := rpc.NewServer(node, cfg.RateLimit, logger)
	if err := server.Start(cfg.ListenAddress); err != nil {
		logger.Error("http server exited", "err", err)
		os.Exit(1)
	}
}
