// File path: cmd/graphdesk/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/graphdesk/graphdesk/internal/api"
	"github.com/graphdesk/graphdesk/internal/common"
	"github.com/graphdesk/graphdesk/internal/community"
	ctxassembly "github.com/graphdesk/graphdesk/internal/context"
	"github.com/graphdesk/graphdesk/internal/embedding"
	"github.com/graphdesk/graphdesk/internal/graph"
	graphmem "github.com/graphdesk/graphdesk/internal/graph/memory"
	graphneo "github.com/graphdesk/graphdesk/internal/graph/neo4j"
	"github.com/graphdesk/graphdesk/internal/vector"
)

func main() {
	logger := common.Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := godotenv.Load(); err != nil {
		logger.Warn("graphdesk: .env file not loaded", "error", err)
	} else {
		logger.Info("graphdesk: environment loaded from .env")
	}

	addr := flag.String("addr", ":8080", "listen address")
	indexPath := flag.String("index", "", "path to the vector index snapshot (overrides GRAPHDESK_INDEX_PATH)")
	communityDB := flag.String("community-db", "", "path to the community summary database (overrides GRAPHDESK_COMMUNITY_DB)")
	stageTimeout := flag.String("stage-timeout", "10s", "timeout applied to each assembly stage")
	flag.Parse()

	timeout, err := time.ParseDuration(*stageTimeout)
	if err != nil {
		logger.Error("graphdesk: invalid stage timeout", "value", *stageTimeout, "error", err)
		fmt.Println("stage timeout error:", err)
		os.Exit(1)
	}

	embedCfg, err := embedding.LoadConfig()
	if err != nil {
		logger.Error("graphdesk: embedding config load failed", "error", err)
		fmt.Println("embedding config error:", err)
		os.Exit(1)
	}
	provider := embedding.NewProvider(embedCfg)
	logger.Info("graphdesk: embedding provider ready", "provider", provider.Name(), "dimension", provider.Dimension())

	vectorCfg, err := vector.LoadConfig()
	if err != nil {
		logger.Error("graphdesk: vector config load failed", "error", err)
		fmt.Println("vector config error:", err)
		os.Exit(1)
	}
	if trimmed := strings.TrimSpace(*indexPath); trimmed != "" {
		vectorCfg.Path = trimmed
	}
	vectorCfg.Dimension = provider.Dimension()
	index := vector.New(vectorCfg)
	if err := index.Load(); err != nil {
		if errors.Is(err, vector.ErrNoSnapshot) {
			logger.Info("graphdesk: starting with an empty vector index", "path", vectorCfg.Path)
		} else {
			logger.Error("graphdesk: vector snapshot load failed", "error", err)
			fmt.Println("vector load error:", err)
			os.Exit(1)
		}
	}

	store, err := buildGraphStore(ctx)
	if err != nil {
		logger.Error("graphdesk: graph store init failed", "error", err)
		fmt.Println("graph store error:", err)
		os.Exit(1)
	}
	defer store.Close(context.Background())

	summaries := community.NewIndex()
	summaryStore, err := community.OpenStore(*communityDB)
	if err != nil {
		logger.Error("graphdesk: community store open failed", "error", err)
		fmt.Println("community store error:", err)
		os.Exit(1)
	}
	defer summaryStore.Close()
	if stored, err := summaryStore.LoadAll(ctx); err != nil {
		logger.Warn("graphdesk: community snapshot load failed", "error", err)
	} else if len(stored) > 0 {
		summaries.Replace(stored)
		logger.Info("graphdesk: community summaries loaded", "communities", len(stored))
	}

	assembler := ctxassembly.NewAssembler(provider, index, store, summaries, timeout)
	server := api.NewServer(assembler, provider, index, store, summaries, summaryStore)

	logger.Info("graphdesk: server listening", "addr", *addr, "health", "/healthz")
	fmt.Printf("Serving on %s\n", *addr)
	if err := http.ListenAndServe(*addr, server.Router()); err != nil {
		logger.Error("graphdesk: server stopped", "error", err)
		fmt.Println("server error:", err)
		os.Exit(1)
	}
}

// buildGraphStore selects Neo4j when NEO4J_URI is configured, otherwise the
// in-memory backend.
func buildGraphStore(ctx context.Context) (graph.Store, error) {
	client, err := graphneo.NewFromEnv()
	if err != nil {
		return nil, err
	}
	if client == nil {
		common.Logger().Info("graphdesk: using in-memory graph store")
		return graphmem.NewService(), nil
	}
	store, err := graphneo.NewStore(ctx, client)
	if err != nil {
		_ = client.Close(ctx)
		return nil, err
	}
	common.Logger().Info("graphdesk: using neo4j graph store")
	return store, nil
}
