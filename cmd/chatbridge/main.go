package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	mongooptions "go.mongodb.org/mongo-driver/mongo/options"
	"goa.design/clue/debug"
	"goa.design/clue/health"
	"goa.design/clue/log"

	"github.com/estia-labs/chatbridge/agentapi"
	"github.com/estia-labs/chatbridge/bridge"
	"github.com/estia-labs/chatbridge/components"
	"github.com/estia-labs/chatbridge/config"
	mongoident "github.com/estia-labs/chatbridge/features/ident/mongo"
	redisprefs "github.com/estia-labs/chatbridge/features/preferences/redis"
	"github.com/estia-labs/chatbridge/frontend"
	"github.com/estia-labs/chatbridge/ident"
	identinmem "github.com/estia-labs/chatbridge/ident/inmem"
	"github.com/estia-labs/chatbridge/preferences"
	prefsinmem "github.com/estia-labs/chatbridge/preferences/inmem"
	"github.com/estia-labs/chatbridge/telemetry"
)

func main() {
	var (
		configF = flag.String("config", "", "Path to the YAML configuration file (optional)")
		dbgF    = flag.Bool("debug", false, "Log request and response bodies")
	)
	flag.Parse()

	// Setup logger.
	format := log.FormatJSON
	if log.IsTerminal() {
		format = log.FormatTerminal
	}
	ctx := log.Context(context.Background(), log.WithFormat(format))

	cfg, err := config.Load(*configF)
	if err != nil {
		log.Fatalf(ctx, err, "loading configuration")
	}
	dbg := *dbgF || cfg.Debug
	if dbg {
		ctx = log.Context(ctx, log.WithDebug())
		log.Debugf(ctx, "debug logs enabled")
	}
	log.Print(ctx, log.KV{K: "http-addr", V: cfg.HTTP.Addr}, log.KV{K: "agent-url", V: cfg.Agent.URL})

	var pingers []health.Pinger

	// Thread identity mapper: MongoDB when configured, in-memory otherwise.
	var mapper ident.Mapper
	if cfg.Mongo.URI != "" {
		client, err := mongodriver.Connect(ctx, mongooptions.Client().ApplyURI(cfg.Mongo.URI))
		if err != nil {
			log.Fatalf(ctx, err, "connecting to mongo")
		}
		defer func() {
			if err := client.Disconnect(context.Background()); err != nil {
				log.Errorf(ctx, err, "disconnecting mongo client")
			}
		}()
		m, err := mongoident.New(mongoident.Options{Client: client, Database: cfg.Mongo.Database})
		if err != nil {
			log.Fatalf(ctx, err, "creating mongo mapper")
		}
		mapper = m
		pingers = append(pingers, m)
	} else {
		mapper = identinmem.New()
		log.Printf(ctx, "no mongo URI configured, thread identities are in-memory")
	}

	// Preference store: Redis when configured, in-memory otherwise.
	var prefs preferences.Store
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		store, err := redisprefs.New(redisprefs.Options{Client: rdb})
		if err != nil {
			log.Fatalf(ctx, err, "creating redis preference store")
		}
		prefs = store
		pingers = append(pingers, store)
	} else {
		prefs = prefsinmem.New()
		log.Printf(ctx, "no redis address configured, preferences are in-memory")
	}

	agent, err := agentapi.NewClient(agentapi.ClientOptions{
		BaseURL:     cfg.Agent.URL,
		AssistantID: cfg.Agent.AssistantID,
		HTTPClient:  &http.Client{Timeout: cfg.Agent.Timeout},
	})
	if err != nil {
		log.Fatalf(ctx, err, "creating agent client")
	}

	var descriptions frontend.DescriptionGenerator
	if cfg.Description.URL != "" {
		dc, err := agentapi.NewDescriptionClient(agentapi.DescriptionOptions{
			BaseURL:     cfg.Description.URL,
			AssistantID: cfg.Description.AssistantID,
			HTTPClient:  &http.Client{Timeout: cfg.Description.Timeout},
		})
		if err != nil {
			log.Fatalf(ctx, err, "creating description client")
		}
		descriptions = dc
	}

	registry := components.DefaultRegistry()
	b, err := bridge.New(bridge.Options{
		Agent:       bridge.NewAgentStreamer(agent),
		Mapper:      mapper,
		Preferences: prefs,
		Registry:    registry,
		Metrics:     telemetry.NewMetrics(),
	})
	if err != nil {
		log.Fatalf(ctx, err, "creating bridge")
	}

	server, err := frontend.NewServer(frontend.Options{
		Bridge:          b,
		Store:           frontend.NewMemoryStore(),
		Preferences:     prefs,
		Registry:        registry,
		Mapper:          mapper,
		Descriptions:    descriptions,
		Cache:           preferences.NewContentCache(),
		RefreshWindow:   cfg.Refresh.Window,
		RefreshDebounce: cfg.Refresh.Debounce,
		Pingers:         pingers,
	})
	if err != nil {
		log.Fatalf(ctx, err, "creating server")
	}
	defer server.Close()

	// Mount debug and profiler endpoints in debug mode.
	mux := http.NewServeMux()
	if dbg {
		debug.MountPprofHandlers(mux)
		debug.MountDebugLogEnabler(mux)
	}
	mux.Handle("/", server.Handler())

	var handler http.Handler = mux
	if dbg {
		// Log query and response bodies if debug logs are enabled.
		handler = debug.HTTP()(handler)
	}
	handler = log.HTTP(ctx)(handler)

	srv := &http.Server{Addr: cfg.HTTP.Addr, Handler: handler, ReadHeaderTimeout: time.Second * 60}

	errc := make(chan error)
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		errc <- fmt.Errorf("%s", <-c)
	}()
	go func() {
		log.Printf(ctx, "HTTP server listening on %q", cfg.HTTP.Addr)
		errc <- srv.ListenAndServe()
	}()

	log.Printf(ctx, "exiting (%v)", <-errc)
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf(ctx, err, "failed to shutdown HTTP server")
	}
	log.Printf(ctx, "exited")
}
