package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/pprof"
	"os"
	"reflect"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/aukilabs/go-tooling/pkg/cli"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/events"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/go-tooling/pkg/metrics"
	"github.com/aukilabs/orrery/collision"
	"github.com/aukilabs/orrery/featureflag"
	orreryhttp "github.com/aukilabs/orrery/http"
	"github.com/aukilabs/orrery/models"
	"github.com/aukilabs/orrery/modules"
	"github.com/aukilabs/orrery/modules/ballistics"
	"github.com/aukilabs/orrery/modules/landmarks"
	"github.com/aukilabs/orrery/modules/navigation"
	"github.com/aukilabs/orrery/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/encoding/json"
)

var (
	// The Orrery version number. Set at build.
	version = "v0.1.0"

	infoGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name:        "orrery_info",
		Help:        "Orrery information.",
		ConstLabels: prometheus.Labels{"version": version},
	})
)

// This will effectively disable obfuscation of the config struct. Without it, the keys would get obfuscated causing the cli package to generate garbled command-line options.
// https://github.com/burrowers/garble/issues/403
var _ = reflect.TypeOf(config{})

type config struct {
	Addr          string         `cli:""        env:"ORRERY_ADDR"           help:"Listening address of the observer WebSocket server. Empty disables it."`
	AdminAddr     string         `cli:""        env:"ORRERY_ADMIN_ADDR"     help:"Admin listening address. Empty disables the admin server."`
	LogLevel      string         `cli:""        env:"ORRERY_LOG_LEVEL"      help:"Log level (debug|info|warning|error)."`
	LogIndent     bool           `cli:""        env:"ORRERY_LOG_INDENT"     help:"Indent logs."`
	Seed          int            `cli:""        env:"ORRERY_SEED"           help:"Seed of every random decision taken by the simulation."`
	Scale         int            `cli:""        env:"ORRERY_SCALE"          help:"World units per radian."`
	MaxTicks      int            `cli:""        env:"ORRERY_MAX_TICKS"      help:"Number of ticks to run before exiting, 0 runs until interrupted."`
	FrameDuration time.Duration  `cli:",hidden" env:"ORRERY_FRAME_DURATION" help:"The duration of a simulation tick."`
	Observer      observerConfig `cli:",hidden" env:"-"                     help:"Observer configuration."`
	World         worldConfig    `cli:",hidden" env:"-"                     help:"World generation configuration."`
	Combat        combatConfig   `cli:",hidden" env:"-"                     help:"Combat configuration."`
	Events        eventsConfig   `cli:",hidden" env:"-"                     help:"Event pusher configuration."`
	FeatureFlags  []string       `cli:",hidden" env:"ORRERY_FEATURE_FLAGS"  help:"Comma separated feature flags"`
	Version       bool           `cli:""        env:"-"                     help:"Show version."`
	Help          bool           `cli:""        env:"-"                     help:"Show help."`
}

type worldConfig struct {
	Branching        string `cli:",hidden" env:"ORRERY_WORLD_BRANCHING"          help:"Comma separated branching factor of each region level."`
	NavigationPoints int    `cli:",hidden" env:"ORRERY_WORLD_NAVIGATION_POINTS"  help:"The number of navigation mesh vertices."`
	RelaxationSteps  int    `cli:",hidden" env:"ORRERY_WORLD_RELAXATION_STEPS"   help:"The number of Lloyd relaxation steps applied to the navigation mesh."`
	TerrainPerRegion int    `cli:",hidden" env:"ORRERY_WORLD_TERRAIN_PER_REGION" help:"The number of terrain landmarks in each of the smallest regions."`
	Ships            int    `cli:",hidden" env:"ORRERY_WORLD_SHIPS"              help:"The number of ships."`
	Fleets           int    `cli:",hidden" env:"ORRERY_WORLD_FLEETS"             help:"The number of fleets ships are spread into."`
	ShipSpeed        int    `cli:",hidden" env:"ORRERY_WORLD_SHIP_SPEED"         help:"Ship speed in world units per tick."`
	ShipHullRadius   int    `cli:",hidden" env:"ORRERY_WORLD_SHIP_HULL_RADIUS"   help:"Radius of the hexagonal ship hull in world units."`
}

type combatConfig struct {
	FireRange       int    `cli:",hidden" env:"ORRERY_COMBAT_FIRE_RANGE"       help:"Distance at which ships fire, in world units."`
	ReloadTicks     int    `cli:",hidden" env:"ORRERY_COMBAT_RELOAD_TICKS"     help:"The number of ticks between two shots."`
	ProjectileSpeed int    `cli:",hidden" env:"ORRERY_COMBAT_PROJECTILE_SPEED" help:"Projectile speed in world units per tick."`
	ProjectileTTL   int    `cli:",hidden" env:"ORRERY_COMBAT_PROJECTILE_TTL"   help:"The number of ticks a projectile flies."`
	IndexBranching  string `cli:",hidden" env:"ORRERY_COMBAT_INDEX_BRANCHING"  help:"Comma separated branching factor of the ship index levels."`
	IndexGridRows   int    `cli:",hidden" env:"ORRERY_COMBAT_INDEX_GRID_ROWS"  help:"Rows of a latitude and longitude ship index. Zero indexes ships in a tree."`
}

type observerConfig struct {
	SnapshotInterval int           `cli:",hidden" env:"ORRERY_OBSERVER_SNAPSHOT_INTERVAL" help:"The number of ticks between two snapshots sent to observers."`
	IdleTimeout      time.Duration `cli:",hidden" env:"ORRERY_OBSERVER_IDLE_TIMEOUT"      help:"The time an observer stays silent before being disconnected."`
}

type eventsConfig struct {
	Endpoint      string        `cli:",hidden" env:"ORRERY_EVENTS_ENDPOINT"       help:"Endpoint to where events are pushed. Empty disables events."`
	FlushInterval time.Duration `cli:",hidden" env:"ORRERY_EVENTS_FLUSH_INTERVAL" help:"The duration between each event flush."`
	BatchSize     int           `cli:",hidden" env:"ORRERY_EVENTS_BATCH_SIZE"     help:"The maximum number of events sent at once."`
	QueueSize     int           `cli:",hidden" env:"ORRERY_EVENTS_QUEUE_SIZE"     help:"The size of the queue where events are stored."`
}

func main() {
	conf := config{
		Addr:          ":4000",
		AdminAddr:     ":18190",
		LogLevel:      logs.InfoLevel.String(),
		Seed:          1,
		Scale:         1000,
		FrameDuration: models.DefaultFrameDuration,
		World: worldConfig{
			Branching:        "8,5,4",
			NavigationPoints: landmarks.DefaultNavigationPoints,
			RelaxationSteps:  landmarks.DefaultRelaxationSteps,
			TerrainPerRegion: landmarks.DefaultTerrainPerRegion,
			Ships:            navigation.DefaultShips,
			Fleets:           navigation.DefaultFleets,
			ShipSpeed:        navigation.DefaultShipSpeed,
			ShipHullRadius:   10,
		},
		Combat: combatConfig{
			FireRange:       ballistics.DefaultFireRange,
			ReloadTicks:     ballistics.DefaultReloadTicks,
			ProjectileSpeed: ballistics.DefaultProjectileSpeed,
			ProjectileTTL:   ballistics.DefaultProjectileTTL,
			IndexBranching:  "8,4",
		},
		Observer: observerConfig{
			SnapshotInterval: 1,
			IdleTimeout:      websocket.DefaultIdleTimeout,
		},
		Events: eventsConfig{
			FlushInterval: events.DefaultFlushInterval,
			BatchSize:     events.DefaultBatchSize,
			QueueSize:     events.DefaultQueueSize,
		},
	}

	// set the information gauge to 1, useful for SUM query
	infoGauge.Set(1)

	ctx, cancel := cli.ContextWithSignals(context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer cancel()

	cli.Register().
		Help("Runs an Orrery simulation.").
		Options(&conf)
	cli.Load()

	if conf.Version {
		fmt.Println(version)
		os.Exit(0)
	}

	if err := validateConfig(conf); err != nil {
		logs.Fatal(err)
	}

	regionBranching, err := parseBranching(conf.World.Branching)
	if err != nil {
		logs.Fatal(errors.New("invalid world branching").Wrap(err))
	}
	indexBranching, err := parseBranching(conf.Combat.IndexBranching)
	if err != nil {
		logs.Fatal(errors.New("invalid index branching").Wrap(err))
	}

	logs.SetLevel(logs.ParseLevel(conf.LogLevel))
	logs.Encoder = json.Marshal
	if conf.LogIndent {
		logs.Encoder = func(v any) ([]byte, error) {
			return json.MarshalIndent(v, "", "  ")
		}
	}

	errors.Encoder = json.Marshal

	if conf.Events.Endpoint != "" {
		eventsPusher := events.Pusher{
			Endpoint:      conf.Events.Endpoint,
			FlushInterval: conf.Events.FlushInterval,
			BatchSize:     conf.Events.BatchSize,
			QueueSize:     conf.Events.QueueSize,
			Transport:     metrics.HTTPTransport(http.DefaultTransport),
		}
		go eventsPusher.Start()
		defer eventsPusher.Close()

		eventsLogger := events.Logger{
			Pusher:           &eventsPusher,
			SDKType:          "orrery",
			SDKVersionFamily: version,
		}
		logs.SetLogger(eventsLogger.Log)
	}

	flags := featureflag.New(conf.FeatureFlags)
	if unknown := flags.Unknown(); len(unknown) != 0 {
		logs.WithTag("feature_flags", unknown).
			Warn(errors.New("unknown feature flags are ignored"))
	}

	world := models.NewWorld(int64(conf.Seed), float64(conf.Scale), conf.FrameDuration)
	defer world.Close()

	worldModules := []modules.Module{
		&landmarks.Module{
			Branching:        regionBranching,
			NavigationPoints: conf.World.NavigationPoints,
			RelaxationSteps:  conf.World.RelaxationSteps,
			TerrainPerRegion: conf.World.TerrainPerRegion,
			FeatureFlags:     flags,
		},
		&navigation.Module{
			Ships:     conf.World.Ships,
			Fleets:    conf.World.Fleets,
			ShipSpeed: float64(conf.World.ShipSpeed),
			Hull:      collision.RegularPolygon(6, float64(conf.World.ShipHullRadius)),
		},
		&ballistics.Module{
			Branching:       indexBranching,
			GridRows:        conf.Combat.IndexGridRows,
			ProjectileSpeed: float64(conf.Combat.ProjectileSpeed),
			ProjectileTTL:   conf.Combat.ProjectileTTL,
			FireRange:       float64(conf.Combat.FireRange),
			ReloadTicks:     conf.Combat.ReloadTicks,
			FeatureFlags:    flags,
			OnHit:           logHit(world),
		},
	}

	logs.WithTag("version", version).
		WithTag("log_level", conf.LogLevel).
		WithTag("world_id", world.ID).
		WithTag("seed", conf.Seed).
		WithTag("modules", modules.Names(worldModules...)).
		WithTag("feature_flags", conf.FeatureFlags).
		Info("starting orrery simulation")

	detach := modules.Attach(ctx, world, worldModules...)
	defer detach()

	if conf.MaxTicks > 0 {
		world.HandleFrame(func() {
			if world.Tick()+1 >= uint64(conf.MaxTicks) {
				cancel()
			}
		})
	}

	go world.StartDispatchFrames()
	go func() {
		<-ctx.Done()
		world.Close()
	}()

	var servers []*http.Server
	if conf.Addr != "" {
		servers = append(servers, &http.Server{
			Addr: conf.Addr,
			Handler: metrics.HTTPHandler(newServiceMux(ctx, websocket.Observer{
				World:            world,
				SnapshotInterval: conf.Observer.SnapshotInterval,
				IdleTimeout:      conf.Observer.IdleTimeout,
			}), orreryhttp.MetricsPathFormatter),
		})
	}
	if conf.AdminAddr != "" {
		servers = append(servers, &http.Server{
			Addr:    conf.AdminAddr,
			Handler: metrics.HTTPHandler(newAdminMux(world), orreryhttp.MetricsPathFormatter),
		})
	}

	if len(servers) != 0 {
		orreryhttp.ListenAndServe(ctx, servers...)
	} else {
		<-ctx.Done()
	}

	logSummary(world)
}

func newServiceMux(ctx context.Context, observer websocket.Observer) *http.ServeMux {
	var service http.ServeMux
	service.Handle("/health", orreryhttp.HandleWithCORS(http.HandlerFunc(orreryhttp.HandleHealthCheck)))
	service.Handle("/version", orreryhttp.HandleWithCORS(http.HandlerFunc(orreryhttp.HandleVersion(version))))
	service.Handle("/", orreryhttp.HandleWithCORS(websocket.NewServer(ctx, observer)))
	return &service
}

func newAdminMux(world *models.World) *http.ServeMux {
	var admin http.ServeMux
	admin.Handle("/metrics", promhttp.Handler())
	admin.HandleFunc("/health", orreryhttp.HandleHealthCheck)
	admin.HandleFunc("/ready", orreryhttp.HandleReadyCheck(func() bool {
		return world.Tick() > 0
	}))
	admin.HandleFunc("/version", orreryhttp.HandleVersion(version))

	if state, ok := landmarks.StateFrom(world); ok {
		admin.Handle("/debug/cells", orreryhttp.HandleWithCORS(orreryhttp.HandleCells(state.Cells)))
		admin.Handle("/debug/regions", orreryhttp.HandleWithCORS(orreryhttp.HandleDebugInfo(state.Hierarchy.DebugInfo)))
	}

	admin.HandleFunc("/debug/pprof/", pprof.Index)
	admin.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	admin.HandleFunc("/debug/pprof/profile", pprof.Profile)
	admin.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	admin.HandleFunc("/debug/pprof/trace", pprof.Trace)
	admin.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
	admin.Handle("/debug/pprof/heap", pprof.Handler("heap"))
	return &admin
}

func logHit(world *models.World) ballistics.HitHandler {
	return func(projectile, target *models.Entity, hit collision.Hit) {
		logs.WithTag("world_id", world.ID).
			WithTag("tick", world.Tick()).
			WithTag("fleet_id", projectile.FleetID).
			WithTag("target_id", target.ID).
			WithTag("target_fleet_id", target.FleetID).
			WithTag("distance", hit.Distance).
			Info("ship hit")
	}
}

func logSummary(world *models.World) {
	var fired, hits uint64
	if state, ok := ballistics.StateFrom(world); ok {
		fired, hits = state.Fired(), state.Hits()
	}

	logs.WithTag("world_id", world.ID).
		WithTag("ticks", world.Tick()).
		WithTag("ships", len(world.Entities(models.KindShip))).
		WithTag("projectiles", len(world.Entities(models.KindProjectile))).
		WithTag("fired", fired).
		WithTag("hits", hits).
		Info("simulation stopped")
}

func parseBranching(s string) ([]int, error) {
	var branching []int
	for _, f := range strings.Split(s, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}

		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, errors.New("branching factor is not a number").
				WithTag("value", f).
				Wrap(err)
		}
		if n < 1 {
			return nil, errors.New("branching factor must be positive").
				WithTag("value", n)
		}
		branching = append(branching, n)
	}

	if len(branching) == 0 {
		return nil, errors.New("branching is empty")
	}
	if branching[0] < 4 {
		return nil, errors.New("first branching factor must be at least 4").
			WithTag("value", branching[0])
	}
	return branching, nil
}

func validateConfig(conf config) error {
	if conf.Scale <= 0 {
		return errors.New("scale must be positive").
			WithTag("scale", conf.Scale)
	}

	if conf.FrameDuration <= 0 {
		return errors.New("frame duration must be positive").
			WithTag("frame_duration", conf.FrameDuration)
	}

	if conf.MaxTicks < 0 {
		return errors.New("max ticks must not be negative").
			WithTag("max_ticks", conf.MaxTicks)
	}

	if conf.World.NavigationPoints < 4 {
		return errors.New("navigation mesh needs at least 4 points").
			WithTag("navigation_points", conf.World.NavigationPoints)
	}

	if conf.World.ShipHullRadius <= 0 {
		return errors.New("ship hull radius must be positive").
			WithTag("ship_hull_radius", conf.World.ShipHullRadius)
	}

	if conf.Combat.IndexGridRows < 0 {
		return errors.New("index grid rows must not be negative").
			WithTag("index_grid_rows", conf.Combat.IndexGridRows)
	}

	return nil
}
