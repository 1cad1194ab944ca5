package service

import (
	"context"
	"fmt"
	"time"

	"temp-dashboard/common/database"
	mqttcommon "temp-dashboard/common/mqtt"
	rediscommon "temp-dashboard/common/redis"
	"temp-dashboard/internal/aggregator"
	"temp-dashboard/internal/backend"
	"temp-dashboard/internal/config"
	"temp-dashboard/internal/models"
	"temp-dashboard/internal/preference"
	"temp-dashboard/internal/render"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DashboardService 温度看板服务
type DashboardService struct {
	config     *config.Config
	logger     *zap.Logger
	backend    backend.Backend
	store      *aggregator.TimeSeriesStore
	publisher  *aggregator.SnapshotPublisher
	reconciler *aggregator.ChannelReconciler
	loader     *aggregator.InitialLoader
	themes     *preference.ThemeManager
	page       *render.PageRenderer
	now        func() time.Time

	unsubscribe []func()
}

// NewDashboardService 按配置连接后端并创建服务
// Redis 后端复用同一连接保存主题偏好，其他后端使用本地文件
func NewDashboardService(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*DashboardService, error) {
	b, kv, err := newBackend(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if kv == nil {
		kv = preference.NewFileKVStore(cfg.Dashboard.PreferencePath)
	}
	return NewDashboardServiceWithBackend(cfg, b, kv, logger), nil
}

// NewDashboardServiceWithBackend 使用给定后端和偏好存储创建服务
func NewDashboardServiceWithBackend(
	cfg *config.Config,
	b backend.Backend,
	kv preference.KVStore,
	logger *zap.Logger,
) *DashboardService {
	store := aggregator.NewTimeSeriesStore(cfg.Dashboard.Capacity, nil)
	publisher := aggregator.NewSnapshotPublisher(store, logger)
	channels := aggregator.NewChannels(cfg.Dashboard.Namespace, cfg.Dashboard.LegacyNamespace)
	reconciler := aggregator.NewChannelReconciler(b, publisher, channels, cfg.Dashboard.QueueSize, logger)
	loader := aggregator.NewInitialLoader(b, reconciler, publisher, cfg.Dashboard.BootstrapTimeout, logger)
	themes := preference.NewThemeManager(kv, logger)

	var page *render.PageRenderer
	if cfg.Dashboard.OutputPath != "" {
		page = render.NewPageRenderer(cfg.Dashboard.OutputPath, themes, logger)
	}

	return &DashboardService{
		config:     cfg,
		logger:     logger,
		backend:    b,
		store:      store,
		publisher:  publisher,
		reconciler: reconciler,
		loader:     loader,
		themes:     themes,
		page:       page,
		now:        time.Now,
	}
}

// newBackend 按配置创建后端；后端自带可用于偏好的 KV 时一并返回
func newBackend(ctx context.Context, cfg *config.Config, logger *zap.Logger) (backend.Backend, preference.KVStore, error) {
	switch cfg.Dashboard.Backend {
	case config.BackendFirebase:
		return backend.NewFirebaseBackend(&cfg.Firebase, logger), nil, nil

	case config.BackendRedis:
		client, err := rediscommon.Connect(ctx, &cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		b := backend.NewRedisBackend(client, cfg.RedisBackend.KeyPrefix, cfg.RedisBackend.ChannelPrefix, logger)
		return b, preference.NewRedisKVStore(client, cfg.RedisBackend.PreferencePrefix), nil

	case config.BackendMQTT:
		// 多个看板可能连同一个 broker，client id 加随机后缀
		mqttCfg := cfg.MQTT
		mqttCfg.ClientID = fmt.Sprintf("%s-%s", cfg.MQTT.ClientID, uuid.NewString()[:8])
		client, err := mqttcommon.NewClient(&mqttCfg, logger)
		if err != nil {
			return nil, nil, err
		}
		return backend.NewMQTTBackend(client, client.QoS(), cfg.MQTTBackend.FetchWait, logger), nil, nil

	case config.BackendPostgres:
		db, err := database.NewPostgresDB(ctx, &cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		pb := backend.NewPostgresBackend(db, cfg.Database.GetDSN(),
			cfg.PostgresBackend.Table, cfg.PostgresBackend.Channel, logger)
		if cfg.PostgresBackend.EnsureSchema {
			if err := pb.EnsureSchema(ctx); err != nil {
				pb.Close()
				return nil, nil, err
			}
		}
		return pb, nil, nil

	default:
		return nil, nil, fmt.Errorf("unsupported backend: %s", cfg.Dashboard.Backend)
	}
}

// Start 启动服务：加载主题、一次性加载初始数据、开始实时订阅（阻塞）
func (s *DashboardService) Start(ctx context.Context) error {
	s.logger.Info("Starting dashboard service",
		zap.String("backend", s.config.Dashboard.Backend),
		zap.String("namespace", s.config.Dashboard.Namespace),
		zap.String("legacy_namespace", s.config.Dashboard.LegacyNamespace),
		zap.Int("capacity", s.store.Capacity()),
	)

	theme, err := s.themes.Init(ctx, s.now())
	if err != nil {
		s.logger.Warn("Failed to persist theme preference", zap.Error(err))
	}
	s.logger.Info("Theme initialized", zap.String("theme", string(theme)))

	s.unsubscribe = append(s.unsubscribe, s.publisher.Subscribe(render.NewLogRenderer(s.logger).Listener()))
	if s.page != nil {
		s.unsubscribe = append(s.unsubscribe, s.publisher.Subscribe(s.page.Listener()))
	}

	// 初始加载失败不影响实时订阅，以空状态启动
	if _, err := s.loader.Load(ctx); err != nil {
		s.logger.Error("Failed to fetch initial data, starting with empty dashboard", zap.Error(err))
	}
	s.renderPage()

	return s.reconciler.Start(ctx)
}

// Snapshot 当前快照
func (s *DashboardService) Snapshot() *models.Snapshot {
	return s.publisher.GetSnapshot()
}

// ToggleTheme 切换主题并重新渲染页面
func (s *DashboardService) ToggleTheme(ctx context.Context) (preference.Theme, error) {
	theme, err := s.themes.Toggle(ctx)
	s.renderPage()
	return theme, err
}

func (s *DashboardService) renderPage() {
	if s.page == nil {
		return
	}
	if err := s.page.Refresh(s.publisher); err != nil {
		s.logger.Error("Failed to render dashboard page", zap.Error(err))
	}
}

// Stop 停止服务
func (s *DashboardService) Stop(ctx context.Context) error {
	s.logger.Info("Stopping dashboard service")

	if err := s.reconciler.Stop(); err != nil {
		s.logger.Error("Error closing subscriptions", zap.Error(err))
	}
	for _, unsubscribe := range s.unsubscribe {
		unsubscribe()
	}
	s.unsubscribe = nil

	if err := s.backend.Close(); err != nil {
		s.logger.Error("Error closing backend", zap.Error(err))
	}

	s.logger.Info("Dashboard service stopped")
	return nil
}
