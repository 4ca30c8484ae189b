package app

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/linkgrab/linkgrab/internal/domain"
	"github.com/linkgrab/linkgrab/internal/infrastructure"
	"github.com/linkgrab/linkgrab/pkg/logger"
)

// Services bundles the discovery and download stack built from one configuration.
// Both the server and the local CLI commands run on it.
type Services struct {
	Table     *domain.CategoryTable
	Notifier  *infrastructure.NotificationService
	Discovery *DiscoveryService
	Engine    *DownloadEngine
}

// NewServices wires the HTTP clients, discoverer, fetcher and services. multiLogger may be nil.
func NewServices(config *domain.Config, multiLogger *logger.MultiLogger, log *zap.Logger) (*Services, error) {
	if log == nil {
		log = zap.NewNop()
	}

	table, err := domain.NewCategoryTable(config.Categories)
	if err != nil {
		return nil, fmt.Errorf("invalid category table: %w", err)
	}

	notifier := infrastructure.NewNotificationService(&config.Notification, log)

	discoverer := infrastructure.NewHTMLDiscoverer(
		infrastructure.NewPageClient(&config.HTTP),
		config.HTTP.UserAgent,
		&config.Discovery,
		table,
		log.Named("discoverer"),
	)
	fetcher := infrastructure.NewHTTPFetcher(
		infrastructure.NewFileClient(&config.HTTP),
		infrastructure.NewFileNamer(),
		&config.HTTP,
		config.Download.ChunkSize,
		log.Named("fetcher"),
	)

	return &Services{
		Table:     table,
		Notifier:  notifier,
		Discovery: NewDiscoveryService(discoverer, table, config.Discovery.DefaultCategory, notifier, multiLogger, log),
		Engine:    NewDownloadEngine(fetcher, &config.Download, notifier, multiLogger, log),
	}, nil
}
