package application

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/WangYihang/Catalog-Crawler/pkg/config"
	"github.com/WangYihang/Catalog-Crawler/pkg/domain/entity"
	"github.com/WangYihang/Catalog-Crawler/pkg/domain/repository"
	"github.com/WangYihang/Catalog-Crawler/pkg/export"
)

// Message actions
const (
	ActionDownload         = "download"
	ActionGetStats         = "getStats"
	ActionGetFilteredCount = "getFilteredCount"
	ActionGetPreview       = "getPreview"
	ActionClear            = "clear"
	ActionGetCount         = "getCount"
	ActionGetSettings      = "getSettings"
	ActionSaveSettings     = "saveSettings"
	ActionSetCollecting    = "setCollecting"
	ActionGetStatus        = "getStatus"
)

// Response statuses
const (
	StatusOK    = "ok"
	StatusEmpty = "empty"
	StatusError = "error"
)

// DefaultPreviewLimit is used when getPreview has no limit
const DefaultPreviewLimit = 5

// Request is one message from the UI layer
type Request struct {
	Action   string           `json:"action"`
	Format   string           `json:"format,omitempty"`
	Filters  entity.Filter    `json:"filters"`
	City     string           `json:"city,omitempty"`
	Category string           `json:"category,omitempty"`
	PackSize int              `json:"packSize,omitempty"`
	Limit    int              `json:"limit,omitempty"`
	Enabled  *bool            `json:"enabled,omitempty"`
	Settings *entity.Settings `json:"settings,omitempty"`
}

// Response answers a Request. Only the fields of the action are set.
type Response struct {
	Status     string                  `json:"status"`
	Message    string                  `json:"message,omitempty"`
	Count      *int                    `json:"count,omitempty"`
	Files      []string                `json:"files,omitempty"`
	Stats      *entity.Stats           `json:"stats,omitempty"`
	Items      *[]entity.CanonicalItem `json:"items,omitempty"`
	Total      *int                    `json:"total,omitempty"`
	Settings   *entity.Settings        `json:"settings,omitempty"`
	Collecting *bool                   `json:"collecting,omitempty"`
	Metrics    *entity.Metrics         `json:"metrics,omitempty"`
}

func okResponse() Response { return Response{Status: StatusOK} }

func errorResponse(err error) Response {
	return Response{Status: StatusError, Message: err.Error()}
}

func ptr[T any](v T) *T { return &v }

// Collector is the part of the pipeline the message contract controls
type Collector interface {
	SetCollecting(enabled bool)
	IsCollecting() bool
	GetMetrics() *entity.Metrics
	ResetCaptured()
}

// MessageConfig holds defaults for download requests
type MessageConfig struct {
	DefaultCity string
	PackSize    int
	Cities      config.Cities
}

// MessageUseCase answers the UI message contract over the collected state
type MessageUseCase struct {
	config    MessageConfig
	state     repository.StateRepository
	settings  repository.SettingsStore
	exporter  repository.ItemExporter
	collector Collector
	logger    *slog.Logger

	// OnBatch is told about every written export batch; may be nil
	OnBatch func(done, total int)
}

// NewMessageUseCase creates the message handler
func NewMessageUseCase(
	cfg MessageConfig,
	state repository.StateRepository,
	settings repository.SettingsStore,
	exporter repository.ItemExporter,
	collector Collector,
	logger *slog.Logger,
) *MessageUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Cities == nil {
		cfg.Cities = config.BuiltinCities()
	}
	return &MessageUseCase{
		config:    cfg,
		state:     state,
		settings:  settings,
		exporter:  exporter,
		collector: collector,
		logger:    logger,
	}
}

// HandleJSON decodes a raw message and handles it
func (uc *MessageUseCase) HandleJSON(ctx context.Context, raw []byte) Response {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return errorResponse(fmt.Errorf("invalid message: %w", err))
	}
	return uc.Handle(ctx, req)
}

// Handle dispatches one request. Failures are reported in the response,
// never returned.
func (uc *MessageUseCase) Handle(ctx context.Context, req Request) Response {
	switch req.Action {
	case ActionDownload:
		return uc.download(ctx, req)
	case ActionGetStats:
		return uc.withItems(ctx, func(items []entity.CanonicalItem) Response {
			r := okResponse()
			r.Stats = ptr(export.ComputeStats(items))
			return r
		})
	case ActionGetFilteredCount:
		return uc.withItems(ctx, func(items []entity.CanonicalItem) Response {
			r := okResponse()
			r.Count = ptr(len(export.ApplyFilters(items, req.Filters)))
			return r
		})
	case ActionGetPreview:
		return uc.withItems(ctx, func(items []entity.CanonicalItem) Response {
			filtered := export.ApplyFilters(items, req.Filters)
			limit := req.Limit
			if limit <= 0 {
				limit = DefaultPreviewLimit
			}
			preview := filtered[:min(limit, len(filtered))]
			if preview == nil {
				preview = []entity.CanonicalItem{}
			}
			r := okResponse()
			r.Items = &preview
			r.Total = ptr(len(filtered))
			return r
		})
	case ActionClear:
		return uc.clear(ctx)
	case ActionGetCount:
		return uc.withItems(ctx, func(items []entity.CanonicalItem) Response {
			r := okResponse()
			r.Count = ptr(len(items))
			return r
		})
	case ActionGetSettings:
		return uc.getSettings(ctx)
	case ActionSaveSettings:
		return uc.saveSettings(ctx, req)
	case ActionSetCollecting:
		if req.Enabled == nil {
			return errorResponse(fmt.Errorf("setCollecting: enabled is required"))
		}
		uc.collector.SetCollecting(*req.Enabled)
		return uc.status()
	case ActionGetStatus:
		return uc.status()
	default:
		return Response{Status: StatusError, Message: "Unknown action"}
	}
}

func (uc *MessageUseCase) withItems(ctx context.Context, fn func([]entity.CanonicalItem) Response) Response {
	snapshot, err := uc.state.Snapshot(ctx)
	if err != nil {
		uc.logger.Error("api: load state", "error", err)
		return errorResponse(err)
	}
	return fn(snapshot.UniqueItems)
}

func (uc *MessageUseCase) status() Response {
	r := okResponse()
	r.Collecting = ptr(uc.collector.IsCollecting())
	r.Metrics = uc.collector.GetMetrics()
	return r
}

// ResolveCity looks a city up by id or name; empty selects the default city
func (uc *MessageUseCase) ResolveCity(name string) (*config.City, error) {
	if name == "" {
		name = uc.config.DefaultCity
	}
	if name == "" {
		return nil, nil
	}
	city, found := uc.config.Cities.Lookup(name)
	if !found {
		return nil, fmt.Errorf("unknown city %q", name)
	}
	return &city, nil
}

func (uc *MessageUseCase) download(ctx context.Context, req Request) Response {
	snapshot, err := uc.state.Snapshot(ctx)
	if err != nil {
		return errorResponse(err)
	}

	items := export.RemoveDuplicates(export.ApplyFilters(snapshot.UniqueItems, req.Filters))
	if len(items) == 0 {
		return Response{Status: StatusEmpty, Message: "Нет данных для экспорта"}
	}

	city, err := uc.ResolveCity(req.City)
	if err != nil {
		return errorResponse(err)
	}
	packSize := req.PackSize
	if packSize <= 0 {
		packSize = uc.config.PackSize
	}

	files, err := uc.exporter.Export(ctx, entity.ExportJob{
		Format:   req.Format,
		Category: req.Category,
		City:     city,
		PackSize: packSize,
		Items:    items,
		Date:     time.Now(),
	}, uc.OnBatch)
	if err != nil {
		uc.logger.Error("api: export failed", "error", err)
		return errorResponse(err)
	}

	uc.logger.Info("api: exported", "items", len(items), "files", len(files))
	r := okResponse()
	r.Count = ptr(len(items))
	r.Files = files
	return r
}

func (uc *MessageUseCase) clear(ctx context.Context) Response {
	if err := uc.state.Clear(ctx); err != nil {
		uc.logger.Error("api: clear failed", "error", err)
		return errorResponse(err)
	}
	uc.collector.ResetCaptured()
	return Response{Status: StatusOK, Message: "Данные очищены"}
}

func (uc *MessageUseCase) getSettings(ctx context.Context) Response {
	settings, err := uc.settings.LoadSettings(ctx)
	if err != nil {
		return errorResponse(err)
	}
	r := okResponse()
	r.Settings = settings
	return r
}

func (uc *MessageUseCase) saveSettings(ctx context.Context, req Request) Response {
	if req.Settings == nil {
		return errorResponse(fmt.Errorf("saveSettings: settings are required"))
	}
	s := *req.Settings
	if s.Format != "" {
		format, err := export.ParseFormat(s.Format)
		if err != nil {
			return errorResponse(err)
		}
		s.Format = format
	}
	if s.City != "" {
		if _, err := uc.ResolveCity(s.City); err != nil {
			return errorResponse(err)
		}
	}
	if err := uc.settings.SaveSettings(ctx, &s); err != nil {
		uc.logger.Error("api: save settings", "error", err)
		return errorResponse(err)
	}
	r := okResponse()
	r.Settings = &s
	return r
}
