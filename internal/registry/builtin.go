package registry

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tendant/simple-content/pkg/simplecontent/presets"

	"github.com/tendant/simple-image-handler/internal/config"
	"github.com/tendant/simple-image-handler/internal/params"
	"github.com/tendant/simple-image-handler/internal/storage"
	"github.com/tendant/simple-image-handler/internal/tool"
)

// Builtin returns the catalog of every implementation shipped with the
// service, each constructed from cfg.
//
//	provider:   filesystem, http, content
//	tool:       imaging
//	store:      memory, filesystem, postgres, sqlite
//	parameters: simple, filtered
func Builtin(ctx context.Context, cfg *config.Config, logger *slog.Logger) *Catalog {
	c := NewCatalog()
	pc := cfg.Provider
	sc := cfg.Store

	c.RegisterProvider("filesystem", func() (storage.Provider, error) {
		return storage.NewFilesystemProvider(pc.BasePath, pc.MaxSourceSizeBytes())
	})
	c.RegisterProvider("http", func() (storage.Provider, error) {
		return storage.NewHTTPProvider(pc.BaseURL, pc.MaxSourceSizeBytes(), pc.TimeoutDuration()), nil
	})
	c.RegisterProvider("content", func() (storage.Provider, error) {
		svc, cleanup, err := presets.NewDevelopment(presets.WithDevStorage(pc.ContentStorageDir))
		if err != nil {
			return nil, fmt.Errorf("content service: %w", err)
		}
		return &closingProvider{
			Provider: storage.NewContentProvider(svc, pc.MaxSourceSizeBytes()),
			cleanup:  cleanup,
		}, nil
	})

	c.RegisterTool("imaging", func() (tool.Tool, error) {
		return newImagingTool(cfg.Tool)
	})

	c.RegisterStore("memory", func() (storage.Store, error) {
		return storage.NewMemoryStore(), nil
	})
	c.RegisterStore("filesystem", func() (storage.Store, error) {
		return storage.NewFilesystemStore(sc.BasePath, logger)
	})
	c.RegisterStore("postgres", func() (storage.Store, error) {
		if sc.DatabaseURL == "" {
			return nil, fmt.Errorf("store.database_url is required")
		}
		return storage.OpenPostgresStore(ctx, sc.DatabaseURL, sc.Table)
	})
	c.RegisterStore("sqlite", func() (storage.Store, error) {
		return storage.OpenSQLiteStore(ctx, sc.SQLitePath, sc.Table)
	})

	c.RegisterParameters("simple", func() params.Parser {
		return params.SimpleParser{}
	})
	c.RegisterParameters("filtered", func() params.Parser {
		// Unknown filter names fail in the tool factory, so an error here
		// leaves only src, format and quality allowed.
		t, err := newImagingTool(cfg.Tool)
		if err != nil {
			return params.NewFilteredParser(tool.FormatParam, tool.QualityParam)
		}
		return params.NewFilteredParser(t.Params()...)
	})

	return c
}

func newImagingTool(tc config.ToolConfig) (*tool.ImagingTool, error) {
	return tool.NewImagingTool(tool.Config{
		Filters:         tc.Filters,
		Quality:         tc.JPEGQuality,
		MaxWidth:        tc.MaxWidth,
		MaxHeight:       tc.MaxHeight,
		DefaultFormat:   tc.DefaultFormat,
		MaxSourcePixels: tc.MaxSourcePixels,
	})
}

// SettingsFrom extracts component identifiers from configuration.
func SettingsFrom(cfg *config.Config) Settings {
	return Settings{
		Provider:   cfg.Components.Provider,
		Tool:       cfg.Components.Tool,
		Store:      cfg.Components.Store,
		Parameters: cfg.Components.Parameters,
	}
}

type closingProvider struct {
	storage.Provider
	cleanup func()
}

func (p *closingProvider) Close() error {
	if p.cleanup != nil {
		p.cleanup()
	}
	return nil
}
