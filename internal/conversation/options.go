package conversation

import (
	"github.com/harunnryd/stackchat/internal/backend"
	"github.com/harunnryd/stackchat/internal/catalog"
	"github.com/harunnryd/stackchat/internal/config"
	"github.com/harunnryd/stackchat/internal/session"
)

// OptionsFromConfig builds conversation options, including the shared model
// catalog, from the loaded configuration.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	backendOpts, err := backend.OptionsFromConfig(cfg)
	if err != nil {
		return Options{}, err
	}

	ttl, err := config.DurationOrDefault(cfg.Chat.ModelListTTL, config.DefaultChatModelListTTL)
	if err != nil {
		return Options{}, err
	}

	baseURL := cfg.Backend.BaseURL()
	lister, err := backend.NewLister(cfg.Backend.Mode, baseURL, backendOpts)
	if err != nil {
		return Options{}, err
	}

	opts := Options{
		Mode:    cfg.Backend.Mode,
		BaseURL: baseURL,
		Agents:  backend.AgentFactory(backendOpts),
		Settings: session.Settings{
			Tools:        cfg.Agent.Tools,
			Instructions: cfg.Agent.Instructions,
			SessionName:  cfg.Agent.SessionName,
		},
		Catalog: catalog.New(lister, ttl),
	}
	if generator, ok := lister.(backend.Generator); ok {
		opts.Generator = generator
	}

	return opts, nil
}
