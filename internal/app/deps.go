package app

import (
	"creditbot/config"
	"creditbot/pkg/cloudinary"
	"creditbot/pkg/events"
	"creditbot/pkg/payment"

	"github.com/sirupsen/logrus"
)

// ExternalDeps builds the gateway, archive and event publisher from configuration.
// Unconfigured collaborators fall back to local stand-ins. The returned Deps has no
// Messenger; callers attach one.
func ExternalDeps(cfg *config.Config, log *logrus.Logger) (Deps, error) {
	var deps Deps

	if cfg.Gateway.ShopID != "" && cfg.Gateway.Token != "" {
		deps.Provider = payment.NewRukassaProvider(cfg.Gateway.APIURL, cfg.Gateway.ShopID, cfg.Gateway.Token,
			cfg.Gateway.Timeout, log)
	} else {
		log.Warn("payment gateway not configured, using stub provider")
		deps.Provider = &payment.StubProvider{BaseURL: cfg.Server.PublicURL}
	}

	if cfg.Cloudinary.Enabled() {
		archiver, err := cloudinary.NewClientFromParams(cfg.Cloudinary.CloudName, cfg.Cloudinary.APIKey,
			cfg.Cloudinary.APISecret, cfg.Cloudinary.Folder)
		if err != nil {
			return Deps{}, err
		}
		deps.Archiver = archiver
	}

	if cfg.RabbitMQ.URL != "" {
		pub, err := events.NewAMQPPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, log)
		if err != nil {
			return Deps{}, err
		}
		deps.Publisher = pub
	}
	return deps, nil
}

// Close releases connections held by deps.
func (d Deps) Close() {
	if d.Publisher != nil {
		_ = d.Publisher.Close()
	}
}
