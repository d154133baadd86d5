package provider

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/blobmux/blobmux/pkg/blobmux"
	"github.com/blobmux/blobmux/pkg/s3store"
)

// Provider handles link lifecycle control: link creation, link deletion
// and shutdown. These are driven by the hosting runtime (or the admin
// router), never by the dispatcher, which only consumes the resulting
// registry state.
type Provider struct {
	registry *Registry
	defaults s3store.StorageConfig
	aliases  map[string]string
	log      *logrus.Entry
}

// New builds a provider. defaults carries provider-level backend settings
// applied to every link; aliases carries provider-level alias entries that
// per-link alias_* values may override.
func New(registry *Registry, defaults s3store.StorageConfig, aliases map[string]string, log *logrus.Entry) *Provider {
	return &Provider{
		registry: registry,
		defaults: defaults,
		aliases:  aliases,
		log:      log,
	}
}

func (p *Provider) Registry() *Registry {
	return p.registry
}

// OnLinkCreate builds a storage client for sourceID from the link's
// configuration values and registers it, replacing any existing link for
// the same source. Rejecting the link is signalled by the returned error.
func (p *Provider) OnLinkCreate(sourceID string, values map[string]string) error {
	log := p.log.WithField("source", sourceID)

	cfg, err := s3store.ConfigFromValues(values, p.defaults)
	if err != nil {
		log.WithError(err).Error("failed to build storage config")
		return errors.Wrap(err, "failed to build storage config")
	}

	client, err := s3store.NewClient(cfg, log)
	if err != nil {
		log.WithError(err).Error("failed to build storage client")
		return errors.Wrap(err, "failed to build storage client")
	}

	aliases := blobmux.BuildAliasTable(p.aliases, values, log)
	p.registry.Upsert(sourceID, &Link{Store: client, Aliases: aliases})
	log.WithField("aliases", len(aliases)).Info("link registered")
	return nil
}

// OnLinkDelete drops the link for sourceID.
func (p *Provider) OnLinkDelete(sourceID string) {
	p.registry.Remove(sourceID)
	p.log.WithField("source", sourceID).Info("link removed")
}

// OnShutdown drops all links.
func (p *Provider) OnShutdown() {
	p.registry.Clear()
	p.log.Info("all links cleared")
}
