package orchestrate

import (
	"context"

	"github.com/okatz/provisor/internal/artifact"
	"github.com/okatz/provisor/internal/config"
	"github.com/okatz/provisor/internal/health"
	"github.com/okatz/provisor/internal/install"
	"github.com/okatz/provisor/internal/lifecycle"
	"github.com/okatz/provisor/internal/probe"
	"github.com/okatz/provisor/internal/provisioning"
	"github.com/okatz/provisor/internal/render"
	"github.com/okatz/provisor/internal/secure"
	"github.com/okatz/provisor/internal/target"
)

// defaultPipeline wires the production stage implementations.
type defaultPipeline struct {
	prober     *probe.Prober
	installer  *install.Installer
	renderer   *render.Renderer
	controller *lifecycle.Controller
}

// NewPipeline builds the production pipeline from a provisioning context.
func NewPipeline(pctx *provisioning.Context) (Pipeline, error) {
	checker := health.NewHTTPChecker(pctx.Config.Ports.Web)

	secrets, err := secure.NewDirProvider(pctx.Config.Security.MaterialDir, pctx.Config.Security.PassphraseFile)
	if err != nil {
		return nil, err
	}

	source := artifact.LocalSource{Path: pctx.Config.Install.ArchivePath}

	return &defaultPipeline{
		prober:     probe.New(pctx.Config, checker),
		installer:  install.New(pctx.Config, pctx.Timeouts, pctx.Observer, source, pctx.RunID),
		renderer:   render.New(pctx.Config, pctx.Observer, secrets, pctx.ConnectString),
		controller: lifecycle.New(pctx.Config, pctx.Timeouts, pctx.Observer, checker),
	}, nil
}

func (p *defaultPipeline) Probe(ctx context.Context, tgt target.Target, node config.NodeSpec) (probe.Report, error) {
	return p.prober.Probe(ctx, tgt, node)
}

func (p *defaultPipeline) Install(ctx context.Context, tgt target.Target, node config.NodeSpec, report probe.Report) (install.Artifact, error) {
	return p.installer.Install(ctx, tgt, node, report)
}

func (p *defaultPipeline) Configure(ctx context.Context, tgt target.Target, node config.NodeSpec, art install.Artifact) error {
	return p.renderer.Configure(ctx, tgt, node, art)
}

func (p *defaultPipeline) Activate(ctx context.Context, tgt target.Target, node config.NodeSpec, art install.Artifact) error {
	return p.controller.Activate(ctx, tgt, node, art)
}
