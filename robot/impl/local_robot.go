// Package robotimpl builds the resources of a config and keeps them in step with config changes.
package robotimpl

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/multierr"

	"github.com/edss/rocket-sensors/config"
	"github.com/edss/rocket-sensors/logging"
	"github.com/edss/rocket-sensors/resource"
	"github.com/edss/rocket-sensors/robot"
)

type localRobot struct {
	mu        sync.Mutex
	logger    logging.Logger
	config    *config.Config
	graph     *resource.Graph
	resources map[resource.Name]resource.Resource
	configs   map[resource.Name]resource.Config
}

// New builds every component of cfg in dependency order. If any component fails, everything built
// so far is closed again.
func New(ctx context.Context, cfg *config.Config, logger logging.Logger) (robot.Robot, error) {
	r := &localRobot{
		logger:    logger,
		config:    &config.Config{},
		graph:     resource.NewGraph(),
		resources: map[resource.Name]resource.Resource{},
		configs:   map[resource.Name]resource.Config{},
	}
	if err := r.Reconfigure(ctx, cfg); err != nil {
		return nil, multierr.Combine(err, r.Close(ctx))
	}
	return r, nil
}

// RobotFromConfigPath reads the config at cfgPath and builds it.
func RobotFromConfigPath(ctx context.Context, cfgPath string, logger logging.Logger) (robot.Robot, error) {
	cfg, err := config.Read(cfgPath, logger)
	if err != nil {
		return nil, err
	}
	return New(ctx, cfg, logger)
}

func (r *localRobot) ResourceNames() []resource.Name {
	r.mu.Lock()
	defer r.mu.Unlock()
	return lo.Keys(r.resources)
}

func (r *localRobot) ResourceByName(name resource.Name) (resource.Resource, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.resources[name]
	if !ok {
		return nil, resource.NewNotFoundError(name)
	}
	return res, nil
}

func (r *localRobot) Config() *config.Config {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.config
}

func (r *localRobot) Logger() logging.Logger {
	return r.logger
}

// Reconfigure walks the new components in dependency order. A resource whose config or whose
// dependencies changed is reconfigured in place; one that asks to be rebuilt, or fails to
// reconfigure, is closed and constructed again. Failures are logged, combined and returned while
// the rest of the config still takes effect.
func (r *localRobot) Reconfigure(ctx context.Context, cfg *config.Config) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs error
	newConfigs := make(map[resource.Name]resource.Config, len(cfg.Components))
	byShortName := make(map[string]resource.Name, len(cfg.Components))
	for _, conf := range cfg.Components {
		newConfigs[conf.ResourceName()] = conf
		byShortName[conf.Name] = conf.ResourceName()
	}

	// removed resources go first, dependents before their dependencies
	for _, name := range r.graph.ReverseTopologicalSort() {
		if newConf, ok := newConfigs[name]; ok && newConf.Model == r.configs[name].Model {
			continue
		}
		errs = multierr.Combine(errs, r.removeResource(ctx, name))
	}

	graph := resource.NewGraph()
	for _, conf := range cfg.Components {
		graph.AddNode(conf.ResourceName())
		for _, dep := range conf.Dependencies() {
			depName, ok := byShortName[dep]
			if !ok {
				errs = multierr.Combine(errs, errors.Errorf("%q depends on unknown component %q", conf.Name, dep))
				continue
			}
			if err := graph.AddDependency(conf.ResourceName(), depName); err != nil {
				errs = multierr.Combine(errs, err)
			}
		}
	}

	touched := map[resource.Name]bool{}
	for _, name := range graph.TopologicalSort() {
		conf := newConfigs[name]
		deps, err := r.dependencies(conf, byShortName)
		if err != nil {
			r.logger.Errorw("dependencies not ready", "resource", name, "error", err)
			errs = multierr.Combine(errs, errors.Wrapf(err, "building %s", name))
			// a dependent may not keep using a resource that was closed underneath it
			errs = multierr.Combine(errs, r.removeResource(ctx, name))
			continue
		}

		dependencyTouched := lo.SomeBy(conf.Dependencies(), func(dep string) bool {
			return touched[byShortName[dep]]
		})
		existing, ok := r.resources[name]
		switch {
		case !ok:
			err = r.buildResource(ctx, conf, deps)
			touched[name] = true
		case !conf.Equals(r.configs[name]) || dependencyTouched:
			touched[name] = true
			err = existing.Reconfigure(ctx, deps, conf)
			var mustRebuild *resource.MustRebuildError
			if err != nil && errors.As(err, &mustRebuild) {
				r.logger.Infow("rebuilding resource", "resource", name)
			} else if err != nil {
				r.logger.Warnw("reconfigure failed, rebuilding", "resource", name, "error", err)
			}
			if err != nil {
				if err := r.removeResource(ctx, name); err != nil {
					errs = multierr.Combine(errs, err)
				}
				err = r.buildResource(ctx, conf, deps)
			} else {
				r.configs[name] = conf
			}
		}
		if err != nil {
			r.logger.Errorw("error building resource", "resource", name, "model", conf.Model, "error", err)
			errs = multierr.Combine(errs, errors.Wrapf(err, "building %s", name))
		}
	}

	r.graph = graph
	r.config = cfg
	return errs
}

func (r *localRobot) dependencies(conf resource.Config, byShortName map[string]resource.Name) (resource.Dependencies, error) {
	deps := make(resource.Dependencies)
	for _, dep := range conf.Dependencies() {
		depName, ok := byShortName[dep]
		if !ok {
			return nil, errors.Errorf("unknown component %q", dep)
		}
		res, ok := r.resources[depName]
		if !ok {
			return nil, errors.Errorf("dependency %q is not built", dep)
		}
		deps[depName] = res
	}
	return deps, nil
}

func (r *localRobot) buildResource(ctx context.Context, conf resource.Config, deps resource.Dependencies) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = errors.Wrap(errors.Errorf("%v", rec), "panic creating resource")
		}
	}()
	reg, ok := resource.LookupRegistration(conf.API, conf.Model)
	if !ok {
		return errors.Errorf("unknown resource api: %s and/or model: %s", conf.API, conf.Model)
	}
	res, err := reg.Constructor(ctx, deps, conf, r.logger.Sublogger(conf.Name))
	if err != nil {
		return err
	}
	r.resources[conf.ResourceName()] = res
	r.configs[conf.ResourceName()] = conf
	r.logger.Debugw("built resource", "resource", conf.ResourceName(), "model", conf.Model)
	return nil
}

func (r *localRobot) removeResource(ctx context.Context, name resource.Name) error {
	res, ok := r.resources[name]
	if !ok {
		return nil
	}
	delete(r.resources, name)
	delete(r.configs, name)
	if err := res.Close(ctx); err != nil {
		return errors.Wrapf(err, "closing %s", name)
	}
	return nil
}

// Close closes every resource, dependents before their dependencies.
func (r *localRobot) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var err error
	order := r.graph.ReverseTopologicalSort()
	for _, name := range order {
		err = multierr.Combine(err, r.removeResource(ctx, name))
	}
	// resources built outside the graph, e.g. during a failed reconfigure
	for name := range r.resources {
		err = multierr.Combine(err, r.removeResource(ctx, name))
	}
	r.graph = resource.NewGraph()
	return err
}
